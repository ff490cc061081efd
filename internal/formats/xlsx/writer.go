package xlsx

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// Write encodes wb as .xlsx. The first row of every sheet is bold.
func Write(wb *Workbook, w io.Writer) error {
	f, err := build(wb)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("could not encode workbook: %w", err)
	}
	return nil
}

// WriteFile saves wb to path.
func WriteFile(wb *Workbook, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	if err := Write(wb, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func build(wb *Workbook) (*excelize.File, error) {
	f := excelize.NewFile()
	if len(wb.Sheets) == 0 {
		return f, nil
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("could not create header style: %w", err)
	}

	for i, sheet := range wb.Sheets {
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if i == 0 {
			// Rename default sheet
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				f.Close()
				return nil, fmt.Errorf("could not rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not create sheet %q: %w", name, err)
		}

		for r, row := range sheet.Rows {
			for c, value := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					f.Close()
					return nil, fmt.Errorf("invalid cell coordinates: %w", err)
				}
				if err := f.SetCellStr(name, cell, value); err != nil {
					f.Close()
					return nil, fmt.Errorf("could not set cell %s: %w", cell, err)
				}
			}
		}

		if width := sheet.Width(); width > 0 && len(sheet.Rows) > 0 {
			last, _ := excelize.CoordinatesToCellName(width, 1)
			if err := f.SetCellStyle(name, "A1", last, header); err != nil {
				f.Close()
				return nil, fmt.Errorf("could not style header of %q: %w", name, err)
			}
		}
	}
	return f, nil
}
