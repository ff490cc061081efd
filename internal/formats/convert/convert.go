// Package convert is the conversion facade. It runs the native pipelines
// (package → model → HTML and HTML → model → package) and falls back to a
// secondary converter once when the native path fails.
package convert

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/klytics/docbridge/internal/formats/docx"
	"github.com/klytics/docbridge/internal/formats/htmldoc"
)

const (
	opRead  = "package-to-html"
	opWrite = "html-to-package"
)

// Options controls which path a Converter tries first.
type Options struct {
	// PreferNativeRead runs the native parser before the secondary converter.
	PreferNativeRead bool
	// PreferNativeWrite runs the native builder before the secondary converter.
	PreferNativeWrite bool
	// Standalone wraps HTML output in a self-contained page.
	Standalone bool
	// Title is the page title used in standalone mode.
	Title string
}

// DefaultOptions prefers the native path in both directions.
func DefaultOptions() Options {
	return Options{PreferNativeRead: true, PreferNativeWrite: true}
}

// Secondary is a lower-fidelity converter used when the native path fails.
// Implementations must be safe for concurrent use.
type Secondary interface {
	PackageToHTML(data []byte) (string, error)
	HTMLToPackage(html string) ([]byte, error)
}

// HTMLResult is the outcome of a package to HTML conversion.
type HTMLResult struct {
	HTML string
	// Native is false when the secondary converter produced the result.
	Native   bool
	Warnings []docx.Warning
	// Document is the parsed model. It is nil for secondary results.
	Document *docx.Document
}

// PackageResult is the outcome of an HTML to package conversion.
type PackageResult struct {
	Data     []byte
	Native   bool
	Warnings []docx.Warning
}

// ConversionError is returned when both the native and the secondary path
// failed. Native is nil when the native path was not attempted.
type ConversionError struct {
	Op        string
	Native    error
	Secondary error
}

func (e *ConversionError) Error() string {
	if e.Native == nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Secondary)
	}
	return fmt.Sprintf("%s failed: native: %v; secondary: %v", e.Op, e.Native, e.Secondary)
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *ConversionError) Unwrap() []error {
	var errs []error
	if e.Native != nil {
		errs = append(errs, e.Native)
	}
	if e.Secondary != nil {
		errs = append(errs, e.Secondary)
	}
	return errs
}

// Converter holds only immutable configuration and is safe for concurrent
// use by unrelated conversions.
type Converter struct {
	opts      Options
	secondary Secondary
	log       *zap.Logger
}

// New returns a Converter. A nil secondary uses Legacy and a nil logger
// discards output.
func New(opts Options, secondary Secondary, log *zap.Logger) *Converter {
	if secondary == nil {
		secondary = NewLegacy()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{opts: opts, secondary: secondary, log: log}
}

// Options returns the options the converter was built with.
func (c *Converter) Options() Options { return c.opts }

// WithOptions returns a Converter sharing c's secondary and logger.
func (c *Converter) WithOptions(opts Options) *Converter {
	return &Converter{opts: opts, secondary: c.secondary, log: c.log}
}

// PackageToHTML converts .docx bytes to HTML.
func (c *Converter) PackageToHTML(ctx context.Context, data []byte) (*HTMLResult, error) {
	var nativeErr error
	if c.opts.PreferNativeRead {
		res, err := run(ctx, func() (*HTMLResult, error) { return c.nativeRead(data) })
		if err == nil {
			c.logWarnings(opRead, res.Warnings)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		nativeErr = err
		c.fallback(opRead, err)
	}

	out, err := run(ctx, func() (string, error) { return c.secondary.PackageToHTML(data) })
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConversionError{Op: opRead, Native: nativeErr, Secondary: err}
	}
	if c.opts.Standalone && !isPage(out) {
		out = htmldoc.Page(c.opts.Title, out)
	}
	return &HTMLResult{HTML: out}, nil
}

// HTMLToPackage converts HTML to .docx bytes. When base holds the package
// the HTML was produced from, content the HTML cannot express is kept from
// it. An unreadable base is ignored with a warning.
func (c *Converter) HTMLToPackage(ctx context.Context, src string, base []byte) (*PackageResult, error) {
	return c.write(ctx, src, func() (*PackageResult, error) {
		var doc *docx.Document
		if len(base) > 0 {
			parsed, err := docx.ParseBytes(base)
			if err != nil {
				c.log.Warn("base package unreadable, building without it", zap.Error(err))
			} else {
				doc = parsed
			}
		}
		return c.nativeWrite(src, doc)
	})
}

// HTMLToPackageModel is HTMLToPackage with an already parsed base. The base
// is not modified.
func (c *Converter) HTMLToPackageModel(ctx context.Context, src string, base *docx.Document) (*PackageResult, error) {
	return c.write(ctx, src, func() (*PackageResult, error) {
		return c.nativeWrite(src, base)
	})
}

func (c *Converter) write(ctx context.Context, src string, native func() (*PackageResult, error)) (*PackageResult, error) {
	var nativeErr error
	if c.opts.PreferNativeWrite {
		res, err := run(ctx, native)
		if err == nil {
			c.logWarnings(opWrite, res.Warnings)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		nativeErr = err
		c.fallback(opWrite, err)
	}

	data, err := run(ctx, func() ([]byte, error) { return c.secondary.HTMLToPackage(src) })
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConversionError{Op: opWrite, Native: nativeErr, Secondary: err}
	}
	return &PackageResult{Data: data}, nil
}

func (c *Converter) nativeRead(data []byte) (*HTMLResult, error) {
	pkg, err := docx.OpenPackage(data)
	if err != nil {
		return nil, err
	}
	p := docx.NewParser()
	doc, err := p.Parse(pkg)
	if err != nil {
		return nil, err
	}
	out, warnings := htmldoc.Emitter{Standalone: c.opts.Standalone, Title: c.opts.Title}.Render(doc)
	return &HTMLResult{
		HTML:     out,
		Native:   true,
		Warnings: append(p.Warnings(), warnings...),
		Document: doc,
	}, nil
}

func (c *Converter) nativeWrite(src string, base *docx.Document) (*PackageResult, error) {
	b := htmldoc.NewBuilder()
	doc, err := b.Build(src, base)
	if err != nil {
		return nil, err
	}
	data, err := docx.Serialize(doc)
	if err != nil {
		return nil, err
	}
	return &PackageResult{Data: data, Native: true, Warnings: b.Warnings()}, nil
}

func (c *Converter) fallback(op string, err error) {
	c.log.Warn("native conversion failed, using secondary converter",
		zap.String("op", op),
		zap.Error(err),
	)
}

func (c *Converter) logWarnings(op string, warnings []docx.Warning) {
	for _, w := range warnings {
		c.log.Info("conversion fidelity warning",
			zap.String("op", op),
			zap.String("code", w.Code),
			zap.String("detail", w.Message),
		)
	}
}

// run executes fn on its own goroutine. The caller gets ctx.Err() as soon as
// ctx is done; the abandoned result is dropped. Panics become errors.
func run[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("conversion panicked: %v", r)}
			}
		}()
		val, err := fn()
		done <- outcome{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case o := <-done:
		return o.val, o.err
	}
}

func isPage(s string) bool {
	head := strings.ToLower(s[:min(len(s), 512)])
	return strings.Contains(head, "<html")
}
