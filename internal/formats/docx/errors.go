package docx

import (
	"errors"
	"fmt"
)

// ArchiveErrorKind classifies why a package could not be opened.
type ArchiveErrorKind int

const (
	// NotAnArchive means the bytes are not a readable ZIP container.
	NotAnArchive ArchiveErrorKind = iota
	// MissingPart means the container opened but a required part is absent.
	MissingPart
)

func (k ArchiveErrorKind) String() string {
	switch k {
	case NotAnArchive:
		return "not an archive"
	case MissingPart:
		return "missing part"
	default:
		return "unknown"
	}
}

// ErrNotAnArchive and ErrMissingPart match ArchiveErrors of the same kind via errors.Is.
var (
	ErrNotAnArchive = errors.New("not a valid .docx archive")
	ErrMissingPart  = errors.New("required part missing from .docx archive")
)

// ArchiveError reports a container-level failure. The facade treats it as a
// signal to fall back rather than a fatal error.
type ArchiveError struct {
	Kind ArchiveErrorKind
	Part string
	Err  error
}

func (e *ArchiveError) Error() string {
	switch e.Kind {
	case NotAnArchive:
		if e.Err != nil {
			return fmt.Sprintf("invalid .docx file: not a valid ZIP archive: %v", e.Err)
		}
		return "invalid .docx file: not a valid ZIP archive"
	case MissingPart:
		return fmt.Sprintf("invalid .docx file: missing %s", e.Part)
	default:
		return fmt.Sprintf("invalid .docx file: %v", e.Err)
	}
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotAnArchive) and errors.Is(err, ErrMissingPart) work.
func (e *ArchiveError) Is(target error) bool {
	switch target {
	case ErrNotAnArchive:
		return e.Kind == NotAnArchive
	case ErrMissingPart:
		return e.Kind == MissingPart
	}
	return false
}

// ParseErrorKind classifies parse failures.
type ParseErrorKind int

const (
	// MalformedStructure means the main document part is not well-formed XML.
	MalformedStructure ParseErrorKind = iota
)

// ParseError is returned when the main document part cannot be read as XML.
// Missing or unusual substructure never produces a ParseError.
type ParseError struct {
	Kind ParseErrorKind
	Part string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("XML parse error in %s: %v", e.Part, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SerializationError is returned when the writer cannot assemble a valid archive.
type SerializationError struct {
	Part string
	Err  error
}

func (e *SerializationError) Error() string {
	if e.Part == "" {
		return fmt.Sprintf("could not finalize .docx archive: %v", e.Err)
	}
	return fmt.Sprintf("could not write %s: %v", e.Part, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Warning codes for constructs that have no representation in the target
// format and were omitted.
const (
	WarnUnsupportedElement = "unsupported-element"
	WarnNestedTable        = "nested-table"
	WarnEmbeddedObject     = "embedded-object"
	WarnDroppedMarkup      = "dropped-markup"
)

// Warning is a non-fatal fidelity notice. Warnings are accumulated and never
// block a conversion.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Code + ": " + w.Message
}
