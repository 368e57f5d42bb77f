package report

import (
	"errors"
	"fmt"
)

// Issue kinds. Parsers never return these bare; they arrive wrapped in an
// Issue so errors.Is(issue, ErrFormat) works.
var (
	ErrFileNotFound         = errors.New("file not found")
	ErrEncoding             = errors.New("invalid encoding")
	ErrEmptyFile            = errors.New("file is empty")
	ErrEmptyContent         = errors.New("extracted text is empty")
	ErrDependencyMissing    = errors.New("text extraction dependency missing")
	ErrExtractionFailed     = errors.New("text extraction failed")
	ErrFormat               = errors.New("invalid segment format")
	ErrUnknownSegment       = errors.New("unknown segment")
	ErrCorruptedSegment     = errors.New("corrupted segment")
	ErrMissingRequiredField = errors.New("missing required field")
)

// Issue is one advisory problem found while parsing. Line is 1-based and
// zero for problems that are not tied to a line.
type Issue struct {
	Kind   error
	Line   int
	Detail string
}

func (i Issue) Error() string {
	if i.Detail != "" {
		return i.Detail
	}
	if i.Line > 0 {
		return fmt.Sprintf("%s at line %d", i.Kind, i.Line)
	}
	return i.Kind.Error()
}

func (i Issue) Unwrap() error { return i.Kind }

// Issues accumulates everything a parse reported, fatal or not, in the
// order it was found.
type Issues []Issue

func (is *Issues) add(kind error, line int, format string, args ...interface{}) {
	*is = append(*is, Issue{Kind: kind, Line: line, Detail: fmt.Sprintf(format, args...)})
}

// Has reports whether any issue is of the given kind.
func (is Issues) Has(kind error) bool {
	for _, i := range is {
		if errors.Is(i, kind) {
			return true
		}
	}
	return false
}

// Strings renders every issue for display.
func (is Issues) Strings() []string {
	out := make([]string, len(is))
	for n, i := range is {
		out[n] = i.Error()
	}
	return out
}

// Err joins the issues into a single error, or nil when there are none.
func (is Issues) Err() error {
	if len(is) == 0 {
		return nil
	}
	errs := make([]error, len(is))
	for n := range is {
		errs[n] = is[n]
	}
	return errors.Join(errs...)
}

func single(kind error, detail string) Issues {
	return Issues{{Kind: kind, Detail: detail}}
}
