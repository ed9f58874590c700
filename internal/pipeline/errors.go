package pipeline

import (
	"errors"
	"fmt"

	"github.com/zack-zzq/modpack-localizer/internal/store"
)

// Kind classifies pipeline failures by the stage that produced them.
type Kind int

const (
	// KindDownload is fatal for the whole modpack: nothing can be
	// resolved without the archive.
	KindDownload Kind = iota
	// KindExtraction is fatal for one category; sibling categories
	// continue.
	KindExtraction
	// KindTranslation is recoverable and scoped to one unit. It is
	// never persisted, so the unit is retried on the next run.
	KindTranslation
	// KindPackage is fatal for the modpack: no usable bundle was
	// produced.
	KindPackage
)

func (k Kind) String() string {
	switch k {
	case KindDownload:
		return "Download"
	case KindExtraction:
		return "Extraction"
	case KindTranslation:
		return "Translation"
	case KindPackage:
		return "Package"
	default:
		return "Unknown"
	}
}

// Fatal reports whether a failure of this kind prevents the modpack
// from producing a usable package.
func (k Kind) Fatal() bool {
	return k == KindDownload || k == KindPackage
}

// Error is a pipeline failure tagged with its stage kind and scope.
type Error struct {
	Kind  Kind
	Slug  string
	Unit  *store.UnitKey
	Cause error
}

func (e *Error) Error() string {
	scope := e.Slug
	if e.Unit != nil {
		scope = fmt.Sprintf("%s/%s", e.Slug, e.Unit)
	}
	return fmt.Sprintf("[%sError] %s: %v", e.Kind, scope, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WrapError tags err with a stage kind scoped to a whole modpack.
func WrapError(kind Kind, slug string, err error) *Error {
	return &Error{Kind: kind, Slug: slug, Cause: err}
}

// WrapUnitError tags err with a stage kind scoped to one unit.
func WrapUnitError(kind Kind, slug string, unit store.UnitKey, err error) *Error {
	return &Error{Kind: kind, Slug: slug, Unit: &unit, Cause: err}
}

// IsKind reports whether err is a pipeline error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}
