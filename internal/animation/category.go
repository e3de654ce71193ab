package animation

import (
	"context"
	"errors"
	"strings"

	"sprite-loop-studio/internal/gemini"
)

// Category buckets a run failure for presentation.
type Category int

const (
	CategoryNone Category = iota
	CategoryNoCredential
	CategorySafety
	CategoryCancelled
	CategoryGeneric
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryNoCredential:
		return "no_credential"
	case CategorySafety:
		return "safety"
	case CategoryCancelled:
		return "cancelled"
	default:
		return "error"
	}
}

// Categorize maps a run error onto a presentation category plus a short
// reason a user can act on.
func Categorize(err error) (Category, string) {
	switch {
	case err == nil:
		return CategoryNone, ""
	case errors.Is(err, ErrNoCredential):
		return CategoryNoCredential, "no API key is configured"
	case errors.Is(err, gemini.ErrAuth):
		return CategoryNoCredential, "the API rejected the configured key"
	case errors.Is(err, gemini.ErrSafetyBlocked):
		return CategorySafety, "the safety filter blocked this character or action"
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return CategoryCancelled, "the run was cancelled"
	}

	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "generation failed"
	}
	return CategoryGeneric, msg
}
