package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/linkage-api/internal/models"
	appErrors "github.com/noah-isme/linkage-api/pkg/errors"
)

// ResolutionKind classifies a failed lookup.
type ResolutionKind string

const (
	KindNotFound           ResolutionKind = "NOT_FOUND"
	KindAmbiguousReference ResolutionKind = "AMBIGUOUS_REFERENCE"
	KindStoreUnavailable   ResolutionKind = "STORE_UNAVAILABLE"
)

// ResolutionError names the hop at which a traversal stopped.
type ResolutionError struct {
	Kind       ResolutionKind
	Hop        int
	Entity     string
	Collection models.Collection
	Field      string
	Key        string
	// Matches is the number of records found for an ambiguous lookup.
	Matches int
	Err     error
}

// Sentinels for errors.Is. They match any ResolutionError of the same kind.
var (
	ErrReferenceNotFound  = &ResolutionError{Kind: KindNotFound}
	ErrAmbiguousReference = &ResolutionError{Kind: KindAmbiguousReference}
	ErrStoreUnavailable   = &ResolutionError{Kind: KindStoreUnavailable}
)

// ErrInvalidPath is returned for traversal paths that cannot be executed.
var ErrInvalidPath = errors.New("invalid resolution path")

func (e *ResolutionError) Error() string {
	var prefix string
	switch {
	case e.Hop > 0:
		prefix = fmt.Sprintf("hop %d (%s): ", e.Hop, e.Entity)
	case e.Entity != "":
		prefix = e.Entity + ": "
	}
	target := string(e.Collection)
	if target == "" {
		target = "profile"
	}
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("%sno %s record with %s=%s", prefix, target, e.Field, e.Key)
	case KindAmbiguousReference:
		return fmt.Sprintf("%s%d %s records with %s=%s", prefix, e.Matches, target, e.Field, e.Key)
	case KindStoreUnavailable:
		if e.Err != nil {
			return fmt.Sprintf("%sstore unavailable reading %s: %v", prefix, target, e.Err)
		}
		return prefix + "store unavailable reading " + target
	}
	return prefix + string(e.Kind)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	return ok && t.Kind == e.Kind
}

// AsAppError maps resolution failures onto transport-aware errors. Other
// errors are returned unchanged.
func AsAppError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidPath) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	var re *ResolutionError
	if !errors.As(err, &re) {
		return err
	}
	var base *appErrors.Error
	switch re.Kind {
	case KindNotFound:
		base = appErrors.ErrReferenceNotFound
	case KindAmbiguousReference:
		base = appErrors.ErrAmbiguousReference
	default:
		base = appErrors.ErrStoreUnavailable
	}
	return appErrors.Wrap(re, base.Code, base.Status, re.Error())
}

func notFound(hop int, h Hop, collection models.Collection, key string) *ResolutionError {
	return &ResolutionError{Kind: KindNotFound, Hop: hop, Entity: h.label(), Collection: collection, Field: h.Field, Key: key}
}
