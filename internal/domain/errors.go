package domain

import (
	"errors"
	"fmt"
)

// Input errors. Any of these aborts a run before output is written.
var (
	ErrEmptyGraph     = errors.New("street graph has no nodes")
	ErrInvalidGraph   = errors.New("invalid street graph")
	ErrNoPOIs         = errors.New("no points of interest")
	ErrNoAreaUnits    = errors.New("no area units")
	ErrMissingField   = errors.New("missing required attribute")
	ErrInvalidFeature = errors.New("invalid feature")
)

// Engine errors.
var (
	ErrNoSources    = errors.New("no source nodes")
	ErrUnknownNode  = errors.New("unknown node")
	ErrNoIsochrones = errors.New("no isochrones could be built for any point of interest")
)

// SkipReason is a machine-readable cause for a skipped item. Values double as
// metric label values.
type SkipReason string

const (
	ReasonNoGeometry          SkipReason = "no_geometry"
	ReasonUnsupportedGeometry SkipReason = "unsupported_geometry"
	ReasonNoSourceNode        SkipReason = "no_source_node"
	ReasonNoReachableNodes    SkipReason = "no_reachable_nodes"
	ReasonDegeneratePolygon   SkipReason = "degenerate_polygon"
	ReasonInvalidPolygon      SkipReason = "invalid_polygon"
	ReasonZeroPopulation      SkipReason = "zero_population"
	ReasonEmptyGeometry       SkipReason = "empty_geometry"
	ReasonGeometryError       SkipReason = "geometry_error"
	ReasonNoMembers           SkipReason = "no_members"
)

// SkipError is a recoverable failure for a single item.
type SkipError struct {
	Reason SkipReason
	Err    error
}

// Skipf builds a SkipError with a formatted cause.
func Skipf(reason SkipReason, format string, args ...any) *SkipError {
	return &SkipError{Reason: reason, Err: fmt.Errorf(format, args...)}
}

func (e *SkipError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *SkipError) Unwrap() error { return e.Err }

// AsSkip converts err into a Skip record for stage and item. It returns false
// when err is not a SkipError, which callers treat as fatal.
func AsSkip(err error, stage, itemID string) (Skip, bool) {
	var se *SkipError
	if !errors.As(err, &se) {
		return Skip{}, false
	}
	s := Skip{Stage: stage, ItemID: itemID, Reason: se.Reason}
	if se.Err != nil {
		s.Detail = se.Err.Error()
	}
	return s, true
}
