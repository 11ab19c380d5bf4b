package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("requested resource not found")
var ErrNoNextAction = errors.New("stop is in a terminal status, no further action is available")
var ErrIllegalTransition = errors.New("requested status is not the legal next step for this stop")
var ErrTransitionInFlight = errors.New("a transition for this stop is already in flight")
var ErrRouteNotConfigured = errors.New("route has no stops configured")
var ErrUnknownStatus = errors.New("unknown stop status")

// RouteConfigError reports an invalid route configuration, naming exactly the
// stop roles the route is missing. It is never auto-corrected.
type RouteConfigError struct {
	Missing []StopType
}

func (e *RouteConfigError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, t := range e.Missing {
		names = append(names, string(t))
	}
	return fmt.Sprintf("invalid route configuration: missing %s stop", strings.Join(names, " and "))
}

// SequenceError reports a delivery stop sequenced before every pickup on the
// route, which would have the driver delivering cargo not yet on the truck.
type SequenceError struct {
	StopID         string
	SequenceNumber int
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("invalid route configuration: delivery stop %s at sequence %d precedes all pickups", e.StopID, e.SequenceNumber)
}

// ErrorResponse is the uniform JSON error body returned by handlers.
type ErrorResponse struct {
	Message string `json:"message"`
}
