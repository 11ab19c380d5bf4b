package models

import "time"

// StopType classifies what happens at a stop. STOP is a waypoint where no
// cargo changes hands.
type StopType string

const (
	StopTypePickup   StopType = "PICKUP"
	StopTypeDelivery StopType = "DELIVERY"
	StopTypeWaypoint StopType = "STOP"
)

// AllStopTypes lists every stop type; used to iterate the closed set.
var AllStopTypes = []StopType{StopTypePickup, StopTypeDelivery, StopTypeWaypoint}

// StopStatus is the lifecycle state of a stop. It only moves forward through
// the ordered lifecycle, except for the SKIPPED terminal exit which is applied
// by the upstream system, never proposed by this service.
type StopStatus string

const (
	StatusPending   StopStatus = "PENDING"
	StatusEnRoute   StopStatus = "EN_ROUTE"
	StatusArrived   StopStatus = "ARRIVED"
	StatusLoading   StopStatus = "LOADING"
	StatusUnloading StopStatus = "UNLOADING"
	StatusLoaded    StopStatus = "LOADED"
	StatusUnloaded  StopStatus = "UNLOADED"
	StatusDeparted  StopStatus = "DEPARTED"
	StatusSkipped   StopStatus = "SKIPPED"
)

// AllStopStatuses lists every lifecycle state. Tests iterate this slice so an
// added status without a transition mapping fails loudly.
var AllStopStatuses = []StopStatus{
	StatusPending,
	StatusEnRoute,
	StatusArrived,
	StatusLoading,
	StatusUnloading,
	StatusLoaded,
	StatusUnloaded,
	StatusDeparted,
	StatusSkipped,
}

// Stop is one physical stop on a load's route, as read from the upstream TMS.
// The authoritative record lives upstream; this service only holds snapshots.
type Stop struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	SequenceNumber int        `json:"sequence_number"`
	StopType       StopType   `json:"stop_type"`
	Status         StopStatus `json:"status"`

	// Scheduled appointment window; all optional.
	AppointmentDate     *time.Time `json:"appointment_date,omitempty"`
	AppointmentTimeFrom *time.Time `json:"appointment_time_from,omitempty"`
	AppointmentTimeTo   *time.Time `json:"appointment_time_to,omitempty"`

	// Actual timestamps, each set at most once by the upstream system.
	// DepartedAt is never present without ArrivedAt.
	ArrivedAt  *time.Time `json:"arrived_at,omitempty"`
	DepartedAt *time.Time `json:"departed_at,omitempty"`

	// Tariff parameters for this stop; defaults apply when absent.
	FreeTimeMinutes *int     `json:"free_time_minutes,omitempty"`
	DetentionRate   *float64 `json:"detention_rate,omitempty"`

	// Cargo quantities, informational only.
	Weight  *float64 `json:"weight,omitempty"`
	Pieces  *int     `json:"pieces,omitempty"`
	Pallets *int     `json:"pallets,omitempty"`
}

// Terminal reports whether no further action is ever offered for the status.
func (s StopStatus) Terminal() bool {
	return s == StatusDeparted || s == StatusSkipped
}

// StopAction is the single legal next step for a stop, ready for display.
type StopAction struct {
	Label        string     `json:"label"`
	TargetStatus StopStatus `json:"target_status"`
}

// TransitionCommand is the mutation handed to the upstream "update stop
// status" operation. RequestID correlates log lines with upstream requests.
type TransitionCommand struct {
	RequestID    string     `json:"request_id"`
	StopID       string     `json:"stop_id"`
	OrderID      string     `json:"order_id"`
	TargetStatus StopStatus `json:"target_status"`
}

// AdvanceRequest is the body of the generic transition endpoint.
type AdvanceRequest struct {
	TargetStatus StopStatus `json:"target_status" validate:"required"`
}

// DwellTime is elapsed time at a stop, truncated to whole hours and minutes.
// Live is true while the stop has not departed and the value is computed
// against the caller's current time.
type DwellTime struct {
	Hours        int  `json:"hours"`
	Minutes      int  `json:"minutes"`
	TotalMinutes int  `json:"total_minutes"`
	Live         bool `json:"live"`
}

// DetentionSummary is the billable-time breakdown for a stop. Charge is in
// dollars; BillableHours carries the 8-hour policy cap already applied.
type DetentionSummary struct {
	DwellMinutes    int     `json:"dwell_minutes"`
	BillableMinutes int     `json:"billable_minutes"`
	BillableHours   float64 `json:"billable_hours"`
	Charge          float64 `json:"charge"`
	HasDetention    bool    `json:"has_detention"`
	// Billable duration for display, minutes rounded.
	DisplayHours   int `json:"display_hours"`
	DisplayMinutes int `json:"display_minutes"`
}

// Arrival variance classifications.
const (
	VarianceOnTime = "ON_TIME"
	VarianceLate   = "LATE"
	VarianceEarly  = "EARLY"
)

// ArrivalVariance compares the actual arrival against the start of the
// scheduled appointment window.
type ArrivalVariance struct {
	DiffMinutes int    `json:"diff_minutes"`
	Status      string `json:"status"`
	Label       string `json:"label"`
}

// StopDetail is a stop snapshot joined with its next action and derived
// values. Nil fields mean "not yet applicable", not an error.
type StopDetail struct {
	Stop       *Stop             `json:"stop"`
	NextAction *StopAction       `json:"next_action,omitempty"`
	Dwell      *DwellTime        `json:"dwell,omitempty"`
	Detention  *DetentionSummary `json:"detention,omitempty"`
	Variance   *ArrivalVariance  `json:"arrival_variance,omitempty"`
}
