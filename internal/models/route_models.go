package models

// RouteSummary reports route-level completion metrics for one order's stops.
// Configured is false for an empty route, which is informational rather than
// an error: the load simply has no stops yet.
type RouteSummary struct {
	TotalStops           int  `json:"total_stops"`
	CompletedStops       int  `json:"completed_stops"`
	CompletionPercentage int  `json:"completion_percentage"`
	HasPickup            bool `json:"has_pickup"`
	HasDelivery          bool `json:"has_delivery"`
	Configured           bool `json:"configured"`
}

// RouteOverview is the full read model for an order's route: the summary plus
// each stop joined with its derived values, in sequence order. ConfigError is
// set when the route is misconfigured; next actions are withheld until it is
// resolved.
type RouteOverview struct {
	OrderID     string        `json:"order_id"`
	Summary     RouteSummary  `json:"summary"`
	ConfigError string        `json:"config_error,omitempty"`
	Stops       []*StopDetail `json:"stops"`
}
