package stops

import (
	"freight-ops/internal/models"
)

// NextAction returns the single legal next step for a stop, or nil once the
// stop is in a terminal status (DEPARTED or SKIPPED).
//
// The switch is deliberately exhaustive over the closed status set with no
// default success path: a status added to the model without a mapping here
// comes back as ErrUnknownStatus, and the package tests walk every
// (status, stopType) pair to catch it.
func NextAction(status models.StopStatus, stopType models.StopType) (*models.StopAction, error) {
	switch status {
	case models.StatusPending:
		return &models.StopAction{Label: "Mark En Route", TargetStatus: models.StatusEnRoute}, nil
	case models.StatusEnRoute:
		return &models.StopAction{Label: "Mark Arrived", TargetStatus: models.StatusArrived}, nil
	case models.StatusArrived:
		// The only fork in the lifecycle: pickups load, everything else unloads.
		if stopType == models.StopTypePickup {
			return &models.StopAction{Label: "Start Loading", TargetStatus: models.StatusLoading}, nil
		}
		return &models.StopAction{Label: "Start Unloading", TargetStatus: models.StatusUnloading}, nil
	case models.StatusLoading:
		return &models.StopAction{Label: "Finish Loading", TargetStatus: models.StatusLoaded}, nil
	case models.StatusUnloading:
		return &models.StopAction{Label: "Finish Unloading", TargetStatus: models.StatusUnloaded}, nil
	case models.StatusLoaded, models.StatusUnloaded:
		return &models.StopAction{Label: "Mark Departed", TargetStatus: models.StatusDeparted}, nil
	case models.StatusDeparted, models.StatusSkipped:
		return nil, nil
	}
	return nil, models.ErrUnknownStatus
}

// CanMarkArrived reports whether the "mark arrived" shortcut applies.
// ARRIVED is reachable from exactly one predecessor.
func CanMarkArrived(status models.StopStatus) bool {
	return status == models.StatusEnRoute
}

// CanMarkDeparted reports whether the "mark departed" shortcut applies.
// DEPARTED is reachable only once loading or unloading has finished.
func CanMarkDeparted(status models.StopStatus) bool {
	return status == models.StatusLoaded || status == models.StatusUnloaded
}
