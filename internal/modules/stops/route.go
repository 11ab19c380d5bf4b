package stops

import (
	"math"

	"freight-ops/internal/models"
)

// SummarizeRoute computes route-level completion metrics over one order's
// stops. A stop counts as completed only once it has DEPARTED; SKIPPED stops
// still count toward the total so the percentage reflects planned work.
func SummarizeRoute(stopList []*models.Stop) models.RouteSummary {
	summary := models.RouteSummary{
		TotalStops: len(stopList),
		Configured: len(stopList) > 0,
	}

	for _, s := range stopList {
		if s.Status == models.StatusDeparted {
			summary.CompletedStops++
		}
		switch s.StopType {
		case models.StopTypePickup:
			summary.HasPickup = true
		case models.StopTypeDelivery:
			summary.HasDelivery = true
		}
	}

	if summary.TotalStops > 0 {
		pct := 100 * float64(summary.CompletedStops) / float64(summary.TotalStops)
		summary.CompletionPercentage = int(math.Round(pct))
	}
	return summary
}

// ValidateRoute fails closed on a misconfigured route. A route with stops
// must contain at least one pickup and one delivery, and no delivery may be
// sequenced before every pickup. An empty route is not an error; callers
// report it as "not configured" via RouteSummary.Configured.
func ValidateRoute(stopList []*models.Stop) error {
	if len(stopList) == 0 {
		return nil
	}

	summary := SummarizeRoute(stopList)
	var missing []models.StopType
	if !summary.HasPickup {
		missing = append(missing, models.StopTypePickup)
	}
	if !summary.HasDelivery {
		missing = append(missing, models.StopTypeDelivery)
	}
	if len(missing) > 0 {
		return &models.RouteConfigError{Missing: missing}
	}

	firstPickupSeq := 0
	for _, s := range stopList {
		if s.StopType == models.StopTypePickup && (firstPickupSeq == 0 || s.SequenceNumber < firstPickupSeq) {
			firstPickupSeq = s.SequenceNumber
		}
	}
	for _, s := range stopList {
		if s.StopType == models.StopTypeDelivery && s.SequenceNumber < firstPickupSeq {
			return &models.SequenceError{StopID: s.ID, SequenceNumber: s.SequenceNumber}
		}
	}
	return nil
}
