package stops

import (
	"fmt"
	"math"
	"time"

	"freight-ops/internal/models"
)

// Tariff defaults applied when a stop carries no override.
const (
	DefaultFreeTimeMinutes = 120
	DefaultDetentionRate   = 75.0
)

// DetentionCapHours caps billable detention regardless of actual dwell.
// This is invoicing policy, not a data limitation.
const DetentionCapHours = 8

// OnTimeToleranceMinutes is the band around the scheduled time still counted
// as on time. Fixed business policy today; kept as a named constant in case
// it ever becomes tenant-configurable.
const OnTimeToleranceMinutes = 5

// Dwell computes elapsed time at a stop. Until departure is recorded the
// value runs against the supplied now, so it is only as fresh as the read.
// Returns nil when the stop has not arrived.
func Dwell(stop *models.Stop, now time.Time) *models.DwellTime {
	if stop == nil || stop.ArrivedAt == nil {
		return nil
	}

	end := now
	live := true
	if stop.DepartedAt != nil {
		end = *stop.DepartedAt
		live = false
	}

	total := floorMinutes(end.Sub(*stop.ArrivedAt))
	return &models.DwellTime{
		Hours:        total / 60,
		Minutes:      total % 60,
		TotalMinutes: total,
		Live:         live,
	}
}

// Detention computes the billable-time breakdown for a stop: dwell less free
// time, floored at zero, capped at DetentionCapHours. The cap-and-floor order
// determines real invoiced amounts and must not change. A stop without a
// departure produces a live estimate against now. Returns nil when the stop
// has not arrived.
func Detention(stop *models.Stop, now time.Time) *models.DetentionSummary {
	if stop == nil || stop.ArrivedAt == nil {
		return nil
	}

	end := now
	if stop.DepartedAt != nil {
		end = *stop.DepartedAt
	}

	freeMinutes := DefaultFreeTimeMinutes
	if stop.FreeTimeMinutes != nil {
		freeMinutes = *stop.FreeTimeMinutes
	}
	rate := DefaultDetentionRate
	if stop.DetentionRate != nil {
		rate = *stop.DetentionRate
	}

	dwellMinutes := floorMinutes(end.Sub(*stop.ArrivedAt))
	billableMinutes := dwellMinutes - freeMinutes
	if billableMinutes < 0 {
		billableMinutes = 0
	}
	billableHours := math.Min(float64(billableMinutes)/60, DetentionCapHours)

	summary := &models.DetentionSummary{
		DwellMinutes:    dwellMinutes,
		BillableMinutes: billableMinutes,
		BillableHours:   billableHours,
	}
	if billableHours <= 0 {
		return summary
	}

	summary.HasDetention = true
	summary.Charge = billableHours * rate

	// Billable duration for display, minutes rounded after the cap.
	displayTotal := int(math.Round(billableHours * 60))
	summary.DisplayHours = displayTotal / 60
	summary.DisplayMinutes = displayTotal % 60

	return summary
}

// Variance classifies the actual arrival against the start of the scheduled
// appointment window. Returns nil unless both timestamps are present.
func Variance(stop *models.Stop) *models.ArrivalVariance {
	if stop == nil || stop.ArrivedAt == nil || stop.AppointmentTimeFrom == nil {
		return nil
	}

	diff := floorMinutes(stop.ArrivedAt.Sub(*stop.AppointmentTimeFrom))
	v := &models.ArrivalVariance{DiffMinutes: diff}

	switch {
	case diff > OnTimeToleranceMinutes:
		v.Status = models.VarianceLate
		v.Label = "late by " + formatHoursMinutes(diff)
	case diff < -OnTimeToleranceMinutes:
		v.Status = models.VarianceEarly
		v.Label = "early by " + formatHoursMinutes(-diff)
	default:
		v.Status = models.VarianceOnTime
		v.Label = "on time"
	}
	return v
}

// floorMinutes converts a duration to whole minutes, flooring rather than
// truncating so that negative diffs round away from zero.
func floorMinutes(d time.Duration) int {
	return int(math.Floor(d.Minutes()))
}

func formatHoursMinutes(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
