package domain

import "fmt"

// UsageReport describes the cost of one completed request.
type UsageReport struct {
	Units     int64
	Cost      float64
	Account   AccountRecord
	Aggregate AggregateRecord

	SessionRequests int64
	SessionUnits    int64
	SessionCost     float64
}

// FormatCents renders a fractional cent amount the way usage notices show it.
func FormatCents(cents float64) string {
	return fmt.Sprintf("¢%.3f", cents)
}

func CompactUnits(v int64) string {
	if v < 1_000 {
		return fmt.Sprintf("%d", v)
	}

	if v < 1_000_000 {
		return fmt.Sprintf("%.1fk", float64(v)/1_000)
	}

	return fmt.Sprintf("%.1fM", float64(v)/1_000_000)
}
