// Package rfm segments customers by recency, frequency and monetary value.
package rfm

import "posjet/backend/internal/domain"

type Segment string

const (
	SegmentChampion   Segment = "Champion"
	SegmentLoyal      Segment = "Loyal"
	SegmentOccasional Segment = "New/Occasional"
	SegmentAtRisk     Segment = "At Risk"
	SegmentLost       Segment = "Lost"
)

// Segmentation thresholds. Recency cuts are checked first so the
// partition is total with no overlapping ranges.
const (
	lostAfterDays   = 180
	atRiskAfterDays = 90

	championVisits = 10
	championSpend  = 10000

	loyalVisits = 4
)

// Classify maps a customer's precomputed recency/frequency/monetary tuple
// to one of the five fixed segments. Every customer gets a segment; the
// fallback is New/Occasional, never unclassified.
func Classify(recencyDays int, totalVisits int, totalSpent float64) Segment {
	switch {
	case recencyDays > lostAfterDays:
		return SegmentLost
	case recencyDays > atRiskAfterDays:
		return SegmentAtRisk
	case totalVisits >= championVisits && totalSpent >= championSpend:
		return SegmentChampion
	case totalVisits >= loyalVisits:
		return SegmentLoyal
	default:
		return SegmentOccasional
	}
}

// ClassifyAll attaches a segment to each customer aggregate.
func ClassifyAll(customers []domain.CustomerAggregate) []domain.CustomerSegmentRow {
	rows := make([]domain.CustomerSegmentRow, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, domain.CustomerSegmentRow{
			CustomerAggregate: c,
			Segment:           string(Classify(c.RecencyDays, c.TotalVisits, c.TotalSpent)),
		})
	}
	return rows
}
