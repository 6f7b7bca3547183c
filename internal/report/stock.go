package report

import (
	"sort"

	"posjet/backend/internal/domain"
)

const (
	DefaultDeadStockDays = 90
	minDeadStockDays     = 30
	maxDeadStockDays     = 365
)

// ClampDeadStockDays bounds a caller-supplied aging threshold to the
// supported 30..365 day range, falling back to the default when unset.
func ClampDeadStockDays(days int) int {
	if days <= 0 {
		return DefaultDeadStockDays
	}
	if days < minDeadStockDays {
		return minDeadStockDays
	}
	if days > maxDeadStockDays {
		return maxDeadStockDays
	}
	return days
}

// DeadStock filters snapshot rows down to in-stock products whose last
// sale is older than the threshold, sorted by aging descending. Capital
// blocked is the summed stock value of the filtered set.
func DeadStock(snapshots []domain.StockSnapshot, thresholdDays int) ([]domain.DeadStockRow, float64) {
	rows := make([]domain.DeadStockRow, 0, len(snapshots))
	blocked := 0.0
	for _, s := range snapshots {
		if s.CurrentStock <= 0 || s.DaysSinceSale <= thresholdDays {
			continue
		}
		row := domain.DeadStockRow{
			ProductName:   s.ProductName,
			CategoryName:  s.CategoryName,
			CurrentStock:  s.CurrentStock,
			StockValue:    s.StockValue,
			DaysSinceSale: s.DaysSinceSale,
		}
		if s.LastSaleAt != nil {
			row.LastSaleDate = s.LastSaleAt.Format("2006-01-02")
		} else {
			row.LastSaleDate = "never"
		}
		rows = append(rows, row)
		blocked += s.StockValue
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].DaysSinceSale > rows[j].DaysSinceSale
	})
	return rows, blocked
}

// LowStock flags rows below their reorder minimum regardless of aging.
func LowStock(snapshots []domain.StockSnapshot) []domain.StockSnapshot {
	rows := make([]domain.StockSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.CurrentStock < s.ReorderMin {
			rows = append(rows, s)
		}
	}
	return rows
}

// StockOverview totals the snapshot for the inventory summary view: rows
// sorted by current stock ascending, total valuation and low-stock count.
func StockOverview(snapshots []domain.StockSnapshot) ([]domain.StockSnapshot, float64, int) {
	rows := make([]domain.StockSnapshot, len(snapshots))
	copy(rows, snapshots)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CurrentStock < rows[j].CurrentStock
	})

	total := 0.0
	low := 0
	for _, s := range rows {
		total += s.StockValue
		if s.CurrentStock < s.ReorderMin {
			low++
		}
	}
	return rows, total, low
}
