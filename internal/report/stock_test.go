package report

import (
	"testing"
	"time"

	"posjet/backend/internal/domain"
)

func TestClampDeadStockDays(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 90},
		{-5, 90},
		{10, 30},
		{90, 90},
		{400, 365},
	}
	for _, c := range cases {
		if got := ClampDeadStockDays(c.in); got != c.want {
			t.Fatalf("clamp(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDeadStockThresholdIsStrict(t *testing.T) {
	sold := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snapshots := []domain.StockSnapshot{
		{ProductName: "Fresh", CurrentStock: 10, StockValue: 100, DaysSinceSale: 30, LastSaleAt: &sold},
		{ProductName: "Aging", CurrentStock: 5, StockValue: 500, DaysSinceSale: 95, LastSaleAt: &sold},
		{ProductName: "Dead", CurrentStock: 2, StockValue: 900, DaysSinceSale: 120, LastSaleAt: nil},
		{ProductName: "SoldOut", CurrentStock: 0, StockValue: 0, DaysSinceSale: 200, LastSaleAt: nil},
		{ProductName: "Boundary", CurrentStock: 1, StockValue: 50, DaysSinceSale: 90, LastSaleAt: &sold},
	}

	rows, blocked := DeadStock(snapshots, 90)
	if len(rows) != 2 {
		t.Fatalf("expected exactly Aging and Dead, got %d rows", len(rows))
	}
	// Sorted by aging descending.
	if rows[0].ProductName != "Dead" || rows[1].ProductName != "Aging" {
		t.Fatalf("unexpected order %s, %s", rows[0].ProductName, rows[1].ProductName)
	}
	if rows[0].LastSaleDate != "never" {
		t.Fatalf("nil last sale must render as never, got %q", rows[0].LastSaleDate)
	}
	if rows[1].LastSaleDate != "2026-01-01" {
		t.Fatalf("unexpected last sale date %q", rows[1].LastSaleDate)
	}
	if blocked != 1400 {
		t.Fatalf("expected capital blocked 1400, got %v", blocked)
	}
}

func TestLowStockAndOverview(t *testing.T) {
	snapshots := []domain.StockSnapshot{
		{ProductName: "A", CurrentStock: 3, StockValue: 30, ReorderMin: 5},
		{ProductName: "B", CurrentStock: 50, StockValue: 500, ReorderMin: 10},
		{ProductName: "C", CurrentStock: 1, StockValue: 10, ReorderMin: 4},
	}

	low := LowStock(snapshots)
	if len(low) != 2 {
		t.Fatalf("expected 2 low-stock rows, got %d", len(low))
	}

	rows, total, lowCount := StockOverview(snapshots)
	if rows[0].ProductName != "C" || rows[2].ProductName != "B" {
		t.Fatalf("expected ascending stock order, got %s..%s", rows[0].ProductName, rows[2].ProductName)
	}
	if total != 540 || lowCount != 2 {
		t.Fatalf("unexpected overview total %v lowCount %d", total, lowCount)
	}
}
