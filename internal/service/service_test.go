package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"posjet/backend/internal/domain"
	"posjet/backend/internal/store"
)

// stubRepo returns canned data until fail is flipped, then errors on
// every fetch. Auth methods are unused by the report service.
type stubRepo struct {
	fail         bool
	transactions []domain.TransactionRecord
	lineItems    []domain.TransactionLineItem
	stock        []domain.StockSnapshot
	customers    []domain.CustomerAggregate
}

var errStub = errors.New("stub repository failure")

func (s *stubRepo) ListTransactions(_ context.Context, from, to time.Time) ([]domain.TransactionRecord, error) {
	if s.fail {
		return nil, errStub
	}
	out := make([]domain.TransactionRecord, 0)
	for _, t := range s.transactions {
		if !t.BilledAt.Before(from) && t.BilledAt.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubRepo) ListRecentTransactions(_ context.Context, limit int) ([]domain.TransactionRecord, error) {
	if s.fail {
		return nil, errStub
	}
	if len(s.transactions) > limit {
		return s.transactions[:limit], nil
	}
	return s.transactions, nil
}

func (s *stubRepo) ListLineItems(_ context.Context, from, to time.Time) ([]domain.TransactionLineItem, error) {
	if s.fail {
		return nil, errStub
	}
	out := make([]domain.TransactionLineItem, 0)
	for _, li := range s.lineItems {
		if !li.BilledAt.Before(from) && li.BilledAt.Before(to) {
			out = append(out, li)
		}
	}
	return out, nil
}

func (s *stubRepo) ListBillItems(_ context.Context, billNo string, from, to time.Time) ([]domain.TransactionLineItem, error) {
	if s.fail {
		return nil, errStub
	}
	out := make([]domain.TransactionLineItem, 0)
	for _, li := range s.lineItems {
		if li.BillNo == billNo && !li.BilledAt.Before(from) && li.BilledAt.Before(to) {
			out = append(out, li)
		}
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (s *stubRepo) ListStockSnapshots(_ context.Context) ([]domain.StockSnapshot, error) {
	if s.fail {
		return nil, errStub
	}
	return s.stock, nil
}

func (s *stubRepo) ListCustomerAggregates(_ context.Context) ([]domain.CustomerAggregate, error) {
	if s.fail {
		return nil, errStub
	}
	return s.customers, nil
}

func (s *stubRepo) SubscribeTransactions(_ context.Context) (<-chan domain.TransactionRecord, error) {
	return nil, errStub
}

func (s *stubRepo) CreateUser(context.Context, domain.UserAccount) error { return nil }
func (s *stubRepo) ListUsers(context.Context) ([]domain.UserAccount, error) {
	return nil, nil
}
func (s *stubRepo) UpdateUserPassword(context.Context, string, string) error { return nil }

func newTestService(repo *stubRepo) *Service {
	return New(repo, nil, time.Second, time.UTC)
}

func TestDailySalesReportsOK(t *testing.T) {
	repo := &stubRepo{transactions: []domain.TransactionRecord{
		{ID: 1, BilledAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), NetAmount: 100, ItemsCount: 2},
		{ID: 2, BilledAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), NetAmount: 300, ItemsCount: 1},
	}}
	svc := newTestService(repo)

	rep := svc.DailySales(context.Background(), "2026-03-01", "2026-03-01")
	if rep.Status != domain.StatusOK {
		t.Fatalf("expected ok status, got %s", rep.Status)
	}
	if len(rep.Rows) != 1 || rep.Rows[0].NetSales != 400 {
		t.Fatalf("unexpected rows %+v", rep.Rows)
	}
	if rep.Totals.Bills != 2 {
		t.Fatalf("unexpected totals %+v", rep.Totals)
	}
}

func TestDailySalesEmptyWindowIsEmptyNotError(t *testing.T) {
	svc := newTestService(&stubRepo{})

	rep := svc.DailySales(context.Background(), "2026-03-01", "2026-03-01")
	if rep.Status != domain.StatusEmpty {
		t.Fatalf("no matching rows must report empty, got %s", rep.Status)
	}
	if rep.Rows == nil {
		t.Fatalf("rows must be an empty slice, not nil")
	}
}

func TestDailySalesInvalidRangeIsError(t *testing.T) {
	svc := newTestService(&stubRepo{})

	rep := svc.DailySales(context.Background(), "garbage", "2026-03-01")
	if rep.Status != domain.StatusError {
		t.Fatalf("unparseable window must report error, got %s", rep.Status)
	}
}

func TestFailedFetchKeepsStaleRows(t *testing.T) {
	repo := &stubRepo{transactions: []domain.TransactionRecord{
		{ID: 1, BilledAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), NetAmount: 250, ItemsCount: 1},
	}}
	svc := newTestService(repo)

	good := svc.DailySales(context.Background(), "2026-03-01", "2026-03-01")
	if good.Status != domain.StatusOK {
		t.Fatalf("setup: expected ok, got %s", good.Status)
	}

	repo.fail = true
	stale := svc.DailySales(context.Background(), "2026-03-01", "2026-03-01")
	if stale.Status != domain.StatusError {
		t.Fatalf("failed fetch must surface error status, got %s", stale.Status)
	}
	if len(stale.Rows) != 1 || stale.Rows[0].NetSales != 250 {
		t.Fatalf("failed fetch must keep the prior rows, got %+v", stale.Rows)
	}
}

func TestPaymentModesStaleOnError(t *testing.T) {
	repo := &stubRepo{transactions: []domain.TransactionRecord{
		{ID: 1, BilledAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), NetAmount: 100, PaymentMode: domain.PaymentUPI},
	}}
	svc := newTestService(repo)

	good := svc.PaymentModes(context.Background(), "2026-03-01", "2026-03-01")
	if good.Status != domain.StatusOK || good.Total.Amount != 100 {
		t.Fatalf("setup: unexpected report %+v", good)
	}

	repo.fail = true
	stale := svc.PaymentModes(context.Background(), "2026-03-01", "2026-03-01")
	if stale.Status != domain.StatusError || stale.Total.Amount != 100 {
		t.Fatalf("expected stale total preserved on error, got %+v", stale)
	}
}

func TestGSTRegisterMonthValidation(t *testing.T) {
	svc := newTestService(&stubRepo{})

	rep := svc.GSTRegister(context.Background(), "2026-13")
	if rep.Status != domain.StatusError {
		t.Fatalf("month 13 must report error, got %s", rep.Status)
	}
}

func TestDeadStockClampsThreshold(t *testing.T) {
	sold := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubRepo{stock: []domain.StockSnapshot{
		{ProductName: "Slow", CurrentStock: 3, StockValue: 120, DaysSinceSale: 40, LastSaleAt: &sold},
	}}
	svc := newTestService(repo)

	// A threshold of 5 clamps up to 30, so the 40-day row still qualifies.
	rep := svc.DeadStock(context.Background(), 5)
	if rep.ThresholdDays != 30 {
		t.Fatalf("expected clamped threshold 30, got %d", rep.ThresholdDays)
	}
	if len(rep.Rows) != 1 || rep.CapitalBlocked != 120 {
		t.Fatalf("unexpected dead stock report %+v", rep)
	}
}

func TestCustomerSegmentsFilter(t *testing.T) {
	repo := &stubRepo{customers: []domain.CustomerAggregate{
		{Name: "A", RecencyDays: 2, TotalVisits: 15, TotalSpent: 20000},
		{Name: "B", RecencyDays: 300, TotalVisits: 2, TotalSpent: 100},
	}}
	svc := newTestService(repo)

	all := svc.CustomerSegments(context.Background(), "")
	if len(all.Rows) != 2 {
		t.Fatalf("expected both customers, got %d", len(all.Rows))
	}

	lost := svc.CustomerSegments(context.Background(), "Lost")
	if len(lost.Rows) != 1 || lost.Rows[0].Name != "B" {
		t.Fatalf("unexpected filtered rows %+v", lost.Rows)
	}

	none := svc.CustomerSegments(context.Background(), "Champion Plus")
	if none.Status != domain.StatusEmpty {
		t.Fatalf("unknown segment filter must report empty, got %s", none.Status)
	}
}

func TestBillItemsScopedLookup(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	repo := &stubRepo{lineItems: []domain.TransactionLineItem{
		{BillNo: "77", ProductName: "Rice", BilledAt: day1},
		{BillNo: "77", ProductName: "Oil", BilledAt: day2}, // reused bill number
	}}
	svc := newTestService(repo)

	resp, err := svc.BillItems(context.Background(), "77", "2026-03-15")
	if err != nil {
		t.Fatalf("bill lookup: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ProductName != "Oil" {
		t.Fatalf("lookup must be scoped to the given day, got %+v", resp.Items)
	}

	if _, err := svc.BillItems(context.Background(), "", "2026-03-15"); !errors.Is(err, store.ErrInvalidRange) {
		t.Fatalf("blank bill number must be rejected, got %v", err)
	}
	if _, err := svc.BillItems(context.Background(), "77", "2026-03-02"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for wrong day, got %v", err)
	}
}

func TestResultCellDiscardsSupersededCommit(t *testing.T) {
	cell := &resultCell{}

	first := cell.begin()
	second := cell.begin()

	if cell.commit(first, []byte(`{"stale":true}`)) {
		t.Fatalf("a commit from a superseded request must be rejected")
	}
	if _, ok := cell.lastGood(); ok {
		t.Fatalf("rejected commit must not become last-good state")
	}

	if !cell.commit(second, []byte(`{"fresh":true}`)) {
		t.Fatalf("the newest request must commit")
	}
	payload, ok := cell.lastGood()
	if !ok || string(payload) != `{"fresh":true}` {
		t.Fatalf("unexpected last-good payload %q", payload)
	}
}

func TestStockSummaryLowFilter(t *testing.T) {
	repo := &stubRepo{stock: []domain.StockSnapshot{
		{ProductName: "A", CurrentStock: 2, StockValue: 20, ReorderMin: 5},
		{ProductName: "B", CurrentStock: 90, StockValue: 900, ReorderMin: 10},
	}}
	svc := newTestService(repo)

	full := svc.StockSummary(context.Background(), false)
	if len(full.Rows) != 2 || full.TotalValue != 920 || full.LowStockCount != 1 {
		t.Fatalf("unexpected summary %+v", full)
	}

	low := svc.StockSummary(context.Background(), true)
	if len(low.Rows) != 1 || low.Rows[0].ProductName != "A" {
		t.Fatalf("unexpected low-only rows %+v", low.Rows)
	}
	// Headline figures stay whole-inventory even when filtered.
	if low.TotalValue != 920 {
		t.Fatalf("total value must cover the whole inventory, got %v", low.TotalValue)
	}
}
