package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"posjet/backend/internal/cache"
	"posjet/backend/internal/domain"
	"posjet/backend/internal/report"
	"posjet/backend/internal/rfm"
	"posjet/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service orchestrates the report builders: it fetches from the record
// store, reduces, and manages last-good state per report kind so a failed
// fetch shows stale-but-valid rows instead of a blank screen.
type Service struct {
	repo     store.Repository
	cache    cache.ReportCache
	cacheTTL time.Duration
	loc      *time.Location

	mu    sync.Mutex
	cells map[string]*resultCell
}

func New(repo store.Repository, reportCache cache.ReportCache, cacheTTL time.Duration, loc *time.Location) *Service {
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:     repo,
		cache:    reportCache,
		cacheTTL: cacheTTL,
		loc:      loc,
		cells:    make(map[string]*resultCell),
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// resultCell tracks the in-flight generation and last good payload of one
// report kind. A request that resolves after a newer one began is
// superseded: its result is discarded, never merged.
type resultCell struct {
	mu   sync.Mutex
	gen  uint64
	last []byte
	has  bool
}

func (c *resultCell) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

func (c *resultCell) commit(gen uint64, payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.last = payload
	c.has = true
	return true
}

func (c *resultCell) lastGood() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.has
}

func (s *Service) cell(kind string) *resultCell {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[kind]
	if !ok {
		c = &resultCell{}
		s.cells[kind] = c
	}
	return c
}

func cacheKey(kind string, parts ...string) string {
	return "report:" + kind + ":" + strings.Join(parts, ":")
}

func (s *Service) fromCache(ctx context.Context, key string) ([]byte, bool) {
	payload, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Printf("[service] WARN: report cache get failed key=%s: %v", key, err)
		return nil, false
	}
	return payload, ok
}

func (s *Service) toCache(ctx context.Context, key string, payload []byte) {
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: report cache set failed key=%s: %v", key, err)
	}
}

func decodeInto[R any](payload []byte) (R, bool) {
	var out R
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, false
	}
	return out, true
}

func (s *Service) DailySales(ctx context.Context, from string, to string) domain.DailySalesReport {
	rep := domain.DailySalesReport{From: from, To: to, Status: domain.StatusOK, Rows: []domain.DailySalesRow{}}
	w, err := report.ParseWindow(from, to, s.loc)
	if err != nil {
		rep.Status = domain.StatusError
		return rep
	}

	key := cacheKey("daily-sales", from, to)
	if payload, ok := s.fromCache(ctx, key); ok {
		if out, ok := decodeInto[domain.DailySalesReport](payload); ok {
			return out
		}
	}

	cell := s.cell("daily-sales")
	gen := cell.begin()

	records, err := s.repo.ListTransactions(ctx, w.Start, w.End)
	if err != nil {
		log.Printf("[service] daily sales fetch failed: %v", err)
		rep.Status = domain.StatusError
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.DailySalesReport](prev); ok {
				rep.Rows, rep.Totals, rep.SkippedRows = out.Rows, out.Totals, out.SkippedRows
			}
		}
		return rep
	}

	rep.Rows, rep.SkippedRows = report.DailySales(records, w)
	rep.Totals = report.SumDailySales(rep.Rows)
	if len(rep.Rows) == 0 {
		rep.Status = domain.StatusEmpty
	}

	payload, _ := json.Marshal(rep)
	if !cell.commit(gen, payload) {
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.DailySalesReport](prev); ok {
				return out
			}
		}
		return rep
	}
	s.toCache(ctx, key, payload)
	return rep
}

func (s *Service) ItemProfit(ctx context.Context, from string, to string) domain.ItemProfitReport {
	rep := domain.ItemProfitReport{From: from, To: to, Status: domain.StatusOK, Rows: []domain.ItemProfitRow{}}
	w, err := report.ParseWindow(from, to, s.loc)
	if err != nil {
		rep.Status = domain.StatusError
		return rep
	}

	key := cacheKey("item-profit", from, to)
	if payload, ok := s.fromCache(ctx, key); ok {
		if out, ok := decodeInto[domain.ItemProfitReport](payload); ok {
			return out
		}
	}

	cell := s.cell("item-profit")
	gen := cell.begin()

	items, err := s.repo.ListLineItems(ctx, w.Start, w.End)
	if err != nil {
		log.Printf("[service] item profit fetch failed: %v", err)
		rep.Status = domain.StatusError
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.ItemProfitReport](prev); ok {
				rep.Rows = out.Rows
				rep.TotalSales, rep.TotalProfit, rep.AvgMargin = out.TotalSales, out.TotalProfit, out.AvgMargin
				rep.SkippedRows = out.SkippedRows
			}
		}
		return rep
	}

	rep.Rows, rep.SkippedRows = report.ItemProfit(items, w)
	for _, r := range rep.Rows {
		rep.TotalSales += r.TotalSales
		rep.TotalProfit += r.TotalProfit
	}
	if rep.TotalSales != 0 {
		rep.AvgMargin = rep.TotalProfit / rep.TotalSales * 100
	}
	if len(rep.Rows) == 0 {
		rep.Status = domain.StatusEmpty
	}

	payload, _ := json.Marshal(rep)
	if !cell.commit(gen, payload) {
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.ItemProfitReport](prev); ok {
				return out
			}
		}
		return rep
	}
	s.toCache(ctx, key, payload)
	return rep
}

func (s *Service) CategoryProfit(ctx context.Context, from string, to string) domain.CategoryProfitReport {
	rep := domain.CategoryProfitReport{From: from, To: to, Status: domain.StatusOK, Rows: []domain.CategoryProfitRow{}}
	w, err := report.ParseWindow(from, to, s.loc)
	if err != nil {
		rep.Status = domain.StatusError
		return rep
	}

	cell := s.cell("category-profit")
	gen := cell.begin()

	items, err := s.repo.ListLineItems(ctx, w.Start, w.End)
	if err != nil {
		log.Printf("[service] category profit fetch failed: %v", err)
		rep.Status = domain.StatusError
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.CategoryProfitReport](prev); ok {
				rep.Rows, rep.SkippedRows = out.Rows, out.SkippedRows
			}
		}
		return rep
	}

	rep.Rows, rep.SkippedRows = report.CategoryProfit(items, w)
	if len(rep.Rows) == 0 {
		rep.Status = domain.StatusEmpty
	}

	payload, _ := json.Marshal(rep)
	if !cell.commit(gen, payload) {
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.CategoryProfitReport](prev); ok {
				return out
			}
		}
	}
	return rep
}

func (s *Service) PaymentModes(ctx context.Context, from string, to string) domain.PaymentModeReport {
	rep := domain.PaymentModeReport{From: from, To: to, Status: domain.StatusOK, Rows: []domain.PaymentModeRow{}}
	w, err := report.ParseWindow(from, to, s.loc)
	if err != nil {
		rep.Status = domain.StatusError
		return rep
	}

	key := cacheKey("payment-modes", from, to)
	if payload, ok := s.fromCache(ctx, key); ok {
		if out, ok := decodeInto[domain.PaymentModeReport](payload); ok {
			return out
		}
	}

	cell := s.cell("payment-modes")
	gen := cell.begin()

	records, err := s.repo.ListTransactions(ctx, w.Start, w.End)
	if err != nil {
		log.Printf("[service] payment mode fetch failed: %v", err)
		rep.Status = domain.StatusError
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.PaymentModeReport](prev); ok {
				rep.Rows, rep.Total, rep.SkippedRows = out.Rows, out.Total, out.SkippedRows
			}
		}
		return rep
	}

	rep.Rows, rep.Total, rep.SkippedRows = report.PaymentModes(records, w)
	if len(rep.Rows) == 0 {
		rep.Status = domain.StatusEmpty
	}

	payload, _ := json.Marshal(rep)
	if !cell.commit(gen, payload) {
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.PaymentModeReport](prev); ok {
				return out
			}
		}
		return rep
	}
	s.toCache(ctx, key, payload)
	return rep
}

func (s *Service) GSTRegister(ctx context.Context, month string) domain.GSTReport {
	rep := domain.GSTReport{Month: month, Status: domain.StatusOK, Rows: []domain.GSTRow{}}
	w, err := report.MonthWindow(month, s.loc)
	if err != nil {
		rep.Status = domain.StatusError
		return rep
	}

	key := cacheKey("gst-register", month)
	if payload, ok := s.fromCache(ctx, key); ok {
		if out, ok := decodeInto[domain.GSTReport](payload); ok {
			return out
		}
	}

	cell := s.cell("gst-register")
	gen := cell.begin()

	records, err := s.repo.ListTransactions(ctx, w.Start, w.End)
	if err != nil {
		log.Printf("[service] gst register fetch failed: %v", err)
		rep.Status = domain.StatusError
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.GSTReport](prev); ok {
				rep.Rows, rep.Totals, rep.SkippedRows = out.Rows, out.Totals, out.SkippedRows
			}
		}
		return rep
	}

	rep.Rows, rep.Totals, rep.SkippedRows = report.GSTRegister(records, w)
	if len(rep.Rows) == 0 {
		rep.Status = domain.StatusEmpty
	}

	payload, _ := json.Marshal(rep)
	if !cell.commit(gen, payload) {
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.GSTReport](prev); ok {
				return out
			}
		}
		return rep
	}
	s.toCache(ctx, key, payload)
	return rep
}

func (s *Service) DeadStock(ctx context.Context, thresholdDays int) domain.DeadStockReport {
	thresholdDays = report.ClampDeadStockDays(thresholdDays)
	rep := domain.DeadStockReport{ThresholdDays: thresholdDays, Status: domain.StatusOK, Rows: []domain.DeadStockRow{}}

	cell := s.cell("dead-stock")
	gen := cell.begin()

	snapshots, err := s.repo.ListStockSnapshots(ctx)
	if err != nil {
		log.Printf("[service] dead stock fetch failed: %v", err)
		rep.Status = domain.StatusError
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.DeadStockReport](prev); ok {
				rep.Rows, rep.CapitalBlocked = out.Rows, out.CapitalBlocked
			}
		}
		return rep
	}

	rep.Rows, rep.CapitalBlocked = report.DeadStock(snapshots, thresholdDays)
	if len(rep.Rows) == 0 {
		rep.Status = domain.StatusEmpty
	}

	payload, _ := json.Marshal(rep)
	if !cell.commit(gen, payload) {
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.DeadStockReport](prev); ok {
				return out
			}
		}
	}
	return rep
}

func (s *Service) StockSummary(ctx context.Context, lowOnly bool) domain.StockSummaryReport {
	rep := domain.StockSummaryReport{Status: domain.StatusOK, Rows: []domain.StockSnapshot{}}

	cell := s.cell("stock-summary")
	gen := cell.begin()

	snapshots, err := s.repo.ListStockSnapshots(ctx)
	if err != nil {
		log.Printf("[service] stock summary fetch failed: %v", err)
		rep.Status = domain.StatusError
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.StockSummaryReport](prev); ok {
				rep.Rows, rep.TotalValue, rep.LowStockCount = out.Rows, out.TotalValue, out.LowStockCount
			}
		}
		return rep
	}

	rows, total, low := report.StockOverview(snapshots)
	rep.TotalValue, rep.LowStockCount = total, low
	if lowOnly {
		rep.Rows = report.LowStock(rows)
	} else {
		rep.Rows = rows
	}
	if len(rep.Rows) == 0 {
		rep.Status = domain.StatusEmpty
	}

	payload, _ := json.Marshal(rep)
	if !cell.commit(gen, payload) {
		if prev, ok := cell.lastGood(); ok {
			if out, ok := decodeInto[domain.StockSummaryReport](prev); ok {
				return out
			}
		}
	}
	return rep
}

func (s *Service) CustomerSegments(ctx context.Context, segment string) domain.CustomerSegmentReport {
	rep := domain.CustomerSegmentReport{Status: domain.StatusOK, Rows: []domain.CustomerSegmentRow{}}

	customers, err := s.repo.ListCustomerAggregates(ctx)
	if err != nil {
		log.Printf("[service] customer fetch failed: %v", err)
		rep.Status = domain.StatusError
		return rep
	}

	rows := rfm.ClassifyAll(customers)
	if segment != "" {
		filtered := rows[:0]
		for _, r := range rows {
			if r.Segment == segment {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	rep.Rows = rows
	if len(rows) == 0 {
		rep.Status = domain.StatusEmpty
	}
	return rep
}

// BillItems looks up one bill's line items. Bill numbers repeat across
// periods, so the lookup is scoped to the bill's calendar day.
func (s *Service) BillItems(ctx context.Context, billNo string, date string) (domain.BillItemsResponse, error) {
	billNo = strings.TrimSpace(billNo)
	if billNo == "" {
		return domain.BillItemsResponse{}, fmt.Errorf("%w: bill number required", store.ErrInvalidRange)
	}
	w, err := report.ParseWindow(date, date, s.loc)
	if err != nil {
		return domain.BillItemsResponse{}, fmt.Errorf("%w: %v", store.ErrInvalidRange, err)
	}

	items, err := s.repo.ListBillItems(ctx, billNo, w.Start, w.End)
	if err != nil {
		return domain.BillItemsResponse{}, err
	}
	return domain.BillItemsResponse{BillNo: billNo, Items: items}, nil
}
