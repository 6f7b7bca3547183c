package live

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"posjet/backend/internal/domain"
	"posjet/backend/internal/xid"
)

const (
	StateSeeding = "seeding"
	StateLive    = "live"

	// DefaultSeedLimit matches the dashboard's recent-transactions fetch.
	DefaultSeedLimit = 50
)

// Seeder is the slice of the record store the aggregator needs to build
// its baseline.
type Seeder interface {
	ListRecentTransactions(ctx context.Context, limit int) ([]domain.TransactionRecord, error)
}

// Aggregator maintains today's running sales totals for one dashboard
// session. It is seeded once from a bulk fetch and then fed insert events
// one at a time; it never rescans the full list to refresh the totals.
// Each session owns its own instance; there is no cross-session state.
type Aggregator struct {
	mu        sync.RWMutex
	sessionID string
	loc       *time.Location
	now       func() time.Time
	maxList   int

	state string
	day   string
	seen  map[int64]struct{}
	// list is kept sorted by BilledAt descending; events insert in place.
	list []domain.TransactionRecord

	net, gross, discount, profit float64
	items, bills                 int
	skipped, duplicates          int
}

// Option tweaks an Aggregator; used by tests to pin the clock.
type Option func(*Aggregator)

// WithClock overrides the wall-clock source used for day-boundary checks.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithMaxList bounds the retained transaction list.
func WithMaxList(n int) Option {
	return func(a *Aggregator) { a.maxList = n }
}

func New(loc *time.Location, opts ...Option) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	a := &Aggregator{
		sessionID: xid.New("live"),
		loc:       loc,
		now:       time.Now,
		maxList:   DefaultSeedLimit,
		state:     StateSeeding,
		seen:      make(map[int64]struct{}, 64),
		list:      make([]domain.TransactionRecord, 0, 64),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.day = a.today()
	return a
}

// Seed loads the baseline from the store and transitions to live. A failed
// fetch still transitions; the session starts from an empty baseline
// instead of blocking forever.
func (a *Aggregator) Seed(ctx context.Context, src Seeder, limit int) {
	if limit < 1 {
		limit = DefaultSeedLimit
	}
	records, err := src.ListRecentTransactions(ctx, limit)
	if err != nil {
		log.Printf("[live] seed fetch failed, starting with empty baseline: %v", err)
		records = nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.day = a.today()
	for _, rec := range records {
		if rec.ID == 0 || rec.BilledAt.IsZero() {
			a.skipped++
			continue
		}
		if _, dup := a.seen[rec.ID]; dup {
			a.duplicates++
			continue
		}
		a.seen[rec.ID] = struct{}{}
		a.insert(rec)
		if a.dateOf(rec.BilledAt) == a.day {
			a.fold(rec)
		}
	}
	a.state = StateLive
}

// Run consumes the insert feed until ctx is cancelled or the channel
// closes. Events are applied strictly one at a time; a malformed event is
// skipped and never stops the feed.
func (a *Aggregator) Run(ctx context.Context, events <-chan domain.TransactionRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-events:
			if !ok {
				return
			}
			a.Apply(rec)
		}
	}
}

// Apply merges one insert event. The today decision uses the wall clock at
// processing time, not a date cached at seed time, so a session left open
// across midnight rolls over to a fresh empty today bucket.
func (a *Aggregator) Apply(rec domain.TransactionRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rollover()

	if rec.ID == 0 || rec.BilledAt.IsZero() {
		a.skipped++
		return
	}
	if _, dup := a.seen[rec.ID]; dup {
		// The feed is at-least-once; folding a redelivery would double
		// count today's totals.
		a.duplicates++
		return
	}
	a.seen[rec.ID] = struct{}{}
	a.insert(rec)

	if a.dateOf(rec.BilledAt) == a.day {
		a.fold(rec)
	}
}

// Snapshot returns a copy of the current state. The transaction list is
// copied so callers can't race the consumer goroutine.
func (a *Aggregator) Snapshot() domain.LiveMetricsSnapshot {
	a.mu.Lock()
	a.rollover()
	snap := domain.LiveMetricsSnapshot{
		SessionID:     a.sessionID,
		State:         a.state,
		Date:          a.day,
		TodayNet:      a.net,
		TodayGross:    a.gross,
		TodayDiscount: a.discount,
		TodayProfit:   a.profit,
		TodayItems:    a.items,
		TodayBills:    a.bills,
		Transactions:  make([]domain.TransactionRecord, len(a.list)),
		SkippedEvents: a.skipped,
		Duplicates:    a.duplicates,
	}
	copy(snap.Transactions, a.list)
	a.mu.Unlock()
	return snap
}

// rollover resets the running sums when the wall-clock date has moved past
// the bucket we were accumulating. The ordered list is kept; only the
// "today" totals start over. Callers hold a.mu.
func (a *Aggregator) rollover() {
	today := a.today()
	if today == a.day {
		return
	}
	a.day = today
	a.net, a.gross, a.discount, a.profit = 0, 0, 0, 0
	a.items, a.bills = 0, 0
}

// insert places rec into the descending-ordered list. A late-arriving
// event with an earlier timestamp lands mid-list, not at the head.
func (a *Aggregator) insert(rec domain.TransactionRecord) {
	i := sort.Search(len(a.list), func(i int) bool {
		return !a.list[i].BilledAt.After(rec.BilledAt)
	})
	a.list = append(a.list, domain.TransactionRecord{})
	copy(a.list[i+1:], a.list[i:])
	a.list[i] = rec

	if a.maxList > 0 && len(a.list) > a.maxList {
		// Trim the tail; its id stays in seen so a redelivery of the
		// trimmed record is still recognized as a duplicate.
		a.list = a.list[:len(a.list)-1]
	}
}

// fold adds one bill's contribution to the running sums, exactly once.
// Optional fields fold as zero per the cost-sync lag rule.
func (a *Aggregator) fold(rec domain.TransactionRecord) {
	a.net += rec.NetAmount
	a.gross += rec.GrossOrNet()
	a.discount += rec.DiscountAmount
	a.profit += rec.ProfitOrZero()
	a.items += rec.ItemsCount
	a.bills++
}

func (a *Aggregator) today() string {
	return a.dateOf(a.now())
}

func (a *Aggregator) dateOf(ts time.Time) string {
	return ts.In(a.loc).Format("2006-01-02")
}
