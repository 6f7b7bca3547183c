package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"posjet/backend/internal/domain"
	"posjet/backend/internal/store"
)

// Store is an in-memory Repository used for dev/demo mode and tests. It is
// seeded with a few days of realistic sales so every report endpoint has
// something to show without a database.
type Store struct {
	mu           sync.RWMutex
	transactions []domain.TransactionRecord
	lineItems    []domain.TransactionLineItem
	stock        []domain.StockSnapshot
	customers    []domain.CustomerAggregate
	users        map[string]domain.UserAccount
	nextID       int64

	subMu       sync.Mutex
	subscribers []chan domain.TransactionRecord
}

// seedUsers builds the initial user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; when
// unset, hardcoded dev defaults are used with a warning. The backend uses
// PostgreSQL in production, so these never leave a developer machine.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func profitOf(v float64) *float64 {
	return &v
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	day := func(daysAgo int, hour int) time.Time {
		base := time.Date(now.Year(), now.Month(), now.Day(), hour, 15, 0, 0, time.UTC)
		return base.AddDate(0, 0, -daysAgo)
	}

	transactions := []domain.TransactionRecord{
		{BillNo: "A-1001", BilledAt: day(2, 10), NetAmount: 1240, GrossAmount: 1300, DiscountAmount: 60, ItemsCount: 5, PaymentMode: domain.PaymentCash, CustomerName: "Ravi Traders", TaxAmount: 62, CentralTax: 31, StateTax: 31, Profit: profitOf(215)},
		{BillNo: "A-1002", BilledAt: day(2, 12), NetAmount: 860, GrossAmount: 860, ItemsCount: 3, PaymentMode: domain.PaymentUPI, TaxAmount: 41, CentralTax: 20.5, StateTax: 20.5, Profit: profitOf(128)},
		{BillNo: "A-1003", BilledAt: day(2, 18), NetAmount: 2450, GrossAmount: 2600, DiscountAmount: 150, ItemsCount: 9, PaymentMode: domain.PaymentCard, CustomerName: "Meena Stores", TaxAmount: 117, CentralTax: 58.5, StateTax: 58.5, Interstate: true, Profit: profitOf(410)},
		{BillNo: "A-1004", BilledAt: day(1, 9), NetAmount: 530, GrossAmount: 530, ItemsCount: 2, PaymentMode: "", TaxAmount: 25, CentralTax: 12.5, StateTax: 12.5, Profit: profitOf(74)},
		{BillNo: "A-1005", BilledAt: day(1, 14), NetAmount: 1980, GrossAmount: 2100, DiscountAmount: 120, ItemsCount: 7, PaymentMode: domain.PaymentUPI, CustomerName: "Sharma & Sons", TaxAmount: 94, CentralTax: 47, StateTax: 47, Profit: profitOf(330)},
		{BillNo: "A-1006", BilledAt: day(1, 19), NetAmount: 720, GrossAmount: 720, ItemsCount: 4, PaymentMode: domain.PaymentCash, TaxAmount: 34, CentralTax: 17, StateTax: 17},
		{BillNo: "A-1007", BilledAt: day(0, 10), NetAmount: 1450, GrossAmount: 1500, DiscountAmount: 50, ItemsCount: 6, PaymentMode: domain.PaymentCard, CustomerName: "Gupta Kirana", TaxAmount: 69, CentralTax: 34.5, StateTax: 34.5, Profit: profitOf(245)},
		{BillNo: "A-1008", BilledAt: day(0, 12), NetAmount: 310, GrossAmount: 310, ItemsCount: 1, PaymentMode: domain.PaymentCash, TaxAmount: 15, CentralTax: 7.5, StateTax: 7.5, Profit: profitOf(48)},
	}

	lineItems := []domain.TransactionLineItem{
		{BillNo: "A-1001", ProductName: "Basmati Rice 5kg", Quantity: 2, SaleRate: 420, NetAmount: 840, LandingRate: 355, ProfitAmount: 130, BilledAt: day(2, 10)},
		{BillNo: "A-1001", ProductName: "Sunflower Oil 1L", Quantity: 4, SaleRate: 100, NetAmount: 400, LandingRate: 82, ProfitAmount: 72, BilledAt: day(2, 10)},
		{BillNo: "A-1002", ProductName: "Toor Dal 1kg", Quantity: 3, SaleRate: 180, NetAmount: 540, LandingRate: 152, ProfitAmount: 84, BilledAt: day(2, 12)},
		{BillNo: "A-1002", ProductName: "Wheat Flour 5kg", Quantity: 1, SaleRate: 320, NetAmount: 320, LandingRate: 276, ProfitAmount: 44, BilledAt: day(2, 12)},
		{BillNo: "A-1003", ProductName: "Basmati Rice 5kg", Quantity: 4, SaleRate: 420, NetAmount: 1680, LandingRate: 355, ProfitAmount: 260, BilledAt: day(2, 18)},
		{BillNo: "A-1003", ProductName: "Ghee 500ml", Quantity: 2, SaleRate: 385, NetAmount: 770, LandingRate: 310, ProfitAmount: 150, BilledAt: day(2, 18)},
		{BillNo: "A-1005", ProductName: "Sunflower Oil 1L", Quantity: 6, SaleRate: 100, NetAmount: 600, LandingRate: 82, ProfitAmount: 108, BilledAt: day(1, 14)},
		{BillNo: "A-1005", ProductName: "Tea Powder 250g", Quantity: 8, SaleRate: 110, NetAmount: 880, LandingRate: 86, ProfitAmount: 192, BilledAt: day(1, 14)},
		{BillNo: "A-1005", ProductName: "Sugar 1kg", Quantity: 10, SaleRate: 50, NetAmount: 500, LandingRate: 44, ProfitAmount: 60, BilledAt: day(1, 14)},
		{BillNo: "A-1007", ProductName: "Ghee 500ml", Quantity: 2, SaleRate: 385, NetAmount: 770, LandingRate: 310, ProfitAmount: 150, BilledAt: day(0, 10)},
		{BillNo: "A-1007", ProductName: "Toor Dal 1kg", Quantity: 4, SaleRate: 170, NetAmount: 680, LandingRate: 152, ProfitAmount: 72, BilledAt: day(0, 10)},
		{BillNo: "A-1008", ProductName: "Sugar 1kg", Quantity: 6, SaleRate: 52, NetAmount: 310, LandingRate: 44, ProfitAmount: 48, BilledAt: day(0, 12)},
	}

	lastSale := func(daysAgo int) *time.Time {
		t := now.AddDate(0, 0, -daysAgo)
		return &t
	}

	stock := []domain.StockSnapshot{
		{ProductName: "Basmati Rice 5kg", CategoryName: "Staples", CurrentStock: 42, StockValue: 14910, ReorderMin: 20, DaysSinceSale: 0, LastSaleAt: lastSale(0)},
		{ProductName: "Sunflower Oil 1L", CategoryName: "Staples", CurrentStock: 15, StockValue: 1230, ReorderMin: 24, DaysSinceSale: 1, LastSaleAt: lastSale(1)},
		{ProductName: "Toor Dal 1kg", CategoryName: "Staples", CurrentStock: 30, StockValue: 4560, ReorderMin: 15, DaysSinceSale: 0, LastSaleAt: lastSale(0)},
		{ProductName: "Incense Sticks Jumbo", CategoryName: "Pooja", CurrentStock: 80, StockValue: 2400, ReorderMin: 10, DaysSinceSale: 140, LastSaleAt: lastSale(140)},
		{ProductName: "Steel Tiffin Box", CategoryName: "Kitchenware", CurrentStock: 12, StockValue: 3360, ReorderMin: 5, DaysSinceSale: 95, LastSaleAt: lastSale(95)},
		{ProductName: "Picnic Mat", CategoryName: "General", CurrentStock: 6, StockValue: 1740, ReorderMin: 2, DaysSinceSale: 210, LastSaleAt: nil},
	}

	customers := []domain.CustomerAggregate{
		{Name: "Ravi Traders", Phone: "9812045670", TotalVisits: 18, TotalSpent: 24600, AvgValue: 1366, RecencyDays: 2},
		{Name: "Meena Stores", Phone: "9812098431", TotalVisits: 6, TotalSpent: 8900, AvgValue: 1483, RecencyDays: 12},
		{Name: "Sharma & Sons", Phone: "9934012788", TotalVisits: 3, TotalSpent: 4100, AvgValue: 1366, RecencyDays: 1},
		{Name: "Gupta Kirana", Phone: "9712304455", TotalVisits: 11, TotalSpent: 15200, AvgValue: 1381, RecencyDays: 110},
		{Name: "Old Town Supplies", Phone: "9898450021", TotalVisits: 9, TotalSpent: 12500, AvgValue: 1388, RecencyDays: 240},
	}

	s := &Store{
		transactions: transactions,
		lineItems:    lineItems,
		stock:        stock,
		customers:    customers,
		users:        seedUsers(),
		nextID:       1,
	}
	for i := range s.transactions {
		s.transactions[i].ID = s.nextID
		s.nextID++
	}
	sort.Slice(s.transactions, func(i, j int) bool {
		return s.transactions[i].BilledAt.Before(s.transactions[j].BilledAt)
	})
	return s
}

func (s *Store) ListTransactions(_ context.Context, from time.Time, to time.Time) ([]domain.TransactionRecord, error) {
	if !from.Before(to) {
		return nil, store.ErrInvalidRange
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TransactionRecord, 0)
	for _, t := range s.transactions {
		if t.BilledAt.Before(from) || !t.BilledAt.Before(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) ListRecentTransactions(_ context.Context, limit int) ([]domain.TransactionRecord, error) {
	if limit < 1 {
		limit = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TransactionRecord, len(s.transactions))
	copy(out, s.transactions)
	sort.Slice(out, func(i, j int) bool {
		return out[i].BilledAt.After(out[j].BilledAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListLineItems(_ context.Context, from time.Time, to time.Time) ([]domain.TransactionLineItem, error) {
	if !from.Before(to) {
		return nil, store.ErrInvalidRange
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TransactionLineItem, 0)
	for _, li := range s.lineItems {
		if li.BilledAt.Before(from) || !li.BilledAt.Before(to) {
			continue
		}
		out = append(out, li)
	}
	return out, nil
}

func (s *Store) ListBillItems(_ context.Context, billNo string, from time.Time, to time.Time) ([]domain.TransactionLineItem, error) {
	if !from.Before(to) {
		return nil, store.ErrInvalidRange
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TransactionLineItem, 0)
	for _, li := range s.lineItems {
		if li.BillNo != billNo {
			continue
		}
		if li.BilledAt.Before(from) || !li.BilledAt.Before(to) {
			continue
		}
		out = append(out, li)
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (s *Store) ListStockSnapshots(_ context.Context) ([]domain.StockSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockSnapshot, len(s.stock))
	copy(out, s.stock)
	return out, nil
}

func (s *Store) ListCustomerAggregates(_ context.Context) ([]domain.CustomerAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CustomerAggregate, len(s.customers))
	copy(out, s.customers)
	sort.Slice(out, func(i, j int) bool {
		return out[i].TotalSpent > out[j].TotalSpent
	})
	return out, nil
}

func (s *Store) SubscribeTransactions(ctx context.Context) (<-chan domain.TransactionRecord, error) {
	ch := make(chan domain.TransactionRecord, 16)

	s.subMu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		for i, sub := range s.subscribers {
			if sub == ch {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				break
			}
		}
		s.subMu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// InsertTransaction persists a new bill and fans it out to subscribers.
// Used by demo traffic generators and tests.
func (s *Store) InsertTransaction(rec domain.TransactionRecord) domain.TransactionRecord {
	s.mu.Lock()
	if rec.ID == 0 {
		rec.ID = s.nextID
		s.nextID++
	}
	s.transactions = append(s.transactions, rec)
	sort.Slice(s.transactions, func(i, j int) bool {
		return s.transactions[i].BilledAt.Before(s.transactions[j].BilledAt)
	})
	s.mu.Unlock()

	s.subMu.Lock()
	for _, sub := range s.subscribers {
		select {
		case sub <- rec:
		default:
			// Slow subscriber, drop rather than block the write path.
		}
	}
	s.subMu.Unlock()
	return rec
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = username
	s.users[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}
