package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"posjet/backend/internal/domain"
	"posjet/backend/internal/store"
)

func TestListTransactionsHonorsHalfOpenRange(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	today, err := s.ListTransactions(ctx, start, end)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, tr := range today {
		if tr.BilledAt.Before(start) || !tr.BilledAt.Before(end) {
			t.Fatalf("transaction %s outside [start, end): %v", tr.BillNo, tr.BilledAt)
		}
	}
	if len(today) == 0 {
		t.Fatalf("seed data must include today's bills")
	}

	if _, err := s.ListTransactions(ctx, end, start); !errors.Is(err, store.ErrInvalidRange) {
		t.Fatalf("inverted range must error, got %v", err)
	}
}

func TestListRecentTransactionsNewestFirst(t *testing.T) {
	s := NewSeeded()

	recent, err := s.ListRecentTransactions(context.Background(), 3)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected limit respected, got %d", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].BilledAt.After(recent[i-1].BilledAt) {
			t.Fatalf("expected newest first ordering")
		}
	}
}

func TestListBillItemsScopedByWindow(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	now := time.Now().UTC()
	twoDaysAgo := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -2)

	items, err := s.ListBillItems(ctx, "A-1001", twoDaysAgo, twoDaysAgo.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("bill items: %v", err)
	}
	if len(items) == 0 {
		t.Fatalf("expected line items for seeded bill A-1001")
	}

	// Same bill number, wrong day.
	if _, err := s.ListBillItems(ctx, "A-1001", twoDaysAgo.AddDate(0, 0, -10), twoDaysAgo.AddDate(0, 0, -9)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found outside the bill's day, got %v", err)
	}
}

func TestSubscribeReceivesInserts(t *testing.T) {
	s := NewSeeded()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.SubscribeTransactions(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	inserted := s.InsertTransaction(domain.TransactionRecord{
		BillNo:    "A-9999",
		BilledAt:  time.Now().UTC(),
		NetAmount: 123,
	})
	if inserted.ID == 0 {
		t.Fatalf("insert must assign an id")
	}

	select {
	case got := <-events:
		if got.BillNo != "A-9999" || got.ID != inserted.ID {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for insert event")
	}

	cancel()
	select {
	case _, open := <-events:
		if open {
			t.Fatalf("expected channel closed after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for channel close")
	}
}

func TestUserPasswordUpdate(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if err := s.UpdateUserPassword(ctx, "admin", "new-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	found := false
	for _, u := range users {
		if u.Username == "admin" {
			found = true
			if u.Password != "new-hash" {
				t.Fatalf("password not updated")
			}
		}
	}
	if !found {
		t.Fatalf("seeded admin user missing")
	}

	if err := s.UpdateUserPassword(ctx, "nobody", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}
