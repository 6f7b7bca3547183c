package store

import (
	"context"
	"errors"
	"time"

	"posjet/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidRange = errors.New("invalid date range")
)

// Repository is the record store adapter: range queries over the synced
// sales tables plus a realtime insert feed. All list methods return rows
// ordered as documented; reports never write back through this interface.
type Repository interface {
	// ListTransactions returns sales rows with from <= bill_date < to,
	// ordered by bill_date ascending.
	ListTransactions(ctx context.Context, from time.Time, to time.Time) ([]domain.TransactionRecord, error)
	// ListRecentTransactions returns the newest bills first, capped at limit.
	ListRecentTransactions(ctx context.Context, limit int) ([]domain.TransactionRecord, error)
	// ListLineItems returns sale_details rows within the window, any order.
	ListLineItems(ctx context.Context, from time.Time, to time.Time) ([]domain.TransactionLineItem, error)
	// ListBillItems returns the line items of one bill. BillNo is only
	// unique per period, so the lookup is scoped to the given window.
	ListBillItems(ctx context.Context, billNo string, from time.Time, to time.Time) ([]domain.TransactionLineItem, error)
	ListStockSnapshots(ctx context.Context) ([]domain.StockSnapshot, error)
	// ListCustomerAggregates returns customers ordered by total spent descending.
	ListCustomerAggregates(ctx context.Context) ([]domain.CustomerAggregate, error)

	// SubscribeTransactions delivers newly inserted sales rows until ctx is
	// cancelled, at which point the channel is closed. Delivery is
	// at-least-once per physical row with no ordering guarantee across
	// transport retries; consumers must tolerate out-of-order and duplicate
	// events.
	SubscribeTransactions(ctx context.Context) (<-chan domain.TransactionRecord, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
