package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"posjet/backend/internal/domain"
	"posjet/backend/internal/store"
)

// Store reads the synced sales tables over database/sql. The tables are
// written by an external sync process; everything here is read-only except
// the users table.
type Store struct {
	db          *sql.DB
	databaseURL string
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, databaseURL: databaseURL}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListTransactions(ctx context.Context, from time.Time, to time.Time) ([]domain.TransactionRecord, error) {
	if !from.Before(to) {
		return nil, store.ErrInvalidRange
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_no, bill_date, amount, gross_amount, discount_amount, discount_percent,
		       items_count, payment_mode, customer_name, tax_amount, ct_amount, st_amount,
		       igst_bill, profit
		FROM sales
		WHERE bill_date >= $1 AND bill_date < $2
		ORDER BY bill_date ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *Store) ListRecentTransactions(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	if limit < 1 {
		limit = 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_no, bill_date, amount, gross_amount, discount_amount, discount_percent,
		       items_count, payment_mode, customer_name, tax_amount, ct_amount, st_amount,
		       igst_bill, profit
		FROM sales
		ORDER BY bill_date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]domain.TransactionRecord, error) {
	out := make([]domain.TransactionRecord, 0, 128)
	for rows.Next() {
		var (
			t            domain.TransactionRecord
			gross        sql.NullFloat64
			discount     sql.NullFloat64
			discountPct  sql.NullFloat64
			itemsCount   sql.NullInt64
			paymentMode  sql.NullString
			customerName sql.NullString
			taxAmount    sql.NullFloat64
			centralTax   sql.NullFloat64
			stateTax     sql.NullFloat64
			interstate   sql.NullBool
			profit       sql.NullFloat64
		)
		if err := rows.Scan(&t.ID, &t.BillNo, &t.BilledAt, &t.NetAmount, &gross, &discount, &discountPct,
			&itemsCount, &paymentMode, &customerName, &taxAmount, &centralTax, &stateTax,
			&interstate, &profit); err != nil {
			return nil, err
		}
		t.GrossAmount = gross.Float64
		t.DiscountAmount = discount.Float64
		t.DiscountPercent = discountPct.Float64
		t.ItemsCount = int(itemsCount.Int64)
		t.PaymentMode = paymentMode.String
		t.CustomerName = customerName.String
		t.TaxAmount = taxAmount.Float64
		t.CentralTax = centralTax.Float64
		t.StateTax = stateTax.Float64
		t.Interstate = interstate.Bool
		if profit.Valid {
			v := profit.Float64
			t.Profit = &v
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListLineItems(ctx context.Context, from time.Time, to time.Time) ([]domain.TransactionLineItem, error) {
	if !from.Before(to) {
		return nil, store.ErrInvalidRange
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bill_no, product_name, quantity, sale_rate, net_sale_amount, landing_cost,
		       profit_amount, bill_date
		FROM sale_details
		WHERE bill_date >= $1 AND bill_date < $2
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLineItems(rows)
}

func (s *Store) ListBillItems(ctx context.Context, billNo string, from time.Time, to time.Time) ([]domain.TransactionLineItem, error) {
	if !from.Before(to) {
		return nil, store.ErrInvalidRange
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bill_no, product_name, quantity, sale_rate, net_sale_amount, landing_cost,
		       profit_amount, bill_date
		FROM sale_details
		WHERE bill_no = $1 AND bill_date >= $2 AND bill_date < $3
	`, billNo, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanLineItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, store.ErrNotFound
	}
	return items, nil
}

func scanLineItems(rows *sql.Rows) ([]domain.TransactionLineItem, error) {
	out := make([]domain.TransactionLineItem, 0, 256)
	for rows.Next() {
		var (
			li          domain.TransactionLineItem
			productName sql.NullString
			quantity    sql.NullFloat64
			saleRate    sql.NullFloat64
			netAmount   sql.NullFloat64
			landingRate sql.NullFloat64
			profit      sql.NullFloat64
		)
		if err := rows.Scan(&li.BillNo, &productName, &quantity, &saleRate, &netAmount, &landingRate,
			&profit, &li.BilledAt); err != nil {
			return nil, err
		}
		li.ProductName = productName.String
		li.Quantity = quantity.Float64
		li.SaleRate = saleRate.Float64
		li.NetAmount = netAmount.Float64
		li.LandingRate = landingRate.Float64
		li.ProfitAmount = profit.Float64
		out = append(out, li)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListStockSnapshots(ctx context.Context) ([]domain.StockSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_name, category_name, current_stock, stock_value, reorder_min,
		       days_since_sale, last_sale_date
		FROM stock_summary
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StockSnapshot, 0, 256)
	for rows.Next() {
		var (
			snap      domain.StockSnapshot
			category  sql.NullString
			stockVal  sql.NullFloat64
			reorder   sql.NullFloat64
			staleDays sql.NullInt64
			lastSale  sql.NullTime
		)
		if err := rows.Scan(&snap.ProductName, &category, &snap.CurrentStock, &stockVal, &reorder,
			&staleDays, &lastSale); err != nil {
			return nil, err
		}
		snap.CategoryName = category.String
		snap.StockValue = stockVal.Float64
		snap.ReorderMin = reorder.Float64
		snap.DaysSinceSale = int(staleDays.Int64)
		if lastSale.Valid {
			t := lastSale.Time
			snap.LastSaleAt = &t
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListCustomerAggregates(ctx context.Context) ([]domain.CustomerAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_name, phone, total_visits, total_spent, avg_transaction_value,
		       GREATEST(0, EXTRACT(DAY FROM now() - last_visit_date))::int AS recency_days
		FROM customer_summary
		ORDER BY total_spent DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.CustomerAggregate, 0, 128)
	for rows.Next() {
		var (
			c        domain.CustomerAggregate
			phone    sql.NullString
			avgValue sql.NullFloat64
		)
		if err := rows.Scan(&c.Name, &phone, &c.TotalVisits, &c.TotalSpent, &avgValue, &c.RecencyDays); err != nil {
			return nil, err
		}
		c.Phone = phone.String
		c.AvgValue = avgValue.Float64
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SubscribeTransactions streams newly inserted sales rows via LISTEN/NOTIFY.
// A trigger on the sales table publishes each insert as a JSON payload on
// the sales_inserts channel. The dedicated connection reconnects with
// backoff until ctx is cancelled, so a dropped connection can replay rows
// the consumer already saw.
func (s *Store) SubscribeTransactions(ctx context.Context) (<-chan domain.TransactionRecord, error) {
	conn, err := pgx.Connect(ctx, s.databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN sales_inserts"); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	ch := make(chan domain.TransactionRecord, 16)
	go func() {
		defer close(ch)
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = conn.Close(closeCtx)
		}()

		for {
			notification, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[postgres] notification wait failed, reconnecting: %v", err)
				conn = s.reconnectListener(ctx, conn)
				if conn == nil {
					return
				}
				continue
			}

			var rec domain.TransactionRecord
			if err := json.Unmarshal([]byte(notification.Payload), &rec); err != nil {
				log.Printf("[postgres] skipping malformed sales notification: %v", err)
				continue
			}

			select {
			case ch <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (s *Store) reconnectListener(ctx context.Context, old *pgx.Conn) *pgx.Conn {
	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_ = old.Close(closeCtx)
	cancel()

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		conn, err := pgx.Connect(ctx, s.databaseURL)
		if err == nil {
			if _, err := conn.Exec(ctx, "LISTEN sales_inserts"); err == nil {
				log.Printf("[postgres] sales listener reconnected")
				return conn
			}
			_ = conn.Close(ctx)
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return errors.New("username required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
