package domain

import "time"

// Payment modes as recorded on sales rows. Bills synced from older
// terminals may carry an empty mode; reports fold those into CASH.
const (
	PaymentCash  = "CASH"
	PaymentCard  = "CARD"
	PaymentUPI   = "UPI"
	PaymentOther = "OTHER"
)

// TransactionRecord is one completed bill as persisted in the sales table.
// Records are immutable once written; the realtime feed only ever delivers
// previously unseen ids.
type TransactionRecord struct {
	ID              int64     `json:"id"`
	BillNo          string    `json:"bill_no"`
	BilledAt        time.Time `json:"bill_date"`
	NetAmount       float64   `json:"amount"`
	GrossAmount     float64   `json:"gross_amount"`
	DiscountAmount  float64   `json:"discount_amount"`
	DiscountPercent float64   `json:"discount_percent"`
	ItemsCount      int       `json:"items_count"`
	PaymentMode     string    `json:"payment_mode"`
	CustomerName    string    `json:"customer_name"`
	TaxAmount       float64   `json:"tax_amount"`
	CentralTax      float64   `json:"ct_amount"`
	StateTax        float64   `json:"st_amount"`
	Interstate      bool      `json:"igst_bill"`
	// Profit is nil until the cost sync has caught up with this bill.
	Profit *float64 `json:"profit,omitempty"`
}

// ProfitOrZero folds an absent profit figure to zero. Cost sync lags
// sales sync, so a nil profit is expected, not an error.
func (t TransactionRecord) ProfitOrZero() float64 {
	if t.Profit == nil {
		return 0
	}
	return *t.Profit
}

// GrossOrNet returns the gross amount, falling back to the net amount for
// bills written before the gross column existed.
func (t TransactionRecord) GrossOrNet() float64 {
	if t.GrossAmount != 0 {
		return t.GrossAmount
	}
	return t.NetAmount
}

// TransactionLineItem is one product line within a bill. BillNo is only
// unique per period, so lookups must be scoped by a compatible date range.
type TransactionLineItem struct {
	BillNo       string    `json:"bill_no"`
	ProductName  string    `json:"product_name"`
	Quantity     float64   `json:"quantity"`
	SaleRate     float64   `json:"sale_rate"`
	NetAmount    float64   `json:"net_sale_amount"`
	LandingRate  float64   `json:"landing_cost"`
	ProfitAmount float64   `json:"profit_amount"`
	BilledAt     time.Time `json:"bill_date"`
}

// StockSnapshot is the current inventory position per product, refreshed
// by an external sync process. Read-only from this engine's perspective.
type StockSnapshot struct {
	ProductName   string     `json:"product_name"`
	CategoryName  string     `json:"category_name"`
	CurrentStock  float64    `json:"current_stock"`
	StockValue    float64    `json:"stock_value"`
	ReorderMin    float64    `json:"reorder_min"`
	DaysSinceSale int        `json:"days_since_sale"`
	LastSaleAt    *time.Time `json:"last_sale_date,omitempty"`
}

// CustomerAggregate is the externally maintained per-customer lifetime
// summary consumed by the RFM classifier.
type CustomerAggregate struct {
	Name        string  `json:"customer_name"`
	Phone       string  `json:"phone"`
	TotalVisits int     `json:"total_visits"`
	TotalSpent  float64 `json:"total_spent"`
	AvgValue    float64 `json:"avg_transaction_value"`
	RecencyDays int     `json:"recency_days"`
}

// ReportStatus distinguishes a failed fetch from a legitimately empty
// result; callers must never conflate the two.
type ReportStatus string

const (
	StatusOK      ReportStatus = "ok"
	StatusLoading ReportStatus = "loading"
	StatusError   ReportStatus = "error"
	StatusEmpty   ReportStatus = "empty"
)

type DailySalesRow struct {
	Date           string  `json:"date"`
	BillsCount     int     `json:"bills_count"`
	GrossSales     float64 `json:"gross_sales"`
	DiscountAmount float64 `json:"discount_amount"`
	NetSales       float64 `json:"net_sales"`
	ItemsSold      float64 `json:"items_sold"`
	AvgBillValue   float64 `json:"avg_bill_value"`
}

type DailySalesTotals struct {
	Bills    int     `json:"bills"`
	Gross    float64 `json:"gross"`
	Discount float64 `json:"discount"`
	Net      float64 `json:"net"`
	Items    float64 `json:"items"`
}

type DailySalesReport struct {
	From        string           `json:"from"`
	To          string           `json:"to"`
	Status      ReportStatus     `json:"status"`
	SkippedRows int              `json:"skipped_rows"`
	Rows        []DailySalesRow  `json:"rows"`
	Totals      DailySalesTotals `json:"totals"`
}

type ItemProfitRow struct {
	ProductName      string  `json:"product_name"`
	TotalQuantity    float64 `json:"total_quantity"`
	TotalLandingCost float64 `json:"total_landing_cost"`
	TotalSales       float64 `json:"total_sales"`
	TotalProfit      float64 `json:"total_profit"`
	ProfitPercent    float64 `json:"profit_percent"`
}

type ItemProfitReport struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	Status      ReportStatus    `json:"status"`
	SkippedRows int             `json:"skipped_rows"`
	Rows        []ItemProfitRow `json:"rows"`
	TotalSales  float64         `json:"total_sales"`
	TotalProfit float64         `json:"total_profit"`
	AvgMargin   float64         `json:"avg_margin"`
}

type CategoryProfitRow struct {
	Category      string  `json:"category"`
	Sales         float64 `json:"sales"`
	Profit        float64 `json:"profit"`
	ItemsSold     float64 `json:"items_sold"`
	MarginPercent float64 `json:"margin"`
}

type CategoryProfitReport struct {
	From        string              `json:"from"`
	To          string              `json:"to"`
	Status      ReportStatus        `json:"status"`
	SkippedRows int                 `json:"skipped_rows"`
	Rows        []CategoryProfitRow `json:"rows"`
}

type PaymentModeRow struct {
	Mode       string  `json:"mode"`
	Count      int     `json:"count"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type PaymentModeReport struct {
	From        string           `json:"from"`
	To          string           `json:"to"`
	Status      ReportStatus     `json:"status"`
	SkippedRows int              `json:"skipped_rows"`
	Rows        []PaymentModeRow `json:"rows"`
	Total       PaymentModeRow   `json:"total"`
}

type GSTRow struct {
	BillNo       string  `json:"bill_no"`
	BilledAt     string  `json:"bill_date"`
	CustomerName string  `json:"customer_name"`
	Amount       float64 `json:"amount"`
	TaxAmount    float64 `json:"tax_amount"`
	TaxableValue float64 `json:"taxable_value"`
	CGST         float64 `json:"cgst"`
	SGST         float64 `json:"sgst"`
	IGST         float64 `json:"igst"`
}

type GSTTotals struct {
	Taxable  float64 `json:"taxable"`
	CGST     float64 `json:"cgst"`
	SGST     float64 `json:"sgst"`
	IGST     float64 `json:"igst"`
	TotalTax float64 `json:"total_tax"`
	Grand    float64 `json:"grand"`
}

type GSTReport struct {
	Month       string       `json:"month"`
	Status      ReportStatus `json:"status"`
	SkippedRows int          `json:"skipped_rows"`
	Rows        []GSTRow     `json:"rows"`
	Totals      GSTTotals    `json:"totals"`
}

type DeadStockRow struct {
	ProductName   string  `json:"product_name"`
	CategoryName  string  `json:"category_name"`
	CurrentStock  float64 `json:"current_stock"`
	StockValue    float64 `json:"stock_value"`
	DaysSinceSale int     `json:"days_since_sale"`
	LastSaleDate  string  `json:"last_sale_date"`
}

type DeadStockReport struct {
	ThresholdDays  int            `json:"threshold_days"`
	Status         ReportStatus   `json:"status"`
	Rows           []DeadStockRow `json:"rows"`
	CapitalBlocked float64        `json:"capital_blocked"`
}

type StockSummaryReport struct {
	Status        ReportStatus    `json:"status"`
	Rows          []StockSnapshot `json:"rows"`
	TotalValue    float64         `json:"total_value"`
	LowStockCount int             `json:"low_stock_count"`
}

type CustomerSegmentRow struct {
	CustomerAggregate
	Segment string `json:"rfm_segment"`
}

type CustomerSegmentReport struct {
	Status ReportStatus         `json:"status"`
	Rows   []CustomerSegmentRow `json:"rows"`
}

// LiveMetricsSnapshot is the current value of the live aggregator: today's
// running totals plus the maintained transaction list, newest first.
type LiveMetricsSnapshot struct {
	SessionID     string              `json:"session_id"`
	State         string              `json:"state"`
	Date          string              `json:"date"`
	TodayNet      float64             `json:"today_net"`
	TodayGross    float64             `json:"today_gross"`
	TodayDiscount float64             `json:"today_discount"`
	TodayProfit   float64             `json:"today_profit"`
	TodayItems    int                 `json:"today_items"`
	TodayBills    int                 `json:"today_bills"`
	Transactions  []TransactionRecord `json:"transactions"`
	SkippedEvents int                 `json:"skipped_events"`
	Duplicates    int                 `json:"duplicate_events"`
}

type BillItemsResponse struct {
	BillNo string                `json:"bill_no"`
	Items  []TransactionLineItem `json:"items"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
