package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"posjet/backend/internal/domain"
	"posjet/backend/internal/service"
	"posjet/backend/internal/store"
)

// LiveSource exposes the current value of the live metrics aggregator.
type LiveSource interface {
	Snapshot() domain.LiveMetricsSnapshot
}

type API struct {
	service       *service.Service
	live          LiveSource
	auth          *AuthManager
	allowedOrigin string
	deadStockDays int
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, live LiveSource, auth *AuthManager, allowedOrigin string, deadStockDays int) *API {
	return &API{
		service:       svc,
		live:          live,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		deadStockDays: deadStockDays,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/reports/daily-sales", a.requireAuth(a.handleDailySales, "staff", "admin"))
	mux.HandleFunc("/api/v1/reports/item-profit", a.requireAuth(a.handleItemProfit, "staff", "admin"))
	mux.HandleFunc("/api/v1/reports/category-profit", a.requireAuth(a.handleCategoryProfit, "staff", "admin"))
	mux.HandleFunc("/api/v1/reports/payment-modes", a.requireAuth(a.handlePaymentModes, "staff", "admin"))
	mux.HandleFunc("/api/v1/reports/gst-register", a.requireAuth(a.handleGSTRegister, "admin"))
	mux.HandleFunc("/api/v1/reports/dead-stock", a.requireAuth(a.handleDeadStock, "staff", "admin"))
	mux.HandleFunc("/api/v1/stock/summary", a.requireAuth(a.handleStockSummary, "staff", "admin"))
	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers, "staff", "admin"))
	mux.HandleFunc("/api/v1/bills/", a.requireAuth(a.handleBillItems, "staff", "admin"))
	mux.HandleFunc("/api/v1/live/metrics", a.requireAuth(a.handleLiveMetrics, "staff", "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// dateRange pulls the from/to query params, defaulting both to today so a
// bare request shows the current day.
func dateRange(r *http.Request, loc *time.Location) (string, string) {
	today := time.Now().In(loc).Format("2006-01-02")
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if from == "" {
		from = today
	}
	if to == "" {
		to = from
	}
	return from, to
}

func (a *API) handleDailySales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from, to := dateRange(r, a.service.Location())
	rep := a.service.DailySales(r.Context(), from, to)

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"daily-sales-%s-%s.csv\"", from, to))
		_, _ = w.Write([]byte(dailySalesToCSV(rep)))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleItemProfit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from, to := dateRange(r, a.service.Location())
	rep := a.service.ItemProfit(r.Context(), from, to)

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"item-profit-%s-%s.csv\"", from, to))
		_, _ = w.Write([]byte(itemProfitToCSV(rep)))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleCategoryProfit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from, to := dateRange(r, a.service.Location())
	writeJSON(w, http.StatusOK, a.service.CategoryProfit(r.Context(), from, to))
}

func (a *API) handlePaymentModes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from, to := dateRange(r, a.service.Location())
	writeJSON(w, http.StatusOK, a.service.PaymentModes(r.Context(), from, to))
}

func (a *API) handleGSTRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		month = time.Now().In(a.service.Location()).Format("2006-01")
	}
	rep := a.service.GSTRegister(r.Context(), month)

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"gst-register-%s.csv\"", month))
		_, _ = w.Write([]byte(gstRegisterToCSV(rep)))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleDeadStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	days := parsePositiveLimit(r.URL.Query().Get("days"), a.deadStockDays, 0)
	writeJSON(w, http.StatusOK, a.service.DeadStock(r.Context(), days))
}

func (a *API) handleStockSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	lowOnly := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("low")), "true")
	writeJSON(w, http.StatusOK, a.service.StockSummary(r.Context(), lowOnly))
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	segment := strings.TrimSpace(r.URL.Query().Get("segment"))
	writeJSON(w, http.StatusOK, a.service.CustomerSegments(r.Context(), segment))
}

func (a *API) handleBillItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/bills/"
	if !strings.HasPrefix(r.URL.Path, prefix) || !strings.HasSuffix(r.URL.Path, "/items") {
		writeError(w, http.StatusBadRequest, errors.New("invalid bill lookup path"))
		return
	}
	billNo := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), "/items")
	billNo = strings.TrimSpace(strings.Trim(billNo, "/"))
	if billNo == "" {
		writeError(w, http.StatusBadRequest, errors.New("bill number required"))
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = time.Now().In(a.service.Location()).Format("2006-01-02")
	}

	resp, err := a.service.BillItems(r.Context(), billNo, date)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		if errors.Is(err, store.ErrInvalidRange) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLiveMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if a.live == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("live metrics unavailable"))
		return
	}

	writeJSON(w, http.StatusOK, a.live.Snapshot())
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func dailySalesToCSV(rep domain.DailySalesReport) string {
	lines := []string{
		"date,bills,gross,discount,net,items,avg_bill_value",
	}
	for _, row := range rep.Rows {
		lines = append(lines, fmt.Sprintf("%s,%d,%.2f,%.2f,%.2f,%.2f,%.2f",
			row.Date, row.BillsCount, row.GrossSales, row.DiscountAmount, row.NetSales, row.ItemsSold, row.AvgBillValue))
	}
	lines = append(lines, fmt.Sprintf("TOTAL,%d,%.2f,%.2f,%.2f,%.2f,",
		rep.Totals.Bills, rep.Totals.Gross, rep.Totals.Discount, rep.Totals.Net, rep.Totals.Items))
	return strings.Join(lines, "\n") + "\n"
}

func itemProfitToCSV(rep domain.ItemProfitReport) string {
	lines := []string{
		"product_name,qty_sold,landing_cost,sales_amount,profit,profit_percent",
	}
	for _, row := range rep.Rows {
		lines = append(lines, fmt.Sprintf("%s,%.2f,%.2f,%.2f,%.2f,%.2f",
			csvEscape(row.ProductName), row.TotalQuantity, row.TotalLandingCost, row.TotalSales, row.TotalProfit, row.ProfitPercent))
	}
	lines = append(lines, fmt.Sprintf("TOTAL,,,%.2f,%.2f,%.2f",
		rep.TotalSales, rep.TotalProfit, rep.AvgMargin))
	return strings.Join(lines, "\n") + "\n"
}

func gstRegisterToCSV(rep domain.GSTReport) string {
	lines := []string{
		"bill_no,bill_date,customer,amount,taxable_value,cgst,sgst,igst,total_tax",
	}
	for _, row := range rep.Rows {
		lines = append(lines, fmt.Sprintf("%s,%s,%s,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f",
			row.BillNo, row.BilledAt, csvEscape(row.CustomerName), row.Amount, row.TaxableValue, row.CGST, row.SGST, row.IGST, row.TaxAmount))
	}
	lines = append(lines, fmt.Sprintf("TOTAL,,,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f",
		rep.Totals.Grand, rep.Totals.Taxable, rep.Totals.CGST, rep.Totals.SGST, rep.Totals.IGST, rep.Totals.TotalTax))
	return strings.Join(lines, "\n") + "\n"
}

// csvEscape quotes a free-text field so commas in customer names do not
// break the row layout.
func csvEscape(value string) string {
	if !strings.ContainsAny(value, ",\"\n") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses return a generic message so internal details (SQL
	// errors, file paths) never reach the client.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
