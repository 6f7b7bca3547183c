package report

import (
	"sort"
	"time"

	"posjet/backend/internal/domain"
)

// DailySales buckets bills by local calendar date. Rows come out in
// first-seen order, which matches the store's bill_date ascending order.
func DailySales(records []domain.TransactionRecord, w Window) ([]domain.DailySalesRow, int) {
	groups, skipped := Reduce(records, w,
		func(r domain.TransactionRecord) time.Time { return r.BilledAt },
		func(r domain.TransactionRecord) string { return w.DateKey(r.BilledAt) },
		[]Field[domain.TransactionRecord]{
			{Name: "gross", Value: domain.TransactionRecord.GrossOrNet},
			{Name: "discount", Value: func(r domain.TransactionRecord) float64 { return r.DiscountAmount }},
			{Name: "net", Value: func(r domain.TransactionRecord) float64 { return r.NetAmount }},
			{Name: "items", Value: func(r domain.TransactionRecord) float64 { return float64(r.ItemsCount) }},
		})

	rows := make([]domain.DailySalesRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, domain.DailySalesRow{
			Date:           g.Key,
			BillsCount:     g.Count,
			GrossSales:     g.Sums["gross"],
			DiscountAmount: g.Sums["discount"],
			NetSales:       g.Sums["net"],
			ItemsSold:      g.Sums["items"],
			AvgBillValue:   safeDiv(g.Sums["net"], float64(g.Count)),
		})
	}
	return rows, skipped
}

// DailySalesTotals sums the finished rows for the summary cards.
func SumDailySales(rows []domain.DailySalesRow) domain.DailySalesTotals {
	var t domain.DailySalesTotals
	for _, r := range rows {
		t.Bills += r.BillsCount
		t.Gross += r.GrossSales
		t.Discount += r.DiscountAmount
		t.Net += r.NetSales
		t.Items += r.ItemsSold
	}
	return t
}

// ItemProfit aggregates line items per product, sorted by profit
// descending. Landing cost is quantity-weighted.
func ItemProfit(items []domain.TransactionLineItem, w Window) ([]domain.ItemProfitRow, int) {
	groups, skipped := Reduce(items, w,
		func(i domain.TransactionLineItem) time.Time { return i.BilledAt },
		func(i domain.TransactionLineItem) string {
			if i.ProductName == "" {
				return "Unknown Product"
			}
			return i.ProductName
		},
		[]Field[domain.TransactionLineItem]{
			{Name: "qty", Value: func(i domain.TransactionLineItem) float64 { return i.Quantity }},
			{Name: "landing", Value: func(i domain.TransactionLineItem) float64 { return i.LandingRate * i.Quantity }},
			{Name: "sales", Value: func(i domain.TransactionLineItem) float64 { return i.NetAmount }},
			{Name: "profit", Value: func(i domain.TransactionLineItem) float64 { return i.ProfitAmount }},
		})
	SortGroups(groups, "profit")

	rows := make([]domain.ItemProfitRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, domain.ItemProfitRow{
			ProductName:      g.Key,
			TotalQuantity:    g.Sums["qty"],
			TotalLandingCost: g.Sums["landing"],
			TotalSales:       g.Sums["sales"],
			TotalProfit:      g.Sums["profit"],
			ProfitPercent:    safeDiv(g.Sums["profit"], g.Sums["sales"]) * 100,
		})
	}
	return rows, skipped
}

// CategoryProfit groups line items by category. The sale_details sync does
// not carry category yet, so every line lands in a single "General" bucket;
// this is a known upstream limitation, kept until category propagation
// ships rather than papered over here.
func CategoryProfit(items []domain.TransactionLineItem, w Window) ([]domain.CategoryProfitRow, int) {
	groups, skipped := Reduce(items, w,
		func(i domain.TransactionLineItem) time.Time { return i.BilledAt },
		func(domain.TransactionLineItem) string { return "General" },
		[]Field[domain.TransactionLineItem]{
			{Name: "sales", Value: func(i domain.TransactionLineItem) float64 { return i.NetAmount }},
			{Name: "profit", Value: func(i domain.TransactionLineItem) float64 { return i.ProfitAmount }},
			{Name: "items", Value: func(i domain.TransactionLineItem) float64 { return i.Quantity }},
		})

	rows := make([]domain.CategoryProfitRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, domain.CategoryProfitRow{
			Category:      g.Key,
			Sales:         g.Sums["sales"],
			Profit:        g.Sums["profit"],
			ItemsSold:     g.Sums["items"],
			MarginPercent: safeDiv(g.Sums["profit"], g.Sums["sales"]) * 100,
		})
	}
	return rows, skipped
}

// PaymentModes distributes bills across payment modes. An absent mode
// means an old cash terminal, so it folds into CASH. The returned total
// row sums the grouped rows exactly; percentages are derived from that
// same grand total so the distribution closes to 100.
func PaymentModes(records []domain.TransactionRecord, w Window) ([]domain.PaymentModeRow, domain.PaymentModeRow, int) {
	groups, skipped := Reduce(records, w,
		func(r domain.TransactionRecord) time.Time { return r.BilledAt },
		func(r domain.TransactionRecord) string {
			if r.PaymentMode == "" {
				return domain.PaymentCash
			}
			return r.PaymentMode
		},
		[]Field[domain.TransactionRecord]{
			{Name: "amount", Value: func(r domain.TransactionRecord) float64 { return r.NetAmount }},
		})

	total := domain.PaymentModeRow{Mode: "TOTAL"}
	for _, g := range groups {
		total.Count += g.Count
		total.Amount += g.Sums["amount"]
	}

	rows := make([]domain.PaymentModeRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, domain.PaymentModeRow{
			Mode:       g.Key,
			Count:      g.Count,
			Amount:     g.Sums["amount"],
			Percentage: safeDiv(g.Sums["amount"], total.Amount) * 100,
		})
	}
	if total.Amount != 0 {
		total.Percentage = 100
	}
	return rows, total, skipped
}

// GSTRegister emits one row per bill inside the window, ordered by bill
// timestamp. The tax split is conditional on the interstate flag: an
// interstate bill attributes both tax legs to IGST and zeroes CGST/SGST;
// an intrastate bill keeps the two legs as CGST and SGST with IGST zero.
// Flag polarity matters here; getting it backwards misfiles a tax return.
func GSTRegister(records []domain.TransactionRecord, w Window) ([]domain.GSTRow, domain.GSTTotals, int) {
	inWindow := make([]domain.TransactionRecord, 0, len(records))
	skipped := 0
	for _, r := range records {
		if r.BilledAt.IsZero() {
			skipped++
			continue
		}
		if w.Contains(r.BilledAt) {
			inWindow = append(inWindow, r)
		}
	}
	sort.SliceStable(inWindow, func(i, j int) bool {
		return inWindow[i].BilledAt.Before(inWindow[j].BilledAt)
	})

	rows := make([]domain.GSTRow, 0, len(inWindow))
	var totals domain.GSTTotals
	for _, r := range inWindow {
		row := domain.GSTRow{
			BillNo:       r.BillNo,
			BilledAt:     r.BilledAt.In(w.location()).Format(time.RFC3339),
			CustomerName: r.CustomerName,
			Amount:       r.NetAmount,
			TaxAmount:    r.TaxAmount,
			TaxableValue: r.NetAmount - r.TaxAmount,
		}
		if r.CustomerName == "" {
			row.CustomerName = "Walk-in"
		}
		if r.Interstate {
			row.IGST = r.CentralTax + r.StateTax
		} else {
			row.CGST = r.CentralTax
			row.SGST = r.StateTax
		}
		rows = append(rows, row)

		totals.Taxable += row.TaxableValue
		totals.CGST += row.CGST
		totals.SGST += row.SGST
		totals.IGST += row.IGST
		totals.TotalTax += row.TaxAmount
		totals.Grand += row.Amount
	}
	return rows, totals, skipped
}
