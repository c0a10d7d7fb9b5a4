package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func beer() *Product {
	return &Product{
		ID:               1,
		Name:             "Diamond Ice Beer",
		UnitType:         UnitCrate,
		CostPrice:        decimal.NewFromInt(600),
		SellingPrice:     decimal.NewFromInt(750),
		CurrentStock:     10,
		IsActive:         true,
		HasCrateTracking: true,
	}
}

func TestPriceSaleItem_DefaultAndOverride(t *testing.T) {
	p := beer()

	item := PriceSaleItem(1, p, 3, nil)
	if !item.TotalPrice.Equal(decimal.NewFromInt(2250)) {
		t.Errorf("expected 2250, got %s", item.TotalPrice)
	}
	if !item.TotalCost.Equal(decimal.NewFromInt(1800)) {
		t.Errorf("expected cost 1800, got %s", item.TotalCost)
	}
	if !item.Profit.Equal(decimal.NewFromInt(450)) {
		t.Errorf("expected profit 450, got %s", item.Profit)
	}

	override := decimal.RequireFromString("700.50")
	item = PriceSaleItem(2, p, 2, &override)
	if !item.UnitPrice.Equal(override) || !item.TotalPrice.Equal(decimal.RequireFromString("1401.00")) {
		t.Errorf("override not applied: %+v", item)
	}
	if !item.UnitCost.Equal(p.CostPrice) {
		t.Errorf("unit cost must always be the product cost, got %s", item.UnitCost)
	}
}

func TestSaleTotals_ProfitIsAmountMinusCost(t *testing.T) {
	p := beer()
	cheap := decimal.RequireFromString("0.10")
	items := []SaleItem{
		PriceSaleItem(1, p, 1, &cheap),
		PriceSaleItem(2, p, 1, &cheap),
		PriceSaleItem(3, p, 1, &cheap),
	}
	amount, cost, profit := SaleTotals(items)

	if !amount.Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("decimal sum drifted: %s", amount)
	}
	if !profit.Equal(amount.Sub(cost)) {
		t.Errorf("profit %s != amount %s - cost %s", profit, amount, cost)
	}
	var lineProfit decimal.Decimal
	for _, it := range items {
		lineProfit = lineProfit.Add(it.Profit)
	}
	if !lineProfit.Equal(profit) {
		t.Errorf("sum of line profits %s != profit %s", lineProfit, profit)
	}
}

func TestPriceDeliveryItem(t *testing.T) {
	p := beer()
	expiry := time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)

	item := PriceDeliveryItem(1, p, 4, nil, &expiry)
	if !item.UnitCost.Equal(p.CostPrice) || !item.TotalCost.Equal(decimal.NewFromInt(2400)) {
		t.Errorf("unexpected default costing: %+v", item)
	}
	if item.ExpiryDate == nil || !item.ExpiryDate.Equal(expiry) {
		t.Errorf("expiry not carried")
	}

	zero := decimal.Zero
	if item := PriceDeliveryItem(1, p, 4, &zero, nil); !item.TotalCost.IsZero() {
		t.Errorf("explicit zero cost should be kept, got %s", item.TotalCost)
	}
}

func TestCheckStock_CountsEarlierLines(t *testing.T) {
	p := beer()

	if err := CheckStock(p, 0, 10); err != nil {
		t.Fatalf("exact stock should pass: %v", err)
	}
	err := CheckStock(p, 6, 5)
	if err == nil {
		t.Fatal("expected insufficient stock")
	}
	de, ok := AsError(err)
	if !ok || de.Kind != KindState || de.Code != CodeInsufficientStock {
		t.Fatalf("unexpected error %#v", err)
	}
	if de.Message != "Insufficient stock for Diamond Ice Beer. Available: 4, Requested: 5" {
		t.Errorf("unexpected message %q", de.Message)
	}
}

func TestBalanceChanges(t *testing.T) {
	tests := []struct {
		name string
		got  BalanceChange
		want BalanceChange
	}{
		{"sale adds quantity", SaleChange(0, 5), BalanceChange{Delta: 5, Balance: 5}},
		{"delivery leaves balance", DeliveryChange(7, 12), BalanceChange{Received: 12, Balance: 7}},
		{"return subtracts", ReturnChange(5, 3), BalanceChange{Returned: 3, Delta: -3, Balance: 2}},
		{"return floors at zero", ReturnChange(2, 5), BalanceChange{Returned: 5, Delta: -2, Balance: 0}},
		{"positive adjustment", AdjustChange(5, 4), BalanceChange{Received: 4, Delta: 4, Balance: 9}},
		{"negative adjustment", AdjustChange(5, -2), BalanceChange{Returned: 2, Delta: -2, Balance: 3}},
		{"adjustment floors at zero", AdjustChange(1, -4), BalanceChange{Returned: 4, Delta: -1, Balance: 0}},
		{"void subtracts", VoidChange(8, 5), BalanceChange{Delta: -5, Balance: 3}},
		{"void floors at zero", VoidChange(2, 5), BalanceChange{Delta: -2, Balance: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %+v, want %+v", tt.got, tt.want)
			}
		})
	}
}

// The sell 5, return 3, void sequence must end at zero and replay cleanly.
func TestReplayBalance_SaleReturnVoid(t *testing.T) {
	var entries []CrateEntry
	balance := 0
	for i, change := range []func(int) BalanceChange{
		func(prev int) BalanceChange { return SaleChange(prev, 5) },
		func(prev int) BalanceChange { return ReturnChange(prev, 3) },
		func(prev int) BalanceChange { return VoidChange(prev, 5) },
	} {
		c := change(balance)
		balance = c.Balance
		entries = append(entries, CrateEntry{ID: i + 1, BalanceDelta: c.Delta, Balance: c.Balance})
	}

	if balance != 0 {
		t.Fatalf("expected final balance 0, got %d", balance)
	}
	replayed, err := ReplayBalance(entries)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replayed != entries[len(entries)-1].Balance {
		t.Errorf("replayed %d, stored %d", replayed, entries[len(entries)-1].Balance)
	}
}

func TestReplayBalance_DetectsTampering(t *testing.T) {
	entries := []CrateEntry{
		{ID: 1, BalanceDelta: 5, Balance: 5},
		{ID: 2, BalanceDelta: -3, Balance: 3},
	}
	if _, err := ReplayBalance(entries); err == nil {
		t.Fatal("expected mismatch on entry 2")
	}
	if got, err := ReplayBalance(nil); err != nil || got != 0 {
		t.Errorf("empty ledger should replay to 0, got %d, %v", got, err)
	}
}

func TestDecideRemoval(t *testing.T) {
	tests := []struct {
		refs ProductReferences
		want Removal
	}{
		{ProductReferences{}, RemovalDeleted},
		{ProductReferences{SaleItems: 1}, RemovalRetired},
		{ProductReferences{DeliveryItems: 2}, RemovalRetired},
		{ProductReferences{CrateEntries: 1}, RemovalRetired},
	}
	for _, tt := range tests {
		if got := DecideRemoval(tt.refs); got != tt.want {
			t.Errorf("DecideRemoval(%+v) = %s, want %s", tt.refs, got, tt.want)
		}
	}
}

func TestFormatDocumentNumber(t *testing.T) {
	day := time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC)
	if got := FormatDocumentNumber(ReceiptPrefix, day, 7); got != "RCP-20260307-007" {
		t.Errorf("got %s", got)
	}
	if got := FormatDocumentNumber(DeliveryPrefix, day, 1234); got != "DEL-20260307-1234" {
		t.Errorf("got %s", got)
	}
}

func TestCheckMoney(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"0", true},
		{"750", true},
		{"0.33", true},
		{"12.50", true},
		{"0.333", false},
		{"1.005", false},
		{"-0.01", false},
	}
	for _, tc := range cases {
		err := CheckMoney("price", decimal.RequireFromString(tc.in))
		if (err == nil) != tc.ok {
			t.Errorf("CheckMoney(%s) = %v, want ok=%v", tc.in, err, tc.ok)
		}
		if err != nil && KindOf(err) != KindValidation {
			t.Errorf("CheckMoney(%s) kind = %s", tc.in, KindOf(err))
		}
	}
	// Trailing zeros past the scale carry no extra precision.
	if err := CheckMoney("price", decimal.RequireFromString("2.500")); err != nil {
		t.Errorf("2.500 rejected: %v", err)
	}
}

func TestSubCentAmountsRejectedBeforePricing(t *testing.T) {
	third := decimal.RequireFromString("0.333")

	sale := CreateSaleInput{
		PaymentMethod: PaymentCash,
		Items:         []SaleLineInput{{ProductID: 1, Quantity: 3, UnitPrice: &third}},
	}
	if err := validateSaleInput(sale); KindOf(err) != KindValidation {
		t.Errorf("sale with unit price 0.333: got %v", err)
	}

	delivery := CreateDeliveryInput{
		Supplier:     "EABL",
		DeliveryDate: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
		Items:        []DeliveryLineInput{{ProductID: 1, Quantity: 3, UnitCost: &third}},
	}
	if err := validateDeliveryInput(delivery); KindOf(err) != KindValidation {
		t.Errorf("delivery with unit cost 0.333: got %v", err)
	}

	p := beer()
	p.Category = CategoryBeer
	p.SellingPrice = third
	if err := validateProduct(p); KindOf(err) != KindValidation {
		t.Errorf("product with selling price 0.333: got %v", err)
	}
	p.SellingPrice = decimal.NewFromInt(750)
	p.CostPrice = third
	if err := validateProduct(p); KindOf(err) != KindValidation {
		t.Errorf("product with cost price 0.333: got %v", err)
	}
}

func TestLineTotalsSurviveTwoPlaceStorage(t *testing.T) {
	price := decimal.RequireFromString("0.33")
	p := beer()
	p.CostPrice = decimal.RequireFromString("0.21")

	item := PriceSaleItem(1, p, 3, &price)
	amount, cost, profit := SaleTotals([]SaleItem{item})

	// Each column is stored rounded to MoneyScale; with valid inputs rounding changes nothing.
	for name, v := range map[string]decimal.Decimal{
		"unit_price": item.UnitPrice, "total_price": item.TotalPrice,
		"total_amount": amount, "total_cost": cost, "profit": profit,
	} {
		if !v.Equal(v.Round(MoneyScale)) {
			t.Errorf("%s = %s does not fit two decimal places", name, v)
		}
	}
	if !amount.Round(MoneyScale).Equal(item.UnitPrice.Round(MoneyScale).Mul(decimal.NewFromInt(3))) {
		t.Errorf("stored total %s != stored unit price * qty", amount.Round(MoneyScale))
	}
}
