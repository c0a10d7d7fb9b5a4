package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ── Pricing ──────────────────────────────────────────────────────────────────

// MoneyScale is the number of decimal places money columns store.
const MoneyScale = 2

// CheckMoney rejects negative amounts and amounts finer than MoneyScale, which
// the database would round column by column and so break line totals.
func CheckMoney(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return Validationf("%s cannot be negative", field)
	}
	if !d.Equal(d.Truncate(MoneyScale)) {
		return Validationf("%s must have at most %d decimal places", field, MoneyScale)
	}
	return nil
}

// PriceSaleItem prices one cart line. unitPrice overrides the product's selling
// price when set; unit cost is always the product's cost price.
func PriceSaleItem(lineNo int, p *Product, quantity int, unitPrice *decimal.Decimal) SaleItem {
	price := p.SellingPrice
	if unitPrice != nil {
		price = *unitPrice
	}
	qty := decimal.NewFromInt(int64(quantity))
	totalPrice := price.Mul(qty)
	totalCost := p.CostPrice.Mul(qty)
	return SaleItem{
		LineNo:      lineNo,
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitType:    p.UnitType,
		Quantity:    quantity,
		UnitPrice:   price,
		UnitCost:    p.CostPrice,
		TotalPrice:  totalPrice,
		TotalCost:   totalCost,
		Profit:      totalPrice.Sub(totalCost),
	}
}

// SaleTotals sums the line values. profit == amount - cost by construction.
func SaleTotals(items []SaleItem) (amount, cost, profit decimal.Decimal) {
	for _, it := range items {
		amount = amount.Add(it.TotalPrice)
		cost = cost.Add(it.TotalCost)
	}
	return amount, cost, amount.Sub(cost)
}

// PriceDeliveryItem costs one delivery line, defaulting to the product's cost price.
func PriceDeliveryItem(lineNo int, p *Product, quantity int, unitCost *decimal.Decimal, expiry *time.Time) DeliveryItem {
	cost := p.CostPrice
	if unitCost != nil {
		cost = *unitCost
	}
	return DeliveryItem{
		LineNo:      lineNo,
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitType:    p.UnitType,
		Quantity:    quantity,
		UnitCost:    cost,
		TotalCost:   cost.Mul(decimal.NewFromInt(int64(quantity))),
		ExpiryDate:  expiry,
	}
}

// CheckStock verifies that quantity more units can leave stock, given the units
// already claimed by earlier lines of the same cart.
func CheckStock(p *Product, claimed, quantity int) error {
	available := p.CurrentStock - claimed
	if quantity > available {
		return Statef(CodeInsufficientStock,
			"Insufficient stock for %s. Available: %d, Requested: %d", p.Name, available, quantity)
	}
	return nil
}

// ── Crate balance rules ──────────────────────────────────────────────────────

// BalanceChange is the effect of one ledger entry. Delta is the change actually
// applied after any floor, so Balance == previous + Delta always holds.
type BalanceChange struct {
	Received int
	Returned int
	Delta    int
	Balance  int
}

func floored(prev, delta int) BalanceChange {
	balance := prev + delta
	if balance < 0 {
		balance = 0
	}
	return BalanceChange{Delta: balance - prev, Balance: balance}
}

// SaleChange: crates leave with the customer, so the debt to the supplier grows.
func SaleChange(prev, quantity int) BalanceChange {
	return BalanceChange{Delta: quantity, Balance: prev + quantity}
}

// DeliveryChange records crates received without touching what is owed.
func DeliveryChange(prev, quantity int) BalanceChange {
	return BalanceChange{Received: quantity, Balance: prev}
}

func ReturnChange(prev, returned int) BalanceChange {
	c := floored(prev, -returned)
	c.Returned = returned
	return c
}

func AdjustChange(prev, adjustment int) BalanceChange {
	c := floored(prev, adjustment)
	if adjustment > 0 {
		c.Received = adjustment
	} else {
		c.Returned = -adjustment
	}
	return c
}

// VoidChange undoes a sale's increase, floored at zero.
func VoidChange(prev, quantity int) BalanceChange {
	return floored(prev, -quantity)
}

// ReplayBalance folds entries (oldest first) from zero and checks each stored
// balance against the running total. It returns the replayed balance.
func ReplayBalance(entries []CrateEntry) (int, error) {
	balance := 0
	for _, e := range entries {
		balance += e.BalanceDelta
		if balance != e.Balance {
			return balance, fmt.Errorf("entry %d: stored balance %d, replayed %d", e.ID, e.Balance, balance)
		}
		if balance < 0 {
			return balance, fmt.Errorf("entry %d: negative balance %d", e.ID, balance)
		}
	}
	return balance, nil
}

// ── Product lifecycle ────────────────────────────────────────────────────────

type Removal string

const (
	// RemovalRetired keeps the row for history and hides it from the catalogue.
	RemovalRetired Removal = "retired"
	RemovalDeleted Removal = "deleted"
)

// ProductReferences counts the rows that point at a product.
type ProductReferences struct {
	SaleItems     int
	DeliveryItems int
	CrateEntries  int
}

func (r ProductReferences) Any() bool {
	return r.SaleItems > 0 || r.DeliveryItems > 0 || r.CrateEntries > 0
}

// DecideRemoval retires a referenced product and deletes an unreferenced one.
func DecideRemoval(refs ProductReferences) Removal {
	if refs.Any() {
		return RemovalRetired
	}
	return RemovalDeleted
}

// ── Document numbers ─────────────────────────────────────────────────────────

const (
	ReceiptPrefix  = "RCP"
	DeliveryPrefix = "DEL"
)

// FormatDocumentNumber renders PREFIX-YYYYMMDD-NNN. Sequences above 999 widen.
func FormatDocumentNumber(prefix string, day time.Time, n int) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, day.Format("20060102"), n)
}
