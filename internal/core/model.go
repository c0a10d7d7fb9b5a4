package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the closed set of product categories.
type Category string

const (
	CategoryBeer      Category = "beer"
	CategoryWine      Category = "wine"
	CategoryVodka     Category = "vodka"
	CategoryGin       Category = "gin"
	CategoryWhiskey   Category = "whiskey"
	CategoryRum       Category = "rum"
	CategoryBrandy    Category = "brandy"
	CategoryChampagne Category = "champagne"
	CategoryOther     Category = "other"
)

var Categories = []Category{
	CategoryBeer, CategoryWine, CategoryVodka, CategoryGin, CategoryWhiskey,
	CategoryRum, CategoryBrandy, CategoryChampagne, CategoryOther,
}

// UnitType is how a product is counted in stock.
type UnitType string

const (
	UnitCrate  UnitType = "crate"
	UnitCarton UnitType = "carton"
	UnitBottle UnitType = "bottle"
	UnitPiece  UnitType = "piece"
	UnitCase   UnitType = "case"
)

var UnitTypes = []UnitType{UnitCrate, UnitCarton, UnitBottle, UnitPiece, UnitCase}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentMpesa  PaymentMethod = "mpesa"
	PaymentBank   PaymentMethod = "bank"
	PaymentCredit PaymentMethod = "credit"
)

var PaymentMethods = []PaymentMethod{PaymentCash, PaymentMpesa, PaymentBank, PaymentCredit}

// CrateTxType identifies what caused a crate ledger entry.
type CrateTxType string

const (
	CrateTxDelivery   CrateTxType = "delivery"
	CrateTxSale       CrateTxType = "sale"
	CrateTxReturn     CrateTxType = "return"
	CrateTxAdjustment CrateTxType = "adjustment"
)

var CrateTxTypes = []CrateTxType{CrateTxDelivery, CrateTxSale, CrateTxReturn, CrateTxAdjustment}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

var Roles = []Role{RoleAdmin, RoleStaff}

func parseEnum[T ~string](field, raw string, allowed []T) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(raw)))
	for _, a := range allowed {
		if a == v {
			return v, nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	var zero T
	return zero, Validationf("invalid %s %q: must be one of %s", field, raw, strings.Join(names, ", "))
}

func ParseCategory(s string) (Category, error)           { return parseEnum("category", s, Categories) }
func ParseUnitType(s string) (UnitType, error)           { return parseEnum("unit type", s, UnitTypes) }
func ParsePaymentMethod(s string) (PaymentMethod, error) { return parseEnum("payment method", s, PaymentMethods) }
func ParseCrateTxType(s string) (CrateTxType, error)     { return parseEnum("transaction type", s, CrateTxTypes) }
func ParseRole(s string) (Role, error)                   { return parseEnum("role", s, Roles) }

func (c *Category) UnmarshalText(b []byte) (err error) {
	*c, err = ParseCategory(string(b))
	return err
}

func (u *UnitType) UnmarshalText(b []byte) (err error) {
	*u, err = ParseUnitType(string(b))
	return err
}

func (p *PaymentMethod) UnmarshalText(b []byte) (err error) {
	*p, err = ParsePaymentMethod(string(b))
	return err
}

func (t *CrateTxType) UnmarshalText(b []byte) (err error) {
	*t, err = ParseCrateTxType(string(b))
	return err
}

func (r *Role) UnmarshalText(b []byte) (err error) {
	*r, err = ParseRole(string(b))
	return err
}

type Product struct {
	ID               int             `json:"id"`
	Name             string          `json:"name"`
	Category         Category        `json:"category"`
	UnitType         UnitType        `json:"unit_type"`
	Description      *string         `json:"description,omitempty"`
	Barcode          *string         `json:"barcode,omitempty"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	SellingPrice     decimal.Decimal `json:"selling_price"`
	CurrentStock     int             `json:"current_stock"`
	MinimumStock     int             `json:"minimum_stock"`
	IsActive         bool            `json:"is_active"`
	HasCrateTracking bool            `json:"has_crate_tracking"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsLowStock reports whether stock is at or below the reorder threshold.
func (p *Product) IsLowStock() bool {
	return p.CurrentStock <= p.MinimumStock
}

type Sale struct {
	ID              int             `json:"id"`
	ReceiptNumber   string          `json:"receipt_number"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	Profit          decimal.Decimal `json:"profit"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	CustomerName    *string         `json:"customer_name,omitempty"`
	CustomerContact *string         `json:"customer_contact,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	IsVoided        bool            `json:"is_voided"`
	VoidReason      *string         `json:"void_reason,omitempty"`
	VoidedAt        *time.Time      `json:"voided_at,omitempty"`
	SoldBy          int             `json:"sold_by"`
	SoldByName      string          `json:"sold_by_name,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []SaleItem      `json:"items,omitempty"`
}

type SaleItem struct {
	ID          int             `json:"id"`
	LineNo      int             `json:"line_no"`
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitType    UnitType        `json:"unit_type"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	Profit      decimal.Decimal `json:"profit"`
}

type Delivery struct {
	ID             int             `json:"id"`
	DeliveryNumber string          `json:"delivery_number"`
	Supplier       string          `json:"supplier"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	DeliveryDate   time.Time       `json:"delivery_date"`
	Notes          *string         `json:"notes,omitempty"`
	IsReceived     bool            `json:"is_received"`
	ReceivedBy     int             `json:"received_by"`
	ReceivedByName string          `json:"received_by_name,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Items          []DeliveryItem  `json:"items,omitempty"`
}

type DeliveryItem struct {
	ID          int             `json:"id"`
	LineNo      int             `json:"line_no"`
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitType    UnitType        `json:"unit_type"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty"`
}

// CrateEntry is one append-only row of the crate deposit ledger.
// Balance is the number of crates owed to the supplier after this entry.
type CrateEntry struct {
	ID              int         `json:"id"`
	ProductID       int         `json:"product_id"`
	ProductName     string      `json:"product_name,omitempty"`
	TransactionType CrateTxType `json:"transaction_type"`
	TransactionID   *int        `json:"transaction_id,omitempty"`
	CratesReceived  int         `json:"crates_received"`
	CratesReturned  int         `json:"crates_returned"`
	BalanceDelta    int         `json:"balance_delta"`
	Balance         int         `json:"crates_balance"`
	Notes           *string     `json:"notes,omitempty"`
	ProcessedBy     int         `json:"processed_by"`
	ProcessedByName string      `json:"processed_by_name,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

type CrateBalance struct {
	ProductID      int        `json:"product_id"`
	ProductName    string     `json:"product_name"`
	CurrentBalance int        `json:"current_balance"`
	LastUpdated    *time.Time `json:"last_updated"`
}

type CrateSummaryRow struct {
	ProductID      int    `json:"product_id"`
	ProductName    string `json:"product_name"`
	TotalReceived  int    `json:"total_received"`
	TotalReturned  int    `json:"total_returned"`
	Adjustments    int    `json:"adjustments"`
	CurrentBalance int    `json:"current_balance"`
	Records        int    `json:"records"`
}

type CrateSummary struct {
	Summary      []CrateSummaryRow `json:"summary"`
	TotalRecords int               `json:"total_records"`
}

// Page is a normalized pagination request.
type Page struct {
	Number int
	Limit  int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// NewPage clamps page and limit to sane values: page >= 1, 1 <= limit <= MaxPageLimit.
func NewPage(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

type Pagination struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalItems   int `json:"total_items"`
	ItemsPerPage int `json:"items_per_page"`
}

func (p Page) Paginate(total int) Pagination {
	return Pagination{
		CurrentPage:  p.Number,
		TotalPages:   (total + p.Limit - 1) / p.Limit,
		TotalItems:   total,
		ItemsPerPage: p.Limit,
	}
}

// DateRange filters by calendar day. To is inclusive through the end of that day.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// bounds returns the half-open [from, toExclusive) interval, nil where unbounded.
func (r DateRange) bounds() (from, toExclusive *time.Time) {
	if r.From != nil {
		f := startOfDay(*r.From)
		from = &f
	}
	if r.To != nil {
		t := startOfDay(*r.To).AddDate(0, 0, 1)
		toExclusive = &t
	}
	return from, toExclusive
}

func (r DateRange) Validate() error {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return Validationf("end date %s is before start date %s", r.To.Format(DateLayout), r.From.Format(DateLayout))
	}
	return nil
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses an optional YYYY-MM-DD value as a UTC day. Empty input yields nil.
func ParseDate(field, s string) (*time.Time, error) {
	return ParseDateIn(field, s, time.UTC)
}

// ParseDateIn parses an optional YYYY-MM-DD value as midnight in loc, the
// business day receipt numbers are dated by. A nil loc means UTC.
func ParseDateIn(field, s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return nil, Validationf("invalid %s %q: expected YYYY-MM-DD", field, s)
	}
	return &t, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func nullIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
