package app

import (
	"strings"
	"time"

	"retail-pos/internal/core"

	"github.com/shopspring/decimal"
)

// Requests carry raw adapter input (enum and date strings). Conversion to core
// inputs happens here so the CLI and the web adapter parse identically.

type ChangePasswordRequest struct {
	UserID          int
	CurrentPassword string
	NewPassword     string
}

type CreateUserRequest struct {
	ActorRole core.Role
	Username  string
	Password  string
	FullName  string
	Role      string // empty means staff
}

func (r CreateUserRequest) toInput() (core.CreateUserInput, error) {
	in := core.CreateUserInput{Username: r.Username, Password: r.Password, FullName: r.FullName}
	if strings.TrimSpace(r.Role) != "" {
		role, err := core.ParseRole(r.Role)
		if err != nil {
			return in, err
		}
		in.Role = role
	}
	return in, nil
}

type ListProductsRequest struct {
	Category string // empty or "all" means any
	Search   string
	LowStock bool
}

func (r ListProductsRequest) toFilter() (core.ProductFilter, error) {
	f := core.ProductFilter{Search: r.Search, LowStock: r.LowStock}
	if c := strings.TrimSpace(r.Category); c != "" && !strings.EqualFold(c, "all") {
		cat, err := core.ParseCategory(c)
		if err != nil {
			return f, err
		}
		f.Category = &cat
	}
	return f, nil
}

type CreateProductRequest struct {
	Name             string
	Category         string
	UnitType         string
	Description      string
	Barcode          string
	CostPrice        decimal.Decimal
	SellingPrice     decimal.Decimal
	CurrentStock     int
	MinimumStock     *int
	HasCrateTracking bool
}

func (r CreateProductRequest) toInput() (core.CreateProductInput, error) {
	in := core.CreateProductInput{
		Name:             r.Name,
		Description:      r.Description,
		Barcode:          r.Barcode,
		CostPrice:        r.CostPrice,
		SellingPrice:     r.SellingPrice,
		CurrentStock:     r.CurrentStock,
		MinimumStock:     r.MinimumStock,
		HasCrateTracking: r.HasCrateTracking,
	}
	var err error
	if in.Category, err = core.ParseCategory(r.Category); err != nil {
		return in, err
	}
	if in.UnitType, err = core.ParseUnitType(r.UnitType); err != nil {
		return in, err
	}
	return in, nil
}

type UpdateProductRequest struct {
	Name             *string
	Category         *string
	UnitType         *string
	Description      *string
	Barcode          *string
	CostPrice        *decimal.Decimal
	SellingPrice     *decimal.Decimal
	MinimumStock     *int
	HasCrateTracking *bool
	IsActive         *bool
}

func (r UpdateProductRequest) toInput() (core.UpdateProductInput, error) {
	in := core.UpdateProductInput{
		Name:             r.Name,
		Description:      r.Description,
		Barcode:          r.Barcode,
		CostPrice:        r.CostPrice,
		SellingPrice:     r.SellingPrice,
		MinimumStock:     r.MinimumStock,
		HasCrateTracking: r.HasCrateTracking,
		IsActive:         r.IsActive,
	}
	if r.Category != nil {
		c, err := core.ParseCategory(*r.Category)
		if err != nil {
			return in, err
		}
		in.Category = &c
	}
	if r.UnitType != nil {
		u, err := core.ParseUnitType(*r.UnitType)
		if err != nil {
			return in, err
		}
		in.UnitType = &u
	}
	return in, nil
}

type SaleItemRequest struct {
	ProductID int
	Quantity  int
	UnitPrice *decimal.Decimal
}

type CreateSaleRequest struct {
	UserID          int
	PaymentMethod   string
	CustomerName    string
	CustomerContact string
	Notes           string
	Items           []SaleItemRequest
}

func (r CreateSaleRequest) toInput() (core.CreateSaleInput, error) {
	in := core.CreateSaleInput{
		CustomerName:    r.CustomerName,
		CustomerContact: r.CustomerContact,
		Notes:           r.Notes,
	}
	if len(r.Items) == 0 {
		return in, core.Validationf("Sale must have at least one item")
	}
	if strings.TrimSpace(r.PaymentMethod) == "" {
		return in, core.Validationf("Payment method is required")
	}
	pm, err := core.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return in, err
	}
	in.PaymentMethod = pm
	for _, it := range r.Items {
		in.Items = append(in.Items, core.SaleLineInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return in, nil
}

type VoidSaleRequest struct {
	UserID int
	SaleID int
	Reason string
}

type ListSalesRequest struct {
	Page          int
	Limit         int
	StartDate     string
	EndDate       string
	PaymentMethod string
}

func (r ListSalesRequest) toFilter(loc *time.Location) (core.SaleFilter, error) {
	f := core.SaleFilter{Page: core.NewPage(r.Page, r.Limit)}
	var err error
	if f.Range, err = parseRange(r.StartDate, r.EndDate, loc); err != nil {
		return f, err
	}
	if strings.TrimSpace(r.PaymentMethod) != "" {
		pm, err := core.ParsePaymentMethod(r.PaymentMethod)
		if err != nil {
			return f, err
		}
		f.PaymentMethod = &pm
	}
	return f, nil
}

type DeliveryItemRequest struct {
	ProductID  int
	Quantity   int
	UnitCost   *decimal.Decimal
	ExpiryDate string
}

type CreateDeliveryRequest struct {
	UserID       int
	Supplier     string
	DeliveryDate string
	Notes        string
	Items        []DeliveryItemRequest
}

func (r CreateDeliveryRequest) toInput() (core.CreateDeliveryInput, error) {
	in := core.CreateDeliveryInput{Supplier: r.Supplier, Notes: r.Notes}
	date, err := core.ParseDate("delivery date", r.DeliveryDate)
	if err != nil {
		return in, err
	}
	if date == nil {
		return in, core.Validationf("Delivery date is required")
	}
	in.DeliveryDate = *date
	for i, it := range r.Items {
		expiry, err := core.ParseDate("expiry date", it.ExpiryDate)
		if err != nil {
			return in, core.Validationf("item %d: %v", i+1, err)
		}
		in.Items = append(in.Items, core.DeliveryLineInput{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			UnitCost:   it.UnitCost,
			ExpiryDate: expiry,
		})
	}
	return in, nil
}

type UpdateDeliveryRequest struct {
	Supplier     *string
	DeliveryDate *string
	Notes        *string
	IsReceived   *bool
}

func (r UpdateDeliveryRequest) toInput() (core.UpdateDeliveryInput, error) {
	in := core.UpdateDeliveryInput{Supplier: r.Supplier, Notes: r.Notes, IsReceived: r.IsReceived}
	if r.DeliveryDate != nil {
		date, err := core.ParseDate("delivery date", *r.DeliveryDate)
		if err != nil {
			return in, err
		}
		if date == nil {
			return in, core.Validationf("Delivery date cannot be empty")
		}
		in.DeliveryDate = date
	}
	return in, nil
}

type ListDeliveriesRequest struct {
	Page      int
	Limit     int
	StartDate string
	EndDate   string
	Supplier  string
}

type CrateReturnRequest struct {
	UserID         int
	ProductID      int
	CratesReturned int
	Notes          string
}

type CrateAdjustRequest struct {
	UserID     int
	ProductID  int
	Adjustment int
	Notes      string
}

type CrateSummaryRequest struct {
	StartDate string
	EndDate   string
}

// parseRange reads both bounds as calendar days in loc.
func parseRange(start, end string, loc *time.Location) (core.DateRange, error) {
	var (
		r   core.DateRange
		err error
	)
	if r.From, err = core.ParseDateIn("start date", start, loc); err != nil {
		return r, err
	}
	if r.To, err = core.ParseDateIn("end date", end, loc); err != nil {
		return r, err
	}
	return r, r.Validate()
}
