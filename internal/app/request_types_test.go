package app

import (
	"context"
	"testing"
	"time"

	"retail-pos/internal/core"

	"github.com/shopspring/decimal"
)

func TestCreateSaleRequest_ToInput(t *testing.T) {
	price := decimal.NewFromInt(700)
	in, err := CreateSaleRequest{
		PaymentMethod: "Cash",
		Items:         []SaleItemRequest{{ProductID: 1, Quantity: 2, UnitPrice: &price}},
	}.toInput()
	if err != nil {
		t.Fatalf("toInput failed: %v", err)
	}
	if in.PaymentMethod != core.PaymentCash || len(in.Items) != 1 || !in.Items[0].UnitPrice.Equal(price) {
		t.Errorf("unexpected input %+v", in)
	}

	cases := map[string]CreateSaleRequest{
		"no items":       {PaymentMethod: "cash"},
		"no payment":     {Items: []SaleItemRequest{{ProductID: 1, Quantity: 1}}},
		"unknown method": {PaymentMethod: "cheque", Items: []SaleItemRequest{{ProductID: 1, Quantity: 1}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := req.toInput(); core.KindOf(err) != core.KindValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateDeliveryRequest_ToInput(t *testing.T) {
	in, err := CreateDeliveryRequest{
		Supplier:     "Kenya Breweries",
		DeliveryDate: "2026-02-14",
		Items:        []DeliveryItemRequest{{ProductID: 1, Quantity: 12, ExpiryDate: "2027-01-01"}},
	}.toInput()
	if err != nil {
		t.Fatalf("toInput failed: %v", err)
	}
	if !in.DeliveryDate.Equal(time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %s", in.DeliveryDate)
	}
	if in.Items[0].ExpiryDate == nil || in.Items[0].UnitCost != nil {
		t.Errorf("unexpected item %+v", in.Items[0])
	}

	if _, err := (CreateDeliveryRequest{Supplier: "x"}).toInput(); core.KindOf(err) != core.KindValidation {
		t.Errorf("missing date should be a validation error, got %v", err)
	}
	_, err = CreateDeliveryRequest{
		Supplier: "x", DeliveryDate: "2026-02-14",
		Items: []DeliveryItemRequest{{ProductID: 1, Quantity: 1, ExpiryDate: "soon"}},
	}.toInput()
	if core.KindOf(err) != core.KindValidation {
		t.Errorf("bad expiry should be a validation error, got %v", err)
	}
}

func TestListProductsRequest_AllCategory(t *testing.T) {
	f, err := ListProductsRequest{Category: "all", LowStock: true}.toFilter()
	if err != nil || f.Category != nil || !f.LowStock {
		t.Errorf("unexpected filter %+v (%v)", f, err)
	}
	f, err = ListProductsRequest{Category: "gin"}.toFilter()
	if err != nil || f.Category == nil || *f.Category != core.CategoryGin {
		t.Errorf("unexpected filter %+v (%v)", f, err)
	}
	if _, err := (ListProductsRequest{Category: "cider"}).toFilter(); err == nil {
		t.Error("unknown category accepted")
	}
}

func TestListSalesRequest_Range(t *testing.T) {
	f, err := ListSalesRequest{StartDate: "2026-01-01", EndDate: "2026-01-31", PaymentMethod: "mpesa"}.toFilter(time.UTC)
	if err != nil {
		t.Fatalf("toFilter failed: %v", err)
	}
	if f.Page.Limit != core.DefaultPageLimit || f.PaymentMethod == nil || *f.PaymentMethod != core.PaymentMpesa {
		t.Errorf("unexpected filter %+v", f)
	}
	if _, err := (ListSalesRequest{StartDate: "2026-02-01", EndDate: "2026-01-01"}).toFilter(time.UTC); err == nil {
		t.Error("reversed range accepted")
	}
}

func TestListSalesRequest_RangeInBusinessTimezone(t *testing.T) {
	eat := time.FixedZone("EAT", 3*60*60)
	f, err := ListSalesRequest{StartDate: "2026-10-18", EndDate: "2026-10-18"}.toFilter(eat)
	if err != nil {
		t.Fatalf("toFilter failed: %v", err)
	}
	if f.Range.From.Location() != eat || f.Range.To.Location() != eat {
		t.Fatalf("range parsed in %s, want EAT", f.Range.From.Location())
	}
	if want := time.Date(2026, 10, 17, 21, 0, 0, 0, time.UTC); !f.Range.From.Equal(want) {
		t.Errorf("start %s, want %s", f.Range.From.UTC(), want)
	}

	svc := NewAppService(nil, nil, nil, nil, nil, nil, nil).(*appService)
	if svc.loc != time.UTC {
		t.Errorf("nil location should default to UTC, got %s", svc.loc)
	}
}

func TestCreateUser_RequiresAdmin(t *testing.T) {
	svc := &appService{}
	_, err := svc.CreateUser(context.Background(), CreateUserRequest{ActorRole: core.RoleStaff, Username: "x"})
	if core.KindOf(err) != core.KindForbidden {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestUpdateProductRequest_ParsesEnums(t *testing.T) {
	bad := "barrel"
	if _, err := (UpdateProductRequest{UnitType: &bad}).toInput(); err == nil {
		t.Error("unknown unit type accepted")
	}
	cat := "Rum"
	in, err := UpdateProductRequest{Category: &cat}.toInput()
	if err != nil || in.Category == nil || *in.Category != core.CategoryRum {
		t.Errorf("unexpected input %+v (%v)", in, err)
	}
}
