package app

import (
	"context"
	"fmt"
	"time"

	"retail-pos/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type appService struct {
	pool       *pgxpool.Pool
	products   core.ProductService
	sales      core.SaleService
	deliveries core.DeliveryService
	crates     core.CrateLedger
	users      core.UserService
	// loc is the business calendar date filters are read in.
	loc        *time.Location
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	loc *time.Location,
	products core.ProductService,
	sales core.SaleService,
	deliveries core.DeliveryService,
	crates core.CrateLedger,
	users core.UserService,
) ApplicationService {
	if loc == nil {
		loc = time.UTC
	}
	return &appService{
		pool:       pool,
		loc:        loc,
		products:   products,
		sales:      sales,
		deliveries: deliveries,
		crates:     crates,
		users:      users,
	}
}

// New wires the core services over one pool. loc is the calendar for document
// numbers and date filters.
func New(pool *pgxpool.Pool, loc *time.Location, log logrus.FieldLogger) ApplicationService {
	numberer := core.NewDocumentNumberer(loc)
	return NewAppService(
		pool,
		loc,
		core.NewProductService(pool, log),
		core.NewSaleService(pool, numberer, log),
		core.NewDeliveryService(pool, numberer, log),
		core.NewCrateLedger(pool, log),
		core.NewUserService(pool, log),
	)
}

func (s *appService) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("database pool not configured")
	}
	return s.pool.Ping(ctx)
}

// ── Users ────────────────────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*core.User, error) {
	return s.users.Authenticate(ctx, username, password)
}

func (s *appService) GetUser(ctx context.Context, userID int) (*core.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *appService) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	return s.users.ChangePassword(ctx, req.UserID, req.CurrentPassword, req.NewPassword)
}

func (s *appService) CreateUser(ctx context.Context, req CreateUserRequest) (*core.User, error) {
	if req.ActorRole != core.RoleAdmin {
		return nil, core.Forbiddenf("Only administrators can create users")
	}
	in, err := req.toInput()
	if err != nil {
		return nil, err
	}
	return s.users.CreateUser(ctx, in)
}

// ── Products ─────────────────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context, req ListProductsRequest) (*ProductListResult, error) {
	filter, err := req.toFilter()
	if err != nil {
		return nil, err
	}
	products, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) GetProduct(ctx context.Context, productID int) (*core.Product, error) {
	return s.products.GetProduct(ctx, productID)
}

func (s *appService) CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error) {
	in, err := req.toInput()
	if err != nil {
		return nil, err
	}
	return s.products.CreateProduct(ctx, in)
}

func (s *appService) UpdateProduct(ctx context.Context, productID int, req UpdateProductRequest) (*core.Product, error) {
	in, err := req.toInput()
	if err != nil {
		return nil, err
	}
	return s.products.UpdateProduct(ctx, productID, in)
}

func (s *appService) RemoveProduct(ctx context.Context, productID int) (*RemoveProductResult, error) {
	removal, err := s.products.RemoveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	msg := "Product deleted successfully"
	if removal == core.RemovalRetired {
		msg = "Product deactivated (has transaction history)"
	}
	return &RemoveProductResult{ProductID: productID, Removal: removal, Message: msg}, nil
}

func (s *appService) ListCategories() []core.Category {
	return append([]core.Category(nil), core.Categories...)
}

func (s *appService) ListUnitTypes() []core.UnitType {
	return append([]core.UnitType(nil), core.UnitTypes...)
}

// ── Sales ────────────────────────────────────────────────────────────────────

func (s *appService) CreateSale(ctx context.Context, req CreateSaleRequest) (*core.Sale, error) {
	in, err := req.toInput()
	if err != nil {
		return nil, err
	}
	return s.sales.CreateSale(ctx, req.UserID, in)
}

func (s *appService) VoidSale(ctx context.Context, req VoidSaleRequest) (*core.Sale, error) {
	return s.sales.VoidSale(ctx, req.UserID, req.SaleID, req.Reason)
}

func (s *appService) GetSale(ctx context.Context, saleID int) (*core.Sale, error) {
	return s.sales.GetSale(ctx, saleID)
}

func (s *appService) ListSales(ctx context.Context, req ListSalesRequest) (*SaleListResult, error) {
	filter, err := req.toFilter(s.loc)
	if err != nil {
		return nil, err
	}
	page, err := s.sales.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &SaleListResult{Sales: page.Sales, Pagination: page.Pagination}, nil
}

// ── Deliveries ───────────────────────────────────────────────────────────────

func (s *appService) CreateDelivery(ctx context.Context, req CreateDeliveryRequest) (*core.Delivery, error) {
	in, err := req.toInput()
	if err != nil {
		return nil, err
	}
	return s.deliveries.CreateDelivery(ctx, req.UserID, in)
}

func (s *appService) UpdateDelivery(ctx context.Context, deliveryID int, req UpdateDeliveryRequest) (*core.Delivery, error) {
	in, err := req.toInput()
	if err != nil {
		return nil, err
	}
	return s.deliveries.UpdateDelivery(ctx, deliveryID, in)
}

func (s *appService) GetDelivery(ctx context.Context, deliveryID int) (*core.Delivery, error) {
	return s.deliveries.GetDelivery(ctx, deliveryID)
}

func (s *appService) ListDeliveries(ctx context.Context, req ListDeliveriesRequest) (*DeliveryListResult, error) {
	r, err := parseRange(req.StartDate, req.EndDate, s.loc)
	if err != nil {
		return nil, err
	}
	page, err := s.deliveries.ListDeliveries(ctx, core.DeliveryFilter{
		Page:     core.NewPage(req.Page, req.Limit),
		Range:    r,
		Supplier: req.Supplier,
	})
	if err != nil {
		return nil, err
	}
	return &DeliveryListResult{Deliveries: page.Deliveries, Pagination: page.Pagination}, nil
}

func (s *appService) ListSuppliers(ctx context.Context) ([]string, error) {
	return s.deliveries.ListSuppliers(ctx)
}

// ── Crates ───────────────────────────────────────────────────────────────────

func (s *appService) GetCrateBalances(ctx context.Context) ([]core.CrateBalance, error) {
	return s.crates.GetAllBalances(ctx)
}

func (s *appService) GetCrateHistory(ctx context.Context, productID, page, limit int) (*CrateHistoryResult, error) {
	h, err := s.crates.GetHistory(ctx, productID, core.NewPage(page, limit))
	if err != nil {
		return nil, err
	}
	return &CrateHistoryResult{
		ProductID:      h.ProductID,
		ProductName:    h.ProductName,
		CurrentBalance: h.CurrentBalance,
		History:        h.Entries,
		Pagination:     h.Pagination,
	}, nil
}

func (s *appService) RecordCrateReturn(ctx context.Context, req CrateReturnRequest) (*CrateMutationResult, error) {
	entry, err := s.crates.RecordReturn(ctx, req.UserID, core.CrateReturnInput{
		ProductID:      req.ProductID,
		CratesReturned: req.CratesReturned,
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, err
	}
	return &CrateMutationResult{Entry: entry, NewBalance: entry.Balance}, nil
}

func (s *appService) AdjustCrateBalance(ctx context.Context, req CrateAdjustRequest) (*CrateMutationResult, error) {
	entry, err := s.crates.AdjustBalance(ctx, req.UserID, core.CrateAdjustInput{
		ProductID:  req.ProductID,
		Adjustment: req.Adjustment,
		Notes:      req.Notes,
	})
	if err != nil {
		return nil, err
	}
	return &CrateMutationResult{Entry: entry, NewBalance: entry.Balance}, nil
}

func (s *appService) GetCrateSummary(ctx context.Context, req CrateSummaryRequest) (*core.CrateSummary, error) {
	r, err := parseRange(req.StartDate, req.EndDate, s.loc)
	if err != nil {
		return nil, err
	}
	return s.crates.GetSummary(ctx, r)
}

func (s *appService) VerifyCrateLedger(ctx context.Context) (*LedgerVerificationResult, error) {
	checks, err := s.crates.VerifyLedger(ctx)
	if err != nil {
		return nil, err
	}
	res := &LedgerVerificationResult{Checks: checks}
	for _, c := range checks {
		if !c.OK() {
			res.Mismatches++
		}
	}
	return res, nil
}
