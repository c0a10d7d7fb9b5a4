package app

import (
	"context"

	"retail-pos/internal/core"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// ── Users ────────────────────────────────────────────────────────────────

	// AuthenticateUser verifies credentials and returns the user. Any mismatch is an auth error.
	AuthenticateUser(ctx context.Context, username, password string) (*core.User, error)

	GetUser(ctx context.Context, userID int) (*core.User, error)

	ChangePassword(ctx context.Context, req ChangePasswordRequest) error

	// CreateUser is admin-only; the caller's role is checked here as well as in the adapter.
	CreateUser(ctx context.Context, req CreateUserRequest) (*core.User, error)

	// ── Products ─────────────────────────────────────────────────────────────

	ListProducts(ctx context.Context, req ListProductsRequest) (*ProductListResult, error)
	GetProduct(ctx context.Context, productID int) (*core.Product, error)
	CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error)
	UpdateProduct(ctx context.Context, productID int, req UpdateProductRequest) (*core.Product, error)

	// RemoveProduct retires or deletes a product depending on whether it has history.
	RemoveProduct(ctx context.Context, productID int) (*RemoveProductResult, error)

	ListCategories() []core.Category
	ListUnitTypes() []core.UnitType

	// ── Sales ────────────────────────────────────────────────────────────────

	CreateSale(ctx context.Context, req CreateSaleRequest) (*core.Sale, error)
	VoidSale(ctx context.Context, req VoidSaleRequest) (*core.Sale, error)
	GetSale(ctx context.Context, saleID int) (*core.Sale, error)
	ListSales(ctx context.Context, req ListSalesRequest) (*SaleListResult, error)

	// ── Deliveries ───────────────────────────────────────────────────────────

	CreateDelivery(ctx context.Context, req CreateDeliveryRequest) (*core.Delivery, error)
	UpdateDelivery(ctx context.Context, deliveryID int, req UpdateDeliveryRequest) (*core.Delivery, error)
	GetDelivery(ctx context.Context, deliveryID int) (*core.Delivery, error)
	ListDeliveries(ctx context.Context, req ListDeliveriesRequest) (*DeliveryListResult, error)
	ListSuppliers(ctx context.Context) ([]string, error)

	// ── Crates ───────────────────────────────────────────────────────────────

	GetCrateBalances(ctx context.Context) ([]core.CrateBalance, error)
	GetCrateHistory(ctx context.Context, productID, page, limit int) (*CrateHistoryResult, error)
	RecordCrateReturn(ctx context.Context, req CrateReturnRequest) (*CrateMutationResult, error)
	AdjustCrateBalance(ctx context.Context, req CrateAdjustRequest) (*CrateMutationResult, error)
	GetCrateSummary(ctx context.Context, req CrateSummaryRequest) (*core.CrateSummary, error)

	// VerifyCrateLedger replays every product's crate ledger from zero.
	VerifyCrateLedger(ctx context.Context) (*LedgerVerificationResult, error)
}
