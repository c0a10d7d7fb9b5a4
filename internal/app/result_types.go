package app

import "retail-pos/internal/core"

// ProductListResult is returned by ListProducts.
type ProductListResult struct {
	Products []core.Product
}

// RemoveProductResult reports which removal path was taken.
type RemoveProductResult struct {
	ProductID int
	Removal   core.Removal
	Message   string
}

// SaleListResult is returned by ListSales.
type SaleListResult struct {
	Sales      []core.Sale
	Pagination core.Pagination
}

// DeliveryListResult is returned by ListDeliveries.
type DeliveryListResult struct {
	Deliveries []core.Delivery
	Pagination core.Pagination
}

// CrateHistoryResult is one page of a product's ledger, newest first.
type CrateHistoryResult struct {
	ProductID      int
	ProductName    string
	CurrentBalance int
	History        []core.CrateEntry
	Pagination     core.Pagination
}

// CrateMutationResult is returned by manual crate returns and adjustments.
type CrateMutationResult struct {
	Entry      *core.CrateEntry
	NewBalance int
}

// LedgerVerificationResult is returned by VerifyCrateLedger.
type LedgerVerificationResult struct {
	Checks     []core.LedgerCheck
	Mismatches int
}
