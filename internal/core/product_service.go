package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ProductFilter narrows the active catalogue. Zero value lists everything active.
type ProductFilter struct {
	Category *Category
	Search   string
	LowStock bool
}

type CreateProductInput struct {
	Name             string
	Category         Category
	UnitType         UnitType
	Description      string
	Barcode          string
	CostPrice        decimal.Decimal
	SellingPrice     decimal.Decimal
	CurrentStock     int
	MinimumStock     *int
	HasCrateTracking bool
}

// UpdateProductInput is a partial update; nil fields are left unchanged.
// Stock is absent: it only moves through sales, deliveries and voids.
type UpdateProductInput struct {
	Name             *string
	Category         *Category
	UnitType         *UnitType
	Description      *string
	Barcode          *string
	CostPrice        *decimal.Decimal
	SellingPrice     *decimal.Decimal
	MinimumStock     *int
	HasCrateTracking *bool
	IsActive         *bool
}

const DefaultMinimumStock = 10

type ProductService interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, id int) (*Product, error)
	CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id int, in UpdateProductInput) (*Product, error)
	// RemoveProduct retires a product that has history and deletes one that has none.
	RemoveProduct(ctx context.Context, id int) (Removal, error)
}

type productService struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

func NewProductService(pool *pgxpool.Pool, log logrus.FieldLogger) ProductService {
	return &productService{pool: pool, log: log.WithField("module", "products")}
}

func (s *productService) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var (
		where = []string{"is_active = true"}
		args  []any
	)
	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.LowStock {
		where = append(where, "current_stock <= minimum_stock")
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+productColumns+" FROM products WHERE "+strings.Join(where, " AND ")+" ORDER BY name, id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *productService) GetProduct(ctx context.Context, id int) (*Product, error) {
	return getProduct(ctx, s.pool, id, false)
}

func (s *productService) CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error) {
	p := &Product{
		Name:             strings.TrimSpace(in.Name),
		Category:         in.Category,
		UnitType:         in.UnitType,
		Description:      nullIfEmpty(in.Description),
		Barcode:          nullIfEmpty(in.Barcode),
		CostPrice:        in.CostPrice,
		SellingPrice:     in.SellingPrice,
		CurrentStock:     in.CurrentStock,
		MinimumStock:     DefaultMinimumStock,
		IsActive:         true,
		HasCrateTracking: in.HasCrateTracking,
	}
	if in.MinimumStock != nil {
		p.MinimumStock = *in.MinimumStock
	}
	if p.CurrentStock < 0 {
		return nil, Validationf("current stock cannot be negative")
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if p.Barcode != nil {
		if err := s.checkBarcode(ctx, s.pool, *p.Barcode, 0); err != nil {
			return nil, err
		}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (name, category, unit_type, description, barcode, cost_price, selling_price,
			current_stock, minimum_stock, is_active, has_crate_tracking)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Category, p.UnitType, p.Description, p.Barcode, p.CostPrice, p.SellingPrice,
		p.CurrentStock, p.MinimumStock, p.IsActive, p.HasCrateTracking,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "products_barcode_key") {
			return nil, Conflictf("Product with this barcode already exists")
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.log.WithFields(logrus.Fields{"product_id": p.ID, "name": p.Name}).Info("product created")
	return p, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id int, in UpdateProductInput) (*Product, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := getProduct(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.UnitType != nil {
		p.UnitType = *in.UnitType
	}
	if in.Description != nil {
		p.Description = nullIfEmpty(*in.Description)
	}
	if in.Barcode != nil {
		p.Barcode = nullIfEmpty(*in.Barcode)
	}
	if in.CostPrice != nil {
		p.CostPrice = *in.CostPrice
	}
	if in.SellingPrice != nil {
		p.SellingPrice = *in.SellingPrice
	}
	if in.MinimumStock != nil {
		p.MinimumStock = *in.MinimumStock
	}
	if in.HasCrateTracking != nil {
		p.HasCrateTracking = *in.HasCrateTracking
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if in.Barcode != nil && p.Barcode != nil {
		if err := s.checkBarcode(ctx, tx, *p.Barcode, p.ID); err != nil {
			return nil, err
		}
	}

	err = tx.QueryRow(ctx, `
		UPDATE products
		SET name = $1, category = $2, unit_type = $3, description = $4, barcode = $5,
		    cost_price = $6, selling_price = $7, minimum_stock = $8,
		    has_crate_tracking = $9, is_active = $10, updated_at = now()
		WHERE id = $11
		RETURNING updated_at`,
		p.Name, p.Category, p.UnitType, p.Description, p.Barcode,
		p.CostPrice, p.SellingPrice, p.MinimumStock,
		p.HasCrateTracking, p.IsActive, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "products_barcode_key") {
			return nil, Conflictf("Product with this barcode already exists")
		}
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

func (s *productService) RemoveProduct(ctx context.Context, id int) (Removal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := getProduct(ctx, tx, id, true); err != nil {
		return "", err
	}

	var refs ProductReferences
	err = tx.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM sale_items WHERE product_id = $1),
			(SELECT count(*) FROM delivery_items WHERE product_id = $1),
			(SELECT count(*) FROM crate_tracking WHERE product_id = $1)`,
		id,
	).Scan(&refs.SaleItems, &refs.DeliveryItems, &refs.CrateEntries)
	if err != nil {
		return "", fmt.Errorf("failed to count references to product %d: %w", id, err)
	}

	removal := DecideRemoval(refs)
	switch removal {
	case RemovalRetired:
		_, err = tx.Exec(ctx, "UPDATE products SET is_active = false, updated_at = now() WHERE id = $1", id)
	case RemovalDeleted:
		_, err = tx.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to remove product %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.WithFields(logrus.Fields{"product_id": id, "removal": removal}).Info("product removed")
	return removal, nil
}

func (s *productService) checkBarcode(ctx context.Context, q pgxQuerier, barcode string, exceptID int) error {
	var id int
	err := q.QueryRow(ctx, "SELECT id FROM products WHERE barcode = $1 AND id <> $2", barcode, exceptID).Scan(&id)
	if err == nil {
		return Conflictf("Product with this barcode already exists")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to check barcode: %w", err)
	}
	return nil
}

func validateProduct(p *Product) error {
	if n := utf8.RuneCountInString(p.Name); n < 2 || n > 100 {
		return Validationf("Product name must be between 2 and 100 characters")
	}
	if _, err := ParseCategory(string(p.Category)); err != nil {
		return err
	}
	if _, err := ParseUnitType(string(p.UnitType)); err != nil {
		return err
	}
	if err := CheckMoney("Cost price", p.CostPrice); err != nil {
		return err
	}
	if err := CheckMoney("Selling price", p.SellingPrice); err != nil {
		return err
	}
	if p.MinimumStock < 0 {
		return Validationf("Minimum stock cannot be negative")
	}
	return nil
}
