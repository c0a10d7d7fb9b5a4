package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type SaleLineInput struct {
	ProductID int
	Quantity  int
	// UnitPrice overrides the product's selling price when set.
	UnitPrice *decimal.Decimal
}

type CreateSaleInput struct {
	Items           []SaleLineInput
	PaymentMethod   PaymentMethod
	CustomerName    string
	CustomerContact string
	Notes           string
}

type SaleFilter struct {
	Page          Page
	Range         DateRange
	PaymentMethod *PaymentMethod
}

type SalePage struct {
	Sales      []Sale
	Pagination Pagination
}

type SaleService interface {
	// CreateSale records a sale atomically: stock, line items and crate entries
	// either all commit or none do.
	CreateSale(ctx context.Context, userID int, in CreateSaleInput) (*Sale, error)
	// VoidSale reverses a sale with compensating stock and crate entries.
	VoidSale(ctx context.Context, userID, saleID int, reason string) (*Sale, error)
	GetSale(ctx context.Context, saleID int) (*Sale, error)
	// ListSales returns non-voided sales, newest first.
	ListSales(ctx context.Context, filter SaleFilter) (*SalePage, error)
}

type saleService struct {
	pool     *pgxpool.Pool
	numberer DocumentNumberer
	log      logrus.FieldLogger
}

func NewSaleService(pool *pgxpool.Pool, numberer DocumentNumberer, log logrus.FieldLogger) SaleService {
	return &saleService{pool: pool, numberer: numberer, log: log.WithField("module", "sales")}
}

func validateSaleInput(in CreateSaleInput) error {
	if len(in.Items) == 0 {
		return Validationf("Sale must have at least one item")
	}
	if _, err := ParsePaymentMethod(string(in.PaymentMethod)); err != nil {
		return err
	}
	for i, it := range in.Items {
		if it.ProductID <= 0 {
			return Validationf("item %d: product is required", i+1)
		}
		if it.Quantity <= 0 {
			return Validationf("item %d: quantity must be greater than 0", i+1)
		}
		if it.UnitPrice != nil {
			if err := CheckMoney(fmt.Sprintf("item %d: unit price", i+1), *it.UnitPrice); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *saleService) CreateSale(ctx context.Context, userID int, in CreateSaleInput) (*Sale, error) {
	if err := validateSaleInput(in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int, len(in.Items))
	for i, it := range in.Items {
		ids[i] = it.ProductID
	}
	products, err := lockProducts(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	claimed := make(map[int]int, len(products))
	items := make([]SaleItem, 0, len(in.Items))
	for i, it := range in.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, NotFoundf("Product with ID %d not found", it.ProductID)
		}
		if !p.IsActive {
			return nil, Statef(CodeProductInactive, "Product %s is not active", p.Name)
		}
		if err := CheckStock(p, claimed[p.ID], it.Quantity); err != nil {
			return nil, err
		}
		claimed[p.ID] += it.Quantity
		items = append(items, PriceSaleItem(i+1, p, it.Quantity, it.UnitPrice))
	}

	sale := &Sale{
		PaymentMethod:   in.PaymentMethod,
		CustomerName:    nullIfEmpty(in.CustomerName),
		CustomerContact: nullIfEmpty(in.CustomerContact),
		Notes:           nullIfEmpty(in.Notes),
		SoldBy:          userID,
		Items:           items,
	}
	sale.TotalAmount, sale.TotalCost, sale.Profit = SaleTotals(items)

	if sale.ReceiptNumber, err = s.numberer.Next(ctx, tx, ReceiptPrefix); err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO sales (receipt_number, total_amount, total_cost, profit, payment_method,
			customer_name, customer_contact, notes, sold_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		sale.ReceiptNumber, sale.TotalAmount, sale.TotalCost, sale.Profit, sale.PaymentMethod,
		sale.CustomerName, sale.CustomerContact, sale.Notes, sale.SoldBy,
	).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sale: %w", err)
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		err := tx.QueryRow(ctx, `
			INSERT INTO sale_items (sale_id, line_no, product_id, quantity, unit_price, unit_cost,
				total_price, total_cost, profit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			sale.ID, item.LineNo, item.ProductID, item.Quantity, item.UnitPrice, item.UnitCost,
			item.TotalPrice, item.TotalCost, item.Profit,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert sale item %d: %w", item.LineNo, err)
		}

		if err := adjustStock(ctx, tx, item.ProductID, -item.Quantity); err != nil {
			return nil, err
		}

		if !products[item.ProductID].HasCrateTracking {
			continue
		}
		qty := item.Quantity
		notes := fmt.Sprintf("Sale of %d crates - Receipt: %s", qty, sale.ReceiptNumber)
		entry := &CrateEntry{
			ProductID:       item.ProductID,
			TransactionType: CrateTxSale,
			TransactionID:   &sale.ID,
			Notes:           &notes,
			ProcessedBy:     userID,
		}
		if err := appendCrateEntry(ctx, tx, entry, func(prev int) BalanceChange {
			return SaleChange(prev, qty)
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"sale_id": sale.ID,
		"receipt": sale.ReceiptNumber,
		"total":   sale.TotalAmount.StringFixed(2),
		"user_id": userID,
	}).Info("sale recorded")
	return sale, nil
}

func (s *saleService) VoidSale(ctx context.Context, userID, saleID int, reason string) (*Sale, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, Validationf("Void reason is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		receipt string
		voided  bool
	)
	err = tx.QueryRow(ctx,
		"SELECT receipt_number, is_voided FROM sales WHERE id = $1 FOR UPDATE", saleID,
	).Scan(&receipt, &voided)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("Sale not found")
		}
		return nil, fmt.Errorf("failed to load sale %d: %w", saleID, err)
	}
	if voided {
		return nil, Statef(CodeAlreadyVoided, "Sale %s is already voided", receipt)
	}

	items, err := loadSaleItems(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	if _, err := lockProducts(ctx, tx, ids); err != nil {
		return nil, err
	}

	// Only products whose crates this sale actually moved get a reversing entry.
	tracked := make(map[int]bool)
	rows, err := tx.Query(ctx, `
		SELECT DISTINCT product_id FROM crate_tracking
		WHERE transaction_type = 'sale' AND transaction_id = $1`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load crate entries for sale %d: %w", saleID, err)
	}
	for rows.Next() {
		var pid int
		if err := rows.Scan(&pid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan crate entry: %w", err)
		}
		tracked[pid] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load crate entries for sale %d: %w", saleID, err)
	}

	notes := fmt.Sprintf("Void sale %s - %s", receipt, reason)
	for _, it := range items {
		if err := adjustStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return nil, err
		}
		if !tracked[it.ProductID] {
			continue
		}
		qty := it.Quantity
		entry := &CrateEntry{
			ProductID:       it.ProductID,
			TransactionType: CrateTxAdjustment,
			TransactionID:   &saleID,
			Notes:           &notes,
			ProcessedBy:     userID,
		}
		if err := appendCrateEntry(ctx, tx, entry, func(prev int) BalanceChange {
			return VoidChange(prev, qty)
		}); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE sales SET is_voided = true, void_reason = $1, voided_at = now() WHERE id = $2",
		reason, saleID,
	); err != nil {
		return nil, fmt.Errorf("failed to mark sale %d voided: %w", saleID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"sale_id": saleID,
		"receipt": receipt,
		"reason":  reason,
		"user_id": userID,
	}).Info("sale voided")
	return s.GetSale(ctx, saleID)
}

const saleColumns = `s.id, s.receipt_number, s.total_amount, s.total_cost, s.profit, s.payment_method,
	s.customer_name, s.customer_contact, s.notes, s.is_voided, s.void_reason, s.voided_at,
	s.sold_by, u.username, s.created_at`

func scanSale(row pgx.Row) (*Sale, error) {
	sale := &Sale{}
	err := row.Scan(&sale.ID, &sale.ReceiptNumber, &sale.TotalAmount, &sale.TotalCost, &sale.Profit,
		&sale.PaymentMethod, &sale.CustomerName, &sale.CustomerContact, &sale.Notes,
		&sale.IsVoided, &sale.VoidReason, &sale.VoidedAt, &sale.SoldBy, &sale.SoldByName, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *saleService) GetSale(ctx context.Context, saleID int) (*Sale, error) {
	sale, err := scanSale(s.pool.QueryRow(ctx,
		"SELECT "+saleColumns+" FROM sales s JOIN users u ON u.id = s.sold_by WHERE s.id = $1", saleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("Sale not found")
		}
		return nil, fmt.Errorf("failed to load sale %d: %w", saleID, err)
	}
	if sale.Items, err = loadSaleItems(ctx, s.pool, saleID); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *saleService) ListSales(ctx context.Context, filter SaleFilter) (*SalePage, error) {
	if err := filter.Range.Validate(); err != nil {
		return nil, err
	}
	where := []string{"s.is_voided = false"}
	var args []any
	from, to := filter.Range.bounds()
	if from != nil {
		args = append(args, *from)
		where = append(where, fmt.Sprintf("s.created_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		where = append(where, fmt.Sprintf("s.created_at < $%d", len(args)))
	}
	if filter.PaymentMethod != nil {
		args = append(args, string(*filter.PaymentMethod))
		where = append(where, fmt.Sprintf("s.payment_method = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	total, err := countRows(ctx, s.pool, "SELECT count(*) FROM sales s WHERE "+cond, args...)
	if err != nil {
		return nil, err
	}

	page := filter.Page
	if page.Limit == 0 {
		page = NewPage(1, DefaultPageLimit)
	}
	args = append(args, page.Limit, page.Offset())
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM sales s JOIN users u ON u.id = s.sold_by WHERE %s ORDER BY s.created_at DESC, s.id DESC LIMIT $%d OFFSET $%d",
		saleColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	sales := []Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return &SalePage{Sales: sales, Pagination: page.Paginate(total)}, nil
}

func loadSaleItems(ctx context.Context, q pgxQuerier, saleID int) ([]SaleItem, error) {
	rows, err := q.Query(ctx, `
		SELECT i.id, i.line_no, i.product_id, p.name, p.unit_type, i.quantity, i.unit_price, i.unit_cost,
		       i.total_price, i.total_cost, i.profit
		FROM sale_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.sale_id = $1
		ORDER BY i.line_no`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items for sale %d: %w", saleID, err)
	}
	defer rows.Close()

	var items []SaleItem
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.LineNo, &it.ProductID, &it.ProductName, &it.UnitType, &it.Quantity,
			&it.UnitPrice, &it.UnitCost, &it.TotalPrice, &it.TotalCost, &it.Profit); err != nil {
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
