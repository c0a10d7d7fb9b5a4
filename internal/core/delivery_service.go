package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type DeliveryLineInput struct {
	ProductID int
	Quantity  int
	// UnitCost defaults to the product's cost price when nil.
	UnitCost   *decimal.Decimal
	ExpiryDate *time.Time
}

type CreateDeliveryInput struct {
	Supplier     string
	DeliveryDate time.Time
	Notes        string
	Items        []DeliveryLineInput
}

// UpdateDeliveryInput edits the delivery header only. Items, stock and the
// crate ledger are never changed after a delivery is recorded.
type UpdateDeliveryInput struct {
	Supplier     *string
	DeliveryDate *time.Time
	Notes        *string
	IsReceived   *bool
}

type DeliveryFilter struct {
	Page     Page
	Range    DateRange
	Supplier string
}

type DeliveryPage struct {
	Deliveries []Delivery
	Pagination Pagination
}

type DeliveryService interface {
	CreateDelivery(ctx context.Context, userID int, in CreateDeliveryInput) (*Delivery, error)
	UpdateDelivery(ctx context.Context, deliveryID int, in UpdateDeliveryInput) (*Delivery, error)
	GetDelivery(ctx context.Context, deliveryID int) (*Delivery, error)
	ListDeliveries(ctx context.Context, filter DeliveryFilter) (*DeliveryPage, error)
	ListSuppliers(ctx context.Context) ([]string, error)
}

type deliveryService struct {
	pool     *pgxpool.Pool
	numberer DocumentNumberer
	log      logrus.FieldLogger
}

func NewDeliveryService(pool *pgxpool.Pool, numberer DocumentNumberer, log logrus.FieldLogger) DeliveryService {
	return &deliveryService{pool: pool, numberer: numberer, log: log.WithField("module", "deliveries")}
}

func validateDeliveryInput(in CreateDeliveryInput) error {
	if strings.TrimSpace(in.Supplier) == "" {
		return Validationf("Supplier is required")
	}
	if in.DeliveryDate.IsZero() {
		return Validationf("Delivery date is required")
	}
	if len(in.Items) == 0 {
		return Validationf("Delivery must have at least one item")
	}
	for i, it := range in.Items {
		if it.ProductID <= 0 {
			return Validationf("item %d: product is required", i+1)
		}
		if it.Quantity <= 0 {
			return Validationf("item %d: quantity must be greater than 0", i+1)
		}
		if it.UnitCost != nil {
			if err := CheckMoney(fmt.Sprintf("item %d: unit cost", i+1), *it.UnitCost); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *deliveryService) CreateDelivery(ctx context.Context, userID int, in CreateDeliveryInput) (*Delivery, error) {
	if err := validateDeliveryInput(in); err != nil {
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

	d := &Delivery{
		Supplier:     strings.TrimSpace(in.Supplier),
		DeliveryDate: startOfDay(in.DeliveryDate),
		Notes:        nullIfEmpty(in.Notes),
		IsReceived:   true,
		ReceivedBy:   userID,
	}
	for i, it := range in.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, NotFoundf("Product with ID %d not found", it.ProductID)
		}
		if !p.IsActive {
			return nil, Statef(CodeProductInactive, "Product %s is not active", p.Name)
		}
		item := PriceDeliveryItem(i+1, p, it.Quantity, it.UnitCost, it.ExpiryDate)
		d.TotalCost = d.TotalCost.Add(item.TotalCost)
		d.Items = append(d.Items, item)
	}

	if d.DeliveryNumber, err = s.numberer.NextForDay(ctx, tx, DeliveryPrefix, d.DeliveryDate); err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO deliveries (delivery_number, supplier, total_cost, delivery_date, notes, is_received, received_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		d.DeliveryNumber, d.Supplier, d.TotalCost, d.DeliveryDate, d.Notes, d.IsReceived, d.ReceivedBy,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert delivery: %w", err)
	}

	for i := range d.Items {
		item := &d.Items[i]
		err := tx.QueryRow(ctx, `
			INSERT INTO delivery_items (delivery_id, line_no, product_id, quantity, unit_cost, total_cost, expiry_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			d.ID, item.LineNo, item.ProductID, item.Quantity, item.UnitCost, item.TotalCost, item.ExpiryDate,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert delivery item %d: %w", item.LineNo, err)
		}

		if err := adjustStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}

		if !products[item.ProductID].HasCrateTracking {
			continue
		}
		qty := item.Quantity
		notes := fmt.Sprintf("Delivery received %d crates - %s", qty, d.DeliveryNumber)
		entry := &CrateEntry{
			ProductID:       item.ProductID,
			TransactionType: CrateTxDelivery,
			TransactionID:   &d.ID,
			Notes:           &notes,
			ProcessedBy:     userID,
		}
		if err := appendCrateEntry(ctx, tx, entry, func(prev int) BalanceChange {
			return DeliveryChange(prev, qty)
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"delivery_id": d.ID,
		"number":      d.DeliveryNumber,
		"supplier":    d.Supplier,
		"user_id":     userID,
	}).Info("delivery recorded")
	return d, nil
}

func (s *deliveryService) UpdateDelivery(ctx context.Context, deliveryID int, in UpdateDeliveryInput) (*Delivery, error) {
	if in.Supplier != nil && strings.TrimSpace(*in.Supplier) == "" {
		return nil, Validationf("Supplier cannot be empty")
	}

	var (
		supplier *string
		notes    *string
		date     *time.Time
	)
	if in.Supplier != nil {
		v := strings.TrimSpace(*in.Supplier)
		supplier = &v
	}
	if in.DeliveryDate != nil {
		v := startOfDay(*in.DeliveryDate)
		date = &v
	}
	setNotes := in.Notes != nil
	if setNotes {
		notes = nullIfEmpty(*in.Notes)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE deliveries
		SET supplier      = COALESCE($1, supplier),
		    delivery_date = COALESCE($2, delivery_date),
		    notes         = CASE WHEN $3 THEN $4 ELSE notes END,
		    is_received   = COALESCE($5, is_received),
		    updated_at    = now()
		WHERE id = $6`,
		supplier, date, setNotes, notes, in.IsReceived, deliveryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update delivery %d: %w", deliveryID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, NotFoundf("Delivery not found")
	}
	return s.GetDelivery(ctx, deliveryID)
}

const deliveryColumns = `d.id, d.delivery_number, d.supplier, d.total_cost, d.delivery_date, d.notes,
	d.is_received, d.received_by, u.username, d.created_at, d.updated_at`

func scanDelivery(row pgx.Row) (*Delivery, error) {
	d := &Delivery{}
	err := row.Scan(&d.ID, &d.DeliveryNumber, &d.Supplier, &d.TotalCost, &d.DeliveryDate, &d.Notes,
		&d.IsReceived, &d.ReceivedBy, &d.ReceivedByName, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *deliveryService) GetDelivery(ctx context.Context, deliveryID int) (*Delivery, error) {
	d, err := scanDelivery(s.pool.QueryRow(ctx,
		"SELECT "+deliveryColumns+" FROM deliveries d JOIN users u ON u.id = d.received_by WHERE d.id = $1",
		deliveryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("Delivery not found")
		}
		return nil, fmt.Errorf("failed to load delivery %d: %w", deliveryID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.line_no, i.product_id, p.name, p.unit_type, i.quantity, i.unit_cost, i.total_cost, i.expiry_date
		FROM delivery_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.delivery_id = $1
		ORDER BY i.line_no`, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items for delivery %d: %w", deliveryID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var it DeliveryItem
		if err := rows.Scan(&it.ID, &it.LineNo, &it.ProductID, &it.ProductName, &it.UnitType,
			&it.Quantity, &it.UnitCost, &it.TotalCost, &it.ExpiryDate); err != nil {
			return nil, fmt.Errorf("failed to scan delivery item: %w", err)
		}
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load items for delivery %d: %w", deliveryID, err)
	}
	return d, nil
}

func (s *deliveryService) ListDeliveries(ctx context.Context, filter DeliveryFilter) (*DeliveryPage, error) {
	if err := filter.Range.Validate(); err != nil {
		return nil, err
	}
	where := []string{"true"}
	var args []any
	if filter.Range.From != nil {
		args = append(args, startOfDay(*filter.Range.From))
		where = append(where, fmt.Sprintf("d.delivery_date >= $%d", len(args)))
	}
	if filter.Range.To != nil {
		args = append(args, startOfDay(*filter.Range.To))
		where = append(where, fmt.Sprintf("d.delivery_date <= $%d", len(args)))
	}
	if supplier := strings.TrimSpace(filter.Supplier); supplier != "" {
		args = append(args, "%"+supplier+"%")
		where = append(where, fmt.Sprintf("d.supplier ILIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	total, err := countRows(ctx, s.pool, "SELECT count(*) FROM deliveries d WHERE "+cond, args...)
	if err != nil {
		return nil, err
	}

	page := filter.Page
	if page.Limit == 0 {
		page = NewPage(1, DefaultPageLimit)
	}
	args = append(args, page.Limit, page.Offset())
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM deliveries d JOIN users u ON u.id = d.received_by WHERE %s ORDER BY d.delivery_date DESC, d.created_at DESC, d.id DESC LIMIT $%d OFFSET $%d",
		deliveryColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := []Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return &DeliveryPage{Deliveries: deliveries, Pagination: page.Paginate(total)}, nil
}

func (s *deliveryService) ListSuppliers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT supplier FROM deliveries ORDER BY supplier")
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, name)
	}
	return suppliers, rows.Err()
}
