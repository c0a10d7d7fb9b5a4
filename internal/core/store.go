package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const productColumns = `id, name, category, unit_type, description, barcode, cost_price, selling_price,
	current_stock, minimum_stock, is_active, has_crate_tracking, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	p := &Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.UnitType, &p.Description, &p.Barcode,
		&p.CostPrice, &p.SellingPrice, &p.CurrentStock, &p.MinimumStock,
		&p.IsActive, &p.HasCrateTracking, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func getProduct(ctx context.Context, q pgxQuerier, id int, forUpdate bool) (*Product, error) {
	sql := "SELECT " + productColumns + " FROM products WHERE id = $1"
	if forUpdate {
		sql += " FOR UPDATE"
	}
	p, err := scanProduct(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("Product with ID %d not found", id)
		}
		return nil, fmt.Errorf("failed to load product %d: %w", id, err)
	}
	return p, nil
}

// lockProducts row-locks every distinct product in ascending id order and
// returns them keyed by id. Missing ids are simply absent from the map.
// A fixed lock order keeps two carts touching the same products from deadlocking.
func lockProducts(ctx context.Context, tx pgx.Tx, ids []int) (map[int]*Product, error) {
	distinct := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			distinct = append(distinct, id)
		}
	}
	sort.Ints(distinct)

	rows, err := tx.Query(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE", distinct)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	out := make(map[int]*Product, len(distinct))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	return out, nil
}

func adjustStock(ctx context.Context, tx pgx.Tx, productID, delta int) error {
	if _, err := tx.Exec(ctx,
		"UPDATE products SET current_stock = current_stock + $1, updated_at = now() WHERE id = $2",
		delta, productID,
	); err != nil {
		return fmt.Errorf("failed to update stock for product %d: %w", productID, err)
	}
	return nil
}

// latestBalance reads the balance of the newest ledger entry for a product, or 0.
// Callers must hold the product row lock so no other writer can append between
// this read and their own insert.
func latestBalance(ctx context.Context, q pgxQuerier, productID int) (int, error) {
	var balance int
	err := q.QueryRow(ctx, `
		SELECT crates_balance
		FROM crate_tracking
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		productID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read crate balance for product %d: %w", productID, err)
	}
	return balance, nil
}

// appendCrateEntry computes the next balance with change and inserts the entry.
func appendCrateEntry(ctx context.Context, tx pgx.Tx, e *CrateEntry, change func(prev int) BalanceChange) error {
	prev, err := latestBalance(ctx, tx, e.ProductID)
	if err != nil {
		return err
	}
	c := change(prev)
	e.CratesReceived = c.Received
	e.CratesReturned = c.Returned
	e.BalanceDelta = c.Delta
	e.Balance = c.Balance

	err = tx.QueryRow(ctx, `
		INSERT INTO crate_tracking (product_id, transaction_type, transaction_id, crates_received,
			crates_returned, balance_delta, crates_balance, notes, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		e.ProductID, e.TransactionType, e.TransactionID, e.CratesReceived,
		e.CratesReturned, e.BalanceDelta, e.Balance, e.Notes, e.ProcessedBy,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append crate entry for product %d: %w", e.ProductID, err)
	}
	return nil
}

func countRows(ctx context.Context, q pgxQuerier, sql string, args ...any) (int, error) {
	var n int
	if err := q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}
