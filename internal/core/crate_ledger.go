package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type CrateReturnInput struct {
	ProductID      int
	CratesReturned int
	Notes          string
}

type CrateAdjustInput struct {
	ProductID  int
	Adjustment int
	Notes      string
}

type CrateHistory struct {
	ProductID      int
	ProductName    string
	CurrentBalance int
	Entries        []CrateEntry
	Pagination     Pagination
}

// LedgerCheck is the replay result for one product.
type LedgerCheck struct {
	ProductID       int    `json:"product_id"`
	ProductName     string `json:"product_name"`
	Entries         int    `json:"entries"`
	StoredBalance   int    `json:"stored_balance"`
	ReplayedBalance int    `json:"replayed_balance"`
	Problem         string `json:"problem,omitempty"`
}

func (c LedgerCheck) OK() bool { return c.Problem == "" }

// CrateLedger owns the crate deposit ledger. Every mutation runs in one
// transaction holding the product row lock, so the balance it reads is the
// balance its append follows.
type CrateLedger interface {
	GetBalance(ctx context.Context, productID int) (int, error)
	RecordReturn(ctx context.Context, userID int, in CrateReturnInput) (*CrateEntry, error)
	AdjustBalance(ctx context.Context, userID int, in CrateAdjustInput) (*CrateEntry, error)
	GetHistory(ctx context.Context, productID int, page Page) (*CrateHistory, error)
	GetAllBalances(ctx context.Context) ([]CrateBalance, error)
	GetSummary(ctx context.Context, r DateRange) (*CrateSummary, error)
	// VerifyLedger replays every product's ledger from zero against its stored balances.
	VerifyLedger(ctx context.Context) ([]LedgerCheck, error)
}

type crateLedger struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

func NewCrateLedger(pool *pgxpool.Pool, log logrus.FieldLogger) CrateLedger {
	return &crateLedger{pool: pool, log: log.WithField("module", "crates")}
}

func (l *crateLedger) GetBalance(ctx context.Context, productID int) (int, error) {
	return latestBalance(ctx, l.pool, productID)
}

func (l *crateLedger) RecordReturn(ctx context.Context, userID int, in CrateReturnInput) (*CrateEntry, error) {
	if in.ProductID <= 0 {
		return nil, Validationf("Product is required")
	}
	if in.CratesReturned <= 0 {
		return nil, Validationf("Crates returned must be greater than 0")
	}
	notes := strings.TrimSpace(in.Notes)
	if notes == "" {
		notes = fmt.Sprintf("Returned %d empty crates", in.CratesReturned)
	}
	entry := &CrateEntry{
		ProductID:       in.ProductID,
		TransactionType: CrateTxReturn,
		Notes:           &notes,
		ProcessedBy:     userID,
	}
	if err := l.mutate(ctx, entry, func(prev int) BalanceChange {
		return ReturnChange(prev, in.CratesReturned)
	}); err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"product_id": entry.ProductID,
		"returned":   in.CratesReturned,
		"balance":    entry.Balance,
		"user_id":    userID,
	}).Info("crates returned")
	return entry, nil
}

func (l *crateLedger) AdjustBalance(ctx context.Context, userID int, in CrateAdjustInput) (*CrateEntry, error) {
	if in.ProductID <= 0 {
		return nil, Validationf("Product is required")
	}
	if in.Adjustment == 0 {
		return nil, Validationf("Adjustment cannot be zero")
	}
	notes := strings.TrimSpace(in.Notes)
	if notes == "" {
		return nil, Validationf("Notes are required for adjustments")
	}
	entry := &CrateEntry{
		ProductID:       in.ProductID,
		TransactionType: CrateTxAdjustment,
		Notes:           &notes,
		ProcessedBy:     userID,
	}
	if err := l.mutate(ctx, entry, func(prev int) BalanceChange {
		return AdjustChange(prev, in.Adjustment)
	}); err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"product_id": entry.ProductID,
		"adjustment": in.Adjustment,
		"applied":    entry.BalanceDelta,
		"balance":    entry.Balance,
		"user_id":    userID,
	}).Info("crate balance adjusted")
	return entry, nil
}

// mutate appends a manual entry for a crate-tracked product in its own transaction.
func (l *crateLedger) mutate(ctx context.Context, entry *CrateEntry, change func(prev int) BalanceChange) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := getProduct(ctx, tx, entry.ProductID, true)
	if err != nil {
		return err
	}
	if !p.HasCrateTracking {
		return Statef(CodeCrateTrackingDisabled, "Crate tracking is not enabled for %s", p.Name)
	}
	entry.ProductName = p.Name

	if err := appendCrateEntry(ctx, tx, entry, change); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const crateEntryColumns = `c.id, c.product_id, p.name, c.transaction_type, c.transaction_id, c.crates_received,
	c.crates_returned, c.balance_delta, c.crates_balance, c.notes, c.processed_by, u.username, c.created_at`

func scanCrateEntry(row pgx.Row) (CrateEntry, error) {
	var e CrateEntry
	err := row.Scan(&e.ID, &e.ProductID, &e.ProductName, &e.TransactionType, &e.TransactionID,
		&e.CratesReceived, &e.CratesReturned, &e.BalanceDelta, &e.Balance, &e.Notes,
		&e.ProcessedBy, &e.ProcessedByName, &e.CreatedAt)
	return e, err
}

func (l *crateLedger) GetHistory(ctx context.Context, productID int, page Page) (*CrateHistory, error) {
	p, err := getProduct(ctx, l.pool, productID, false)
	if err != nil {
		return nil, err
	}
	if page.Limit == 0 {
		page = NewPage(1, DefaultPageLimit)
	}

	total, err := countRows(ctx, l.pool, "SELECT count(*) FROM crate_tracking WHERE product_id = $1", productID)
	if err != nil {
		return nil, err
	}
	balance, err := latestBalance(ctx, l.pool, productID)
	if err != nil {
		return nil, err
	}

	rows, err := l.pool.Query(ctx, `
		SELECT `+crateEntryColumns+`
		FROM crate_tracking c
		JOIN products p ON p.id = c.product_id
		JOIN users u ON u.id = c.processed_by
		WHERE c.product_id = $1
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $2 OFFSET $3`,
		productID, page.Limit, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to load crate history for product %d: %w", productID, err)
	}
	defer rows.Close()

	entries := []CrateEntry{}
	for rows.Next() {
		e, err := scanCrateEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crate entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load crate history for product %d: %w", productID, err)
	}

	return &CrateHistory{
		ProductID:      p.ID,
		ProductName:    p.Name,
		CurrentBalance: balance,
		Entries:        entries,
		Pagination:     page.Paginate(total),
	}, nil
}

func (l *crateLedger) GetAllBalances(ctx context.Context) ([]CrateBalance, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT p.id, p.name, COALESCE(last.crates_balance, 0), last.created_at
		FROM products p
		LEFT JOIN LATERAL (
			SELECT c.crates_balance, c.created_at
			FROM crate_tracking c
			WHERE c.product_id = p.id
			ORDER BY c.created_at DESC, c.id DESC
			LIMIT 1
		) last ON true
		WHERE p.is_active = true AND p.has_crate_tracking = true
		ORDER BY p.name, p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load crate balances: %w", err)
	}
	defer rows.Close()

	balances := []CrateBalance{}
	for rows.Next() {
		var b CrateBalance
		if err := rows.Scan(&b.ProductID, &b.ProductName, &b.CurrentBalance, &b.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan crate balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// GetSummary aggregates entries in range per product. CurrentBalance is the
// balance on the newest entry inside the range.
func (l *crateLedger) GetSummary(ctx context.Context, r DateRange) (*CrateSummary, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	from, to := r.bounds()

	rows, err := l.pool.Query(ctx, `
		SELECT c.product_id, p.name,
		       COALESCE(SUM(c.crates_received), 0),
		       COALESCE(SUM(c.crates_returned), 0),
		       COALESCE(SUM(c.crates_received - c.crates_returned) FILTER (WHERE c.transaction_type = 'adjustment'), 0),
		       (ARRAY_AGG(c.crates_balance ORDER BY c.created_at DESC, c.id DESC))[1],
		       COUNT(*)
		FROM crate_tracking c
		JOIN products p ON p.id = c.product_id
		WHERE ($1::timestamptz IS NULL OR c.created_at >= $1)
		  AND ($2::timestamptz IS NULL OR c.created_at < $2)
		GROUP BY c.product_id, p.name
		ORDER BY p.name, c.product_id`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise crate ledger: %w", err)
	}
	defer rows.Close()

	summary := &CrateSummary{Summary: []CrateSummaryRow{}}
	for rows.Next() {
		var row CrateSummaryRow
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.TotalReceived, &row.TotalReturned,
			&row.Adjustments, &row.CurrentBalance, &row.Records); err != nil {
			return nil, fmt.Errorf("failed to scan crate summary: %w", err)
		}
		summary.Summary = append(summary.Summary, row)
		summary.TotalRecords += row.Records
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to summarise crate ledger: %w", err)
	}
	return summary, nil
}

func (l *crateLedger) VerifyLedger(ctx context.Context) ([]LedgerCheck, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT c.id, c.product_id, p.name, c.balance_delta, c.crates_balance
		FROM crate_tracking c
		JOIN products p ON p.id = c.product_id
		ORDER BY c.product_id, c.created_at, c.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load crate ledger: %w", err)
	}
	defer rows.Close()

	var (
		checks  []LedgerCheck
		entries []CrateEntry
		current *LedgerCheck
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Entries = len(entries)
		current.StoredBalance = entries[len(entries)-1].Balance
		replayed, err := ReplayBalance(entries)
		current.ReplayedBalance = replayed
		if err != nil {
			current.Problem = err.Error()
		}
		checks = append(checks, *current)
	}

	for rows.Next() {
		var e CrateEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.ProductName, &e.BalanceDelta, &e.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan crate entry: %w", err)
		}
		if current == nil || current.ProductID != e.ProductID {
			flush()
			current = &LedgerCheck{ProductID: e.ProductID, ProductName: e.ProductName}
			entries = entries[:0]
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load crate ledger: %w", err)
	}
	flush()

	for _, c := range checks {
		if !c.OK() {
			l.log.WithFields(logrus.Fields{"product_id": c.ProductID, "problem": c.Problem}).Warn("crate ledger mismatch")
		}
	}
	return checks, nil
}
