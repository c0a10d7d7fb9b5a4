package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DocumentNumberer issues per-day sequential document numbers (receipts and
// delivery notes) inside the caller's transaction.
type DocumentNumberer interface {
	// Next numbers a document for the current calendar day in the configured zone.
	Next(ctx context.Context, tx pgx.Tx, prefix string) (string, error)
	// NextForDay numbers a document for an explicit calendar day (its Y/M/D, zone ignored).
	NextForDay(ctx context.Context, tx pgx.Tx, prefix string, day time.Time) (string, error)
}

type documentNumberer struct {
	loc *time.Location
	now func() time.Time
}

// NewDocumentNumberer numbers documents by the calendar day in loc.
func NewDocumentNumberer(loc *time.Location) DocumentNumberer {
	return newDocumentNumberer(loc, time.Now)
}

func newDocumentNumberer(loc *time.Location, now func() time.Time) *documentNumberer {
	if loc == nil {
		loc = time.UTC
	}
	return &documentNumberer{loc: loc, now: now}
}

func (n *documentNumberer) Next(ctx context.Context, tx pgx.Tx, prefix string) (string, error) {
	return n.NextForDay(ctx, tx, prefix, n.now().In(n.loc))
}

func (n *documentNumberer) NextForDay(ctx context.Context, tx pgx.Tx, prefix string, day time.Time) (string, error) {
	y, m, d := day.Date()
	seqDate := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	// The upsert takes a row lock on (prefix, day), so concurrent transactions
	// numbering the same day queue here and never see the same value.
	var last int
	err := tx.QueryRow(ctx, `
		INSERT INTO document_sequences (prefix, seq_date, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, seq_date)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number`,
		prefix, seqDate,
	).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s sequence number: %w", prefix, err)
	}
	return FormatDocumentNumber(prefix, seqDate, last), nil
}
