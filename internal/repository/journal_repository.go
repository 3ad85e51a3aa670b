package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/renft/marketplace/internal/model"
)

// JournalRepo persists the append-only record of lifecycle transitions in
// the lease_events table. Rows are only ever inserted; external indexers
// reconstruct full listing history from this table without re-querying the
// registry. All timestamps are stored in UTC.
type JournalRepo struct {
	db *sql.DB
}

// NewJournalRepo returns a JournalRepo bound to the given database.
func NewJournalRepo(db *sql.DB) *JournalRepo { return &JournalRepo{db: db} }

// Record appends one transition row.
func (r *JournalRepo) Record(ctx context.Context, ev model.LeaseEvent) error {
	const q = `INSERT INTO lease_events
	           (kind, listing_id, lessor, lessee, collection, token_id,
	            collateral, rent, term_seconds, lease_start, lease_end, occurred_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var start, end interface{}
	if !ev.LeaseStart.IsZero() {
		start = ev.LeaseStart.UTC()
	}
	if !ev.LeaseEnd.IsZero() {
		end = ev.LeaseEnd.UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		string(ev.Kind), ev.ListingID, string(ev.Lessor), string(ev.Lessee),
		ev.Collection, ev.TokenID, ev.Collateral, ev.Rent,
		int64(ev.Term/time.Second), start, end, ev.OccurredAt.UTC(),
	)
	return err
}

// ListByListing returns all transitions recorded for a listing in insertion
// order. An unknown id yields an empty slice, not an error.
func (r *JournalRepo) ListByListing(ctx context.Context, listingID uint64) ([]model.LeaseEvent, error) {
	const q = `SELECT kind, listing_id, lessor, lessee, collection, token_id,
	                  collateral, rent, term_seconds, lease_start, lease_end, occurred_at
	           FROM lease_events
	           WHERE listing_id = ?
	           ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]model.LeaseEvent, 0)
	for rows.Next() {
		var (
			ev          model.LeaseEvent
			kind        string
			lessor      string
			lessee      string
			termSeconds int64
			start, end  sql.NullTime
		)
		if err := rows.Scan(
			&kind, &ev.ListingID, &lessor, &lessee, &ev.Collection, &ev.TokenID,
			&ev.Collateral, &ev.Rent, &termSeconds, &start, &end, &ev.OccurredAt,
		); err != nil {
			return nil, err
		}
		ev.Kind = model.EventKind(kind)
		ev.Lessor = model.Account(lessor)
		ev.Lessee = model.Account(lessee)
		ev.Term = time.Duration(termSeconds) * time.Second
		if start.Valid {
			ev.LeaseStart = start.Time.UTC()
		}
		if end.Valid {
			ev.LeaseEnd = end.Time.UTC()
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
