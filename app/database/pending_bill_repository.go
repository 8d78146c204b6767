package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/constituant/constituant/app/bill"
)

var pendingBillColumns = append([]string{
	"id", "external_id", "source", "title", "summary", "full_text_url", "level", "chamber",
	"vote_datetime", "raw_payload", "status", "approved_bill_id", "notes",
	"fetched_at", "reviewed_at", "created_at", "updated_at",
}, classificationColumns...)

type PendingBillRepo struct {
	db *DB
}

var _ PendingBillRepository = (*PendingBillRepo)(nil)

func NewPendingBillRepository(db *DB) *PendingBillRepo {
	return &PendingBillRepo{db: db}
}

func (r *PendingBillRepo) GetPendingBill(ctx context.Context, id int64) (*PendingBill, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *PendingBillRepo) GetPendingBillBySource(ctx context.Context, source bill.Source, externalID string) (*PendingBill, error) {
	return r.getOne(ctx, sq.Eq{"source": string(source), "external_id": externalID})
}

func (r *PendingBillRepo) getOne(ctx context.Context, where sq.Eq) (*PendingBill, error) {
	query, args, err := r.db.sb.Select(pendingBillColumns...).From("pending_bills").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	p, err := scanPendingBill(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending bill: %w", err)
	}
	return p, nil
}

func (r *PendingBillRepo) ListPendingBills(ctx context.Context, status bill.ReviewStatus, limit int) ([]PendingBill, error) {
	qb := r.db.sb.Select(pendingBillColumns...).From("pending_bills").OrderBy("created_at DESC", "id DESC")
	if status != "" {
		qb = qb.Where(sq.Eq{"status": string(status)})
	}
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	return r.list(ctx, qb)
}

// ListForClassification returns pending rows never processed or still on the
// sentinel theme, newest first. force selects every pending row.
func (r *PendingBillRepo) ListForClassification(ctx context.Context, limit int, force bool) ([]PendingBill, error) {
	qb := r.db.sb.Select(pendingBillColumns...).From("pending_bills").
		Where(sq.Eq{"status": string(bill.ReviewPending)}).
		OrderBy("created_at DESC", "id DESC")
	if !force {
		qb = qb.Where(sq.Or{sq.Eq{"ai_processed_at": nil}, sq.Eq{"theme": bill.SentinelTheme}})
	}
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	return r.list(ctx, qb)
}

func (r *PendingBillRepo) list(ctx context.Context, qb sq.SelectBuilder) ([]PendingBill, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending bills: %w", err)
	}
	defer rows.Close()

	var out []PendingBill
	for rows.Next() {
		p, err := scanPendingBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending bill: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// InsertPendingBill stores a first sighting with the sentinel theme.
func (r *PendingBillRepo) InsertPendingBill(ctx context.Context, draft bill.Draft, fetchedAt time.Time) (int64, error) {
	now := dbTime(time.Now())
	query, args, err := r.db.sb.Insert("pending_bills").SetMap(map[string]any{
		"external_id":   draft.ExternalID,
		"source":        string(draft.Source),
		"title":         draft.Title,
		"summary":       draft.Summary,
		"full_text_url": nullString(draft.FullTextURL),
		"level":         string(draft.Level),
		"chamber":       draft.Chamber,
		"vote_datetime": nullTime(draft.VoteDatetime),
		"raw_payload":   nullString(string(draft.RawPayload)),
		"status":        string(bill.ReviewPending),
		"theme":         bill.SentinelTheme,
		"fetched_at":    dbTime(fetchedAt),
		"created_at":    now,
		"updated_at":    now,
	}).Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("failed to insert pending bill: %w", err)
	}
	return id, nil
}

// UpdatePendingBill refreshes the mutable fields of a row that is still pending.
// Reviewed rows are left untouched.
func (r *PendingBillRepo) UpdatePendingBill(ctx context.Context, id int64, draft bill.Draft, fetchedAt time.Time) error {
	query, args, err := r.db.sb.Update("pending_bills").SetMap(map[string]any{
		"title":         draft.Title,
		"summary":       draft.Summary,
		"full_text_url": nullString(draft.FullTextURL),
		"level":         string(draft.Level),
		"chamber":       draft.Chamber,
		"vote_datetime": nullTime(draft.VoteDatetime),
		"raw_payload":   nullString(string(draft.RawPayload)),
		"fetched_at":    dbTime(fetchedAt),
		"updated_at":    dbTime(time.Now()),
	}).Where(sq.Eq{"id": id, "status": string(bill.ReviewPending)}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update pending bill: %w", err)
	}
	return nil
}

func (r *PendingBillRepo) UpdatePendingClassification(ctx context.Context, id int64, c Classification) error {
	values := classificationValues(c)
	values["updated_at"] = dbTime(time.Now())

	query, args, err := r.db.sb.Update("pending_bills").SetMap(values).
		Where(sq.Eq{"id": id, "status": string(bill.ReviewPending)}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}
	return nil
}

func (r *PendingBillRepo) MarkApproved(ctx context.Context, id int64, billID string, at time.Time) error {
	return r.review(ctx, id, map[string]any{
		"status":           string(bill.ReviewApproved),
		"approved_bill_id": billID,
		"reviewed_at":      dbTime(at),
		"updated_at":       dbTime(at),
	})
}

func (r *PendingBillRepo) MarkRejected(ctx context.Context, id int64, notes string, at time.Time) error {
	return r.review(ctx, id, map[string]any{
		"status":      string(bill.ReviewRejected),
		"notes":       nullString(notes),
		"reviewed_at": dbTime(at),
		"updated_at":  dbTime(at),
	})
}

func (r *PendingBillRepo) review(ctx context.Context, id int64, values map[string]any) error {
	query, args, err := r.db.sb.Update("pending_bills").SetMap(values).
		Where(sq.Eq{"id": id, "status": string(bill.ReviewPending)}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to review pending bill: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pending bill %d is not pending", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPendingBill(row rowScanner) (*PendingBill, error) {
	var (
		p              PendingBill
		source         string
		level          string
		status         string
		fullTextURL    sql.NullString
		voteDatetime   sql.NullTime
		rawPayload     sql.NullString
		approvedBillID sql.NullString
		notes          sql.NullString
		reviewedAt     sql.NullTime
		ai             classificationScan
	)

	dest := append([]any{
		&p.ID, &p.ExternalID, &source, &p.Title, &p.Summary, &fullTextURL, &level, &p.Chamber,
		&voteDatetime, &rawPayload, &status, &approvedBillID, &notes,
		&p.FetchedAt, &reviewedAt, &p.CreatedAt, &p.UpdatedAt,
	}, ai.dest()...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	p.Source = bill.Source(source)
	p.Level = bill.Level(level)
	p.Status = bill.ReviewStatus(status)
	p.FullTextURL = fullTextURL.String
	p.VoteDatetime = timePtr(voteDatetime)
	if rawPayload.Valid {
		p.RawPayload = []byte(rawPayload.String)
	}
	p.ApprovedBillID = approvedBillID.String
	p.Notes = notes.String
	p.ReviewedAt = timePtr(reviewedAt)
	p.AI = ai.value()

	return &p, nil
}
