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

var billColumns = append([]string{
	"id", "title", "summary", "full_text_url", "level", "chamber", "vote_datetime",
	"status", "source", "external_id", "created_at", "updated_at",
}, classificationColumns...)

type BillRepo struct {
	db *DB
}

var _ BillRepository = (*BillRepo)(nil)

func NewBillRepository(db *DB) *BillRepo {
	return &BillRepo{db: db}
}

func (r *BillRepo) GetBill(ctx context.Context, id string) (*Bill, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *BillRepo) GetBillBySource(ctx context.Context, source bill.Source, externalID string) (*Bill, error) {
	return r.getOne(ctx, sq.Eq{"source": string(source), "external_id": externalID})
}

func (r *BillRepo) getOne(ctx context.Context, where sq.Eq) (*Bill, error) {
	query, args, err := r.db.sb.Select(billColumns...).From("bills").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	b, err := scanBill(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return b, nil
}

func (r *BillRepo) BillExists(ctx context.Context, id string) (bool, error) {
	query, args, err := r.db.sb.Select("COUNT(*)").From("bills").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check bill: %w", err)
	}
	return n > 0, nil
}

// ListBills returns bills ordered by vote date with their vote tallies.
func (r *BillRepo) ListBills(ctx context.Context, filter BillFilter) ([]BillWithTally, error) {
	qb := r.db.sb.Select(billColumns...).From("bills").OrderBy("vote_datetime ASC", "id ASC")
	if filter.Level != "" {
		qb = qb.Where(sq.Eq{"level": string(filter.Level)})
	}
	if filter.Status != "" {
		qb = qb.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var out []BillWithTally
	ids := make([]string, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		out = append(out, BillWithTally{Bill: *b})
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bills: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return out, nil
	}

	tallies, err := r.tallies(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Tally = tallies[out[i].ID]
	}
	return out, nil
}

func (r *BillRepo) tallies(ctx context.Context, ids []string) (map[string]bill.Tally, error) {
	query, args, err := r.db.sb.Select("bill_id", "vote_type", "COUNT(*)").From("votes").
		Where(sq.Eq{"bill_id": ids}).
		GroupBy("bill_id", "vote_type").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	tallies := make(map[string]bill.Tally, len(ids))
	for rows.Next() {
		var (
			billID   string
			voteType string
			n        int
		)
		if err := rows.Scan(&billID, &voteType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		t := tallies[billID]
		t.Add(bill.VoteType(voteType), n)
		tallies[billID] = t
	}
	return tallies, rows.Err()
}

func (r *BillRepo) CreateBill(ctx context.Context, b Bill) error {
	now := dbTime(time.Now())
	values := classificationValues(b.AI)
	values["id"] = b.ID
	values["title"] = b.Title
	values["summary"] = b.Summary
	values["full_text_url"] = nullString(b.FullTextURL)
	values["level"] = string(b.Level)
	values["chamber"] = b.Chamber
	values["vote_datetime"] = dbTime(b.VoteDatetime)
	values["status"] = string(b.Status)
	values["source"] = string(b.Source)
	values["external_id"] = nullString(b.ExternalID)
	values["created_at"] = now
	values["updated_at"] = now

	query, args, err := r.db.sb.Insert("bills").SetMap(values).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create bill: %w", err)
	}
	return nil
}

// UpdateBill rewrites the editable fields of a bill; id, source and external id are immutable.
func (r *BillRepo) UpdateBill(ctx context.Context, b Bill) error {
	values := classificationValues(b.AI)
	values["title"] = b.Title
	values["summary"] = b.Summary
	values["full_text_url"] = nullString(b.FullTextURL)
	values["level"] = string(b.Level)
	values["chamber"] = b.Chamber
	values["vote_datetime"] = dbTime(b.VoteDatetime)
	values["status"] = string(b.Status)
	values["updated_at"] = dbTime(time.Now())

	query, args, err := r.db.sb.Update("bills").SetMap(values).Where(sq.Eq{"id": b.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update bill: %w", err)
	}
	return nil
}

func (r *BillRepo) DeleteBill(ctx context.Context, id string) (bool, error) {
	query, args, err := r.db.sb.Delete("bills").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to delete bill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// UpdateStatuses realigns bill statuses with the clock: past votes become
// completed, votes inside the lookahead window become voting_now, and
// voting_now bills whose vote lies beyond the window go back to upcoming.
// A completed bill is never touched.
func (r *BillRepo) UpdateStatuses(ctx context.Context, now time.Time, lookahead time.Duration) (StatusChanges, error) {
	now = dbTime(now)
	horizon := dbTime(now.Add(lookahead))
	var changes StatusChanges

	steps := []struct {
		name  string
		to    bill.Status
		where []sq.Sqlizer
		count *int64
	}{
		{"complete bills", bill.StatusCompleted, []sq.Sqlizer{
			sq.NotEq{"status": string(bill.StatusCompleted)},
			sq.Lt{"vote_datetime": now},
		}, &changes.Completed},
		{"open bills for voting", bill.StatusVotingNow, []sq.Sqlizer{
			sq.Eq{"status": string(bill.StatusUpcoming)},
			sq.GtOrEq{"vote_datetime": now},
			sq.LtOrEq{"vote_datetime": horizon},
		}, &changes.VotingNow},
		{"reset bills to upcoming", bill.StatusUpcoming, []sq.Sqlizer{
			sq.Eq{"status": string(bill.StatusVotingNow)},
			sq.Gt{"vote_datetime": horizon},
		}, &changes.Upcoming},
	}

	for _, step := range steps {
		qb := r.db.sb.Update("bills").
			Set("status", string(step.to)).
			Set("updated_at", now)
		for _, w := range step.where {
			qb = qb.Where(w)
		}

		query, args, err := qb.ToSql()
		if err != nil {
			return changes, fmt.Errorf("failed to build update: %w", err)
		}

		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return changes, fmt.Errorf("failed to %s: %w", step.name, err)
		}
		*step.count, _ = res.RowsAffected()
	}

	return changes, nil
}

func scanBill(row rowScanner) (*Bill, error) {
	var (
		b           Bill
		level       string
		status      string
		source      string
		fullTextURL sql.NullString
		externalID  sql.NullString
		ai          classificationScan
	)

	dest := append([]any{
		&b.ID, &b.Title, &b.Summary, &fullTextURL, &level, &b.Chamber, &b.VoteDatetime,
		&status, &source, &externalID, &b.CreatedAt, &b.UpdatedAt,
	}, ai.dest()...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	b.Level = bill.Level(level)
	b.Status = bill.Status(status)
	b.Source = bill.Source(source)
	b.FullTextURL = fullTextURL.String
	b.ExternalID = externalID.String
	b.AI = ai.value()

	return &b, nil
}
