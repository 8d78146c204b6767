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

type VoteRepo struct {
	db *DB
}

var _ VoteRepository = (*VoteRepo)(nil)

func NewVoteRepository(db *DB) *VoteRepo {
	return &VoteRepo{db: db}
}

func (r *VoteRepo) GetVote(ctx context.Context, billID, voterIP string) (*Vote, error) {
	query, args, err := r.db.sb.Select("id", "bill_id", "voter_ip", "vote_type", "user_agent", "voted_at").
		From("votes").
		Where(sq.Eq{"bill_id": billID, "voter_ip": voterIP}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		v         Vote
		voteType  string
		userAgent sql.NullString
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&v.ID, &v.BillID, &v.VoterIP, &voteType, &userAgent, &v.VotedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	v.VoteType = bill.VoteType(voteType)
	v.UserAgent = userAgent.String

	return &v, nil
}

// InsertVote relies on the (bill_id, voter_ip) unique constraint; a concurrent
// duplicate surfaces as ErrDuplicate.
func (r *VoteRepo) InsertVote(ctx context.Context, v Vote) (int64, error) {
	query, args, err := r.db.sb.Insert("votes").
		Columns("bill_id", "voter_ip", "vote_type", "user_agent", "voted_at").
		Values(v.BillID, v.VoterIP, string(v.VoteType), nullString(v.UserAgent), dbTime(v.VotedAt)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("failed to insert vote: %w", err)
	}
	return id, nil
}

func (r *VoteRepo) UpdateVoteType(ctx context.Context, id int64, voteType bill.VoteType, userAgent string, at time.Time) error {
	query, args, err := r.db.sb.Update("votes").
		Set("vote_type", string(voteType)).
		Set("user_agent", nullString(userAgent)).
		Set("voted_at", dbTime(at)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update vote: %w", err)
	}
	return nil
}

func (r *VoteRepo) CountVotesSince(ctx context.Context, voterIP string, since time.Time) (int, error) {
	query, args, err := r.db.sb.Select("COUNT(*)").From("votes").
		Where(sq.Eq{"voter_ip": voterIP}).
		Where(sq.Gt{"voted_at": dbTime(since)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}

func (r *VoteRepo) GetTally(ctx context.Context, billID string) (bill.Tally, error) {
	query, args, err := r.db.sb.Select("vote_type", "COUNT(*)").From("votes").
		Where(sq.Eq{"bill_id": billID}).
		GroupBy("vote_type").
		ToSql()
	if err != nil {
		return bill.Tally{}, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return bill.Tally{}, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	var tally bill.Tally
	for rows.Next() {
		var (
			voteType string
			n        int
		)
		if err := rows.Scan(&voteType, &n); err != nil {
			return bill.Tally{}, fmt.Errorf("failed to scan vote count: %w", err)
		}
		tally.Add(bill.VoteType(voteType), n)
	}
	return tally, rows.Err()
}

// ListVoteEvents returns the votes of a bill cast after since, oldest first.
func (r *VoteRepo) ListVoteEvents(ctx context.Context, billID string, since time.Time) ([]VoteEvent, error) {
	query, args, err := r.db.sb.Select("vote_type", "voted_at").From("votes").
		Where(sq.Eq{"bill_id": billID}).
		Where(sq.GtOrEq{"voted_at": dbTime(since)}).
		OrderBy("voted_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var events []VoteEvent
	for rows.Next() {
		var (
			e        VoteEvent
			voteType string
		)
		if err := rows.Scan(&voteType, &e.VotedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		e.VoteType = bill.VoteType(voteType)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *VoteRepo) GetVoterChoices(ctx context.Context, voterIP string) (map[string]bill.VoteType, error) {
	query, args, err := r.db.sb.Select("bill_id", "vote_type").From("votes").
		Where(sq.Eq{"voter_ip": voterIP}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list voter choices: %w", err)
	}
	defer rows.Close()

	choices := make(map[string]bill.VoteType)
	for rows.Next() {
		var billID, voteType string
		if err := rows.Scan(&billID, &voteType); err != nil {
			return nil, fmt.Errorf("failed to scan voter choice: %w", err)
		}
		choices[billID] = bill.VoteType(voteType)
	}
	return choices, rows.Err()
}
