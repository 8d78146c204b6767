package vote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/constituant/constituant/app/apperror"
	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/cache"
	"github.com/constituant/constituant/app/database"
	"github.com/constituant/constituant/app/metrics"
)

const (
	DefaultRateLimit  = 10
	DefaultRateWindow = time.Hour
)

var (
	ErrInvalidVoteType = apperror.ErrValidation.WithMessage("Type de vote invalide. Doit être: for, against, ou abstain")
	ErrMissingBillID   = apperror.ErrValidation.WithMessage("Le paramètre bill_id est requis")
	ErrUnknownVoter    = apperror.ErrValidation.WithMessage("Impossible de déterminer votre adresse IP")
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Receipt describes an accepted vote.
type Receipt struct {
	BillID    string        `json:"bill_id"`
	BillTitle string        `json:"bill_title"`
	VoteType  bill.VoteType `json:"vote_type"`
	Action    Action        `json:"action"`
}

type Options struct {
	RateLimit  int
	RateWindow time.Duration
	Location   *time.Location
}

// Service casts votes and answers the public read queries.
// Reads go through the cache when one is configured; every accepted vote invalidates it.
type Service struct {
	bills  database.BillRepository
	votes  database.VoteRepository
	cache  *cache.Cache
	limit  int
	window time.Duration
	loc    *time.Location
	now    func() time.Time
}

func NewService(bills database.BillRepository, votes database.VoteRepository, c *cache.Cache, opts Options) *Service {
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = DefaultRateWindow
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		bills:  bills,
		votes:  votes,
		cache:  c,
		limit:  opts.RateLimit,
		window: opts.RateWindow,
		loc:    opts.Location,
		now:    time.Now,
	}
}

// CastVote records or changes the vote of voterIP on billID.
// The (bill, voter) pair is unique in storage: when two first votes race, the
// loser gets ErrAlreadyVoted.
func (s *Service) CastVote(ctx context.Context, billID string, voteType bill.VoteType, voterIP, userAgent string) (*Receipt, error) {
	billID = strings.TrimSpace(billID)
	if billID == "" {
		return nil, s.reject(ErrMissingBillID)
	}
	if !voteType.Valid() {
		return nil, s.reject(ErrInvalidVoteType)
	}
	if voterIP == "" || voterIP == PlaceholderIP {
		return nil, s.reject(ErrUnknownVoter)
	}

	b, err := s.bills.GetBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	if b == nil {
		return nil, s.reject(apperror.ErrBillNotFound)
	}
	if b.Status == bill.StatusCompleted {
		return nil, s.reject(apperror.ErrVoteClosed)
	}

	now := s.now()
	recent, err := s.votes.CountVotesSince(ctx, voterIP, now.Add(-s.window))
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if recent >= s.limit {
		slog.Warn("Vote rate limit reached", "voter_ip", voterIP, "votes", recent, "window", s.window)
		return nil, s.reject(apperror.ErrRateLimited)
	}

	existing, err := s.votes.GetVote(ctx, billID, voterIP)
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}

	receipt := &Receipt{BillID: b.ID, BillTitle: b.Title, VoteType: voteType}

	switch {
	case existing != nil && existing.VoteType == voteType:
		msg := fmt.Sprintf("Vous avez déjà voté %q pour ce projet de loi", voteType.Label())
		return nil, s.reject(apperror.ErrAlreadyVoted.WithMessage(msg))

	case existing != nil:
		if err := s.votes.UpdateVoteType(ctx, existing.ID, voteType, userAgent, now); err != nil {
			return nil, err
		}
		receipt.Action = ActionUpdated

	default:
		_, err := s.votes.InsertVote(ctx, database.Vote{
			BillID:    b.ID,
			VoterIP:   voterIP,
			VoteType:  voteType,
			UserAgent: userAgent,
			VotedAt:   now,
		})
		if errors.Is(err, database.ErrDuplicate) {
			return nil, s.reject(apperror.ErrAlreadyVoted)
		}
		if err != nil {
			return nil, err
		}
		receipt.Action = ActionCreated
	}

	metrics.VotesTotal.WithLabelValues(string(receipt.Action)).Inc()
	s.cache.InvalidateBill(ctx, b.ID)

	slog.Info("Vote recorded", "bill_id", b.ID, "vote_type", voteType, "action", receipt.Action)
	return receipt, nil
}

func (s *Service) reject(err *apperror.Error) error {
	metrics.VotesTotal.WithLabelValues("rejected").Inc()
	return err
}
