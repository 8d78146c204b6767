package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/constituant/constituant/app/apperror"
	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/database"
	"github.com/constituant/constituant/app/normalize"
)

const defaultVoteDelay = 7 * 24 * time.Hour

var (
	ErrPendingNotFound = apperror.ErrNotFound.WithMessage("Projet de loi en attente introuvable")
	ErrAlreadyReviewed = apperror.ErrConflict.WithMessage("Ce projet de loi a déjà été traité")
	ErrIDTaken         = apperror.ErrConflict.WithMessage("Un projet de loi avec cet identifiant existe déjà")
	ErrInvalidTheme    = apperror.ErrValidation.WithMessage("Thème invalide")
	ErrInvalidLevel    = apperror.ErrValidation.WithMessage("Niveau invalide")
)

// Overrides are the fields an administrator may edit while approving.
// Zero values keep what was fetched.
type Overrides struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Summary      string     `json:"summary"`
	Theme        string     `json:"theme"`
	Level        bill.Level `json:"level"`
	Chamber      string     `json:"chamber"`
	VoteDatetime *time.Time `json:"vote_datetime"`
}

// Service publishes or discards pending bills. Decisions are final.
type Service struct {
	pending   database.PendingBillRepository
	bills     database.BillRepository
	lookahead time.Duration
	now       func() time.Time
}

func NewService(pending database.PendingBillRepository, bills database.BillRepository, lookahead time.Duration) *Service {
	if lookahead <= 0 {
		lookahead = bill.DefaultLookahead
	}
	return &Service{pending: pending, bills: bills, lookahead: lookahead, now: time.Now}
}

func (s *Service) List(ctx context.Context, status bill.ReviewStatus, limit int) ([]database.PendingBill, error) {
	return s.pending.ListPendingBills(ctx, status, limit)
}

func (s *Service) Get(ctx context.Context, id int64) (*database.PendingBill, error) {
	p, err := s.pending.GetPendingBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPendingNotFound
	}
	return p, nil
}

// Approve turns a pending bill into a production bill with a fresh slug id.
func (s *Service) Approve(ctx context.Context, id int64, o Overrides) (*database.Bill, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != bill.ReviewPending {
		return nil, ErrAlreadyReviewed
	}

	b, err := s.buildBill(p, o)
	if err != nil {
		return nil, err
	}

	if o.ID == "" {
		taken, err := s.bills.BillExists(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			b.ID = bill.UniqueBillID(b.ID, s.now())
		}
	}

	if err := s.bills.CreateBill(ctx, b); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrIDTaken
		}
		return nil, err
	}

	if err := s.pending.MarkApproved(ctx, p.ID, b.ID, s.now()); err != nil {
		// the pending row changed under us; undo the publication
		if _, delErr := s.bills.DeleteBill(context.WithoutCancel(ctx), b.ID); delErr != nil {
			slog.Error("Failed to roll back approved bill", "bill_id", b.ID, "error", delErr)
		}
		return nil, ErrAlreadyReviewed.WithInternal(err)
	}

	slog.Info("Pending bill approved", "pending_id", p.ID, "bill_id", b.ID, "status", b.Status)
	return &b, nil
}

func (s *Service) buildBill(p *database.PendingBill, o Overrides) (database.Bill, error) {
	now := s.now()

	level := p.Level
	if o.Level != "" {
		if !o.Level.Valid() {
			return database.Bill{}, ErrInvalidLevel
		}
		level = o.Level
	}

	title := p.Title
	if t := strings.TrimSpace(o.Title); t != "" {
		title = normalize.CleanText(t, normalize.TitleMaxLen)
	}

	summary := p.Summary
	if sm := strings.TrimSpace(o.Summary); sm != "" {
		summary = normalize.CleanText(sm, normalize.SummaryMaxLen)
	}

	ai := p.AI
	if ai.Theme == "" {
		ai.Theme = bill.SentinelTheme
	}
	if o.Theme != "" {
		if !bill.IsTheme(o.Theme) {
			return database.Bill{}, ErrInvalidTheme
		}
		ai.Theme = o.Theme
	}

	chamber := p.Chamber
	if o.Chamber != "" {
		chamber = o.Chamber
	}
	if o.Level != "" && o.Chamber == "" && level != p.Level {
		chamber = normalize.DefaultChamber(level)
	}

	vote := now.Add(defaultVoteDelay)
	switch {
	case o.VoteDatetime != nil:
		vote = *o.VoteDatetime
	case p.VoteDatetime != nil:
		vote = *p.VoteDatetime
	}

	id := strings.TrimSpace(o.ID)
	if id == "" {
		id = bill.BillID(level, title, now)
	} else if bill.Slugify(id, len(id)) != id {
		return database.Bill{}, apperror.ErrValidation.WithMessage(fmt.Sprintf("Identifiant invalide : %s", id))
	}

	return database.Bill{
		ID:           id,
		Title:        title,
		Summary:      summary,
		AI:           ai,
		FullTextURL:  p.FullTextURL,
		Level:        level,
		Chamber:      chamber,
		VoteDatetime: vote,
		Status:       bill.StatusAt(now, vote, s.lookahead),
		Source:       p.Source,
		ExternalID:   p.ExternalID,
	}, nil
}

func (s *Service) Reject(ctx context.Context, id int64, notes string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != bill.ReviewPending {
		return ErrAlreadyReviewed
	}

	if err := s.pending.MarkRejected(ctx, p.ID, strings.TrimSpace(notes), s.now()); err != nil {
		return ErrAlreadyReviewed.WithInternal(err)
	}

	slog.Info("Pending bill rejected", "pending_id", p.ID)
	return nil
}
