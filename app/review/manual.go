package review

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/constituant/constituant/app/apperror"
	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/database"
	"github.com/constituant/constituant/app/normalize"
)

var ErrManualIDTaken = apperror.ErrConflict.WithMessage(`Un projet de loi avec cet ID existe déjà. Utilisez action "update" pour le modifier.`)

// ManualBill is a bill entered by an administrator. Status is optional and
// defaults to upcoming; the status job takes over from there.
type ManualBill struct {
	ID           string
	Title        string
	Summary      string
	FullTextURL  string
	Theme        string
	Level        bill.Level
	Chamber      string
	VoteDatetime time.Time
	Status       bill.Status
}

func (m ManualBill) toBill() (database.Bill, error) {
	if !m.Level.Valid() {
		return database.Bill{}, ErrInvalidLevel
	}
	status := m.Status
	if status == "" {
		status = bill.StatusUpcoming
	}
	if !status.Valid() {
		return database.Bill{}, apperror.ErrValidation.WithMessage("Statut invalide. Doit être: upcoming, voting_now, ou completed")
	}
	theme := m.Theme
	if theme == "" {
		theme = bill.SentinelTheme
	}
	if !bill.IsTheme(theme) {
		return database.Bill{}, ErrInvalidTheme
	}

	return database.Bill{
		ID:           strings.TrimSpace(m.ID),
		Title:        normalize.CleanText(m.Title, normalize.TitleMaxLen),
		Summary:      normalize.CleanText(m.Summary, normalize.SummaryMaxLen),
		AI:           database.Classification{Theme: theme},
		FullTextURL:  strings.TrimSpace(m.FullTextURL),
		Level:        m.Level,
		Chamber:      strings.TrimSpace(m.Chamber),
		VoteDatetime: m.VoteDatetime,
		Status:       status,
		Source:       bill.SourceManual,
	}, nil
}

// CreateBill publishes a manual bill under the id chosen by the administrator.
func (s *Service) CreateBill(ctx context.Context, m ManualBill) (*database.Bill, error) {
	b, err := m.toBill()
	if err != nil {
		return nil, err
	}

	if err := s.bills.CreateBill(ctx, b); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrManualIDTaken
		}
		return nil, err
	}

	slog.Info("Manual bill created", "bill_id", b.ID, "level", b.Level)
	return &b, nil
}

// UpdateBill rewrites an existing bill. The classification other than the theme is kept.
func (s *Service) UpdateBill(ctx context.Context, m ManualBill) (*database.Bill, error) {
	existing, err := s.bills.GetBill(ctx, strings.TrimSpace(m.ID))
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperror.ErrBillNotFound
	}

	if m.Theme == "" {
		m.Theme = existing.AI.Theme
	}
	b, err := m.toBill()
	if err != nil {
		return nil, err
	}

	ai := existing.AI
	ai.Theme = b.AI.Theme
	b.AI = ai
	b.Source = existing.Source
	b.ExternalID = existing.ExternalID

	if err := s.bills.UpdateBill(ctx, b); err != nil {
		return nil, err
	}

	slog.Info("Manual bill updated", "bill_id", b.ID)
	return &b, nil
}

// DeleteBill removes a bill and, through the foreign key, its votes.
func (s *Service) DeleteBill(ctx context.Context, id string) (*database.Bill, error) {
	existing, err := s.bills.GetBill(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperror.ErrBillNotFound
	}

	if _, err := s.bills.DeleteBill(ctx, existing.ID); err != nil {
		return nil, err
	}

	slog.Info("Bill deleted", "bill_id", existing.ID)
	return existing, nil
}
