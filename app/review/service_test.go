package review

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/constituant/constituant/app/apperror"
	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/database"
	"github.com/constituant/constituant/app/database/dbtest"
	"github.com/constituant/constituant/app/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *database.PendingBillRepo, *database.BillRepo) {
	db := dbtest.New(t)
	pending := database.NewPendingBillRepository(db)
	bills := database.NewBillRepository(db)
	return NewService(pending, bills, 0), pending, bills
}

func insertPending(t *testing.T, repo *database.PendingBillRepo, externalID string, vote *time.Time) int64 {
	id, err := repo.InsertPendingBill(context.Background(), bill.Draft{
		ExternalID:   externalID,
		Source:       bill.SourceNosDeputes,
		Title:        "Loi Test",
		Summary:      "Résumé",
		Level:        bill.LevelFrance,
		Chamber:      normalize.ChamberAssemblee,
		VoteDatetime: vote,
	}, time.Now())
	require.NoError(t, err)
	return id
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	svc, pending, bills := setup(t)

	vote := time.Now().Add(10 * 24 * time.Hour)
	id := insertPending(t, pending, "42", &vote)

	b, err := svc.Approve(ctx, id, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("fr-loi-test-%d", time.Now().Year()), b.ID)
	assert.Equal(t, "Loi Test", b.Title)
	assert.Equal(t, bill.StatusUpcoming, b.Status)
	assert.Equal(t, bill.SentinelTheme, b.AI.Theme)

	stored, err := bills.GetBill(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "42", stored.ExternalID)

	p, _ := pending.GetPendingBill(ctx, id)
	assert.Equal(t, bill.ReviewApproved, p.Status)
	assert.Equal(t, b.ID, p.ApprovedBillID)
	assert.NotNil(t, p.ReviewedAt)

	_, err = svc.Approve(ctx, id, Overrides{})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.ErrorIs(t, svc.Reject(ctx, id, "trop tard"), apperror.ErrConflict)
}

func TestApproveWithOverrides(t *testing.T) {
	ctx := context.Background()
	svc, pending, _ := setup(t)

	id := insertPending(t, pending, "42", nil)
	vote := time.Now().Add(2 * 24 * time.Hour)

	b, err := svc.Approve(ctx, id, Overrides{
		ID:           "loi-climat-2025",
		Title:        "Loi <b>Climat</b>",
		Theme:        "Environnement & Énergie",
		Level:        bill.LevelEU,
		VoteDatetime: &vote,
	})
	require.NoError(t, err)
	assert.Equal(t, "loi-climat-2025", b.ID)
	assert.Equal(t, "Loi Climat", b.Title)
	assert.Equal(t, "Environnement & Énergie", b.AI.Theme)
	assert.Equal(t, normalize.ChamberParliament, b.Chamber)
	assert.Equal(t, bill.StatusVotingNow, b.Status)
}

func TestApproveDefaultsVoteDate(t *testing.T) {
	svc, pending, _ := setup(t)
	id := insertPending(t, pending, "42", nil)

	b, err := svc.Approve(context.Background(), id, Overrides{})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), b.VoteDatetime, time.Minute)
}

func TestApproveSlugCollision(t *testing.T) {
	ctx := context.Background()
	svc, pending, _ := setup(t)

	first, err := svc.Approve(ctx, insertPending(t, pending, "1", nil), Overrides{})
	require.NoError(t, err)
	second, err := svc.Approve(ctx, insertPending(t, pending, "2", nil), Overrides{})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Contains(t, second.ID, first.ID+"-")

	_, err = svc.Approve(ctx, insertPending(t, pending, "3", nil), Overrides{ID: first.ID})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestApproveValidation(t *testing.T) {
	ctx := context.Background()
	svc, pending, _ := setup(t)
	id := insertPending(t, pending, "42", nil)

	_, err := svc.Approve(ctx, id, Overrides{Theme: "Sport"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Approve(ctx, id, Overrides{ID: "Not A Slug"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Approve(ctx, id, Overrides{Level: "world"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Approve(ctx, 999, Overrides{})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	p, _ := pending.GetPendingBill(ctx, id)
	assert.Equal(t, bill.ReviewPending, p.Status)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	svc, pending, _ := setup(t)
	id := insertPending(t, pending, "42", nil)

	require.NoError(t, svc.Reject(ctx, id, " hors sujet "))

	p, _ := pending.GetPendingBill(ctx, id)
	assert.Equal(t, bill.ReviewRejected, p.Status)
	assert.Equal(t, "hors sujet", p.Notes)

	rejected, err := svc.List(ctx, bill.ReviewRejected, 10)
	require.NoError(t, err)
	assert.Len(t, rejected, 1)
}
