package vote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/constituant/constituant/app/apperror"
	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/database"
	"github.com/constituant/constituant/app/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const voter = "203.0.113.7"

type fixture struct {
	svc   *Service
	bills *database.BillRepo
	votes *database.VoteRepo
}

func setup(t *testing.T, opts Options) *fixture {
	db := dbtest.New(t)
	bills := database.NewBillRepository(db)
	votes := database.NewVoteRepository(db)
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &fixture{svc: NewService(bills, votes, nil, opts), bills: bills, votes: votes}
}

func (f *fixture) addBill(t *testing.T, id string, status bill.Status, vote time.Time) {
	t.Helper()
	err := f.bills.CreateBill(context.Background(), database.Bill{
		ID:           id,
		Title:        "Projet " + id,
		Summary:      "Résumé",
		Level:        bill.LevelFrance,
		Chamber:      "Assemblée nationale",
		VoteDatetime: vote,
		Status:       status,
		Source:       bill.SourceManual,
		AI:           database.Classification{Theme: bill.SentinelTheme},
	})
	require.NoError(t, err)
}

func TestCastVoteLifecycle(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})
	f.addBill(t, "fr-loi-test-2025", bill.StatusUpcoming, time.Now().Add(10*24*time.Hour))

	r, err := f.svc.CastVote(ctx, "fr-loi-test-2025", bill.VoteFor, voter, "test-agent")
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, r.Action)
	assert.Equal(t, "Projet fr-loi-test-2025", r.BillTitle)

	_, err = f.svc.CastVote(ctx, "fr-loi-test-2025", bill.VoteFor, voter, "test-agent")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrAlreadyVoted)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, `Vous avez déjà voté "For" pour ce projet de loi`, appErr.Message)

	r, err = f.svc.CastVote(ctx, "fr-loi-test-2025", bill.VoteAgainst, voter, "test-agent")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, r.Action)

	tally, err := f.votes.GetTally(ctx, "fr-loi-test-2025")
	require.NoError(t, err)
	assert.Equal(t, bill.Tally{Against: 1}, tally)
}

func TestCastVoteRejections(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})
	f.addBill(t, "open", bill.StatusVotingNow, time.Now().Add(time.Hour))
	f.addBill(t, "closed", bill.StatusCompleted, time.Now().Add(-48*time.Hour))

	tests := []struct {
		name     string
		billID   string
		voteType bill.VoteType
		ip       string
		want     *apperror.Error
	}{
		{"invalid vote type", "open", bill.VoteType("maybe"), voter, apperror.ErrValidation},
		{"placeholder ip", "open", bill.VoteFor, PlaceholderIP, apperror.ErrValidation},
		{"missing bill id", " ", bill.VoteFor, voter, apperror.ErrValidation},
		{"unknown bill", "nope", bill.VoteFor, voter, apperror.ErrNotFound},
		{"completed bill", "closed", bill.VoteFor, voter, apperror.ErrVoteClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CastVote(ctx, tt.billID, tt.voteType, tt.ip, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	n, err := f.votes.CountVotesSince(ctx, voter, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCastVoteRateLimit(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{RateLimit: 3, RateWindow: time.Hour})
	for i := range 4 {
		f.addBill(t, fmt.Sprintf("bill-%d", i), bill.StatusUpcoming, time.Now().Add(30*24*time.Hour))
	}

	for i := range 3 {
		_, err := f.svc.CastVote(ctx, fmt.Sprintf("bill-%d", i), bill.VoteAbstain, voter, "")
		require.NoError(t, err)
	}

	_, err := f.svc.CastVote(ctx, "bill-3", bill.VoteAbstain, voter, "")
	assert.ErrorIs(t, err, apperror.ErrRateLimited)

	_, err = f.svc.CastVote(ctx, "bill-3", bill.VoteAbstain, "198.51.100.1", "")
	assert.NoError(t, err)
}

func TestCastVoteConcurrentFirstVotes(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})
	f.addBill(t, "race", bill.StatusUpcoming, time.Now().Add(10*24*time.Hour))

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		already int
		others  []error
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := f.svc.CastVote(ctx, "race", bill.VoteFor, voter, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && r.Action == ActionCreated:
				created++
			case errors.Is(err, apperror.ErrAlreadyVoted):
				already++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, already)
	assert.Empty(t, others)

	tally, err := f.votes.GetTally(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Total())
}

func TestListBills(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})
	now := time.Now()
	f.addBill(t, "later", bill.StatusUpcoming, now.Add(30*24*time.Hour))
	f.addBill(t, "soon", bill.StatusVotingNow, now.Add(3*24*time.Hour))

	for _, ip := range []string{voter, "198.51.100.1", "198.51.100.2"} {
		_, err := f.svc.CastVote(ctx, "soon", bill.VoteFor, ip, "")
		require.NoError(t, err)
	}
	_, err := f.svc.CastVote(ctx, "soon", bill.VoteAgainst, "198.51.100.3", "")
	require.NoError(t, err)

	views, err := f.svc.ListBills(ctx, Filter{}, voter)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "soon", views[0].ID)
	assert.Equal(t, 4, views[0].Votes.Total)
	assert.Equal(t, bill.Percentages{For: 75, Against: 25}, views[0].Percentages)
	assert.Equal(t, bill.VoteFor, views[0].UserVote)
	assert.Equal(t, bill.UrgencySoon, views[0].Urgency)

	assert.Equal(t, "later", views[1].ID)
	assert.Empty(t, views[1].UserVote)
	assert.Equal(t, bill.UrgencyFuture, views[1].Urgency)
	assert.Equal(t, bill.SentinelTheme, views[1].Theme)

	views, err = f.svc.ListBills(ctx, Filter{Status: bill.StatusUpcoming}, PlaceholderIP)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "later", views[0].ID)
}

func TestResults(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})
	f.addBill(t, "res", bill.StatusUpcoming, time.Now().Add(10*24*time.Hour))

	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return base.Add(2 * time.Hour) }

	votes := []database.Vote{
		{BillID: "res", VoterIP: "198.51.100.1", VoteType: bill.VoteFor, VotedAt: base.Add(5 * time.Minute)},
		{BillID: "res", VoterIP: "198.51.100.2", VoteType: bill.VoteFor, VotedAt: base.Add(20 * time.Minute)},
		{BillID: "res", VoterIP: "198.51.100.3", VoteType: bill.VoteAgainst, VotedAt: base.Add(30 * time.Minute)},
		{BillID: "res", VoterIP: "198.51.100.4", VoteType: bill.VoteFor, VotedAt: base.Add(70 * time.Minute)},
		{BillID: "res", VoterIP: "198.51.100.5", VoteType: bill.VoteAbstain, VotedAt: base.Add(-30 * time.Hour)},
	}
	for _, v := range votes {
		_, err := f.votes.InsertVote(ctx, v)
		require.NoError(t, err)
	}

	res, err := f.svc.Results(ctx, "res")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Votes.Total)
	assert.Equal(t, bill.Tally{For: 3, Against: 1, Abstain: 1}, res.Votes.Tally)
	assert.Equal(t, bill.Percentages{For: 60, Against: 20, Abstain: 20}, res.Percentages)
	assert.Equal(t, []TimelinePoint{
		{Hour: "2025-03-10 14:00:00", VoteType: bill.VoteFor, Count: 2},
		{Hour: "2025-03-10 14:00:00", VoteType: bill.VoteAgainst, Count: 1},
		{Hour: "2025-03-10 15:00:00", VoteType: bill.VoteFor, Count: 1},
	}, res.Timeline)

	_, err = f.svc.Results(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrBillNotFound)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("all", "voting_now")
	require.NoError(t, err)
	assert.Equal(t, Filter{Status: bill.StatusVotingNow}, f)

	f, err = ParseFilter("eu", "bogus")
	require.NoError(t, err)
	assert.Equal(t, Filter{Level: bill.LevelEU}, f)

	_, err = ParseFilter("mars", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
