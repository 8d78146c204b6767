package bill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		vote time.Time
		want Status
	}{
		{"two days ago", now.Add(-48 * time.Hour), StatusCompleted},
		{"in three days", now.Add(72 * time.Hour), StatusVotingNow},
		{"exactly at lookahead edge", now.Add(DefaultLookahead), StatusVotingNow},
		{"in thirty days", now.Add(30 * 24 * time.Hour), StatusUpcoming},
		{"right now", now, StatusVotingNow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusAt(now, tt.vote, DefaultLookahead))
		})
	}
}

func TestAdvanceNeverResurrectsCompleted(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour)

	assert.Equal(t, StatusCompleted, Advance(StatusCompleted, now, future, DefaultLookahead))
	assert.Equal(t, StatusVotingNow, Advance(StatusVotingNow, now, future, DefaultLookahead))
	assert.Equal(t, StatusVotingNow, Advance(StatusUpcoming, now, now.Add(time.Hour), DefaultLookahead))
}

func TestUrgencyAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, UrgencyPast, UrgencyAt(now, now.Add(-time.Minute)))
	assert.Equal(t, UrgencyUrgent, UrgencyAt(now, now.Add(23*time.Hour)))
	assert.Equal(t, UrgencySoon, UrgencyAt(now, now.Add(3*24*time.Hour)))
	assert.Equal(t, UrgencyFuture, UrgencyAt(now, now.Add(8*24*time.Hour)))
}

func TestPercentages(t *testing.T) {
	tests := []struct {
		name  string
		tally Tally
		want  Percentages
	}{
		{"three for one against", Tally{For: 3, Against: 1}, Percentages{For: 75, Against: 25}},
		{"no votes", Tally{}, Percentages{}},
		{"thirds", Tally{For: 1, Against: 1, Abstain: 1}, Percentages{For: 34, Against: 33, Abstain: 33}},
		{"largest remainder wins", Tally{For: 1, Against: 2, Abstain: 4}, Percentages{For: 14, Against: 29, Abstain: 57}},
		{"sixths", Tally{For: 1, Against: 1, Abstain: 4}, Percentages{For: 17, Against: 17, Abstain: 66}},
		{"unanimous abstain", Tally{Abstain: 4}, Percentages{Abstain: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tally.Percentages()
			assert.Equal(t, tt.want, got)
			if tt.tally.Total() > 0 {
				sum := got.For + got.Against + got.Abstain
				assert.Equal(t, 100, sum)
			}
		})
	}
}

func TestTallyAdd(t *testing.T) {
	var tally Tally
	tally.Add(VoteFor, 2)
	tally.Add(VoteAgainst, 1)
	tally.Add(VoteType("maybe"), 5)

	assert.Equal(t, Tally{For: 2, Against: 1}, tally)
	assert.Equal(t, 3, tally.Total())
}
