package bill

import (
	"slices"
	"time"
)

const DefaultLookahead = 7 * 24 * time.Hour

// StatusAt derives the status of a bill voted at vote, seen at now.
func StatusAt(now, vote time.Time, lookahead time.Duration) Status {
	switch {
	case vote.Before(now):
		return StatusCompleted
	case !vote.After(now.Add(lookahead)):
		return StatusVotingNow
	default:
		return StatusUpcoming
	}
}

// Advance returns the later of the current and derived status; completed is terminal.
func Advance(current Status, now, vote time.Time, lookahead time.Duration) Status {
	next := StatusAt(now, vote, lookahead)
	if statusRank(next) < statusRank(current) {
		return current
	}
	return next
}

func statusRank(s Status) int {
	switch s {
	case StatusVotingNow:
		return 1
	case StatusCompleted:
		return 2
	}
	return 0
}

type Urgency string

const (
	UrgencyPast   Urgency = "past"
	UrgencyUrgent Urgency = "urgent"
	UrgencySoon   Urgency = "soon"
	UrgencyFuture Urgency = "future"
)

func UrgencyAt(now, vote time.Time) Urgency {
	until := vote.Sub(now)
	switch {
	case until < 0:
		return UrgencyPast
	case until < 24*time.Hour:
		return UrgencyUrgent
	case until < 7*24*time.Hour:
		return UrgencySoon
	default:
		return UrgencyFuture
	}
}

type Tally struct {
	For     int `json:"for"`
	Against int `json:"against"`
	Abstain int `json:"abstain"`
}

func (t Tally) Total() int {
	return t.For + t.Against + t.Abstain
}

func (t *Tally) Add(v VoteType, n int) {
	switch v {
	case VoteFor:
		t.For += n
	case VoteAgainst:
		t.Against += n
	case VoteAbstain:
		t.Abstain += n
	}
}

type Percentages struct {
	For     int `json:"for"`
	Against int `json:"against"`
	Abstain int `json:"abstain"`
}

// Percentages splits 100 points with the largest remainder method, so the
// shares always sum to 100 once a vote exists. Ties go to for, then against.
func (t Tally) Percentages() Percentages {
	total := t.Total()
	if total == 0 {
		return Percentages{}
	}

	counts := [3]int{t.For, t.Against, t.Abstain}
	var shares, remainders [3]int
	left := 100
	for i, n := range counts {
		shares[i] = n * 100 / total
		remainders[i] = n * 100 % total
		left -= shares[i]
	}

	order := []int{0, 1, 2}
	slices.SortStableFunc(order, func(a, b int) int { return remainders[b] - remainders[a] })
	for _, i := range order[:left] {
		shares[i]++
	}

	return Percentages{For: shares[0], Against: shares[1], Abstain: shares[2]}
}
