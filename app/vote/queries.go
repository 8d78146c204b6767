package vote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/constituant/constituant/app/apperror"
	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/cache"
	"github.com/constituant/constituant/app/database"
)

const (
	timelineWindow = 24 * time.Hour
	hourLayout     = "2006-01-02 15:00:00"
)

var ErrInvalidLevel = apperror.ErrValidation.WithMessage("Paramètre level invalide. Doit être: all, eu, ou france")

type Filter struct {
	Level  bill.Level
	Status bill.Status
}

type Counts struct {
	bill.Tally
	Total int `json:"total"`
}

func countsOf(t bill.Tally) Counts {
	return Counts{Tally: t, Total: t.Total()}
}

type Analysis struct {
	Abstract string   `json:"abstract,omitempty"`
	Pros     []string `json:"pour,omitempty"`
	Cons     []string `json:"contre,omitempty"`
	Affected []string `json:"concerne,omitempty"`
}

// BillView is one entry of the public bill list.
type BillView struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Summary      string           `json:"summary"`
	AISummary    string           `json:"ai_summary,omitempty"`
	AIData       *Analysis        `json:"ai_data,omitempty"`
	Theme        string           `json:"theme"`
	FullTextURL  string           `json:"full_text_url,omitempty"`
	Level        bill.Level       `json:"level"`
	Chamber      string           `json:"chamber"`
	VoteDatetime time.Time        `json:"vote_datetime"`
	Status       bill.Status      `json:"status"`
	Votes        Counts           `json:"votes"`
	Percentages  bill.Percentages `json:"percentages"`
	Urgency      bill.Urgency     `json:"urgency"`
	UserVote     bill.VoteType    `json:"user_vote,omitempty"`
}

type TimelinePoint struct {
	Hour     string        `json:"hour"`
	VoteType bill.VoteType `json:"vote_type"`
	Count    int           `json:"count"`
}

type Results struct {
	BillID      string           `json:"bill_id"`
	BillTitle   string           `json:"bill_title"`
	Votes       Counts           `json:"votes"`
	Percentages bill.Percentages `json:"percentages"`
	Timeline    []TimelinePoint  `json:"timeline"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ParseFilter validates the level and status query parameters. "all" and an
// empty level select every level; an unknown status is ignored.
func ParseFilter(level, status string) (Filter, error) {
	var f Filter
	switch level = strings.TrimSpace(level); level {
	case "", "all":
	default:
		f.Level = bill.Level(level)
		if !f.Level.Valid() {
			return Filter{}, ErrInvalidLevel
		}
	}
	if s := bill.Status(strings.TrimSpace(status)); s.Valid() {
		f.Status = s
	}
	return f, nil
}

// ListBills returns bills ordered by vote date with tallies and the caller's own votes.
// The shared part of the list is cached; voter choices and urgency are added per call.
func (s *Service) ListBills(ctx context.Context, f Filter, voterIP string) ([]BillView, error) {
	key := cache.Key(cache.PrefixBills, string(f.Level), string(f.Status))

	var views []BillView
	hit, err := s.cache.GetJSON(ctx, key, &views)
	if err != nil {
		slog.Warn("Cache read failed", "key", key, "error", err)
	}
	if !hit {
		rows, err := s.bills.ListBills(ctx, database.BillFilter{Level: f.Level, Status: f.Status})
		if err != nil {
			return nil, err
		}
		views = make([]BillView, 0, len(rows))
		for _, row := range rows {
			views = append(views, newBillView(row))
		}
		if err := s.cache.SetJSON(ctx, key, views); err != nil {
			slog.Warn("Cache write failed", "key", key, "error", err)
		}
	}

	var choices map[string]bill.VoteType
	if voterIP != "" && voterIP != PlaceholderIP {
		if choices, err = s.votes.GetVoterChoices(ctx, voterIP); err != nil {
			return nil, err
		}
	}

	now := s.now()
	for i := range views {
		views[i].Urgency = bill.UrgencyAt(now, views[i].VoteDatetime)
		views[i].UserVote = choices[views[i].ID]
	}
	return views, nil
}

func newBillView(row database.BillWithTally) BillView {
	v := BillView{
		ID:           row.ID,
		Title:        row.Title,
		Summary:      row.Summary,
		AISummary:    row.AI.Summary,
		Theme:        row.AI.Theme,
		FullTextURL:  row.FullTextURL,
		Level:        row.Level,
		Chamber:      row.Chamber,
		VoteDatetime: row.VoteDatetime,
		Status:       row.Status,
		Votes:        countsOf(row.Tally),
		Percentages:  row.Tally.Percentages(),
	}
	if v.Theme == "" {
		v.Theme = bill.SentinelTheme
	}
	ai := row.AI
	if ai.Abstract != "" || len(ai.Pros) > 0 || len(ai.Cons) > 0 || len(ai.Affected) > 0 {
		v.AIData = &Analysis{Abstract: ai.Abstract, Pros: ai.Pros, Cons: ai.Cons, Affected: ai.Affected}
	}
	return v
}

// Results returns the tallies of one bill and its hourly vote timeline over the last day.
func (s *Service) Results(ctx context.Context, billID string) (*Results, error) {
	billID = strings.TrimSpace(billID)
	if billID == "" {
		return nil, ErrMissingBillID
	}

	key := cache.Key(cache.PrefixResults, billID)
	var cached Results
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		slog.Warn("Cache read failed", "key", key, "error", err)
	} else if hit {
		return &cached, nil
	}

	b, err := s.bills.GetBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	if b == nil {
		return nil, apperror.ErrBillNotFound
	}

	tally, err := s.votes.GetTally(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	events, err := s.votes.ListVoteEvents(ctx, b.ID, now.Add(-timelineWindow))
	if err != nil {
		return nil, err
	}

	res := &Results{
		BillID:      b.ID,
		BillTitle:   b.Title,
		Votes:       countsOf(tally),
		Percentages: tally.Percentages(),
		Timeline:    s.timeline(events),
		UpdatedAt:   now.Truncate(time.Second),
	}
	if err := s.cache.SetJSON(ctx, key, res); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
	return res, nil
}

// timeline buckets events by hour and vote type. Events arrive oldest first,
// so buckets come out in chronological order.
func (s *Service) timeline(events []database.VoteEvent) []TimelinePoint {
	points := make([]TimelinePoint, 0)
	index := make(map[string]int)
	for _, e := range events {
		hour := e.VotedAt.In(s.loc).Format(hourLayout)
		k := hour + "|" + string(e.VoteType)
		if i, ok := index[k]; ok {
			points[i].Count++
			continue
		}
		index[k] = len(points)
		points = append(points, TimelinePoint{Hour: hour, VoteType: e.VoteType, Count: 1})
	}
	return points
}
