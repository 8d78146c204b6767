package database

import (
	"encoding/json"
	"time"

	"github.com/constituant/constituant/app/bill"
)

// Classification is the AI output stored alongside pending and production bills.
type Classification struct {
	Theme       string
	Summary     string
	Abstract    string
	Pros        []string
	Cons        []string
	Affected    []string
	Confidence  float64
	ProcessedAt *time.Time
}

type PendingBill struct {
	ID             int64
	ExternalID     string
	Source         bill.Source
	Title          string
	Summary        string
	FullTextURL    string
	Level          bill.Level
	Chamber        string
	VoteDatetime   *time.Time
	RawPayload     json.RawMessage
	Status         bill.ReviewStatus
	AI             Classification
	ApprovedBillID string
	Notes          string
	FetchedAt      time.Time
	ReviewedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Bill struct {
	ID           string
	Title        string
	Summary      string
	AI           Classification
	FullTextURL  string
	Level        bill.Level
	Chamber      string
	VoteDatetime time.Time
	Status       bill.Status
	Source       bill.Source
	ExternalID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type BillWithTally struct {
	Bill
	Tally bill.Tally
}

type BillFilter struct {
	Level  bill.Level
	Status bill.Status
	Limit  int
}

type Vote struct {
	ID        int64
	BillID    string
	VoterIP   string
	VoteType  bill.VoteType
	UserAgent string
	VotedAt   time.Time
}

// VoteEvent is one vote in a results timeline.
type VoteEvent struct {
	VoteType bill.VoteType
	VotedAt  time.Time
}

// StatusChanges counts the bills moved to each status by one UpdateStatuses call.
type StatusChanges struct {
	Completed int64
	VotingNow int64
	Upcoming  int64
}

type ImportLog struct {
	ID           int64
	RunID        string
	Source       string
	Status       string
	Fetched      int
	New          int
	Updated      int
	Skipped      int
	Errors       int
	ErrorMessage string
	Duration     time.Duration
	StartedAt    time.Time
	CreatedAt    time.Time
}
