package bill

import (
	"encoding/json"
	"time"
)

type Level string

const (
	LevelEU     Level = "eu"
	LevelFrance Level = "france"
)

func (l Level) Valid() bool {
	return l == LevelEU || l == LevelFrance
}

// Status of a production bill. It only moves forward in time.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusVotingNow Status = "voting_now"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	return s == StatusUpcoming || s == StatusVotingNow || s == StatusCompleted
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

type VoteType string

const (
	VoteFor     VoteType = "for"
	VoteAgainst VoteType = "against"
	VoteAbstain VoteType = "abstain"
)

func (v VoteType) Valid() bool {
	return v == VoteFor || v == VoteAgainst || v == VoteAbstain
}

// Label is the capitalised form shown to voters ("For", "Against", "Abstain").
func (v VoteType) Label() string {
	switch v {
	case VoteFor:
		return "For"
	case VoteAgainst:
		return "Against"
	case VoteAbstain:
		return "Abstain"
	}
	return string(v)
}

// Source identifies where a draft was fetched from. Bills created by hand use SourceManual.
type Source string

const (
	SourceNosDeputes Source = "nosdeputes"
	SourceLaFabrique Source = "lafabrique"
	SourceEuroparl   Source = "europarl"
	SourceManual     Source = "manual"
)

// Draft is the canonical record produced by the normalizer, before persistence.
type Draft struct {
	ExternalID   string
	Source       Source
	Title        string
	Summary      string
	FullTextURL  string
	Level        Level
	Chamber      string
	VoteDatetime *time.Time
	RawPayload   json.RawMessage
}
