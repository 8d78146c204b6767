package api

import (
	"context"
	"time"

	"github.com/constituant/constituant/app/cache"
	"github.com/constituant/constituant/app/database"
	"github.com/constituant/constituant/app/review"
	"github.com/constituant/constituant/app/tasks"
	"github.com/constituant/constituant/app/vote"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators of the HTTP handlers. Scheduler and NewIngestTask
// may be nil, in which case POST /api/admin/ingest answers 503.
type Deps struct {
	Votes         *vote.Service
	Review        *review.Service
	Imports       database.ImportLogRepository
	Cache         *cache.Cache
	DB            Pinger
	Scheduler     tasks.TaskSchedulerInterface
	NewIngestTask func() tasks.TaskInterface
	Generator     *Generator
	AdminPassword string
	Version       string
	// Location interprets the wall-clock dates of manually entered bills.
	Location *time.Location
}

type Handler struct {
	Deps
}

type voteRequest struct {
	BillID   string `json:"bill_id"`
	VoteType string `json:"vote_type"`
}

type adminBillRequest struct {
	AdminPassword string     `json:"admin_password"`
	Action        string     `json:"action" validate:"omitempty,oneof=create update delete"`
	Bill          *adminBill `json:"bill" validate:"-"`
}

type adminBill struct {
	ID           string `json:"id" validate:"required,max=100"`
	Title        string `json:"title" validate:"required,max=500"`
	Summary      string `json:"summary" validate:"required"`
	FullTextURL  string `json:"full_text_url" validate:"omitempty,url"`
	Theme        string `json:"theme"`
	Level        string `json:"level" validate:"required,oneof=eu france"`
	Chamber      string `json:"chamber" validate:"required"`
	VoteDatetime string `json:"vote_datetime" validate:"required"`
	Status       string `json:"status" validate:"omitempty,oneof=upcoming voting_now completed"`
}

type rejectRequest struct {
	Notes string `json:"notes"`
}
