package database

import (
	"context"
	"time"

	"github.com/constituant/constituant/app/bill"
)

type PendingBillRepository interface {
	GetPendingBill(ctx context.Context, id int64) (*PendingBill, error)
	GetPendingBillBySource(ctx context.Context, source bill.Source, externalID string) (*PendingBill, error)
	ListPendingBills(ctx context.Context, status bill.ReviewStatus, limit int) ([]PendingBill, error)
	ListForClassification(ctx context.Context, limit int, force bool) ([]PendingBill, error)

	InsertPendingBill(ctx context.Context, draft bill.Draft, fetchedAt time.Time) (int64, error)
	UpdatePendingBill(ctx context.Context, id int64, draft bill.Draft, fetchedAt time.Time) error
	UpdatePendingClassification(ctx context.Context, id int64, c Classification) error
	MarkApproved(ctx context.Context, id int64, billID string, at time.Time) error
	MarkRejected(ctx context.Context, id int64, notes string, at time.Time) error
}

type BillRepository interface {
	GetBill(ctx context.Context, id string) (*Bill, error)
	GetBillBySource(ctx context.Context, source bill.Source, externalID string) (*Bill, error)
	BillExists(ctx context.Context, id string) (bool, error)
	ListBills(ctx context.Context, filter BillFilter) ([]BillWithTally, error)

	CreateBill(ctx context.Context, b Bill) error
	UpdateBill(ctx context.Context, b Bill) error
	DeleteBill(ctx context.Context, id string) (bool, error)
	UpdateStatuses(ctx context.Context, now time.Time, lookahead time.Duration) (StatusChanges, error)
}

type VoteRepository interface {
	GetVote(ctx context.Context, billID, voterIP string) (*Vote, error)
	InsertVote(ctx context.Context, v Vote) (int64, error)
	UpdateVoteType(ctx context.Context, id int64, voteType bill.VoteType, userAgent string, at time.Time) error
	CountVotesSince(ctx context.Context, voterIP string, since time.Time) (int, error)
	GetTally(ctx context.Context, billID string) (bill.Tally, error)
	ListVoteEvents(ctx context.Context, billID string, since time.Time) ([]VoteEvent, error)
	GetVoterChoices(ctx context.Context, voterIP string) (map[string]bill.VoteType, error)
}

type ImportLogRepository interface {
	InsertImportLog(ctx context.Context, l ImportLog) error
	ListImportLogs(ctx context.Context, limit int) ([]ImportLog, error)
}
