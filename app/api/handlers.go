package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/constituant/constituant/app/apperror"
	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/cache"
	"github.com/constituant/constituant/app/database"
	"github.com/constituant/constituant/app/review"
	"github.com/constituant/constituant/app/vote"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	manualDateLayout = "2006-01-02 15:04:05"
	defaultListLimit = 50
)

var (
	errInvalidJSON     = apperror.ErrValidation.WithMessage("Format JSON invalide")
	errInvalidPassword = apperror.ErrUnauthorized.WithMessage("Mot de passe administrateur invalide")
	errInvalidDate     = apperror.ErrValidation.WithMessage("Format de date invalide. Utilisez: YYYY-MM-DD HH:MM:SS")
	errInvalidID       = apperror.ErrValidation.WithMessage("Identifiant invalide")
	errMissingBill     = apperror.ErrValidation.WithMessage("Données du projet de loi manquantes")
	errUnavailable     = apperror.New(http.StatusServiceUnavailable, "unavailable", "Service temporairement indisponible")
)

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

func NewHandler(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := apperror.ToHTTP(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, body)
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.Version,
		"cache":     h.Cache.Health(ctx),
	}

	status := http.StatusOK
	if err := h.DB.PingContext(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		health["status"] = "degraded"
		health["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	} else {
		health["database"] = "ok"
	}

	c.JSON(status, health)
}

func (h *Handler) CastVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidJSON)
		return
	}

	ip := vote.VoterIP(c.Request.Header, c.Request.RemoteAddr)
	receipt, err := h.Votes.CastVote(c.Request.Context(), req.BillID, bill.VoteType(strings.TrimSpace(req.VoteType)), ip, c.Request.UserAgent())
	if err != nil {
		h.respondError(c, err)
		return
	}

	status, message := http.StatusCreated, "Vote enregistré avec succès"
	if receipt.Action == vote.ActionUpdated {
		status, message = http.StatusOK, "Vote modifié avec succès"
	}

	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"action":  receipt.Action,
		"vote":    receipt,
	})
}

func (h *Handler) ListBills(c *gin.Context) {
	filter, err := vote.ParseFilter(c.Query("level"), c.Query("status"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	ip := vote.VoterIP(c.Request.Header, c.Request.RemoteAddr)
	bills, err := h.Votes.ListBills(c.Request.Context(), filter, ip)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bills":   bills,
		"count":   len(bills),
	})
}

func (h *Handler) GetResults(c *gin.Context) {
	res, err := h.Votes.Results(c.Request.Context(), c.Query("bill_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"bill_id":     res.BillID,
		"bill_title":  res.BillTitle,
		"votes":       res.Votes,
		"percentages": res.Percentages,
		"timeline":    res.Timeline,
		"updated_at":  res.UpdatedAt,
	})
}

// GetFeed publishes the bills that are still open for voting.
func (h *Handler) GetFeed(c *gin.Context) {
	ctx := c.Request.Context()
	filter, err := vote.ParseFilter(c.Query("level"), "")
	if err != nil {
		h.respondError(c, err)
		return
	}

	key := cache.Key(cache.PrefixFeed, string(filter.Level))
	var rss string
	if hit, _ := h.Cache.GetJSON(ctx, key, &rss); !hit {
		bills, err := h.Votes.ListBills(ctx, filter, "")
		if err != nil {
			h.respondError(c, err)
			return
		}

		open := make([]vote.BillView, 0, len(bills))
		for _, b := range bills {
			if b.Status != bill.StatusCompleted {
				open = append(open, b)
			}
		}

		if rss, err = h.Generator.Run(open, filter.Level); err != nil {
			slog.Error("RSS generation error", "level", filter.Level, "error", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		if err := h.Cache.SetJSON(ctx, key, rss); err != nil {
			slog.Warn("Cache write failed", "key", key, "error", err)
		}
	}

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.String(http.StatusOK, rss)
}

// ManageBill creates, updates or deletes a bill by hand. The admin password
// travels in the body and is compared in constant time.
func (h *Handler) ManageBill(c *gin.Context) {
	var req adminBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidJSON)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.AdminPassword), []byte(h.AdminPassword)) != 1 {
		slog.Warn("Invalid admin password", "ip", c.ClientIP())
		h.respondError(c, errInvalidPassword)
		return
	}

	if err := validate.Struct(&req); err != nil {
		h.respondError(c, validationError(err))
		return
	}
	if req.Bill == nil {
		h.respondError(c, errMissingBill)
		return
	}

	ctx := c.Request.Context()
	action := req.Action
	if action == "" {
		action = "create"
	}

	if action == "delete" {
		if strings.TrimSpace(req.Bill.ID) == "" {
			h.respondError(c, apperror.ErrValidation.WithMessage("ID du projet de loi requis pour la suppression"))
			return
		}
		deleted, err := h.Review.DeleteBill(ctx, req.Bill.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		h.Cache.InvalidateBill(ctx, deleted.ID)
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"message":    "Projet de loi supprimé avec succès",
			"bill_id":    deleted.ID,
			"bill_title": deleted.Title,
			"action":     "deleted",
		})
		return
	}

	if err := validate.Struct(req.Bill); err != nil {
		h.respondError(c, validationError(err))
		return
	}

	manual, err := h.manualBill(req.Bill)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if action == "update" {
		b, err := h.Review.UpdateBill(ctx, manual)
		if err != nil {
			h.respondError(c, err)
			return
		}
		h.Cache.InvalidateBill(ctx, b.ID)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Projet de loi mis à jour avec succès",
			"bill_id": b.ID,
			"action":  "updated",
		})
		return
	}

	b, err := h.Review.CreateBill(ctx, manual)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Cache.InvalidateLists(ctx)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Projet de loi ajouté avec succès",
		"bill_id": b.ID,
		"action":  "created",
	})
}

func (h *Handler) manualBill(b *adminBill) (review.ManualBill, error) {
	loc := h.Location
	if loc == nil {
		loc = time.Local
	}
	voteAt, err := time.ParseInLocation(manualDateLayout, strings.TrimSpace(b.VoteDatetime), loc)
	if err != nil {
		return review.ManualBill{}, errInvalidDate
	}

	return review.ManualBill{
		ID:           b.ID,
		Title:        b.Title,
		Summary:      b.Summary,
		FullTextURL:  b.FullTextURL,
		Theme:        b.Theme,
		Level:        bill.Level(b.Level),
		Chamber:      b.Chamber,
		VoteDatetime: voteAt,
		Status:       bill.Status(b.Status),
	}, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ErrValidation
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("Le champ '%s' est requis", fe.Field()))
	case "oneof":
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("Valeur invalide pour '%s'. Doit être: %s", fe.Field(), fe.Param()))
	default:
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("Valeur invalide pour '%s'", fe.Field()))
	}
}

func (h *Handler) ListPending(c *gin.Context) {
	status := bill.ReviewStatus(c.DefaultQuery("status", string(bill.ReviewPending)))
	if status == "all" {
		status = ""
	}

	rows, err := h.Review.List(c.Request.Context(), status, queryLimit(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]pendingView, 0, len(rows))
	for _, p := range rows {
		out = append(out, newPendingView(p))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pending": out,
		"count":   len(out),
	})
}

func (h *Handler) ApprovePending(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, errInvalidID)
		return
	}

	var overrides review.Overrides
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&overrides); err != nil {
			h.respondError(c, errInvalidJSON)
			return
		}
	}

	ctx := c.Request.Context()
	b, err := h.Review.Approve(ctx, id, overrides)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Cache.InvalidateLists(ctx)

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Projet de loi approuvé et publié",
		"pending_id": id,
		"bill_id":    b.ID,
		"status":     b.Status,
	})
}

func (h *Handler) RejectPending(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, errInvalidID)
		return
	}

	var req rejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondError(c, errInvalidJSON)
			return
		}
	}

	if err := h.Review.Reject(c.Request.Context(), id, req.Notes); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Projet de loi rejeté",
		"pending_id": id,
	})
}

func (h *Handler) ListImports(c *gin.Context) {
	logs, err := h.Imports.ListImportLogs(c.Request.Context(), queryLimit(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]importLogView, 0, len(logs))
	for _, l := range logs {
		out = append(out, newImportLogView(l))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"imports": out,
		"count":   len(out),
	})
}

func (h *Handler) TriggerIngest(c *gin.Context) {
	if h.Scheduler == nil || h.NewIngestTask == nil {
		h.respondError(c, errUnavailable)
		return
	}

	task := h.NewIngestTask()
	if err := h.Scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing ingest task", "error", err)
		h.respondError(c, errUnavailable.WithInternal(err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Import planifié",
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
	})
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, 500)
}

type pendingView struct {
	ID             int64             `json:"id"`
	ExternalID     string            `json:"external_id"`
	Source         bill.Source       `json:"source"`
	Title          string            `json:"title"`
	Summary        string            `json:"summary"`
	FullTextURL    string            `json:"full_text_url,omitempty"`
	Level          bill.Level        `json:"level"`
	Chamber        string            `json:"chamber"`
	VoteDatetime   *time.Time        `json:"vote_datetime"`
	Status         bill.ReviewStatus `json:"status"`
	Theme          string            `json:"theme"`
	AISummary      string            `json:"ai_summary,omitempty"`
	AIConfidence   float64           `json:"ai_confidence"`
	AIProcessedAt  *time.Time        `json:"ai_processed_at"`
	ApprovedBillID string            `json:"approved_bill_id,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	FetchedAt      time.Time         `json:"fetched_at"`
	ReviewedAt     *time.Time        `json:"reviewed_at"`
}

func newPendingView(p database.PendingBill) pendingView {
	return pendingView{
		ID:             p.ID,
		ExternalID:     p.ExternalID,
		Source:         p.Source,
		Title:          p.Title,
		Summary:        p.Summary,
		FullTextURL:    p.FullTextURL,
		Level:          p.Level,
		Chamber:        p.Chamber,
		VoteDatetime:   p.VoteDatetime,
		Status:         p.Status,
		Theme:          p.AI.Theme,
		AISummary:      p.AI.Summary,
		AIConfidence:   p.AI.Confidence,
		AIProcessedAt:  p.AI.ProcessedAt,
		ApprovedBillID: p.ApprovedBillID,
		Notes:          p.Notes,
		FetchedAt:      p.FetchedAt,
		ReviewedAt:     p.ReviewedAt,
	}
}

type importLogView struct {
	RunID        string    `json:"run_id"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	Fetched      int       `json:"fetched"`
	New          int       `json:"new"`
	Updated      int       `json:"updated"`
	Skipped      int       `json:"skipped"`
	Errors       int       `json:"errors"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	StartedAt    time.Time `json:"started_at"`
}

func newImportLogView(l database.ImportLog) importLogView {
	return importLogView{
		RunID:        l.RunID,
		Source:       l.Source,
		Status:       l.Status,
		Fetched:      l.Fetched,
		New:          l.New,
		Updated:      l.Updated,
		Skipped:      l.Skipped,
		Errors:       l.Errors,
		ErrorMessage: l.ErrorMessage,
		DurationMS:   l.Duration.Milliseconds(),
		StartedAt:    l.StartedAt,
	}
}
