package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"plaza-billing/internal/audit"
	"plaza-billing/internal/auth"
	billing "plaza-billing/internal/billing/domain"
	obligationapp "plaza-billing/internal/obligations/application"
	obligations "plaza-billing/internal/obligations/domain"
)

const dateLayout = "2006-01-02"

// Handler provides obligation config endpoints under /api/v1/obligations.
type Handler struct {
	service     *obligationapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *obligationapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("obligations handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes obligation requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/obligations" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
		return
	case path == "/api/v1/obligations" && r.Method == http.MethodGet:
		h.handleList(w, r)
		return
	case path == "/api/v1/obligations/reminders" && r.Method == http.MethodGet:
		h.handleReminders(w, r)
		return
	case strings.HasPrefix(path, "/api/v1/obligations/"):
		h.handleByID(w, r, strings.TrimPrefix(path, "/api/v1/obligations/"))
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

type createRequest struct {
	Kind         string          `json:"kind"`
	ExpenseType  string          `json:"expense_type"`
	BusinessID   string          `json:"business_id"`
	MeterID      string          `json:"meter_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	BaseAmount   decimal.Decimal `json:"base_amount"`
	Frequency    string          `json:"frequency"`
	NextDueDate  string          `json:"next_due_date"`
	ReminderDate string          `json:"reminder_date"`
	AutoGenerate *bool           `json:"auto_generate"`
	GraceDays    int             `json:"grace_days"`
}

func (req createRequest) input() (obligations.NewConfigInput, error) {
	next, err := parseDate(req.NextDueDate)
	if err != nil {
		return obligations.NewConfigInput{}, err
	}
	var reminder *time.Time
	if req.ReminderDate != "" {
		at, err := parseDate(req.ReminderDate)
		if err != nil {
			return obligations.NewConfigInput{}, err
		}
		reminder = &at
	}
	autoGenerate := true
	if req.AutoGenerate != nil {
		autoGenerate = *req.AutoGenerate
	}
	return obligations.NewConfigInput{
		Kind:         billing.Kind(req.Kind),
		ExpenseType:  req.ExpenseType,
		BusinessID:   req.BusinessID,
		MeterID:      req.MeterID,
		Title:        req.Title,
		Description:  req.Description,
		BaseAmount:   req.BaseAmount,
		Frequency:    obligations.Frequency(req.Frequency),
		NextDueDate:  next,
		ReminderDate: reminder,
		AutoGenerate: autoGenerate,
		GraceDays:    req.GraceDays,
	}, nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	in, err := req.input()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	cfg, err := h.service.Create(r.Context(), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
	h.logAudit(r, cfg, "obligation.create", map[string]any{
		"kind":      cfg.Kind,
		"frequency": cfg.Frequency,
		"amount":    cfg.BaseAmount.String(),
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := obligations.ListFilter{
		Kind:       billing.Kind(query.Get("kind")),
		BusinessID: query.Get("business_id"),
		Status:     obligations.Status(query.Get("status")),
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []obligations.Config{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleReminders(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Reminders(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []obligations.Config{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		cfg, err := h.service.Get(r.Context(), id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
		return
	}
	if len(parts) == 2 && r.Method == http.MethodPost {
		switch parts[1] {
		case "pause":
			h.mutate(w, r, "obligation.pause", nil, func(ctx context.Context) (*obligations.Config, error) {
				return h.service.Pause(ctx, id)
			})
			return
		case "resume":
			h.mutate(w, r, "obligation.resume", nil, func(ctx context.Context) (*obligations.Config, error) {
				return h.service.Resume(ctx, id)
			})
			return
		case "amount":
			var req struct {
				Amount decimal.Decimal `json:"amount"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
			h.mutate(w, r, "obligation.amount", map[string]any{"amount": req.Amount.String()}, func(ctx context.Context) (*obligations.Config, error) {
				return h.service.UpdateAmount(ctx, id, req.Amount)
			})
			return
		case "frequency":
			var req struct {
				Frequency string `json:"frequency"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
			h.mutate(w, r, "obligation.frequency", map[string]any{"frequency": req.Frequency}, func(ctx context.Context) (*obligations.Config, error) {
				return h.service.ChangeFrequency(ctx, id, obligations.Frequency(req.Frequency))
			})
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, action string, meta map[string]any, fn func(ctx context.Context) (*obligations.Config, error)) {
	cfg, err := fn(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
	h.logAudit(r, cfg, action, meta)
}

func (h *Handler) logAudit(r *http.Request, cfg *obligations.Config, action string, meta map[string]any) {
	if h.auditLogger == nil || cfg == nil {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "obligation",
		ResourceID:   cfg.ID,
		BusinessID:   cfg.BusinessID,
		Metadata:     audit.Metadata(meta),
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

// GenerateHandler serves POST /api/v1/billing/generate for the scheduler.
type GenerateHandler struct {
	generator   *obligationapp.Generator
	reminders   *obligationapp.ReminderDispatcher
	clock       obligationapp.Clock
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewGenerateHandler constructs a GenerateHandler. reminders may be nil.
func NewGenerateHandler(generator *obligationapp.Generator, reminders *obligationapp.ReminderDispatcher, clock obligationapp.Clock, auditLogger audit.Logger, logger *zap.Logger) (*GenerateHandler, error) {
	if generator == nil {
		return nil, errors.New("generate handler: nil generator")
	}
	if clock == nil {
		clock = obligationapp.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerateHandler{generator: generator, reminders: reminders, clock: clock, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP runs one generation pass and returns its report.
func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	now := h.clock.Now()
	report, err := h.generator.GenerateDue(r.Context(), now)
	if err == nil && h.reminders != nil {
		report.RemindersSent, err = h.reminders.Dispatch(r.Context(), now)
	}
	if err != nil {
		h.logger.Error("generate due bills failed", zap.Error(err))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusServiceUnavailable, report)
			return
		}
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
	if h.auditLogger != nil {
		_ = h.auditLogger.Log(r.Context(), audit.Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "billing.generate",
			ResourceType: "billing_run",
			Metadata: audit.Metadata(map[string]any{
				"created":   report.Created,
				"skipped":   report.Skipped,
				"failed":    report.Failed,
				"reminders": report.RemindersSent,
			}),
			IP:        audit.ClientIP(r),
			UserAgent: r.UserAgent(),
		})
	}
}

// ReadingsHandler records meter readings under /api/v1/meters/{id}/readings.
type ReadingsHandler struct {
	recorder    obligations.ReadingRecorder
	auditLogger audit.Logger
}

// NewReadingsHandler constructs a ReadingsHandler.
func NewReadingsHandler(recorder obligations.ReadingRecorder, auditLogger audit.Logger) (*ReadingsHandler, error) {
	if recorder == nil {
		return nil, errors.New("readings handler: nil recorder")
	}
	return &ReadingsHandler{recorder: recorder, auditLogger: auditLogger}, nil
}

// ServeHTTP handles POST /api/v1/meters/{id}/readings.
func (h *ReadingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(strings.TrimSuffix(r.URL.Path, "/"), "/api/v1/meters/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "readings" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	meterID := parts[0]
	var req struct {
		ReadingDate string          `json:"reading_date"`
		Value       decimal.Decimal `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	at, err := parseDate(req.ReadingDate)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if req.Value.IsNegative() {
		http.Error(w, "reading must not be negative", http.StatusBadRequest)
		return
	}
	if err := h.recorder.Record(r.Context(), meterID, at, req.Value); err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"meter_id":     meterID,
		"reading_date": at.Format(dateLayout),
		"value":        req.Value,
	})
	if h.auditLogger != nil {
		_ = h.auditLogger.Log(r.Context(), audit.Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "meter.reading",
			ResourceType: "meter",
			ResourceID:   meterID,
			Metadata:     audit.Metadata(map[string]any{"date": at.Format(dateLayout), "value": req.Value.String()}),
			IP:           audit.ClientIP(r),
			UserAgent:    r.UserAgent(),
		})
	}
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: date required", billing.ErrInvalidInput)
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", billing.ErrInvalidInput, err)
	}
	return t, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, billing.ErrInvalidConfiguration), errors.Is(err, billing.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, obligations.ErrConfigNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, billing.ErrDuplicateBill):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
