package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"plaza-billing/internal/audit"
	"plaza-billing/internal/auth"
	billapp "plaza-billing/internal/billing/application"
	billing "plaza-billing/internal/billing/domain"
	invoiceapp "plaza-billing/internal/invoice/application"
)

const dateLayout = "2006-01-02"

// Handler provides bill endpoints under /api/v1/bills.
type Handler struct {
	service     *billapp.Service
	invoices    *invoiceapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler. invoices may be nil, which disables invoice routes.
func NewHandler(service *billapp.Service, invoices *invoiceapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("bills handler: nil service")
	}
	return &Handler{service: service, invoices: invoices, auditLogger: auditLogger}, nil
}

// ServeHTTP routes bill requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/bills" && r.Method == http.MethodGet:
		h.handleList(w, r)
		return
	case path == "/api/v1/bills/utility" && r.Method == http.MethodPost:
		h.handleIssueUtility(w, r)
		return
	case path == "/api/v1/bills/rent" && r.Method == http.MethodPost:
		h.handleIssueRent(w, r)
		return
	case strings.HasPrefix(path, "/api/v1/bills/"):
		h.handleByID(w, r, strings.TrimPrefix(path, "/api/v1/bills/"))
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := billing.ListFilter{
		BusinessID: query.Get("business_id"),
		Kind:       billing.Kind(query.Get("kind")),
		Status:     billing.PaymentStatus(query.Get("status")),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []billing.BillRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleIssueUtility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID      string          `json:"business_id"`
		MeterID         string          `json:"meter_id"`
		ReadingDate     string          `json:"reading_date"`
		PreviousReading decimal.Decimal `json:"previous_reading"`
		CurrentReading  decimal.Decimal `json:"current_reading"`
		RatePerUnit     decimal.Decimal `json:"rate_per_unit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	readingDate, err := parseDate(req.ReadingDate)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	bill, err := h.service.IssueUtility(r.Context(), billing.UtilityBillInput{
		BusinessID:      req.BusinessID,
		MeterID:         req.MeterID,
		ReadingDate:     readingDate,
		PreviousReading: req.PreviousReading,
		CurrentReading:  req.CurrentReading,
		RatePerUnit:     req.RatePerUnit,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
	h.logAudit(r, bill, "bill.issue", map[string]any{"kind": bill.Kind, "amount": bill.Amount.String()})
}

func (h *Handler) handleIssueRent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID  string              `json:"business_id"`
		RentMonth   string              `json:"rent_month"`
		MonthlyRent decimal.Decimal     `json:"monthly_rent"`
		Amount      decimal.NullDecimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	month, err := parseDate(req.RentMonth)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	bill, err := h.service.IssueRent(r.Context(), billing.RentBillInput{
		BusinessID:  req.BusinessID,
		RentMonth:   month,
		MonthlyRent: req.MonthlyRent,
		Override:    req.Amount,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
	h.logAudit(r, bill, "bill.issue", map[string]any{"kind": bill.Kind, "amount": bill.Amount.String()})
}

func (h *Handler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		bill, err := h.service.Get(r.Context(), id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bill)
		return
	}
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch parts[1] {
	case "status":
		if r.Method == http.MethodPost {
			h.handleStatus(w, r, id)
			return
		}
	case "settlement":
		if r.Method == http.MethodGet {
			h.handleSettlement(w, r, id)
			return
		}
	case "history":
		if r.Method == http.MethodGet {
			h.handleHistory(w, r, id)
			return
		}
	case "invoice":
		if r.Method == http.MethodGet {
			h.handleInvoice(w, r, id, invoiceapp.FormatJSON)
			return
		}
	case "invoice.pdf":
		if r.Method == http.MethodGet {
			h.handleInvoice(w, r, id, invoiceapp.FormatPDF)
			return
		}
	case "invoice.xlsx":
		if r.Method == http.MethodGet {
			h.handleInvoice(w, r, id, invoiceapp.FormatXLSX)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	bill, err := h.service.UpdateStatus(r.Context(), id, billing.PaymentStatus(req.Status))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
	h.logAudit(r, bill, "bill.status", map[string]any{"status": bill.Status})
}

func (h *Handler) handleSettlement(w http.ResponseWriter, r *http.Request, id string) {
	stmt, err := h.service.Statement(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, id string) {
	bill, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	history, err := h.service.History(r.Context(), bill)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if history == nil {
		history = billing.History{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handleInvoice(w http.ResponseWriter, r *http.Request, id, format string) {
	if h.invoices == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	out, err := h.invoices.Render(r.Context(), id, format)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if format == invoiceapp.FormatJSON {
		writeJSON(w, http.StatusOK, out.Document)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
	if h.auditLogger != nil {
		_ = h.auditLogger.Log(r.Context(), audit.Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "invoice.export",
			ResourceType: "bill",
			ResourceID:   id,
			Metadata:     audit.Metadata(map[string]any{"format": format, "document_id": out.Document.ID}),
			IP:           audit.ClientIP(r),
			UserAgent:    r.UserAgent(),
		})
	}
}

func (h *Handler) logAudit(r *http.Request, bill *billing.BillRecord, action string, meta map[string]any) {
	if h.auditLogger == nil || bill == nil {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "bill",
		ResourceID:   bill.ID,
		BusinessID:   bill.BusinessID,
		Metadata:     audit.Metadata(meta),
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
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
	case errors.Is(err, billing.ErrInvalidInput), errors.Is(err, billing.ErrInvalidConfiguration), errors.Is(err, invoiceapp.ErrUnknownFormat):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, billing.ErrBillNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, billing.ErrStatusTransition), errors.Is(err, billing.ErrDuplicateBill):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
