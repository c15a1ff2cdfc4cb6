package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	billapp "plaza-billing/internal/billing/application"
	billing "plaza-billing/internal/billing/domain"
	"plaza-billing/internal/directory"
	invoice "plaza-billing/internal/invoice/domain"
	"plaza-billing/internal/invoice/render"
	"plaza-billing/internal/observability/metrics"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// ErrUnknownFormat is returned for an unsupported export format.
var ErrUnknownFormat = errors.New("invoice: unknown export format")

// ExportRecorder keeps a trail of rendered invoices.
type ExportRecorder interface {
	RecordExport(ctx context.Context, billID, documentID, format, status string) error
}

// Rendered is an exported invoice file.
type Rendered struct {
	Document    *invoice.Document
	Filename    string
	ContentType string
	Body        []byte
}

// Service composes and renders invoices for stored bills.
type Service struct {
	bills    *billapp.Service
	resolver directory.Resolver
	info     directory.BusinessInfoSource
	exports  ExportRecorder
	logger   *zap.Logger
}

// NewService constructs a Service. resolver, info and exports may be nil.
func NewService(bills *billapp.Service, resolver directory.Resolver, info directory.BusinessInfoSource, exports ExportRecorder, logger *zap.Logger) (*Service, error) {
	if bills == nil {
		return nil, errors.New("invoice service: nil bill service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{bills: bills, resolver: resolver, info: info, exports: exports, logger: logger.Named("invoice")}, nil
}

// Compose builds the invoice document of a bill evaluated now. Metadata lookups that
// fail or come back empty are logged and printed as placeholders.
func (s *Service) Compose(ctx context.Context, billID string) (*invoice.Document, error) {
	stmt, err := s.bills.Statement(ctx, billID)
	if err != nil {
		return nil, err
	}
	policy := s.bills.Policy()

	var identity invoice.Identity
	if stmt.Bill.BusinessID != "" {
		profile, err := directory.Lookup(ctx, s.resolver, stmt.Bill.BusinessID)
		if err != nil {
			s.logGap(billID, err)
		}
		identity = invoice.Identity{
			Name:       profile.Name,
			UnitCode:   profile.UnitCode,
			FloorLabel: profile.FloorLabel,
			Category:   profile.Category,
		}
	}

	branding := invoice.Branding{ContactText: policy.ContactText}
	if s.info != nil {
		info, err := s.info.BusinessInfo(ctx)
		if err != nil {
			s.logGap(billID, fmt.Errorf("%w: business info: %w", billing.ErrResolutionGap, err))
		}
		branding.DisplayName = info.DisplayName
		branding.LogoRef = info.LogoRef
		if contact := info.ContactText(); contact != "" {
			branding.ContactText = contact
		}
	}

	return invoice.Compose(invoice.Input{
		Bill:       stmt.Bill,
		Settlement: stmt.Settlement,
		History:    stmt.History,
		Identity:   identity,
		Branding:   branding,
		Footer:     policy.FooterFor(stmt.Bill.Kind),
		Currency:   policy.Currency,
		Now:        stmt.EvaluatedAt,
	})
}

func (s *Service) logGap(billID string, err error) {
	level := s.logger.Warn
	if !errors.Is(err, billing.ErrResolutionGap) {
		level = s.logger.Error
	}
	level("invoice metadata unresolved", zap.String("bill_id", billID), zap.Error(err))
}

// Render composes the invoice and renders it in the requested format.
func (s *Service) Render(ctx context.Context, billID, format string) (*Rendered, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	label := format
	if label != FormatJSON && label != FormatPDF && label != FormatXLSX {
		label = "unknown"
	}
	defer func() {
		metrics.ObserveInvoiceExport(label, result, time.Since(start))
	}()

	out, err := s.render(ctx, billID, format)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if s.exports != nil && format != FormatJSON {
		if err := s.exports.RecordExport(ctx, billID, out.Document.ID, format, "ok"); err != nil {
			s.logger.Warn("record invoice export failed", zap.String("bill_id", billID), zap.Error(err))
		}
	}
	return out, nil
}

func (s *Service) render(ctx context.Context, billID, format string) (*Rendered, error) {
	var (
		contentType string
		renderFn    func(*invoice.Document) ([]byte, error)
	)
	switch format {
	case FormatJSON:
		doc, err := s.Compose(ctx, billID)
		if err != nil {
			return nil, err
		}
		return &Rendered{Document: doc, Filename: doc.ID + ".json", ContentType: "application/json"}, nil
	case FormatPDF:
		contentType, renderFn = "application/pdf", render.PDF
	case FormatXLSX:
		contentType, renderFn = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", render.XLSX
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	doc, err := s.Compose(ctx, billID)
	if err != nil {
		return nil, err
	}
	body, err := renderFn(doc)
	if err != nil {
		return nil, err
	}
	return &Rendered{Document: doc, Filename: doc.ID + "." + format, ContentType: contentType, Body: body}, nil
}
