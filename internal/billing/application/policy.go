package application

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	billing "plaza-billing/internal/billing/domain"
)

// Policy holds the configurable billing rules.
type Policy struct {
	GraceDays     int               `yaml:"grace_days"`
	Currency      string            `yaml:"currency"`
	HistoryLimit  int               `yaml:"history_limit"`
	LateSurcharge map[string]string `yaml:"late_surcharge"`
	// Footer overrides the invoice charge categories per kind.
	Footer map[string][]string `yaml:"footer"`
	// ContactText is printed when the plaza has no contact details on file.
	ContactText string `yaml:"contact_text"`

	surcharges map[billing.Kind]decimal.Decimal
}

// DefaultPolicy returns the built-in rules.
func DefaultPolicy() Policy {
	return Policy{
		GraceDays:    billing.DefaultGraceDays,
		Currency:     "Rs",
		HistoryLimit: billing.HistoryLimit,
	}
}

// LoadPolicy reads BILLING_CONFIG (yaml) when set and applies env overrides.
func LoadPolicy() (Policy, error) {
	p := DefaultPolicy()
	if path := os.Getenv("BILLING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return p, err
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("billing policy: %w", err)
		}
	}
	p.GraceDays = getenvIntDefault("BILLING_GRACE_DAYS", p.GraceDays)
	p.Currency = getenvDefault("BILLING_CURRENCY", p.Currency)
	if p.LateSurcharge == nil {
		p.LateSurcharge = map[string]string{}
	}
	for _, kind := range []billing.Kind{billing.KindRent, billing.KindUtility, billing.KindExpense} {
		key := "BILLING_LATE_SURCHARGE_" + strings.ToUpper(string(kind))
		if value := os.Getenv(key); value != "" {
			p.LateSurcharge[string(kind)] = value
		}
	}
	return p, p.Validate()
}

// Validate checks the policy and caches parsed surcharges.
func (p *Policy) Validate() error {
	if p.GraceDays < 1 {
		return errors.New("billing policy: grace days must be at least 1")
	}
	if p.HistoryLimit <= 0 || p.HistoryLimit > billing.HistoryLimit {
		p.HistoryLimit = billing.HistoryLimit
	}
	if p.Currency == "" {
		return errors.New("billing policy: currency label required")
	}
	for key := range p.Footer {
		if _, ok := billing.ParseKind(key); !ok {
			return fmt.Errorf("billing policy: unknown kind %q in footer", key)
		}
	}
	p.surcharges = make(map[billing.Kind]decimal.Decimal, len(p.LateSurcharge))
	for key, raw := range p.LateSurcharge {
		kind, ok := billing.ParseKind(key)
		if !ok {
			return fmt.Errorf("billing policy: unknown kind %q in late_surcharge", key)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("billing policy: late surcharge for %s: %w", key, err)
		}
		if amount.IsNegative() {
			return fmt.Errorf("billing policy: negative late surcharge for %s", key)
		}
		p.surcharges[kind] = amount
	}
	return nil
}

// SurchargeFor returns the late surcharge for a bill kind; zero when unset.
func (p Policy) SurchargeFor(kind billing.Kind) decimal.Decimal {
	if amount, ok := p.surcharges[kind]; ok {
		return amount
	}
	return decimal.Zero
}

// FooterFor returns the configured charge categories of a kind, or nil for the defaults.
func (p Policy) FooterFor(kind billing.Kind) []string {
	return p.Footer[string(kind)]
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
