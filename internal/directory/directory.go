package directory

import (
	"context"
	"fmt"
	"strings"

	billing "plaza-billing/internal/billing/domain"
)

// Resolver looks up display metadata of businesses. Unknown ids yield "" without error.
type Resolver interface {
	BusinessName(ctx context.Context, businessID string) (string, error)
	UnitCode(ctx context.Context, businessID string) (string, error)
	BusinessCategory(ctx context.Context, businessID string) (string, error)
	BusinessFloor(ctx context.Context, businessID string) (int, bool, error)
	FloorLabel(ctx context.Context, floor int) (string, error)
}

// BusinessInfo carries optional branding and contact fields of the plaza.
type BusinessInfo struct {
	DisplayName  string `json:"display_name,omitempty"`
	LogoRef      string `json:"logo_ref,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// ContactText joins the contact fields, or returns "" when none are set.
func (b BusinessInfo) ContactText() string {
	var parts []string
	if b.ContactPhone != "" {
		parts = append(parts, "Phone: "+b.ContactPhone)
	}
	if b.ContactEmail != "" {
		parts = append(parts, "Email: "+b.ContactEmail)
	}
	return strings.Join(parts, " | ")
}

// BusinessInfoSource returns the plaza's branding; an empty value is valid.
type BusinessInfoSource interface {
	BusinessInfo(ctx context.Context) (BusinessInfo, error)
}

// Profile is the resolved identity of a business as printed on invoices.
type Profile struct {
	Name       string
	UnitCode   string
	FloorLabel string
	Category   string
}

// Lookup resolves a business profile. Missing fields are left empty and reported as an
// ErrResolutionGap error next to the partial profile; other errors come from the resolver.
func Lookup(ctx context.Context, r Resolver, businessID string) (Profile, error) {
	var p Profile
	if r == nil || businessID == "" {
		return p, fmt.Errorf("%w: business %q", billing.ErrResolutionGap, businessID)
	}
	var err error
	if p.Name, err = r.BusinessName(ctx, businessID); err != nil {
		return p, err
	}
	if p.UnitCode, err = r.UnitCode(ctx, businessID); err != nil {
		return p, err
	}
	if p.Category, err = r.BusinessCategory(ctx, businessID); err != nil {
		return p, err
	}
	floor, ok, err := r.BusinessFloor(ctx, businessID)
	if err != nil {
		return p, err
	}
	if ok {
		if p.FloorLabel, err = r.FloorLabel(ctx, floor); err != nil {
			return p, err
		}
	}

	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if p.UnitCode == "" {
		missing = append(missing, "unit code")
	}
	if p.FloorLabel == "" {
		missing = append(missing, "floor")
	}
	if p.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return p, fmt.Errorf("%w: business %s missing %s", billing.ErrResolutionGap, businessID, strings.Join(missing, ", "))
	}
	return p, nil
}
