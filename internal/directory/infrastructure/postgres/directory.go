package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	billing "plaza-billing/internal/billing/domain"
	"plaza-billing/internal/directory"
)

// Directory resolves business metadata from the businesses, floors and
// business_info tables. Unknown ids resolve to empty values.
type Directory struct {
	db *sql.DB
}

// NewDirectory constructs a directory.
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) lookupString(ctx context.Context, query string, arg any) (string, error) {
	if d == nil || d.db == nil {
		return "", errors.New("directory: nil db")
	}
	var value sql.NullString
	err := d.db.QueryRowContext(ctx, query, arg).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: directory lookup: %w", billing.ErrPersistence, err)
	}
	return value.String, nil
}

func (d *Directory) BusinessName(ctx context.Context, id string) (string, error) {
	return d.lookupString(ctx, `SELECT name FROM businesses WHERE id = $1`, id)
}

func (d *Directory) UnitCode(ctx context.Context, id string) (string, error) {
	return d.lookupString(ctx, `SELECT unit_code FROM businesses WHERE id = $1`, id)
}

func (d *Directory) BusinessCategory(ctx context.Context, id string) (string, error) {
	return d.lookupString(ctx, `SELECT category FROM businesses WHERE id = $1`, id)
}

func (d *Directory) FloorLabel(ctx context.Context, floor int) (string, error) {
	return d.lookupString(ctx, `SELECT label FROM floors WHERE floor_number = $1`, floor)
}

func (d *Directory) BusinessFloor(ctx context.Context, id string) (int, bool, error) {
	if d == nil || d.db == nil {
		return 0, false, errors.New("directory: nil db")
	}
	var floor sql.NullInt64
	err := d.db.QueryRowContext(ctx, `SELECT floor_number FROM businesses WHERE id = $1`, id).Scan(&floor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: directory lookup: %w", billing.ErrPersistence, err)
	}
	return int(floor.Int64), floor.Valid, nil
}

// BusinessInfo returns the plaza branding row, or an empty value when none exists.
func (d *Directory) BusinessInfo(ctx context.Context) (directory.BusinessInfo, error) {
	if d == nil || d.db == nil {
		return directory.BusinessInfo{}, errors.New("directory: nil db")
	}
	var info directory.BusinessInfo
	err := d.db.QueryRowContext(ctx, `
SELECT display_name, logo_ref, contact_email, contact_phone
FROM business_info
WHERE id = 1`).Scan(&info.DisplayName, &info.LogoRef, &info.ContactEmail, &info.ContactPhone)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.BusinessInfo{}, nil
	}
	if err != nil {
		return directory.BusinessInfo{}, fmt.Errorf("%w: business info: %w", billing.ErrPersistence, err)
	}
	return info, nil
}
