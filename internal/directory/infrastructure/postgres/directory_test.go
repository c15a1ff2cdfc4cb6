package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "plaza-billing/internal/billing/domain"
	"plaza-billing/internal/directory"
)

func TestDirectoryResolvesKnownBusiness(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	dir := NewDirectory(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM businesses")).WithArgs("biz-1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Blue Tea"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT unit_code FROM businesses")).WithArgs("biz-1").
		WillReturnRows(sqlmock.NewRows([]string{"unit_code"}).AddRow("S-12"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category FROM businesses")).WithArgs("biz-1").
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("Food"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT floor_number FROM businesses")).WithArgs("biz-1").
		WillReturnRows(sqlmock.NewRows([]string{"floor_number"}).AddRow(int64(2)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT label FROM floors")).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"label"}).AddRow("Second Floor"))

	profile, err := directory.Lookup(context.Background(), dir, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, directory.Profile{Name: "Blue Tea", UnitCode: "S-12", FloorLabel: "Second Floor", Category: "Food"}, profile)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryUnknownBusinessIsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	dir := NewDirectory(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM businesses")).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	name, err := dir.BusinessName(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, name)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT floor_number FROM businesses")).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"floor_number"}))
	_, ok, err := dir.BusinessFloor(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectoryWrapsDatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	dir := NewDirectory(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM business_info")).WillReturnError(errors.New("timeout"))
	_, err = dir.BusinessInfo(context.Background())
	require.ErrorIs(t, err, billing.ErrPersistence)
}
