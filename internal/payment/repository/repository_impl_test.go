package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/acquiring/internal/dbtest"
	"github.com/smallbiznis/acquiring/internal/payment/domain"
	"github.com/smallbiznis/acquiring/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newPayment(t *testing.T, node *snowflake.Node, status domain.Status) *domain.Payment {
	t.Helper()
	details, err := domain.NewDetails(domain.SystemGatewayDirect, map[string]any{
		"amount":    int64(1000),
		"returnUrl": "https://x/return",
	})
	require.NoError(t, err)
	return &domain.Payment{
		ID:      node.Generate(),
		System:  domain.SystemGatewayDirect,
		Status:  status,
		Details: details,
	}
}

func TestCreateAndFindByID(t *testing.T) {
	ctx := context.Background()
	repo := repository.Provide(dbtest.Open(t))
	node, _ := snowflake.NewNode(1)

	payment := newPayment(t, node, domain.StatusNew)
	require.NoError(t, repo.Create(ctx, payment))

	found, err := repo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, found.Status)
	assert.Nil(t, found.BankOrderID)

	details, ok := found.Details.(*domain.GatewayDirectDetails)
	require.True(t, ok, "unexpected details type %T", found.Details)
	assert.Equal(t, payment.ID, details.PaymentID)
	assert.Equal(t, int64(1000), details.Amount)
}

func TestFindByIDNotFound(t *testing.T) {
	repo := repository.Provide(dbtest.Open(t))

	_, err := repo.FindByID(context.Background(), snowflake.ID(7))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := repository.Provide(db)
	node, _ := snowflake.NewNode(1)

	dbtest.Drop(t, db, "gateway_direct_payments")

	payment := newPayment(t, node, domain.StatusNew)
	require.Error(t, repo.Create(ctx, payment))

	var count int64
	require.NoError(t, db.Raw("SELECT COUNT(1) FROM acquiring_payments").Scan(&count).Error)
	assert.Zero(t, count, "payment row must roll back with its details")
}

func TestCreateRejectsMismatchedDetails(t *testing.T) {
	repo := repository.Provide(dbtest.Open(t))
	node, _ := snowflake.NewNode(1)

	payment := newPayment(t, node, domain.StatusNew)
	payment.System = domain.SystemApplePay

	assert.ErrorIs(t, repo.Create(context.Background(), payment), domain.ErrInvalidSystem)
}

func TestUpdateBankOrderIDIsSetOnce(t *testing.T) {
	ctx := context.Background()
	repo := repository.Provide(dbtest.Open(t))
	node, _ := snowflake.NewNode(1)

	payment := newPayment(t, node, domain.StatusNew)
	require.NoError(t, repo.Create(ctx, payment))

	ok, err := repo.Update(ctx, payment.ID, map[string]any{
		domain.ColumnBankOrderID: "abc",
		domain.ColumnStatus:      domain.StatusRegistered,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Update(ctx, payment.ID, map[string]any{domain.ColumnBankOrderID: "abc"})
	require.NoError(t, err)
	assert.True(t, ok, "writing the same order id again is allowed")

	ok, err = repo.Update(ctx, payment.ID, map[string]any{domain.ColumnBankOrderID: "other"})
	require.NoError(t, err)
	assert.False(t, ok, "a different order id must not overwrite the first one")

	found, err := repo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	require.NotNil(t, found.BankOrderID)
	assert.Equal(t, "abc", *found.BankOrderID)
	assert.Equal(t, domain.StatusRegistered, found.Status)
}

func TestUpdateDuplicateBankOrderID(t *testing.T) {
	ctx := context.Background()
	repo := repository.Provide(dbtest.Open(t))
	node, _ := snowflake.NewNode(1)

	first := newPayment(t, node, domain.StatusNew)
	second := newPayment(t, node, domain.StatusNew)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	_, err := repo.Update(ctx, first.ID, map[string]any{domain.ColumnBankOrderID: "shared"})
	require.NoError(t, err)

	ok, err := repo.Update(ctx, second.ID, map[string]any{domain.ColumnBankOrderID: "shared"})
	assert.ErrorIs(t, err, domain.ErrDuplicateOrderID)
	assert.False(t, ok)
}

func TestUpdateUnknownRowReportsFalse(t *testing.T) {
	repo := repository.Provide(dbtest.Open(t))

	ok, err := repo.Update(context.Background(), snowflake.ID(42), map[string]any{
		domain.ColumnStatus: domain.StatusError,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateRejectsUnknownColumn(t *testing.T) {
	repo := repository.Provide(dbtest.Open(t))

	_, err := repo.Update(context.Background(), snowflake.ID(1), map[string]any{"system": "APPLE_PAY"})
	assert.Error(t, err)
}

func TestUpdateDetails(t *testing.T) {
	ctx := context.Background()
	repo := repository.Provide(dbtest.Open(t))
	node, _ := snowflake.NewNode(1)

	payment := newPayment(t, node, domain.StatusNew)
	require.NoError(t, repo.Create(ctx, payment))

	ok, err := repo.UpdateDetails(ctx, payment.ID, domain.SystemGatewayDirect, map[string]any{
		domain.ColumnBankFormURL: "https://pay/abc",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	details := found.Details.(*domain.GatewayDirectDetails)
	require.NotNil(t, details.BankFormURL)
	assert.Equal(t, "https://pay/abc", *details.BankFormURL)

	_, err = repo.UpdateDetails(ctx, payment.ID, domain.SystemGatewayDirect, map[string]any{"payment_id": 1})
	assert.Error(t, err)
}

func TestFindByStatusesPagesAndRestarts(t *testing.T) {
	ctx := context.Background()
	repo := repository.Provide(dbtest.Open(t))
	node, _ := snowflake.NewNode(1)

	var want []snowflake.ID
	for i := 0; i < 5; i++ {
		payment := newPayment(t, node, domain.StatusRegistered)
		require.NoError(t, repo.Create(ctx, payment))
		want = append(want, payment.ID)
	}
	require.NoError(t, repo.Create(ctx, newPayment(t, node, domain.StatusDeposited)))

	collect := func() []snowflake.ID {
		var got []snowflake.ID
		for payment, err := range repo.FindByStatuses(ctx, []domain.Status{domain.StatusRegistered, domain.StatusHeld}, 2) {
			require.NoError(t, err)
			require.NotNil(t, payment.Details)
			got = append(got, payment.ID)
		}
		return got
	}

	assert.Equal(t, want, collect())
	assert.Equal(t, want, collect(), "a second scan starts from the beginning")
}

func TestFindByStatusesStopsEarly(t *testing.T) {
	ctx := context.Background()
	repo := repository.Provide(dbtest.Open(t))
	node, _ := snowflake.NewNode(1)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newPayment(t, node, domain.StatusNew)))
	}

	seen := 0
	for range repo.FindByStatuses(ctx, domain.ReconcilableStatuses, 10) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestUpdateSurfacesIOFaults(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE "acquiring_payments" SET`).
		WillReturnError(errors.New("connection reset by peer"))

	repo := repository.Provide(db)
	ok, err := repo.Update(context.Background(), snowflake.ID(3), map[string]any{
		domain.ColumnStatus: domain.StatusError,
	})
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
