package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/acquiring/internal/audit/domain"
	auditrepo "github.com/smallbiznis/acquiring/internal/audit/repository"
	auditservice "github.com/smallbiznis/acquiring/internal/audit/service"
	"github.com/smallbiznis/acquiring/internal/clock"
	"github.com/smallbiznis/acquiring/internal/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (auditdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	svc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
		Clock: clk,
	})
	return svc, db, clk
}

func TestBeginStoresMaskedPendingEntry(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	actor := " user-1 "

	entry, err := svc.Begin(ctx, snowflake.ID(10), &actor, auditdomain.OperationRegister, map[string]any{
		"amount":   1000,
		"password": "secret-password",
	})
	require.NoError(t, err)

	stored, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.Pending())
	require.NotNil(t, stored.ActorID)
	assert.Equal(t, "user-1", *stored.ActorID)

	var request map[string]any
	require.NoError(t, json.Unmarshal(stored.Request, &request))
	assert.EqualValues(t, 1000, request["amount"])
	assert.Equal(t, "****word", request["password"])
}

func TestBeginValidatesInput(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Begin(context.Background(), 0, nil, auditdomain.OperationRegister, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPayment)

	_, err = svc.Begin(context.Background(), snowflake.ID(1), nil, auditdomain.OperationType("CHARGE"), nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOperationType)
}

func TestCompleteWritesResponseOnce(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	entry, err := svc.Begin(ctx, snowflake.ID(10), nil, auditdomain.OperationReverse, map[string]any{"orderId": "abc"})
	require.NoError(t, err)

	require.NoError(t, svc.Complete(ctx, entry.ID, []byte(`{"errorCode":"6","errorMessage":"Unknown order"}`)))
	assert.ErrorIs(t, svc.Complete(ctx, entry.ID, []byte(`{"errorCode":"0"}`)), auditdomain.ErrAlreadyRecorded)
	assert.ErrorIs(t, svc.Fail(ctx, entry.ID, "timeout"), auditdomain.ErrAlreadyRecorded)

	stored, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"errorCode":"6","errorMessage":"Unknown order"}`, string(stored.Response))
}

func TestCompleteWrapsNonJSONBodies(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	entry, err := svc.Begin(ctx, snowflake.ID(10), nil, auditdomain.OperationGetExtendedStatus, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Complete(ctx, entry.ID, []byte("<html>502</html>")))

	stored, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"raw":"<html>502</html>"}`, string(stored.Response))
}

func TestFailKeepsResponseEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	entry, err := svc.Begin(ctx, snowflake.ID(10), nil, auditdomain.OperationDeposit, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Fail(ctx, entry.ID, "dial tcp: i/o timeout"))

	stored, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasResponse())
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "dial tcp: i/o timeout", *stored.ErrorMessage)
	assert.False(t, stored.Pending())
}

func TestFailTruncatesOnRuneBoundary(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	entry, err := svc.Begin(ctx, snowflake.ID(11), nil, auditdomain.OperationDeposit, nil)
	require.NoError(t, err)
	reason := strings.Repeat("a", 1023) + "ошибка"
	require.NoError(t, svc.Fail(ctx, entry.ID, reason))

	stored, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ErrorMessage)
	assert.True(t, utf8.ValidString(*stored.ErrorMessage))
	assert.Equal(t, strings.Repeat("a", 1023), *stored.ErrorMessage)
}

func TestWithTxRollsBackEntry(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newService(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.WithTx(tx).Begin(ctx, snowflake.ID(12), nil, auditdomain.OperationRegister, nil)
		require.NoError(t, err)
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Table("acquiring_payment_operations").Count(&count).Error)
	assert.Zero(t, count)
}

func TestCompleteUnknownEntry(t *testing.T) {
	svc, _, _ := newService(t)
	assert.ErrorIs(t, svc.Complete(context.Background(), snowflake.ID(99), []byte(`{}`)), auditdomain.ErrEntryNotFound)
}

func TestListByPaymentPaginates(t *testing.T) {
	ctx := context.Background()
	svc, _, clk := newService(t)
	paymentID := snowflake.ID(10)

	var ids []snowflake.ID
	for i := 0; i < 3; i++ {
		entry, err := svc.Begin(ctx, paymentID, nil, auditdomain.OperationGetExtendedStatus, nil)
		require.NoError(t, err)
		ids = append(ids, entry.ID)
		clk.Advance(time.Second)
	}
	_, err := svc.Begin(ctx, snowflake.ID(11), nil, auditdomain.OperationRegister, nil)
	require.NoError(t, err)

	req := auditdomain.ListOperationsRequest{PaymentID: paymentID}
	req.PageSize = 2
	first, err := svc.ListByPayment(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.Operations, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, ids[2], first.Operations[0].ID)
	assert.Equal(t, ids[1], first.Operations[1].ID)

	req.PageToken = first.NextPageToken
	second, err := svc.ListByPayment(ctx, req)
	require.NoError(t, err)
	require.Len(t, second.Operations, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, ids[0], second.Operations[0].ID)

	req.PageToken = "not-a-token"
	_, err = svc.ListByPayment(ctx, req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
