package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barrinalo/CATMAID/internal/domain"
)

type fakeTxRunner struct {
	beginErr error
	runs     int
}

func (r *fakeTxRunner) InTx(_ context.Context, fn func(tx sqlx.ExtContext) error) error {
	if r.beginErr != nil {
		return r.beginErr
	}
	r.runs++
	return fn(nil)
}

type appendCall struct {
	userID int64
	label  string
}

type fakeTxLog struct {
	appendErr error
	appends   []appendCall
}

func (l *fakeTxLog) Append(_ context.Context, _ sqlx.ExtContext, userID int64, label string) error {
	if l.appendErr != nil {
		return l.appendErr
	}
	l.appends = append(l.appends, appendCall{userID: userID, label: label})
	return nil
}

func TestWithLabelAppendsExactlyOnceOnSuccess(t *testing.T) {
	runner := &fakeTxRunner{}
	log := &fakeTxLog{}
	svc := NewAuditService(runner, log)

	err := svc.WithLabel(context.Background(), 7, "messages.create", func(context.Context, sqlx.ExtContext) error {
		return nil
	})

	require.NoError(t, err)
	require.Len(t, log.appends, 1)
	assert.Equal(t, appendCall{userID: 7, label: "messages.create"}, log.appends[0])
}

func TestWithLabelSkipsLabelWhenOperationFails(t *testing.T) {
	runner := &fakeTxRunner{}
	log := &fakeTxLog{}
	svc := NewAuditService(runner, log)

	opErr := errors.New("constraint violation")
	err := svc.WithLabel(context.Background(), 7, "messages.create", func(context.Context, sqlx.ExtContext) error {
		return opErr
	})

	require.ErrorIs(t, err, opErr)
	assert.Empty(t, log.appends, "failed work must not be labeled")
}

func TestWithLabelRunsOperationBeforeLabel(t *testing.T) {
	runner := &fakeTxRunner{}
	log := &fakeTxLog{}
	svc := NewAuditService(runner, log)

	err := svc.WithLabel(context.Background(), 7, "messages.create", func(context.Context, sqlx.ExtContext) error {
		assert.Empty(t, log.appends, "label must only be written after the operation")
		return nil
	})

	require.NoError(t, err)
	assert.Len(t, log.appends, 1)
}

func TestWithLabelPropagatesAppendFailure(t *testing.T) {
	appendErr := errors.New("insert failed")
	runner := &fakeTxRunner{}
	log := &fakeTxLog{appendErr: appendErr}
	svc := NewAuditService(runner, log)

	err := svc.WithLabel(context.Background(), 7, "messages.create", func(context.Context, sqlx.ExtContext) error {
		return nil
	})

	require.ErrorIs(t, err, appendErr)
}

func TestWithLabelForCallerUsesContextUser(t *testing.T) {
	runner := &fakeTxRunner{}
	log := &fakeTxLog{}
	svc := NewAuditService(runner, log)

	ctx := WithUserID(context.Background(), 42)
	err := svc.WithLabelForCaller(ctx, "messages.create", func(context.Context, sqlx.ExtContext) error {
		return nil
	})

	require.NoError(t, err)
	require.Len(t, log.appends, 1)
	assert.Equal(t, int64(42), log.appends[0].userID)
}

func TestWithLabelForCallerFailsBeforeRunningOperation(t *testing.T) {
	runner := &fakeTxRunner{}
	log := &fakeTxLog{}
	svc := NewAuditService(runner, log)

	ran := false
	err := svc.WithLabelForCaller(context.Background(), "messages.create", func(context.Context, sqlx.ExtContext) error {
		ran = true
		return nil
	})

	require.ErrorIs(t, err, domain.ErrNoUserContext)
	assert.False(t, ran, "operation must not run without an acting user")
	assert.Zero(t, runner.runs, "no transaction should be opened")
	assert.Empty(t, log.appends)
}
