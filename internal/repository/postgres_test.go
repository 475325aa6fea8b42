package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/leadflow/internal/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
	}{
		{name: "nil", err: nil, kind: ""},
		{name: "domain error kept", err: apperr.AlreadyConverted(3), kind: apperr.KindAlreadyConverted},
		{name: "deadline", err: context.DeadlineExceeded, kind: apperr.KindStorageUnavailable},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), kind: apperr.KindStorageUnavailable},
		{name: "connection failure", err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, kind: apperr.KindStorageUnavailable},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, kind: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNotFound(t *testing.T) {
	err := notFound(fmt.Errorf("scan: %w", pgx.ErrNoRows), "lead", 7)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "lead 7 not found", apperr.Message(err))

	other := errors.New("boom")
	assert.Equal(t, other, notFound(other, "lead", 7))
}

func TestWithRetry(t *testing.T) {
	r := &PostgresRepository{delays: []time.Duration{time.Millisecond, time.Millisecond}}
	ctx := context.Background()

	calls := 0
	err := r.withRetry(ctx, func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = r.withRetry(ctx, func() error {
		calls++
		return apperr.Validation("bad input")
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 1, calls, "domain errors are not retried")

	calls = 0
	err = r.withRetry(ctx, func() error {
		calls++
		return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestOrEmpty(t *testing.T) {
	var s []int
	assert.NotNil(t, orEmpty(s))
	assert.Len(t, orEmpty([]int{1}), 1)
}
