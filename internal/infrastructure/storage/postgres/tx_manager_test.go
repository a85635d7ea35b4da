package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provision/internal/core/apperror"
)

func serializationAbort() error {
	return fmt.Errorf("claim transfer: %w", &pgconn.PgError{
		Code:    "40001",
		Message: "could not serialize access due to concurrent update",
	})
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, isSerializationFailure(serializationAbort()))
	assert.True(t, isSerializationFailure(&pgconn.PgError{Code: "40P01"}))

	assert.False(t, isSerializationFailure(nil))
	assert.False(t, isSerializationFailure(errors.New("connection reset")))
	assert.False(t, isSerializationFailure(&pgconn.PgError{Code: "23505"}))
}

func TestRunWithSerializationRetry_ResolvesToBusinessError(t *testing.T) {
	// First attempt loses the race; the re-run sees the committed winner
	// and the status guard reports the claim as lost.
	calls := 0
	err := runWithSerializationRetry(context.Background(), serializationAttempts, func() error {
		calls++
		if calls == 1 {
			return serializationAbort()
		}
		return apperror.NewInvalidStatus("transfer", "COMPLETED", "PENDING_APPROVAL")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStatus))
}

func TestRunWithSerializationRetry_SuccessOnRetry(t *testing.T) {
	calls := 0
	err := runWithSerializationRetry(context.Background(), serializationAttempts, func() error {
		calls++
		if calls < 3 {
			return serializationAbort()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunWithSerializationRetry_ExhaustionMapsToConflict(t *testing.T) {
	calls := 0
	err := runWithSerializationRetry(context.Background(), serializationAttempts, func() error {
		calls++
		return serializationAbort()
	})

	require.Error(t, err)
	assert.Equal(t, serializationAttempts, calls)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))

	// the original abort stays in the chain for logging
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "40001", pgErr.Code)
}

func TestRunWithSerializationRetry_PassesOtherErrorsThrough(t *testing.T) {
	calls := 0
	boom := errors.New("disk on fire")
	err := runWithSerializationRetry(context.Background(), serializationAttempts, func() error {
		calls++
		return boom
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, boom)
}
