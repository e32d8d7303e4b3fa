package services

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryLedger_Decrement(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectExec(decrementQuery).WithArgs(3, int64(1), 3).WillReturnResult(sqlmock.NewResult(0, 1))

	err := env.inventory.Decrement(context.Background(), env.db, 1, 3)
	require.NoError(t, err)
	env.verify(t)
}

func TestInventoryLedger_DecrementShortfall(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectExec(decrementQuery).WithArgs(3, int64(1), 3).WillReturnResult(sqlmock.NewResult(0, 0))
	env.mock.ExpectQuery(regexp.QuoteMeta("SELECT quantity FROM products WHERE id = ?")).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(2))

	err := env.inventory.Decrement(context.Background(), env.db, 1, 3)

	var shortage *InsufficientInventoryError
	require.True(t, errors.As(err, &shortage))
	assert.Equal(t, &InsufficientInventoryError{ProductID: 1, Requested: 3, Available: 2}, shortage)
	assert.Equal(t, "insufficient inventory for product 1: requested 3, available 2", err.Error())
	env.verify(t)
}

func TestInventoryLedger_DecrementUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectExec(decrementQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	env.mock.ExpectQuery(regexp.QuoteMeta("SELECT quantity FROM products WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}))

	err := env.inventory.Decrement(context.Background(), env.db, 99, 1)

	assert.True(t, IsNotFound(err))
	env.verify(t)
}

func TestInventoryLedger_Increment(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectExec(incrementQuery).WithArgs(2, int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectExec(incrementQuery).WithArgs(2, int64(99)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, env.inventory.Increment(context.Background(), env.db, 1, 2))

	err := env.inventory.Increment(context.Background(), env.db, 99, 2)
	assert.True(t, IsNotFound(err))
	env.verify(t)
}
