package services

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SigNoz/storefront-go-app/internal/events"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	lockOrderForPayment = regexp.QuoteMeta("SELECT user_id, order_number, status, total, payment_method FROM orders WHERE id = ? FOR UPDATE")
	mirrorOrderPayment  = regexp.QuoteMeta("UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ?")
)

var paymentOrderColumns = []string{"user_id", "order_number", "status", "total", "payment_method"}

func paymentOrderRow(method string) *sqlmock.Rows {
	return sqlmock.NewRows(paymentOrderColumns).
		AddRow(int64(7), "ORD-20261015-000001", "delivered", "30.00", method)
}

func TestProcessPayment_PrepaidCompletes(t *testing.T) {
	env := newTestEnv(t)
	txID := "ch_123"
	resp := json.RawMessage(`{"approved":true}`)

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(lockOrderForPayment).WithArgs(int64(42)).WillReturnRows(paymentOrderRow("card"))
	env.mock.ExpectExec(insertPayment).
		WithArgs(int64(42), models.PaymentMethodCard, txID, dec("30.00"), models.PaymentStatusCompleted, `{"approved":true}`, fixedNow).
		WillReturnResult(sqlmock.NewResult(9, 1))
	env.mock.ExpectExec(mirrorOrderPayment).
		WithArgs(models.PaymentStatusCompleted, fixedNow, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectCommit()

	payment, err := env.payments.ProcessPayment(context.Background(), 42, models.PaymentData{
		TransactionID: &txID,
		Response:      resp,
	})
	require.NoError(t, err)
	env.verify(t)

	assert.Equal(t, int64(9), payment.ID)
	assert.Equal(t, models.PaymentMethodCard, payment.PaymentMethod)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.True(t, payment.Amount.Equal(dec("30.00")))

	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, events.PaymentRecorded, env.publisher.events[0].Type)
	assert.Equal(t, "ORD-20261015-000001", env.publisher.events[0].OrderNumber)
}

func TestProcessPayment_CashOnDeliveryStaysPending(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(lockOrderForPayment).WithArgs(int64(42)).WillReturnRows(paymentOrderRow("card"))
	env.mock.ExpectExec(insertPayment).
		WithArgs(int64(42), models.PaymentMethodCOD, nil, dec("30"), models.PaymentStatusPending, nil, fixedNow).
		WillReturnResult(sqlmock.NewResult(10, 1))
	env.mock.ExpectExec(mirrorOrderPayment).
		WithArgs(models.PaymentStatusPending, fixedNow, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectCommit()

	payment, err := env.payments.ProcessPayment(context.Background(), 42, models.PaymentData{PaymentMethod: models.PaymentMethodCOD})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	env.verify(t)
}

func TestProcessPayment_OrderNotFound(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(lockOrderForPayment).WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(paymentOrderColumns))
	env.mock.ExpectRollback()

	_, err := env.payments.ProcessPayment(context.Background(), 404, models.PaymentData{})

	assert.True(t, IsNotFound(err))
	assert.Empty(t, env.publisher.types())
	env.verify(t)
}

func TestProcessPayment_RefundedOrder(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(lockOrderForPayment).WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(paymentOrderColumns).AddRow(int64(7), "ORD-20261015-000001", "refunded", "30.00", "card"))
	env.mock.ExpectRollback()

	_, err := env.payments.ProcessPayment(context.Background(), 42, models.PaymentData{})

	assert.ErrorIs(t, err, ErrAlreadyRefunded)
	assert.Empty(t, env.publisher.types())
	env.verify(t)
}

func TestProcessPayment_InvalidMethod(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.payments.ProcessPayment(context.Background(), 42, models.PaymentData{PaymentMethod: "iou"})

	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
	env.verify(t)
}

func TestListPayments(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE order_id = ? ORDER BY id")).WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "payment_method", "transaction_id", "amount", "status", "response", "created_at"}).
			AddRow(int64(9), int64(42), "card", "ch_123", "30.00", "completed", []byte(`{"approved":true}`), fixedNow).
			AddRow(int64(11), int64(42), "card", nil, "-30.00", "refunded", nil, fixedNow))

	payments, err := env.payments.ListPayments(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, payments, 2)

	require.NotNil(t, payments[0].TransactionID)
	assert.Equal(t, "ch_123", *payments[0].TransactionID)
	assert.JSONEq(t, `{"approved":true}`, string(payments[0].Response))

	assert.Nil(t, payments[1].TransactionID)
	assert.Nil(t, payments[1].Response)
	assert.True(t, payments[1].Amount.IsNegative())
	env.verify(t)
}
