// internal/ledger/ledger_test.go
package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libradesk/internal/pipeline"
	"libradesk/internal/records"
	"libradesk/internal/testutil"
)

func TestBalance(t *testing.T) {
	entries := []Transaction{
		{UserID: "u1", Type: TypeFine, Amount: 5000, Status: StatusCompleted},
		{UserID: "u1", Type: TypeFee, Amount: 2000, Status: StatusCompleted},
		{UserID: "u1", Type: TypePayment, Amount: 3000, Status: StatusCompleted},
		{UserID: "u1", Type: TypeFine, Amount: 9999, Status: StatusPending},
		{UserID: "u1", Type: TypeDeposit, Amount: 1000, Status: StatusCancelled},
		{UserID: "u2", Type: TypeFine, Amount: 700, Status: StatusCompleted},
	}

	assert.InDelta(t, 4000, Balance(entries, "u1"), 1e-9)
	assert.InDelta(t, 700, Balance(entries, "u2"), 1e-9)
	assert.Zero(t, Balance(entries, "u3"))
}

func TestNewTransactionValidates(t *testing.T) {
	_, err := NewTransaction("f1", records.Patch{"userId": "u1", "type": "refund", "amount": 10})
	var fe records.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "type")

	_, err = NewTransaction("f1", records.Patch{"userId": "u1", "type": TypeFine, "amount": -1})
	assert.ErrorIs(t, err, records.ErrInvalidValue)

	tx, err := NewTransaction("f1", records.Patch{"userId": "u1", "type": TypeFine, "amount": "12.5"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tx.Status)
	assert.InDelta(t, 12.5, tx.Amount, 1e-9)
}

func TestServiceSettlement(t *testing.T) {
	src := testutil.NewSource("fin", NewTransaction)
	entries := pipeline.New(Schema, src)
	require.NoError(t, entries.Load(context.Background()))
	svc := NewService(entries)
	ctx := context.Background()

	fine, err := svc.Record(ctx, records.Patch{"userId": "u1", "type": TypeFine, "amount": 5000, "status": StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, fine.Status, "new entries always start pending")
	assert.Zero(t, svc.Balance("u1"))

	_, err = svc.Complete(ctx, fine.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5000, svc.Balance("u1"), 1e-9)

	_, err = svc.Cancel(ctx, fine.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	pay, err := svc.Record(ctx, records.Patch{"userId": "u1", "type": TypePayment, "amount": 5000})
	require.NoError(t, err)
	_, err = svc.Complete(ctx, pay.ID)
	require.NoError(t, err)
	assert.Zero(t, svc.Balance("u1"))
}
