// internal/ledger/domain.go
package ledger

import (
	"errors"
	"strings"
	"time"

	"libradesk/internal/records"
)

const (
	TypeFine    = "fine"
	TypeFee     = "fee"
	TypePayment = "payment"
	TypeDeposit = "deposit"

	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Transaction is one money movement on a user's account.
type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (t Transaction) RecordID() string { return t.ID }

// Charge reports whether the transaction adds to what the user owes.
func (t Transaction) Charge() bool { return t.Type == TypeFine || t.Type == TypeFee }

func (t Transaction) WithPatch(p records.Patch) (Transaction, error) {
	var err error
	for field, v := range p {
		switch field {
		case "userId":
			t.UserID, err = records.AsString(field, v)
		case "type":
			t.Type, err = records.AsString(field, v)
		case "amount":
			t.Amount, err = records.AsFloat(field, v)
		case "status":
			t.Status, err = records.AsString(field, v)
		case "description":
			t.Description, err = records.AsString(field, v)
		case "createdAt":
			t.CreatedAt, err = records.AsTime(field, v)
		default:
			err = records.Unknown(field)
		}
		if err != nil {
			return Transaction{}, err
		}
	}
	return t, nil
}

func (t Transaction) Validate() error {
	fe := records.FieldErrors{}
	if strings.TrimSpace(t.UserID) == "" {
		fe["userId"] = "is required"
	}
	switch t.Type {
	case TypeFine, TypeFee, TypePayment, TypeDeposit:
	default:
		fe["type"] = "must be fine, fee, payment or deposit"
	}
	if t.Amount <= 0 {
		fe["amount"] = "must be positive"
	}
	switch t.Status {
	case StatusPending, StatusCompleted, StatusCancelled:
	default:
		fe["status"] = "must be pending, completed or cancelled"
	}
	return fe.OrNil()
}

// NewTransaction builds a ledger entry from create fields. Entries start
// pending.
func NewTransaction(id string, fields records.Patch) (Transaction, error) {
	t, err := Transaction{ID: id, Status: StatusPending}.WithPatch(fields)
	if err != nil {
		return Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}
