// internal/membership/domain.go
package membership

import (
	"errors"
	"net/mail"
	"strings"

	"libradesk/internal/records"
)

const (
	StatusActive  = "active"
	StatusBlocked = "blocked"

	RoleMember    = "member"
	RoleLibrarian = "librarian"
	RoleAdmin     = "admin"
)

var ErrInvalidStatus = errors.New("invalid user status")

// User represents a library user and their borrowing counters.
type User struct {
	ID              string `json:"id"`
	UserID          string `json:"userId"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	Status          string `json:"status"`
	TotalBorrowed   int    `json:"totalBorrowed"`
	CurrentBorrowed int    `json:"currentBorrowed"`
}

func (u User) RecordID() string { return u.ID }

// Active reports whether the user may borrow.
func (u User) Active() bool { return u.Status == StatusActive }

func (u User) WithPatch(p records.Patch) (User, error) {
	var err error
	for field, v := range p {
		switch field {
		case "userId":
			u.UserID, err = records.AsString(field, v)
		case "name":
			u.Name, err = records.AsString(field, v)
		case "email":
			u.Email, err = records.AsString(field, v)
		case "role":
			u.Role, err = records.AsString(field, v)
		case "status":
			u.Status, err = records.AsString(field, v)
		case "totalBorrowed":
			u.TotalBorrowed, err = records.AsInt(field, v)
		case "currentBorrowed":
			u.CurrentBorrowed, err = records.AsInt(field, v)
		default:
			err = records.Unknown(field)
		}
		if err != nil {
			return User{}, err
		}
	}
	return u, nil
}

func (u User) Validate() error {
	fe := records.FieldErrors{}
	if strings.TrimSpace(u.Name) == "" {
		fe["name"] = "is required"
	}
	if u.Email != "" {
		if _, err := mail.ParseAddress(u.Email); err != nil {
			fe["email"] = "is not a valid address"
		}
	}
	switch u.Role {
	case RoleMember, RoleLibrarian, RoleAdmin:
	default:
		fe["role"] = "must be member, librarian or admin"
	}
	if u.Status != StatusActive && u.Status != StatusBlocked {
		fe["status"] = "must be active or blocked"
	}
	if u.CurrentBorrowed < 0 || u.CurrentBorrowed > u.TotalBorrowed {
		fe["currentBorrowed"] = "must be between 0 and totalBorrowed"
	}
	return fe.OrNil()
}

// NewUser builds a user from create fields. Counters always start at zero.
func NewUser(id string, fields records.Patch) (User, error) {
	u, err := User{ID: id, Role: RoleMember, Status: StatusActive}.WithPatch(fields)
	if err != nil {
		return User{}, err
	}
	if err := u.Validate(); err != nil {
		return User{}, err
	}
	return u, nil
}

// LoanOpened is the counter patch for a new borrow.
func (u User) LoanOpened() records.Patch {
	return records.Patch{
		"totalBorrowed":   u.TotalBorrowed + 1,
		"currentBorrowed": u.CurrentBorrowed + 1,
	}
}

// LoanClosed is the counter patch for a return. The open count never drops
// below zero.
func (u User) LoanClosed() records.Patch {
	return records.Patch{"currentBorrowed": max(u.CurrentBorrowed-1, 0)}
}

// Counters restores both borrow counters to the values held by u.
func (u User) Counters() records.Patch {
	return records.Patch{
		"totalBorrowed":   u.TotalBorrowed,
		"currentBorrowed": u.CurrentBorrowed,
	}
}
