// internal/catalog/domain.go
package catalog

import (
	"errors"
	"strings"
	"time"

	"libradesk/internal/records"
)

const (
	StatusActive  = "active"
	StatusRetired = "retired"
)

var (
	ErrNoCopiesAvailable = errors.New("no copies available")
	ErrCopiesOnLoan      = errors.New("copies are still on loan")
)

// Book represents a title held by the library and its copy counts.
type Book struct {
	ID          string    `json:"id"`
	ISBN        string    `json:"isbn"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Publisher   string    `json:"publisher,omitempty"`
	Category    string    `json:"category,omitempty"`
	PublishYear int       `json:"publishYear,omitempty"`
	Quantity    int       `json:"quantity"`
	Available   int       `json:"available"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (b Book) RecordID() string { return b.ID }

// OnLoan is the number of copies currently lent out.
func (b Book) OnLoan() int { return b.Quantity - b.Available }

func (b Book) WithPatch(p records.Patch) (Book, error) {
	var err error
	for field, v := range p {
		switch field {
		case "isbn":
			b.ISBN, err = records.AsString(field, v)
		case "title":
			b.Title, err = records.AsString(field, v)
		case "author":
			b.Author, err = records.AsString(field, v)
		case "publisher":
			b.Publisher, err = records.AsString(field, v)
		case "category":
			b.Category, err = records.AsString(field, v)
		case "publishYear":
			b.PublishYear, err = records.AsInt(field, v)
		case "quantity":
			b.Quantity, err = records.AsInt(field, v)
		case "available":
			b.Available, err = records.AsInt(field, v)
		case "status":
			b.Status, err = records.AsString(field, v)
		case "createdAt":
			b.CreatedAt, err = records.AsTime(field, v)
		default:
			err = records.Unknown(field)
		}
		if err != nil {
			return Book{}, err
		}
	}
	return b, nil
}

func (b Book) Validate() error {
	fe := records.FieldErrors{}
	if strings.TrimSpace(b.Title) == "" {
		fe["title"] = "is required"
	}
	if strings.TrimSpace(b.Author) == "" {
		fe["author"] = "is required"
	}
	if b.Quantity < 0 {
		fe["quantity"] = "must not be negative"
	}
	if b.Available < 0 || b.Available > b.Quantity {
		fe["available"] = "must be between 0 and quantity"
	}
	if b.Status != StatusActive && b.Status != StatusRetired {
		fe["status"] = "must be active or retired"
	}
	return fe.OrNil()
}

// NewBook builds a book from create fields. All copies start on the shelf
// unless the fields say otherwise.
func NewBook(id string, fields records.Patch) (Book, error) {
	b, err := Book{ID: id, Status: StatusActive}.WithPatch(fields)
	if err != nil {
		return Book{}, err
	}
	if !fields.Has("available") {
		b.Available = b.Quantity
	}
	if err := b.Validate(); err != nil {
		return Book{}, err
	}
	return b, nil
}

// CheckOut is the patch that takes one copy off the shelf.
func (b Book) CheckOut() (records.Patch, error) {
	if b.Status != StatusActive || b.Available <= 0 {
		return nil, ErrNoCopiesAvailable
	}
	return records.Patch{"available": b.Available - 1}, nil
}

// CheckIn is the patch that puts one copy back, capped at Quantity.
func (b Book) CheckIn() records.Patch {
	return records.Patch{"available": min(b.Available+1, b.Quantity)}
}
