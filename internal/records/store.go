// internal/records/store.go
package records

// Entity is a record type that can be kept in a Store. WithPatch returns a
// modified copy and must leave the receiver untouched.
type Entity[T any] interface {
	RecordID() string
	WithPatch(p Patch) (T, error)
}

// Store is an ordered in-memory collection of one entity type keyed by id.
// Iteration follows insertion order. A Store is not safe for concurrent use;
// pipeline.Collection serializes access to it.
type Store[T Entity[T]] struct {
	order []string
	byID  map[string]T
}

func NewStore[T Entity[T]]() *Store[T] {
	return &Store[T]{byID: make(map[string]T)}
}

// Insert appends r. It fails with ErrDuplicateID if the id is taken.
func (s *Store[T]) Insert(r T) error {
	id := r.RecordID()
	if _, exists := s.byID[id]; exists {
		return duplicate(id)
	}
	s.byID[id] = r
	s.order = append(s.order, id)
	return nil
}

// Update merges p into the record with the given id. On any error the
// stored record is left as it was.
func (s *Store[T]) Update(id string, p Patch) (T, error) {
	var zero T
	current, ok := s.byID[id]
	if !ok {
		return zero, notFound(id)
	}
	next, err := current.WithPatch(p)
	if err != nil {
		return zero, err
	}
	if next.RecordID() != id {
		return zero, invalid("id", next.RecordID(), "unchanged")
	}
	s.byID[id] = next
	return next, nil
}

// Replace swaps the stored record for r, keeping its position.
func (s *Store[T]) Replace(r T) error {
	id := r.RecordID()
	if _, ok := s.byID[id]; !ok {
		return notFound(id)
	}
	s.byID[id] = r
	return nil
}

func (s *Store[T]) Remove(id string) error {
	if _, ok := s.byID[id]; !ok {
		return notFound(id)
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store[T]) Get(id string) (T, error) {
	r, ok := s.byID[id]
	if !ok {
		var zero T
		return zero, notFound(id)
	}
	return r, nil
}

func (s *Store[T]) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// All returns the records in insertion order. The slice is a fresh copy.
func (s *Store[T]) All() []T {
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *Store[T]) Len() int { return len(s.order) }

// Clone returns an independent copy used for commit-or-discard mutations.
func (s *Store[T]) Clone() *Store[T] {
	c := &Store[T]{
		order: make([]string, len(s.order)),
		byID:  make(map[string]T, len(s.byID)),
	}
	copy(c.order, s.order)
	for k, v := range s.byID {
		c.byID[k] = v
	}
	return c
}

// Load builds a store from a server listing, preserving its order.
func Load[T Entity[T]](rs []T) (*Store[T], error) {
	s := NewStore[T]()
	for _, r := range rs {
		if err := s.Insert(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}
