package appointments

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store is the document-store collaborator. Implementations must make
// AppendMessage an atomic append on the stored record, never a read-then-write.
type Store interface {
	List(ctx context.Context) ([]Appointment, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	// Insert stores a new record and assigns its id when empty.
	Insert(ctx context.Context, appt *Appointment) error
	// Update merges patch into the record. With expect set, the write only
	// happens while the stored status is one of expect.
	Update(ctx context.Context, id string, patch Patch, expect ...Status) error
	AppendMessage(ctx context.Context, id string, msg ChatMessage) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps appointments in process memory. It backs development mode
// and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	items map[string]*Appointment
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Appointment)}
}

// List returns every record in insertion order.
func (s *MemoryStore) List(ctx context.Context) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Appointment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out, nil
}

// Get returns a copy of the record or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := appt.Clone()
	return &out, nil
}

// Insert stores a copy of appt, assigning a uuid when the id is empty.
func (s *MemoryStore) Insert(ctx context.Context, appt *Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Messages == nil {
		appt.Messages = []ChatMessage{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[appt.ID]; exists {
		return ErrAlreadyExists
	}
	stored := appt.Clone()
	s.items[appt.ID] = &stored
	s.order = append(s.order, appt.ID)
	return nil
}

// Update merges patch under the write lock.
func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch, expect ...Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if len(expect) > 0 && !statusIn(appt.Status, expect) {
		return ErrStatusConflict
	}
	updated := patch.Apply(*appt)
	s.items[id] = &updated
	return nil
}

// AppendMessage appends under the write lock.
func (s *MemoryStore) AppendMessage(ctx context.Context, id string, msg ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	appt.Messages = append(appt.Messages, msg)
	return nil
}

// Delete removes the record with its messages.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func statusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
