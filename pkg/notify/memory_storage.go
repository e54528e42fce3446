package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	mu           sync.RWMutex
	events       map[uuid.UUID]*Event
	userEvents   map[string][]uuid.UUID
	deliveries   map[uuid.UUID]*Delivery
	preferences  map[string]*Preference
	digests      map[string]*Digest
	digestByID   map[uuid.UUID]*Digest
	digestEvents map[uuid.UUID][]uuid.UUID
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		events:       make(map[uuid.UUID]*Event),
		userEvents:   make(map[string][]uuid.UUID),
		deliveries:   make(map[uuid.UUID]*Delivery),
		preferences:  make(map[string]*Preference),
		digests:      make(map[string]*Digest),
		digestByID:   make(map[uuid.UUID]*Digest),
		digestEvents: make(map[uuid.UUID][]uuid.UUID),
	}
}

func prefKey(userID string, category Category, channel Channel) string {
	return fmt.Sprintf("%s|%s|%s", userID, category, channel)
}

func digestKey(d Digest) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d",
		d.UserID, d.Channel, d.Category, d.PeriodStart.UnixNano(), d.PeriodEnd.UnixNano())
}

// InTx runs fn directly; each operation is individually synchronized. The
// memory backend trades the atomicity guarantee for simplicity, which is
// acceptable for tests and development.
func (s *MemoryStorage) InTx(ctx context.Context, fn func(Storage) error) error {
	return fn(s)
}

func (s *MemoryStorage) CreateEvent(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	stored := *event
	s.events[stored.ID] = &stored
	s.userEvents[stored.RecipientID] = append(s.userEvents[stored.RecipientID], stored.ID)
	return nil
}

func (s *MemoryStorage) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *event
	return &cp, nil
}

func (s *MemoryStorage) ListEvents(ctx context.Context, userID string, opts ListOptions) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Event
	for _, id := range s.userEvents[userID] {
		event := s.events[id]
		if opts.OnlyUnread && event.IsRead {
			continue
		}
		result = append(result, *event)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start := opts.Offset
	if start > len(result) {
		return []Event{}, nil
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, userID string, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		event, ok := s.events[id]
		if !ok || event.RecipientID != userID {
			continue
		}
		event.MarkAsRead()
	}
	return nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, id := range s.userEvents[userID] {
		if !s.events[id].IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) LatestThrottleCandidate(ctx context.Context, recipientID, dedupeKey string, now time.Time) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if dedupeKey == "" {
		return nil, nil
	}

	var latest *Event
	for _, id := range s.userEvents[recipientID] {
		event := s.events[id]
		if event.DedupeKey != dedupeKey || event.ThrottleUntil.Before(now) {
			continue
		}
		if latest == nil || event.CreatedAt.After(latest.CreatedAt) {
			latest = event
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStorage) CreateDelivery(ctx context.Context, delivery *Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	now := time.Now()
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = now
	}
	delivery.UpdatedAt = now
	stored := *delivery
	s.deliveries[stored.ID] = &stored
	return nil
}

func (s *MemoryStorage) UpdateDelivery(ctx context.Context, delivery *Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delivery.UpdatedAt = time.Now()
	stored := *delivery
	s.deliveries[stored.ID] = &stored
	return nil
}

func (s *MemoryStorage) ListPendingDeliveries(ctx context.Context, now time.Time) ([]Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Delivery
	for _, d := range s.deliveries {
		switch d.Status {
		case StatusPending:
			result = append(result, *d)
		case StatusScheduled:
			if d.ScheduledFor != nil && !d.ScheduledFor.After(now) {
				result = append(result, *d)
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStorage) ListEventDeliveries(ctx context.Context, eventID uuid.UUID) ([]Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Delivery
	for _, d := range s.deliveries {
		if d.EventID == eventID {
			result = append(result, *d)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStorage) UpsertPreference(ctx context.Context, pref Preference) (Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := prefKey(pref.UserID, pref.Category, pref.Channel)
	if existing, ok := s.preferences[key]; ok {
		return *existing, nil
	}
	pref.UpdatedAt = time.Now()
	stored := pref
	s.preferences[key] = &stored
	return stored, nil
}

func (s *MemoryStorage) FindPreference(ctx context.Context, userID string, category Category, channel Channel) (*Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.preferences[prefKey(userID, category, channel)]
	if !ok {
		return nil, nil
	}
	cp := *pref
	return &cp, nil
}

func (s *MemoryStorage) SavePreference(ctx context.Context, pref Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pref.UpdatedAt = time.Now()
	stored := pref
	s.preferences[prefKey(pref.UserID, pref.Category, pref.Channel)] = &stored
	return nil
}

func (s *MemoryStorage) UpsertDigest(ctx context.Context, digest Digest) (Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := digestKey(digest)
	if existing, ok := s.digests[key]; ok {
		existing.Status = DigestScheduled
		return *existing, nil
	}

	if digest.ID == uuid.Nil {
		digest.ID = uuid.New()
	}
	if digest.CreatedAt.IsZero() {
		digest.CreatedAt = time.Now()
	}
	if digest.Summary == nil {
		digest.Summary = make(map[string]int)
	}
	digest.Status = DigestScheduled
	stored := digest
	s.digests[key] = &stored
	s.digestByID[stored.ID] = &stored
	return stored, nil
}

func (s *MemoryStorage) AttachDigestEvent(ctx context.Context, digestID, eventID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest, ok := s.digestByID[digestID]
	if !ok {
		return false, ErrDigestNotFound
	}
	for _, id := range s.digestEvents[digestID] {
		if id == eventID {
			return false, nil
		}
	}
	s.digestEvents[digestID] = append(s.digestEvents[digestID], eventID)
	if digest.Summary == nil {
		digest.Summary = make(map[string]int)
	}
	digest.Summary["events"]++
	return true, nil
}

func (s *MemoryStorage) UpdateDigest(ctx context.Context, digest *Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.digestByID[digest.ID]
	if !ok {
		return ErrDigestNotFound
	}
	stored.Status = digest.Status
	stored.ScheduledFor = digest.ScheduledFor
	stored.SentAt = digest.SentAt
	stored.Title = digest.Title
	return nil
}

func (s *MemoryStorage) ListDueDigests(ctx context.Context, now time.Time) ([]Digest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Digest
	for _, d := range s.digestByID {
		if d.Status != DigestPending && d.Status != DigestScheduled {
			continue
		}
		if d.ScheduledFor.After(now) {
			continue
		}
		result = append(result, *d)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ScheduledFor.Before(result[j].ScheduledFor)
	})
	return result, nil
}

func (s *MemoryStorage) ListDigestEvents(ctx context.Context, digestID uuid.UUID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.digestEvents[digestID]
	result := make([]Event, 0, len(ids))
	for _, id := range ids {
		if event, ok := s.events[id]; ok {
			result = append(result, *event)
		}
	}
	return result, nil
}
