// Package memory holds in-memory store implementations. They are NOT
// persistent and are only suitable for development / local mode and
// tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Shivaya007/CROP-AI/internal/domain"
)

// Store implements domain.DiagnosisStore, domain.MessageStore and
// domain.TaskStore over plain maps.
type Store struct {
	mu      sync.RWMutex
	records map[recordKey]*recordState
	byUser  map[domain.UserID][]recordKey
}

type recordKey struct {
	user   domain.UserID
	record domain.RecordID
}

type recordState struct {
	record   *domain.DiagnosisRecord
	messages []*domain.ChatMessage
	tasks    []*domain.TaskItem
	subs     []*subscription
}

func NewStore() *Store {
	return &Store{
		records: make(map[recordKey]*recordState),
		byUser:  make(map[domain.UserID][]recordKey),
	}
}

// ─────────────────────────────────────────
// DiagnosisStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateDiagnosis(ctx context.Context, rec *domain.DiagnosisRecord, tasks []*domain.TaskItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{user: rec.UserID, record: rec.ID}
	if _, exists := s.records[key]; exists {
		return fmt.Errorf("diagnosis %s already exists", rec.ID)
	}

	copied := make([]*domain.TaskItem, len(tasks))
	for i, t := range tasks {
		c := *t
		copied[i] = &c
	}

	s.records[key] = &recordState{record: rec, tasks: copied}
	s.byUser[rec.UserID] = append(s.byUser[rec.UserID], key)
	return nil
}

func (s *Store) GetDiagnosis(ctx context.Context, userID domain.UserID, id domain.RecordID) (*domain.DiagnosisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.records[recordKey{user: userID, record: id}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st.record, nil
}

func (s *Store) ListDiagnosesByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.DiagnosisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.byUser[userID]
	out := make([]*domain.DiagnosisRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.records[k].record)
	}
	// Newest first, matching the Firestore query order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, userID domain.UserID, recordID domain.RecordID, msg *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.records[recordKey{user: userID, record: recordID}]
	if !ok {
		return domain.ErrNotFound
	}
	st.messages = append(st.messages, msg)
	sort.SliceStable(st.messages, func(i, j int) bool {
		return st.messages[i].SentAt.Before(st.messages[j].SentAt)
	})

	snapshot := copyMessages(st.messages)
	for _, sub := range st.subs {
		sub.push(snapshot)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, userID domain.UserID, recordID domain.RecordID, limit int) ([]*domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.records[recordKey{user: userID, record: recordID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	msgs := copyMessages(st.messages)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *Store) SubscribeMessages(ctx context.Context, userID domain.UserID, recordID domain.RecordID) (domain.MessageSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{user: userID, record: recordID}
	st, ok := s.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}

	sub := &subscription{
		ch:     make(chan []*domain.ChatMessage, 8),
		cancel: func() {},
	}
	sub.cancel = func() { s.removeSub(key, sub) }
	st.subs = append(st.subs, sub)

	// Initial snapshot so a new subscriber sees the current log
	// without waiting for the next write.
	sub.push(copyMessages(st.messages))
	return sub, nil
}

func (s *Store) removeSub(key recordKey, target *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.records[key]
	if !ok {
		return
	}
	for i, sub := range st.subs {
		if sub == target {
			st.subs = append(st.subs[:i], st.subs[i+1:]...)
			break
		}
	}
}

// ─────────────────────────────────────────
// TaskStore implementation
// ─────────────────────────────────────────

func (s *Store) ListTasks(ctx context.Context, userID domain.UserID, recordID domain.RecordID) ([]*domain.TaskItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.records[recordKey{user: userID, record: recordID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]*domain.TaskItem, len(st.tasks))
	for i, t := range st.tasks {
		c := *t
		out[i] = &c
	}
	return out, nil
}

func (s *Store) SetTaskDone(ctx context.Context, userID domain.UserID, recordID domain.RecordID, sequence int, done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.records[recordKey{user: userID, record: recordID}]
	if !ok {
		return domain.ErrNotFound
	}
	for _, t := range st.tasks {
		if t.Sequence == sequence {
			t.Done = done
			return nil
		}
	}
	return domain.ErrNotFound
}

// ─────────────────────────────────────────
// subscription
// ─────────────────────────────────────────

type subscription struct {
	ch     chan []*domain.ChatMessage
	cancel func()
	once   sync.Once
}

func (s *subscription) Updates() <-chan []*domain.ChatMessage {
	return s.ch
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		close(s.ch)
	})
	return nil
}

// push drops the update when the subscriber lags; the next write
// delivers a full snapshot anyway.
func (s *subscription) push(msgs []*domain.ChatMessage) {
	select {
	case s.ch <- msgs:
	default:
	}
}

func copyMessages(msgs []*domain.ChatMessage) []*domain.ChatMessage {
	out := make([]*domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}
