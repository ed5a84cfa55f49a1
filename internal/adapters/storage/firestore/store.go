// Package firestore persists diagnosis records, chat messages and
// care-plan tasks in Cloud Firestore under
// users/{uid}/crop-diagnosis/{record} with nested messages and todos
// collections.
package firestore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Shivaya007/CROP-AI/internal/domain"
	"github.com/Shivaya007/CROP-AI/internal/observability"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for the given project.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) diagnosesCol(userID domain.UserID) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(string(userID)).Collection("crop-diagnosis")
}

func (s *Store) diagnosisDoc(userID domain.UserID, id domain.RecordID) *firestore.DocumentRef {
	return s.diagnosesCol(userID).Doc(string(id))
}

func (s *Store) messagesCol(userID domain.UserID, id domain.RecordID) *firestore.CollectionRef {
	return s.diagnosisDoc(userID, id).Collection("messages")
}

func (s *Store) todosCol(userID domain.UserID, id domain.RecordID) *firestore.CollectionRef {
	return s.diagnosisDoc(userID, id).Collection("todos")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type diagnosisDoc struct {
	Title     string    `firestore:"name"`
	ImageURL  string    `firestore:"imageUrl"`
	RawAIText string    `firestore:"aiResponse"`
	Heading   string    `firestore:"heading"`
	CreatedAt time.Time `firestore:"timestamp"`
}

type messageDoc struct {
	Role   string    `firestore:"role"`
	Text   string    `firestore:"text"`
	SentAt time.Time `firestore:"timestamp"`
}

type todoDoc struct {
	Sequence    int    `firestore:"sequence"`
	DayLabel    string `firestore:"dayLabel"`
	Description string `firestore:"description"`
	Done        bool   `firestore:"done"`
}

// ─────────────────────────────────────────
// DiagnosisStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateDiagnosis(ctx context.Context, rec *domain.DiagnosisRecord, tasks []*domain.TaskItem) error {
	doc := diagnosisDoc{
		Title:     rec.Title,
		ImageURL:  rec.ImageURL,
		RawAIText: rec.RawAIText,
		Heading:   rec.Heading,
		CreatedAt: rec.CreatedAt,
	}

	// Record and task batch land atomically.
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(s.diagnosisDoc(rec.UserID, rec.ID), doc); err != nil {
			return err
		}
		for _, t := range tasks {
			ref := s.todosCol(rec.UserID, rec.ID).Doc(strconv.Itoa(t.Sequence))
			if err := tx.Create(ref, todoDoc{
				Sequence:    t.Sequence,
				DayLabel:    t.DayLabel,
				Description: t.Description,
				Done:        t.Done,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("firestore CreateDiagnosis: %w", err)
	}
	return nil
}

func (s *Store) GetDiagnosis(ctx context.Context, userID domain.UserID, id domain.RecordID) (*domain.DiagnosisRecord, error) {
	snap, err := s.diagnosisDoc(userID, id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore GetDiagnosis: %w", err)
	}

	var doc diagnosisDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetDiagnosis decode: %w", err)
	}

	return toRecord(userID, id, doc), nil
}

func (s *Store) ListDiagnosesByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.DiagnosisRecord, error) {
	q := s.diagnosesCol(userID).OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.DiagnosisRecord
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListDiagnosesByUser: %w", err)
		}

		var doc diagnosisDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode diagnosisDoc: %w", err)
		}
		out = append(out, toRecord(userID, domain.RecordID(snap.Ref.ID), doc))
	}
	return out, nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, userID domain.UserID, recordID domain.RecordID, msg *domain.ChatMessage) error {
	doc := messageDoc{
		Role:   string(msg.Role),
		Text:   msg.Text,
		SentAt: msg.SentAt,
	}

	_, err := s.messagesCol(userID, recordID).Doc(string(msg.ID)).Create(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, userID domain.UserID, recordID domain.RecordID, limit int) ([]*domain.ChatMessage, error) {
	q := s.messagesCol(userID, recordID).OrderBy("timestamp", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.ChatMessage
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListMessages: %w", err)
		}

		msg, err := toMessage(recordID, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// SubscribeMessages streams the ordered message log on every change
// via a Firestore query snapshot listener.
func (s *Store) SubscribeMessages(ctx context.Context, userID domain.UserID, recordID domain.RecordID) (domain.MessageSubscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	q := s.messagesCol(userID, recordID).OrderBy("timestamp", firestore.Asc)
	snapIter := q.Snapshots(subCtx)

	sub := &snapshotSubscription{
		ch:     make(chan []*domain.ChatMessage, 8),
		cancel: cancel,
		iter:   snapIter,
	}

	go sub.run(subCtx, recordID)
	return sub, nil
}

type snapshotSubscription struct {
	ch     chan []*domain.ChatMessage
	cancel context.CancelFunc
	iter   *firestore.QuerySnapshotIterator
}

func (s *snapshotSubscription) run(ctx context.Context, recordID domain.RecordID) {
	defer close(s.ch)
	log := observability.LoggerFromContext(ctx).With("record_id", recordID)

	for {
		snap, err := s.iter.Next()
		if err != nil {
			if status.Code(err) != codes.Canceled && ctx.Err() == nil {
				log.Error("message snapshot listener stopped", "error", err)
			}
			return
		}

		var msgs []*domain.ChatMessage
		docs := snap.Documents
		for {
			docSnap, err := docs.Next()
			if err != nil {
				if err == iterator.Done {
					break
				}
				log.Error("decoding message snapshot", "error", err)
				return
			}
			msg, err := toMessage(recordID, docSnap)
			if err != nil {
				log.Error("decoding message snapshot", "error", err)
				return
			}
			msgs = append(msgs, msg)
		}

		select {
		case s.ch <- msgs:
		case <-ctx.Done():
			return
		}
	}
}

func (s *snapshotSubscription) Updates() <-chan []*domain.ChatMessage {
	return s.ch
}

func (s *snapshotSubscription) Close() error {
	s.cancel()
	s.iter.Stop()
	return nil
}

// ─────────────────────────────────────────
// TaskStore implementation
// ─────────────────────────────────────────

func (s *Store) ListTasks(ctx context.Context, userID domain.UserID, recordID domain.RecordID) ([]*domain.TaskItem, error) {
	q := s.todosCol(userID, recordID).OrderBy("sequence", firestore.Asc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.TaskItem
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListTasks: %w", err)
		}

		var doc todoDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode todoDoc: %w", err)
		}
		out = append(out, &domain.TaskItem{
			Sequence:    doc.Sequence,
			DayLabel:    doc.DayLabel,
			Description: doc.Description,
			Done:        doc.Done,
		})
	}
	return out, nil
}

func (s *Store) SetTaskDone(ctx context.Context, userID domain.UserID, recordID domain.RecordID, sequence int, done bool) error {
	ref := s.todosCol(userID, recordID).Doc(strconv.Itoa(sequence))

	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "done", Value: done},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrNotFound
		}
		return fmt.Errorf("firestore SetTaskDone: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// mapping helpers
// ─────────────────────────────────────────

func toRecord(userID domain.UserID, id domain.RecordID, doc diagnosisDoc) *domain.DiagnosisRecord {
	return &domain.DiagnosisRecord{
		ID:        id,
		UserID:    userID,
		Title:     doc.Title,
		ImageURL:  doc.ImageURL,
		RawAIText: doc.RawAIText,
		Heading:   doc.Heading,
		CreatedAt: doc.CreatedAt,
	}
}

func toMessage(recordID domain.RecordID, snap *firestore.DocumentSnapshot) (*domain.ChatMessage, error) {
	var doc messageDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode messageDoc: %w", err)
	}
	return &domain.ChatMessage{
		ID:       domain.MessageID(snap.Ref.ID),
		RecordID: recordID,
		Role:     domain.Role(doc.Role),
		Text:     doc.Text,
		SentAt:   doc.SentAt,
	}, nil
}
