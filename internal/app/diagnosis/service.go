// Package diagnosis runs the analyze-a-crop-photo workflow: upload the
// image, ask the model for a report, extract the care plan, persist the
// record and seed its chat thread.
package diagnosis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Shivaya007/CROP-AI/internal/analysis"
	"github.com/Shivaya007/CROP-AI/internal/domain"
	"github.com/Shivaya007/CROP-AI/internal/observability"
)

type Service struct {
	llm       domain.LLMClient
	blobs     domain.BlobStore
	diagnoses domain.DiagnosisStore
	messages  domain.MessageStore
	tasks     domain.TaskStore

	now   func() time.Time
	newID func() string
}

func NewService(
	llm domain.LLMClient,
	blobs domain.BlobStore,
	diagnoses domain.DiagnosisStore,
	messages domain.MessageStore,
	tasks domain.TaskStore,
) *Service {
	return &Service{
		llm:       llm,
		blobs:     blobs,
		diagnoses: diagnoses,
		messages:  messages,
		tasks:     tasks,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

type AnalyzeInput struct {
	UserID     domain.UserID
	Title      string
	ImageBytes []byte
	MIMEType   string
}

type AnalyzeOutput struct {
	Record *domain.DiagnosisRecord
	Tasks  []*domain.TaskItem
}

// Analyze runs one crop-photo analysis end to end. The record, its
// task batch and the seed assistant message are created once; the
// record is never updated afterwards.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeOutput, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if len(in.ImageBytes) == 0 {
		return nil, fmt.Errorf("image is required")
	}

	log := observability.LoggerFromContext(ctx).With(
		"user_id", in.UserID,
		"title", in.Title,
	)
	log.Info("analyzing crop photo", "image_bytes", len(in.ImageBytes))

	now := s.now()
	recordID := domain.RecordID(s.newID())

	imageURL, err := s.blobs.UploadImage(ctx, fmt.Sprintf("images/%s.jpg", recordID), in.MIMEType, in.ImageBytes)
	if err != nil {
		log.Error("image upload failed", "error", err)
		return nil, fmt.Errorf("uploading image: %w", err)
	}

	rawReply, err := s.llm.AnalyzeImage(ctx, in.ImageBytes, in.MIMEType)
	if err != nil {
		log.Error("image analysis failed", "error", err)
		return nil, fmt.Errorf("analyzing image: %w", err)
	}

	parsed := analysis.Parse(rawReply)
	if parsed.TaskDecodeErr != nil {
		// A malformed plan never blocks the diagnosis text.
		log.Warn("care plan decode failed", "error", parsed.TaskDecodeErr)
	}

	record := &domain.DiagnosisRecord{
		ID:        recordID,
		UserID:    in.UserID,
		Title:     in.Title,
		ImageURL:  imageURL,
		RawAIText: parsed.DisplayText,
		Heading:   parsed.Heading,
		CreatedAt: now,
	}

	tasks := make([]*domain.TaskItem, 0, len(parsed.Tasks))
	for i := range parsed.Tasks {
		t := parsed.Tasks[i]
		tasks = append(tasks, &t)
	}

	if err := s.diagnoses.CreateDiagnosis(ctx, record, tasks); err != nil {
		log.Error("failed to create diagnosis record", "error", err)
		return nil, err
	}

	// Seed the chat thread with the diagnosis summary. The first
	// assistant message is the report itself, not a to-do list.
	seed := &domain.ChatMessage{
		ID:       domain.MessageID(s.newID()),
		RecordID: recordID,
		Role:     domain.RoleAssistant,
		Text:     "**AI Analysis:**\n\n" + parsed.DisplayText,
		SentAt:   now,
	}
	if err := s.messages.AppendMessage(ctx, in.UserID, recordID, seed); err != nil {
		log.Error("failed to seed chat thread", "error", err)
		return nil, err
	}

	log.Info("diagnosis created", "record_id", record.ID, "tasks", len(tasks))

	return &AnalyzeOutput{Record: record, Tasks: tasks}, nil
}

// Get returns one diagnosis record.
func (s *Service) Get(ctx context.Context, userID domain.UserID, id domain.RecordID) (*domain.DiagnosisRecord, error) {
	return s.diagnoses.GetDiagnosis(ctx, userID, id)
}

// List returns the user's diagnosis records, newest first.
func (s *Service) List(ctx context.Context, userID domain.UserID, limit int) ([]*domain.DiagnosisRecord, error) {
	return s.diagnoses.ListDiagnosesByUser(ctx, userID, limit)
}

// WatchMessages opens a live subscription on the record's message log.
// The record must exist under the user's scope.
func (s *Service) WatchMessages(ctx context.Context, userID domain.UserID, id domain.RecordID) (domain.MessageSubscription, error) {
	if _, err := s.diagnoses.GetDiagnosis(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.messages.SubscribeMessages(ctx, userID, id)
}

// Timeline returns the record together with its ordered message log.
func (s *Service) Timeline(ctx context.Context, userID domain.UserID, id domain.RecordID, limit int) (*domain.DiagnosisRecord, []*domain.ChatMessage, error) {
	record, err := s.diagnoses.GetDiagnosis(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.ListMessages(ctx, userID, id, limit)
	if err != nil {
		return nil, nil, err
	}
	return record, msgs, nil
}
