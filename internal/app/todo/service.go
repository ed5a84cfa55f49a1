// Package todo reads and updates the care-plan task list of a
// diagnosis record. Done is the only mutable field; tasks are never
// reordered or deleted individually.
package todo

import (
	"context"

	"github.com/Shivaya007/CROP-AI/internal/domain"
	"github.com/Shivaya007/CROP-AI/internal/observability"
)

type Service struct {
	tasks domain.TaskStore
}

func NewService(tasks domain.TaskStore) *Service {
	return &Service{tasks: tasks}
}

// List returns the record's tasks in sequence order.
func (s *Service) List(ctx context.Context, userID domain.UserID, recordID domain.RecordID) ([]*domain.TaskItem, error) {
	return s.tasks.ListTasks(ctx, userID, recordID)
}

// SetDone flips one task's done flag, independent of the others.
func (s *Service) SetDone(ctx context.Context, userID domain.UserID, recordID domain.RecordID, sequence int, done bool) error {
	log := observability.LoggerFromContext(ctx).With(
		"record_id", recordID,
		"sequence", sequence,
		"done", done,
	)

	if err := s.tasks.SetTaskDone(ctx, userID, recordID, sequence, done); err != nil {
		log.Error("failed to update task", "error", err)
		return err
	}

	log.Info("task updated")
	return nil
}
