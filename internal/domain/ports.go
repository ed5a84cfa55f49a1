package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when the requested document does
// not exist under the caller's scope.
var ErrNotFound = errors.New("not found")

// DiagnosisStore defines diagnosis-record persistence. CreateDiagnosis
// writes the record and its task batch atomically.
type DiagnosisStore interface {
	CreateDiagnosis(ctx context.Context, rec *DiagnosisRecord, tasks []*TaskItem) error
	GetDiagnosis(ctx context.Context, userID UserID, id RecordID) (*DiagnosisRecord, error)
	ListDiagnosesByUser(ctx context.Context, userID UserID, limit int) ([]*DiagnosisRecord, error)
}

// MessageStore defines chat-message persistence. Messages are append
// only and ordered by SentAt.
type MessageStore interface {
	AppendMessage(ctx context.Context, userID UserID, recordID RecordID, msg *ChatMessage) error
	ListMessages(ctx context.Context, userID UserID, recordID RecordID, limit int) ([]*ChatMessage, error)
	SubscribeMessages(ctx context.Context, userID UserID, recordID RecordID) (MessageSubscription, error)
}

// MessageSubscription streams the full ordered message log on every
// change until Close is called.
type MessageSubscription interface {
	Updates() <-chan []*ChatMessage
	Close() error
}

// TaskStore defines to-do persistence under a diagnosis record.
type TaskStore interface {
	ListTasks(ctx context.Context, userID UserID, recordID RecordID) ([]*TaskItem, error)
	SetTaskDone(ctx context.Context, userID UserID, recordID RecordID, sequence int, done bool) error
}

// LLMClient defines how the application talks to the inference
// endpoint. The endpoint keeps no server-side session, so the full
// history is resent on every turn.
type LLMClient interface {
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) (string, error)
	GenerateReply(ctx context.Context, history []*ChatMessage, newTurn string) (string, error)
}

// Identity defines the identity-provider operations the service needs.
type Identity interface {
	VerifyToken(ctx context.Context, idToken string) (*User, error)
	GetUser(ctx context.Context, id UserID) (*User, error)
	UpdateDisplayName(ctx context.Context, id UserID, name string) (*User, error)
	EmailVerificationLink(ctx context.Context, email string) (string, error)
}

// BlobStore stores uploaded crop photos and returns a stable URL.
type BlobStore interface {
	UploadImage(ctx context.Context, name string, mimeType string, data []byte) (string, error)
}

// NewsProvider runs one keyword query against the news feed.
type NewsProvider interface {
	Search(ctx context.Context, query string) ([]*Article, error)
}
