package domain

// DiagnosisRecord is the persisted result of one crop-photo analysis.
// It is the root of a chat thread and a to-do list. Records are created
// once and never updated afterwards.
type DiagnosisRecord struct {
	ID        RecordID
	UserID    UserID
	Title     string
	ImageURL  string
	RawAIText string
	Heading   string
	CreatedAt Timestamp
}

// TaskItem is one day-indexed step of the care plan extracted from the
// AI reply. Done is the only field that ever changes.
type TaskItem struct {
	Sequence    int
	DayLabel    string
	Description string
	Done        bool
}

// ChatMessage is an append-only log entry under a DiagnosisRecord.
// Assistant messages carry markdown-formatted text.
type ChatMessage struct {
	ID       MessageID
	RecordID RecordID
	Role     Role
	Text     string
	SentAt   Timestamp
}
