package chat

import (
	"sync"
	"time"

	"github.com/Shivaya007/CROP-AI/internal/domain"
)

// Manager hands out one Controller per (user, record) pair so that
// concurrent submissions to the same thread hit the same serialization
// guard. Controllers are created lazily and kept for the process
// lifetime; their state is transient, the log itself lives in the store.
type Manager struct {
	llm      domain.LLMClient
	messages domain.MessageStore
	timeout  time.Duration

	mu sync.Mutex
	by map[threadKey]*Controller
}

type threadKey struct {
	user   domain.UserID
	record domain.RecordID
}

func NewManager(llm domain.LLMClient, messages domain.MessageStore, timeout time.Duration) *Manager {
	return &Manager{
		llm:      llm,
		messages: messages,
		timeout:  timeout,
		by:       make(map[threadKey]*Controller),
	}
}

// Session returns the controller for one diagnosis thread, creating it
// on first use.
func (m *Manager) Session(userID domain.UserID, recordID domain.RecordID) *Controller {
	key := threadKey{user: userID, record: recordID}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.by[key]
	if !ok {
		c = NewController(userID, recordID, m.llm, m.messages, m.timeout)
		m.by[key] = c
	}
	return c
}
