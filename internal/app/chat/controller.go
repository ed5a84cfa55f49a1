// Package chat drives one diagnosis chat thread: an append-only,
// SentAt-ordered message log and the send/receive state machine behind
// the send button.
package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivaya007/CROP-AI/internal/domain"
	"github.com/Shivaya007/CROP-AI/internal/observability"
)

// State of the send/receive machine. There is no terminal state; the
// controller lives as long as its screen.
type State int

const (
	StateIdle State = iota
	StateSending
	StateWaitingForReply
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateWaitingForReply:
		return "waiting_for_reply"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyMessage rejects blank submissions before any external
	// call. It is a guard, not an error state.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrBusy rejects a submit while a previous turn is in flight.
	ErrBusy = errors.New("a message is already in flight")
)

// Controller manages the message log of one diagnosis record. All
// transitions are serialized: a second Submit while not in Idle or
// Error is rejected, never interleaved.
type Controller struct {
	userID   domain.UserID
	recordID domain.RecordID

	llm      domain.LLMClient
	messages domain.MessageStore
	timeout  time.Duration

	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	state   State
	lastErr string
	log     []*domain.ChatMessage
}

func NewController(
	userID domain.UserID,
	recordID domain.RecordID,
	llm domain.LLMClient,
	messages domain.MessageStore,
	timeout time.Duration,
) *Controller {
	return &Controller{
		userID:   userID,
		recordID: recordID,
		llm:      llm,
		messages: messages,
		timeout:  timeout,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// State returns the current machine state and, in StateError, the
// failure reason.
func (c *Controller) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.lastErr
}

// Log returns a copy of the reconciled message view, ascending SentAt.
func (c *Controller) Log() []*domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.ChatMessage, len(c.log))
	copy(out, c.log)
	return out
}

// SubmitOutput carries the two messages a successful turn produced.
type SubmitOutput struct {
	UserMessage      *domain.ChatMessage
	AssistantMessage *domain.ChatMessage
}

// Submit runs one turn: persist the user message, send the full
// ordered history plus the new turn to the inference endpoint, persist
// the reply. A turn that fails after the user message was persisted
// leaves that message in place; the next Submit starts a fresh turn
// rather than resending the failed one.
func (c *Controller) Submit(ctx context.Context, text string) (*SubmitOutput, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state != StateIdle && c.state != StateError {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state = StateSending
	c.lastErr = ""
	c.mu.Unlock()

	log := observability.LoggerFromContext(ctx).With(
		"record_id", c.recordID,
		"user_id", c.userID,
	)

	// History as persisted before this turn; the endpoint keeps no
	// session, so the prior turns travel with the new one.
	history, err := c.messages.ListMessages(ctx, c.userID, c.recordID, 0)
	if err != nil {
		log.Error("failed to load history", "error", err)
		c.fail("loading history: " + err.Error())
		return nil, err
	}

	userMsg := &domain.ChatMessage{
		ID:       domain.MessageID(c.newID()),
		RecordID: c.recordID,
		Role:     domain.RoleUser,
		Text:     text,
		SentAt:   c.now(),
	}
	if err := c.messages.AppendMessage(ctx, c.userID, c.recordID, userMsg); err != nil {
		log.Error("failed to append user message", "error", err)
		c.fail("saving message: " + err.Error())
		return nil, err
	}
	c.absorb(userMsg)

	c.setState(StateWaitingForReply)

	replyCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		replyCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	replyText, err := c.llm.GenerateReply(replyCtx, history, text)
	if err != nil {
		// The user message stays persisted: the question is never
		// silently lost even when the reply never arrives.
		log.Error("inference failed", "error", err)
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(replyCtx.Err(), context.DeadlineExceeded) {
			reason = "inference timed out"
		}
		c.fail(reason)
		return nil, err
	}

	assistantMsg := &domain.ChatMessage{
		ID:       domain.MessageID(c.newID()),
		RecordID: c.recordID,
		Role:     domain.RoleAssistant,
		Text:     replyText,
		SentAt:   c.now(),
	}
	if err := c.messages.AppendMessage(ctx, c.userID, c.recordID, assistantMsg); err != nil {
		log.Error("failed to append assistant message", "error", err)
		c.fail("saving reply: " + err.Error())
		return nil, err
	}
	c.absorb(assistantMsg)

	c.setState(StateIdle)
	log.Info("turn completed")

	return &SubmitOutput{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

// ApplySnapshot reconciles a store-subscription snapshot with the
// local view. The store may echo the controller's own just-written
// messages back; entries are deduped by message ID, never by content,
// and existing entries are never replaced or removed.
func (c *Controller) ApplySnapshot(msgs []*domain.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[domain.MessageID]bool, len(c.log))
	for _, m := range c.log {
		seen[m.ID] = true
	}
	for _, m := range msgs {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		c.log = append(c.log, m)
	}
	sortBySentAt(c.log)
}

func (c *Controller) absorb(msg *domain.ChatMessage) {
	c.ApplySnapshot([]*domain.ChatMessage{msg})
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) fail(reason string) {
	c.mu.Lock()
	c.state = StateError
	c.lastErr = reason
	c.mu.Unlock()
}

func sortBySentAt(msgs []*domain.ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
}
