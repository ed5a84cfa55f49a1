package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivaya007/CROP-AI/internal/domain"
)

type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	block chan struct{} // when set, GenerateReply waits for close or ctx
	calls int
}

func (f *fakeLLM) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	return f.reply, f.err
}

func (f *fakeLLM) GenerateReply(ctx context.Context, history []*domain.ChatMessage, newTurn string) (string, error) {
	f.mu.Lock()
	f.calls++
	block, err, reply := f.block, f.err, f.reply
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (f *fakeLLM) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeMessageStore struct {
	mu        sync.Mutex
	msgs      []*domain.ChatMessage
	appendErr error
}

func (s *fakeMessageStore) AppendMessage(ctx context.Context, userID domain.UserID, recordID domain.RecordID, msg *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *fakeMessageStore) ListMessages(ctx context.Context, userID domain.UserID, recordID domain.RecordID, limit int) ([]*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ChatMessage, len(s.msgs))
	copy(out, s.msgs)
	return out, nil
}

func (s *fakeMessageStore) SubscribeMessages(ctx context.Context, userID domain.UserID, recordID domain.RecordID) (domain.MessageSubscription, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeMessageStore) countByRole(role domain.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}

func newTestController(llm *fakeLLM, store *fakeMessageStore) *Controller {
	c := NewController("user-1", "rec-1", llm, store, 0)
	seq := 0
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.newID = func() string {
		seq++
		return fmt.Sprintf("m-%d", seq)
	}
	c.now = func() time.Time {
		seq++
		return base.Add(time.Duration(seq) * time.Second)
	}
	return c
}

func TestSubmitSuccessfulTurn(t *testing.T) {
	llm := &fakeLLM{reply: "Use a copper-based fungicide."}
	store := &fakeMessageStore{}
	c := newTestController(llm, store)

	out, err := c.Submit(context.Background(), "What should I spray?")
	require.NoError(t, err)

	assert.Equal(t, domain.RoleUser, out.UserMessage.Role)
	assert.Equal(t, "What should I spray?", out.UserMessage.Text)
	assert.Equal(t, domain.RoleAssistant, out.AssistantMessage.Role)
	assert.Equal(t, "Use a copper-based fungicide.", out.AssistantMessage.Text)

	// Exactly one persisted write per side.
	assert.Equal(t, 1, store.countByRole(domain.RoleUser))
	assert.Equal(t, 1, store.countByRole(domain.RoleAssistant))

	state, reason := c.State()
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, reason)

	log := c.Log()
	require.Len(t, log, 2)
	assert.True(t, log[0].SentAt.Before(log[1].SentAt))
}

func TestSubmitEmptyTextRejected(t *testing.T) {
	llm := &fakeLLM{reply: "hello"}
	store := &fakeMessageStore{}
	c := newTestController(llm, store)

	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := c.Submit(context.Background(), in)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}

	assert.Empty(t, store.msgs)
	assert.Zero(t, llm.calls)
	state, _ := c.State()
	assert.Equal(t, StateIdle, state)
}

func TestSubmitInferenceFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("upstream unavailable")}
	store := &fakeMessageStore{}
	c := newTestController(llm, store)

	_, err := c.Submit(context.Background(), "Will it recover?")
	require.Error(t, err)

	// The user message stays persisted, no assistant write happened.
	assert.Equal(t, 1, store.countByRole(domain.RoleUser))
	assert.Equal(t, 0, store.countByRole(domain.RoleAssistant))

	state, reason := c.State()
	assert.Equal(t, StateError, state)
	assert.Contains(t, reason, "upstream unavailable")
}

func TestErrorStateIsNotSticky(t *testing.T) {
	llm := &fakeLLM{err: errors.New("boom"), reply: "Recovered answer."}
	store := &fakeMessageStore{}
	c := newTestController(llm, store)

	_, err := c.Submit(context.Background(), "first question")
	require.Error(t, err)

	llm.setErr(nil)

	out, err := c.Submit(context.Background(), "second question")
	require.NoError(t, err)
	assert.Equal(t, "second question", out.UserMessage.Text)

	// The failed turn is not resent: two user messages, one reply.
	assert.Equal(t, 2, store.countByRole(domain.RoleUser))
	assert.Equal(t, 1, store.countByRole(domain.RoleAssistant))

	state, _ := c.State()
	assert.Equal(t, StateIdle, state)
}

func TestSubmitWhileInFlightRejected(t *testing.T) {
	llm := &fakeLLM{reply: "slow answer", block: make(chan struct{})}
	store := &fakeMessageStore{}
	c := newTestController(llm, store)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "first")
		done <- err
	}()

	// Wait until the first turn is past the guard.
	require.Eventually(t, func() bool {
		state, _ := c.State()
		return state == StateWaitingForReply
	}, time.Second, time.Millisecond)

	_, err := c.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(llm.block)
	require.NoError(t, <-done)

	// Only the first turn went through.
	assert.Equal(t, 1, store.countByRole(domain.RoleUser))
	assert.Equal(t, 1, store.countByRole(domain.RoleAssistant))
}

func TestSubmitTimeout(t *testing.T) {
	llm := &fakeLLM{block: make(chan struct{})}
	store := &fakeMessageStore{}
	c := newTestController(llm, store)
	c.timeout = 10 * time.Millisecond

	_, err := c.Submit(context.Background(), "are you there?")
	require.Error(t, err)

	state, reason := c.State()
	assert.Equal(t, StateError, state)
	assert.Equal(t, "inference timed out", reason)

	// User message persisted, no reply.
	assert.Equal(t, 1, store.countByRole(domain.RoleUser))
	assert.Equal(t, 0, store.countByRole(domain.RoleAssistant))
}

func TestLogIsAppendOnly(t *testing.T) {
	llm := &fakeLLM{reply: "ok"}
	store := &fakeMessageStore{}
	c := newTestController(llm, store)

	var prevLen int
	snapshot := func() map[domain.MessageID]string {
		out := make(map[domain.MessageID]string)
		for _, m := range c.Log() {
			out[m.ID] = m.Text
		}
		return out
	}

	var frozen map[domain.MessageID]string
	for i := 0; i < 3; i++ {
		if i == 1 {
			llm.setErr(errors.New("flaky"))
		} else {
			llm.setErr(nil)
		}
		_, _ = c.Submit(context.Background(), fmt.Sprintf("question %d", i))

		log := c.Log()
		assert.GreaterOrEqual(t, len(log), prevLen, "log length must be monotonic")
		prevLen = len(log)

		now := snapshot()
		for id, text := range frozen {
			assert.Equal(t, text, now[id], "existing entry mutated")
		}
		frozen = now
	}
}

func TestApplySnapshotDedupesByID(t *testing.T) {
	llm := &fakeLLM{reply: "answer"}
	store := &fakeMessageStore{}
	c := newTestController(llm, store)

	_, err := c.Submit(context.Background(), "question")
	require.NoError(t, err)
	require.Len(t, c.Log(), 2)

	// The store echoes the controller's own writes back through the
	// subscription, plus one genuinely new message.
	echo, err := store.ListMessages(context.Background(), "user-1", "rec-1", 0)
	require.NoError(t, err)

	external := &domain.ChatMessage{
		ID:       "external-1",
		RecordID: "rec-1",
		Role:     domain.RoleAssistant,
		Text:     "late arrival",
		SentAt:   echo[0].SentAt.Add(-time.Hour),
	}
	c.ApplySnapshot(append(echo, external))

	log := c.Log()
	require.Len(t, log, 3, "echoed messages must not duplicate")
	// Reconciled by SentAt, not arrival order.
	assert.Equal(t, domain.MessageID("external-1"), log[0].ID)
}

func TestManagerReturnsSameControllerPerThread(t *testing.T) {
	llm := &fakeLLM{reply: "ok"}
	store := &fakeMessageStore{}
	m := NewManager(llm, store, 0)

	a := m.Session("u1", "r1")
	b := m.Session("u1", "r1")
	other := m.Session("u1", "r2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
}
