package diagnosis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivaya007/CROP-AI/internal/adapters/blob"
	"github.com/Shivaya007/CROP-AI/internal/adapters/llm"
	"github.com/Shivaya007/CROP-AI/internal/adapters/storage/memory"
	"github.com/Shivaya007/CROP-AI/internal/app/diagnosis"
	"github.com/Shivaya007/CROP-AI/internal/domain"
)

func newTestService() (*diagnosis.Service, *memory.Store) {
	store := memory.NewStore()
	svc := diagnosis.NewService(llm.NewMockLLM(), blob.NewMemory(), store, store, store)
	return svc, store
}

func TestAnalyzeCreatesRecordTasksAndSeedMessage(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	out, err := svc.Analyze(ctx, diagnosis.AnalyzeInput{
		UserID:     "farmer-1",
		Title:      "Backyard tomato",
		ImageBytes: []byte("fake-jpeg"),
		MIMEType:   "image/jpeg",
	})
	require.NoError(t, err)

	rec := out.Record
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Backyard tomato", rec.Title)
	assert.NotEmpty(t, rec.ImageURL)
	// Sentinel regions are stripped from the stored display text.
	assert.NotContains(t, rec.RawAIText, "~$%~")
	assert.NotContains(t, rec.RawAIText, "~&^~")
	assert.Equal(t, "Treatment Plan", rec.Heading)

	// The mock plan has three days.
	require.Len(t, out.Tasks, 3)
	for i, task := range out.Tasks {
		assert.Equal(t, i+1, task.Sequence)
		assert.False(t, task.Done)
	}

	// Task batch was persisted with the record.
	stored, err := store.ListTasks(ctx, "farmer-1", rec.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	// The chat thread is seeded with the diagnosis summary, not a
	// to-do list.
	msgs, err := store.ListMessages(ctx, "farmer-1", rec.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleAssistant, msgs[0].Role)
	assert.Contains(t, msgs[0].Text, "**AI Analysis:**")
	assert.NotContains(t, msgs[0].Text, "~$%~")
}

func TestAnalyzeValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.Analyze(ctx, diagnosis.AnalyzeInput{
		UserID:     "farmer-1",
		ImageBytes: []byte("img"),
	})
	assert.Error(t, err, "missing title must be rejected")

	_, err = svc.Analyze(ctx, diagnosis.AnalyzeInput{
		UserID: "farmer-1",
		Title:  "No photo",
	})
	assert.Error(t, err, "missing image must be rejected")
}

type failingLLM struct{}

func (failingLLM) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	return "", errors.New("inference unavailable")
}

func (failingLLM) GenerateReply(ctx context.Context, history []*domain.ChatMessage, newTurn string) (string, error) {
	return "", errors.New("inference unavailable")
}

func TestAnalyzeInferenceFailureCreatesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := diagnosis.NewService(failingLLM{}, blob.NewMemory(), store, store, store)

	_, err := svc.Analyze(ctx, diagnosis.AnalyzeInput{
		UserID:     "farmer-1",
		Title:      "Wheat field",
		ImageBytes: []byte("img"),
	})
	require.Error(t, err)

	records, err := store.ListDiagnosesByUser(ctx, "farmer-1", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

type unparseableLLM struct{}

func (unparseableLLM) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	return "Leaf spot detected. ~$%~this is not json~$%~", nil
}

func (unparseableLLM) GenerateReply(ctx context.Context, history []*domain.ChatMessage, newTurn string) (string, error) {
	return "ok", nil
}

func TestAnalyzeMalformedPlanDegradesToNoTasks(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := diagnosis.NewService(unparseableLLM{}, blob.NewMemory(), store, store, store)

	out, err := svc.Analyze(ctx, diagnosis.AnalyzeInput{
		UserID:     "farmer-1",
		Title:      "Chili",
		ImageBytes: []byte("img"),
	})
	require.NoError(t, err, "a malformed plan must not block the diagnosis")

	assert.Empty(t, out.Tasks)
	assert.Equal(t, "Leaf spot detected.", out.Record.RawAIText)
}

func TestTimelineReturnsRecordWithMessages(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	out, err := svc.Analyze(ctx, diagnosis.AnalyzeInput{
		UserID:     "farmer-1",
		Title:      "Rice paddy",
		ImageBytes: []byte("img"),
	})
	require.NoError(t, err)

	rec, msgs, err := svc.Timeline(ctx, "farmer-1", out.Record.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, out.Record.ID, rec.ID)
	assert.Len(t, msgs, 1)

	// Records are scoped to their owner.
	_, _, err = svc.Timeline(ctx, "someone-else", out.Record.ID, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
