package llm

import (
	"context"
	"fmt"

	"github.com/Shivaya007/CROP-AI/internal/domain"
)

// MockLLM is a canned inference client for local mode and tests.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	return `Crop: Tomato.
- Disease: early blight on lower leaves.
- Treatment: remove affected leaves, improve airflow.
~&^~Treatment Plan~&^~
~$%~[{"Day 1":"Water the plant"},{"Day 2":"Apply fungicide"},{"Day 3":"Check new growth"}]~$%~`, nil
}

func (m *MockLLM) GenerateReply(ctx context.Context, history []*domain.ChatMessage, newTurn string) (string, error) {
	return fmt.Sprintf("You asked %q. With %d earlier messages in this thread, keep monitoring the crop and follow the care plan.", newTurn, len(history)), nil
}
