package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/Shivaya007/CROP-AI/internal/domain"
)

// GeminiClient implements domain.LLMClient over the Gemini API. It
// supports both the API-key backend (generativelanguage) and Vertex AI.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

type GeminiConfig struct {
	// APIKey selects the Gemini API backend when set; otherwise
	// Project and Location select Vertex AI.
	APIKey    string
	ProjectID string
	Location  string
	ModelName string
}

// NewGeminiClient creates the inference client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	var clientCfg *genai.ClientConfig
	switch {
	case cfg.APIKey != "":
		clientCfg = &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
	case cfg.ProjectID != "" && cfg.Location != "":
		clientCfg = &genai.ClientConfig{
			Project:  cfg.ProjectID,
			Location: cfg.Location,
			Backend:  genai.BackendVertexAI,
		}
	default:
		return nil, fmt.Errorf("either an API key or project and location must be set")
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// AnalyzeImage sends the crop photo inline with the analysis prompt
// and returns the model's free-form report.
func (g *GeminiClient) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(AnalysisPrompt()),
		}, genai.RoleUser),
	}

	return g.generate(ctx, contents)
}

// GenerateReply resends the full ordered history plus the new turn.
// The endpoint keeps no session state.
func (g *GeminiClient) GenerateReply(ctx context.Context, history []*domain.ChatMessage, newTurn string) (string, error) {
	var contents []*genai.Content
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(newTurn, genai.RoleUser))

	return g.generate(ctx, contents)
}

func (g *GeminiClient) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	temp := float32(0.7)
	topP := float32(0.9)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: 8192,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}
