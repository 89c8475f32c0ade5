package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultChatModelName = "gemini-2.0-flash"

// LLMService sends single prompts to Gemini. It keeps no conversation state
// and never retries.
type LLMService struct {
	client    *genai.Client
	modelName string
	logger    *slog.Logger
}

func NewLLMService(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*LLMService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if modelName == "" {
		modelName = defaultChatModelName
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &LLMService{
		client:    client,
		modelName: modelName,
		logger:    logger.With(slog.String("service", "llm")),
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Error("error closing GenAI client", slog.Any("error", err))
		} else {
			s.logger.Info("GenAI client closed")
		}
	}
}

// Generate returns "" without an error when Gemini answers with no text.
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	model := s.client.GenerativeModel(s.modelName)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini GenerateContent failed: %w", err)
	}
	return responseText(resp, s.logger), nil
}

func responseText(resp *genai.GenerateContentResponse, logger *slog.Logger) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		logger.Warn("gemini response was empty or had no valid candidates/parts")
		return ""
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			logger.Debug("skipping non-text gemini response part", slog.String("type", fmt.Sprintf("%T", part)))
		}
	}
	return text.String()
}
