package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/companyfit/internal/ai"
	"github.com/spigell/companyfit/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.5-flash"

	defaultTemperature = 0.7
)

// chatSession is the part of genai.Chat the generator uses.
type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// chatCreator is the part of genai.Chats the generator uses.
type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (g *genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	return g.chats.Create(ctx, model, config, history)
}

// Reply is a single model answer together with its token accounting.
type Reply struct {
	Text  string
	Usage ai.Usage
}

// Generator wraps the Google GenAI client for single-shot prompt exchanges.
// It performs exactly one request per call; retry decisions belong to the
// caller.
type Generator struct {
	chats       chatCreator
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, log *zap.Logger, apiKey, model string) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}

	return &Generator{
		chats:       &genaiChats{chats: client.Chats},
		model:       model,
		temperature: defaultTemperature,
		logger:      logger.WithCommonFields(log, "gemini", model),
	}, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// GenerateContent sends one user message with the given system instruction
// and returns the concatenated text of all reply parts plus token usage.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (*Reply, error) {
	if g == nil || g.chats == nil {
		return nil, errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errors.New("message must not be empty")
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](g.temperature),
	}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	chat, err := g.chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	reply := &Reply{Text: collectText(resp)}
	if reply.Text == "" {
		return nil, errors.New("gemini api returned empty response")
	}

	if meta := resp.UsageMetadata; meta != nil {
		reply.Usage = ai.Usage{
			PromptTokens: int(meta.PromptTokenCount),
			OutputTokens: int(meta.CandidatesTokenCount),
			TotalTokens:  int(meta.TotalTokenCount),
		}
	}

	g.logger.Debug("gemini reply received",
		zap.Int("prompt_tokens", reply.Usage.PromptTokens),
		zap.Int("output_tokens", reply.Usage.OutputTokens),
	)

	return reply, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}
