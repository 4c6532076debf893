package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/companyfit/internal/ai"
	"github.com/spigell/companyfit/internal/logger"
	"github.com/spigell/companyfit/internal/pricing"
	"github.com/spigell/companyfit/internal/utils"
	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const (
	systemPromptTemplate = "You are a technical recruiter specializing in {{JOB}} positions."

	defaultMaxLogLength = 200
)

// contentGenerator is the transport seam the scorer talks through.
type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (*Reply, error)
	Model() string
}

// Scorer renders a prompt for one company, sends it through the generator
// and parses the reply into an assessment.
type Scorer struct {
	generator contentGenerator
	prices    pricing.Table
	logger    *zap.Logger
	maxLogLen int
}

func NewScorer(generator contentGenerator, log *zap.Logger, prices pricing.Table, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	if prices == nil {
		prices = pricing.Default()
	}

	return &Scorer{
		generator: generator,
		prices:    prices,
		logger:    logger.WithFields(log),
		maxLogLen: maxLogLength,
	}
}

// Score evaluates a single company against the job description. Replies
// that cannot be parsed into an in-range score return *ai.ParseError.
func (s *Scorer) Score(ctx context.Context, req *ai.Request) (*ai.Assessment, error) {
	if req == nil || req.Company == nil {
		return nil, errors.New("request with a company is required")
	}

	job := strings.TrimSpace(req.Job)
	if job == "" {
		return nil, errors.New("job description must not be empty")
	}

	payload, err := req.Company.PromptPayload()
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(job, payload)
	system := strings.ReplaceAll(systemPromptTemplate, "{{JOB}}", job)

	s.logger.Debug("gemini score request",
		logger.Company(req.Company.Name),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	reply, err := s.generator.GenerateContent(ctx, system, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini score response",
		logger.Company(req.Company.Name),
		zap.Int("response_length", utf8.RuneCountInString(reply.Text)),
		zap.String("response_preview", utils.TruncateForLog(reply.Text, s.maxLogLen)),
	)

	score, explanation, err := parseAssessment(reply.Text)
	if err != nil {
		return nil, err
	}

	return &ai.Assessment{
		Company:     req.Company.Name,
		Score:       score,
		Explanation: explanation,
		Usage:       reply.Usage,
		Cost:        s.prices.Estimate(s.generator.Model(), reply.Usage.PromptTokens, reply.Usage.OutputTokens),
		Raw:         reply.Text,
	}, nil
}

func buildPrompt(job, companyJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job: {{JOB}}\n\nCompany:\n{{COMPANY_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{JOB}}", job)
	prompt = strings.ReplaceAll(prompt, "{{COMPANY_JSON}}", companyJSON)
	return prompt
}

func parseAssessment(raw string) (float64, string, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return 0, "", &ai.ParseError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: raw}
	}

	score, ok := coerceFloat(data["score"])
	if !ok {
		return 0, "", &ai.ParseError{Reason: "missing or non-numeric score", Raw: raw}
	}

	if score < 0 || score > 100 {
		return 0, "", &ai.ParseError{Reason: fmt.Sprintf("score %v out of range [0, 100]", score), Raw: raw}
	}

	return score, coerceString(data["explanation"]), nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
