package ai

import (
	"context"
	"fmt"

	"github.com/spigell/companyfit/internal/companies"
)

// Request carries everything a scorer needs to evaluate one company
// against a job description.
type Request struct {
	// Job is the free-form description of the position.
	Job string
	// Company is the dataset record under evaluation.
	Company *companies.Company
}

// Usage holds the token counts reported by the provider for one request.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Assessment is the outcome of scoring a single company. Instances are
// immutable once returned by a scorer.
type Assessment struct {
	// Company is the record's name.
	Company string `json:"company"`
	// Score is the model's fit estimate, always within [0, 100].
	Score float64 `json:"score"`
	// Explanation is the model's short justification.
	Explanation string `json:"explanation"`
	// Usage is the token consumption of the underlying request.
	Usage Usage `json:"usage"`
	// Cost is the estimated price of the request in USD.
	Cost float64 `json:"cost"`
	// Raw is the unmodified model reply, kept for debugging.
	Raw string `json:"raw,omitempty"`
}

// Scorer evaluates how well a company matches a job description.
type Scorer interface {
	Score(ctx context.Context, req *Request) (*Assessment, error)
}

// ParseError reports a model reply that could not be turned into a valid
// assessment. It marks the failure as non-retryable: the same prompt would
// most likely produce the same malformed answer.
type ParseError struct {
	// Reason describes what was wrong with the reply.
	Reason string
	// Raw is the reply that failed to parse.
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing model reply: %s", e.Reason)
}
