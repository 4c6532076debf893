package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/companyfit/internal/ai"
	"github.com/spigell/companyfit/internal/companies"
	"github.com/spigell/companyfit/internal/logger"
	"github.com/spigell/companyfit/internal/utils"
	"go.uber.org/zap"
)

const (
	// DefaultBatchSize is the number of companies scored between pauses.
	DefaultBatchSize = 10
	// DefaultBatchDelay is the pause between consecutive batches.
	DefaultBatchDelay = 2 * time.Second
	// DefaultRetryDelay is the pause before the single retry of a failed
	// request.
	DefaultRetryDelay = 2 * time.Second
)

// wait is stubbed in tests.
var wait = utils.WaitFor

// Runner drives a whole dataset through a scorer, batch by batch.
type Runner struct {
	scorer ai.Scorer
	logger *zap.Logger

	// BatchSize, BatchDelay and RetryDelay override the defaults when set
	// before Run is called.
	BatchSize  int
	BatchDelay time.Duration
	RetryDelay time.Duration
}

func NewRunner(scorer ai.Scorer, log *zap.Logger) *Runner {
	return &Runner{
		scorer:     scorer,
		logger:     logger.WithFields(log),
		BatchSize:  DefaultBatchSize,
		BatchDelay: DefaultBatchDelay,
		RetryDelay: DefaultRetryDelay,
	}
}

// Run scores every company in the list against the job description and
// returns the accumulated results in dataset order. Companies that keep
// failing are skipped with a warning; only context cancellation aborts
// the run.
func (r *Runner) Run(ctx context.Context, job string, list *companies.Companies) (*Results, error) {
	if strings.TrimSpace(job) == "" {
		return nil, errors.New("job description must not be empty")
	}

	results := &Results{}
	if list == nil || list.Len() == 0 {
		r.logger.Info("nothing to score")
		return results, nil
	}

	batches := chunkCompanies(list.Items, r.BatchSize)
	r.logger.Info("starting scoring run",
		zap.Int("companies", list.Len()),
		zap.Int("batches", len(batches)),
	)

	for idx, batch := range batches {
		num := idx + 1
		r.logger.Info("processing batch",
			zap.Int("batch", num),
			zap.Int("size", len(batch)),
		)

		for _, company := range batch {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			assessment, err := r.scoreWithRetry(ctx, job, company)
			if err != nil {
				if ctx.Err() != nil {
					return results, ctx.Err()
				}

				r.logger.Warn("skipping company",
					logger.Company(company.Name),
					zap.Error(err),
				)
				continue
			}

			results.Add(assessment)
		}

		r.logger.Info("batch done",
			zap.Int("batch", num),
			zap.Int("scored", results.Len()),
			zap.Float64("estimated_cost_usd", results.TotalCost),
		)

		if num < len(batches) {
			if err := wait(ctx, r.BatchDelay); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}

// scoreWithRetry performs one scoring request with a single retry after
// RetryDelay. Parse errors are never retried: the model already answered,
// just not in a usable form.
func (r *Runner) scoreWithRetry(ctx context.Context, job string, company *companies.Company) (*ai.Assessment, error) {
	assessment, err := r.scorer.Score(ctx, &ai.Request{Job: job, Company: company})
	if err == nil {
		return assessment, nil
	}

	var parseErr *ai.ParseError
	if errors.As(err, &parseErr) {
		return nil, err
	}

	r.logger.Warn("retrying company after error",
		logger.Company(company.Name),
		zap.Error(err),
	)

	if werr := wait(ctx, r.RetryDelay); werr != nil {
		return nil, werr
	}

	assessment, retryErr := r.scorer.Score(ctx, &ai.Request{Job: job, Company: company})
	if retryErr != nil {
		return nil, fmt.Errorf("retry failed: %w", retryErr)
	}

	return assessment, nil
}

// chunkCompanies splits the list into consecutive slices of at most size
// items. The last chunk may be shorter.
func chunkCompanies(items []*companies.Company, size int) [][]*companies.Company {
	if size <= 0 {
		size = DefaultBatchSize
	}

	var chunks [][]*companies.Company
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
