package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spigell/companyfit/internal/ai"
	"github.com/spigell/companyfit/internal/ai/gemini"
	"github.com/spigell/companyfit/internal/companies"
	"github.com/spigell/companyfit/internal/export"
	"github.com/spigell/companyfit/internal/logger"
	"github.com/spigell/companyfit/internal/pricing"
	"github.com/spigell/companyfit/internal/scoring"
	"github.com/spigell/companyfit/internal/secrets"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptShowAll     = "Show all results"
	PromptExportOther = "Export the other format"
	PromptDumpRaw     = "Dump raw assessments to file"
	PromptExit        = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowAll, PromptExportOther, PromptDumpRaw, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score every company in the dataset against a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("job", "", "job title to score companies against (required)")
	runCmd.Flags().Int("batch-size", scoring.DefaultBatchSize, "number of companies per batch")
	runCmd.Flags().String("model", gemini.DefaultModel, "gemini model to use")
	runCmd.Flags().String("output-format", string(export.FormatJSON), "output format: json or csv")
	runCmd.Flags().String("dataset", "companies.json", "path to the companies dataset")
	runCmd.Flags().String("output", "", "output file (default sorted_company_scores.<format>)")
	runCmd.Flags().Int("top", 10, "how many top companies to print")
	runCmd.Flags().BoolP("interactive", "i", false, "offer a menu after the run")

	viper.BindPFlag("job", runCmd.Flags().Lookup("job"))
	viper.BindPFlag("batch.size", runCmd.Flags().Lookup("batch-size"))
	viper.BindPFlag("ai.model", runCmd.Flags().Lookup("model"))
	viper.BindPFlag("output-format", runCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("dataset", runCmd.Flags().Lookup("dataset"))
	viper.BindPFlag("output", runCmd.Flags().Lookup("output"))
	viper.BindPFlag("top", runCmd.Flags().Lookup("top"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), viper.GetString("log-file"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting companyfit", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	job := strings.TrimSpace(config.Job)
	if job == "" {
		logger.Fatal("job title is required",
			zap.String("hint", "pass --job or set the 'job' key in the configuration file"),
		)
	}

	format, err := export.ParseFormat(config.OutputFormat)
	if err != nil {
		logger.Fatal("parsing output format", zap.Error(err))
	}

	batchSize := scoring.DefaultBatchSize
	if config.Batch != nil {
		batchSize = config.Batch.Size
	}
	if batchSize <= 0 {
		logger.Fatal("batch size must be positive", zap.Int("batch_size", batchSize))
	}

	apiKey, err := resolveAPIKey(config)
	if err != nil {
		logger.Fatal("loading gemini api key",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY environment variable or the 'ai.api-key-file' key in the configuration file"),
		)
	}

	list, err := companies.Load(config.Dataset)
	if err != nil {
		logger.Fatal("loading companies dataset", zap.Error(err))
	}

	logger.Info("loaded companies", zap.Int("count", list.Len()), zap.String("dataset", config.Dataset))

	if excluded := list.Exclude(config.Exclude); len(excluded) > 0 {
		logger.Info("excluded companies", zap.Strings("names", excluded))
	}

	if list.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no companies to score"))
		return
	}

	model := gemini.DefaultModel
	if config.AI != nil && config.AI.Model != "" {
		model = config.AI.Model
	}

	generator, err := gemini.NewGenerator(ctx, logger, apiKey, model)
	if err != nil {
		logger.Fatal("creating gemini client", zap.Error(err))
	}

	prices := pricing.Default()
	if len(config.Pricing) > 0 {
		prices = prices.Merge(config.Pricing)
	}

	if _, ok := prices.Lookup(generator.Model()); !ok {
		logger.Warn("no pricing for model, cost estimates will be zero",
			zap.String("model", generator.Model()),
		)
	}

	maxLogLength := 0
	if config.AI != nil {
		maxLogLength = config.AI.MaxLogLength
	}

	scorer := gemini.NewScorer(generator, logger, prices, maxLogLength)

	runner := scoring.NewRunner(scorer, logger)
	runner.BatchSize = batchSize
	if config.Batch != nil {
		if config.Batch.Delay > 0 {
			runner.BatchDelay = config.Batch.Delay
		}
		if config.Batch.RetryDelay > 0 {
			runner.RetryDelay = config.Batch.RetryDelay
		}
	}

	results, err := runner.Run(ctx, job, list)
	if err != nil {
		logger.Fatal("scoring run failed", zap.Error(err))
	}

	if results.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no companies scored"))
		return
	}

	if err := export.Summary(os.Stdout, results, config.Top); err != nil {
		logger.Fatal("printing summary", zap.Error(err))
	}

	exported := export.Filter(results.Ranked(), config.MinScore)
	if dropped := results.Len() - len(exported); dropped > 0 {
		logger.Info("dropped results below minimum score",
			zap.Int("count", dropped),
			zap.Float64("min_score", config.MinScore),
		)
	}

	output := strings.TrimSpace(config.Output)
	if output == "" {
		output = format.DefaultOutput()
	}

	if err := export.ToFile(output, format, exported); err != nil {
		logger.Fatal("writing results", zap.Error(err))
	}

	logger.Info("results saved", zap.String("filename", output), zap.Int("count", len(exported)))

	interactive, _ := cmd.Flags().GetBool("interactive")
	if !interactive {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, results, format, exported); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, results *scoring.Results, format export.Format, exported []*ai.Assessment) error {
	switch action {
	case PromptShowAll:
		return export.Write(os.Stdout, export.FormatJSON, results.Ranked())
	case PromptExportOther:
		other := export.FormatCSV
		if format == export.FormatCSV {
			other = export.FormatJSON
		}

		path := other.DefaultOutput()
		if err := export.ToFile(path, other, exported); err != nil {
			return err
		}

		logger.Info("results saved", zap.String("filename", path))
		return nil
	case PromptDumpRaw:
		filename, err := results.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}

		logger.Info("dumping results to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func resolveAPIKey(config *Config) (string, error) {
	if config == nil {
		return "", errors.New("config is required")
	}

	src := secrets.Source{Name: "gemini api key"}
	if config.AI != nil {
		src.Value = config.AI.APIKey
		src.File = config.AI.APIKeyFile
	}

	if strings.TrimSpace(src.Value) == "" && strings.TrimSpace(src.File) == "" {
		src.Value = viper.GetString("ai.api-key")
	}

	return secrets.Load(src)
}
