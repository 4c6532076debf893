package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spigell/companyfit/internal/pricing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "companyfit"
)

type Config struct {
	Job          string        `mapstructure:"job"`
	Dataset      string        `mapstructure:"dataset"`
	Output       string        `mapstructure:"output"`
	OutputFormat string        `mapstructure:"output-format"`
	Top          int           `mapstructure:"top"`
	MinScore     float64       `mapstructure:"min-score"`
	Exclude      []string      `mapstructure:"exclude"`
	LogFile      string        `mapstructure:"log-file"`
	Batch        *BatchConfig  `mapstructure:"batch"`
	AI           *AIConfig     `mapstructure:"ai"`
	Pricing      pricing.Table `mapstructure:"pricing"`
}

type BatchConfig struct {
	Size       int           `mapstructure:"size"`
	Delay      time.Duration `mapstructure:"delay"`
	RetryDelay time.Duration `mapstructure:"retry-delay"`
}

type AIConfig struct {
	Model        string `mapstructure:"model"`
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "companyfit scores companies against a job description using Gemini",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.api-key", "GEMINI_API_KEY"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is companyfit.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config matters only for the run command.
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Without an explicit --config the file is optional.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
