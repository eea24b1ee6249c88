package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/model"
)

// Version is set at build time via -ldflags
var Version = "v0.3.0"

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "citecheck",
	Short: "citecheck - citation claim extraction and verdict benchmarking",
	Long: `citecheck locates the claim a citation marker supports, asks a language
model whether the cited source supports it, and scores the model's verdicts
against a ground-truth dataset.

Verdicts are one of: Supported, Partially supported, Not supported,
Source unavailable.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("citecheck " + Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.citecheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console, json")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

// envKeys are the config keys readable from CITECHECK_* variables
var envKeys = []string{
	"llm.provider",
	"llm.model",
	"llm.api_key",
	"llm.base_url",
	"http.user_agent",
	"http.http_proxy",
	"http.https_proxy",
	"http.no_proxy",
	"cache.dir",
	"cache.enabled",
	"concurrency.workers",
	"log.level",
	"log.format",
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".citecheck"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CITECHECK_LLM_PROVIDER maps to llm.provider
	viper.SetEnvPrefix("CITECHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and environment over the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the command logger from config
func newLogger(cfg *model.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return logger, nil
}

// newVerifier builds the verifier, filling credentials from provider env vars
func newVerifier(cfg *model.Config) (*llm.Verifier, error) {
	config := llm.ApplyEnv(llm.ConfigFromModel(cfg))
	if config.Provider == "" {
		return nil, fmt.Errorf("no LLM provider configured (set llm.provider, CITECHECK_LLM_PROVIDER or --provider)")
	}

	verifier, err := llm.NewVerifier(config)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	return verifier, nil
}

var (
	llmProvider string
	llmModel    string
)

// addLLMFlags registers provider overrides on a command
func addLLMFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&llmProvider, "provider", "", "LLM provider (openai, anthropic, ollama)")
	cmd.Flags().StringVar(&llmModel, "model", "", "LLM model name")
}

// applyLLMFlags lets command flags win over config and environment
func applyLLMFlags(cfg *model.Config) {
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}
