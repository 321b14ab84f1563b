package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"featureforge/internal/config"
	"featureforge/internal/llm"
	"featureforge/internal/pipeline"
	"featureforge/internal/table"
)

var (
	// Global flags
	verbose    bool
	configPath string
	apiKey     string
	provider   string
	model      string

	// Logger
	logger *zap.Logger

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "featureforge - LLM-driven feature engineering for tabular data",
	Long: `featureforge turns model conversations into executed table
transformations: it profiles a dataset, asks a model for feature
engineering suggestions, turns each suggestion into a Go function, and
runs that function in an isolated interpreter with safety screening and
one automatic repair attempt.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if apiKey != "" {
			cfg.LLM.APIKey = apiKey
		}
		if provider != "" {
			cfg.LLM.Provider = provider
		}
		if model != "" {
			cfg.LLM.Model = model
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var (
	taskDescription string
	targetColumn    string
	background      string
	suggestionsPath string
	outputPath      string
	keepOriginal    bool
	iterations      int
)

// suggestCmd asks the model for feature suggestions
var suggestCmd = &cobra.Command{
	Use:   "suggest [dataset.csv]",
	Short: "Ask the model for feature engineering suggestions",
	Long: `Profiles the dataset, sends the profile and a small sample to the
model, and saves the parsed suggestions as JSON.

Example:
  forge suggest train.csv --task "predict churn" --target churned -o suggestions.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

// implementCmd executes stored suggestions against a dataset
var implementCmd = &cobra.Command{
	Use:   "implement [dataset.csv]",
	Short: "Implement saved suggestions and write the transformed dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runImplement,
}

// customCmd builds one feature from a free-text description
var customCmd = &cobra.Command{
	Use:   "custom [dataset.csv] [description]",
	Short: "Create a single feature from a natural language description",
	Args:  cobra.ExactArgs(2),
	RunE:  runCustom,
}

// analyzeCmd profiles a dataset without calling a model
var analyzeCmd = &cobra.Command{
	Use:   "analyze [dataset.csv]",
	Short: "Profile a dataset: kinds, correlations, skew, and rule-based hints",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

// benchmarkCmd times one suggestion's implementation
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark [dataset.csv] [suggestion-id]",
	Short: "Benchmark a saved suggestion's implementation",
	Args:  cobra.ExactArgs(2),
	RunE:  runBenchmark,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "forge.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Model API key (or set FORGE_API_KEY env)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "Model provider: openai or gemini")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model name override")

	suggestCmd.Flags().StringVar(&taskDescription, "task", "", "Task description (required)")
	suggestCmd.Flags().StringVar(&targetColumn, "target", "", "Target column name")
	suggestCmd.Flags().StringVar(&background, "background", "", "Dataset background information")
	suggestCmd.Flags().StringVarP(&suggestionsPath, "output", "o", "suggestions.json", "Where to save suggestions")
	_ = suggestCmd.MarkFlagRequired("task")

	implementCmd.Flags().StringVarP(&suggestionsPath, "suggestions", "s", "suggestions.json", "Suggestions file")
	implementCmd.Flags().StringVarP(&outputPath, "output", "o", "transformed.csv", "Where to write the transformed dataset")
	implementCmd.Flags().BoolVar(&keepOriginal, "keep-original", true, "Keep original columns after transformation")

	customCmd.Flags().StringVarP(&outputPath, "output", "o", "transformed.csv", "Where to write the transformed dataset")

	analyzeCmd.Flags().StringVar(&targetColumn, "target", "", "Target column for correlation analysis")

	benchmarkCmd.Flags().StringVarP(&suggestionsPath, "suggestions", "s", "suggestions.json", "Suggestions file")
	benchmarkCmd.Flags().IntVar(&iterations, "iterations", 3, "Benchmark iterations")

	rootCmd.AddCommand(suggestCmd, implementCmd, customCmd, analyzeCmd, benchmarkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadDataset(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return table.ReadCSV(f)
}

func writeDataset(t *table.Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()
	return t.WriteCSV(f)
}

func newPipeline(ctx context.Context, needModel bool) (*pipeline.Pipeline, error) {
	var client llm.Client
	if needModel {
		var err error
		client, err = llm.NewClient(ctx, cfg.LLM.Provider, llm.Options{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLMTimeout(),
		})
		if err != nil {
			return nil, err
		}
	}
	return pipeline.New(client,
		pipeline.WithLogger(logger),
		pipeline.WithExecutionTimeout(cfg.ExecutionTimeout()),
	), nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	df, err := loadDataset(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, err := newPipeline(ctx, true)
	if err != nil {
		return err
	}

	suggestions, err := p.AskForSuggestions(ctx, df, taskDescription, targetColumn, background)
	if err != nil {
		return err
	}
	if err := p.SaveSuggestions(suggestionsPath); err != nil {
		return err
	}

	fmt.Printf("Received %d suggestions, saved to %s\n", len(suggestions), suggestionsPath)
	for _, s := range suggestions {
		fmt.Printf("  [%s] %s\n", s.ID, s.Description)
	}
	return nil
}

func runImplement(cmd *cobra.Command, args []string) error {
	df, err := loadDataset(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, err := newPipeline(ctx, true)
	if err != nil {
		return err
	}
	if _, err := p.LoadSuggestions(suggestionsPath); err != nil {
		return err
	}

	result, records := p.ImplementAll(ctx, df, keepOriginal)
	if err := writeDataset(result, outputPath); err != nil {
		return err
	}

	succeeded := 0
	for _, rec := range records {
		if rec.Succeeded() {
			succeeded++
		}
	}
	fmt.Printf("Implemented %d/%d suggestions, wrote %s\n", succeeded, len(records), outputPath)
	return printJSON(p.GenerateReport(df, result))
}

func runCustom(cmd *cobra.Command, args []string) error {
	df, err := loadDataset(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, err := newPipeline(ctx, true)
	if err != nil {
		return err
	}

	result, rec, err := p.CustomFeatureRequest(ctx, df, args[1])
	if err != nil {
		return err
	}
	if !rec.Succeeded() {
		return fmt.Errorf("feature request failed: %s", rec.Error)
	}
	if err := writeDataset(result, outputPath); err != nil {
		return err
	}
	fmt.Printf("Created features %v, wrote %s\n", rec.NewFeatures, outputPath)
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	df, err := loadDataset(args[0])
	if err != nil {
		return err
	}

	p, err := newPipeline(cmd.Context(), false)
	if err != nil {
		return err
	}
	a := p.Analyzer()

	out := map[string]any{
		"profile":      a.Describe(df),
		"correlations": a.Correlations(df, targetColumn),
		"skewed":       a.SkewedFeatures(df),
		"hints":        a.SuggestTransformations(df),
	}
	return printJSON(out)
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	df, err := loadDataset(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, err := newPipeline(ctx, false)
	if err != nil {
		return err
	}
	if _, err := p.LoadSuggestions(suggestionsPath); err != nil {
		return err
	}

	res, err := p.Benchmark(ctx, df, args[1], iterations)
	if err != nil {
		return err
	}
	return printJSON(res)
}
