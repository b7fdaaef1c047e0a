package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/search"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	cfg := config.Load()

	var (
		query       string
		output      string
		sourcesPath string
		breadth     int
		depth       int
	)

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "Recursive web research that ends in a Markdown report",
		Long: `deep-research expands a question into a tree of search queries, extracts
findings from every result page, follows up on what it learns, and writes a
final report with the sources it consulted.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile, err := os.Create(cfg.LogFile)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer logFile.Close()
			logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, logFile), nil))
			slog.SetDefault(logger)

			if !cmd.Flags().Changed("query") {
				// Interactive Mode
				fmt.Print("What would you like to research? ")
				input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				query = strings.TrimSpace(input)
			}
			if query == "" {
				return fmt.Errorf("query cannot be empty")
			}

			cfg.MaxBreadth, cfg.MaxDepth = breadth, depth
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			llm, err := clients.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create LLM client: %w", err)
			}
			provider, err := search.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create search provider: %w", err)
			}
			pipeline, err := research.NewPipeline(cfg, llm, provider, logger)
			if err != nil {
				return fmt.Errorf("failed to init engine: %w", err)
			}

			res := pipeline.Engine.Run(ctx, query, breadth, depth)

			logger.Info("Writing final report", "findings", len(res.Findings), "visited_urls", len(res.VisitedURLs))
			report, err := research.WriteReport(ctx, pipeline.Completer, query, res.Findings, res.VisitedURLs)
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, []byte(report+"\n"), 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			logger.Info("Report saved", "path", output)

			if sourcesPath != "" {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode sources: %w", err)
				}
				if err := os.WriteFile(sourcesPath, data, 0o644); err != nil {
					return fmt.Errorf("failed to write sources: %w", err)
				}
				logger.Info("Sources saved", "path", sourcesPath)
			}
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&query, "query", "q", "", "The research question")
	flags.StringVarP(&output, "output", "o", "report.md", "Where to write the Markdown report")
	flags.StringVar(&sourcesPath, "sources", "", "Optional path for a JSON dump of findings and visited URLs")
	flags.IntVar(&breadth, "breadth", cfg.MaxBreadth, "Sub-queries planned at the root level")
	flags.IntVar(&depth, "depth", cfg.MaxDepth, "Levels of follow-up research")
	flags.IntVar(&cfg.ConcurrencyLimit, "concurrency", cfg.ConcurrencyLimit, "Maximum branches in flight")
	flags.StringVar(&cfg.SlotPolicy, "slot-policy", cfg.SlotPolicy, "When a branch frees its slot: level or subtree")
	flags.StringVar(&cfg.LLMProvider, "llm-provider", cfg.LLMProvider, "Language model provider: google, openai or anthropic")
	flags.StringVar(&cfg.LLMModel, "llm-model", cfg.LLMModel, "Model name for the chosen provider")
	flags.StringVar(&cfg.LLMBaseURL, "llm-base-url", cfg.LLMBaseURL, "Base URL for OpenAI compatible endpoints")
	flags.StringVar(&cfg.LLMApiKey, "llm-api-key", cfg.LLMApiKey, "API key for the language model")
	flags.StringVar(&cfg.SearchProvider, "search-provider", cfg.SearchProvider, "Search provider: firecrawl or arxiv")
	flags.StringVar(&cfg.FirecrawlBaseURL, "firecrawl-base-url", cfg.FirecrawlBaseURL, "Firecrawl API base URL")
	flags.StringVar(&cfg.FirecrawlApiKey, "firecrawl-api-key", cfg.FirecrawlApiKey, "Firecrawl API key")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file, truncated on every run")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
