package research

import (
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/splitter"
)

// Pipeline bundles an engine with the completer used for its final report.
type Pipeline struct {
	Engine    *ResearchEngine
	Completer *ModelCompleter
}

// NewPipeline wires model, planner, synthesizer and search provider from cfg.
// logger is shared by every component; nil means slog.Default().
func NewPipeline(cfg *config.Config, llm llms.Model, provider search.Provider, logger *slog.Logger) (*Pipeline, error) {
	engineCfg, err := ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	completer := NewModelCompleter(llm, cfg.LLMTemperature)
	completer.Logger = logger

	planner := NewLLMPlanner(completer)
	planner.Logger = logger

	synth := NewLLMSynthesizer(completer)
	synth.Logger = logger
	if cfg.ContentMaxChunks > 0 && cfg.ContentChunkSize > 0 {
		synth.Splitter = splitter.NewRecursiveCharacterTextSplitter(cfg.ContentChunkSize, 0)
		synth.MaxChunks = cfg.ContentMaxChunks
	}

	engine := NewEngine(engineCfg, planner, synth, provider)
	engine.Logger = logger

	return &Pipeline{Engine: engine, Completer: completer}, nil
}
