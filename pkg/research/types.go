package research

import (
	"fmt"
	"slices"
	"time"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/search"
)

// SlotPolicy controls how long a branch keeps its concurrency slot.
type SlotPolicy int

const (
	// SlotPerLevel releases the slot once the branch's own search and
	// synthesis are done, before it recurses.
	SlotPerLevel SlotPolicy = iota
	// SlotPerSubtree holds the slot until the branch's whole sub-tree has
	// returned. Capacity must cover the tree's depth or branches can starve
	// waiting on slots held by their own ancestors.
	SlotPerSubtree
)

func (p SlotPolicy) String() string {
	switch p {
	case SlotPerLevel:
		return config.SlotPolicyLevel
	case SlotPerSubtree:
		return config.SlotPolicySubtree
	default:
		return "unknown"
	}
}

func ParseSlotPolicy(s string) (SlotPolicy, error) {
	switch s {
	case config.SlotPolicyLevel, "":
		return SlotPerLevel, nil
	case config.SlotPolicySubtree:
		return SlotPerSubtree, nil
	default:
		return 0, fmt.Errorf("unknown slot policy: %s", s)
	}
}

// Config holds engine runtime configuration
type Config struct {
	Concurrency  int
	Search       search.Options
	MaxLearnings int
	SlotPolicy   SlotPolicy
	// Timeout bounds a whole Run. Zero means no deadline.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency:  8,
		Search:       search.DefaultOptions(),
		MaxLearnings: 3,
		SlotPolicy:   SlotPerLevel,
	}
}

// ConfigFrom maps application config onto engine config.
func ConfigFrom(cfg *config.Config) (Config, error) {
	policy, err := ParseSlotPolicy(cfg.SlotPolicy)
	if err != nil {
		return Config{}, err
	}
	out := DefaultConfig()
	out.Concurrency = cfg.ConcurrencyLimit
	out.MaxLearnings = cfg.MaxLearnings
	out.SlotPolicy = policy
	out.Timeout = cfg.ResearchTimeout
	if cfg.SearchTimeout > 0 {
		out.Search.Timeout = cfg.SearchTimeout
	}
	if cfg.SearchLimit > 0 {
		out.Search.Limit = cfg.SearchLimit
	}
	return out, nil
}

// SubQuery is one planned search query and the goal it serves.
type SubQuery struct {
	Query        string `json:"query"`
	ResearchGoal string `json:"research_goal"`
}

// Synthesis is what the synthesizer extracts from one query's results.
type Synthesis struct {
	Findings          []string `json:"findings"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// Result is returned by every level of the research tree.
type Result struct {
	Findings    []string `json:"findings"`
	VisitedURLs []string `json:"visited_urls"`
}

// Merge concatenates results and drops duplicate findings and URLs by exact
// text. First occurrence order is kept.
func Merge(results ...Result) Result {
	var findings, urls []string
	for _, r := range results {
		findings = append(findings, r.Findings...)
		urls = append(urls, r.VisitedURLs...)
	}
	return Result{Findings: dedupe(findings), VisitedURLs: dedupe(urls)}
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// concat always allocates so siblings never share a backing array.
func concat(a, b []string) []string {
	return slices.Concat(a, b)
}

// Progress is reported as branches finish their own work.
type Progress struct {
	Depth            int    `json:"depth"`
	Breadth          int    `json:"breadth"`
	TotalQueries     int    `json:"total_queries"`
	CompletedQueries int    `json:"completed_queries"`
	CurrentQuery     string `json:"current_query,omitempty"`
}
