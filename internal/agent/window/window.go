// Package window keeps one run's context log under the model's token
// budget. Token counts are estimated from character counts; when usage
// crosses the compaction threshold the older portion of the log is
// replaced with a model-generated summary, keeping the most recent
// entries verbatim. Raw truncation is the fallback when no summarizer
// is available or the summary call fails.
package window

import (
	"context"
	"strings"

	"github.com/TannerBurns/termai/internal/agent/contextlog"
	"github.com/TannerBurns/termai/internal/config"
	"github.com/TannerBurns/termai/internal/logging"
	"github.com/TannerBurns/termai/internal/util"
)

// fallbackSummaryChars caps the stand-in summary built by raw
// truncation when the model summarizer is unavailable.
const fallbackSummaryChars = 2000

// Summarizer produces a short summary of older context log text.
// Implemented by the model client; tests substitute a scripted one.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, text string) (string, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Config holds the window manager's tunables.
type Config struct {
	// MaxChars is the character capacity of the context window.
	MaxChars int

	// CharsPerToken is the divisor for estimating tokens from characters.
	CharsPerToken int

	// KeepRecent is how many recent entries survive compaction verbatim.
	KeepRecent int

	// CompactThreshold is the usage fraction that triggers compaction.
	CompactThreshold float64
}

// CompactionResult describes what EnsureBudget did.
type CompactionResult struct {
	// Compacted is true when entries were removed.
	Compacted bool

	// Removed and Kept count log entries after a compaction.
	Removed int
	Kept    int

	// Summarized is true when the summary came from the model rather
	// than the truncation fallback.
	Summarized bool

	// UsageBefore is the usage fraction that triggered the compaction.
	UsageBefore float64
}

// Manager estimates token pressure for a context log and compacts it
// when the budget is nearly exhausted.
type Manager struct {
	config     Config
	summarizer Summarizer
	logger     *logging.Logger
}

// NewManager creates a window manager. A nil summarizer is allowed:
// compaction then always uses the truncation fallback.
func NewManager(cfg Config, summarizer Summarizer, logger *logging.Logger) *Manager {
	if cfg.CharsPerToken < 1 {
		cfg.CharsPerToken = 4
	}
	if cfg.CompactThreshold <= 0 || cfg.CompactThreshold > 1 {
		cfg.CompactThreshold = 0.95
	}
	if cfg.KeepRecent < 1 {
		cfg.KeepRecent = 12
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{
		config:     cfg,
		summarizer: summarizer,
		logger:     logger,
	}
}

// NewManagerFromConfig creates a window manager from application config.
func NewManagerFromConfig(appCfg *config.Config, summarizer Summarizer, logger *logging.Logger) *Manager {
	cfg := Config{}
	if appCfg != nil {
		cfg.MaxChars = appCfg.Context.MaxChars
		cfg.CharsPerToken = appCfg.Context.CharsPerToken
		cfg.KeepRecent = appCfg.Context.KeepRecent
		cfg.CompactThreshold = appCfg.Context.CompactThreshold
	}
	return NewManager(cfg, summarizer, logger)
}

// TokenLimit returns the estimated token capacity of the window.
func (m *Manager) TokenLimit() int {
	return m.config.MaxChars / m.config.CharsPerToken
}

// EstimatedTokens estimates the token count of the full log, rounding up.
func (m *Manager) EstimatedTokens(log *contextlog.Log) int {
	chars := log.Chars()
	return (chars + m.config.CharsPerToken - 1) / m.config.CharsPerToken
}

// Usage returns the fraction of the window the log occupies. Returns 0
// when no budget is configured.
func (m *Manager) Usage(log *contextlog.Log) float64 {
	if m.config.MaxChars <= 0 {
		return 0
	}
	return float64(log.Chars()) / float64(m.config.MaxChars)
}

// NeedsCompaction reports whether usage has crossed the threshold.
func (m *Manager) NeedsCompaction(log *contextlog.Log) bool {
	if m.config.MaxChars <= 0 {
		return false
	}
	return m.Usage(log) > m.config.CompactThreshold
}

// EnsureBudget compacts the log if usage has crossed the threshold.
// Older entries are replaced with one summary record; the most recent
// Config.KeepRecent entries are preserved verbatim. Compaction never
// errors: a failed or missing summarizer degrades to raw truncation of
// the older text. The returned result says what, if anything, happened.
func (m *Manager) EnsureBudget(ctx context.Context, log *contextlog.Log) CompactionResult {
	usage := m.Usage(log)
	if !m.NeedsCompaction(log) {
		return CompactionResult{}
	}
	if log.Len() <= m.config.KeepRecent {
		// Nothing older than the verbatim tail to compact away.
		return CompactionResult{}
	}

	olderText := m.olderText(log)
	summary, summarized := m.summarize(ctx, olderText)

	removed := log.Compact(summary, m.config.KeepRecent)
	if removed == 0 {
		return CompactionResult{}
	}

	m.logger.Info("context log compacted",
		"removed", removed,
		"kept", log.Len()-1,
		"summarized", summarized,
		"usage", usage,
	)

	return CompactionResult{
		Compacted:   true,
		Removed:     removed,
		Kept:        log.Len() - 1,
		Summarized:  summarized,
		UsageBefore: usage,
	}
}

// olderText joins the text of every entry that compaction will remove.
func (m *Manager) olderText(log *contextlog.Log) string {
	entries := log.Entries()
	cutoff := len(entries) - m.config.KeepRecent
	if cutoff <= 0 {
		return ""
	}

	var sb strings.Builder
	for i, e := range entries[:cutoff] {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Text)
	}
	return sb.String()
}

// summarize produces the replacement record for the older span. The
// second return value is true when the model produced it.
func (m *Manager) summarize(ctx context.Context, olderText string) (string, bool) {
	if strings.TrimSpace(olderText) == "" {
		return "earlier activity produced no recorded output", false
	}

	if m.summarizer != nil {
		summary, err := m.summarizer.Summarize(ctx, olderText)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary), true
		}
		if err != nil {
			m.logger.Warn("summarizer failed, falling back to truncation", "error", err)
		}
	}

	return util.TruncateMiddle(olderText, fallbackSummaryChars), false
}
