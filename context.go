package main

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const (
	contextBarWidth          = 10
	autocompactBufferRatio   = 0.225
	memoryFileOverheadTokens = 20
	fallbackContextSize      = 8192
)

// Context windows for models langchaingo's database does not cover. OpenAI
// models resolve through llms.GetModelContextSize instead.
var extendedModelContextSizes = map[string]int{
	"claude-3-5-sonnet-latest":   200_000,
	"claude-3-5-sonnet":          200_000,
	"claude-3-opus-20240229":     200_000,
	"claude-3-sonnet-20240229":   200_000,
	"claude-3-5-haiku-latest":    200_000,
	"claude-3-haiku-20240307":    200_000,
	"claude-sonnet-4-5-20250929": 200_000,

	"gemini-1.5-flash":        1_000_000,
	"gemini-1.5-flash-latest": 1_000_000,
	"gemini-1.5-pro":          2_000_000,
	"gemini-1.5-pro-latest":   2_000_000,
	"gemini-pro":              1_000_000,
	"gemini-2.0-flash":        1_000_000,
}

var providerContextSizes = map[string]int{
	"anthropic": 200_000,
	"openai":    128_000,
	"googleai":  1_000_000,
}

// ContextInfo is the token budget breakdown shown by /context.
type ContextInfo struct {
	Model              string
	TotalTokens        int
	UsedTokens         int
	SystemPromptTokens int
	SystemToolsTokens  int
	MemoryFilesTokens  int
	MessagesTokens     int
	FreeTokens         int
	AutocompactBuffer  int
}

// GetContextInfo measures the current context usage. The autocompact buffer
// is a fixed share of the window, shrunk when usage already encroaches on it.
func (s *Session) GetContextInfo() ContextInfo {
	info := ContextInfo{
		Model:              s.modelName(),
		TotalTokens:        s.modelContextSize(),
		SystemPromptTokens: s.systemPromptTokens(),
		SystemToolsTokens:  s.toolDefTokens(),
		MemoryFilesTokens:  s.memoryFileTokens(),
		MessagesTokens:     s.historyTokens(),
	}
	info.UsedTokens = info.SystemPromptTokens + info.SystemToolsTokens +
		info.MemoryFilesTokens + info.MessagesTokens

	buffer := int(math.Round(float64(info.TotalTokens) * autocompactBufferRatio))
	if room := info.TotalTokens - info.UsedTokens; buffer > room {
		buffer = max(room, 0)
	}
	info.AutocompactBuffer = buffer
	info.FreeTokens = max(info.TotalTokens-info.UsedTokens-buffer, 0)
	return info
}

func (s *Session) modelName() string {
	if s.config != nil && s.config.Model != "" {
		return s.config.Model
	}
	return "Unknown"
}

// modelContextSize resolves the context window: langchaingo's database
// first, then the extended table, then a provider default.
func (s *Session) modelContextSize() int {
	name := s.modelName()
	// langchaingo answers 2048 for models it does not know
	if size := llms.GetModelContextSize(name); size > 2048 {
		return size
	}
	if size, ok := extendedModelContextSizes[strings.ToLower(name)]; ok {
		return size
	}
	if s.config != nil {
		if size, ok := providerContextSizes[strings.ToLower(s.config.Provider)]; ok {
			return size
		}
	}
	return fallbackContextSize
}

func (s *Session) systemPromptTokens() int {
	if len(s.messages) == 0 || s.messages[0].Role != llms.ChatMessageTypeSystem {
		return 0
	}
	total := 0
	for _, part := range s.messages[0].Parts {
		if tp, ok := part.(llms.TextContent); ok {
			total += s.countTokens(tp.Text)
		}
	}
	return total
}

func (s *Session) toolDefTokens() int {
	if len(s.toolDefs) == 0 {
		return 0
	}
	toolsJSON, err := json.Marshal(s.toolDefs)
	if err != nil {
		return 0
	}
	return s.countTokens(string(toolsJSON))
}

// memoryFileTokens covers AGENTS.md plus files added with AddContextFile,
// with a per-file framing overhead.
func (s *Session) memoryFileTokens() int {
	total := 0
	for path, content := range s.ContextFiles {
		total += s.countTokens(path) + s.countTokens(content) + memoryFileOverheadTokens
	}
	return total
}

// historyTokens counts everything after the system message, including tool
// calls and their responses.
func (s *Session) historyTokens() int {
	total := 0
	for i := 1; i < len(s.messages); i++ {
		for _, part := range s.messages[i].Parts {
			switch p := part.(type) {
			case llms.TextContent:
				total += s.countTokens(p.Text)
			case llms.ToolCall:
				if p.FunctionCall != nil {
					total += s.countTokens(p.FunctionCall.Name)
					total += s.countTokens(p.FunctionCall.Arguments)
				}
			case llms.ToolCallResponse:
				total += s.countTokens(p.Name)
				total += s.countTokens(p.Content)
			}
		}
	}
	return total
}

// countTokens uses langchaingo's tokenizer, which is exact for OpenAI
// models and an estimate elsewhere.
func (s *Session) countTokens(text string) int {
	if text == "" {
		return 0
	}
	return llms.CountTokens(s.modelName(), text)
}

// contextCategory is one row of the /context breakdown.
type contextCategory struct {
	label  string
	tokens int
	symbol string
}

// renderContextInfo formats the breakdown for the transcript.
func renderContextInfo(info ContextInfo) string {
	total := info.TotalTokens
	if total <= 0 {
		total = info.UsedTokens + info.AutocompactBuffer + info.FreeTokens
	}
	if total <= 0 {
		total = 1
	}

	var b strings.Builder
	b.WriteString("  ⎿  Context Usage\n")
	b.WriteString(fmt.Sprintf("     %s   %s · %s/%s tokens (%.1f%%)\n",
		renderContextBar(info),
		info.Model,
		formatTokenCount(info.UsedTokens),
		formatTokenCount(info.TotalTokens),
		sharePercent(min(max(info.UsedTokens, 0), total), total),
	))

	for _, cat := range []contextCategory{
		{"System prompt", info.SystemPromptTokens, "⛁"},
		{"System tools", info.SystemToolsTokens, "⛁"},
		{"Memory files", info.MemoryFilesTokens, "⛁"},
		{"Messages", info.MessagesTokens, "⛁"},
		{"Free space", info.FreeTokens, "⛶"},
		{"Autocompact buffer", info.AutocompactBuffer, "⛝"},
	} {
		b.WriteString(fmt.Sprintf("     %s   %s %s: %s tokens (%.1f%%)\n",
			renderCategoryBar(cat.tokens, total, cat.symbol),
			cat.symbol,
			cat.label,
			formatTokenCount(cat.tokens),
			sharePercent(cat.tokens, total),
		))
	}
	return b.String()
}

// renderContextBar draws the stacked usage bar: used, free, then buffer.
func renderContextBar(info ContextInfo) string {
	total := info.TotalTokens
	if total <= 0 {
		total = info.UsedTokens + info.AutocompactBuffer + info.FreeTokens
	}
	if total <= 0 {
		total = 1
	}

	used := min(max(info.UsedTokens, 0), total)
	buffer := min(max(info.AutocompactBuffer, 0), total-used)
	free := max(total-used-buffer, 0)

	segments := make([]string, 0, contextBarWidth)
	remaining := contextBarWidth

	addSegments := func(tokens int, fill, partial string) {
		if remaining == 0 || tokens <= 0 {
			return
		}
		full, hasPartial := calculateBarSegments(float64(tokens) / float64(total) * 100)
		if full > remaining {
			full = remaining
			hasPartial = false
		}
		for i := 0; i < full && remaining > 0; i++ {
			segments = append(segments, fill)
			remaining--
		}
		if hasPartial && remaining > 0 {
			if partial == "" {
				partial = fill
			}
			segments = append(segments, partial)
			remaining--
		}
	}

	addSegments(used, "⛁", "⛀")
	addSegments(free, "⛶", "")
	addSegments(buffer, "⛝", "")

	for len(segments) < contextBarWidth {
		segments = append(segments, "⛶")
	}
	return strings.Join(segments, " ")
}

// renderCategoryBar draws one category's share of the window.
func renderCategoryBar(tokens, total int, symbol string) string {
	pct := 0.0
	if total > 0 {
		pct = float64(tokens) / float64(total) * 100
	}
	full, hasPartial := calculateBarSegments(pct)

	segments := make([]string, 0, contextBarWidth)
	for i := 0; i < full && len(segments) < contextBarWidth; i++ {
		segments = append(segments, symbol)
	}
	if hasPartial && len(segments) < contextBarWidth {
		if symbol == "⛁" {
			segments = append(segments, "⛀")
		} else {
			segments = append(segments, symbol)
		}
	}
	for len(segments) < contextBarWidth {
		segments = append(segments, "⛶")
	}
	return strings.Join(segments, " ")
}

// calculateBarSegments converts a percentage to full 10% segments plus a
// partial-segment flag for the remainder.
func calculateBarSegments(pct float64) (int, bool) {
	if pct <= 0 {
		return 0, false
	}
	full := int(pct / 10)
	if full >= contextBarWidth {
		return contextBarWidth, false
	}
	return full, pct-float64(full*10) > 0
}

// formatTokenCount renders a count as 1.2M / 3.4k / 567.
func formatTokenCount(tokens int) string {
	switch {
	case tokens >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(tokens)/1_000_000)
	case tokens >= 1_000:
		return fmt.Sprintf("%.1fk", float64(tokens)/1_000)
	default:
		return fmt.Sprintf("%d", tokens)
	}
}

// sharePercent rounds to one decimal place.
func sharePercent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round((float64(part)/float64(total))*1000) / 10
}
