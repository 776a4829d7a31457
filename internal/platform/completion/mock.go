package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Mock is an offline stand-in for local runs (LLM_MODE=mock). When tools are
// offered and the user asks to find something it requests a correspondence
// search; once tool results are in the conversation it summarizes them.
type Mock struct{}

var _ Client = Mock{}

func (Mock) Complete(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, &ProviderError{Kind: KindProtocol, Message: "empty conversation"}
	}

	prompt := lastContent(req.Messages, RoleUser)
	usage := Usage{PromptTokens: estimateTokens(req.Messages)}

	if len(req.Tools) > 0 && wantsSearch(prompt) {
		args, _ := json.Marshal(map[string]any{"query": searchTerms(prompt)})
		msg := Message{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{{
				ID:        "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
				Name:      "SearchCorrespondences",
				Arguments: string(args),
			}},
		}
		usage.CompletionTokens = 12
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		return &Result{Message: msg, Usage: usage, FinishReason: "tool_calls", Model: req.Model}, nil
	}

	text := "[mock] " + truncate(prompt, 120)
	if toolOut := lastContent(req.Messages, RoleTool); toolOut != "" {
		var payload struct {
			Count int    `json:"count"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(toolOut), &payload); err == nil {
			if payload.Error != "" {
				text = "[mock] The lookup failed: " + payload.Error
			} else {
				text = fmt.Sprintf("[mock] I found %d matching records.", payload.Count)
			}
		}
	}
	usage.CompletionTokens = len(text) / 4
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return &Result{
		Message:      Message{Role: RoleAssistant, Content: text},
		Usage:        usage,
		FinishReason: "stop",
		Model:        req.Model,
	}, nil
}

func wantsSearch(prompt string) bool {
	p := strings.ToLower(prompt)
	for _, w := range []string{"find", "search", "list", "show"} {
		if strings.Contains(p, w) {
			return true
		}
	}
	return false
}

var fillerWords = map[string]bool{
	"find": true, "search": true, "list": true, "show": true, "me": true, "for": true,
	"all": true, "the": true, "any": true, "from": true, "to": true, "about": true,
	"letters": true, "letter": true, "correspondence": true, "please": true,
}

// searchTerms drops request verbs and filler so "find letters from Acme"
// searches for "Acme".
func searchTerms(prompt string) string {
	var kept []string
	for _, w := range strings.Fields(prompt) {
		w = strings.Trim(w, ".,?!\"'")
		if w == "" || fillerWords[strings.ToLower(w)] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func lastContent(msgs []Message, role Role) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return msgs[i].Content
		}
	}
	return ""
}

func estimateTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content) / 4
	}
	return total
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
