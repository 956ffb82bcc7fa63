package memory

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// BudgetFilter truncates a ranked candidate list to a maximum cumulative
// token count over the text field alone, per §4.11. The declared tokenizer
// is GPT-4's BPE-compatible cl100k_base encoding.
type BudgetFilter struct {
	enc *tiktoken.Tiktoken
}

// NewBudgetFilter constructs a [BudgetFilter] using the cl100k_base
// encoding.
func NewBudgetFilter() (*BudgetFilter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("budget_filter: load cl100k_base encoding: %w", err)
	}
	return &BudgetFilter{enc: enc}, nil
}

// Apply admits candidates in rank order while the cumulative token count
// of their Text fields stays within maxTokens, stopping at the first
// candidate that would overflow. The returned ordering preserves the
// input (reranker) order.
func (f *BudgetFilter) Apply(candidates []MemoryUnit, maxTokens int) []MemoryUnit {
	if maxTokens <= 0 {
		return nil
	}
	out := make([]MemoryUnit, 0, len(candidates))
	spent := 0
	for _, u := range candidates {
		n := len(f.enc.Encode(u.Text, nil, nil))
		if spent+n > maxTokens {
			break
		}
		spent += n
		out = append(out, u)
	}
	return out
}

// TokenCount returns the cl100k_base token count of text, exposed for
// callers that need to pre-check budget feasibility.
func (f *BudgetFilter) TokenCount(text string) int {
	return len(f.enc.Encode(text, nil, nil))
}
