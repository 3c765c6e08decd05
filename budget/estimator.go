package budget

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tkm     *tiktoken.Tiktoken
	tkmOnce sync.Once
)

func tokenizer() *tiktoken.Tiktoken {
	tkmOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// fall through to the character heuristic
			return
		}
		tkm = enc
	})
	return tkm
}

// EstimateTokens counts the tokens in text with the cl100k_base encoding,
// falling back to a chars/4 heuristic when the encoding cannot be loaded.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if tk := tokenizer(); tk != nil {
		return len(tk.Encode(text, nil, nil))
	}
	return len(text) / 4
}
