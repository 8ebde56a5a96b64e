package utils

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.EncodingForModel("gpt-4-0613")
	})
	return enc, encErr
}

func NumTokensFromMessages(text string) (int, error) {
	tkm, err := encoding()
	if err != nil {
		return 0, err
	}

	return len(tkm.Encode(text, nil, nil)), nil
}

// EstimateTokens counts tokens with tiktoken and falls back to one token per
// rune, which overestimates for Japanese, when the encoding is unavailable.
func EstimateTokens(text string) int {
	if n, err := NumTokensFromMessages(text); err == nil {
		return n
	}
	return utf8.RuneCountInString(text)
}
