package inference

import (
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ErrRateLimited can be wrapped by any Inferencer to signal throttling.
var ErrRateLimited = errors.New("rate limited")

// IsRateLimited reports whether err carries a provider throttling signal:
// ErrRateLimited, an HTTP 429 from either SDK, a RESOURCE_EXHAUSTED status,
// or either marker in the error text.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) && oaErr.StatusCode == http.StatusTooManyRequests {
		return true
	}

	var gErr genai.APIError
	if errors.As(err, &gErr) && isExhausted(gErr) {
		return true
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) && gErrPtr != nil && isExhausted(*gErrPtr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func isExhausted(e genai.APIError) bool {
	return e.Code == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED"
}
