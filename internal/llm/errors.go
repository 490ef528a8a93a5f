package llm

import (
	"errors"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

// ErrRateLimited marks a failure caused by provider rate or quota limits.
// Wrap provider errors with it when the typed checks below cannot see them.
var ErrRateLimited = errors.New("rate limited by provider")

// IsRateLimited reports whether err is a rate-limit or quota failure. Each
// SDK surfaces these differently, so the typed errors are checked first and
// a message sniff covers the rest.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return true
	}

	var oaErr *openai.APIError
	if errors.As(err, &oaErr) && oaErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var oaReqErr *openai.RequestError
	if errors.As(err, &oaReqErr) && oaReqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}

	var anErr *anthropic.APIError
	if errors.As(err, &anErr) && anErr.Type == anthropic.ErrTypeRateLimit {
		return true
	}
	var anReqErr *anthropic.RequestError
	if errors.As(err, &anReqErr) && anReqErr.StatusCode == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "429")
}
