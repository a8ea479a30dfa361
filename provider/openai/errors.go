package openai

import (
	"errors"

	"github.com/openai/openai-go"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/provider/internal/httperr"
)

// wrapError categorizes an OpenAI SDK error into the relay taxonomy,
// extracting the status code and Retry-After header for retry handling.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		// Likely a network error, left for the retry heuristics
		return err
	}

	code := apiErr.StatusCode
	msg := err.Error()

	if httperr.Transient(code) {
		return relay.NewTransientProviderError(msg, code, httperr.RetryAfter(apiErr.Response), err)
	}
	return relay.NewProviderError(msg, code, err)
}
