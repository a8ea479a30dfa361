package google

import (
	"errors"

	"google.golang.org/genai"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/provider/internal/httperr"
)

// wrapError categorizes a Google GenAI error into the relay taxonomy.
// genai.APIError does not expose headers, so no Retry-After is available.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		// Likely a network error, left for the retry heuristics
		return err
	}

	code := apiErr.Code
	msg := err.Error()

	if httperr.Transient(code) {
		return relay.NewTransientProviderError(msg, code, 0, err)
	}
	return relay.NewProviderError(msg, code, err)
}
