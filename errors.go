package fcstream

import "errors"

var (
	// ErrEmptyChoices is returned when a provider answers without any choice.
	ErrEmptyChoices = errors.New("provider returned no choices")
	// ErrUnsupportedProvider is returned by the model factory for an unknown provider.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrMissingAPIKey is returned when a provider needs credentials that were not configured.
	ErrMissingAPIKey = errors.New("missing api key")
)
