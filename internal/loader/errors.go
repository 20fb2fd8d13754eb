package loader

import "fmt"

// ConfigError is a fatal configuration error: a malformed manifest or
// metadata document. It aborts the session immediately, carrying a
// human-readable message and the offending URL.
type ConfigError struct {
	URL     string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.URL, e.Message)
}

// configErrf builds a ConfigError with a formatted message.
func configErrf(url, format string, args ...any) *ConfigError {
	return &ConfigError{URL: url, Message: fmt.Sprintf(format, args...)}
}

// Warning is a non-fatal diagnostic surfaced during a load.
type Warning struct {
	URL     string
	Message string
}
