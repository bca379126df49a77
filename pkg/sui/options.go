package sui

import (
	"net/http"

	"go.uber.org/zap"
)

// Option configures client settings using the functional options pattern.
type Option func(*settings)

type settings struct {
	logger     *zap.Logger
	httpClient *http.Client
	signer     Signer
}

// WithLogger sets a custom logger for the client.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithHTTPClient sets the HTTP client used for JSON-RPC calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithSigner enables transaction submission with the given signer.
func WithSigner(signer Signer) Option {
	return func(s *settings) { s.signer = signer }
}

func applyOptions(opts []Option) settings {
	s := settings{
		logger:     zap.NewNop(),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}
