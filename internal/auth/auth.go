// Package auth applies a host's authentication descriptor to its HTTP
// transport. Credentials are injected per request so the shared client stays
// safe for concurrent use.
package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/types"
)

// DefaultAPIKeyHeader is used when an api_key descriptor omits the header name.
const DefaultAPIKeyHeader = "X-API-Key"

// WrapTransport decorates base with the credentials described by cfg.
// A nil cfg returns base unchanged.
func WrapTransport(base http.RoundTripper, cfg *types.AuthConfig) http.RoundTripper {
	if cfg == nil {
		return base
	}

	switch cfg.Type {
	case "basic":
		return &headerTransport{base: base, apply: func(r *http.Request) {
			r.SetBasicAuth(cfg.Username, cfg.Password)
		}}
	case "bearer":
		return &headerTransport{base: base, apply: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+cfg.Token)
		}}
	case "api_key":
		header := cfg.Header
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		return &headerTransport{base: base, apply: func(r *http.Request) {
			r.Header.Set(header, cfg.Key)
		}}
	case "oauth2":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// Token refresh requests bypass the wrapped transport chain.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: base})
		return &oauth2.Transport{
			Source: cc.TokenSource(ctx),
			Base:   base,
		}
	default:
		// Validation rejects unknown types before a run starts.
		return base
	}
}

// headerTransport injects static credentials into each outgoing request.
type headerTransport struct {
	base  http.RoundTripper
	apply func(*http.Request)
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	t.apply(clone)
	return t.base.RoundTrip(clone)
}
