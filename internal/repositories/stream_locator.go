package repositories

import (
	"context"
	"fmt"
	"net/url"
)

// StreamLocator resolves the push subscription URL for the viewer.
type StreamLocator interface {
	StreamURL(ctx context.Context) (string, error)
}

// StreamRepo derives the URL from a configured base, or asks the backend
// when no base is configured.
type StreamRepo struct {
	api  Requester
	base string
}

// NewStreamRepo constructs a StreamRepo.
func NewStreamRepo(api Requester, base string) *StreamRepo {
	return &StreamRepo{api: api, base: base}
}

// StreamURL returns a URL carrying the token and tenant as query params.
func (r *StreamRepo) StreamURL(ctx context.Context) (string, error) {
	s, err := r.api.Session()
	if err != nil {
		return "", err
	}

	base := r.base
	if base == "" {
		env, err := r.api.Get(ctx, "/stream/url", nil)
		if err != nil {
			return "", fmt.Errorf("stream url: %w", err)
		}
		var payload struct {
			URL string `json:"url"`
		}
		if err := env.Decode(&payload); err != nil {
			return "", err
		}
		base = payload.URL
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	q := u.Query()
	q.Set("token", s.Token)
	if s.Tenant != "" {
		q.Set("tenant", s.Tenant)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
