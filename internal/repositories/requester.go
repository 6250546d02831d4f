package repositories

import (
	"context"
	"errors"
	"net/url"

	"social-sync/internal/apiclient"
	"social-sync/internal/session"
)

var ErrEmptyMessage = errors.New("message text is empty")

// Requester is the subset of apiclient.Client the repositories use.
type Requester interface {
	Get(ctx context.Context, path string, query url.Values) (*apiclient.Envelope, error)
	Post(ctx context.Context, path string, body any) (*apiclient.Envelope, error)
	Session() (session.Session, error)
}

var _ Requester = (*apiclient.Client)(nil)
