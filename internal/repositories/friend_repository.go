package repositories

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"social-sync/internal/apiclient"
	"social-sync/internal/models"
)

var (
	ErrRequestNotFound = errors.New("friend request not found")
	ErrInvalidUser     = errors.New("invalid user id")
)

// FriendRepository abstracts the friend-request social actions.
type FriendRepository interface {
	ListRequests(ctx context.Context) ([]models.FriendRequest, error)
	SendRequest(ctx context.Context, userID string) (models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID string) (models.FriendRequest, error)
	RejectRequest(ctx context.Context, requestID string) (models.FriendRequest, error)
}

// FriendRepo is the REST implementation of FriendRepository.
type FriendRepo struct {
	api Requester
}

// NewFriendRepo constructs a FriendRepo.
func NewFriendRepo(api Requester) *FriendRepo {
	return &FriendRepo{api: api}
}

// ListRequests returns pending incoming requests.
func (r *FriendRepo) ListRequests(ctx context.Context) ([]models.FriendRequest, error) {
	env, err := r.api.Get(ctx, "/friends/requests", nil)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	var reqs []models.FriendRequest
	if err := env.Decode(&reqs); err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []models.FriendRequest{}
	}
	return reqs, nil
}

// SendRequest asks userID to connect. Requests to oneself are rejected
// locally.
func (r *FriendRepo) SendRequest(ctx context.Context, userID string) (models.FriendRequest, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.FriendRequest{}, ErrInvalidUser
	}
	if s, err := r.api.Session(); err == nil && s.ViewerID == userID {
		return models.FriendRequest{}, fmt.Errorf("%w: cannot befriend yourself", ErrInvalidUser)
	}

	env, err := r.api.Post(ctx, "/friends/requests", map[string]string{"userId": userID})
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("send friend request: %w", err)
	}
	var req models.FriendRequest
	if err := env.Decode(&req); err != nil {
		return models.FriendRequest{}, err
	}
	return req, nil
}

// AcceptRequest accepts an incoming request.
func (r *FriendRepo) AcceptRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	return r.resolve(ctx, requestID, "accept")
}

// RejectRequest rejects an incoming request.
func (r *FriendRepo) RejectRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	return r.resolve(ctx, requestID, "reject")
}

func (r *FriendRepo) resolve(ctx context.Context, requestID, action string) (models.FriendRequest, error) {
	env, err := r.api.Post(ctx, "/friends/requests/"+url.PathEscape(requestID)+"/"+action, nil)
	if err != nil {
		if errors.Is(err, apiclient.ErrNotFound) {
			return models.FriendRequest{}, fmt.Errorf("%s friend request: %w: %w", action, ErrRequestNotFound, err)
		}
		return models.FriendRequest{}, fmt.Errorf("%s friend request: %w", action, err)
	}
	var req models.FriendRequest
	if err := env.Decode(&req); err != nil {
		return models.FriendRequest{}, err
	}
	return req, nil
}
