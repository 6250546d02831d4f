package repositories

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"social-sync/internal/apiclient"
	"social-sync/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts the conversation endpoints.
type ConversationRepository interface {
	ListConversations(ctx context.Context, search string, limit int) (models.ConversationList, error)
	GetMessages(ctx context.Context, conversationID, cursor string, limit int) (models.MessagePage, error)
	SendMessage(ctx context.Context, conversationID, text string) (models.SendResult, error)
	MarkRead(ctx context.Context, conversationID string) (models.ReadResult, error)
}

// ConversationRepo is the REST implementation of ConversationRepository.
type ConversationRepo struct {
	api Requester
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(api Requester) *ConversationRepo {
	return &ConversationRepo{api: api}
}

// ListConversations returns the viewer's conversations, most recent first.
func (r *ConversationRepo) ListConversations(ctx context.Context, search string, limit int) (models.ConversationList, error) {
	query := url.Values{}
	if search = strings.TrimSpace(search); search != "" {
		query.Set("search", search)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	env, err := r.api.Get(ctx, "/conversations", query)
	if err != nil {
		return models.ConversationList{}, fmt.Errorf("list conversations: %w", err)
	}

	var convs []models.Conversation
	if err := env.Decode(&convs); err != nil {
		return models.ConversationList{}, err
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return models.ConversationList{Conversations: convs, Pagination: env.Pagination}, nil
}

// GetMessages fetches one page of a thread. An empty cursor requests the
// newest page.
func (r *ConversationRepo) GetMessages(ctx context.Context, conversationID, cursor string, limit int) (models.MessagePage, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	env, err := r.api.Get(ctx, "/conversations/"+url.PathEscape(conversationID)+"/messages", query)
	if err != nil {
		return models.MessagePage{}, wrapNotFound("get messages", err)
	}

	var page models.MessagePage
	if err := env.Decode(&page); err != nil {
		return models.MessagePage{}, err
	}
	page.Pagination = env.Pagination
	if page.Messages == nil {
		page.Messages = []models.Message{}
	}
	sort.SliceStable(page.Messages, func(i, j int) bool {
		return page.Messages[i].CreatedAt.Before(page.Messages[j].CreatedAt)
	})
	return page, nil
}

// SendMessage posts a message. Blank text is rejected before any request.
func (r *ConversationRepo) SendMessage(ctx context.Context, conversationID, text string) (models.SendResult, error) {
	if strings.TrimSpace(text) == "" {
		return models.SendResult{}, ErrEmptyMessage
	}

	req := models.SendMessageRequest{ConversationID: conversationID, Text: text}
	env, err := r.api.Post(ctx, "/conversations/"+url.PathEscape(conversationID)+"/messages", req)
	if err != nil {
		return models.SendResult{}, wrapNotFound("send message", err)
	}

	var res models.SendResult
	if err := env.Decode(&res); err != nil {
		return models.SendResult{}, err
	}
	return res, nil
}

// MarkRead issues a read receipt for the conversation.
func (r *ConversationRepo) MarkRead(ctx context.Context, conversationID string) (models.ReadResult, error) {
	env, err := r.api.Post(ctx, "/conversations/"+url.PathEscape(conversationID)+"/read", nil)
	if err != nil {
		return models.ReadResult{}, wrapNotFound("mark read", err)
	}

	var res models.ReadResult
	if err := env.Decode(&res); err != nil {
		return models.ReadResult{}, err
	}
	return res, nil
}

func wrapNotFound(op string, err error) error {
	if errors.Is(err, apiclient.ErrNotFound) {
		return fmt.Errorf("%s: %w: %w", op, ErrConversationNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
