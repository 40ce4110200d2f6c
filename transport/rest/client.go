// Package rest implements the marketplace HTTP API boundary. The core
// only sees contract.Transport; everything wire-specific (paths, DTOs,
// bearer headers) stays here.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"market-chat/contract"
	"market-chat/domain/chat"
	"market-chat/errors"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	base     *url.URL
	http     *http.Client
	tokens   contract.TokenSource
	validate *validator.Validate
	log      *slog.Logger
}

var _ contract.Transport = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration, tokens contract.TokenSource, log *slog.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		base:     base,
		http:     &http.Client{Timeout: timeout},
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}, nil
}

func (c *Client) FetchConversations(ctx context.Context, userID string, page, limit int) (chat.ConversationPage, error) {
	var out conversationsPageDTO
	path := fmt.Sprintf("/api/users/%s/conversations", url.PathEscape(userID))
	if err := c.do(ctx, http.MethodGet, path, pageQuery(page, limit), nil, &out); err != nil {
		return chat.ConversationPage{}, fmt.Errorf("fetch conversations: %w", err)
	}
	return chat.ConversationPage{
		Conversations: lo.Map(out.Conversations, func(d conversationDTO, _ int) chat.Conversation {
			return d.toDomain()
		}),
		Pagination: out.Pagination.toDomain(),
	}, nil
}

func (c *Client) FetchMessages(ctx context.Context, conversationID string, page, limit int) (chat.MessagePage, error) {
	var out messagesPageDTO
	path := fmt.Sprintf("/api/conversations/%s/messages", url.PathEscape(conversationID))
	if err := c.do(ctx, http.MethodGet, path, pageQuery(page, limit), nil, &out); err != nil {
		return chat.MessagePage{}, fmt.Errorf("fetch messages: %w", err)
	}
	return chat.MessagePage{
		Messages: lo.Map(out.Messages, func(d messageDTO, _ int) chat.Message {
			return d.toDomain()
		}),
		Pagination: out.Pagination.toDomain(),
	}, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID, receiverID, content string) (chat.Message, error) {
	body := sendMessageRequest{ReceiverID: receiverID, Content: content}
	if err := c.validate.Struct(body); err != nil {
		return chat.Message{}, fmt.Errorf("send message request: %w", err)
	}

	var out messageDTO
	path := fmt.Sprintf("/api/conversations/%s/messages", url.PathEscape(conversationID))
	if err := c.do(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return chat.Message{}, fmt.Errorf("send message: %w", err)
	}
	if err := c.validate.Struct(out); err != nil {
		return chat.Message{}, fmt.Errorf("send message response: %w", err)
	}
	return out.toDomain(), nil
}

func (c *Client) CreateConversation(ctx context.Context, participantIDs []string) (chat.Conversation, error) {
	body := createConversationRequest{ParticipantIDs: participantIDs}
	if err := c.validate.Struct(body); err != nil {
		return chat.Conversation{}, fmt.Errorf("create conversation request: %w", err)
	}

	var out conversationDTO
	if err := c.do(ctx, http.MethodPost, "/api/conversations", nil, body, &out); err != nil {
		return chat.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	if err := c.validate.Struct(out); err != nil {
		return chat.Conversation{}, fmt.Errorf("create conversation response: %w", err)
	}
	return out.toDomain(), nil
}

func (c *Client) GetConversation(ctx context.Context, conversationID string) (chat.Conversation, error) {
	var out conversationDTO
	path := fmt.Sprintf("/api/conversations/%s", url.PathEscape(conversationID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return chat.Conversation{}, fmt.Errorf("get conversation %s: %w", conversationID, err)
	}
	return out.toDomain(), nil
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// do performs one authenticated round-trip and decodes the JSON body
// into out. Every failure is wrapped with errors.ErrTransport so
// callers can treat the boundary uniformly.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, errors.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s %s: status %d: %s: %w",
			method, path, resp.StatusCode, apiError(resp.Body), errors.ErrTransport)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w: %w", errors.ErrTransport, err)
	}
	return nil
}

// apiError extracts the server's error message, falling back to the
// raw body when it is not the usual JSON envelope.
func apiError(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no error body"
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	return string(raw)
}
