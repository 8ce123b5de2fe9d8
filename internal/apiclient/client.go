package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"partner-chat/internal/models"
)

// APIError is a non-2xx answer from the chat backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to the chat REST API on behalf of one user.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// New builds a Client for baseURL authenticating with a bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListChats returns the caller's chats with unread counts.
func (c *Client) ListChats(ctx context.Context) ([]models.Chat, error) {
	var resp struct {
		Chats []models.Chat `json:"chats"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/chats", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// StartChat creates or returns the chat with friendID.
func (c *Client) StartChat(ctx context.Context, friendID int) (int, error) {
	var resp struct {
		ChatID int `json:"chat_id"`
	}
	body := map[string]int{"friend_id": friendID}
	if err := c.doJSON(ctx, http.MethodPost, "/chats/start", nil, body, &resp); err != nil {
		return 0, err
	}
	return resp.ChatID, nil
}

// ListMessages fetches one ascending page of chatID.
func (c *Client) ListMessages(ctx context.Context, chatID int, page models.Page) ([]models.Message, error) {
	query := url.Values{}
	if page.Limit > 0 {
		query.Set("limit", strconv.Itoa(page.Limit))
	}
	if page.BeforeID != nil {
		query.Set("before_id", strconv.Itoa(*page.BeforeID))
	}
	if page.AfterID != nil {
		query.Set("after_id", strconv.Itoa(*page.AfterID))
	}
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/chats/%d/messages", chatID), query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// MarkRead marks everything in chatID as read.
func (c *Client) MarkRead(ctx context.Context, chatID int) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/chats/%d/read", chatID), nil, nil, nil)
}

// SendMessage posts a draft and returns the stored message.
func (c *Client) SendMessage(ctx context.Context, chatID int, draft models.Draft) (models.Message, error) {
	var msg models.Message
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/chats/%d/messages", chatID), nil, draft, &msg)
	return msg, err
}

// EditMessage replaces the content of one of the caller's messages.
func (c *Client) EditMessage(ctx context.Context, messageID int, content string) (models.Message, error) {
	var msg models.Message
	body := map[string]string{"content": content}
	err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/messages/%d", messageID), nil, body, &msg)
	return msg, err
}

// DeleteMessage tombstones one of the caller's messages.
func (c *Client) DeleteMessage(ctx context.Context, messageID int) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/messages/%d", messageID), nil, nil, nil)
}

// UploadAttachment stores a file and returns the reference to put in a draft.
func (c *Client) UploadAttachment(ctx context.Context, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("read attachment: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/attachments", nil, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		Attachment string `json:"attachment"`
	}
	if err := c.send(req, &resp); err != nil {
		return "", err
	}
	return resp.Attachment, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Int("status", resp.StatusCode).Dur("latency", time.Since(start)).Msg("api call")

	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
