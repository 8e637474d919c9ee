// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package api is the HTTP client for the server's REST surface: the
// paginated message history fetch and the directory queries that feed
// mention resolution.
//
// Real-time traffic does not go through here; that is the push
// channel's job. The api client is the slow path: loading history
// pages, refetching after reconnects, and refreshing directory data.
package api

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
	"strings"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/mention"
	"github.com/parley-chat/parley/message"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the base URL of the server (e.g., "https://chat.example.com").
	BaseURL string
	// Token is the bearer token sent with every request.
	Token string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client is an authenticated HTTP client for the server REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new API client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	// Validate the URL structure. We store the string form (with
	// trailing slash stripped) and build request URLs by direct
	// concatenation, avoiding url.URL.String() re-encoding surprises.
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's pool. Call after a network disruption so subsequent
// requests establish fresh TCP connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// PageOptions controls a message history fetch.
type PageOptions struct {
	// Token continues pagination into older history. Empty fetches the
	// newest page.
	Token string
	// Limit caps the page size. Zero lets the server choose.
	Limit int
}

// MessagePage is one page of a conversation's history, newest first.
type MessagePage struct {
	Messages []message.Message `json:"messages"`
	// ContinuationToken fetches the next older page; empty when the
	// history is exhausted.
	ContinuationToken string `json:"continuationToken,omitempty"`
}

// ConversationMessages fetches one page of a conversation's history.
func (c *Client) ConversationMessages(ctx context.Context, conversation ref.Conversation, options PageOptions) (*MessagePage, error) {
	if conversation.IsZero() {
		return nil, fmt.Errorf("api: conversation is required")
	}
	query := url.Values{}
	if options.Token != "" {
		query.Set("token", options.Token)
	}
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}
	path := "/v1/conversations/" + string(conversation.Kind()) + "/" +
		url.PathEscape(conversation.ID()) + "/messages"
	body, err := c.doRequest(ctx, http.MethodGet, path, nil, query)
	if err != nil {
		return nil, fmt.Errorf("api: fetching messages for %s: %w", conversation, err)
	}

	var page MessagePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("api: parsing message page: %w", err)
	}
	return &page, nil
}

// Directory fetches the community members, mentionable channels, and
// alias groups for the active context, assembled into the directory
// the mention resolver consumes.
func (c *Client) Directory(ctx context.Context) (mention.Directory, error) {
	var directory mention.Directory

	users, err := c.Members(ctx)
	if err != nil {
		return directory, err
	}
	channels, err := c.Channels(ctx)
	if err != nil {
		return directory, err
	}
	aliases, err := c.Aliases(ctx)
	if err != nil {
		return directory, err
	}
	directory.Users = users
	directory.Channels = channels
	directory.Aliases = aliases
	return directory, nil
}

// Identity is the authenticated user, as reported by the server.
type Identity struct {
	ID       ref.UserID `json:"id"`
	Username string     `json:"username"`
}

// Me returns the identity behind the client's token.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/me", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("api: fetching identity: %w", err)
	}
	var identity Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, fmt.Errorf("api: parsing identity response: %w", err)
	}
	return &identity, nil
}

// Members fetches the current community member list.
func (c *Client) Members(ctx context.Context) ([]mention.User, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/directory/members", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("api: fetching members: %w", err)
	}
	var response struct {
		Members []mention.User `json:"members"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("api: parsing members response: %w", err)
	}
	return response.Members, nil
}

// Channels fetches the mentionable channel list.
func (c *Client) Channels(ctx context.Context) ([]mention.Channel, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/directory/channels", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("api: fetching channels: %w", err)
	}
	var response struct {
		Channels []mention.Channel `json:"channels"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("api: parsing channels response: %w", err)
	}
	return response.Channels, nil
}

// Aliases fetches the alias-group list.
func (c *Client) Aliases(ctx context.Context) ([]mention.Alias, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/directory/aliases", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("api: fetching aliases: %w", err)
	}
	var response struct {
		Aliases []mention.Alias `json:"aliases"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("api: parsing aliases response: %w", err)
	}
	return response.Aliases, nil
}

// MarkRead reports the local user's read position to the server, which
// fans it out to other devices as a receipt event.
func (c *Client) MarkRead(ctx context.Context, conversation ref.Conversation, lastRead ref.MessageID) error {
	if conversation.IsZero() {
		return fmt.Errorf("api: conversation is required")
	}
	if lastRead.IsZero() {
		return fmt.Errorf("api: lastRead is required")
	}
	path := "/v1/conversations/" + string(conversation.Kind()) + "/" +
		url.PathEscape(conversation.ID()) + "/read"
	request := struct {
		LastReadMessageID ref.MessageID `json:"lastReadMessageId"`
	}{LastReadMessageID: lastRead}
	if _, err := c.doRequest(ctx, http.MethodPost, path, request, nil); err != nil {
		return fmt.Errorf("api: marking %s read: %w", conversation, err)
	}
	return nil
}

// doRequest performs an HTTP request and returns the response body.
// On 2xx, returns the body. On 4xx/5xx, returns an *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("api: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("api: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("api: reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All server error responses use the same JSON shape.
	var apiErr APIError
	if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil || apiErr.Code == "" {
		return nil, fmt.Errorf("api: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	apiErr.StatusCode = response.StatusCode
	return responseBody, &apiErr
}
