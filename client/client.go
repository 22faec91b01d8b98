// Package client is a Go client for the tracker API with an entity cache and
// optimistic mutations that roll back on failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"medialog/models"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to a tracker server.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New creates a client for the given server base URL (e.g. http://host:8090).
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken installs a session token for subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login authenticates and stores the returned session token on the client.
func (c *Client) Login(ctx context.Context, name, password string) (models.User, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", loginRequest{Name: name, Password: password}, &resp)
	if err != nil {
		return models.User{}, err
	}
	c.token = resp.Token
	return resp.User, nil
}

// Logout closes the session and clears the stored token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

func (c *Client) ListLibrary(ctx context.Context) ([]models.WatchedItem, error) {
	var items []models.WatchedItem
	err := c.do(ctx, http.MethodGet, "/api/library", nil, &items)
	return items, err
}

func (c *Client) AddLibraryItem(ctx context.Context, input models.WatchedItemInput) (models.WatchedItem, error) {
	var item models.WatchedItem
	err := c.do(ctx, http.MethodPost, "/api/library", input, &item)
	return item, err
}

func (c *Client) GetLibraryItem(ctx context.Context, itemID string) (models.WatchedItem, error) {
	var item models.WatchedItem
	err := c.do(ctx, http.MethodGet, "/api/library/"+url.PathEscape(itemID), nil, &item)
	return item, err
}

func (c *Client) UpdateLibraryItem(ctx context.Context, itemID string, patch models.WatchedItemPatch) (models.WatchedItem, error) {
	var item models.WatchedItem
	err := c.do(ctx, http.MethodPatch, "/api/library/"+url.PathEscape(itemID), patch, &item)
	return item, err
}

func (c *Client) DeleteLibraryItem(ctx context.Context, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/api/library/"+url.PathEscape(itemID), nil, nil)
}

func (c *Client) ListEpisodes(ctx context.Context, itemID string) ([]models.WatchedEpisode, error) {
	var episodes []models.WatchedEpisode
	err := c.do(ctx, http.MethodGet, "/api/library/"+url.PathEscape(itemID)+"/episodes", nil, &episodes)
	return episodes, err
}

type episodeStatusRequest struct {
	Status models.EpisodeStatus `json:"status"`
}

func (c *Client) SetEpisodeStatus(ctx context.Context, itemID string, season, episode int, status models.EpisodeStatus) (models.WatchedItem, error) {
	var item models.WatchedItem
	path := fmt.Sprintf("/api/library/%s/episodes/%d/%d", url.PathEscape(itemID), season, episode)
	err := c.do(ctx, http.MethodPut, path, episodeStatusRequest{Status: status}, &item)
	return item, err
}

func (c *Client) ListQueue(ctx context.Context) ([]models.QueueItem, error) {
	var items []models.QueueItem
	err := c.do(ctx, http.MethodGet, "/api/queue", nil, &items)
	return items, err
}

func (c *Client) AddQueueItem(ctx context.Context, input models.QueueAddInput) (models.QueueItem, error) {
	var item models.QueueItem
	err := c.do(ctx, http.MethodPost, "/api/queue", input, &item)
	return item, err
}

func (c *Client) RemoveQueueItem(ctx context.Context, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/api/queue/"+url.PathEscape(itemID), nil, nil)
}

type reorderRequest struct {
	Position int `json:"position"`
}

func (c *Client) ReorderQueueItem(ctx context.Context, itemID string, position int) error {
	return c.do(ctx, http.MethodPut, "/api/queue/"+url.PathEscape(itemID)+"/position", reorderRequest{Position: position}, nil)
}

func (c *Client) MarkQueueItemWatched(ctx context.Context, itemID string) error {
	return c.do(ctx, http.MethodPost, "/api/queue/"+url.PathEscape(itemID)+"/watched", nil, nil)
}

func (c *Client) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	var results []models.SearchResult
	err := c.do(ctx, http.MethodGet, "/api/catalog/search?q="+url.QueryEscape(query), nil, &results)
	return results, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "request failed"
	}
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	return string(data)
}
