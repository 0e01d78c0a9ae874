// Package client talks to the study bot HTTP API.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"studybot/models"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("studybot api: %d %s", e.Status, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

type Client struct {
	http *resty.Client
}

// New returns a client for the server at baseURL. timeout of zero waits
// as long as the server takes.
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetError(&errorBody{})
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &Client{http: c}
}

func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/")
	if err := check(resp, err); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Ask sends question as userID and returns the assistant's answer.
func (c *Client) Ask(ctx context.Context, userID, question string) (string, error) {
	var out struct {
		Response string `json:"response"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"user_id": userID, "question": question}).
		SetResult(&out).
		Post("/chat")
	if err := check(resp, err); err != nil {
		return "", err
	}
	return out.Response, nil
}

// Conversations lists userID's stored messages, oldest first.
func (c *Client) Conversations(ctx context.Context, userID string) ([]models.Message, error) {
	var out struct {
		Conversations []models.Message `json:"conversations"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("user_id", userID).
		SetResult(&out).
		Get("/chat/conversations")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	msg := resp.Status()
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}
