package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// Client calls the relay's HTTP endpoints with the user's credentials.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zerolog.Logger
}

var _ core.ChannelRegistrar = (*Client)(nil)

// Profile is the signed-in user as reported by GET /profile.
type Profile struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type createChannelRequest struct {
	ChannelName string `json:"channelName"`
	UserID      string `json:"userId"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// NewClient builds a client for baseURL. Cookies set by the relay are kept
// and sent back on later calls.
func NewClient(baseURL, token string, timeout time.Duration, logger *zerolog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Jar: jar, Timeout: timeout},
		log:     logger,
	}, nil
}

// CreateChannel registers channel for userID. A non-2xx answer is returned
// as *core.RemoteRejection carrying the server's message.
func (c *Client) CreateChannel(ctx context.Context, channel, userID string) error {
	req := createChannelRequest{ChannelName: channel, UserID: userID}
	if err := c.do(ctx, http.MethodPost, "/api/channel", req, nil); err != nil {
		return err
	}
	c.log.Debug().Str("channel", channel).Msg("channel registered")
	return nil
}

// Profile fetches the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, http.MethodGet, "/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rejection := &core.RemoteRejection{Status: resp.StatusCode}
		var msg messageResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&msg); decodeErr == nil {
			rejection.Message = msg.Message
		}
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Str("message", rejection.Message).Msg("request rejected")
		return rejection
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
