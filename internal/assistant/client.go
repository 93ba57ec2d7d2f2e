// Package assistant talks to the hosted conversational assistant used for free-form chat.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/campus-desk/internal/config"
	apperrors "github.com/spec-kit/campus-desk/pkg/util"
)

// Canned replies returned instead of errors.
const (
	ReplyNotConfigured = "System: AI Service credentials are not configured. Please contact Admin."
	ReplyUnavailable   = "I'm having trouble connecting to the AI assistant right now."
	ReplyEmpty         = "I understood, but I have no response text."
)

const placeholderAPIKey = "YOUR_IBM_API_KEY_HERE"

// Reply is the assistant's answer and the session it belongs to.
type Reply struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId,omitempty"`
}

// Client is a Watson Assistant v2 client.
type Client struct {
	apiKey      string
	assistantID string
	serviceURL  string
	tokenURL    string
	version     string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.AssistantConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:      cfg.APIKey,
		assistantID: cfg.AssistantID,
		serviceURL:  strings.TrimRight(cfg.ServiceURL, "/"),
		tokenURL:    cfg.TokenURL,
		version:     cfg.APIVersion,
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
		logger:      logger,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiKey != placeholderAPIKey
}

// Send forwards text to the assistant. It never fails: missing credentials and upstream
// errors both produce a canned reply without a session.
func (c *Client) Send(ctx context.Context, text, sessionID string) Reply {
	if !c.Configured() {
		c.logger.Warn("assistant credentials missing")
		return Reply{Text: ReplyNotConfigured}
	}
	reply, err := c.exchange(ctx, text, sessionID)
	if err != nil {
		// the upstream body may echo credentials, so only the error is logged
		c.logger.Error("assistant call failed", zap.Error(err))
		return Reply{Text: ReplyUnavailable}
	}
	return reply
}

func (c *Client) exchange(ctx context.Context, text, sessionID string) (Reply, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return Reply{}, apperrors.NewUpstreamUnavailable("assistant", err)
	}
	if sessionID == "" {
		if sessionID, err = c.createSession(ctx, token); err != nil {
			return Reply{}, apperrors.NewUpstreamUnavailable("assistant", err)
		}
	}

	var resp messageResponse
	body := messageRequest{Input: messageInput{MessageType: "text", Text: text}}
	endpoint := fmt.Sprintf("%s/v2/assistants/%s/sessions/%s/message", c.serviceURL, url.PathEscape(c.assistantID), url.PathEscape(sessionID))
	if err := c.postJSON(ctx, endpoint, token, body, &resp); err != nil {
		return Reply{}, apperrors.NewUpstreamUnavailable("assistant", err)
	}

	out := ReplyEmpty
	if len(resp.Output.Generic) > 0 && resp.Output.Generic[0].Text != "" {
		out = resp.Output.Generic[0].Text
	}
	return Reply{Text: out, SessionID: sessionID}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type messageInput struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
}

type messageRequest struct {
	Input messageInput `json:"input"`
}

type messageResponse struct {
	Output struct {
		Generic []struct {
			ResponseType string `json:"response_type"`
			Text         string `json:"text"`
		} `json:"generic"`
	} `json:"output"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "urn:ibm:params:oauth:grant-type:apikey")
	form.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tok tokenResponse
	if err := c.do(req, &tok); err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token: empty access token")
	}
	return tok.AccessToken, nil
}

func (c *Client) createSession(ctx context.Context, token string) (string, error) {
	var sess sessionResponse
	endpoint := fmt.Sprintf("%s/v2/assistants/%s/sessions", c.serviceURL, url.PathEscape(c.assistantID))
	if err := c.postJSON(ctx, endpoint, token, struct{}{}, &sess); err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	if sess.SessionID == "" {
		return "", fmt.Errorf("session: empty session id")
	}
	return sess.SessionID, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint, token string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	q := req.URL.Query()
	q.Set("version", c.version)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Ibm-Assistant-Version", c.version)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
