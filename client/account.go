package client

import (
	"bytes"
	"chat-relay/errors"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AccountClient talks to the account endpoints to obtain relay tokens.
type AccountClient struct {
	baseURL    string
	httpClient *http.Client
}

type accountResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

func NewAccountClient(baseURL string, timeout time.Duration) *AccountClient {
	return &AccountClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Signin returns a token for the relay handshake.
func (c *AccountClient) Signin(ctx context.Context, username, password string) (string, error) {
	return c.post(ctx, "/api/auth/signin", map[string]string{
		"username": username,
		"password": password,
	})
}

// Signup creates the account and returns its first token.
func (c *AccountClient) Signup(ctx context.Context, username, password, profilePicture string) (string, error) {
	body := map[string]string{"username": username, "password": password}
	if profilePicture != "" {
		body["profilePicture"] = profilePicture
	}
	return c.post(ctx, "/api/auth/signup", body)
}

// RelayEndpoint maps the account base URL to the WebSocket relay endpoint.
func (c *AccountClient) RelayEndpoint() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *AccountClient) post(ctx context.Context, path string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTransportLost, err)
	}
	defer resp.Body.Close()

	var decoded accountResponse
	_ = json.NewDecoder(resp.Body).Decode(&decoded)

	switch {
	case resp.StatusCode == http.StatusOK && decoded.Token != "":
		return decoded.Token, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return "", errors.ErrInvalidCredentials
	default:
		return "", fmt.Errorf("%s failed with status %d: %s", path, resp.StatusCode, decoded.Message)
	}
}
