// Package client talks to the notes portal REST API on behalf of a signed-in
// user and satisfies verification.IdentityStore.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/internal/verification"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialStore
	logger  *zap.Logger
}

// New returns a client for the API rooted at baseURL, e.g.
// "http://localhost:5000/api".
func New(baseURL string, creds CredentialStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		creds:   creds,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sessionResponse struct {
	Token string            `json:"token"`
	User  verification.User `json:"user"`
}

// Login exchanges email and password for a token and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	var resp sessionResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}

	creds := &Credentials{
		Token:    resp.Token,
		UserID:   resp.User.ID,
		Email:    resp.User.Email,
		FullName: resp.User.FullName,
	}
	if err := c.creds.Save(creds); err != nil {
		return nil, fmt.Errorf("failed to store credentials: %w", err)
	}
	c.logger.Info("Signed in", zap.String("user_id", creds.UserID))
	return creds, nil
}

// Logout forgets the stored credentials.
func (c *Client) Logout() error {
	return c.creds.Clear()
}

// CurrentUser reads the stored credentials. It never calls the API.
func (c *Client) CurrentUser(ctx context.Context) (*verification.User, error) {
	creds, err := c.creds.Load()
	if err != nil {
		return nil, err
	}
	if creds == nil || creds.Token == "" || creds.UserID == "" {
		return nil, verification.ErrNotAuthenticated
	}
	return &verification.User{ID: creds.UserID, Email: creds.Email, FullName: creds.FullName}, nil
}

func (c *Client) FetchProfile(ctx context.Context, id string) (*verification.Profile, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	var wp wireProfile
	if err := c.do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(id), token, nil, &wp); err != nil {
		return nil, err
	}
	return wp.toProfile(), nil
}

func (c *Client) UpdateProfile(ctx context.Context, id string, patch verification.ProfilePatch) (*verification.Profile, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	var wp wireProfile
	if err := c.do(ctx, http.MethodPut, "/profiles/"+url.PathEscape(id), token, patch, &wp); err != nil {
		return nil, err
	}
	return wp.toProfile(), nil
}

// ClaimDonation reports that the signed-in user completed a payment of amount.
func (c *Client) ClaimDonation(ctx context.Context, amount int) (*verification.Profile, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	user, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	var wp wireProfile
	path := "/profiles/" + url.PathEscape(user.ID) + "/donation"
	if err := c.do(ctx, http.MethodPost, path, token, map[string]int{"amount": amount}, &wp); err != nil {
		return nil, err
	}
	return wp.toProfile(), nil
}

// PaymentLink asks the API for the UPI deep link for amount.
func (c *Client) PaymentLink(ctx context.Context, amount int) (string, error) {
	var resp struct {
		Link string `json:"link"`
	}
	path := fmt.Sprintf("/donations/upi-link?amount=%d", amount)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return "", err
	}
	return resp.Link, nil
}

func (c *Client) token() (string, error) {
	creds, err := c.creds.Load()
	if err != nil {
		return "", err
	}
	if creds == nil || creds.Token == "" {
		return "", verification.ErrNotAuthenticated
	}
	return creds.Token, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return errors.Join(verification.ErrNotAuthenticated, apiErr)
	}
	return apiErr
}
