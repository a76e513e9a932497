// Package client talks to the credentials HTTP routes. Forms validate
// locally before anything is sent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-credentials"
)

// Routes are the server paths the client calls
type Routes struct {
	SignIn         string
	SignUp         string
	SignOut        string
	Session        string
	ValidateSignUp string
	Me             string
}

func DefaultRoutes() Routes {
	return Routes{
		SignIn:         "/auth/signin",
		SignUp:         "/auth/signup",
		SignOut:        "/auth/signout",
		Session:        "/auth/session",
		ValidateSignUp: "/auth/validate/signup",
		Me:             "/me",
	}
}

// Client keeps the session token returned by sign in and sends it as a
// bearer token on later calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	routes     Routes
	cookieName string

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithRoutes(r Routes) Option {
	return func(c *Client) {
		c.routes = r
	}
}

// WithCookieName sets the session cookie name, the server context key
func WithCookieName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.cookieName = name
		}
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		routes:     DefaultRoutes(),
		cookieName: "jwt",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) SignIn(ctx context.Context, in auth.SignInInput) (*auth.AuthResponse, error) {
	res, httpRes, err := c.do(ctx, http.MethodPost, c.routes.SignIn, in)
	if err != nil {
		return nil, err
	}

	for _, cookie := range httpRes.Cookies() {
		if cookie.Name == c.cookieName && cookie.Value != "" {
			c.setToken(cookie.Value)
		}
	}

	return res, nil
}

func (c *Client) SignUp(ctx context.Context, in auth.RegistrationInput) (*auth.AuthResponse, error) {
	res, _, err := c.do(ctx, http.MethodPost, c.routes.SignUp, in)
	return res, err
}

// ValidateSignUp asks the server to run the registration rules
func (c *Client) ValidateSignUp(ctx context.Context, in auth.RegistrationInput) (*auth.AuthResponse, error) {
	res, _, err := c.do(ctx, http.MethodPost, c.routes.ValidateSignUp, in)
	return res, err
}

func (c *Client) SignOut(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodPost, c.routes.SignOut, nil)
	c.setToken("")
	return err
}

func (c *Client) Session(ctx context.Context) (*auth.Session, error) {
	session := &auth.Session{}
	if err := c.getJSON(ctx, c.routes.Session, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (c *Client) Me(ctx context.Context) (*auth.SanitizedUser, error) {
	user := &auth.SanitizedUser{}
	if err := c.getJSON(ctx, c.routes.Me, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	httpRes, body, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	if httpRes.StatusCode >= http.StatusBadRequest {
		return responseError(httpRes.StatusCode, decodeResponse(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "failed to decode server response")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*auth.AuthResponse, *http.Response, error) {
	httpRes, body, err := c.send(ctx, method, path, payload)
	if err != nil {
		return nil, nil, err
	}

	res := decodeResponse(body)
	if httpRes.StatusCode >= http.StatusBadRequest {
		return res, httpRes, responseError(httpRes.StatusCode, res)
	}

	return res, httpRes, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload any) (*http.Response, []byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryBadInput, "failed to build request")
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpRes, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryExternal, "request failed").
			WithCode(http.StatusServiceUnavailable).
			WithMetadata(map[string]any{"path": path})
	}
	defer httpRes.Body.Close()

	body, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryExternal, "failed to read response")
	}

	return httpRes, body, nil
}

func decodeResponse(body []byte) *auth.AuthResponse {
	res := &auth.AuthResponse{}
	if len(body) > 0 {
		_ = json.Unmarshal(body, res)
	}
	return res
}

// responseError turns a failed AuthResponse back into a rich error
func responseError(status int, res *auth.AuthResponse) error {
	message := res.Error
	if message == "" {
		message = http.StatusText(status)
	}

	var err *errors.Error
	if len(res.Validation) > 0 {
		err = errors.NewValidationFromMap(message, res.Validation)
	} else {
		err = errors.New(message, categoryForStatus(status))
	}

	err = err.WithCode(status)
	if res.TextCode != "" {
		err = err.WithTextCode(res.TextCode)
	}
	return err
}

func categoryForStatus(status int) errors.Category {
	switch status {
	case http.StatusUnauthorized:
		return errors.CategoryAuth
	case http.StatusForbidden:
		return errors.CategoryAuthz
	case http.StatusNotFound:
		return errors.CategoryNotFound
	case http.StatusConflict:
		return errors.CategoryConflict
	case http.StatusUnprocessableEntity:
		return errors.CategoryValidation
	case http.StatusTooManyRequests:
		return errors.CategoryRateLimit
	case http.StatusBadRequest:
		return errors.CategoryBadInput
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return errors.CategoryExternal
	default:
		return errors.CategoryInternal
	}
}
