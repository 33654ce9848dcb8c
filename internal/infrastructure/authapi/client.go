package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"edustack-web/internal/application/session"
	"edustack-web/internal/pkg/constants"
)

const (
	loginPath  = "/auth/login"
	verifyPath = "/auth/me"
)

// APIError is a non-2xx answer from the auth service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth api: %d %s", e.StatusCode, e.Message)
}

// Client talks to the EduStack REST API. It implements session.Verifier.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Now     func() time.Time
}

// envelope is the API's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type loginData struct {
	UserData    *userData    `json:"userData"`
	UserSchools []userSchool `json:"userSchools"`
	Token       string       `json:"token"`
}

type userData struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Username         string `json:"username"`
	IsSuperAdmin     bool   `json:"isSuperAdmin"`
	HasVerifiedEmail bool   `json:"hasVerifiedEmail"`
}

type userSchool struct {
	SchoolID string `json:"schoolId"`
	Role     string `json:"role"`
	School   *struct {
		IsActive bool `json:"isActive"`
	} `json:"school"`
}

// Login exchanges credentials for an identity and token.
func (c *Client) Login(ctx context.Context, emailOrUsername, password string) (*session.Identity, error) {
	body, err := json.Marshal(map[string]string{
		"emailOrUsername": emailOrUsername,
		"password":        password,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(loginPath), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	id, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if id.Token == "" {
		return nil, fmt.Errorf("%w: login response without token", session.ErrMalformedIdentity)
	}
	return id, nil
}

// Verify returns the authoritative identity behind token. Expired JWTs are
// rejected without a round trip; 401 and 403 map to session.ErrUnauthenticated.
func (c *Client) Verify(ctx context.Context, token string) (*session.Identity, error) {
	if token == "" || tokenExpired(token, c.now()) {
		return nil, session.ErrUnauthenticated
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(verifyPath), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	id, err := c.do(req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, session.ErrUnauthenticated
		}
		return nil, err
	}
	if id.Token == "" {
		id.Token = token
	}
	return id, nil
}

// Ping reports whether the API host answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url("/"), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(req *http.Request) (*session.Identity, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrMalformedIdentity, decodeErr)
	}
	if !env.Success || len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: unsuccessful envelope: %s", session.ErrMalformedIdentity, env.Message)
	}
	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrMalformedIdentity, err)
	}
	return toIdentity(data)
}

func toIdentity(d loginData) (*session.Identity, error) {
	if d.UserData == nil || d.UserData.ID == "" {
		return nil, fmt.Errorf("%w: missing userData", session.ErrMalformedIdentity)
	}
	id := &session.Identity{
		Token: d.Token,
		User: session.User{
			ID:               d.UserData.ID,
			Email:            d.UserData.Email,
			Username:         d.UserData.Username,
			IsSuperAdmin:     d.UserData.IsSuperAdmin,
			HasVerifiedEmail: d.UserData.HasVerifiedEmail,
		},
		Memberships: make([]session.Membership, 0, len(d.UserSchools)),
	}
	for _, us := range d.UserSchools {
		role, err := constants.ParseRole(us.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: school %s: %v %q", session.ErrMalformedIdentity, us.SchoolID, err, us.Role)
		}
		id.Memberships = append(id.Memberships, session.Membership{
			SchoolID: us.SchoolID,
			Role:     role,
			Active:   us.School != nil && us.School.IsActive,
		})
	}
	return id, id.Validate()
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return &http.Client{Timeout: 10 * time.Second}
	}
	return c.HTTP
}

func (c *Client) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
