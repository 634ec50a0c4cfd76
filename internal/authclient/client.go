package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// Failure classes surfaced to callers. The transport layer maps these to
// status codes; nothing here retries past the configured bound.
var (
	ErrNotConfigured      = errors.New("auth service address not configured")
	ErrMissingToken       = errors.New("missing authorization token")
	ErrMissingCredentials = errors.New("missing username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("access forbidden")
	ErrServiceUnavailable = errors.New("auth service unavailable")
	ErrServiceTimeout     = errors.New("auth service timeout")
)

// StatusError carries an identity-service response we do not classify
// further, e.g. 422 for a malformed token.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("auth service returned %d: %s", e.Code, e.Message)
}

// Claims is the validated identity returned by the auth service.
type Claims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

// Client validates bearer tokens against the remote identity service, with
// a bounded retry policy for transient faults and a time-bounded cache for
// repeat validations.
type Client struct {
	address    string
	httpClient *http.Client
	retry      RetryPolicy
	cache      *tokenCache
}

func New(address string, requestTimeout time.Duration, maxRetries int, cacheDuration time.Duration) *Client {
	return &Client{
		address:    strings.TrimSpace(address),
		httpClient: &http.Client{Timeout: requestTimeout},
		retry:      RetryPolicy{MaxAttempts: maxRetries},
		cache:      newTokenCache(cacheDuration),
	}
}

// Login exchanges basic credentials for a token string.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	if c.address == "" {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return "", ErrMissingCredentials
	}

	var token string
	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/login"), nil)
		if err != nil {
			return fmt.Errorf("build login request: %w", err)
		}
		req.SetBasicAuth(username, password)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classifyTransportError(err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			token = strings.TrimSpace(string(body))
			return nil
		case resp.StatusCode == http.StatusUnauthorized:
			return ErrInvalidCredentials
		case resp.StatusCode == http.StatusForbidden:
			return ErrForbidden
		case resp.StatusCode >= 500:
			return retryable(fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode))
		default:
			return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Validate checks a bearer token. Cache hits within the configured window
// return without a remote call; everything else goes through the retry
// policy with the classification below:
//
//	2xx      success, cached
//	401/403  terminal, no retry
//	>=500    retryable, then ErrServiceUnavailable
//	timeout  retryable, then ErrServiceTimeout
//	other    terminal StatusError with the remote message
func (c *Client) Validate(ctx context.Context, token string) (Claims, error) {
	if c.address == "" {
		return Claims{}, ErrNotConfigured
	}

	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Claims{}, ErrMissingToken
	}

	if claims, ok := c.cache.get(token); ok {
		return claims, nil
	}

	var claims Claims
	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/validate"), nil)
		if err != nil {
			return fmt.Errorf("build validate request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classifyTransportError(err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if err := json.Unmarshal(body, &claims); err != nil {
				return fmt.Errorf("decode claims: %w", err)
			}
			return nil
		case resp.StatusCode == http.StatusUnauthorized:
			return ErrInvalidToken
		case resp.StatusCode == http.StatusForbidden:
			return ErrForbidden
		case resp.StatusCode >= 500:
			return retryable(fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode))
		default:
			return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
	})
	if err != nil {
		return Claims{}, err
	}

	c.cache.put(token, claims)
	return claims, nil
}

// ClearCache drops all cached validations. Useful after an operator-forced
// credential rotation.
func (c *Client) ClearCache() {
	c.cache.clear()
	log.Printf("[authclient] token cache cleared")
}

func (c *Client) url(path string) string {
	addr := c.address
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return addr + path
}

// classifyTransportError splits faults the http client reports before any
// status code arrives. Timeouts keep their own identity so callers can tell
// a slow dependency from an unreachable one.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retryable(fmt.Errorf("%w: %v", ErrServiceTimeout, err))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retryable(fmt.Errorf("%w: %v", ErrServiceTimeout, err))
	}
	return retryable(fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
}
