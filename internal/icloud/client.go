package icloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"photovault/internal/logging"
	"photovault/internal/metrics"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "PhotoVault/1.0"
)

// Client talks to the remote photo service. It carries no per-account
// state; session state lives in Session values returned by Authenticate.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, retry RetryPolicy) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		retry: retry,
	}
}

// Session holds the short-lived credentials for one connected remote
// account. A session with Requires2FA set must have SubmitCode called
// successfully before listing or downloading.
type Session struct {
	client *Client

	dsid  string
	token string

	// Requires2FA is true until the two-factor challenge is satisfied.
	Requires2FA bool

	// Challenge names the pending verification mechanism. ChallengeNone
	// once the session is ready.
	Challenge ChallengeKind

	// TrustedDevices lists devices the service can push a verification
	// code to. May be empty; the user may still receive a code through
	// another channel.
	TrustedDevices []string
}

// Ready reports whether the session can list and download photos.
func (s *Session) Ready() bool {
	return s.token != "" && !s.Requires2FA
}

// Authenticate signs in with an Apple ID and password. When the account
// requires interactive verification, the returned session has Requires2FA
// set and the service has already been asked to dispatch a code to a
// trusted device if one is registered.
func (c *Client) Authenticate(ctx context.Context, appleID, password string) (*Session, error) {
	var out signInResponse

	err := c.retry.Do("authenticate", func() error {
		return c.postJSON(ctx, "/auth/signin", "", signInRequest{
			AppleID:  appleID,
			Password: password,
		}, &out)
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		client:         c,
		dsid:           out.DSID,
		token:          out.Token,
		Requires2FA:    out.Requires2FA,
		Challenge:      ChallengeKind(out.ChallengeKind),
		TrustedDevices: out.TrustedDevices,
	}

	// Older service versions report only the boolean; assume the code-based
	// flow when no kind is named.
	if s.Requires2FA && s.Challenge == ChallengeNone {
		s.Challenge = Challenge2FA
	}
	if s.Challenge != ChallengeNone {
		s.Requires2FA = true
		logging.Info("remote account requires verification (%s, %d trusted devices)", s.Challenge, len(s.TrustedDevices))
	}

	return s, nil
}

// SubmitCode validates a two-factor verification code. On success the
// session becomes ready for listing and downloads.
func (s *Session) SubmitCode(ctx context.Context, code string) error {
	var out verifyResponse

	err := s.client.retry.Do("verify", func() error {
		return s.client.postJSON(ctx, "/auth/verify", s.token, verifyRequest{
			DSID: s.dsid,
			Code: code,
		}, &out)
	})
	if err != nil {
		return err
	}

	if out.Token != "" {
		s.token = out.Token
	}
	s.Requires2FA = false
	s.Challenge = ChallengeNone
	return nil
}

// ListPhotos returns one page of the remote library along with the total
// item count. The total is queried fresh on every call.
func (s *Session) ListPhotos(ctx context.Context, offset, limit int) ([]PhotoDescriptor, int, error) {
	if !s.Ready() {
		return nil, 0, Err2FARequired
	}

	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	var out listResponse
	err := s.client.retry.Do("list", func() error {
		return s.client.getJSON(ctx, "/photos", s.token, query, &out)
	})
	if err != nil {
		return nil, 0, err
	}

	return out.Photos, out.Total, nil
}

// Download fetches one photo in the requested variant. The caller owns
// the returned body and must close it.
func (s *Session) Download(ctx context.Context, desc PhotoDescriptor, variant Variant) (io.ReadCloser, error) {
	if !s.Ready() {
		return nil, Err2FARequired
	}

	query := url.Values{}
	query.Set("variant", string(variant))

	var body io.ReadCloser
	err := s.client.retry.Do("download", func() error {
		rc, err := s.client.getStream(ctx, "/photos/"+url.PathEscape(desc.ID)+"/download", s.token, query)
		if err != nil {
			return err
		}
		body = rc
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, token, out)
}

func (c *Client) getJSON(ctx context.Context, path, token string, query url.Values, out interface{}) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, path, token, out)
}

// do runs an authenticated request and decodes the JSON response into out.
func (c *Client) do(req *http.Request, operation, token string, out interface{}) error {
	start := time.Now()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RemoteCallsTotal.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Warn("failed to close response body: %v", cerr)
		}
	}()

	metrics.RemoteCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err := statusError(resp); err != nil {
		metrics.RemoteCallsTotal.WithLabelValues(operation, "error").Inc()
		return err
	}
	metrics.RemoteCallsTotal.WithLabelValues(operation, "success").Inc()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// getStream runs an authenticated GET and returns the raw body.
func (c *Client) getStream(ctx context.Context, path, token string, query url.Values) (io.ReadCloser, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RemoteCallsTotal.WithLabelValues("download", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	if err := statusError(resp); err != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Warn("failed to close response body: %v", cerr)
		}
		metrics.RemoteCallsTotal.WithLabelValues("download", "error").Inc()
		return nil, err
	}

	metrics.RemoteCallsTotal.WithLabelValues("download", "success").Inc()
	return resp.Body, nil
}

// statusError maps a non-2xx response to one of the sentinel errors.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var remoteMsg string
	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
		remoteMsg = body.Error
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if remoteMsg == "invalid code" {
			return ErrInvalidCode
		}
		if remoteMsg == "token expired" {
			return ErrAuthExpired
		}
		return ErrInvalidCredentials
	case http.StatusForbidden:
		return Err2FARequired
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusInternalServerError:
		return fmt.Errorf("%w (status %d)", ErrServiceUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, remoteMsg)
	}
}
