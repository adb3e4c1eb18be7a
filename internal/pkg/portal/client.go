package portal

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	accountField = "ctl00$lblAccount"
	secretField  = "ctl00$lblPassWord"
	submitField  = "ctl00$Submit"
	submitLabel  = "送出"

	// Present on every authenticated page, never on the login form.
	logoutMarker = "登出"
)

// Config holds the connection settings for one portal.
type Config struct {
	BaseURL        string
	LoginPath      string
	AttendancePath string
	Timeout        time.Duration
	// CACert is the portal's self-signed certificate in PEM form. Trust
	// is scoped to this client's transport, never installed globally.
	CACert         []byte
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Client talks the portal's Web Forms postback protocol. It is safe to
// build once and reuse; each Login opens an independent Session with its
// own cookie jar.
type Client struct {
	base           *url.URL
	loginPath      string
	attendancePath string
	transport      *http.Transport
	timeout        time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
	log            *zap.Logger
}

// Session is one authenticated conversation with the portal. It owns the
// cookie jar the server populates at login. All requests for a session
// are issued sequentially; the postback protocol cannot interleave.
type Session struct {
	http *http.Client
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid portal base URL: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if len(cfg.CACert) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(cfg.CACert) {
			return nil, fmt.Errorf("portal CA certificate is not valid PEM")
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}

	return &Client{
		base:           base,
		loginPath:      cfg.LoginPath,
		attendancePath: cfg.AttendancePath,
		transport:      transport,
		timeout:        cfg.Timeout,
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		log:            log,
	}, nil
}

// Login opens a fresh session, replays the login form's hidden fields
// together with the credentials, and verifies the server landed us in
// the authenticated area. The secret is never logged.
func (c *Client) Login(ctx context.Context, account, secret string) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	sess := &Session{
		http: &http.Client{
			Transport: c.transport,
			Jar:       jar,
			Timeout:   c.timeout,
		},
	}

	loginURL := c.resolve(c.loginPath)
	c.log.Info("opening login page", zap.String("url", loginURL))

	body, _, err := c.do(ctx, sess, http.MethodGet, loginURL, nil)
	if err != nil {
		return nil, err
	}

	state, err := ParsePostbackState(body)
	if err != nil {
		return nil, err
	}

	form := state.Form()
	form.Set(accountField, account)
	form.Set(secretField, secret)
	form.Set(submitField, submitLabel)

	c.log.Info("submitting credentials", zap.String("account", account))
	body, finalURL, err := c.do(ctx, sess, http.MethodPost, loginURL, form)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.Contains(finalURL.Path, c.attendancePath) || bytes.Contains(body, []byte(logoutMarker)):
		c.log.Info("login succeeded", zap.String("account", account))
		return sess, nil
	case bytes.Contains(body, []byte(accountField)):
		// Still looking at the login form.
		return nil, ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("%w: login response is neither authenticated nor the login form", ErrUnexpectedResponse)
	}
}

// OpenAttendance loads the anomaly list page and returns its first
// PostbackState together with the page body.
func (c *Client) OpenAttendance(ctx context.Context, sess *Session) (PostbackState, []byte, error) {
	body, _, err := c.do(ctx, sess, http.MethodGet, c.resolve(c.attendancePath), nil)
	if err != nil {
		return PostbackState{}, nil, err
	}
	state, err := ParsePostbackState(body)
	if err != nil {
		return PostbackState{}, nil, err
	}
	return state, body, nil
}

// Postback replays the given state plus any extra fields against the
// attendance page and returns the state the server re-issued with the
// response. The passed state is consumed: the server will not accept it
// a second time.
func (c *Client) Postback(ctx context.Context, sess *Session, state PostbackState, extra url.Values) (PostbackState, []byte, error) {
	form := state.Form()
	for key, values := range extra {
		for _, value := range values {
			form.Add(key, value)
		}
	}

	body, _, err := c.do(ctx, sess, http.MethodPost, c.resolve(c.attendancePath), form)
	if err != nil {
		return PostbackState{}, nil, err
	}

	next, err := ParsePostbackState(body)
	if err != nil {
		return PostbackState{}, nil, err
	}
	return next, body, nil
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.base.String() + path
	}
	return c.base.ResolveReference(ref).String()
}

// do issues one request with bounded exponential retry. Only transport
// failures are retried; anything else is permanent.
func (c *Client) do(ctx context.Context, sess *Session, method, rawURL string, form url.Values) ([]byte, *url.URL, error) {
	var (
		body     []byte
		finalURL *url.URL
	)

	operation := func() error {
		var reqBody io.Reader
		if form != nil {
			reqBody = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := sess.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			reqErr := classifyRequestError(err)
			c.log.Warn("portal request failed, will retry",
				zap.String("url", rawURL),
				zap.String("kind", string(reqErr.Kind)))
			return reqErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &RequestError{
				Kind: KindConnection,
				Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
			}
		}

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return classifyRequestError(err)
		}

		body = b
		finalURL = resp.Request.URL
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	if c.retryBaseDelay > 0 {
		policy.InitialInterval = c.retryBaseDelay
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(c.retryAttempts-1)), ctx))
	if err != nil {
		return nil, nil, err
	}
	return body, finalURL, nil
}
