package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appLog "freeroom/internal/log"
)

// xssiGuard prefixes every JSON body returned by the booking system.
const xssiGuard = ")]}',\n"

// SessionCookie is the name of the booking system's session cookie.
const SessionCookie = "WSSESSIONID"

var (
	// ErrInvalidCookie means the session cookie was rejected.
	ErrInvalidCookie = errors.New("booking: session cookie is not logged in")

	// ErrNoReservations means the booking system has no reservation list
	// for a space on a day. Callers treat it as zero events.
	ErrNoReservations = errors.New("booking: no reservations found")
)

// Client talks to the booking system's JSON endpoints.
type Client struct {
	client  *http.Client
	baseURL string
	session string
	loc     *time.Location
}

// NewClient creates a booking client. Reservation times are interpreted as
// wall-clock times in loc.
func NewClient(baseURL, session string, loc *time.Location, timeout time.Duration) *Client {
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		session: strings.TrimSpace(session),
		loc:     loc,
	}
}

// ReadCookieFile reads the session cookie value saved by `freeroom login`.
func ReadCookieFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read cookie file: %w", err)
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("cookie file %s is empty", path)
	}
	return v, nil
}

// get fetches path relative to the base URL, strips the XSSI guard and
// decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.session})
	req.Header.Set("Accept", "application/json")

	appLog.Debug("booking request", "path", redactPath(path))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("booking: request %s: %w", redactPath(path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("booking: unexpected status %d for %s", resp.StatusCode, redactPath(path))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if !bytes.HasPrefix(body, []byte(xssiGuard)) {
		return fmt.Errorf("booking: response for %s lacks the expected guard prefix", redactPath(path))
	}
	body = body[len(xssiGuard):]

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("booking: decode %s: %w", redactPath(path), err)
	}
	return nil
}

type loginResponse struct {
	LoginResponse struct {
		Login struct {
			Username string `json:"username"`
		} `json:"login"`
	} `json:"login_response"`
}

// CheckLogin verifies that the session cookie is logged in and returns
// the username.
func (c *Client) CheckLogin(ctx context.Context) (string, error) {
	var lr loginResponse
	if err := c.get(ctx, "/login.json?caller=pro", &lr); err != nil {
		return "", err
	}
	user := lr.LoginResponse.Login.Username
	if user == "" {
		return "", ErrInvalidCookie
	}
	return user, nil
}

// redactPath drops the query string so ids and dates do not clutter errors.
func redactPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

// collapse trims s and folds internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
