package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/term"

	"freeroom/internal/config"
	appLog "freeroom/internal/log"
)

const (
	DefaultTimeout = 2 * time.Minute
	pollInterval   = 200 * time.Millisecond
)

// ErrCookieMissing means the browser reached the booking system but no
// session cookie was set.
var ErrCookieMissing = errors.New("login: session cookie not found")

// Options drives a headless single-sign-on login.
type Options struct {
	// LoginURL is the booking-system page that redirects to SSO.
	LoginURL string
	// SSOPrefix identifies the SSO page by URL prefix.
	SSOPrefix string
	Username  string
	Password  string
	// CookieName is the session cookie to capture, e.g. WSSESSIONID.
	CookieName string
	Timeout    time.Duration
}

// Session logs in with a headless Chromium and returns the session cookie
// value.
//
// The browser opens LoginURL. If it lands on the SSO page the username and
// password fields are filled and submitted; either way the session ends
// once the browser is back on the booking host, where the cookie is read.
func Session(parentCtx context.Context, opts Options) (string, error) {
	if opts.LoginURL == "" {
		return "", errors.New("login: LoginURL is required")
	}
	if opts.CookieName == "" {
		return "", errors.New("login: CookieName is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	target, err := url.Parse(opts.LoginURL)
	if err != nil {
		return "", fmt.Errorf("login: bad login URL: %w", err)
	}
	bookingPrefix := target.Scheme + "://" + target.Host

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	currentURL := func(ctx context.Context) (string, error) {
		var loc string
		err := chromedp.Run(ctx, chromedp.Location(&loc))
		return loc, err
	}

	appLog.Info("login: loading booking system", "host", target.Host)
	if err := chromedp.Run(ctx, chromedp.Navigate(opts.LoginURL)); err != nil {
		return "", fmt.Errorf("login: navigate: %w", err)
	}

	landed, err := waitForAny(ctx, currentURL, []string{opts.SSOPrefix, bookingPrefix}, pollInterval)
	if err != nil {
		return "", fmt.Errorf("login: waiting for sign-in page: %w", err)
	}

	if opts.SSOPrefix != "" && strings.HasPrefix(landed, opts.SSOPrefix) {
		appLog.Info("login: authenticating", "user", opts.Username)
		err := chromedp.Run(ctx,
			chromedp.WaitVisible(`#username`, chromedp.ByID),
			chromedp.SendKeys(`#username`, opts.Username, chromedp.ByID),
			chromedp.SendKeys(`#passwordinput`, opts.Password, chromedp.ByID),
			chromedp.Click(`.loginbutton`, chromedp.ByQuery),
		)
		if err != nil {
			return "", fmt.Errorf("login: submit credentials: %w", err)
		}
		if _, err := waitForAny(ctx, currentURL, []string{bookingPrefix}, pollInterval); err != nil {
			return "", fmt.Errorf("login: waiting for redirect: %w", err)
		}
	}

	var cookies []*network.Cookie
	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithURLs([]string{opts.LoginURL}).Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("login: read cookies: %w", err)
	}

	value, ok := cookieValue(cookies, opts.CookieName)
	if !ok {
		return "", ErrCookieMissing
	}
	appLog.Info("login: session captured", "cookie", opts.CookieName)
	return value, nil
}

// waitForAny polls get until the URL starts with one of prefixes and
// returns it. Empty prefixes are ignored.
func waitForAny(ctx context.Context, get func(context.Context) (string, error), prefixes []string, every time.Duration) (string, error) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		u, err := get(ctx)
		if err != nil {
			return "", err
		}
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(u, p) {
				return u, nil
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
}

func cookieValue(cookies []*network.Cookie, name string) (string, bool) {
	for _, c := range cookies {
		if c != nil && c.Name == name && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// SaveCookie writes the cookie value to path with 0600 permissions.
func SaveCookie(path, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("login: refusing to save an empty cookie")
	}
	return config.WriteFileAtomic(path, []byte(value+"\n"))
}

// PromptPassword reads a password from the terminal without echo. When in
// is not a terminal a single line is read instead.
func PromptPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	defer fmt.Fprintln(out)

	if term.IsTerminal(int(in.Fd())) {
		pw, err := term.ReadPassword(int(in.Fd()))
		if err != nil {
			return "", fmt.Errorf("login: read password: %w", err)
		}
		return string(pw), nil
	}

	var line strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				break
			}
			line.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("login: read password: %w", err)
		}
	}
	return strings.TrimRight(line.String(), "\r"), nil
}
