package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"oos-analytics/utils"
)

// BrowserConsent opens a visible Chrome window on the consent page and
// catches the redirect carrying the authorization code. Nothing needs to
// listen on the redirect URL.
type BrowserConsent struct {
	RedirectURL string
	ChromeBin   string
	Timeout     time.Duration
	Logger      *utils.Logger
}

func (b *BrowserConsent) Code(ctx context.Context, authURL, state string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-gpu", false),
		chromedp.WindowSize(900, 760),
	)
	if b.ChromeBin != "" {
		opts = append(opts, chromedp.ExecPath(b.ChromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, b.Timeout)
	defer cancelTimeout()

	type outcome struct {
		code string
		err  error
	}
	done := make(chan outcome, 1)

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		req, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || req.Request == nil {
			return
		}
		code, matched, err := codeFromRedirect(req.Request.URL, b.RedirectURL, state)
		if !matched {
			return
		}
		select {
		case done <- outcome{code: code, err: err}:
		default:
		}
	})

	b.Logger.Info("[auth] Opening browser for Google Analytics consent (waiting up to %v)", b.Timeout)
	if err := chromedp.Run(browserCtx, network.Enable(), chromedp.Navigate(authURL)); err != nil {
		return "", fmt.Errorf("open consent page: %w", err)
	}

	select {
	case out := <-done:
		return out.code, out.err
	case <-browserCtx.Done():
		return "", fmt.Errorf("waiting for consent redirect: %w", browserCtx.Err())
	}
}

// PromptConsent prints the consent URL and reads back either the full
// redirect URL or the bare code.
type PromptConsent struct {
	In  io.Reader
	Out io.Writer
}

func (p *PromptConsent) Code(_ context.Context, authURL, state string) (string, error) {
	fmt.Fprintf(p.Out, "\nOpen this link in your browser and grant access:\n\n  %s\n\n", authURL)
	fmt.Fprint(p.Out, "Paste the URL you were redirected to (or the code): ")

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read consent code: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no consent code entered")
	}

	if strings.Contains(line, "://") {
		u, err := url.Parse(line)
		if err != nil {
			return "", fmt.Errorf("parse redirect URL: %w", err)
		}
		code, _, err := codeFromRedirect(line, u.Scheme+"://"+u.Host+u.Path, state)
		return code, err
	}
	return line, nil
}

// codeFromRedirect extracts the authorization code from a request to the
// redirect URL. matched is false for any other URL.
func codeFromRedirect(raw, redirectURL, state string) (code string, matched bool, err error) {
	got, err := url.Parse(raw)
	if err != nil {
		return "", false, nil
	}
	want, err := url.Parse(redirectURL)
	if err != nil {
		return "", false, nil
	}
	if got.Scheme != want.Scheme || got.Host != want.Host ||
		strings.TrimSuffix(got.Path, "/") != strings.TrimSuffix(want.Path, "/") {
		return "", false, nil
	}

	q := got.Query()
	if e := q.Get("error"); e != "" {
		return "", true, fmt.Errorf("consent denied: %s", e)
	}
	if q.Get("state") != state {
		return "", true, errors.New("consent redirect state mismatch")
	}
	code = q.Get("code")
	if code == "" {
		return "", true, errors.New("consent redirect has no code")
	}
	return code, true, nil
}
