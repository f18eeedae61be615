// Package auth turns local Google credentials into an authorized HTTP
// client for the Analytics Reporting API.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/analyticsreporting/v4"

	"oos-analytics/config"
	"oos-analytics/models"
	"oos-analytics/utils"
)

// Scope is the only permission the pull needs.
const Scope = analyticsreporting.AnalyticsReadonlyScope

// Authorizer yields a client that signs every request.
type Authorizer interface {
	Authorize(ctx context.Context) (*http.Client, error)
}

// ConsentFlow asks the operator to grant access and returns the
// authorization code sent back to the redirect URL.
type ConsentFlow interface {
	Code(ctx context.Context, authURL, state string) (string, error)
}

// New picks the authorizer for cfg: a service account when one is
// configured, the installed-app flow otherwise.
func New(cfg *config.Config, logger *utils.Logger) Authorizer {
	if cfg.ServiceAccountFile != "" {
		return &ServiceAccountAuthorizer{KeyFile: cfg.ServiceAccountFile, Timeout: cfg.HTTPTimeout()}
	}

	var flow ConsentFlow
	switch cfg.AuthMode {
	case "prompt":
		flow = &PromptConsent{In: os.Stdin, Out: os.Stdout}
	default:
		flow = &BrowserConsent{
			RedirectURL: cfg.RedirectURL,
			ChromeBin:   cfg.ChromeBin,
			Timeout:     5 * time.Minute,
			Logger:      logger,
		}
	}

	return &InstalledAppAuthorizer{
		SecretsFile: cfg.ClientSecretsPath,
		TokenCache:  cfg.TokenCachePath,
		RedirectURL: cfg.RedirectURL,
		Timeout:     cfg.HTTPTimeout(),
		Flow:        flow,
		Logger:      logger,
	}
}

// ServiceAccountAuthorizer signs requests with a service account key.
type ServiceAccountAuthorizer struct {
	KeyFile string
	Timeout time.Duration
}

func (a *ServiceAccountAuthorizer) Authorize(ctx context.Context) (*http.Client, error) {
	data, err := os.ReadFile(a.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("auth: %w: read service account key: %w", models.ErrAuth, err)
	}
	conf, err := google.JWTConfigFromJSON(data, Scope)
	if err != nil {
		return nil, fmt.Errorf("auth: %w: parse service account key: %w", models.ErrAuth, err)
	}

	client := conf.Client(ctx)
	client.Timeout = a.Timeout
	return client, nil
}

// InstalledAppAuthorizer runs the OAuth installed-application flow and
// caches the resulting token on disk for later runs.
type InstalledAppAuthorizer struct {
	SecretsFile string
	TokenCache  string
	RedirectURL string
	Timeout     time.Duration
	Flow        ConsentFlow
	Logger      *utils.Logger
}

func (a *InstalledAppAuthorizer) Authorize(ctx context.Context) (*http.Client, error) {
	data, err := os.ReadFile(a.SecretsFile)
	if err != nil {
		return nil, fmt.Errorf("auth: %w: read client secrets %q: %w", models.ErrAuth, a.SecretsFile, err)
	}
	conf, err := google.ConfigFromJSON(data, Scope)
	if err != nil {
		return nil, fmt.Errorf("auth: %w: parse client secrets: %w", models.ErrAuth, err)
	}
	if a.RedirectURL != "" {
		conf.RedirectURL = a.RedirectURL
	}

	tok, err := LoadToken(a.TokenCache)
	if err != nil {
		a.Logger.Info("[auth] No usable cached credentials (%v), requesting consent", err)
		if tok, err = a.consent(ctx, conf); err != nil {
			return nil, err
		}
	}

	ts := &cachingTokenSource{base: conf.TokenSource(ctx, tok), path: a.TokenCache, logger: a.Logger}
	if _, err := ts.Token(); err != nil {
		var rerr *oauth2.RetrieveError
		if !errors.As(err, &rerr) {
			return nil, fmt.Errorf("auth: %w: refresh token: %w", models.ErrAuth, err)
		}
		a.Logger.Warn("[auth] Cached credentials rejected (%v), requesting consent", err)
		if tok, err = a.consent(ctx, conf); err != nil {
			return nil, err
		}
		ts = &cachingTokenSource{base: conf.TokenSource(ctx, tok), path: a.TokenCache, logger: a.Logger}
	}

	client := oauth2.NewClient(ctx, ts)
	client.Timeout = a.Timeout
	return client, nil
}

func (a *InstalledAppAuthorizer) consent(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	state := uuid.NewString()
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	code, err := a.Flow.Code(ctx, authURL, state)
	if err != nil {
		return nil, fmt.Errorf("auth: %w: consent: %w", models.ErrAuth, err)
	}
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: %w: exchange code: %w", models.ErrAuth, err)
	}
	if err := SaveToken(a.TokenCache, tok); err != nil {
		a.Logger.Warn("[auth] %v", err)
	} else {
		a.Logger.Info("[auth] Credentials stored in %s", a.TokenCache)
	}
	return tok, nil
}

// cachingTokenSource writes the token back to disk whenever it changes.
type cachingTokenSource struct {
	base   oauth2.TokenSource
	path   string
	logger *utils.Logger

	mu   sync.Mutex
	last string
}

func (s *cachingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			s.logger.Warn("[auth] %v", err)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// LoadToken reads a cached token. A token that can neither be used nor
// refreshed counts as missing.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token cache %q: %w", path, err)
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, fmt.Errorf("token cache %q holds an expired token without refresh token", path)
	}
	return &tok, nil
}

// SaveToken stores tok with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("auth: encode token: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("auth: create token dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("auth: write token cache %q: %w", path, err)
	}
	return nil
}
