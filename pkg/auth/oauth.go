// Package auth acquires and persists the Google OAuth token used for remote sync.
//
// The token lives in a JSON file next to the client secrets. Non-interactive acquisition only
// ever reads and refreshes that file; the browser flow runs when a caller explicitly asks.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

// ErrNotAuthenticated means no usable token exists and the caller did not ask to sign in.
var ErrNotAuthenticated = errors.New("not authenticated with Google")

const (
	DefaultAuthPort = "6789"
	revokeURL       = "https://oauth2.googleapis.com/revoke"
	authTimeout     = 5 * time.Minute
)

// Scopes requested at sign-in.
var Scopes = []string{
	calendar.CalendarScope,
	tasks.TasksScope,
	oauth2api.UserinfoEmailScope,
	oauth2api.UserinfoProfileScope,
}

// Identity is the signed-in Google account.
type Identity struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

type Options struct {
	CredentialsFile string
	TokenFile       string
	AuthPort        string
	Log             logrus.FieldLogger
	// Prompt receives the consent URL during interactive sign-in. Defaults to os.Stdout.
	Prompt io.Writer
}

type Authenticator struct {
	credentialsFile string
	tokenFile       string
	port            string
	log             logrus.FieldLogger
	prompt          io.Writer

	revokeURL  string
	httpClient *http.Client
	apiOptions []option.ClientOption

	mu     sync.Mutex
	webMu  sync.Mutex
	config *oauth2.Config
	token  *oauth2.Token
}

func New(opts Options) *Authenticator {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Prompt == nil {
		opts.Prompt = os.Stdout
	}
	if opts.AuthPort == "" {
		opts.AuthPort = DefaultAuthPort
	}
	return &Authenticator{
		credentialsFile: opts.CredentialsFile,
		tokenFile:       opts.TokenFile,
		port:            opts.AuthPort,
		log:             opts.Log.WithField("component", "auth"),
		prompt:          opts.Prompt,
		revokeURL:       revokeURL,
		httpClient:      http.DefaultClient,
	}
}

// loadConfig reads the client secrets once and pins the redirect URL to the local callback port.
func (a *Authenticator) loadConfig() (*oauth2.Config, error) {
	if a.config != nil {
		return a.config, nil
	}
	b, err := os.ReadFile(a.credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", a.credentialsFile, err)
	}
	config, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	parsedURL, parseErr := url.Parse(config.RedirectURL)
	switch {
	case parseErr != nil:
		a.log.Warnf("Warning: Could not parse RedirectURL '%s': %v. Using it as is.", config.RedirectURL, parseErr)
	case config.RedirectURL == "urn:ietf:wg:oauth:2.0:oob":
		config.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", a.port)
		a.log.Infof("Overriding 'urn:ietf:wg:oauth:2.0:oob' RedirectURL to: %s", config.RedirectURL)
	case parsedURL.Hostname() == "localhost" || parsedURL.Hostname() == "127.0.0.1":
		if parsedURL.Port() != "" && parsedURL.Port() != a.port {
			a.log.Warnf("Warning: Mismatch in localhost redirect port. credentials file has '%s', forcing '%s'.", parsedURL.Port(), a.port)
		}
		parsedURL.Host = net.JoinHostPort(parsedURL.Hostname(), a.port)
		config.RedirectURL = parsedURL.String()
	default:
		a.log.Warnf("Warning: Configured RedirectURL is not a localhost callback: %s. Ensure this is correct for your setup.", config.RedirectURL)
	}

	a.config = config
	return config, nil
}

// AcquireToken returns a valid token, refreshing it when needed. With interactive set and no
// usable token it runs the browser consent flow; otherwise it fails with ErrNotAuthenticated.
// The consent flow runs without holding the token lock, so silent callers are answered
// immediately while a sign-in is pending.
func (a *Authenticator) AcquireToken(ctx context.Context, interactive bool) (*oauth2.Token, error) {
	a.mu.Lock()
	tok, config, err := a.storedToken(ctx)
	a.mu.Unlock()
	if err == nil {
		return tok, nil
	}
	if !interactive || !errors.Is(err, ErrNotAuthenticated) || config == nil {
		return nil, err
	}

	a.webMu.Lock()
	defer a.webMu.Unlock()
	tok, err = a.getTokenFromWeb(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to get token from web: %w", err)
	}
	a.mu.Lock()
	a.persist(tok)
	a.token = tok
	a.mu.Unlock()
	return tok, nil
}

// storedToken returns the cached or on-disk token, refreshed if needed. Callers hold a.mu.
// The config is returned whenever the client secrets could be read.
func (a *Authenticator) storedToken(ctx context.Context) (*oauth2.Token, *oauth2.Config, error) {
	config, err := a.loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	tok := a.token
	if tok == nil {
		if tok, err = tokenFromFile(a.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.log.Warnf("Warning: ignoring unreadable token file: %v", err)
		}
	}

	if tok != nil {
		fresh, err := config.TokenSource(ctx, tok).Token()
		if err == nil {
			if fresh.AccessToken != tok.AccessToken || fresh.RefreshToken != tok.RefreshToken {
				a.log.Info("Token was refreshed. Saving new token to file.")
				a.persist(fresh)
			}
			a.token = fresh
			return fresh, config, nil
		}
		a.log.Warnf("Warning: stored token is no longer valid: %v", err)
		a.token = nil
	}
	return nil, config, ErrNotAuthenticated
}

func (a *Authenticator) persist(tok *oauth2.Token) {
	if err := saveToken(a.tokenFile, tok); err != nil {
		a.log.Warnf("Warning: could not cache OAuth token: %v", err)
	}
}

// Client returns an HTTP client that authorizes requests and saves refreshed tokens.
func (a *Authenticator) Client(ctx context.Context, interactive bool) (*http.Client, error) {
	tok, err := a.AcquireToken(ctx, interactive)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	config := a.config
	a.mu.Unlock()
	src := &savingTokenSource{base: config.TokenSource(context.WithoutCancel(ctx), tok), last: tok, a: a}
	return oauth2.NewClient(context.WithoutCancel(ctx), oauth2.ReuseTokenSource(tok, src)), nil
}

// savingTokenSource writes the token back to disk whenever the underlying source refreshes it.
type savingTokenSource struct {
	base oauth2.TokenSource
	a    *Authenticator

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	changed := s.last == nil || tok.AccessToken != s.last.AccessToken
	s.last = tok
	s.mu.Unlock()
	if changed {
		s.a.mu.Lock()
		s.a.token = tok
		s.a.persist(tok)
		s.a.mu.Unlock()
	}
	return tok, nil
}

// IsSignedIn reports whether a token can be obtained without user interaction.
func (a *Authenticator) IsSignedIn(ctx context.Context) bool {
	_, err := a.AcquireToken(ctx, false)
	return err == nil
}

// CurrentIdentity looks up the signed-in account. It returns ErrNotAuthenticated when nobody is.
func (a *Authenticator) CurrentIdentity(ctx context.Context) (*Identity, error) {
	client, err := a.Client(ctx, false)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, a.apiOptions...)
	srv, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create userinfo client: %w", err)
	}
	info, err := srv.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to fetch user info: %w", err)
	}
	return &Identity{Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

// SignOut revokes the stored token and removes it from disk. Revocation failures are logged;
// the local token is removed regardless.
func (a *Authenticator) SignOut(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tok := a.token
	if tok == nil {
		tok, _ = tokenFromFile(a.tokenFile)
	}
	a.token = nil

	if tok != nil {
		if err := a.revoke(ctx, tok); err != nil {
			a.log.Warnf("Warning: token revocation failed: %v", err)
		}
	}
	if err := os.Remove(a.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	a.log.Info("Signed out of Google")
	return nil
}

func (a *Authenticator) revoke(ctx context.Context, tok *oauth2.Token) error {
	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}
	if value == "" {
		return nil
	}
	form := url.Values{"token": {value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke endpoint returned %s", resp.Status)
	}
	return nil
}

// getTokenFromWeb runs the authorization code flow, capturing the redirect on a local listener.
func (a *Authenticator) getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	state := fmt.Sprintf("gsd-%d", time.Now().UnixNano())

	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", a.port))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", a.port, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("state") != state {
				http.Error(w, "State mismatch", http.StatusBadRequest)
				return
			}
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- fmt.Errorf("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	defer server.Shutdown(context.Background())

	go func() {
		a.log.Infof("Local server listening on %s for OAuth2 redirect...", config.RedirectURL)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errCh <- fmt.Errorf("HTTP server error: %w", err):
			default:
			}
		}
	}()

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Fprintf(a.prompt, "Please open the following URL in your browser to authorize gsd:\n%s\n", authURL)
	a.log.Info("Waiting for authorization code...")

	select {
	case code := <-codeCh:
		exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exchangeCtx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, fmt.Errorf("authorization timed out. Please try again")
	}
}

// tokenFromFile reads an oauth2.Token from a JSON file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

// saveToken saves an oauth2.Token to a JSON file readable only by the owner.
func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
