package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/tavoai/tavo-cli/internal/sessionfile"
)

// defaultListenAddr is where the transient callback listener binds. The
// port is fixed because the redirect URI registered with the identity
// service must match exactly.
const defaultListenAddr = "127.0.0.1:8521"

// callbackPath is the HTTP path the authorization redirect hits on the
// local listener.
const callbackPath = "/auth/callback"

// browserFlowTimeout is the absolute deadline for the user to complete
// authorization in the browser.
const browserFlowTimeout = 5 * time.Minute

// stateTokenBytes is the number of random bytes behind the state parameter.
const stateTokenBytes = 32

// shutdownTimeout is how long to wait for the callback listener to drain.
const shutdownTimeout = 5 * time.Second

// successPage is shown in the user's browser after a valid callback, so the
// redirect lands on a confirmation instead of a connection reset.
const successPage = "<html><body><h1>Login successful</h1>" +
	"<p>You can close this window and return to the terminal.</p></body></html>"

// callbackResult carries the authorization code or error out of the
// callback handler.
type callbackResult struct {
	code string
	err  error
}

// LoginWithBrowser performs the authorization-code grant:
//  1. Binds the localhost callback listener
//  2. Opens the browser at the service's authorization page
//  3. Receives the redirect, validating the CSRF state
//  4. Exchanges the code for tokens and persists the session
//
// openURL is called with the authorization URL; the CLI uses it to launch
// the default browser. If openURL fails, the URL is printed to stderr so
// the user can open it manually.
func (s *Service) LoginWithBrowser(ctx context.Context, openURL func(string) error) error {
	s.logger.Info("starting browser auth flow")

	ctx, cancel := context.WithTimeout(ctx, s.browserTimeout)
	defer cancel()

	state, err := generateState()
	if err != nil {
		return fmt.Errorf("generating state token: %w", err)
	}

	// One-shot resolution: the first outcome wins, later callback hits and
	// the timeout branch are no-ops against an already-resolved flow.
	resultCh := make(chan callbackResult, 1)
	resolve := resolveOnce(resultCh)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		handleCallback(w, r, state, resolve)
	})

	srv, redirectURI, err := s.startCallbackListener(ctx, mux, resolve)
	if err != nil {
		return err
	}

	defer shutdownCallbackListener(srv, s.logger)

	authURL := s.client.AuthorizationURL(state, redirectURI)
	launchBrowser(authURL, openURL, s.logger)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return err
	}

	s.logger.Info("received authorization code, exchanging for tokens")

	grant, err := s.client.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return fmt.Errorf("code exchange failed: %w", err)
	}

	sess, err := sessionFromGrant(grant)
	if err != nil {
		return err
	}

	if err := s.store.Write(sess); err != nil {
		return err
	}

	s.logger.Info("browser login successful",
		slog.String("user_id", sess.UserID),
		slog.Time("expires_at", sess.ExpiresAt),
	)

	return nil
}

// resolveOnce wraps the result channel so that only the first outcome is
// delivered. The channel is buffered, so the winning send never blocks.
func resolveOnce(ch chan<- callbackResult) func(callbackResult) {
	var once sync.Once

	return func(r callbackResult) {
		once.Do(func() { ch <- r })
	}
}

// startCallbackListener binds the transient local HTTP listener and returns
// the server plus the redirect URI derived from the bound address.
func (s *Service) startCallbackListener(
	ctx context.Context,
	mux *http.ServeMux,
	resolve func(callbackResult),
) (*http.Server, string, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", s.listenAddr)
	if err != nil {
		return nil, "", fmt.Errorf("binding localhost listener on %s: %w", s.listenAddr, err)
	}

	redirectURI := "http://" + listener.Addr().String() + callbackPath
	s.logger.Info("callback listener ready", slog.String("redirect_uri", redirectURI))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			resolve(callbackResult{err: fmt.Errorf("callback listener error: %w", serveErr)})
		}
	}()

	return srv, redirectURI, nil
}

// handleCallback validates the state, extracts the code, and resolves the
// flow. A state mismatch is terminal: the flow must never be retried with
// the same state.
func handleCallback(w http.ResponseWriter, r *http.Request, state string, resolve func(callbackResult)) {
	if r.URL.Query().Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		resolve(callbackResult{err: fmt.Errorf("%w: state mismatch (possible CSRF)", ErrInvalidGrant)})

		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		desc := r.URL.Query().Get("error_description")
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		resolve(callbackResult{err: fmt.Errorf("%w: %s: %s", ErrInvalidGrant, errParam, desc)})

		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		resolve(callbackResult{err: fmt.Errorf("%w: callback missing authorization code", ErrInvalidGrant)})

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, successPage)
	resolve(callbackResult{code: code})
}

// shutdownCallbackListener closes the callback server. Safe to call after
// the server already stopped — the listener is torn down exactly once on
// success, mismatch, and timeout alike.
func shutdownCallbackListener(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Best-effort shutdown — log but don't propagate since we're in a defer.
		logger.Warn("callback listener shutdown error", slog.String("error", err.Error()))
	}
}

// launchBrowser attempts to open the auth URL. If it fails, prints the URL
// to stderr as a fallback so the user can copy-paste it.
func launchBrowser(authURL string, openURL func(string) error, logger *slog.Logger) {
	logger.Info("opening browser for authorization")

	if openErr := openURL(authURL); openErr != nil {
		logger.Warn("failed to open browser, printing URL",
			slog.String("error", openErr.Error()),
		)

		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback resolves or the deadline hits.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: no callback before the deadline", ErrTimeout)
		}

		return "", fmt.Errorf("browser auth canceled: %w", ctx.Err())
	}
}

// sessionFromGrant builds the persisted session from a token grant response.
// The browser and device flows both land here, so a stored session carries
// no trace of which grant produced it.
func sessionFromGrant(grant *tokenGrant) (*sessionfile.Session, error) {
	if grant.User == nil {
		return nil, fmt.Errorf("%w: grant response missing user", ErrInvalidGrant)
	}

	return &sessionfile.Session{
		UserID:       grant.User.ID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
		User:         *grant.User,
	}, nil
}

// generateState produces a cryptographically random hex string for the
// state parameter. It binds the authorization request to its callback; it
// is not a credential.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
