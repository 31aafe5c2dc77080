package identity

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callbackURL extracts the redirect URI and state from the authorization URL
// handed to the browser and builds the callback the identity service would
// issue.
func callbackURL(t *testing.T, authURL, state string, query url.Values) string {
	t.Helper()

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	redirect := parsed.Query().Get("redirect_uri")
	require.NotEmpty(t, redirect)

	if state == "" {
		state = parsed.Query().Get("state")
	}

	query.Set("state", state)

	return redirect + "?" + query.Encode()
}

func TestLoginWithBrowser_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, r *http.Request) {
		body := decodeAction(r)
		require.Equal(t, "exchange_code", body["action"])
		require.Equal(t, "authorization_code", body["grant_type"])
		require.Equal(t, "test-code", body["code"])
		require.NotEmpty(t, body["redirect_uri"])

		writeJSON(w, grantResponse("access-123", "refresh-456", time.Now().Add(time.Hour), true))
	})

	svc, store := newTestService(t, mux)

	var savedRedirect string

	openURL := func(authURL string) error {
		cb := callbackURL(t, authURL, "", url.Values{"code": {"test-code"}})
		savedRedirect = cb

		resp, err := http.Get(cb)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		return nil
	}

	require.NoError(t, svc.LoginWithBrowser(context.Background(), openURL))

	s, err := store.Read()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "access-123", s.AccessToken)
	assert.Equal(t, "refresh-456", s.RefreshToken)
	assert.Equal(t, testUser(), s.User)

	// The one-shot listener is down after resolution.
	_, err = http.Get(savedRedirect)
	assert.Error(t, err)
}

func TestLoginWithBrowser_StateMismatch(t *testing.T) {
	svc, store := newTestService(t, http.NewServeMux())

	openURL := func(authURL string) error {
		cb := callbackURL(t, authURL, "xyz", url.Values{"code": {"test-code"}})

		resp, err := http.Get(cb)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		return nil
	}

	err := svc.LoginWithBrowser(context.Background(), openURL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidGrant)
	assert.Contains(t, err.Error(), "state mismatch")

	// No session may exist after a mismatched callback.
	s, readErr := store.Read()
	require.NoError(t, readErr)
	assert.Nil(t, s)
}

func TestLoginWithBrowser_AuthorizationError(t *testing.T) {
	svc, store := newTestService(t, http.NewServeMux())

	openURL := func(authURL string) error {
		cb := callbackURL(t, authURL, "", url.Values{
			"error":             {"access_denied"},
			"error_description": {"user said no"},
		})

		resp, err := http.Get(cb)
		require.NoError(t, err)
		resp.Body.Close()

		return nil
	}

	err := svc.LoginWithBrowser(context.Background(), openURL)
	assert.ErrorIs(t, err, ErrInvalidGrant)
	assert.Contains(t, err.Error(), "access_denied")

	s, readErr := store.Read()
	require.NoError(t, readErr)
	assert.Nil(t, s)
}

func TestLoginWithBrowser_Timeout(t *testing.T) {
	svc, store := newTestService(t, http.NewServeMux())
	svc.browserTimeout = 50 * time.Millisecond

	// Browser never calls back.
	err := svc.LoginWithBrowser(context.Background(), func(string) error { return nil })
	assert.ErrorIs(t, err, ErrTimeout)

	s, readErr := store.Read()
	require.NoError(t, readErr)
	assert.Nil(t, s)
}

func TestLoginWithBrowser_CanceledContext(t *testing.T) {
	svc, _ := newTestService(t, http.NewServeMux())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.LoginWithBrowser(ctx, func(string) error { return nil })
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestLoginWithBrowser_ExchangeFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant","error_description":"code already used"}`, http.StatusBadRequest)
	})

	svc, store := newTestService(t, mux)

	openURL := func(authURL string) error {
		cb := callbackURL(t, authURL, "", url.Values{"code": {"stale-code"}})

		resp, err := http.Get(cb)
		require.NoError(t, err)
		resp.Body.Close()

		return nil
	}

	err := svc.LoginWithBrowser(context.Background(), openURL)
	assert.ErrorIs(t, err, ErrInvalidGrant)

	s, readErr := store.Read()
	require.NoError(t, readErr)
	assert.Nil(t, s)
}

func TestLoginWithBrowser_AuthorizationURLShape(t *testing.T) {
	svc, _ := newTestService(t, http.NewServeMux())
	svc.browserTimeout = 50 * time.Millisecond

	var captured string

	_ = svc.LoginWithBrowser(context.Background(), func(u string) error {
		captured = u
		return nil
	})

	parsed, err := url.Parse(captured)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "/auth/authorize", parsed.Path)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "tavo-cli", q.Get("client_id"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Contains(t, q.Get("redirect_uri"), callbackPath)

	// 32 bytes of entropy, hex-encoded.
	assert.Len(t, q.Get("state"), 64)
}

func TestGenerateState_Unique(t *testing.T) {
	a, err := generateState()
	require.NoError(t, err)

	b, err := generateState()
	require.NoError(t, err)

	assert.Len(t, a, 2*stateTokenBytes)
	assert.NotEqual(t, a, b)
}

// Late callbacks after the flow resolved must be no-ops: they must not
// overwrite the session or panic on a closed channel.
func TestLoginWithBrowser_PostResolutionCallbackIsNoOp(t *testing.T) {
	exchanged := make(chan struct{}, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, _ *http.Request) {
		exchanged <- struct{}{}
		writeJSON(w, grantResponse("access-123", "refresh-456", time.Now().Add(time.Hour), true))
	})

	svc, store := newTestService(t, mux)

	openURL := func(authURL string) error {
		first := callbackURL(t, authURL, "", url.Values{"code": {"test-code"}})
		second := callbackURL(t, authURL, "", url.Values{"code": {"other-code"}})

		resp, err := http.Get(first)
		require.NoError(t, err)
		resp.Body.Close()

		// Second callback races the teardown; either response or a closed
		// listener is acceptable, but it must not exchange a second code.
		if resp2, err2 := http.Get(second); err2 == nil {
			resp2.Body.Close()
		}

		return nil
	}

	require.NoError(t, svc.LoginWithBrowser(context.Background(), openURL))

	<-exchanged

	select {
	case <-exchanged:
		t.Fatal("second authorization code was exchanged")
	default:
	}

	s, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, "access-123", s.AccessToken)
}
