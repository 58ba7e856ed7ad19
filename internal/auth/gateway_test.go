package auth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/apirequests/internal/auth"
	"github.com/fivetwenty-io/apirequests/internal/constants"
)

func newGatewayServer(t *testing.T, calls *int32, tokens ...string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/oauth2/token", r.URL.Path)

		err := r.ParseForm()
		assert.NoError(t, err)
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "app-id", r.Form.Get("client_id"))
		assert.Equal(t, "app-secret", r.Form.Get("client_secret"))

		token := tokens[len(tokens)-1]
		if int(n) <= len(tokens) {
			token = tokens[n-1]
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": token,
			"token_type":   "bearer",
			"expires_in":   7200,
		})
	}))
}

func newManager(t *testing.T, url string) *auth.GatewayTokenManager {
	t.Helper()

	manager, err := auth.NewGatewayTokenManager(auth.GatewayConfig{
		URL:       url,
		AppID:     "app-id",
		AppSecret: "app-secret",
	})
	require.NoError(t, err)

	return manager
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestGatewayTokenManager(t *testing.T) {
	t.Parallel()

	t.Run("fetches and caches token", func(t *testing.T) {
		t.Parallel()

		var calls int32

		server := newGatewayServer(t, &calls, "token-1")
		defer server.Close()

		manager := newManager(t, server.URL)

		token, err := manager.GetToken(context.Background(), "users")
		require.NoError(t, err)
		assert.Equal(t, "token-1", token)

		token, err = manager.GetToken(context.Background(), "/users/")
		require.NoError(t, err)
		assert.Equal(t, "token-1", token)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("stamps expiry from expires_in", func(t *testing.T) {
		t.Parallel()

		var calls int32

		server := newGatewayServer(t, &calls, "token-1")
		defer server.Close()

		manager := newManager(t, server.URL)

		token, err := manager.Token(context.Background(), "users")
		require.NoError(t, err)
		assert.Equal(t, 7200, token.ExpiresIn)
		assert.WithinDuration(t, time.Now().Add(2*time.Hour), token.ExpiresAt, time.Minute)
	})

	t.Run("refresh replaces cached token", func(t *testing.T) {
		t.Parallel()

		var calls int32

		server := newGatewayServer(t, &calls, "token-1", "token-2")
		defer server.Close()

		manager := newManager(t, server.URL)

		token, err := manager.GetToken(context.Background(), "users")
		require.NoError(t, err)
		assert.Equal(t, "token-1", token)

		token, err = manager.RefreshToken(context.Background(), "users")
		require.NoError(t, err)
		assert.Equal(t, "token-2", token)

		token, err = manager.GetToken(context.Background(), "users")
		require.NoError(t, err)
		assert.Equal(t, "token-2", token)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("expired cached token is renewed", func(t *testing.T) {
		t.Parallel()

		var calls int32

		server := newGatewayServer(t, &calls, "fresh-token")
		defer server.Close()

		store := auth.NewMemoryTokenStore()
		require.NoError(t, store.Set(context.Background(), "app-id/users", &auth.Token{
			AccessToken: "stale-token",
			ExpiresAt:   time.Now().Add(-time.Hour),
		}))

		manager, err := auth.NewGatewayTokenManager(auth.GatewayConfig{
			URL:       server.URL,
			AppID:     "app-id",
			AppSecret: "app-secret",
			Store:     store,
		})
		require.NoError(t, err)

		token, err := manager.GetToken(context.Background(), "users")
		require.NoError(t, err)
		assert.Equal(t, "fresh-token", token)
	})

	t.Run("concurrent callers share one request", func(t *testing.T) {
		t.Parallel()

		var calls int32

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			<-release

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"shared-token","expires_in":3600}`))
		}))
		defer server.Close()

		manager := newManager(t, server.URL)

		var wg sync.WaitGroup

		results := make([]string, 5)
		for i := range results {
			wg.Add(1)

			go func() {
				defer wg.Done()

				results[i], _ = manager.GetToken(context.Background(), "users")
			}()
		}

		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		for _, result := range results {
			assert.Equal(t, "shared-token", result)
		}

		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("get during refresh waits for the refreshed token", func(t *testing.T) {
		t.Parallel()

		var calls int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			n := atomic.AddInt32(&calls, 1)
			time.Sleep(200 * time.Millisecond)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": fmt.Sprintf("token-%d", n),
				"expires_in":   3600,
			})
		}))
		defer server.Close()

		manager := newManager(t, server.URL)

		refreshed := make(chan string, 1)

		go func() {
			token, _ := manager.RefreshToken(context.Background(), "users")
			refreshed <- token
		}()

		time.Sleep(50 * time.Millisecond)

		token, err := manager.GetToken(context.Background(), "users")
		require.NoError(t, err)

		assert.Equal(t, "token-1", <-refreshed)
		assert.Equal(t, "token-1", token)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

		cached, err := manager.Token(context.Background(), "users")
		require.NoError(t, err)
		assert.Equal(t, "token-1", cached.AccessToken)
	})

	t.Run("cancelled caller does not fail joined callers", func(t *testing.T) {
		t.Parallel()

		var calls int32

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			<-release

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"shared-token","expires_in":3600}`))
		}))
		defer server.Close()

		manager := newManager(t, server.URL)
		ctx, cancel := context.WithCancel(context.Background())

		first := make(chan error, 1)

		go func() {
			_, err := manager.GetToken(ctx, "users")
			first <- err
		}()

		time.Sleep(50 * time.Millisecond)

		second := make(chan string, 1)

		go func() {
			token, _ := manager.GetToken(context.Background(), "users")
			second <- token
		}()

		time.Sleep(50 * time.Millisecond)
		cancel()
		require.ErrorIs(t, <-first, context.Canceled)

		close(release)
		assert.Equal(t, "shared-token", <-second)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("token body without JSON content type", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(`{"access_token":"plain-token","expires_in":3600}`))
		}))
		defer server.Close()

		manager := newManager(t, server.URL)

		token, err := manager.GetToken(context.Background(), "users")
		require.NoError(t, err)
		assert.Equal(t, "plain-token", token)
	})

	t.Run("gateway failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"bad credentials"}`))
		}))
		defer server.Close()

		manager := newManager(t, server.URL)

		_, err := manager.GetToken(context.Background(), "users")
		require.ErrorIs(t, err, constants.ErrTokenRequestFailed)
		assert.Contains(t, err.Error(), "status 401")
		assert.Contains(t, err.Error(), "bad credentials")
	})

	t.Run("empty access token", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
		}))
		defer server.Close()

		manager := newManager(t, server.URL)

		_, err := manager.GetToken(context.Background(), "users")
		require.ErrorIs(t, err, constants.ErrEmptyAccessToken)
	})
}

func TestNewGatewayTokenManager_Validation(t *testing.T) {
	t.Parallel()

	_, err := auth.NewGatewayTokenManager(auth.GatewayConfig{AppID: "a", AppSecret: "b"})
	require.ErrorIs(t, err, constants.ErrGatewayURLRequired)

	_, err = auth.NewGatewayTokenManager(auth.GatewayConfig{URL: "http://gw", AppID: "a"})
	require.ErrorIs(t, err, constants.ErrGatewayCredentials)
}

func TestStaticTokenProvider(t *testing.T) {
	t.Parallel()

	provider := auth.NewStaticTokenProvider("fixed")

	token, err := provider.GetToken(context.Background(), "any")
	require.NoError(t, err)
	assert.Equal(t, "fixed", token)

	_, err = provider.RefreshToken(context.Background(), "any")
	require.ErrorIs(t, err, constants.ErrStaticTokenCannotRefresh)

	_, err = auth.NewStaticTokenProvider("").GetToken(context.Background(), "any")
	require.ErrorIs(t, err, constants.ErrEmptyAccessToken)
}

func TestNewNATSTokenStore_RequiresURL(t *testing.T) {
	t.Parallel()

	_, err := auth.NewNATSTokenStore(context.Background(), auth.NATSTokenStoreConfig{})
	require.ErrorIs(t, err, constants.ErrNATSURLRequired)
}
