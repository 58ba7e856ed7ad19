package apiclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/pkg/apiclient"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

type gatewayFixture struct {
	server      *httptest.Server
	tokenCalls  int32
	apiCalls    int32
	rejectFirst bool
}

func newGatewayFixture(t *testing.T, rejectFirst bool) *gatewayFixture {
	t.Helper()

	fixture := &gatewayFixture{rejectFirst: rejectFirst}

	mux := http.NewServeMux()
	mux.HandleFunc("/micro/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&fixture.tokenCalls, 1)
		token := "token-1"

		if n > 1 {
			token = "token-2"
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"`+token+`","expires_in":3600}`)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fixture.apiCalls, 1)
		w.Header().Set("Content-Type", "application/json")

		token := r.URL.Query().Get("access_token")
		if token == "" || (fixture.rejectFirst && token == "token-1") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid_token"}`)

			return
		}

		_, _ = io.WriteString(w, `{"response":{"id":1,"token":"`+token+`"}}`)
	})

	fixture.server = httptest.NewServer(mux)
	t.Cleanup(fixture.server.Close)

	return fixture
}

func (f *gatewayFixture) config() *apireq.Config {
	return &apireq.Config{
		Gateway: apireq.GatewayConfig{
			Enabled:   true,
			URL:       f.server.URL,
			Prefix:    "micro",
			AppID:     "app",
			AppSecret: "secret",
		},
		Services: map[string]apireq.ServiceConfig{
			"users":  {Prefix: f.server.URL + "/api/users", Entity: "user"},
			"orders": {Prefix: f.server.URL + "/api/orders", Entity: "order"},
		},
	}
}

func tokenOf(t *testing.T, result apireq.Result) string {
	t.Helper()

	entity, ok := result.(*apireq.Entity)
	require.True(t, ok)

	token, ok := entity.String("token")
	require.True(t, ok)

	return token
}

func TestNewFromConfig_SignsRequests(t *testing.T) {
	t.Parallel()

	fixture := newGatewayFixture(t, false)

	api, err := apiclient.NewFromConfig(context.Background(), fixture.config(), "users")
	require.NoError(t, err)
	assert.Equal(t, "users", api.Service().Name)

	result, err := api.Get(context.Background(), "1", nil)
	require.NoError(t, err)
	assert.Equal(t, "token-1", tokenOf(t, result))

	_, err = api.Get(context.Background(), "2", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fixture.tokenCalls))
}

func TestNewFromConfig_RefreshesRejectedToken(t *testing.T) {
	t.Parallel()

	fixture := newGatewayFixture(t, true)

	api, err := apiclient.NewFromConfig(context.Background(), fixture.config(), "users")
	require.NoError(t, err)

	result, err := api.Get(context.Background(), "1", nil)
	require.NoError(t, err)
	assert.Equal(t, "token-2", tokenOf(t, result))
	assert.Equal(t, int32(2), atomic.LoadInt32(&fixture.tokenCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&fixture.apiCalls))
}

func TestNew_StaticToken(t *testing.T) {
	t.Parallel()

	fixture := newGatewayFixture(t, false)
	cfg := fixture.config()
	cfg.Gateway.Enabled = false

	svc, err := cfg.Service("orders")
	require.NoError(t, err)

	api, err := apiclient.New(context.Background(), cfg, svc, apiclient.WithStaticToken("static"))
	require.NoError(t, err)

	result, err := api.Get(context.Background(), "7", nil)
	require.NoError(t, err)
	assert.Equal(t, "static", tokenOf(t, result))
	assert.Zero(t, atomic.LoadInt32(&fixture.tokenCalls))
}

func TestNew_GatewayDisabledSendsNoToken(t *testing.T) {
	t.Parallel()

	fixture := newGatewayFixture(t, false)
	cfg := fixture.config()
	cfg.Gateway.Enabled = false

	api, err := apiclient.NewFromConfig(context.Background(), cfg, "users")
	require.NoError(t, err)

	_, err = api.Get(context.Background(), "1", nil)
	require.ErrorIs(t, err, apireq.ErrHTTP)
	assert.Equal(t, http.StatusUnauthorized, apireq.StatusCode(err))
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := apiclient.New(context.Background(), nil, apireq.Service{})
	require.ErrorIs(t, err, constants.ErrConfigRequired)

	_, err = apiclient.NewFromConfig(context.Background(), &apireq.Config{}, "missing")
	require.ErrorIs(t, err, constants.ErrServiceNotConfigured)

	cfg := &apireq.Config{
		Gateway: apireq.GatewayConfig{Enabled: true, URL: "http://gateway.invalid"},
		Services: map[string]apireq.ServiceConfig{
			"users": {Prefix: "http://users.invalid"},
		},
	}

	_, err = apiclient.NewFromConfig(context.Background(), cfg, "users")
	require.ErrorIs(t, err, constants.ErrGatewayCredentials)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	fixture := newGatewayFixture(t, false)

	registry, err := apiclient.NewRegistry(context.Background(), fixture.config())
	require.NoError(t, err)

	defer func() { require.NoError(t, registry.Close()) }()

	users, err := registry.API(context.Background(), "users")
	require.NoError(t, err)

	again, err := registry.API(context.Background(), "users")
	require.NoError(t, err)
	assert.Same(t, users, again)

	orders, err := registry.API(context.Background(), "orders")
	require.NoError(t, err)

	_, err = users.Get(context.Background(), "1", nil)
	require.NoError(t, err)

	_, err = orders.Get(context.Background(), "1", nil)
	require.NoError(t, err)

	// Both services share credentials and prefix, so one token request serves both.
	assert.Equal(t, int32(1), atomic.LoadInt32(&fixture.tokenCalls))

	token, prefix, err := registry.Token(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, "micro", prefix)
	assert.Equal(t, "token-1", token.AccessToken)

	token, _, err = registry.RefreshToken(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, "token-2", token.AccessToken)

	_, err = registry.API(context.Background(), "missing")
	require.ErrorIs(t, err, constants.ErrServiceNotConfigured)
}

func TestRegistry_GatewayDisabled(t *testing.T) {
	t.Parallel()

	registry, err := apiclient.NewRegistry(context.Background(), &apireq.Config{
		Services: map[string]apireq.ServiceConfig{"users": {Prefix: "http://users.invalid"}},
	})
	require.NoError(t, err)

	_, _, err = registry.Token(context.Background(), "users")
	require.ErrorIs(t, err, constants.ErrGatewayDisabled)
}
