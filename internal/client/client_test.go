package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/apirequests/internal/auth"
	"github.com/fivetwenty-io/apirequests/internal/client"
	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, schema *apireq.Schema, provider auth.TokenProvider) *client.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &apireq.Config{Gateway: apireq.GatewayConfig{Prefix: "users"}}
	service := apireq.Service{Name: "users", Prefix: server.URL + "/api", Entity: schema}

	c, err := client.New(cfg, service, provider)
	require.NoError(t, err)

	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Shaping(t *testing.T) {
	t.Parallel()

	t.Run("paginator", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/users", r.URL.Path)
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			w.Header().Set("X-Total", "3")
			writeJSON(w, http.StatusOK, `{"response":{"data":[{"id":3,"name":"c"}],"meta":{"pagination":{"total":3,"per_page":2,"current_page":2}}}}`)
		}, apireq.NewSchema("user"), nil)

		result, err := c.Get(context.Background(), "/users", url.Values{"page": {"2"}})
		require.NoError(t, err)

		page, ok := result.(*apireq.Paginator)
		require.True(t, ok)
		assert.Equal(t, 3, page.Total())
		assert.Equal(t, 2, page.LastPage())
		assert.Equal(t, "3", page.Header("X-Total"))

		name, ok := page.First().String("name")
		require.True(t, ok)
		assert.Equal(t, "c", name)
	})

	t.Run("collection", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"response":{"data":[{"id":1},{"id":2}]}}`)
		}, apireq.NewSchema("user"), nil)

		result, err := c.Get(context.Background(), "users", nil)
		require.NoError(t, err)

		list, ok := result.(*apireq.Collection)
		require.True(t, ok)
		assert.Equal(t, 2, list.Len())
	})

	t.Run("entity keeps key order", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"response":{"z":1,"a":2,"m":3}}`)
		}, apireq.NewSchema("user"), nil)

		result, err := c.Get(context.Background(), "users/1", nil)
		require.NoError(t, err)

		entity, ok := result.(*apireq.Entity)
		require.True(t, ok)
		assert.Equal(t, []string{"z", "a", "m"}, entity.Keys())

		data, err := json.Marshal(entity)
		require.NoError(t, err)
		assert.JSONEq(t, `{"z":1,"a":2,"m":3}`, string(data))
	})

	t.Run("raw without schema", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"response":{"data":[{"id":1}]}}`)
		}, nil, nil)

		result, err := c.Get(context.Background(), "users", nil)
		require.NoError(t, err)
		assert.IsType(t, &apireq.Raw{}, result)
	})

	t.Run("per-call entity", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"response":{"id":1}}`)
		}, nil, nil)

		result, err := c.Get(context.Background(), "users/1", nil, apireq.WithEntity(apireq.NewSchema("user")))
		require.NoError(t, err)
		assert.IsType(t, &apireq.Entity{}, result)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}, apireq.NewSchema("user"), nil)

		result, err := c.Delete(context.Background(), "users/1", nil)
		require.NoError(t, err)

		raw, ok := result.(*apireq.Raw)
		require.True(t, ok)
		assert.Nil(t, raw.Value)
	})

	t.Run("missing envelope", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"data":[]}`)
		}, apireq.NewSchema("user"), nil)

		_, err := c.Get(context.Background(), "users", nil)
		require.ErrorIs(t, err, apireq.ErrMalformedPayload)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"response":`)
		}, nil, nil)

		_, err := c.Get(context.Background(), "users", nil)

		var decodeErr *apireq.DecodeError
		require.ErrorAs(t, err, &decodeErr)
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		kind    error
		code    int
		message string
	}{
		{
			name:    "resource not found",
			status:  http.StatusNotFound,
			body:    `{"result_code":200002,"message":"user missing"}`,
			kind:    apireq.ErrResourceNotFound,
			code:    constants.ResultCodeResourceNotFound,
			message: "user missing",
		},
		{
			name:    "api closed",
			status:  http.StatusServiceUnavailable,
			body:    `{"result_code":200001,"message":"closed"}`,
			kind:    apireq.ErrAPIClosed,
			code:    constants.ResultCodeAPIClosed,
			message: "closed",
		},
		{
			name:    "parameter illegal",
			status:  http.StatusUnprocessableEntity,
			body:    `{"result_code":200003,"message":"bad name"}`,
			kind:    apireq.ErrParameterIllegal,
			code:    constants.ResultCodeParameterIllegal,
			message: "bad name",
		},
		{
			name:    "auth",
			status:  http.StatusForbidden,
			body:    `{"result_code":200004,"message":"denied"}`,
			kind:    apireq.ErrAuth,
			code:    constants.ResultCodeAuthError,
			message: "denied",
		},
		{
			name:    "request error",
			status:  http.StatusBadRequest,
			body:    `{"result_code":200000,"message":"bad request"}`,
			kind:    apireq.ErrRequest,
			code:    constants.ResultCodeRequestError,
			message: "bad request",
		},
		{
			name:    "unknown code",
			status:  http.StatusInternalServerError,
			body:    `{"result_code":999,"message":"boom"}`,
			kind:    apireq.ErrHTTP,
			code:    999,
			message: "boom",
		},
		{
			name:    "no result code",
			status:  http.StatusInternalServerError,
			body:    `{"message":"server exploded"}`,
			kind:    apireq.ErrHTTP,
			message: "server exploded",
		},
		{
			name:    "plain text body",
			status:  http.StatusBadGateway,
			body:    "upstream unavailable",
			kind:    apireq.ErrHTTP,
			message: "upstream unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}, apireq.NewSchema("user"), nil)

			_, err := c.Get(context.Background(), "users/1", nil)
			require.ErrorIs(t, err, tt.kind)

			var httpErr *apireq.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.code, httpErr.Code)
			assert.Equal(t, tt.message, httpErr.Message)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.body, string(httpErr.Response))
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	c, err := client.New(&apireq.Config{}, apireq.Service{Name: "down", Prefix: server.URL}, nil)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "users", nil)
	require.ErrorIs(t, err, apireq.ErrHTTP)

	var httpErr *apireq.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Zero(t, httpErr.Code)
	assert.Zero(t, httpErr.StatusCode)
	require.Error(t, httpErr.Err)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Methods(t *testing.T) {
	t.Parallel()

	t.Run("form post with per-call header", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, constants.ContentTypeForm, r.Header.Get("Content-Type"))
			assert.Equal(t, "trace-1", r.Header.Get("X-Trace"))
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "alice", r.PostForm.Get("name"))
			writeJSON(w, http.StatusCreated, `{"response":{"id":7}}`)
		}, apireq.NewSchema("user"), nil)

		result, err := c.Post(context.Background(), "users", url.Values{"name": {"alice"}},
			apireq.WithHeader("X-Trace", "trace-1"))
		require.NoError(t, err)

		entity, ok := result.(*apireq.Entity)
		require.True(t, ok)

		id, ok := entity.Int("id")
		require.True(t, ok)
		assert.Equal(t, int64(7), id)
	})

	t.Run("json keeps unicode", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, constants.ContentTypeJSON, r.Header.Get("Content-Type"))

			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			assert.Equal(t, `{"name":"张三<b>"}`, string(body))
			writeJSON(w, http.StatusOK, `{"response":{"ok":true}}`)
		}, nil, nil)

		_, err := c.JSON(context.Background(), "users", map[string]string{"name": "张三<b>"})
		require.NoError(t, err)
	})

	t.Run("call with method constant", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			writeJSON(w, http.StatusOK, `{"response":{}}`)
		}, nil, nil)

		_, err := c.Call(context.Background(), "patch", "users/1", apireq.WithForm(url.Values{"a": {"1"}}))
		require.NoError(t, err)
	})

	t.Run("upload", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "avatar", r.FormValue("kind"))

			file, header, err := r.FormFile("file")
			assert.NoError(t, err)

			if err == nil {
				defer func() { _ = file.Close() }()

				content, _ := io.ReadAll(file)
				assert.Equal(t, "a.png", header.Filename)
				assert.Equal(t, "png-bytes", string(content))
			}

			writeJSON(w, http.StatusOK, `{"response":{"url":"/a.png"}}`)
		}, nil, nil)

		files := []apireq.FilePart{{Field: "file", FileName: "a.png", Content: []byte("png-bytes")}}

		_, err := c.Upload(context.Background(), "uploads", files, url.Values{"kind": {"avatar"}})
		require.NoError(t, err)
	})

	t.Run("absolute path bypasses prefix", func(t *testing.T) {
		t.Parallel()

		other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/elsewhere", r.URL.Path)
			writeJSON(w, http.StatusOK, `{"response":{}}`)
		}))
		defer other.Close()

		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}, nil, nil)

		_, err := c.Get(context.Background(), other.URL+"/elsewhere", nil)
		require.NoError(t, err)
	})

	t.Run("unknown method", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(http.ResponseWriter, *http.Request) {}, nil, nil)

		_, err := c.Call(context.Background(), "TRACE", "users")
		require.ErrorIs(t, err, constants.ErrUnknownMethod)
	})
}

type rotatingProvider struct {
	token     string
	refreshes int32
}

func (p *rotatingProvider) GetToken(context.Context, string) (string, error) {
	return p.token, nil
}

func (p *rotatingProvider) RefreshToken(context.Context, string) (string, error) {
	atomic.AddInt32(&p.refreshes, 1)
	p.token = "fresh"

	return p.token, nil
}

func TestClient_GatewaySigning(t *testing.T) {
	t.Parallel()

	var calls int32

	provider := &rotatingProvider{token: "stale"}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "1", r.URL.Query().Get("page"))

		if r.URL.Query().Get("access_token") != "fresh" {
			writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_token"}`)

			return
		}

		writeJSON(w, http.StatusOK, `{"response":{"id":1}}`)
	}, apireq.NewSchema("user"), provider)

	result, err := c.Get(context.Background(), "users/1", url.Values{"page": {"1"}})
	require.NoError(t, err)
	assert.IsType(t, &apireq.Entity{}, result)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.refreshes))
	assert.Same(t, provider, c.TokenProvider())
}

func TestNew_RequiresPrefix(t *testing.T) {
	t.Parallel()

	_, err := client.New(&apireq.Config{}, apireq.Service{Name: "users"}, nil)
	require.ErrorIs(t, err, constants.ErrServicePrefixMissing)
}

func TestNew_UnknownMiddleware(t *testing.T) {
	t.Parallel()

	cfg := &apireq.Config{Middlewares: []string{"nope"}}

	_, err := client.New(cfg, apireq.Service{Name: "users", Prefix: "http://localhost"}, nil)
	require.ErrorIs(t, err, constants.ErrUnknownMiddleware)
}
