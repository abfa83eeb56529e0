package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	httpAdapter "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNS = domain.Namespace{Scope: domain.ScopeProject, OrganizationID: "o1", ProjectID: "p1"}

func newServer(t *testing.T, opts ...httpAdapter.ServerOption) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(httpAdapter.NewHandler(memory.NewStore(), opts...))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPStore_Contract(t *testing.T) {
	srv := newServer(t, httpAdapter.WithToken("secret"))
	client := httpAdapter.NewClient(srv.URL, "secret")
	ports.RunVersionedStoreContract(t, client)
}

func TestHTTPStore_RejectsBadToken(t *testing.T) {
	srv := newServer(t, httpAdapter.WithToken("secret"))
	client := httpAdapter.NewClient(srv.URL, "wrong", httpAdapter.WithRetryCount(0))

	_, err := client.Get(context.Background(), testNS, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid state token")
}

func TestHTTPStore_Health(t *testing.T) {
	srv := newServer(t, httpAdapter.WithToken("secret"))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPStore_RejectsIncompleteScope(t *testing.T) {
	srv := newServer(t)
	client := httpAdapter.NewClient(srv.URL, "", httpAdapter.WithRetryCount(0))

	ns := domain.Namespace{Scope: domain.ScopeEnvironment, OrganizationID: "o1"}
	_, err := client.CompareAndSwap(context.Background(), ns, "k", 1, domain.NoVersion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestHTTPClient_RetriesReadsButNotWrites(t *testing.T) {
	var gets, puts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gets.Add(1)
		case http.MethodPut:
			puts.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"store unavailable"}`))
	}))
	defer srv.Close()

	client := httpAdapter.NewClient(srv.URL, "", httpAdapter.WithRetryCount(2))
	ctx := context.Background()

	_, err := client.Get(ctx, testNS, "k")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "store unavailable"))
	assert.Equal(t, int32(3), gets.Load())

	_, err = client.CompareAndSwap(ctx, testNS, "k", 1, domain.NoVersion)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, int32(1), puts.Load())
}

func TestOpenAPISpec(t *testing.T) {
	swagger, err := httpAdapter.GetSwagger()
	require.NoError(t, err)
	require.NoError(t, swagger.Validate(context.Background()))

	root := swagger.Paths.Value("/")
	require.NotNil(t, root)
	assert.Equal(t, "getEntry", root.Get.OperationID)
	assert.Equal(t, "putEntry", root.Put.OperationID)
	assert.Equal(t, "deleteEntry", root.Delete.OperationID)
	assert.Contains(t, swagger.Components.SecuritySchemes, "stateToken")
}

func TestHTTPStore_ServesOpenAPIDocument(t *testing.T) {
	srv := newServer(t, httpAdapter.WithToken("secret"))

	resp, err := http.Get(srv.URL + "/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "the document needs no token")
	assert.Equal(t, "text/yaml", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Tendril State Store")
}

func TestHTTPStore_MissingQueryParameter(t *testing.T) {
	srv := newServer(t, httpAdapter.WithToken("secret"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/?scope=organization&organization_id=o1", nil)
	require.NoError(t, err)
	req.Header.Set(httpAdapter.HeaderStateToken, "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body httpAdapter.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "key")
}

func TestPool_TokenTravelsPerRequest(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.Header.Get(httpAdapter.HeaderStateToken))
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	pool := httpAdapter.NewPool(httpAdapter.WithRetryCount(0))
	for _, token := range []string{"a", "b", "a"} {
		entry, err := pool.Client(srv.URL, token).Get(context.Background(), testNS, "k")
		require.NoError(t, err)
		assert.False(t, entry.Exists())
	}
	assert.Equal(t, []string{"a", "b", "a"}, tokens)
}
