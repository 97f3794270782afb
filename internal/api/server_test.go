package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/recruiter-scout/internal/index"
)

const captureBody = `{"url_params":{"keywords":"Acme%20recruiter","page":"2"},"html":"<ul></ul>","results":[{"name":"Jane"}]}`

func TestServer_SaveHTML_StoresOnce(t *testing.T) {
	t.Parallel()

	idx := openIndex(t, "search_results")
	server := NewServer(idx, nil, Config{}, zap.NewNop())

	for i := 0; i < 2; i++ {
		rec := post(server, "/save-html", captureBody)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	}

	require.Equal(t, 1, idx.Len())
	stored, ok := idx.Get("acme_recruiter_2")
	require.True(t, ok)
	assert.JSONEq(t, captureBody, string(stored))

	reopened, err := index.Open(idx.Path(), index.Options{})
	require.NoError(t, err)
	assert.True(t, reopened.Has("acme_recruiter_2"))
}

func TestServer_SaveHTML_FirstWriteWins(t *testing.T) {
	t.Parallel()

	idx := openIndex(t, "search_results")
	server := NewServer(idx, nil, Config{}, zap.NewNop())

	first := `{"url_params":{"keywords":"team"},"v":1}`
	second := `{"url_params":{"keywords":"team","page":1},"v":2}`
	require.Equal(t, http.StatusOK, post(server, "/save-html", first).Code)
	require.Equal(t, http.StatusOK, post(server, "/save-html", second).Code)

	stored, ok := idx.Get("team_1")
	require.True(t, ok)
	assert.JSONEq(t, first, string(stored))
}

func TestServer_SaveHTML_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{name: "NotJSON", body: `not json`, status: http.StatusBadRequest, kind: ErrKindInvalidBody},
		{name: "Array", body: `[1,2]`, status: http.StatusBadRequest, kind: ErrKindInvalidBody},
		{name: "Empty", body: ``, status: http.StatusBadRequest, kind: ErrKindInvalidBody},
		{name: "NoURLParams", body: `{"html":"x"}`, status: http.StatusBadRequest, kind: ErrKindMissingKeywords},
		{name: "NoKeywords", body: `{"url_params":{"page":"1"}}`, status: http.StatusBadRequest, kind: ErrKindMissingKeywords},
		{name: "BadEscape", body: `{"url_params":{"keywords":"a%zz"}}`, status: http.StatusBadRequest, kind: ErrKindInvalidKeywords},
		{name: "BadPage", body: `{"url_params":{"keywords":"a","page":"two"}}`, status: http.StatusBadRequest, kind: ErrKindInvalidPage},
		{name: "ZeroPage", body: `{"url_params":{"keywords":"a","page":0}}`, status: http.StatusBadRequest, kind: ErrKindInvalidPage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			idx := openIndex(t, "search_results")
			server := NewServer(idx, nil, Config{}, zap.NewNop())

			rec := post(server, "/save-html", tc.body)
			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.kind, decodeError(t, rec)["error"])
			assert.Zero(t, idx.Len())
		})
	}
}

func TestServer_SaveHTML_BodyTooLarge(t *testing.T) {
	t.Parallel()

	idx := openIndex(t, "search_results")
	server := NewServer(idx, nil, Config{MaxBodyBytes: 16}, zap.NewNop())

	rec := post(server, "/save-html", captureBody)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, ErrKindTooLarge, decodeError(t, rec)["error"])
	assert.Zero(t, idx.Len())
}

func TestServer_SaveHTML_StorageFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{name: "search_results", addErr: errors.New("disk full")}
	server := NewServer(store, nil, Config{}, zap.NewNop())

	rec := post(server, "/save-html", captureBody)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrKindStorage, decodeError(t, rec)["error"])
}

func TestServer_SaveHTML_ConcurrentDuplicates(t *testing.T) {
	t.Parallel()

	idx := openIndex(t, "search_results")
	server := NewServer(idx, nil, Config{}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"url_params":{"keywords":"q%d","page":"%d"}}`, i%5, 1+i%2)
			rec := post(server, "/save-html", body)
			assert.Equal(t, http.StatusOK, rec.Code)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, idx.Len())
}

func TestServer_SaveHTML_NotBoundByRequestTimeout(t *testing.T) {
	t.Parallel()

	idx := openIndex(t, "search_results")
	store := &slowStore{Index: idx, delay: 100 * time.Millisecond}
	server := NewServer(store, nil, Config{RequestTimeout: 10 * time.Millisecond}, zap.NewNop())

	rec := post(server, "/save-html", captureBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.True(t, idx.Has("acme_recruiter_2"))
}

func TestServer_HealthAndIndices(t *testing.T) {
	t.Parallel()

	search := openIndex(t, "search_results")
	recruiters := openIndex(t, "recruiters")
	_, err := recruiters.Add("jane_doe", json.RawMessage(`{"title":"Recruiter"}`))
	require.NoError(t, err)
	server := NewServer(search, recruiters, Config{}, zap.NewNop())

	rec := get(server, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(server, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(server, "/v1/indices")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"search_results":0,"recruiters":1}`, rec.Body.String())
}

func TestServer_GetEntry(t *testing.T) {
	t.Parallel()

	search := openIndex(t, "search_results")
	server := NewServer(search, nil, Config{}, zap.NewNop())
	require.Equal(t, http.StatusOK, post(server, "/save-html", captureBody).Code)

	rec := get(server, "/v1/search-results/acme_recruiter_2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, captureBody, rec.Body.String())

	rec = get(server, "/v1/search-results/acme_recruiter_3")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrKindNotFound, decodeError(t, rec)["error"])

	rec = get(server, "/v1/recruiters/anyone")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = get(server, "/v1/recruiters")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListKeys(t *testing.T) {
	t.Parallel()

	search := openIndex(t, "search_results")
	recruiters := openIndex(t, "recruiters")
	server := NewServer(search, recruiters, Config{}, zap.NewNop())

	rec := get(server, "/v1/search-results")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"index":"search_results","keys":[]}`, rec.Body.String())

	require.Equal(t, http.StatusOK, post(server, "/save-html", `{"url_params":{"keywords":"team","page":"2"}}`).Code)
	require.Equal(t, http.StatusOK, post(server, "/save-html", captureBody).Code)

	rec = get(server, "/v1/search-results")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"index":"search_results","keys":["acme_recruiter_2","team_2"]}`, rec.Body.String())

	rec = get(server, "/v1/recruiters")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"index":"recruiters","keys":[]}`, rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	server := NewServer(openIndex(t, "search_results"), nil, Config{}, zap.NewNop())
	rec := get(server, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scout_index_entries")
}

func TestServer_CORS(t *testing.T) {
	t.Parallel()

	t.Run("PreflightAnyOrigin", func(t *testing.T) {
		t.Parallel()
		server := NewServer(openIndex(t, "search_results"), nil, Config{}, zap.NewNop())
		req := httptest.NewRequest(http.MethodOptions, "/save-html", nil)
		req.Header.Set("Origin", "chrome-extension://abc")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
		assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("AllowList", func(t *testing.T) {
		t.Parallel()
		cfg := Config{CORSOrigins: []string{"https://www.linkedin.com/"}}
		server := NewServer(openIndex(t, "search_results"), nil, cfg, zap.NewNop())

		req := httptest.NewRequest(http.MethodPost, "/save-html", strings.NewReader(captureBody))
		req.Header.Set("Origin", "https://www.linkedin.com")
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://www.linkedin.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))

		req = httptest.NewRequest(http.MethodOptions, "/save-html", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec = httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	server := NewServer(openIndex(t, "search_results"), nil, Config{}, zap.NewNop())
	rec := get(server, "/healthz")

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeStore{name: "search_results", panicOnAdd: true}, nil, Config{}, zap.NewNop())
	rec := post(server, "/save-html", captureBody)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

func openIndex(t *testing.T, name string) *index.Index {
	t.Helper()
	idx, err := index.Open(filepath.Join(t.TempDir(), name+".json"), index.Options{Name: name})
	require.NoError(t, err)
	return idx
}

func post(server *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func get(server *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type fakeStore struct {
	name       string
	addErr     error
	panicOnAdd bool
}

func (f *fakeStore) Name() string { return f.name }

func (f *fakeStore) Get(string) (json.RawMessage, bool) { return nil, false }

func (f *fakeStore) Add(string, json.RawMessage) (bool, error) {
	if f.panicOnAdd {
		panic("boom")
	}
	return false, f.addErr
}

func (f *fakeStore) Len() int { return 0 }

func (f *fakeStore) Keys() []string { return nil }

// slowStore delays writes past the request timeout.
type slowStore struct {
	*index.Index
	delay time.Duration
}

func (s *slowStore) Add(key string, value json.RawMessage) (bool, error) {
	time.Sleep(s.delay)
	return s.Index.Add(key, value)
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
