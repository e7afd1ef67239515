package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AffDk/spy-server/internal/game"
	"github.com/AffDk/spy-server/internal/hub"
	"github.com/AffDk/spy-server/internal/words"
)

func testRouter(t *testing.T) (http.Handler, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	path := filepath.Join(t.TempDir(), "words.csv")
	require.NoError(t, os.WriteFile(path, []byte("beach\ncircus\n"), 0o644))
	pool, err := words.Load(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	h := hub.NewHub(ctx, pool, zaptest.NewLogger(t))
	return SetupRoutes(h, pool, "http://spy.example", "", zaptest.NewLogger(t)), h
}

func TestHealthz(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAddWord(t *testing.T) {
	router, _ := testRouter(t)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/words", strings.NewReader(body))
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"word":"volcano"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "volcano")

	assert.Equal(t, http.StatusConflict, post(`{"word":"BEACH"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"word":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{`).Code)
}

func TestSessionQR(t *testing.T) {
	router, h := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/ABCDEF/qr.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	reply := make(chan hub.CreateResult, 1)
	h.Inbox() <- hub.CreateSession{
		Duration: 10,
		HostID:   uuid.New(),
		Outbox:   make(chan game.Event, 16),
		Reply:    reply,
	}
	var res hub.CreateResult
	select {
	case res = <-reply:
	case <-time.After(time.Second):
		t.Fatal("timed out creating session")
	}
	require.NoError(t, res.Err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/"+res.Code+"/qr.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}
