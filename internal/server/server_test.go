package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleecekm/fleeceqa/internal/llm"
	"github.com/fleecekm/fleeceqa/internal/pipeline"
	"github.com/fleecekm/fleeceqa/internal/questions"
	"github.com/fleecekm/fleeceqa/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, replies ...string) (*Server, *store.Store) {
	t.Helper()
	s, err := store.Open(store.MemoryDSN(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.InsertParagraphs(context.Background(), []store.Paragraph{
		{PageName: "Rome", SectionName: "History", TextCleaned: "Rome was founded in 753 BC.", Processed: store.Unprocessed},
		{PageName: "Rome", SectionName: "Geography", TextCleaned: "Rome lies on the Tiber.", WithinPageOrder: 1, Processed: store.Unprocessed},
		{PageName: "Carthage", TextCleaned: "Carthage was a Phoenician city.", Processed: store.Unprocessed},
	}))

	cfg := questions.DefaultConfig()
	cfg.NumQuestions = 1
	cfg.MaxAttempts = 1
	gen := questions.New(llm.NewMockProvider(llm.MockText(replies...)...), cfg, nil)
	return New(s, gen, pipeline.ModeMulti, nil), s
}

func do(t *testing.T, srv *Server, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	srv.Router().ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	}
	return w, body
}

func TestRoot(t *testing.T) {
	srv, _ := newTestServer(t)
	w, body := do(t, srv, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Welcome to the WikiText API!", body["message"])
}

func TestCount(t *testing.T) {
	srv, _ := newTestServer(t)
	w, body := do(t, srv, http.MethodGet, "/raw/count")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["paragraphs"])
	assert.Equal(t, float64(3), body["unprocessed"])
	assert.Equal(t, float64(0), body["questions"])
}

func TestRandom(t *testing.T) {
	srv, _ := newTestServer(t)

	w, body := do(t, srv, http.MethodGet, "/raw/random?n=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"], 2)

	w, body = do(t, srv, http.MethodGet, "/raw/rand-sample?n=10")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"], 3)

	for _, target := range []string{"/raw/random?n=0", "/raw/random?n=abc", "/raw/random?n=101"} {
		w, body = do(t, srv, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Equal(t, float64(0), body["ok"])
	}
}

func TestGetParagraph(t *testing.T) {
	srv, _ := newTestServer(t)

	w, body := do(t, srv, http.MethodGet, "/raw/paragraphs/2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Geography", body["section_name"])
	assert.Equal(t, float64(-1), body["processed"])

	w, _ = do(t, srv, http.MethodGet, "/raw/paragraphs/99")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = do(t, srv, http.MethodGet, "/raw/paragraphs/x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPage(t *testing.T) {
	srv, _ := newTestServer(t)

	w, body := do(t, srv, http.MethodGet, "/raw/page?index=1")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "History", data[0].(map[string]any)["section_name"])

	w, body = do(t, srv, http.MethodGet, "/raw/page")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["data"])

	w, _ = do(t, srv, http.MethodGet, "/raw/page?index=5")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateAndQuery(t *testing.T) {
	srv, s := newTestServer(t, "1. When was Rome founded?", "YES", "YES")

	w, body := do(t, srv, http.MethodPost, "/qa/paragraphs/1/questions")
	require.Equal(t, http.StatusCreated, w.Code, "body: %v", body)
	ids := body["question_ids"].([]any)
	require.Len(t, ids, 1)
	assert.Equal(t, "multi", body["mode"])

	p, err := s.GetParagraph(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Processed)

	w, body = do(t, srv, http.MethodGet, "/qa/questions?paragraph_id=1")
	require.Equal(t, http.StatusOK, w.Code)
	qs := body["data"].([]any)
	require.Len(t, qs, 1)
	assert.Equal(t, "When was Rome founded?", qs[0].(map[string]any)["text"])

	w, body = do(t, srv, http.MethodGet, "/qa/questions/1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["paragraph_id"])

	w, body = do(t, srv, http.MethodGet, "/qa/rejected?paragraph_id=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["data"])

	w, _ = do(t, srv, http.MethodPost, "/qa/paragraphs/1/questions")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGenerate_Errors(t *testing.T) {
	srv, s := newTestServer(t, "1. A?", "Maybe")

	w, _ := do(t, srv, http.MethodPost, "/qa/paragraphs/1/questions?mode=triple")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, srv, http.MethodPost, "/qa/paragraphs/42/questions")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, srv, http.MethodPost, "/qa/paragraphs/1/questions?mode=single")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	p, err := s.GetParagraph(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, store.Unprocessed, p.Processed)
}

func TestQuestions_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	w, _ := do(t, srv, http.MethodGet, "/qa/questions")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, srv, http.MethodGet, "/qa/questions/7")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerate_Disabled(t *testing.T) {
	_, s := newTestServer(t)
	srv := New(s, nil, pipeline.ModeMulti, nil)
	w, _ := do(t, srv, http.MethodPost, "/qa/paragraphs/1/questions")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
