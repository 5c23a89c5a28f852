package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/cleanloom/internal/pipeline"
)

const fruitCSV = `id,str,flt,int
0,apple,1.0,100
1,banana,2.5,200
2,cherry,3.8,300
3,banana,2.5,200
4,date,5.9,-2
5,elderberry,3.1,400
6,fig,0,250
`

func init() { gin.SetMode(gin.TestMode) }

func newTestServer(t *testing.T, presets string) *Server {
	t.Helper()
	return New(NewRegistry(pipeline.DefaultOptions(), nil), Config{PresetsDir: presets}, nil)
}

func upload(t *testing.T, h http.Handler, name, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type created struct {
	ID      string `json:"id"`
	Outcome struct {
		Stage string `json:"stage"`
		Token string `json:"token"`
	} `json:"outcome"`
}

type outcomeBody struct {
	Stage     string   `json:"stage"`
	Round     int      `json:"round"`
	Token     string   `json:"token"`
	Count     int      `json:"count"`
	Menu      []string `json:"menu"`
	Highlight *struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	} `json:"highlight"`
}

func createSession(t *testing.T, h http.Handler, name, body string) created {
	t.Helper()
	rec := upload(t, h, name, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c created
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	require.NotEmpty(t, c.ID)
	return c
}

func act(t *testing.T, h http.Handler, id, token, kind string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(map[string]any{"token": token, "kind": kind})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/actions", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func mustAct(t *testing.T, h http.Handler, id, token, kind string) outcomeBody {
	t.Helper()
	rec := act(t, h, id, token, kind)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out outcomeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(newTestServer(t, "").Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestFullSessionOverHTTP(t *testing.T) {
	h := newTestServer(t, "").Handler()
	c := createSession(t, h, "corrupted_fruit.csv", fruitCSV)
	assert.Equal(t, "data-loading", c.Outcome.Stage)

	out := mustAct(t, h, c.ID, c.Outcome.Token, "start")
	assert.Equal(t, "missing-value-handling", out.Stage)
	assert.Equal(t, 0, out.Count)

	rec := act(t, h, c.ID, c.Outcome.Token, "finish-missing")
	assert.Equal(t, http.StatusConflict, rec.Code, "stale token")

	rec = act(t, h, c.ID, out.Token, "finish-duplicates")
	assert.Equal(t, http.StatusConflict, rec.Code, "skipping a stage")

	out = mustAct(t, h, c.ID, out.Token, "finish-missing")
	assert.Equal(t, "duplicate-removal", out.Stage)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, []string{"highlight", "delete", "keep"}, out.Menu)

	out = mustAct(t, h, c.ID, out.Token, "highlight")
	require.NotNil(t, out.Highlight)
	assert.Len(t, out.Highlight.Rows, 2)

	out = mustAct(t, h, c.ID, out.Token, "delete")
	assert.Equal(t, []string{"undo"}, out.Menu)

	out = mustAct(t, h, c.ID, out.Token, "finish-duplicates")
	assert.Equal(t, "outlier-handling", out.Stage)
	assert.Equal(t, 1, out.Round)

	rec = get(h, "/api/v1/sessions/"+c.ID+"/chart.png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = get(h, "/api/v1/sessions/"+c.ID+"/export/csv")
	assert.Equal(t, http.StatusConflict, rec.Code, "export before download")

	out = mustAct(t, h, c.ID, out.Token, "keep")
	assert.Equal(t, "download", out.Stage)

	rec = get(h, "/api/v1/sessions/"+c.ID+"/export/csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "clean_fruit.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "id,str,flt,int\n"))

	rec = get(h, "/api/v1/sessions/"+c.ID+"/log?format=text")
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(rec.Body.String(), "\n")
	assert.Equal(t, "SYSTEM NOTE: Data uploaded", lines[0])
	assert.Equal(t, "USER ACTION: Finish Outlier Handling", lines[len(lines)-1])

	rec = get(h, "/api/v1/sessions/"+c.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var st pipeline.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "download", st.Stage)
	assert.Equal(t, 6, st.Rows)
}

func TestBlockingErrorIsUnprocessable(t *testing.T) {
	h := newTestServer(t, "").Handler()
	c := createSession(t, h, "gaps.csv", "id,flt,int\n0,1.5,10\n1,,20\n2,2.5,30\n")
	out := mustAct(t, h, c.ID, c.Outcome.Token, "start")
	assert.Equal(t, 1, out.Count)

	rec := act(t, h, c.ID, out.Token, "finish-missing")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing values")
}

func TestBadRequests(t *testing.T) {
	h := newTestServer(t, "").Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, h, "notes.pdf", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c := createSession(t, h, "fruit.csv", fruitCSV)
	rec = act(t, h, c.ID, c.Outcome.Token, "fly")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNotFound, get(h, "/api/v1/sessions/nope").Code)
	assert.Equal(t, http.StatusNotFound, act(t, h, "nope", "t", "start").Code)
}

func TestPresetAndDelete(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupted_iris.csv"), []byte(fruitCSV), 0o644))
	h := newTestServer(t, dir).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions?preset=iris", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c created
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions?preset=mystery", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+c.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/api/v1/sessions/"+c.ID).Code)

	rec = get(h, "/api/v1/presets")
	assert.Contains(t, rec.Body.String(), "corrupted_energy.csv")
}
