package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/txnimport/internal/attachment"
	"github.com/JonMunkholm/txnimport/internal/config"
	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/parser"
)

const sampleCSV = "Date,Amount,Description,Category\n" +
	"2024-03-15,12.50,Office supplies,Office\n" +
	"2024-03-16,30.00,Printer ink,Office\n"

// recordingSubmitter fails every row whose description is "Printer ink".
type recordingSubmitter struct {
	mu  sync.Mutex
	got [][]core.SubmitRow
}

func (f *recordingSubmitter) Submit(ctx context.Context, rows []core.SubmitRow) (*core.BatchResponse, error) {
	f.mu.Lock()
	f.got = append(f.got, rows)
	f.mu.Unlock()

	resp := &core.BatchResponse{Imported: []core.ImportedRow{}, Errored: []core.ImportErrorRecord{}}
	for i, row := range rows {
		if row.Description == "Printer ink" {
			resp.Errored = append(resp.Errored, core.ImportErrorRecord{Row: i + 1, Message: "Unknown category"})
			continue
		}
		resp.Imported = append(resp.Imported, core.ImportedRow{ID: "srv-1", Date: row.Date, Amount: row.Amount, Description: row.Description})
	}
	return resp, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{RequestTimeout: 5 * time.Second},
		Upload:  config.UploadConfig{MaxFileSize: 1 << 20},
		Rate:    config.RateLimitConfig{Enabled: false},
		Session: config.SessionConfig{IdleTTL: time.Minute},
	}
}

type testEnv struct {
	srv       *Server
	manager   *core.Manager
	submitter *recordingSubmitter
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	sub := &recordingSubmitter{}
	m := core.NewManager(sub, nil, core.ManagerConfig{MaxSessions: 2})
	srv := NewServer(m, parser.DefaultRegistry(parser.DefaultColumns()), attachment.NewValidator(1024, nil), cfg)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = m.Shutdown(context.Background())
	})
	return &testEnv{srv: srv, manager: m, submitter: sub}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func multipartFile(t *testing.T, name string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) core.View {
	t.Helper()
	var v core.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/imports/", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	v := decodeView(t, rec)
	assert.True(t, v.ShowImportDialog)
	return v.SessionID
}

// loadFile uploads content and waits for the background parse to finish.
func (e *testEnv) loadFile(t *testing.T, id, name string, content []byte) core.View {
	t.Helper()
	body, ct := multipartFile(t, name, content)
	rec := e.do(t, http.MethodPost, "/api/imports/"+id+"/file", body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	sess, err := e.manager.Get(id)
	require.NoError(t, err)
	sess.Wait()
	return sess.Snapshot()
}

func TestServer_ImportFlow(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := env.createSession(t)

	v := env.loadFile(t, id, "expenses.csv", []byte(sampleCSV))
	require.Len(t, v.Rows, 2)
	assert.Equal(t, core.PhaseReviewing, v.Phase)
	assert.True(t, v.CanSubmit)

	first := v.Rows[0].ID
	body, _ := json.Marshal(editRowRequest{Field: core.FieldDescription, Value: "Paper"})
	rec := env.do(t, http.MethodPatch, "/api/imports/"+id+"/rows/"+first, body, "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited, ok := decodeView(t, rec).Row(first)
	require.True(t, ok)
	assert.Equal(t, "Paper", edited.Description)

	rec = env.do(t, http.MethodPost, "/api/imports/"+id+"/submit", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	sess, err := env.manager.Get(id)
	require.NoError(t, err)
	sess.Wait()

	rec = env.do(t, http.MethodGet, "/api/imports/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	final := decodeView(t, rec)

	assert.Equal(t, core.PhasePartialFailure, final.Phase)
	require.Len(t, final.Rows, 1, "imported rows leave the working set")
	assert.Equal(t, "Printer ink", final.Rows[0].Description)
	assert.Equal(t, "Unknown category", final.Rows[0].ImportError)
	require.Len(t, final.ImportErrors, 1)
	assert.Equal(t, final.Rows[0].ID, final.ImportErrors[0].RowID)

	rec = env.do(t, http.MethodDelete, "/api/imports/"+id+"/import-errors", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeView(t, rec).ImportErrors)

	rec = env.do(t, http.MethodDelete, "/api/imports/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/imports/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SubmitBlockedByInvalidRows(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := env.createSession(t)

	v := env.loadFile(t, id, "bad.csv", []byte("date,amount,description\n2024-01-01,abc,ok desc\n"))
	require.Len(t, v.Rows, 1)
	assert.Equal(t, 1, v.InvalidCount)

	rec := env.do(t, http.MethodPost, "/api/imports/"+id+"/submit", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.Equal(t, "IMP001", er.Code)
	assert.Empty(t, env.submitter.got)
}

func TestServer_ErrorStatuses(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := env.createSession(t)
	edit := []byte(`{"field":"description","value":"Lunch"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   []byte
		ct     string
		want   int
	}{
		{"unknown session", http.MethodGet, "/api/imports/nope", nil, "", http.StatusNotFound},
		{"edit before load", http.MethodPatch, "/api/imports/" + id + "/rows/x", edit, "application/json", http.StatusConflict},
		{"bad edit body", http.MethodPatch, "/api/imports/" + id + "/rows/x", []byte(`{"bogus":1}`), "application/json", http.StatusBadRequest},
		{"submit before load", http.MethodPost, "/api/imports/" + id + "/submit", nil, "", http.StatusConflict},
		{"no file", http.MethodPost, "/api/imports/" + id + "/file", nil, "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body, tt.ct)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestServer_ReviewErrors(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := env.createSession(t)

	v := env.loadFile(t, id, "header-only.csv", []byte("date,amount,description,category\n"))
	assert.Equal(t, core.PhaseReviewing, v.Phase)
	assert.Empty(t, v.Rows)

	rec := env.do(t, http.MethodDelete, "/api/imports/"+id+"/rows/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	edit := []byte(`{"field":"colour","value":"red"}`)
	rec = env.do(t, http.MethodPatch, "/api/imports/"+id+"/rows/nope", edit, "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/imports/"+id+"/submit", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.Equal(t, "IMP004", er.Code)
}

func TestServer_UploadRejections(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := env.createSession(t)

	body, ct := multipartFile(t, "notes.txt", []byte("hello"))
	rec := env.do(t, http.MethodPost, "/api/imports/"+id+"/file", body, ct)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/imports/"+id+"/file", []byte("not multipart"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	cfg := testConfig()
	cfg.Upload.MaxFileSize = 16
	small := newTestEnv(t, cfg)
	sid := small.createSession(t)
	body, ct = multipartFile(t, "big.csv", []byte(sampleCSV))
	rec = small.do(t, http.MethodPost, "/api/imports/"+sid+"/file", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_EmptyFileOpensEmptyReview(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := env.createSession(t)

	for _, content := range [][]byte{nil, []byte("\n\n\n")} {
		v := env.loadFile(t, id, "empty.csv", content)
		assert.Equal(t, core.PhaseReviewing, v.Phase)
		assert.Empty(t, v.Rows)
		assert.Nil(t, v.LoadError)
		assert.False(t, v.CanSubmit)
	}
}

func TestServer_RejectedUploadReplacesPreviousRows(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 1024

	tests := []struct {
		name     string
		body     func(t *testing.T) ([]byte, string)
		status   int
		wantCode string
	}{
		{
			name:     "unsupported type",
			body:     func(t *testing.T) ([]byte, string) { return multipartFile(t, "notes.txt", []byte("hello")) },
			status:   http.StatusUnsupportedMediaType,
			wantCode: "FILE002",
		},
		{
			name:     "too large",
			body:     func(t *testing.T) ([]byte, string) { return multipartFile(t, "big.csv", bytes.Repeat([]byte("x"), 2048)) },
			status:   http.StatusRequestEntityTooLarge,
			wantCode: "FILE001",
		},
		{
			name:     "missing file",
			body:     func(t *testing.T) ([]byte, string) { return []byte("nope"), "text/plain" },
			status:   http.StatusBadRequest,
			wantCode: "FILE004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, cfg)
			id := env.createSession(t)

			v := env.loadFile(t, id, "a.csv", []byte(sampleCSV))
			require.Len(t, v.Rows, 2)
			require.True(t, v.CanSubmit)

			body, ct := tt.body(t)
			rec := env.do(t, http.MethodPost, "/api/imports/"+id+"/file", body, ct)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			rec = env.do(t, http.MethodGet, "/api/imports/"+id, nil, "")
			require.Equal(t, http.StatusOK, rec.Code)
			v = decodeView(t, rec)
			assert.Equal(t, core.PhaseIdle, v.Phase)
			assert.Empty(t, v.Rows)
			assert.False(t, v.CanSubmit)
			require.NotNil(t, v.LoadError)
			assert.Equal(t, tt.wantCode, v.LoadError.Code)

			rec = env.do(t, http.MethodPost, "/api/imports/"+id+"/submit", nil, "")
			assert.Equal(t, http.StatusConflict, rec.Code)
		})
	}
}

func TestServer_HeaderNotFoundSurfacesOnView(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := env.createSession(t)

	v := env.loadFile(t, id, "x.csv", []byte("foo,bar\n1,2\n"))
	assert.False(t, v.Loading)
	require.NotNil(t, v.LoadError)
	assert.Equal(t, "FILE003", v.LoadError.Code)
}

func TestServer_AttachReceipt(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := env.createSession(t)
	v := env.loadFile(t, id, "expenses.csv", []byte(sampleCSV))
	rowID := v.Rows[0].ID

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	body, ct := multipartFile(t, "lunch.png", png)
	rec := env.do(t, http.MethodPost, "/api/imports/"+id+"/rows/"+rowID+"/receipt", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	row, ok := decodeView(t, rec).Row(rowID)
	require.True(t, ok)
	require.NotNil(t, row.Receipt)
	assert.Equal(t, "image/png", row.Receipt.ContentType)
	assert.Empty(t, row.ReceiptError)

	body, ct = multipartFile(t, "virus.exe", []byte("MZ"))
	rec = env.do(t, http.MethodPost, "/api/imports/"+id+"/rows/"+rowID+"/receipt", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	row, _ = decodeView(t, rec).Row(rowID)
	assert.Nil(t, row.Receipt)
	assert.Contains(t, row.ReceiptError, "receipt type not allowed")
}

func TestServer_TooManySessions(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.createSession(t)
	env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/imports/", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status   string                  `json:"status"`
		Sessions int                     `json:"sessions"`
		Parser   core.ParseLimiterStatus `json:"parser"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Sessions)
	assert.Positive(t, body.Parser.MaxConcurrent)
}

func TestServer_APIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k"}}
	env := newTestEnv(t, cfg)

	rec := env.do(t, http.MethodPost, "/api/imports/", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code, "health stays open")
}

func TestServer_EventStream(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ts := httptest.NewServer(env.srv.Router())
	t.Cleanup(ts.Close)

	id := env.createSession(t)

	resp, err := http.Get(ts.URL + "/api/imports/" + id + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 16)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- name
			}
		}
	}()

	assert.Equal(t, "state", nextEvent(t, events), "current view is sent on connect")

	require.NoError(t, env.manager.Remove(id))
	for {
		name := nextEvent(t, events)
		if name == "closed" {
			break
		}
		assert.Equal(t, "state", name)
	}
}

func nextEvent(t *testing.T, events <-chan string) string {
	t.Helper()
	select {
	case name, ok := <-events:
		require.True(t, ok, "stream ended early")
		return name
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}
