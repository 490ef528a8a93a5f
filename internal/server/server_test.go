package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veritasai/veritas/internal/config"
	"github.com/veritasai/veritas/internal/core"
	"github.com/veritasai/veritas/internal/core/model"
	"github.com/veritasai/veritas/internal/llm"
	"github.com/veritasai/veritas/internal/store"
)

type stubLLM struct {
	byName   map[string]string
	response string
	err      error
}

func (s *stubLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for key, resp := range s.byName {
		if strings.Contains(req.Prompt, key) {
			return resp, nil
		}
	}
	return s.response, nil
}

func (s *stubLLM) GenerateStream(ctx context.Context, req llm.Request, fn llm.StreamFunc) (string, error) {
	text, err := s.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if fn != nil {
		if half := len(text) / 2; half > 0 {
			if err := fn(text[:half]); err != nil {
				return "", err
			}
		}
		if err := fn(text); err != nil {
			return "", err
		}
	}
	return text, nil
}

func newTestRouter(cfg *config.Config, client llm.LLMClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	analyzer := core.NewAnalyzer(client, cfg, zap.NewNop())
	srv := New(analyzer, store.NewMemoryStore(10), cfg, zap.NewNop())
	return srv.SetupRouter()
}

func keyedConfig() *config.Config {
	cfg := config.Default()
	cfg.LLM.APIKey = "test-key"
	return cfg
}

func mapUpload(t *testing.T, names []string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, name := range names {
		fw, err := w.CreateFormFile("maps", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

type mapResponse struct {
	ID         string                  `json:"id"`
	Demo       bool                    `json:"demo"`
	Partitions []model.SurveyPartition `json:"partitions"`
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(config.Default(), &stubLLM{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"demo":true`)
}

func TestResolveOverlaps_WireContract(t *testing.T) {
	r := newTestRouter(config.Default(), &stubLLM{})

	payload := `{"partitions":[
		{"villageName":"Shivapur","partitionId":"P1","surveyNumbers":["12/1","101"]},
		{"villageName":"Shivapur","partitionId":"P2","surveyNumbers":["16","17"]},
		{"villageName":"Shivapur","partitionId":"P3","surveyNumbers":["12/3","101"]},
		{"villageName":"Shivapur","partitionId":"P4","surveyNumbers":["20","12/3"]}]}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/overlaps", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var out model.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Partitions, 4)
	assert.Equal(t, "101 → P1 / P3", out.Partitions[0].Remarks)
	assert.Equal(t, "No overlaps detected", out.Partitions[1].Remarks)
	assert.Equal(t, "101 → P1 / P3; 12/3 → P3 / P4", out.Partitions[2].Remarks)
	assert.Equal(t, "12/3 → P3 / P4", out.Partitions[3].Remarks)

	body := w.Body.String()
	assert.Contains(t, body, `"villageName"`)
	assert.Contains(t, body, `"partitionId"`)
	assert.Contains(t, body, `"surveyNumbers"`)
	assert.Contains(t, body, `"remarks"`)
}

func TestResolveOverlaps_BadBody(t *testing.T) {
	r := newTestRouter(config.Default(), &stubLLM{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/overlaps", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeMap_JoinsFilesInOrder(t *testing.T) {
	stub := &stubLLM{byName: map[string]string{
		"first.png":  `{"partitions": [{"villageName": "Shivapur", "partitionId": "P1", "surveyNumbers": ["12/1", "101"]}]}`,
		"second.png": `{"partitions": [{"villageName": "Shivapur", "partitionId": "P3", "surveyNumbers": ["12/3", "101"]}]}`,
	}}
	r := newTestRouter(keyedConfig(), stub)

	body, contentType := mapUpload(t, []string{"first.png", "second.png"}, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp mapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Demo)
	assert.NotEmpty(t, resp.ID)
	require.Len(t, resp.Partitions, 2)
	assert.Equal(t, "P1", resp.Partitions[0].PartitionID)
	assert.Equal(t, "P3", resp.Partitions[1].PartitionID)
	assert.Equal(t, "101 → P1 / P3", resp.Partitions[0].Remarks)
}

func TestAnalyzeMap_OverridesForwarded(t *testing.T) {
	stub := &stubLLM{
		response: `{"partitions": [{"villageName": "Shivapur", "partitionId": "C1", "surveyNumbers": ["7"]}]}`,
	}
	r := newTestRouter(keyedConfig(), stub)

	body, contentType := mapUpload(t, []string{"scan.png"}, map[string]string{
		"villageName": "Alandi",
		"partitionId": "A-1",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp mapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Partitions, 1)
	assert.Equal(t, "Alandi", resp.Partitions[0].VillageName)
	assert.Equal(t, "A-1", resp.Partitions[0].PartitionID)
}

func TestAnalyzeMap_DemoWithoutKey(t *testing.T) {
	// The stub would fail if called; demo mode must short-circuit first.
	r := newTestRouter(config.Default(), &stubLLM{err: errors.New("must not be called")})

	body, contentType := mapUpload(t, []string{"scan.png"}, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp mapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Demo)
	assert.Len(t, resp.Partitions, 4)
}

func TestAnalyzeMap_ExtractionFailureFallsBackToDemo(t *testing.T) {
	r := newTestRouter(keyedConfig(), &stubLLM{err: errors.New("model unavailable")})

	body, contentType := mapUpload(t, []string{"scan.png"}, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp mapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Demo)
}

func TestAnalyzeMap_FailureSurfacedWhenDemoDisabled(t *testing.T) {
	cfg := keyedConfig()
	cfg.Demo.Enabled = false
	r := newTestRouter(cfg, &stubLLM{err: errors.New("model unavailable")})

	body, contentType := mapUpload(t, []string{"scan.png"}, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAnalyzeMap_NoFiles(t *testing.T) {
	r := newTestRouter(keyedConfig(), &stubLLM{})

	body, contentType := mapUpload(t, nil, map[string]string{"villageName": "Alandi"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeMap_JSONBody(t *testing.T) {
	stub := &stubLLM{byName: map[string]string{
		"scan.png": `{"partitions": [{"villageName": "Shivapur", "partitionId": "C1", "surveyNumbers": ["7"]}]}`,
	}}
	r := newTestRouter(keyedConfig(), stub)

	encoded := base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
	payload := fmt.Sprintf(`{"files": [{
		"name": "scan.png",
		"data": "data:image/png;base64,%s",
		"villageName": "Alandi",
		"partitionId": "A-1"
	}]}`, encoded)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp mapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Partitions, 1)
	assert.Equal(t, "Alandi", resp.Partitions[0].VillageName)
	assert.Equal(t, "A-1", resp.Partitions[0].PartitionID)
}

func TestAnalyzeMap_JSONBodyBadBase64(t *testing.T) {
	r := newTestRouter(keyedConfig(), &stubLLM{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", strings.NewReader(`{"files": [{"name": "x.png", "data": "not base64!!"}]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not valid base64")
}

func TestAnalyzeMap_JSONBodyNoFiles(t *testing.T) {
	r := newTestRouter(keyedConfig(), &stubLLM{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", strings.NewReader(`{"files": []}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeMap_JSONBodyTooLarge(t *testing.T) {
	cfg := keyedConfig()
	cfg.Server.MaxUploadBytes = 4
	r := newTestRouter(cfg, &stubLLM{})

	encoded := base64.StdEncoding.EncodeToString([]byte("this payload is too large"))
	payload := fmt.Sprintf(`{"files": [{"name": "big.png", "data": "%s"}]}`, encoded)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "exceeds the upload limit")
}

func TestAnalyzeMap_PlainBodyRejected(t *testing.T) {
	r := newTestRouter(keyedConfig(), &stubLLM{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", strings.NewReader("raw bytes"))
	req.Header.Set("Content-Type", "text/plain")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeMap_UploadTooLarge(t *testing.T) {
	cfg := keyedConfig()
	cfg.Server.MaxUploadBytes = 4
	r := newTestRouter(cfg, &stubLLM{})

	body, contentType := mapUpload(t, []string{"big.png"}, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAnalyzeText(t *testing.T) {
	r := newTestRouter(keyedConfig(), &stubLLM{response: "## Findings\nAll good."})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/text", strings.NewReader(`{"mode": "analysis", "text": "check this"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Findings")
	assert.Contains(t, w.Body.String(), `"mode":"analysis"`)
}

func TestAnalyzeText_DefaultsToAnalysisMode(t *testing.T) {
	r := newTestRouter(keyedConfig(), &stubLLM{response: "ok"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/text", strings.NewReader(`{"text": "check this"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"analysis"`)
}

func TestAnalyzeText_BadRequests(t *testing.T) {
	r := newTestRouter(keyedConfig(), &stubLLM{response: "ok"})

	cases := map[string]string{
		"empty text":   `{"mode": "analysis", "text": "  "}`,
		"unknown mode": `{"mode": "poetry", "text": "check"}`,
		"not json":     `oops`,
	}
	for name, payload := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/analyze/text", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestAnalyzeText_Stream(t *testing.T) {
	r := newTestRouter(keyedConfig(), &stubLLM{response: "streamed answer"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/text", strings.NewReader(`{"mode": "analysis", "text": "check", "stream": true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	assert.Contains(t, body, "event:message")
	assert.Contains(t, body, "streamed answer")
	assert.Contains(t, body, "event:done")
}

func TestAnalyzeText_StreamError(t *testing.T) {
	r := newTestRouter(keyedConfig(), &stubLLM{err: errors.New("model unavailable")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/text", strings.NewReader(`{"mode": "analysis", "text": "check", "stream": true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Contains(t, w.Body.String(), "event:error")
}

func TestAnalysisHistoryAndExport(t *testing.T) {
	r := newTestRouter(config.Default(), &stubLLM{})

	// Run one demo analysis to populate the store.
	body, contentType := mapUpload(t, []string{"scan.png"}, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/map", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var created mapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	// Listing shows the record.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analyses", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.ID)
	assert.Contains(t, w.Body.String(), `"partitions":4`)

	// Fetching returns the full record.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analyses/"+created.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rec store.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, created.ID, rec.ID)
	assert.Len(t, rec.Result.Partitions, 4)

	// CSV export carries the fixed header and quoted values.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analyses/"+created.ID+"/export?format=csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "Village Name,Partition Number,Survey Numbers,Remarks\n"))
	assert.Contains(t, w.Body.String(), `"V05-C1"`)
	assert.Contains(t, w.Body.String(), "101 → V05-C1 / V05-C3")

	// Markdown and JSON exports work too.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analyses/"+created.ID+"/export?format=markdown", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "| Village Name |")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analyses/"+created.ID+"/export?format=json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"partitions"`)

	// Unknown format and unknown id fail cleanly.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analyses/"+created.ID+"/export?format=xlsx", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analyses/nope/export?format=csv", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analyses/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(config.Default(), &stubLLM{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
