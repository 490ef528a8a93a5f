package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veritasai/veritas/internal/config"
	"github.com/veritasai/veritas/internal/core"
	"github.com/veritasai/veritas/internal/core/model"
	"github.com/veritasai/veritas/internal/core/overlap"
	"github.com/veritasai/veritas/internal/export"
	"github.com/veritasai/veritas/internal/store"
)

type Server struct {
	Analyzer *core.Analyzer
	Store    store.Store
	Config   *config.Config
	Logger   *zap.Logger
}

func New(analyzer *core.Analyzer, st store.Store, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Analyzer: analyzer,
		Store:    st,
		Config:   cfg,
		Logger:   logger,
	}
}

// NewFromConfig wires the provider client, retry policy, analyzer, and
// store from configuration.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	analyzer, err := core.NewAnalyzerFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	st := store.NewMemoryStore(cfg.Server.MaxAnalyses)
	return New(analyzer, st, cfg, logger), nil
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/analyze/map", s.AnalyzeMap)
	r.POST("/analyze/text", s.AnalyzeText)
	r.POST("/overlaps", s.ResolveOverlaps)

	r.GET("/analyses", s.ListAnalyses)
	r.GET("/analyses/:id", s.GetAnalysis)
	r.GET("/analyses/:id/export", s.ExportAnalysis)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"provider": s.Config.LLM.Provider,
		"demo":     s.Config.DemoMode(),
		"modes":    s.Analyzer.Modes(),
	})
}

// AnalyzeMap accepts a multipart upload of map images under the "maps"
// field, with optional villageName/partitionId override fields applied to
// every file, or as a JSON body of base64 payloads with per-file overrides.
// Responds with the annotated partitions.
func (s *Server) AnalyzeMap(c *gin.Context) {
	var files []model.MapFile
	var ok bool
	if c.ContentType() == "application/json" {
		files, ok = s.mapFilesFromJSON(c)
	} else {
		files, ok = s.mapFilesFromForm(c)
	}
	if !ok {
		return
	}

	result, isDemo, err := s.Analyzer.AnalyzeMaps(c.Request.Context(), files)
	if err != nil {
		analysisTotal.WithLabelValues("map", "error").Inc()
		s.Logger.Error("map analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}

	rec := store.Record{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Source:    "map",
		Demo:      isDemo,
		Result:    result,
	}
	s.Store.Save(rec)

	outcome := "ok"
	if isDemo {
		outcome = "demo"
	}
	analysisTotal.WithLabelValues("map", outcome).Inc()

	c.JSON(http.StatusOK, gin.H{
		"id":         rec.ID,
		"demo":       isDemo,
		"partitions": result.Partitions,
	})
}

func (s *Server) mapFilesFromForm(c *gin.Context) ([]model.MapFile, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a multipart form upload"})
		return nil, false
	}

	headers := form.File["maps"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no map files uploaded (use field 'maps')"})
		return nil, false
	}

	villageName := c.PostForm("villageName")
	partitionID := c.PostForm("partitionId")

	files := make([]model.MapFile, 0, len(headers))
	for _, fh := range headers {
		if s.Config.Server.MaxUploadBytes > 0 && fh.Size > s.Config.Server.MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file %s exceeds the upload limit", fh.Filename)})
			return nil, false
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read file %s", fh.Filename)})
			return nil, false
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read file %s", fh.Filename)})
			return nil, false
		}

		mimeType := fh.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = http.DetectContentType(data)
		}

		files = append(files, model.MapFile{
			Name:        fh.Filename,
			MIMEType:    mimeType,
			Data:        data,
			VillageName: villageName,
			PartitionID: partitionID,
		})
	}
	return files, true
}

type MapFilePayload struct {
	Name        string `json:"name"`
	MIMEType    string `json:"mimeType"`
	Data        string `json:"data"` // base64, plain or data URI
	VillageName string `json:"villageName"`
	PartitionID string `json:"partitionId"`
}

type AnalyzeMapRequest struct {
	Files []MapFilePayload `json:"files"`
}

// mapFilesFromJSON decodes base64 file payloads. Data URIs as produced by a
// browser FileReader are accepted; the URI's MIME type is used when the
// payload does not name one.
func (s *Server) mapFilesFromJSON(c *gin.Context) ([]model.MapFile, bool) {
	var req AnalyzeMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return nil, false
	}
	if len(req.Files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no map files in request"})
		return nil, false
	}

	files := make([]model.MapFile, 0, len(req.Files))
	for i, p := range req.Files {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("upload-%d", i+1)
		}

		raw := p.Data
		mimeType := p.MIMEType
		if payload, uriMIME, isURI := splitDataURI(raw); isURI {
			raw = payload
			if mimeType == "" {
				mimeType = uriMIME
			}
		}

		// Oversized payloads are rejected on the encoded length, before
		// anything is decoded.
		if s.Config.Server.MaxUploadBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(raw))) > s.Config.Server.MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file %s exceeds the upload limit", name)})
			return nil, false
		}

		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file %s is not valid base64", name)})
			return nil, false
		}
		if len(data) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file %s is empty", name)})
			return nil, false
		}
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}

		files = append(files, model.MapFile{
			Name:        name,
			MIMEType:    mimeType,
			Data:        data,
			VillageName: p.VillageName,
			PartitionID: p.PartitionID,
		})
	}
	return files, true
}

// splitDataURI splits "data:image/png;base64,AAAA" into payload and MIME
// type. Plain base64 strings report isURI false.
func splitDataURI(s string) (payload, mimeType string, isURI bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", "", false
	}
	comma := strings.Index(s, ",")
	if comma < 0 {
		return "", "", false
	}
	meta := strings.TrimSuffix(s[len("data:"):comma], ";base64")
	return s[comma+1:], meta, true
}

type AnalyzeTextRequest struct {
	Mode   string `json:"mode"`
	Text   string `json:"text"`
	Stream bool   `json:"stream"`
}

func (s *Server) AnalyzeText(c *gin.Context) {
	var req AnalyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	if req.Mode == "" {
		req.Mode = "analysis"
	}
	if !s.validMode(req.Mode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown analysis mode %q", req.Mode)})
		return
	}

	if req.Stream {
		s.streamText(c, req)
		return
	}

	output, err := s.Analyzer.AnalyzeText(c.Request.Context(), req.Mode, req.Text, nil)
	if err != nil {
		analysisTotal.WithLabelValues("text", "error").Inc()
		s.Logger.Error("text analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}

	analysisTotal.WithLabelValues("text", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode, "output": output})
}

// streamText delivers the analysis over SSE. Each message event carries the
// cumulative output so far; a done or error event terminates the stream.
func (s *Server) streamText(c *gin.Context, req AnalyzeTextRequest) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	_, err := s.Analyzer.AnalyzeText(c.Request.Context(), req.Mode, req.Text, func(text string) error {
		if cerr := c.Request.Context().Err(); cerr != nil {
			return cerr
		}
		c.SSEvent("message", gin.H{"output": text})
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		analysisTotal.WithLabelValues("text", "error").Inc()
		s.Logger.Error("text analysis stream failed", zap.Error(err))
		c.SSEvent("error", gin.H{"error": "analysis failed"})
		c.Writer.Flush()
		return
	}

	analysisTotal.WithLabelValues("text", "ok").Inc()
	c.SSEvent("done", gin.H{})
	c.Writer.Flush()
}

// ResolveOverlaps annotates a caller-supplied batch without calling any
// provider. The request and response share the analyze/map wire shape.
func (s *Server) ResolveOverlaps(c *gin.Context) {
	var req model.AnalysisResult
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	analysisTotal.WithLabelValues("overlaps", "ok").Inc()
	c.JSON(http.StatusOK, overlap.ResolveResult(req))
}

func (s *Server) ListAnalyses(c *gin.Context) {
	recs := s.Store.List()
	summaries := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		summaries = append(summaries, gin.H{
			"id":         rec.ID,
			"createdAt":  rec.CreatedAt,
			"source":     rec.Source,
			"demo":       rec.Demo,
			"partitions": len(rec.Result.Partitions),
		})
	}
	c.JSON(http.StatusOK, gin.H{"analyses": summaries})
}

func (s *Server) GetAnalysis(c *gin.Context) {
	rec, ok := s.Store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) ExportAnalysis(c *gin.Context) {
	rec, ok := s.Store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}

	format, err := export.ParseFormat(c.DefaultQuery("format", "csv"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	body, err := export.Render(format, rec.Result)
	if err != nil {
		s.Logger.Error("export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	info, _ := export.GetFormatInfo(format)
	exportTotal.WithLabelValues(string(format)).Inc()

	filename := fmt.Sprintf("analysis-%s%s", rec.ID, info.Extension)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, info.MIMEType, []byte(body))
}

func (s *Server) validMode(mode string) bool {
	for _, m := range s.Analyzer.Modes() {
		if m == mode {
			return true
		}
	}
	return false
}
