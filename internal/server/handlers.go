package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/export"
	"github.com/KaramelBytes/cleanloom/internal/ingest"
	"github.com/KaramelBytes/cleanloom/internal/pipeline"
	"github.com/KaramelBytes/cleanloom/internal/visual"
)

// maxPreviewRows bounds the rows echoed back for highlight actions.
const maxPreviewRows = 200

type actionRequest struct {
	Token string              `json:"token" binding:"required"`
	Kind  pipeline.ActionKind `json:"kind" binding:"required"`
	Round int                 `json:"round"`
}

type rowsView struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total"`
}

type outcomeView struct {
	*pipeline.Outcome
	Highlight *rowsView `json:"highlight,omitempty"`
}

func viewRows(ds *dataset.Dataset) *rowsView {
	if ds == nil {
		return nil
	}
	n := min(ds.Len(), maxPreviewRows)
	v := &rowsView{Columns: ds.Names(), Rows: make([][]string, n), Total: ds.Len()}
	for i := 0; i < n; i++ {
		v.Rows[i] = ds.Row(i)
	}
	return v
}

func viewOutcome(out *pipeline.Outcome) outcomeView {
	return outcomeView{Outcome: out, Highlight: viewRows(out.Rows)}
}

// statusFor maps session errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		inv *pipeline.InvalidStageTransitionError
		blk *pipeline.BlockingError
	)
	switch {
	case errors.Is(err, ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrStaleToken), errors.As(err, &inv), errors.Is(err, pipeline.ErrNoDataset):
		return http.StatusConflict
	case errors.As(err, &blk):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrEmptyInput), errors.Is(err, ingest.ErrUnsupportedFormat), errors.Is(err, ingest.ErrUnknownPreset):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) session(c *gin.Context) (*pipeline.Session, bool) {
	sess, err := s.reg.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleListPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": ingest.Presets()})
}

// handleCreateSession accepts a multipart "file" upload or a "preset" name.
// POST /api/v1/sessions
func (s *Server) handleCreateSession(c *gin.Context) {
	var (
		ds   *dataset.Dataset
		name string
		err  error
	)
	if fh, ferr := c.FormFile("file"); ferr == nil {
		f, oerr := fh.Open()
		if oerr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open upload"})
			return
		}
		defer f.Close()
		data, rerr := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		if rerr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
			return
		}
		if int64(len(data)) > s.cfg.MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		name = fh.Filename
		ds, err = ingest.ReadBytes(name, data, s.cfg.Ingest)
	} else {
		preset := strings.TrimSpace(c.PostForm("preset"))
		if preset == "" {
			preset = strings.TrimSpace(c.Query("preset"))
		}
		if preset == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "upload a file or name a preset"})
			return
		}
		ds, name, err = ingest.Preset(s.cfg.PresetsDir, preset, s.cfg.Ingest)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	sess, out, err := s.reg.Create(ds, name)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("session created", zap.String("session", sess.ID), zap.String("file", name))
	c.JSON(http.StatusCreated, gin.H{"id": sess.ID, "outcome": viewOutcome(out)})
}

// GET /api/v1/sessions/:id
func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	st, err := sess.State()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// DELETE /api/v1/sessions/:id
func (s *Server) handleDeleteSession(c *gin.Context) {
	if !s.reg.Delete(c.Param("id")) {
		s.fail(c, ErrUnknownSession)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleAction applies one action carrying the token of the step it was
// offered in.
// POST /api/v1/sessions/:id/actions
func (s *Server) handleAction(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := sess.Apply(req.Token, pipeline.Action{Kind: req.Kind, Round: req.Round})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOutcome(out))
}

// handleLog returns the action log as JSON, or as the export text with
// ?format=text.
// GET /api/v1/sessions/:id/log
func (s *Server) handleLog(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if c.Query("format") == "text" {
		c.String(http.StatusOK, sess.LogText())
		return
	}
	entries := sess.LogEntries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Line()
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "lines": lines})
}

// GET /api/v1/sessions/:id/summary
func (s *Server) handleSummary(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	sum, err := sess.Summary()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// handleChart renders the chart proposed by the latest transition.
// GET /api/v1/sessions/:id/chart.png
func (s *Server) handleChart(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	res, ds := sess.LastChart()
	if res.Unavailable || ds == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": visual.ErrUnavailable.Error()})
		return
	}
	var buf bytes.Buffer
	if err := visual.RenderPNG(ds, res.Spec, &buf); err != nil {
		if errors.Is(err, visual.ErrUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// handleExportCSV streams the cleaned dataset once the session reached
// the download stage.
// GET /api/v1/sessions/:id/export/csv
func (s *Server) handleExportCSV(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	ds, name, err := sess.Downloadable()
	if err != nil {
		s.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, ds); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
