package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Larry-Leee/progressVisualisation/internal/config"
	"github.com/Larry-Leee/progressVisualisation/internal/models"
	"github.com/Larry-Leee/progressVisualisation/internal/query"
)

const (
	defaultSearchLimit = 10
	defaultPageSize    = 50
	maxPageSize        = 500
)

// periodResponse is the body of GET /api/v1/periods/{period}.
type periodResponse struct {
	Period models.Period            `json:"period"`
	Rows   []models.PeriodAggregate `json:"rows"`
	Series []query.Series           `json:"series"`
}

// cumulativeResponse is the body of GET /api/v1/cumulative.
type cumulativeResponse struct {
	Rows   []models.CumulativeAggregate `json:"rows"`
	Series []query.Series               `json:"series"`
}

// snapshotResponse is the body of POST /api/v1/snapshot.
type snapshotResponse struct {
	*query.Snapshot
	PlanSeries   []query.Series `json:"plan_series"`
	DesignSeries []query.Series `json:"design_series"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.queries.Periods(r.Context())
	if err != nil {
		s.logger.Error("list periods failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	if periods == nil {
		periods = []models.Period{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"periods": periods})
}

func (s *Server) handlePeriodView(w http.ResponseWriter, r *http.Request) {
	period := models.Period(chi.URLParam(r, "period"))
	rows, err := s.queries.PeriodView(r.Context(), period)
	if err != nil {
		s.logger.Debug("period view failed", zap.String("period", string(period)), zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, periodResponse{Period: period, Rows: rows, Series: query.PeriodSeries(rows)})
}

func (s *Server) handleCumulative(w http.ResponseWriter, r *http.Request) {
	rows, err := s.queries.CumulativeView(r.Context())
	if err != nil {
		s.logger.Error("cumulative view failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, cumulativeResponse{Rows: rows, Series: query.CumulativeSeries(rows)})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	name, content, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	period := models.Period(r.URL.Query().Get("period"))
	s.logger.Debug("snapshot request", zap.String("name", name), zap.Int("bytes", len(content)))
	snap, err := s.queries.SnapshotBytes(name, content, period)
	if err != nil {
		s.logger.Debug("snapshot failed", zap.String("name", name), zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, snapshotResponse{
		Snapshot:     snap,
		PlanSeries:   query.PeriodSeries(snap.PlanVsActual),
		DesignSeries: query.DesignSeries(snap.DesignVsCumulative),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	name, content, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	period := models.Period(r.URL.Query().Get("period"))
	res, err := s.ingester.IngestBytes(r.Context(), name, content, period)
	if err != nil {
		s.logger.Warn("ingest failed", zap.String("name", name), zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	status := http.StatusCreated
	if res.Skipped {
		status = http.StatusOK
	}
	s.respondJSON(w, status, res)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	docs, err := s.storage.ListIngests(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	if docs == nil {
		docs = []*models.IngestedDocument{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "offset": offset, "limit": limit})
}

func (s *Server) handleProjectSearch(w http.ResponseWriter, r *http.Request) {
	if s.projects == nil {
		s.respondError(w, http.StatusNotImplemented, "project index not enabled")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := queryInt(r, "limit", defaultSearchLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	hits, err := s.projects.Search(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("project search failed", zap.String("q", q), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q, "hits": hits})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := query.CollectStatus(r.Context(), s.storage, s.projects,
		s.config.Storage.DatabasePath, s.config.Storage.ProjectIndexPath)
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.saveWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.saveWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// saveWatchDirectories writes the current watch roots back to the config file.
func (s *Server) saveWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// readUpload reads a document from a multipart "file" field or, for any other
// content type, from the raw body named by the "name" query parameter.
// On failure it has already written the response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	maxBytes := int64(s.config.Server.MaxUploadMB) << 20
	if maxBytes > 0 {
		if r.ContentLength > maxBytes {
			s.respondTooLarge(w)
			return "", nil, false
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			if isTooLarge(err) {
				s.respondTooLarge(w)
				return "", nil, false
			}
			s.respondError(w, http.StatusBadRequest, "file field is required")
			return "", nil, false
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "read upload: "+err.Error())
			return "", nil, false
		}
		return filepath.Base(header.Filename), content, true
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required for raw uploads")
		return "", nil, false
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		if isTooLarge(err) {
			s.respondTooLarge(w)
			return "", nil, false
		}
		s.respondError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return "", nil, false
	}
	if len(content) == 0 {
		s.respondError(w, http.StatusBadRequest, "empty upload")
		return "", nil, false
	}
	return filepath.Base(name), content, true
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

func (s *Server) respondTooLarge(w http.ResponseWriter) {
	s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", s.config.Server.MaxUploadMB))
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidPeriod), errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrMappingFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
