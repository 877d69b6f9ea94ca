package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Larry-Leee/progressVisualisation/internal/config"
	"github.com/Larry-Leee/progressVisualisation/internal/ingest"
	"github.com/Larry-Leee/progressVisualisation/internal/locator"
	"github.com/Larry-Leee/progressVisualisation/internal/models"
	"github.com/Larry-Leee/progressVisualisation/internal/projectindex"
	"github.com/Larry-Leee/progressVisualisation/internal/query"
	"github.com/Larry-Leee/progressVisualisation/internal/storage"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

// progressDocx builds a .docx holding a decoy table and the progress table.
func progressDocx(rows ...[]string) []byte {
	var body strings.Builder
	writeTable := func(header []string, rows [][]string) {
		body.WriteString("<w:tbl>")
		for _, row := range append([][]string{header}, rows...) {
			body.WriteString("<w:tr>")
			for _, c := range row {
				body.WriteString("<w:tc><w:p><w:r><w:t>" + c + "</w:t></w:r></w:p></w:tc>")
			}
			body.WriteString("</w:tr>")
		}
		body.WriteString("</w:tbl>")
	}
	writeTable([]string{"序号", "事项"}, [][]string{{"1", "安全检查"}})
	writeTable([]string{"分部工程", "设计工程量", "开累完成", "本月计划", "本月完成"}, rows)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, _ := zw.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`))
	_ = zw.Close()
	return buf.Bytes()
}

type testEnv struct {
	srv     *Server
	handler http.Handler
	store   storage.Storage
	cfg     *config.Config
	watch   *mockWatchService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: 8080, MaxUploadMB: 1},
		Storage: config.StorageConfig{
			DatabasePath:     filepath.Join(dir, "progress.db"),
			ProjectIndexPath: filepath.Join(dir, "projects"),
		},
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	projects, err := projectindex.NewBleveIndex(cfg.Storage.ProjectIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = projects.Close() })

	pipeline := ingest.NewPipeline(locator.Keywords{"本月计划", "本月完成"}, nil)
	ingester := ingest.NewIngester(store, nil, pipeline, ingest.WithProjectIndex(projects), ingest.WithSkipUnchanged(true))
	engine := query.NewEngine(store, pipeline, nil)
	watch := &mockWatchService{}
	srv := NewServer(engine, ingester, store, projects, cfg, zap.NewNop(), watch, "")
	return &testEnv{srv: srv, handler: srv.Routes(), store: store, cfg: cfg, watch: watch}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestIngestThenViews(t *testing.T) {
	env := newTestEnv(t)

	jan := progressDocx([]string{"路基土方", "100", "40", "10", "8"}, []string{"桥梁桩基", "50", "20", "5", "5"})
	w := env.do(t, http.MethodPost, "/api/v1/ingest?name="+"2024年1月进度.docx", jan, "application/octet-stream")
	if w.Code != http.StatusCreated {
		t.Fatalf("ingest jan: got %d, body: %s", w.Code, w.Body.String())
	}
	var res ingest.Result
	decode(t, w, &res)
	if res.Period != "2024-01" || len(res.Records) != 2 || res.TableIndex != 1 {
		t.Errorf("ingest result: %+v", res)
	}

	feb := progressDocx([]string{"路基土方", "100", "50", "6", "7"})
	w = env.do(t, http.MethodPost, "/api/v1/ingest?name=feb.docx&period=2024-02", feb, "application/octet-stream")
	if w.Code != http.StatusCreated {
		t.Fatalf("ingest feb: got %d, body: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/v1/periods", nil, "")
	var periods struct {
		Periods []models.Period `json:"periods"`
	}
	decode(t, w, &periods)
	if len(periods.Periods) != 2 || periods.Periods[0] != "2024-01" || periods.Periods[1] != "2024-02" {
		t.Errorf("periods: %v", periods.Periods)
	}

	w = env.do(t, http.MethodGet, "/api/v1/periods/2024-01", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("period view: got %d", w.Code)
	}
	var pv periodResponse
	decode(t, w, &pv)
	if len(pv.Rows) != 2 || pv.Rows[0].ProjectName != "路基土方" || pv.Rows[0].PlanAmount != 10 {
		t.Errorf("period rows: %+v", pv.Rows)
	}
	if len(pv.Series) != 2 || pv.Series[0].B != 8 {
		t.Errorf("period series: %+v", pv.Series)
	}

	w = env.do(t, http.MethodGet, "/api/v1/cumulative", nil, "")
	var cum cumulativeResponse
	decode(t, w, &cum)
	if len(cum.Rows) != 2 || cum.Rows[0].TotalPlan != 16 || cum.Rows[0].TotalActual != 15 {
		t.Errorf("cumulative rows: %+v", cum.Rows)
	}

	w = env.do(t, http.MethodGet, "/api/v1/projects/search?q=路基", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("project search: got %d, body: %s", w.Code, w.Body.String())
	}
	var search struct {
		Hits []projectindex.Hit `json:"hits"`
	}
	decode(t, w, &search)
	if len(search.Hits) == 0 || search.Hits[0].ProjectName != "路基土方" || len(search.Hits[0].Periods) != 2 {
		t.Errorf("hits: %+v", search.Hits)
	}

	w = env.do(t, http.MethodGet, "/api/v1/documents", nil, "")
	var docs struct {
		Documents []models.IngestedDocument `json:"documents"`
	}
	decode(t, w, &docs)
	if len(docs.Documents) != 2 {
		t.Errorf("documents: %+v", docs.Documents)
	}

	w = env.do(t, http.MethodGet, "/api/v1/status", nil, "")
	var st models.Status
	decode(t, w, &st)
	if st.Records != 3 || st.Documents != 2 || len(st.Periods) != 2 || st.DatabaseBytes == 0 {
		t.Errorf("status: %+v", st)
	}
}

func TestHandleIngest_ReingestIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	doc := progressDocx([]string{"路基土方", "100", "40", "10", "8"})
	target := "/api/v1/ingest?name=2024-03.docx"
	if w := env.do(t, http.MethodPost, target, doc, "application/octet-stream"); w.Code != http.StatusCreated {
		t.Fatalf("first ingest: %d", w.Code)
	}
	w := env.do(t, http.MethodPost, target, doc, "application/octet-stream")
	if w.Code != http.StatusOK {
		t.Fatalf("second ingest: got %d, want 200", w.Code)
	}
	var res ingest.Result
	decode(t, w, &res)
	if !res.Skipped {
		t.Errorf("expected skipped result, got %+v", res)
	}
}

func TestHandleSnapshot_Multipart(t *testing.T) {
	env := newTestEnv(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "2024年4月进度.docx")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(progressDocx([]string{"路基土方", "100", "40", "10", "8"}, []string{"桥梁桩基", "", "", "5", "5"}))
	_ = mw.Close()

	w := env.do(t, http.MethodPost, "/api/v1/snapshot", body.Bytes(), mw.FormDataContentType())
	if w.Code != http.StatusOK {
		t.Fatalf("snapshot: got %d, body: %s", w.Code, w.Body.String())
	}
	var snap struct {
		Source             string                    `json:"source_document"`
		Period             models.Period             `json:"period"`
		PlanVsActual       []models.PeriodAggregate  `json:"plan_vs_actual"`
		DesignVsCumulative []models.DesignCumulative `json:"design_vs_cumulative"`
		DesignSeries       []query.Series            `json:"design_series"`
	}
	decode(t, w, &snap)
	if snap.Period != "2024-04" || len(snap.PlanVsActual) != 2 {
		t.Errorf("snapshot: %+v", snap)
	}
	if len(snap.DesignVsCumulative) != 1 || snap.DesignVsCumulative[0].DesignQuantity != 100 {
		t.Errorf("design vs cumulative: %+v", snap.DesignVsCumulative)
	}
	if len(snap.DesignSeries) != 1 || snap.DesignSeries[0].B != 40 {
		t.Errorf("design series: %+v", snap.DesignSeries)
	}

	n, err := env.store.CountRecords(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("snapshot must not persist, store has %d records", n)
	}
}

func TestErrorStatusCodes(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		method string
		target string
		body   []byte
		want   int
	}{
		{"invalid period", http.MethodGet, "/api/v1/periods/2024-13", nil, http.StatusBadRequest},
		{"unknown period is empty", http.MethodGet, "/api/v1/periods/2030-01", nil, http.StatusOK},
		{"unsupported format", http.MethodPost, "/api/v1/ingest?name=2024-01.pdf", []byte("%PDF"), http.StatusBadRequest},
		{"period not inferable", http.MethodPost, "/api/v1/ingest?name=report.docx", progressDocx(), http.StatusBadRequest},
		{"no progress table", http.MethodPost, "/api/v1/snapshot?name=x.docx", func() []byte {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			fw, _ := zw.Create("word/document.xml")
			_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body/></w:document>`))
			_ = zw.Close()
			return buf.Bytes()
		}(), http.StatusUnprocessableEntity},
		{"raw upload without name", http.MethodPost, "/api/v1/snapshot", []byte("x"), http.StatusBadRequest},
		{"snapshot invalid period", http.MethodPost, "/api/v1/snapshot?name=2024-01.docx&period=garbage", progressDocx(), http.StatusBadRequest},
		{"search without q", http.MethodGet, "/api/v1/projects/search", nil, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/v1/documents?limit=-1", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.target, tt.body, "application/octet-stream")
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d, body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandleIngest_TooLarge(t *testing.T) {
	env := newTestEnv(t)
	big := bytes.Repeat([]byte("x"), 2<<20)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("file", "2024-01.docx")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(big)
	_ = mw.Close()

	tests := []struct {
		name        string
		body        []byte
		contentType string
		target      string
		knownLength bool
	}{
		{"raw", big, "application/octet-stream", "/api/v1/ingest?name=2024-01.docx", true},
		{"raw streamed", big, "application/octet-stream", "/api/v1/ingest?name=2024-01.docx", false},
		{"multipart", form.Bytes(), mw.FormDataContentType(), "/api/v1/ingest", true},
		{"multipart streamed", form.Bytes(), mw.FormDataContentType(), "/api/v1/ingest", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.target, bytes.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)
			if !tt.knownLength {
				r.ContentLength = -1
			}
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, r)
			if w.Code != http.StatusRequestEntityTooLarge {
				t.Errorf("status: got %d, want 413, body: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleWatchDirectories(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()

	body, _ := json.Marshal(map[string]string{"path": dir})
	w := env.do(t, http.MethodPost, "/api/v1/watch/directories", body, "application/json")
	if w.Code != http.StatusCreated {
		t.Fatalf("add: got %d, body: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/v1/watch/directories", nil, "")
	var out struct {
		Directories []string `json:"directories"`
	}
	decode(t, w, &out)
	if len(out.Directories) != 1 || out.Directories[0] != dir {
		t.Errorf("directories: %v", out.Directories)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("remove: got %d", w.Code)
	}
	if len(env.watch.Directories()) != 0 {
		t.Errorf("after remove: %v", env.watch.Directories())
	}
}

func TestHandleWatchDirectoriesAdd_Errors(t *testing.T) {
	env := newTestEnv(t)
	file := filepath.Join(t.TempDir(), "a.docx")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", "{", http.StatusBadRequest},
		{"missing path", `{}`, http.StatusBadRequest},
		{"not found", `{"path":"/nonexistent/inbox/xyz"}`, http.StatusNotFound},
		{"not a directory", `{"path":"` + file + `"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/watch/directories", []byte(tt.body), "application/json")
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleWatchDirectories_SavesConfig(t *testing.T) {
	env := newTestEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	env.srv.configPath = cfgPath
	dir := t.TempDir()

	body, _ := json.Marshal(map[string]string{"path": dir})
	if w := env.do(t, http.MethodPost, "/api/v1/watch/directories", body, "application/json"); w.Code != http.StatusCreated {
		t.Fatalf("add: got %d", w.Code)
	}
	saved, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Watch.Directories) != 1 || saved.Watch.Directories[0] != dir {
		t.Errorf("saved directories: %v", saved.Watch.Directories)
	}
}

func TestHandleWatch_NotEnabled(t *testing.T) {
	env := newTestEnv(t)
	env.srv.watch = nil
	w := env.do(t, http.MethodGet, "/api/v1/watch/directories", nil, "")
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}
