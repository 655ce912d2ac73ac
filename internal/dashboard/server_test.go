package dashboard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/zulandar/stopyard/internal/config"
	"github.com/zulandar/stopyard/internal/dbtest"
	"github.com/zulandar/stopyard/internal/group"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/planner"
	"github.com/zulandar/stopyard/internal/sap"
	"github.com/zulandar/stopyard/internal/stop"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

func fixedNow() time.Time { return time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC) }

type testEnv struct {
	db     *gorm.DB
	srv    *httptest.Server
	server *Server
	groups map[string]string // name -> id
}

func newTestEnv(t *testing.T, sapClient *sap.Client) *testEnv {
	t.Helper()
	db := dbtest.Open(t)
	ctx := context.Background()
	if _, err := group.CreateCenter(ctx, db, "1089", "Usina Norte", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := group.CreateCenter(ctx, db, "1001", "Porto Sul", ""); err != nil {
		t.Fatal(err)
	}
	env := &testEnv{db: db, groups: make(map[string]string)}
	for _, g := range []group.CreateOpts{
		{Name: "Moenda", CenterCode: "1089", Phase: "USINA"},
		{Name: "Britador", CenterCode: "1089", Phase: "MINA"},
		{Name: "Cais", CenterCode: "1001", Phase: "PORTO"},
	} {
		created, err := group.Create(ctx, db, g)
		if err != nil {
			t.Fatal(err)
		}
		env.groups[g.Name] = created.ID
	}

	s, err := New(ctx, StartOpts{
		DB:           db,
		SAP:          sapClient,
		PollInterval: 10 * time.Millisecond,
		Logger:       log.New(io.Discard),
		Now:          fixedNow,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.server = s
	env.srv = httptest.NewServer(s.Handler())
	t.Cleanup(env.srv.Close)
	return env
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (e *testEnv) do(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) createStop(t *testing.T, groupName string) models.Stop {
	t.Helper()
	var st models.Stop
	code := e.do(t, http.MethodPost, "/api/stops", map[string]any{
		"groupId":         e.groups[groupName],
		"title":           "Parada " + groupName,
		"plannedStart":    "2025-03-10T00:00:00Z",
		"plannedEnd":      "2025-03-12T00:00:00Z",
		"responsibleTeam": "Mecânica",
		"priority":        "high",
	}, &st)
	if code != http.StatusCreated {
		t.Fatalf("create stop status = %d", code)
	}
	return st
}

func TestNew_NilDB(t *testing.T) {
	_, err := New(context.Background(), StartOpts{})
	if err == nil || !strings.Contains(err.Error(), "db is required") {
		t.Errorf("err = %v", err)
	}
}

func TestStart_NilDB(t *testing.T) {
	if err := Start(context.Background(), StartOpts{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{fmt.Errorf("x: %w", models.ErrValidation), 400, "validation"},
		{fmt.Errorf("x: %w", models.ErrNotFound), 404, "not found"},
		{fmt.Errorf("x: %w", models.ErrConflict), 409, "conflict"},
		{sap.ErrNotConfigured, 503, "not configured"},
		{&sap.Error{StatusCode: 401}, 502, "not authorized"},
		{fmt.Errorf("wrap: %w", &sap.Error{StatusCode: 500}), 502, "try again later"},
		{errors.New("disk full"), 500, "internal error"},
	}
	for _, tt := range tests {
		code, msg := errorStatus(tt.err)
		if code != tt.code || !strings.Contains(msg, tt.msg) {
			t.Errorf("errorStatus(%v) = %d %q, want %d containing %q", tt.err, code, msg, tt.code, tt.msg)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	var body map[string]string
	if code := env.do(t, http.MethodGet, "/api/health", nil, &body); code != 200 || body["status"] != "ok" {
		t.Errorf("health = %d %v", code, body)
	}
}

func TestCentersAndGroups(t *testing.T) {
	env := newTestEnv(t, nil)

	var centers []models.LocationCenter
	if code := env.do(t, http.MethodGet, "/api/centers", nil, &centers); code != 200 || len(centers) != 2 {
		t.Fatalf("centers = %d %+v", code, centers)
	}

	var groups []models.AssetGroup
	env.do(t, http.MethodGet, "/api/groups?center=1089", nil, &groups)
	if len(groups) != 2 {
		t.Errorf("groups in 1089 = %d, want 2", len(groups))
	}

	var g models.AssetGroup
	if code := env.do(t, http.MethodGet, "/api/groups/"+env.groups["Cais"], nil, &g); code != 200 || g.Name != "Cais" {
		t.Errorf("get = %d %+v", code, g)
	}
	if code := env.do(t, http.MethodGet, "/api/groups/missing", nil, nil); code != 404 {
		t.Errorf("missing group status = %d", code)
	}
}

func TestGroupCreate_RefreshesBoard(t *testing.T) {
	env := newTestEnv(t, nil)
	var g models.AssetGroup
	code := env.do(t, http.MethodPost, "/api/groups", map[string]string{
		"name": "Pátio", "centerCode": "1001", "phase": "FERROVIA",
	}, &g)
	if code != http.StatusCreated {
		t.Fatalf("status = %d", code)
	}
	if rows := env.server.board.RowIDs(); len(rows) != 4 {
		t.Errorf("board rows = %d, want 4", len(rows))
	}

	var body map[string]string
	code = env.do(t, http.MethodPost, "/api/groups", map[string]string{"name": "X", "centerCode": "1001", "phase": "LUA"}, &body)
	if code != 400 || !strings.Contains(body["error"], "phase") {
		t.Errorf("bad phase = %d %v", code, body)
	}
	if code := env.do(t, http.MethodPost, "/api/groups", "not an object", nil); code != 400 {
		t.Errorf("malformed body status = %d", code)
	}
}

func TestStrategies(t *testing.T) {
	env := newTestEnv(t, nil)
	var st models.Strategy
	code := env.do(t, http.MethodPost, "/api/strategies", map[string]any{
		"name":      "Inspeção mensal",
		"groupId":   env.groups["Moenda"],
		"frequency": map[string]any{"value": 1, "unit": "months"},
		"duration":  map[string]any{"value": 2, "unit": "days"},
		"startDate": "2025-01-15T00:00:00Z",
		"priority":  "critical",
	}, &st)
	if code != http.StatusCreated || !st.IsActive || st.Version != 1 {
		t.Fatalf("create = %d %+v", code, st)
	}

	var occ struct {
		Year        int `json:"year"`
		Occurrences []struct {
			Start time.Time `json:"start"`
		} `json:"occurrences"`
	}
	env.do(t, http.MethodGet, "/api/strategies/"+st.ID+"/occurrences", nil, &occ)
	if occ.Year != 2025 || len(occ.Occurrences) != 12 {
		t.Errorf("occurrences = %+v", occ)
	}

	code = env.do(t, http.MethodPost, "/api/strategies/"+st.ID+"/toggle", map[string]any{"version": 1, "active": false}, &st)
	if code != 200 || st.IsActive || st.Version != 2 {
		t.Errorf("toggle = %d %+v", code, st)
	}
	if code := env.do(t, http.MethodPost, "/api/strategies/"+st.ID+"/toggle", map[string]any{"version": 1, "active": true}, nil); code != 409 {
		t.Errorf("stale toggle status = %d", code)
	}

	env.do(t, http.MethodGet, "/api/strategies/"+st.ID+"/occurrences?year=2025", nil, &occ)
	if len(occ.Occurrences) != 0 {
		t.Errorf("inactive strategy occurrences = %d", len(occ.Occurrences))
	}
	if code := env.do(t, http.MethodGet, "/api/strategies/"+st.ID+"/occurrences?year=abc", nil, nil); code != 400 {
		t.Errorf("bad year status = %d", code)
	}

	code = env.do(t, http.MethodPatch, "/api/strategies/"+st.ID, map[string]any{"version": 2, "name": "Inspeção bimestral"}, &st)
	if code != 200 || st.Name != "Inspeção bimestral" {
		t.Errorf("update = %d %+v", code, st)
	}

	var list []models.Strategy
	env.do(t, http.MethodGet, "/api/strategies?group="+env.groups["Moenda"], nil, &list)
	if len(list) != 1 {
		t.Errorf("list = %d", len(list))
	}
}

func TestStops_Lifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	st := env.createStop(t, "Moenda")
	if st.CenterCode != "1089" || st.Status != models.StatusPlanned {
		t.Fatalf("stop = %+v", st)
	}

	var body map[string]string
	code := env.do(t, http.MethodPatch, "/api/stops/"+st.ID, map[string]any{"version": 1, "status": "completed"}, &body)
	if code != 400 || !strings.Contains(body["error"], "invalid status transition") {
		t.Errorf("planned->completed = %d %v", code, body)
	}

	code = env.do(t, http.MethodPatch, "/api/stops/"+st.ID, map[string]any{"version": 1, "status": "in-progress"}, &st)
	if code != 200 || st.Status != models.StatusInProgress || st.ActualStart == nil || st.Version != 2 {
		t.Errorf("start = %d %+v", code, st)
	}
	if code := env.do(t, http.MethodPatch, "/api/stops/"+st.ID, map[string]any{"version": 1, "title": "x"}, nil); code != 409 {
		t.Errorf("stale update status = %d", code)
	}

	var one models.Stop
	if code := env.do(t, http.MethodGet, "/api/stops/"+st.ID, nil, &one); code != 200 || one.Version != 2 {
		t.Errorf("get = %d %+v", code, one)
	}

	if code := env.do(t, http.MethodDelete, "/api/stops/"+st.ID, nil, nil); code != 400 {
		t.Errorf("delete without version status = %d", code)
	}
	if code := env.do(t, http.MethodDelete, "/api/stops/"+st.ID+"?version=2", nil, nil); code != http.StatusNoContent {
		t.Errorf("delete status = %d", code)
	}
	if code := env.do(t, http.MethodGet, "/api/stops/"+st.ID, nil, nil); code != 404 {
		t.Errorf("get deleted status = %d", code)
	}
}

func TestStops_ListAndSummary(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createStop(t, "Moenda")
	env.createStop(t, "Cais")

	var stops []models.Stop
	env.do(t, http.MethodGet, "/api/stops?center=1001", nil, &stops)
	if len(stops) != 1 || stops[0].Title != "Parada Cais" {
		t.Errorf("stops in 1001 = %+v", stops)
	}
	env.do(t, http.MethodGet, "/api/stops?year=2024", nil, &stops)
	if len(stops) != 0 {
		t.Errorf("stops in 2024 = %d", len(stops))
	}

	var sum stop.Summary
	env.do(t, http.MethodGet, "/api/stops/summary", nil, &sum)
	if sum.Total != 2 || sum.ByPriority["high"] != 2 || sum.ByStatus[models.StatusPlanned] != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestStops_GenerateAndRepair(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/strategies", map[string]any{
		"name":      "Trimestral",
		"groupId":   env.groups["Cais"],
		"frequency": map[string]any{"value": 3, "unit": "months"},
		"duration":  map[string]any{"value": 1, "unit": "days"},
		"startDate": "2025-01-01T00:00:00Z",
	}, nil)

	var res stop.GenerateResult
	if code := env.do(t, http.MethodPost, "/api/stops/generate", nil, &res); code != 200 || res.Created != 4 {
		t.Errorf("generate = %d %+v", code, res)
	}
	env.do(t, http.MethodPost, "/api/stops/generate", map[string]int{"year": 2025}, &res)
	if res.Created != 0 || res.Skipped != 4 {
		t.Errorf("second generate = %+v", res)
	}

	var repaired struct {
		Reassigned []stop.Reassignment `json:"reassigned"`
	}
	if code := env.do(t, http.MethodPost, "/api/stops/repair", nil, &repaired); code != 200 || len(repaired.Reassigned) != 0 {
		t.Errorf("repair = %d %+v", code, repaired)
	}
}

func TestTimelineAndFilters(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createStop(t, "Moenda")

	var view planner.View
	if code := env.do(t, http.MethodGet, "/api/timeline", nil, &view); code != 200 {
		t.Fatalf("timeline status = %d", code)
	}
	if view.State.Year != 2025 || len(view.Rows) != 3 || view.TotalDays != 365 {
		t.Errorf("view = year %d rows %d days %d", view.State.Year, len(view.Rows), view.TotalDays)
	}

	var filters struct {
		State struct {
			Center string `json:"center"`
			Phase  string `json:"phase"`
		} `json:"state"`
		Rows []string `json:"rows"`
	}
	code := env.do(t, http.MethodPost, "/api/filters", planner.Change{Field: planner.FieldCenter, Value: "1089"}, &filters)
	if code != 200 || filters.State.Center != "1089" || len(filters.Rows) != 2 {
		t.Errorf("apply center = %d %+v", code, filters)
	}
	if code := env.do(t, http.MethodPost, "/api/filters", planner.Change{Field: "color", Value: "red"}, nil); code != 400 {
		t.Errorf("unknown field status = %d", code)
	}

	first, second := filters.Rows[0], filters.Rows[1]
	var moved struct {
		Rows []string `json:"rows"`
	}
	if code := env.do(t, http.MethodPost, "/api/rows/move", map[string]int{"from": 0, "to": 1}, &moved); code != 200 {
		t.Fatalf("move status = %d", code)
	}
	if moved.Rows[0] != second || moved.Rows[1] != first {
		t.Errorf("rows after move = %v", moved.Rows)
	}
	if code := env.do(t, http.MethodPost, "/api/rows/move", map[string]int{"from": 0, "to": 9}, nil); code != 400 {
		t.Errorf("out of range move status = %d", code)
	}
	if code := env.do(t, http.MethodPost, "/api/rows/move", map[string]string{}, nil); code != 400 {
		t.Errorf("empty move status = %d", code)
	}

	env.do(t, http.MethodDelete, "/api/filters", nil, &filters)
	if filters.State.Center != "all" || len(filters.Rows) != 3 {
		t.Errorf("cleared = %+v", filters)
	}
}

func TestFilters_SharedAcrossClients(t *testing.T) {
	env := newTestEnv(t, nil)
	if code := env.do(t, http.MethodPost, "/api/filters", planner.Change{Field: planner.FieldCenter, Value: "1089"}, nil); code != 200 {
		t.Fatalf("apply status = %d", code)
	}

	// A second client on its own connection sees the first client's filter.
	other := &http.Client{Transport: &http.Transport{}}
	resp, err := other.Get(env.srv.URL + "/api/filters")
	if err != nil {
		t.Fatalf("GET /api/filters: %v", err)
	}
	defer resp.Body.Close()
	var filters struct {
		State struct {
			Center string `json:"center"`
		} `json:"state"`
		Rows []string `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&filters); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if filters.State.Center != "1089" || len(filters.Rows) != 2 {
		t.Errorf("second client filters = %+v, want center 1089 with 2 rows", filters)
	}
}

func TestSAP_NotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	var st sap.Status
	if code := env.do(t, http.MethodGet, "/api/sap/status", nil, &st); code != 200 || st.Configured {
		t.Errorf("status = %d %+v", code, st)
	}
	if code := env.do(t, http.MethodPost, "/api/sap/export", map[string]string{"entity": "MaintenanceStop"}, nil); code != 503 {
		t.Errorf("export status = %d", code)
	}
}

func sapClient(t *testing.T, h http.HandlerFunc) *sap.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return sap.NewClient(context.Background(), config.SAPConfig{S4HanaEndpoint: srv.URL}, sap.ClientOpts{
		HTTPClient: srv.Client(),
		Logger:     log.New(io.Discard),
	})
}

func TestSAP_Export(t *testing.T) {
	var batch sap.Batch
	env := newTestEnv(t, sapClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&batch)
		w.WriteHeader(http.StatusOK)
	}))

	var res sap.ExportResult
	code := env.do(t, http.MethodPost, "/api/sap/export", map[string]any{
		"entity": "MaintenanceAssetGroup",
		"ids":    []string{env.groups["Moenda"], env.groups["Cais"]},
	}, &res)
	if code != 200 || res.Successful != 2 || res.Message != "2 MaintenanceAssetGroup exported to SAP BTP" {
		t.Errorf("export = %d %+v", code, res)
	}
	if len(batch.Requests) != 2 {
		t.Errorf("batch = %+v", batch)
	}

	if code := env.do(t, http.MethodPost, "/api/sap/export", map[string]string{"entity": "Equipment"}, nil); code != 400 {
		t.Errorf("unknown entity status = %d", code)
	}
}

func TestSAP_ExportFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t, sapClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	var body map[string]string
	code := env.do(t, http.MethodPost, "/api/sap/export", map[string]string{"entity": "MaintenanceAssetGroup"}, &body)
	if code != 502 || body["kind"] != "auth" || !strings.Contains(body["error"], "not authorized") {
		t.Errorf("export = %d %v", code, body)
	}
}

func TestEvents_StreamsChanges(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, "event: ") {
				lines.Scan()
				return strings.TrimPrefix(l, "event: ") + " " + strings.TrimPrefix(lines.Text(), "data: ")
			}
		}
		return ""
	}

	if got := next(); !strings.HasPrefix(got, "connected") {
		t.Fatalf("first event = %q", got)
	}
	st := env.createStop(t, "Britador")
	got := next()
	if !strings.HasPrefix(got, "change") || !strings.Contains(got, `"table":"maintenance_stops"`) || !strings.Contains(got, st.ID) {
		t.Errorf("change event = %q", got)
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	writeSSE(&buf, "heartbeat", map[string]string{"timestamp": "now"})
	if got := buf.String(); got != "event: heartbeat\ndata: {\"timestamp\":\"now\"}\n\n" {
		t.Errorf("writeSSE = %q", got)
	}
}
