package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/stopyard/internal/planner"
	"github.com/zulandar/stopyard/internal/sap"
)

// writeConfig writes a sqlite config into a temp dir and returns its path.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := "database:\n" +
		"  driver: sqlite\n" +
		"  path: " + filepath.Join(dir, "stopyard.db") + "\n" +
		"centers:\n" +
		"  - code: \"1089\"\n" +
		"    name: Usina Norte\n" +
		"    region: Sudeste\n" +
		"log:\n" +
		"  level: error\n"
	path := filepath.Join(dir, "stopyard.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runSy(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append(args, "-c", configPath))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := runSy(t, configPath, args...)
	if err != nil {
		t.Fatalf("sy %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// createdID returns the id from a "Created <kind> <id> (...)" line.
func createdID(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(out)
	if len(fields) < 3 || fields[0] != "Created" {
		t.Fatalf("unexpected create output: %q", out)
	}
	return fields[2]
}

func initDB(t *testing.T) string {
	t.Helper()
	cfg := writeConfig(t)
	out := mustRun(t, cfg, "db", "init")
	if !strings.Contains(out, "Migrated 6 tables") {
		t.Errorf("init output = %q", out)
	}
	if !strings.Contains(out, "Seeded 1 location centers 1089") {
		t.Errorf("init output = %q", out)
	}
	return cfg
}

func TestDBInit_Idempotent(t *testing.T) {
	cfg := initDB(t)
	mustRun(t, cfg, "db", "migrate")

	out := mustRun(t, cfg, "group", "centers")
	if !strings.Contains(out, "Usina Norte") || !strings.Contains(out, "Sudeste") {
		t.Errorf("centers output = %q", out)
	}
}

func TestPlanningFlow(t *testing.T) {
	cfg := initDB(t)

	groupID := createdID(t, mustRun(t, cfg, "group", "add", "--name", "Moenda", "--center", "1089", "--phase", "USINA"))
	if out := mustRun(t, cfg, "group", "list", "--center", "1089"); !strings.Contains(out, "Moenda") {
		t.Errorf("group list = %q", out)
	}
	out := mustRun(t, cfg, "group", "asset", groupID, "--tag", "MO-01", "--name", "Moinho 1")
	if !strings.Contains(out, "Added asset MO-01") {
		t.Errorf("asset output = %q", out)
	}

	strategyID := createdID(t, mustRun(t, cfg, "strategy", "add",
		"--group", groupID, "--name", "Inspecao trimestral",
		"--every", "3 months", "--duration", "2 days",
		"--start", "2025-01-06", "--priority", "high", "--teams", "mecanica"))

	out = mustRun(t, cfg, "strategy", "expand", strategyID, "--year", "2025")
	if !strings.Contains(out, "4 occurrences in 2025") || !strings.Contains(out, "2025-10-06") {
		t.Errorf("expand output = %q", out)
	}

	out = mustRun(t, cfg, "stop", "generate", "--year", "2025")
	if !strings.Contains(out, "Generated 4 stops for 2025 (0 already existed)") {
		t.Errorf("generate output = %q", out)
	}
	out = mustRun(t, cfg, "stop", "generate", "--year", "2025")
	if !strings.Contains(out, "Generated 0 stops for 2025 (4 already existed)") {
		t.Errorf("second generate output = %q", out)
	}

	stopID := createdID(t, mustRun(t, cfg, "stop", "add",
		"--group", groupID, "--title", "Troca de rolos",
		"--start", "2025-03-10", "--end", "2025-03-12", "--team", "mecanica", "--cost", "1500"))

	out = mustRun(t, cfg, "stop", "status", stopID, "in-progress")
	if !strings.Contains(out, "is now in-progress (50% complete)") {
		t.Errorf("status output = %q", out)
	}
	if _, err := runSy(t, cfg, "stop", "status", stopID, "finished"); err == nil {
		t.Error("expected error for unknown status")
	}

	out = mustRun(t, cfg, "stop", "list", "--year", "2025", "--status", "planned")
	if strings.Count(out, "Inspecao trimestral") != 4 {
		t.Errorf("stop list = %q", out)
	}

	out = mustRun(t, cfg, "stop", "summary", "--year", "2025")
	for _, want := range []string{"Stops:           5", "Estimated cost:  1500.00", "in-progress  1"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, cfg, "timeline", "--year", "2025")
	for _, want := range []string{"Timeline 2025-01-01 to 2025-12-31", "Moenda  [1089 USINA]", "occurrence", "Troca de rolos"} {
		if !strings.Contains(out, want) {
			t.Errorf("timeline missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, cfg, "timeline", "--year", "2025", "--month", "3", "--json")
	var view planner.View
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode timeline json: %v", err)
	}
	if view.State.Month != 3 || len(view.Rows) != 1 {
		t.Fatalf("view state = %+v, rows = %d", view.State, len(view.Rows))
	}
	var kinds []string
	for _, it := range view.Rows[0].Items {
		kinds = append(kinds, it.Kind)
	}
	if len(kinds) != 1 || kinds[0] != planner.KindStop {
		t.Errorf("march items = %v, want only the manual stop", kinds)
	}

	out = mustRun(t, cfg, "strategy", "toggle", strategyID, "off")
	if !strings.Contains(out, "is now inactive") {
		t.Errorf("toggle output = %q", out)
	}
	if out := mustRun(t, cfg, "strategy", "list", "--active"); !strings.Contains(out, "No strategies found.") {
		t.Errorf("active strategy list = %q", out)
	}
}

func TestStopRepair_NoOrphans(t *testing.T) {
	cfg := initDB(t)
	out := mustRun(t, cfg, "stop", "repair")
	if !strings.Contains(out, "No orphaned stops.") {
		t.Errorf("repair output = %q", out)
	}
}

func TestTimeline_Empty(t *testing.T) {
	cfg := initDB(t)
	out := mustRun(t, cfg, "timeline", "--year", "2025")
	if !strings.Contains(out, "No groups match the current filters.") {
		t.Errorf("timeline output = %q", out)
	}
}

func TestStrategyAdd_BadAmount(t *testing.T) {
	cfg := initDB(t)
	_, err := runSy(t, cfg, "strategy", "add", "--group", "g", "--name", "x",
		"--every", "monthly", "--duration", "1 days", "--start", "2025-01-01")
	if err == nil || !strings.Contains(err.Error(), "--every") {
		t.Errorf("err = %v, want --every error", err)
	}
}

func TestSAP_NotConfigured(t *testing.T) {
	cfg := initDB(t)
	out := mustRun(t, cfg, "sap", "status")
	if !strings.Contains(out, "not configured") {
		t.Errorf("sap status = %q", out)
	}
	_, err := runSy(t, cfg, "sap", "export", "stops")
	if !errors.Is(err, sap.ErrNotConfigured) {
		t.Errorf("export err = %v, want ErrNotConfigured", err)
	}
}

func TestDBReset(t *testing.T) {
	cfg := initDB(t)
	mustRun(t, cfg, "group", "add", "--name", "Moenda", "--center", "1089", "--phase", "USINA")

	// Without --yes and an empty answer, nothing happens.
	out := mustRun(t, cfg, "db", "reset")
	if !strings.Contains(out, "Reset cancelled.") {
		t.Errorf("reset output = %q", out)
	}
	if out := mustRun(t, cfg, "group", "list"); !strings.Contains(out, "Moenda") {
		t.Error("group gone after cancelled reset")
	}

	out = mustRun(t, cfg, "db", "reset", "--yes")
	if !strings.Contains(out, "reset and re-initialized successfully") {
		t.Errorf("reset output = %q", out)
	}
	if out := mustRun(t, cfg, "group", "list"); !strings.Contains(out, "No groups found.") {
		t.Errorf("group list after reset = %q", out)
	}
	if out := mustRun(t, cfg, "group", "centers"); !strings.Contains(out, "1089") {
		t.Errorf("centers not reseeded: %q", out)
	}
}

func TestConfirmReset(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"  yes  \n", true},
		{"y\n", false},
		{"", false},
	}
	for _, tt := range tests {
		cmd := newRootCmd()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetIn(strings.NewReader(tt.input))
		if got := confirmReset(cmd, "stopyard"); got != tt.want {
			t.Errorf("confirmReset(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
