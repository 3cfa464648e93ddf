package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/shared"
	th "github.com/isaac-jh/ym-library/internal/testing"
	"github.com/isaac-jh/ym-library/internal/tracker"
)

func date(s string) *time.Time {
	d, _ := time.Parse(models.DateLayout, s)
	return &d
}

func sampleRecords() []models.BackupRecord {
	alice := models.UserID(7)
	return []models.BackupRecord{
		{
			ID:            1,
			EventName:     "Easter",
			DisplayedDate: date("2024-03-31"),
			Name:          "Sunday service",
			Cam:           models.StageStatus{State: models.Complete, VerifiedBy: &alice, VerifierName: "Alice"},
			Master:        models.StageStatus{State: models.NotApplicable},
			Clean:         models.StageStatus{State: models.Incomplete},
			FinalProduct:  models.StageStatus{State: models.Incomplete},
			Producers:     []string{"Bob", "Carol"},
		},
		{
			ID:           2,
			Name:         "Youth night",
			Description:  "Friday",
			Cam:          models.StageStatus{State: models.Incomplete},
			Master:       models.StageStatus{State: models.Incomplete},
			Clean:        models.StageStatus{State: models.Incomplete},
			FinalProduct: models.StageStatus{State: models.Incomplete},
		},
		{
			ID:            3,
			EventName:     "Retreat",
			DisplayedDate: date("2024-01-14"),
			Name:          "Opening worship",
			Cam:           models.StageStatus{State: models.Incomplete},
			Master:        models.StageStatus{State: models.Incomplete},
			Clean:         models.StageStatus{State: models.NotApplicable},
			FinalProduct:  models.StageStatus{State: models.NotApplicable},
		},
	}
}

func TestStageLabel(t *testing.T) {
	id := models.UserID(7)
	tests := []struct {
		name   string
		status models.StageStatus
		label  string
		cell   string
	}{
		{
			name:   "complete with resolved name",
			status: models.StageStatus{State: models.Complete, VerifiedBy: &id, VerifierName: "Alice"},
			label:  "완료 / 확인자: Alice",
			cell:   "✓ Alice",
		},
		{
			name:   "complete without resolved name",
			status: models.StageStatus{State: models.Complete, VerifiedBy: &id},
			label:  "완료 / 확인자: #7",
			cell:   "✓ #7",
		},
		{name: "incomplete", status: models.StageStatus{State: models.Incomplete}, label: "미완료", cell: "✗"},
		{name: "not applicable", status: models.StageStatus{State: models.NotApplicable}, label: "N/A", cell: "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StageLabel(tt.status); got != tt.label {
				t.Errorf("StageLabel: expected %q, got %q", tt.label, got)
			}
			if got := StageCell(tt.status); got != tt.cell {
				t.Errorf("StageCell: expected %q, got %q", tt.cell, got)
			}
		})
	}
}

func TestGroupByDate(t *testing.T) {
	groups := GroupByDate(sampleRecords())

	var keys []string
	var ids [][]models.RecordID
	for _, g := range groups {
		keys = append(keys, g.Key)
		var gids []models.RecordID
		for _, r := range g.Records {
			gids = append(gids, r.ID)
		}
		ids = append(ids, gids)
	}

	if diff := cmp.Diff([]string{"2024-01-14", "2024-03-31", Undated}, keys); diff != "" {
		t.Errorf("group keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]models.RecordID{{3}, {1}, {2}}, ids); diff != "" {
		t.Errorf("group members mismatch (-want +got):\n%s", diff)
	}

	if got := GroupByDate(nil); len(got) != 0 {
		t.Errorf("expected no groups, got %d", len(got))
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleRecords())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(rows) != 4 {
			t.Fatalf("expected header and 3 rows, got %d", len(rows))
		}

		wantHeader := []string{
			"ID", "Event", "Date", "Name", "Description",
			"CAM", "CAM Checker", "Master", "Master Checker", "Clean", "Clean Checker", "Final", "Final Checker",
			"Producers",
		}
		if diff := cmp.Diff(wantHeader, rows[0]); diff != "" {
			t.Errorf("header mismatch (-want +got):\n%s", diff)
		}

		first := rows[1]
		if first[2] != "2024-03-31" || first[5] != "complete" || first[6] != "Alice" || first[7] != "not_applicable" {
			t.Errorf("unexpected first row %v", first)
		}
		if first[13] != "Bob; Carol" {
			t.Errorf("expected producers joined, got %q", first[13])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleRecords(), "")
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# Backup status",
			"**Records**: 3",
			"## 2024-01-14",
			"## " + Undated,
			"### Sunday service",
			"**Event**: Easter",
			"- [x] CAM: 완료 / 확인자: Alice",
			"- [ ] Clean: 미완료",
			"- Master: N/A",
			"**Producers**: Bob, Carol",
			"**Description**: Friday",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("markdown missing %q", want)
			}
		}

		if strings.Index(output, "## 2024-01-14") > strings.Index(output, "## 2024-03-31") {
			t.Error("expected groups in chronological order")
		}
	})

	t.Run("ExportToMarkdown with title", func(t *testing.T) {
		data, _ := ExportToMarkdown(nil, "Archive")
		if !strings.HasPrefix(string(data), "# Archive\n") {
			t.Errorf("expected custom title, got %q", data)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleRecords())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{"Records: 3", "[2024-03-31]", "1. Sunday service (Easter)", "2. Youth night (-)", "완료 / 확인자: Alice"} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q", want)
			}
		}
	})
}

func TestWriteExport(t *testing.T) {
	tests := []struct {
		format string
		file   string
		want   string
	}{
		{format: "csv", file: "out.csv", want: "ID,Event,Date"},
		{format: "markdown", file: "out.md", want: "# Backup status"},
		{format: "txt", file: "out.txt", want: "Records: 3"},
		{format: "json", file: "out.json", want: `"cam_checker": 7`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", tt.file)

			got, err := WriteExport(sampleRecords(), tt.format, path)
			if err != nil {
				t.Fatalf("WriteExport failed: %v", err)
			}
			if got != path {
				t.Errorf("expected path %s, got %s", path, got)
			}
			th.AssertFileExists(t, path)
			if content := th.MustReadFile(t, path); !strings.Contains(content, tt.want) {
				t.Errorf("expected %q in output, got:\n%s", tt.want, content)
			}
		})
	}

	t.Run("json uses the wire shape", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.json")
		if _, err := WriteExport(sampleRecords(), "json", path); err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}

		var items []map[string]any
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &items); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("expected 3 items, got %d", len(items))
		}
		if items[0]["master"] != nil || items[0]["cam"] != true || items[1]["cam"] != false {
			t.Errorf("unexpected stage encoding %v", items[0])
		}
	})

	t.Run("default path", func(t *testing.T) {
		dir := t.TempDir()
		th.MustChdir(t, dir)

		got, err := WriteExport(sampleRecords(), "txt", "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if got != "backup_status.txt" {
			t.Errorf("expected default file name, got %s", got)
		}
		th.AssertFileExists(t, filepath.Join(dir, got))
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := WriteExport(sampleRecords(), "xml", filepath.Join(t.TempDir(), "x"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestTables(t *testing.T) {
	t.Run("RecordsTable marks pending stages", func(t *testing.T) {
		pending := map[models.RecordID]tracker.ChangeSet{2: {models.StageCam: models.Complete}}
		out := RecordsTable(sampleRecords(), pending)

		for _, want := range []string{"Sunday service", "✓ Alice", "N/A", "Bob, Carol", "Final"} {
			if !strings.Contains(out, want) {
				t.Errorf("table missing %q:\n%s", want, out)
			}
		}
		if !strings.Contains(out, "✗"+PendingMark) {
			t.Errorf("expected a pending marker:\n%s", out)
		}
	})

	t.Run("RecordsPlain is tab separated", func(t *testing.T) {
		out := RecordsPlain(sampleRecords(), nil)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected 4 lines, got %d", len(lines))
		}
		if got := strings.Split(lines[1], "\t"); got[0] != "1" || got[3] != "Sunday service" {
			t.Errorf("unexpected row %v", got)
		}
		if got := strings.Split(lines[2], "\t"); got[1] != "-" || got[2] != "-" {
			t.Errorf("expected dashes for missing fields, got %v", got)
		}
	})

	t.Run("RecordDetail", func(t *testing.T) {
		r := sampleRecords()[0]
		r.Version = 3
		out := RecordDetail(r, tracker.ChangeSet{models.StageClean: models.Complete})

		for _, want := range []string{"완료 / 확인자: Alice", "미완료 " + PendingMark, "Version", "Easter"} {
			if !strings.Contains(out, want) {
				t.Errorf("detail missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("UsersTable", func(t *testing.T) {
		out := UsersTable([]models.User{{ID: 7, Name: "Alice", Nickname: "ally"}, {ID: 8, Name: "Bob"}})
		for _, want := range []string{"Alice", "ally", "Bob", "Nickname"} {
			if !strings.Contains(out, want) {
				t.Errorf("users table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("CatalogTable", func(t *testing.T) {
		out := CatalogTable([]models.ActivityItem{{ID: 1, Storage: "NAS-1", Category: "Worship", Year: 2024, Month: 3, ActivityName: "Easter"}})
		for _, want := range []string{"2024-03", "NAS-1", "Worship", "Easter"} {
			if !strings.Contains(out, want) {
				t.Errorf("catalog table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("no headers renders nothing", func(t *testing.T) {
		if out := renderTable(nil, nil, nil); out != "" {
			t.Errorf("expected empty output, got %q", out)
		}
	})
}
