// package formatter renders backup records, users and catalog items for the terminal and exports records to
// CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
)

const (
	labelComplete   = "완료"
	labelIncomplete = "미완료"
	labelNA         = "N/A"
	labelVerifier   = "확인자"
	emptyField      = "-"
)

// Undated is the group key of records without a displayed date.
const Undated = "undated"

// StageLabel renders a stage the way the board shows it: "완료 / 확인자: Alice", "미완료" or "N/A".
func StageLabel(s models.StageStatus) string {
	switch s.State {
	case models.Complete:
		if v := VerifierName(s); v != "" {
			return fmt.Sprintf("%s / %s: %s", labelComplete, labelVerifier, v)
		}
		return labelComplete
	case models.Incomplete:
		return labelIncomplete
	default:
		return labelNA
	}
}

// VerifierName is the server-resolved verifier name, or "#id" when the server did not resolve one.
func VerifierName(s models.StageStatus) string {
	if s.VerifierName != "" {
		return s.VerifierName
	}
	if s.VerifiedBy != nil {
		return "#" + s.VerifiedBy.String()
	}
	return ""
}

// DateGroup is a run of records sharing a displayed date.
type DateGroup struct {
	Key     string // YYYY-MM-DD or [Undated]
	Records []models.BackupRecord
}

// GroupByDate groups records by displayed date, oldest first, with undated records last.
// Records keep their relative order within a group.
func GroupByDate(records []models.BackupRecord) []DateGroup {
	index := make(map[string]int)
	var groups []DateGroup
	for _, r := range records {
		key := r.DateKey()
		if key == "" {
			key = Undated
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Key: key})
		}
		groups[i].Records = append(groups[i].Records, r)
	}

	slices.SortStableFunc(groups, func(a, b DateGroup) int {
		switch {
		case a.Key == b.Key:
			return 0
		case a.Key == Undated:
			return 1
		case b.Key == Undated:
			return -1
		default:
			return strings.Compare(a.Key, b.Key)
		}
	})
	return groups
}

// ExportToCSV converts records to CSV with one state and one checker column per stage.
func ExportToCSV(records []models.BackupRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Event", "Date", "Name", "Description"}
	for _, s := range models.Stages {
		headers = append(headers, s.Label(), s.Label()+" Checker")
	}
	headers = append(headers, "Producers")
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range records {
		row := []string{
			strconv.FormatInt(int64(r.ID), 10),
			r.EventName,
			r.DateKey(),
			r.Name,
			r.Description,
		}
		for _, s := range models.Stages {
			st := r.Stage(s)
			row = append(row, st.State.String(), VerifierName(st))
		}
		row = append(row, strings.Join(r.Producers, "; "))
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders records as a Markdown checklist grouped by date.
func ExportToMarkdown(records []models.BackupRecord, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Backup status"
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Records**: %d\n\n", len(records))

	for _, g := range GroupByDate(records) {
		fmt.Fprintf(&buf, "## %s\n\n", g.Key)
		for _, r := range g.Records {
			fmt.Fprintf(&buf, "### %s\n\n", r.Name)
			if r.EventName != "" {
				fmt.Fprintf(&buf, "**Event**: %s\n\n", r.EventName)
			}
			if r.Description != "" {
				fmt.Fprintf(&buf, "**Description**: %s\n\n", r.Description)
			}
			for _, s := range models.Stages {
				st := r.Stage(s)
				box := "[ ]"
				if st.State == models.Complete {
					box = "[x]"
				}
				if st.State == models.NotApplicable {
					fmt.Fprintf(&buf, "- %s: %s\n", s.Label(), labelNA)
					continue
				}
				fmt.Fprintf(&buf, "- %s %s: %s\n", box, s.Label(), StageLabel(st))
			}
			if len(r.Producers) > 0 {
				fmt.Fprintf(&buf, "\n**Producers**: %s\n", strings.Join(r.Producers, ", "))
			}
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// ExportToText renders records as plain text grouped by date.
func ExportToText(records []models.BackupRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Records: %d\n", len(records))
	for _, g := range GroupByDate(records) {
		fmt.Fprintf(&buf, "\n[%s]\n", g.Key)
		for _, r := range g.Records {
			fmt.Fprintf(&buf, "%d. %s (%s)\n", r.ID, r.Name, orDash(r.EventName))
			for _, s := range models.Stages {
				fmt.Fprintf(&buf, "   %-6s %s\n", s.Label(), StageLabel(r.Stage(s)))
			}
		}
	}
	return buf.Bytes(), nil
}

// WriteExport writes records to path in format: csv, markdown, txt or json.
//
// Defaults to backup_status.{ext} in the working directory when path is empty.
func WriteExport(records []models.BackupRecord, format, path string) (string, error) {
	var (
		data []byte
		ext  string
		err  error
	)

	switch format {
	case "csv":
		data, err = ExportToCSV(records)
		ext = "csv"
	case "markdown", "md":
		data, err = ExportToMarkdown(records, "")
		ext = "md"
	case "txt", "text":
		data, err = ExportToText(records)
		ext = "txt"
	case "json", "":
		items := make([]services.BackupStatusItem, len(records))
		for i, r := range records {
			items[i] = services.ItemFromRecord(r)
		}
		data, err = shared.MarshalJSON(items, true)
		ext = "json"
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate %s export: %w", ext, err)
	}

	if path == "" {
		path = "backup_status." + ext
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyField
	}
	return s
}
