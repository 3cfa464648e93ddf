package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/tracker"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// PendingMark flags a stage cell whose displayed value is an unsubmitted proposal.
const PendingMark = "*"

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// StageCell is the compact table form of a stage: "✓ Alice", "✗" or "N/A".
func StageCell(s models.StageStatus) string {
	switch s.State {
	case models.Complete:
		if v := VerifierName(s); v != "" {
			return "✓ " + v
		}
		return "✓"
	case models.Incomplete:
		return "✗"
	default:
		return labelNA
	}
}

func recordHeaders() []string {
	headers := []string{"ID", "Event", "Date", "Name"}
	for _, s := range models.Stages {
		headers = append(headers, s.Label())
	}
	return append(headers, "Producers")
}

func recordRow(r models.BackupRecord, pending tracker.ChangeSet) []string {
	row := []string{
		strconv.FormatInt(int64(r.ID), 10),
		orDash(r.EventName),
		orDash(r.DateKey()),
		r.Name,
	}
	for _, s := range models.Stages {
		cell := StageCell(r.Stage(s))
		if _, ok := pending[s]; ok {
			cell += PendingMark
		}
		row = append(row, cell)
	}
	return append(row, orDash(strings.Join(r.Producers, ", ")))
}

// RecordsTable renders records as a table. Stages with a pending proposal are suffixed with [PendingMark].
func RecordsTable(records []models.BackupRecord, pending map[models.RecordID]tracker.ChangeSet) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, recordRow(r, pending[r.ID]))
	}
	return renderTable(recordHeaders(), rows, []columnAlignment{alignRight})
}

// RecordsPlain renders records as tab-separated lines for pipes and scripts.
func RecordsPlain(records []models.BackupRecord, pending map[models.RecordID]tracker.ChangeSet) string {
	var b strings.Builder
	b.WriteString(strings.Join(recordHeaders(), "\t"))
	b.WriteString("\n")
	for _, r := range records {
		b.WriteString(strings.Join(recordRow(r, pending[r.ID]), "\t"))
		b.WriteString("\n")
	}
	return b.String()
}

// RecordDetail renders one record with full stage labels.
func RecordDetail(r models.BackupRecord, pending tracker.ChangeSet) string {
	rows := [][]string{
		{"ID", strconv.FormatInt(int64(r.ID), 10)},
		{"Event", orDash(r.EventName)},
		{"Date", orDash(r.DateKey())},
		{"Name", r.Name},
		{"Description", orDash(r.Description)},
	}
	for _, s := range models.Stages {
		label := StageLabel(r.Stage(s))
		if _, ok := pending[s]; ok {
			label += " " + PendingMark
		}
		rows = append(rows, []string{s.Label(), label})
	}
	rows = append(rows, []string{"Producers", orDash(strings.Join(r.Producers, ", "))})
	if r.Version != 0 {
		rows = append(rows, []string{"Version", strconv.FormatInt(r.Version, 10)})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

// UsersTable renders the user directory.
func UsersTable(users []models.User) string {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u.ID.String(), u.Name, orDash(u.Nickname)})
	}
	return renderTable([]string{"ID", "Name", "Nickname"}, rows, []columnAlignment{alignRight})
}

// CatalogTable renders archive catalog items.
func CatalogTable(items []models.ActivityItem) string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			strconv.FormatInt(it.ID, 10),
			fmt.Sprintf("%04d-%02d", it.Year, it.Month),
			orDash(it.Storage),
			orDash(it.Category),
			it.ActivityName,
			orDash(it.Description),
		})
	}
	return renderTable(
		[]string{"ID", "Month", "Storage", "Category", "Activity", "Description"},
		rows,
		[]columnAlignment{alignRight},
	)
}
