package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/isaac-jh/ym-library/internal/formatter"
	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/tracker"
)

var _ list.Item = recordItem{}

// recordItem wraps the displayed copy of a [models.BackupRecord] to implement [list.Item].
type recordItem struct {
	record     models.BackupRecord
	pending    tracker.ChangeSet
	submitting bool
}

func (i recordItem) FilterValue() string { return i.record.Name + " " + i.record.EventName }

func (i recordItem) Title() string {
	title := fmt.Sprintf("#%d %s", i.record.ID, i.record.Name)
	if i.record.EventName != "" {
		title = fmt.Sprintf("%s • %s", title, i.record.EventName)
	}
	if i.submitting {
		title += " (submitting)"
	}
	return title
}

func (i recordItem) Description() string {
	cells := make([]string, 0, len(models.Stages))
	for _, s := range models.Stages {
		cell := formatter.StageCell(i.record.Stage(s))
		if _, ok := i.pending[s]; ok {
			cell += formatter.PendingMark
		}
		cells = append(cells, fmt.Sprintf("%s %s", s.Label(), cell))
	}
	desc := strings.Join(cells, " │ ")
	if key := i.record.DateKey(); key != "" {
		desc = fmt.Sprintf("%s • %s", key, desc)
	}
	return desc
}
