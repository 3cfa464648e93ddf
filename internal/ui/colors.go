package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/isaac-jh/ym-library/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	label lipgloss.Style
	focus lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		label: NewStyle(h).Width(14),
		focus: NewBold(t),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// stateStyle colors a stage by its displayed state. Pending proposals are drawn as warnings.
func (p *Palette) stateStyle(state models.StageState, pending bool) lipgloss.Style {
	switch {
	case pending:
		return p.warn
	case state == models.Complete:
		return p.ok
	case state == models.Incomplete:
		return p.err
	default:
		return p.help
	}
}
