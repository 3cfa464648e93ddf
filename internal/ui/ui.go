package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/isaac-jh/ym-library/internal/formatter"
	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
	"github.com/isaac-jh/ym-library/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BoardView ViewState = iota
	DetailView
	EditView
	ConfirmDeleteView
)

// edit form fields, in tab order
const (
	fieldName = iota
	fieldEvent
	fieldDate
	fieldDescription
	fieldCount
)

var fieldLabels = [fieldCount]string{"Name", "Event", "Date", "Description"}

// Model represents the TUI application state.
//
// The board is only touched from Update. Network calls run as commands and come back as [Msg] values.
type Model struct {
	ctx      context.Context
	view     ViewState
	board    *tasks.Board
	api      services.BackupAPI
	session  *models.Session
	logger   *log.Logger
	width    int
	height   int
	records  list.Model
	selected models.RecordID
	inputs   []textinput.Model
	focus    int
	loading  bool
	busy     bool
	notice   string
	failed   bool
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, board *tasks.Board, api services.BackupAPI, session *models.Session, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	records := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	records.Title = "Backup status"
	records.SetShowHelp(false)

	return &Model{
		ctx:     ctx,
		view:    BoardView,
		board:   board,
		api:     api,
		session: session,
		logger:  logger,
		records: records,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init fetches the records from the backend unless the board was already seeded from the local cache.
func (m *Model) Init() tea.Cmd {
	if m.board.Loaded() {
		return m.refresh()
	}
	m.loading = true
	return m.loadRecords()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.records.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case Msg:
		return m.handleMsg(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case BoardView:
			return m.handleBoardKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case EditView:
			return m.handleEditKeys(msg)
		case ConfirmDeleteView:
			return m.handleConfirmKeys(msg)
		}
	}

	var cmd tea.Cmd
	m.records, cmd = m.records.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgRecordsLoaded:
		data := msg.data.(recordsLoaded)
		m.loading = false
		if err := m.board.ApplyLoad(data.records, data.err); err != nil {
			m.fail(err)
			return m, nil
		}
		m.view = BoardView
		m.succeed(fmt.Sprintf("Loaded %d records", len(data.records)))
		return m, m.refresh()

	case MsgSubmitted:
		rec, err := m.board.FinishSubmit(msg.data.(tasks.SubmitResult))
		if err != nil {
			var se *tasks.SubmitError
			if errors.As(err, &se) {
				m.failNotice(se.Notice())
			} else {
				m.fail(err)
			}
			return m, m.refresh()
		}
		m.succeed(fmt.Sprintf("Submitted #%d (version %d)", rec.ID, rec.Version))
		return m, m.refresh()

	case MsgSaved:
		data := msg.data.(recordSaved)
		m.busy = false
		if data.err != nil {
			m.fail(data.err)
			return m, nil
		}
		if err := m.board.Accept(data.record); err != nil {
			m.fail(err)
			return m, nil
		}
		m.board.CancelEdit()
		m.view = DetailView
		m.selected = data.record.ID
		m.succeed(fmt.Sprintf("Saved #%d", data.record.ID))
		return m, m.refresh()

	case MsgDeleted:
		data := msg.data.(recordDeleted)
		m.busy = false
		if data.err != nil {
			m.view = DetailView
			m.fail(data.err)
			return m, nil
		}
		if err := m.board.Forget(data.id); err != nil {
			m.fail(err)
			return m, nil
		}
		m.view = BoardView
		m.succeed(fmt.Sprintf("Deleted #%d", data.id))
		return m, m.refresh()
	}
	return m, nil
}

func (m *Model) handleBoardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.records.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.records, cmd = m.records.Update(msg)
		return m, cmd
	}

	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.reload) {
		return m, m.reload()
	}
	if key.Matches(msg, m.keys.submitAll) {
		return m, m.submitAll()
	}

	if item, ok := m.records.SelectedItem().(recordItem); ok {
		id := item.record.ID
		if key.Matches(msg, m.keys.enter) {
			m.selected = id
			m.view = DetailView
			return m, nil
		}
		if handled, cmd := m.handleRecordKeys(msg, id); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.records, cmd = m.records.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = BoardView
		return m, nil
	case key.Matches(msg, m.keys.reload):
		return m, m.reload()
	}

	_, cmd := m.handleRecordKeys(msg, m.selected)
	return m, cmd
}

// handleRecordKeys runs the actions shared by the board and the detail view against record id.
func (m *Model) handleRecordKeys(msg tea.KeyMsg, id models.RecordID) (bool, tea.Cmd) {
	for i, binding := range m.keys.toggles() {
		if key.Matches(msg, binding) {
			return true, m.toggle(id, models.Stages[i])
		}
	}

	switch {
	case key.Matches(msg, m.keys.submit):
		return true, m.submit(id)
	case key.Matches(msg, m.keys.discard):
		if err := m.board.Discard(id); err != nil {
			m.fail(err)
			return true, nil
		}
		m.succeed(fmt.Sprintf("Discarded changes to #%d", id))
		return true, m.refresh()
	case key.Matches(msg, m.keys.edit):
		m.beginEdit(id)
		return true, nil
	case key.Matches(msg, m.keys.remove):
		m.selected = id
		m.view = ConfirmDeleteView
		return true, nil
	}
	return false, nil
}

func (m *Model) handleEditKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.board.CancelEdit()
		m.view = DetailView
		m.notice = ""
		return m, nil
	case key.Matches(msg, m.keys.save):
		return m, m.save()
	case key.Matches(msg, m.keys.next):
		step := 1
		if msg.String() == "shift+tab" {
			step = fieldCount - 1
		}
		m.focusField((m.focus + step) % fieldCount)
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.remove(m.selected)
	case key.Matches(msg, m.keys.no):
		m.view = DetailView
		return m, nil
	}
	return m, nil
}

func (m *Model) toggle(id models.RecordID, stage models.Stage) tea.Cmd {
	if _, err := m.board.Toggle(id, stage); err != nil {
		m.fail(err)
		return nil
	}
	m.notice = ""
	return m.refresh()
}

func (m *Model) submit(id models.RecordID) tea.Cmd {
	sub, err := m.board.PrepareSubmit(m.session, id)
	if err != nil {
		m.fail(err)
		return nil
	}
	m.succeed(fmt.Sprintf("Submitting #%d...", id))
	return tea.Batch(m.refresh(), m.send(sub))
}

func (m *Model) submitAll() tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range m.board.PendingRecords() {
		sub, err := m.board.PrepareSubmit(m.session, id)
		if err != nil {
			m.logger.Warn("skipping record", "record", id, "error", err)
			if errors.Is(err, shared.ErrNotAuthenticated) {
				m.fail(err)
				return nil
			}
			continue
		}
		cmds = append(cmds, m.send(sub))
	}

	if len(cmds) == 0 {
		m.succeed("Nothing to submit")
		return nil
	}
	m.succeed(fmt.Sprintf("Submitting %d records...", len(cmds)))
	return tea.Batch(append(cmds, m.refresh())...)
}

func (m *Model) beginEdit(id models.RecordID) {
	draft, err := m.board.BeginEdit(id)
	if err != nil {
		m.fail(err)
		return
	}

	values := [fieldCount]string{draft.Name, draft.EventName, "", draft.Description}
	if draft.DisplayedDate != nil {
		values[fieldDate] = draft.DisplayedDate.Format(models.DateLayout)
	}

	m.inputs = make([]textinput.Model, fieldCount)
	for i := range m.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 200
		in.SetValue(values[i])
		m.inputs[i] = in
	}
	m.inputs[fieldDate].Placeholder = models.DateLayout

	m.selected = id
	m.view = EditView
	m.notice = ""
	m.focusField(fieldName)
}

func (m *Model) focusField(i int) {
	for j := range m.inputs {
		m.inputs[j].Blur()
	}
	m.focus = i
	m.inputs[i].Focus()
}

// draft reads the edit form. Producers are left unchanged.
func (m *Model) draft() (models.BackupDraft, error) {
	date, err := models.ParseDate(m.inputs[fieldDate].Value())
	if err != nil {
		return models.BackupDraft{}, err
	}
	d := models.BackupDraft{
		Name:          strings.TrimSpace(m.inputs[fieldName].Value()),
		EventName:     strings.TrimSpace(m.inputs[fieldEvent].Value()),
		DisplayedDate: date,
		Description:   strings.TrimSpace(m.inputs[fieldDescription].Value()),
	}
	return d, d.Validate()
}

func (m *Model) save() tea.Cmd {
	if m.busy {
		return nil
	}
	id, ok := m.board.Editing()
	if !ok {
		m.view = DetailView
		return nil
	}

	draft, err := m.draft()
	if err != nil {
		m.fail(err)
		return nil
	}
	actor, err := m.session.Actor()
	if err != nil {
		m.fail(err)
		return nil
	}
	if m.board.Submitting(id) {
		m.fail(fmt.Errorf("%w: record %d", shared.ErrSubmissionInFlight, id))
		return nil
	}

	m.busy = true
	m.succeed("Saving...")
	return func() tea.Msg {
		rec, err := m.api.UpdateBackup(m.ctx, actor, id, draft)
		return savedMsg(id, rec, err)
	}
}

func (m *Model) remove(id models.RecordID) tea.Cmd {
	if m.busy {
		return nil
	}
	actor, err := m.session.Actor()
	if err != nil {
		m.view = DetailView
		m.fail(err)
		return nil
	}
	if m.board.Submitting(id) {
		m.view = DetailView
		m.fail(fmt.Errorf("%w: record %d", shared.ErrSubmissionInFlight, id))
		return nil
	}

	m.busy = true
	m.succeed(fmt.Sprintf("Deleting #%d...", id))
	return func() tea.Msg {
		return deletedMsg(id, m.api.DeleteBackup(m.ctx, actor, id))
	}
}

func (m *Model) reload() tea.Cmd {
	if m.loading {
		return nil
	}
	if n := m.board.InFlight(); n > 0 {
		m.fail(fmt.Errorf("%w: wait for %d submission(s) before reloading", shared.ErrSubmissionInFlight, n))
		return nil
	}
	m.loading = true
	m.succeed("Reloading...")
	return m.loadRecords()
}

func (m *Model) loadRecords() tea.Cmd {
	return func() tea.Msg {
		records, err := m.api.ListBackups(m.ctx)
		return recordsLoadedMsg(records, err)
	}
}

func (m *Model) send(sub tasks.Submission) tea.Cmd {
	return func() tea.Msg {
		return submittedMsg(sub.Send(m.ctx, m.api))
	}
}

// refresh rebuilds the list items from the board's display copies.
func (m *Model) refresh() tea.Cmd {
	records := m.board.Records()
	items := make([]list.Item, len(records))
	for i, r := range records {
		items[i] = recordItem{record: r, pending: m.board.Pending(r.ID), submitting: m.board.Submitting(r.ID)}
	}
	return m.records.SetItems(items)
}

func (m *Model) succeed(notice string) {
	m.notice = notice
	m.failed = false
}

func (m *Model) fail(err error) {
	m.logger.Error("tui action failed", "error", err)
	m.failNotice(err.Error())
}

func (m *Model) failNotice(notice string) {
	m.notice = notice
	m.failed = true
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if !m.board.Loaded() {
		if err := m.board.LoadErr(); err != nil && !m.loading {
			what := "load backup records"
			if services.IsTransport(err) {
				what = "reach the backend"
			}
			return styles.err.Render(fmt.Sprintf("Could not %s: %v\n\nPress r to retry, q to quit", what, err))
		}
		return styles.title.Render("Loading backup records...")
	}

	switch m.view {
	case BoardView:
		return m.renderBoard()
	case DetailView:
		return m.renderDetail()
	case EditView:
		return m.renderEdit()
	case ConfirmDeleteView:
		return m.renderConfirm()
	default:
		return ""
	}
}

func (m *Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	if m.failed {
		return styles.err.Render(m.notice)
	}
	return styles.ok.Render(m.notice)
}

func (m *Model) renderBoard() string {
	helpKeys := []key.Binding{
		m.keys.enter, m.keys.cam, m.keys.master, m.keys.clean, m.keys.final,
		m.keys.submit, m.keys.submitAll, m.keys.reload, m.keys.quit,
	}
	return fmt.Sprintf("%s\n%s\n\n%s", m.records.View(), m.renderNotice(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderDetail() string {
	rec, err := m.board.Record(m.selected)
	if err != nil {
		return styles.err.Render(fmt.Sprintf("%v\n\nPress esc to go back", err))
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(rec.Name))
	b.WriteString("\n")

	pending := m.board.Pending(rec.ID)
	for i, s := range models.Stages {
		status := rec.Stage(s)
		_, isPending := pending[s]
		label := formatter.StageLabel(status)
		if isPending {
			label += " " + formatter.PendingMark
		}
		b.WriteString(fmt.Sprintf("%d %s %s\n", i+1, styles.label.Render(s.Label()), styles.stateStyle(status.State, isPending).Render(label)))
	}
	b.WriteString("\n")
	b.WriteString(formatter.RecordDetail(rec, pending))
	b.WriteString("\n")

	state := m.board.RecordState(rec.ID).String()
	if m.board.Submitting(rec.ID) {
		state += ", submitting"
	}
	b.WriteString(styles.help.Render(state))
	b.WriteString("\n")

	helpKeys := []key.Binding{
		m.keys.cam, m.keys.master, m.keys.clean, m.keys.final,
		m.keys.submit, m.keys.discard, m.keys.edit, m.keys.remove, m.keys.back,
	}
	return fmt.Sprintf("%s%s\n\n%s", b.String(), m.renderNotice(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderEdit() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Edit #%d", m.selected)))
	b.WriteString("\n")
	for i, in := range m.inputs {
		label := styles.label.Render(fieldLabels[i])
		if i == m.focus {
			label = styles.focus.Width(14).Render(fieldLabels[i])
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, in.View()))
	}

	helpKeys := []key.Binding{m.keys.next, m.keys.save, m.keys.back}
	return fmt.Sprintf("%s\n%s\n\n%s", b.String(), m.renderNotice(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	name := fmt.Sprintf("#%d", m.selected)
	if rec, err := m.board.Synced(m.selected); err == nil {
		name = fmt.Sprintf("#%d %s", rec.ID, rec.Name)
	}
	title := styles.warn.Render(fmt.Sprintf("Delete %s?", name))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.renderNotice(), m.help.ShortHelpView(helpKeys))
}
