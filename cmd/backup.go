package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/isaac-jh/ym-library/internal/formatter"
	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
	"github.com/isaac-jh/ym-library/internal/tasks"
	"github.com/isaac-jh/ym-library/internal/tracker"
	"github.com/urfave/cli/v3"
)

// recordArg parses the record id given as the first positional argument.
func recordArg(cmd *cli.Command) (models.RecordID, error) {
	arg := cmd.Args().First()
	if arg == "" {
		return 0, fmt.Errorf("%w: record id", shared.ErrMissingArgument)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: record id %q", shared.ErrInvalidArgument, arg)
	}
	return models.RecordID(id), nil
}

// parseFilter builds a [tasks.Filter] from the filter flags.
func parseFilter(cmd *cli.Command) (tasks.Filter, error) {
	f := tasks.Filter{
		EventName:   cmd.String("event"),
		Name:        cmd.String("name"),
		PendingOnly: cmd.Bool("pending"),
	}

	for _, spec := range cmd.StringSlice("stage") {
		name, value, ok := strings.Cut(spec, "=")
		if !ok {
			return f, fmt.Errorf("%w: stage filter %q must be stage=state", shared.ErrInvalidArgument, spec)
		}
		stage, err := models.ParseStage(name)
		if err != nil {
			return f, err
		}
		state, err := models.ParseStageState(value)
		if err != nil {
			return f, err
		}
		if f.States == nil {
			f.States = make(map[models.Stage]models.StageState)
		}
		f.States[stage] = state
	}
	return f, nil
}

func pendingByRecord(board *tasks.Board) map[models.RecordID]tracker.ChangeSet {
	pending := make(map[models.RecordID]tracker.ChangeSet)
	for _, id := range board.PendingRecords() {
		pending[id] = board.Pending(id)
	}
	return pending
}

func describeChanges(changes tracker.ChangeSet) string {
	stages := slices.Collect(maps.Keys(changes))
	slices.SortFunc(stages, func(a, b models.Stage) int {
		return slices.Index(models.Stages, a) - slices.Index(models.Stages, b)
	})

	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		parts = append(parts, fmt.Sprintf("%s → %s", s.Label(), formatter.StageLabel(models.StageStatus{State: changes[s]})))
	}
	return strings.Join(parts, ", ")
}

func wireItems(records []models.BackupRecord) []services.BackupStatusItem {
	items := make([]services.BackupStatusItem, len(records))
	for i, rec := range records {
		items[i] = services.ItemFromRecord(rec)
	}
	return items
}

// BackupList prints records with pending proposals applied, filtered by the filter flags.
func (r *Runner) BackupList(ctx context.Context, cmd *cli.Command) error {
	filter, err := parseFilter(cmd)
	if err != nil {
		return err
	}

	refresh := cmd.Bool("refresh")
	w, err := r.openBoard(ctx, refresh, refresh)
	if err != nil {
		return err
	}
	defer w.Close()

	records := w.board.Filtered(filter)
	r.logger.Debug("listing records", "shown", len(records), "total", len(w.board.Records()))

	if cmd.Bool("json") {
		return r.writeJSON(wireItems(records), cmd.Bool("pretty"))
	}

	pending := pendingByRecord(w.board)
	if err := r.writeTable(formatter.RecordsTable(records, pending), formatter.RecordsPlain(records, pending), cmd.Bool("plain")); err != nil {
		return err
	}
	if len(pending) > 0 && r.tty {
		r.writePlain("%s marks unsubmitted changes, see 'ymlib backup pending'\n", formatter.PendingMark)
	}
	return nil
}

// BackupShow prints one record.
func (r *Runner) BackupShow(ctx context.Context, cmd *cli.Command) error {
	id, err := recordArg(cmd)
	if err != nil {
		return err
	}

	w, err := r.openBoard(ctx, false, false)
	if err != nil {
		return err
	}
	defer w.Close()

	rec, err := w.board.Record(id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(services.ItemFromRecord(rec), cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", formatter.RecordDetail(rec, w.board.Pending(id)))
	if state := w.board.RecordState(id); state != tasks.Viewing {
		r.writePlain("State: %s\n", state)
	}
	return nil
}

// BackupToggle flips stages of one record in the pending changes. Nothing is sent until submit.
func (r *Runner) BackupToggle(ctx context.Context, cmd *cli.Command) error {
	id, err := recordArg(cmd)
	if err != nil {
		return err
	}

	names := cmd.Args().Tail()
	if len(names) == 0 {
		return fmt.Errorf("%w: at least one stage", shared.ErrMissingArgument)
	}
	stages := make([]models.Stage, 0, len(names))
	for _, name := range names {
		stage, err := models.ParseStage(name)
		if err != nil {
			return err
		}
		stages = append(stages, stage)
	}

	w, err := r.openBoard(ctx, true, false)
	if err != nil {
		return err
	}
	defer w.Close()

	synced, err := w.board.Synced(id)
	if err != nil {
		return err
	}
	for _, stage := range stages {
		if !synced.Stage(stage).State.Editable() {
			return fmt.Errorf("%w: %s is not tracked for record %d", shared.ErrValidation, stage, id)
		}
	}

	var changes tracker.ChangeSet
	for _, stage := range stages {
		if changes, err = w.board.Toggle(id, stage); err != nil {
			return err
		}
	}

	if len(changes) == 0 {
		return r.writePlain("#%d: no pending changes\n", id)
	}
	return r.writePlain("#%d pending: %s\n", id, describeChanges(changes))
}

// BackupPending lists the unsubmitted changes of every record.
func (r *Runner) BackupPending(ctx context.Context, cmd *cli.Command) error {
	w, err := r.openBoard(ctx, false, false)
	if err != nil {
		return err
	}
	defer w.Close()

	ids := w.board.PendingRecords()
	if len(ids) == 0 {
		return r.writePlain("No pending changes\n")
	}

	for _, id := range ids {
		name := ""
		if rec, err := w.board.Synced(id); err == nil {
			name = rec.Name
		}
		r.writePlain("#%d %s: %s\n", id, name, describeChanges(w.board.Pending(id)))
	}
	return nil
}

// BackupSubmit sends pending changes to the server on behalf of the logged-in user.
func (r *Runner) BackupSubmit(ctx context.Context, cmd *cli.Command) error {
	w, err := r.openBoard(ctx, true, false)
	if err != nil {
		return err
	}
	defer w.Close()

	if !cmd.Bool("all") {
		id, err := recordArg(cmd)
		if err != nil {
			return err
		}
		rec, err := w.board.Submit(ctx, w.session, id)
		if err != nil {
			var se *tasks.SubmitError
			if errors.As(err, &se) {
				r.writePlain("✗ %s\n", se.Notice())
			}
			return err
		}
		return r.writePlain("✓ Submitted #%d (version %d)\n", rec.ID, rec.Version)
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	result, err := w.board.SubmitAll(ctx, progress, w.session, tasks.BulkSubmitOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})
	close(progress)
	wg.Wait()
	if err != nil {
		return err
	}

	r.writePlain("Submitted: %d  Failed: %d  Skipped: %d  Total: %d\n",
		result.Submitted, result.Failed, result.Skipped, result.Total)
	for _, res := range result.Results {
		var se *tasks.SubmitError
		if errors.As(res.Err, &se) {
			r.writePlain("  ✗ #%d %s\n", se.ID, se.Notice())
		}
	}
	return result.Err()
}

// BackupDiscard drops pending changes.
func (r *Runner) BackupDiscard(ctx context.Context, cmd *cli.Command) error {
	w, err := r.openBoard(ctx, true, false)
	if err != nil {
		return err
	}
	defer w.Close()

	ids := w.board.PendingRecords()
	if !cmd.Bool("all") {
		id, err := recordArg(cmd)
		if err != nil {
			return err
		}
		ids = []models.RecordID{id}
	}

	for _, id := range ids {
		if err := w.board.Discard(id); err != nil {
			return err
		}
	}
	return r.writePlain("✓ Discarded pending changes for %d record(s)\n", len(ids))
}

// applyDraftFlags copies the draft flags that were set onto d.
func applyDraftFlags(cmd *cli.Command, d *models.BackupDraft) error {
	if cmd.IsSet("name") {
		d.Name = cmd.String("name")
	}
	if cmd.IsSet("event") {
		d.EventName = cmd.String("event")
	}
	if cmd.IsSet("description") {
		d.Description = cmd.String("description")
	}
	if cmd.IsSet("date") {
		date, err := models.ParseDate(cmd.String("date"))
		if err != nil {
			return err
		}
		d.DisplayedDate = date
	}
	if cmd.IsSet("producer") {
		ids := cmd.IntSlice("producer")
		d.ProducerIDs = make([]models.UserID, 0, len(ids))
		for _, id := range ids {
			d.ProducerIDs = append(d.ProducerIDs, models.UserID(id))
		}
	}
	return nil
}

// BackupCreate creates a record. Every stage is tracked unless skipped.
func (r *Runner) BackupCreate(ctx context.Context, cmd *cli.Command) error {
	draft := models.NewBackupDraft("")
	if err := applyDraftFlags(cmd, &draft); err != nil {
		return err
	}
	for _, name := range cmd.StringSlice("skip") {
		stage, err := models.ParseStage(name)
		if err != nil {
			return err
		}
		draft.Track[stage] = false
	}

	w, err := r.openBoard(ctx, true, false)
	if err != nil {
		return err
	}
	defer w.Close()

	rec, err := w.board.Create(ctx, w.session, draft)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Created #%d %s\n", rec.ID, rec.Name)
}

// BackupUpdate changes the fields of a record. Stage states are never touched.
func (r *Runner) BackupUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := recordArg(cmd)
	if err != nil {
		return err
	}

	w, err := r.openBoard(ctx, true, false)
	if err != nil {
		return err
	}
	defer w.Close()

	draft, err := w.board.BeginEdit(id)
	if err != nil {
		return err
	}
	defer w.board.CancelEdit()

	if err := applyDraftFlags(cmd, &draft); err != nil {
		return err
	}

	rec, err := w.board.CommitEdit(ctx, w.session, draft)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Updated #%d %s (version %d)\n", rec.ID, rec.Name, rec.Version)
}

// BackupDelete deletes a record.
func (r *Runner) BackupDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := recordArg(cmd)
	if err != nil {
		return err
	}

	w, err := r.openBoard(ctx, true, false)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.board.Delete(ctx, w.session, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted #%d\n", id)
}

// BackupReload replaces the cached records with the server's, dropping pending changes.
func (r *Runner) BackupReload(ctx context.Context, cmd *cli.Command) error {
	w, err := r.openBoard(ctx, true, true)
	if err != nil {
		return err
	}
	defer w.Close()

	return r.writePlain("✓ Loaded %d records\n", len(w.board.Records()))
}

// BackupExport writes the filtered records to a file grouped by date.
func (r *Runner) BackupExport(ctx context.Context, cmd *cli.Command) error {
	filter, err := parseFilter(cmd)
	if err != nil {
		return err
	}

	w, err := r.openBoard(ctx, false, false)
	if err != nil {
		return err
	}
	defer w.Close()

	records := w.board.Filtered(filter)
	path, err := formatter.WriteExport(records, cmd.String("format"), cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("exported records", "count", len(records), "path", path)
	return r.writePlain("✓ Exported %d records to %s\n", len(records), path)
}
