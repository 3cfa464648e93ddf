package main

import (
	"context"
	"fmt"

	"github.com/isaac-jh/ym-library/internal/formatter"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/urfave/cli/v3"
)

// CatalogList prints the archive catalog.
func (r *Runner) CatalogList(ctx context.Context, cmd *cli.Command) error {
	w, err := r.openState(false)
	if err != nil {
		return err
	}
	defer w.Close()

	items, err := w.client.ListCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to list catalog: %w", err)
	}

	if cmd.Bool("json") {
		out := make([]services.CatalogItem, len(items))
		for i, it := range items {
			out[i] = services.ItemFromActivity(it)
		}
		return r.writeJSON(out, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", formatter.CatalogTable(items))
}
