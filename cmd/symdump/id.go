package main

import (
	"context"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/olekukonko/tablewriter"

	"github.com/grafana/symdump/pkg/symdump"
)

// printIdentifiers renders one row per binary. Binaries that cannot be
// identified are listed with their error and reported once all rows are
// written.
func printIdentifiers(ctx context.Context, out io.Writer, d *symdump.Dumper, paths []string) error {
	var errs *multierror.Error
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Binary", "Identifier", "Module ID", "Source"})
	table.SetAutoWrapText(false)
	for _, path := range paths {
		id, source, err := d.Identify(ctx, path)
		if err != nil {
			errs = multierror.Append(errs, err)
			table.Append([]string{path, "-", "-", err.Error()})
			continue
		}
		table.Append([]string{path, id.String(), id.ModuleID(), string(source)})
	}
	table.Render()
	return errs.ErrorOrNil()
}
