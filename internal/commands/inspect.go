package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tollcheck/tollcheck/internal/importer"
	"github.com/tollcheck/tollcheck/internal/report"
)

func newInspectCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print every passage of one bill with its gap and flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts, args[0])
		},
	}
}

func runInspect(cmd *cobra.Command, opts *rootOptions, path string) error {
	cfg, _, err := opts.settings(filepath.Dir(path))
	if err != nil {
		return err
	}
	log := opts.logger(cmd, cfg)

	parser, err := newParser(cfg)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	ds, err := loadDataset(parser, importer.FileInfo{Name: name, Path: path})
	if err != nil {
		return err
	}
	if ds.NeedsManualReview {
		log.Warn().Str("file", path).Msg("first passage is before 01:00, inspect manually")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "File: %s\n", path)
	return report.WriteInspection(cmd.OutOrStdout(), ds)
}
