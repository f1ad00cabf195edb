package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tollcheck/tollcheck/internal/export"
	"github.com/tollcheck/tollcheck/internal/importer"
)

func newCollectCommand(opts *rootOptions) *cobra.Command {
	var workbook string

	cmd := &cobra.Command{
		Use:   "collect <folder>",
		Short: "Gather every bill in a folder into one workbook without classifying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, opts, args[0], workbook)
		},
	}

	cmd.Flags().StringVar(&workbook, "workbook", "", "workbook path (default: <folder>.xlsx)")

	return cmd
}

func runCollect(cmd *cobra.Command, opts *rootOptions, folder, workbookPath string) error {
	cfg, _, err := opts.settings(folder)
	if err != nil {
		return err
	}
	log := opts.logger(cmd, cfg)

	parser, err := newParser(cfg)
	if err != nil {
		return err
	}
	files, err := importer.Scan(folder, cfg.Input.Pattern)
	if err != nil {
		return err
	}

	if workbookPath == "" {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		workbookPath = abs + cfg.Output.WorkbookSuffix
	}

	wb := export.NewWorkbook()
	defer wb.Close()

	var failures []error
	for _, fi := range files {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		recs, err := importer.ParseFile(parser, fi.Path)
		if err != nil {
			log.Error().Err(err).Str("file", fi.Path).Msg("skipping file")
			failures = append(failures, err)
			continue
		}
		if len(recs) == 0 {
			log.Warn().Str("file", fi.Path).Msg("no passages, skipping file")
			continue
		}
		sheet, err := wb.AddRecords(fi.Stem(), recs)
		if err != nil {
			return fmt.Errorf("adding %s to workbook: %w", fi.Name, err)
		}
		log.Info().Str("file", fi.Path).Str("sheet", sheet).Int("records", len(recs)).Msg("collected")
	}

	if len(wb.Sheets()) == 0 {
		log.Warn().Str("folder", folder).Msg("nothing collected")
		return errors.Join(failures...)
	}
	if err := wb.SaveAs(workbookPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Collected %d file(s) into %s\n", len(wb.Sheets()), workbookPath)

	return errors.Join(failures...)
}
