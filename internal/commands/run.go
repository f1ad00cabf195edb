package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tollcheck/tollcheck/internal/export"
	"github.com/tollcheck/tollcheck/internal/importer"
	"github.com/tollcheck/tollcheck/internal/logging"
	"github.com/tollcheck/tollcheck/internal/metrics"
	"github.com/tollcheck/tollcheck/internal/model"
	"github.com/tollcheck/tollcheck/internal/reconcile"
	"github.com/tollcheck/tollcheck/internal/report"
	"github.com/tollcheck/tollcheck/internal/runlog"
)

type runFlags struct {
	workbook    string
	csvDir      string
	metricsFile string
	runLog      string
	progress    bool
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <folder>",
		Short: "Reconcile every bill in a folder and write the workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("progress") {
				flags.progress = logging.IsTerminal(cmd.ErrOrStderr())
			}
			return runReconcile(cmd, opts, args[0], flags)
		},
	}

	cmd.Flags().StringP("output", "o", "", "report format (text, json, yaml)")
	_ = opts.v.BindPFlag("output.format", cmd.Flags().Lookup("output"))
	cmd.Flags().StringVar(&flags.workbook, "workbook", "", "workbook path (default: <folder>.xlsx)")
	cmd.Flags().StringVar(&flags.csvDir, "csv-dir", "", "also write a classified CSV per file to this directory")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "write run metrics in the Prometheus text format")
	cmd.Flags().StringVar(&flags.runLog, "run-log", "", "append one row per file to this CSV audit log")
	cmd.Flags().BoolVar(&flags.progress, "progress", false, "show a progress bar (default: on when stderr is a terminal)")

	return cmd
}

func runReconcile(cmd *cobra.Command, opts *rootOptions, folder string, flags runFlags) error {
	cfg, cfgPath, err := opts.settings(folder)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	log := opts.logger(cmd, cfg).With().Str("run_id", runID).Logger()
	if cfgPath != "" {
		log.Debug().Str("config", cfgPath).Msg("loaded config")
	}

	parser, err := newParser(cfg)
	if err != nil {
		return err
	}
	formatter, err := report.NewFormatter(cfg.Output.Format, opts.noColor())
	if err != nil {
		return err
	}

	files, err := importer.Scan(folder, cfg.Input.Pattern)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Warn().Str("folder", folder).Str("pattern", cfg.Input.Pattern).Msg("no matching files")
		return nil
	}

	workbookPath := flags.workbook
	if workbookPath == "" {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		workbookPath = abs + cfg.Output.WorkbookSuffix
	}

	wb := export.NewWorkbook()
	defer wb.Close()
	run := metrics.NewRun()
	bar := newProgressBar(cmd.ErrOrStderr(), len(files), flags.progress)

	var failures []error
	var audit []runlog.Entry
	for _, fi := range files {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		start := time.Now()
		ds, err := loadDataset(parser, fi)
		if err != nil {
			run.FileFailed(time.Since(start))
			log.Error().Err(err).Str("file", fi.Path).Msg("skipping file")
			failures = append(failures, err)
			audit = append(audit, runlog.Entry{
				Timestamp: start,
				RunID:     runID,
				File:      fi.Path,
				Status:    metrics.StatusFailed,
				Error:     err.Error(),
			})
			_ = bar.Add(1)
			continue
		}
		run.ObserveDataset(ds, time.Since(start))

		r := report.Summarize(ds)
		logDataset(log, fi, r)
		audit = append(audit, runlog.Entry{
			Timestamp:         start,
			RunID:             runID,
			File:              fi.Path,
			Status:            metrics.StatusOK,
			Records:           r.Records,
			FreePasses:        len(r.FreePasses),
			Overcharges:       len(r.Overcharges),
			NeedsManualReview: r.NeedsManualReview,
		})
		if err := formatter.Format(cmd.OutOrStdout(), r); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		if _, err := wb.AddDataset(ds); err != nil {
			return fmt.Errorf("adding %s to workbook: %w", fi.Name, err)
		}
		if flags.csvDir != "" {
			path, err := export.WriteDatasetFile(flags.csvDir, ds)
			if err != nil {
				return err
			}
			log.Debug().Str("path", path).Msg("wrote csv")
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if len(wb.Sheets()) > 0 {
		if err := wb.SaveAs(workbookPath); err != nil {
			return err
		}
		log.Info().Str("path", workbookPath).Int("sheets", len(wb.Sheets())).Msg("wrote workbook")
	}

	if flags.runLog != "" {
		if err := runlog.Append(flags.runLog, audit); err != nil {
			return err
		}
	}

	if flags.metricsFile != "" {
		if err := run.WriteTextfile(flags.metricsFile); err != nil {
			return err
		}
	}

	return errors.Join(failures...)
}

// loadDataset parses one export and reconciles it.
func loadDataset(parser importer.Parser, fi importer.FileInfo) (*model.Dataset, error) {
	recs, err := importer.ParseFile(parser, fi.Path)
	if err != nil {
		return nil, err
	}
	return reconcile.Reconcile(fi.Path, recs)
}

func logDataset(log zerolog.Logger, fi importer.FileInfo, r report.Report) {
	event := log.Info()
	if r.NeedsManualReview || len(r.Overcharges) > 0 {
		event = log.Warn()
	}
	event.
		Str("file", fi.Path).
		Int("records", r.Records).
		Int("free_passes", len(r.FreePasses)).
		Int("overcharges", len(r.Overcharges)).
		Bool("needs_manual_review", r.NeedsManualReview).
		Msg("reconciled")
}

func newProgressBar(w io.Writer, n int, enabled bool) *progressbar.ProgressBar {
	if !enabled || n == 0 {
		return progressbar.DefaultSilent(int64(n))
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Reconciling bills"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
