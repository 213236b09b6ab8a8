package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"subpilot/internal/batch"
	"subpilot/internal/export"
	"subpilot/internal/logging"
	"subpilot/internal/orchestrator"
	"subpilot/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Submit every new media file that appears in a directory",
		Long: `Watch a directory and submit each new media file once it has stopped
changing. Files are processed one at a time; ready subtitles are written to
the output directory. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			options := applySubmitFlags(cmd, &flags, submissionDefaults(cfg))
			formats := flags.formats
			if len(formats) == 0 {
				formats = cfg.Output.Formats
			}
			exporter := &watchExporter{
				dir:     exportDir(cfg, flags.outputDir),
				formats: formats,
				out:     cmd.OutOrStdout(),
				logger:  logging.NewComponentLogger(ctx.loggerValue(), "watch"),
			}
			rt, err := ctx.newRuntime(newConsolePresenter(cmd.ErrOrStderr(), false), exporter)
			if err != nil {
				return err
			}
			if err := rt.checkOptions(cmd.Context(), options); err != nil {
				return err
			}
			w, err := watch.New(args[0], rt.orch, watch.Options{
				Debounce:   cfg.WatchDebounce(),
				QueueSize:  cfg.Watch.QueueSize,
				Submission: options,
				Logger:     ctx.loggerValue(),
			})
			if err != nil {
				return err
			}
			exporter.idle = w.Idle

			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", w.Dir())
			group, gctx := errgroup.WithContext(cmd.Context())
			group.Go(func() error {
				rt.start(gctx)
				<-gctx.Done()
				return rt.stop()
			})
			group.Go(func() error {
				rt.waitConnected(gctx, channelWait)
				return w.Run(gctx)
			})
			err = group.Wait()
			if errors.Is(err, context.Canceled) || cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&flags.model, "model", "", "Whisper model (tiny, base, small, medium, large)")
	cmd.Flags().StringVar(&flags.language, "language", "", "Language code or auto")
	cmd.Flags().BoolVar(&flags.vad, "vad", true, "Enable voice activity detection")
	cmd.Flags().BoolVar(&flags.enhance, "enhance", false, "Enhance audio before transcription")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for exported subtitles (default: output.dir or current directory)")
	cmd.Flags().StringSliceVar(&flags.formats, "formats", nil, "Formats to export (default: output.formats)")
	return cmd
}

// watchExporter writes each ready result as it arrives and releases the
// watcher when the orchestrator goes idle.
type watchExporter struct {
	orchestrator.NopPresenter

	dir     string
	formats []string
	out     io.Writer
	logger  *slog.Logger
	idle    func()
}

func (e *watchExporter) OnReady(ready orchestrator.Ready) {
	written, err := export.Write(e.dir, export.Stem(ready.File), ready.View, e.formats)
	if err != nil {
		logging.WarnWithContext(e.logger, "export failed", "export_failed",
			logging.SessionID(ready.SessionID),
			logging.File(ready.File),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check output.dir permissions"),
		)
		return
	}
	paths := make([]string, 0, len(written))
	for _, w := range written {
		paths = append(paths, w.Path)
	}
	fmt.Fprintf(e.out, "%s: %s\n", ready.File, strings.Join(paths, ", "))
}

func (e *watchExporter) OnBatchComplete(batch.Stats) {
	if e.idle != nil {
		e.idle()
	}
}
