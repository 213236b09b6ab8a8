package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"subpilot/internal/batch"
	"subpilot/internal/config"
	"subpilot/internal/export"
	"subpilot/internal/manifest"
	"subpilot/internal/media"
	"subpilot/internal/orchestrator"
	"subpilot/internal/projector"
	"subpilot/internal/services/subtitler"
)

type submitFlags struct {
	batch        bool
	manifestPath string
	model        string
	language     string
	vad          bool
	enhance      bool
	outputDir    string
	formats      []string
	noExport     bool
	json         bool
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags

	cmd := &cobra.Command{
		Use:   "submit [files...]",
		Short: "Upload media files and wait for their subtitles",
		Long: `Upload one file, or several with --batch, and follow each session until the
service reports subtitles or a failure. Ready results are written to the
output directory as <name>.<format>. Exits non-zero when any file failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, ctx, &flags, args)
		},
	}

	cmd.Flags().BoolVarP(&flags.batch, "batch", "b", false, "Allow several files, submitted one after another")
	cmd.Flags().StringVarP(&flags.manifestPath, "manifest", "m", "", "YAML manifest listing files and options (implies --batch)")
	cmd.Flags().StringVar(&flags.model, "model", "", "Whisper model (tiny, base, small, medium, large)")
	cmd.Flags().StringVar(&flags.language, "language", "", "Language code or auto")
	cmd.Flags().BoolVar(&flags.vad, "vad", true, "Enable voice activity detection")
	cmd.Flags().BoolVar(&flags.enhance, "enhance", false, "Enhance audio before transcription")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for exported subtitles (default: output.dir or current directory)")
	cmd.Flags().StringSliceVar(&flags.formats, "formats", nil, "Formats to export (default: output.formats)")
	cmd.Flags().BoolVar(&flags.noExport, "no-export", false, "Do not write subtitle files")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print a JSON report instead of tables")
	return cmd
}

func runSubmit(cmd *cobra.Command, ctx *commandContext, flags *submitFlags, args []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	paths := append([]string(nil), args...)
	options := submissionDefaults(cfg)
	batchMode := flags.batch || cfg.Submission.Batch
	if flags.manifestPath != "" {
		doc, err := manifest.Load(flags.manifestPath)
		if err != nil {
			return err
		}
		paths = append(paths, doc.Files...)
		options = doc.SubmissionOptions(options)
		batchMode = true
	}
	options = applySubmitFlags(cmd, flags, options)

	candidates, err := media.FromPaths(paths)
	if err != nil {
		if errors.Is(err, media.ErrNoFiles) {
			return fmt.Errorf("no files given: pass file paths or --manifest")
		}
		return err
	}

	collector := newSubmitCollector()
	console := newConsolePresenter(cmd.ErrOrStderr(), false)
	rt, err := ctx.newRuntime(console, collector)
	if err != nil {
		return err
	}
	if err := rt.checkOptions(cmd.Context(), options); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	rt.start(runCtx)
	rt.waitConnected(runCtx, channelWait)

	var stats batch.Stats
	selectErr := rt.orch.Select(runCtx, candidates, batchMode, options)
	if selectErr == nil {
		select {
		case stats = <-collector.done:
		case <-runCtx.Done():
		}
	}
	cancel()
	if err := rt.stop(); err != nil {
		return err
	}
	if selectErr != nil {
		return selectErr
	}
	if err := cmd.Context().Err(); err != nil {
		return err
	}

	report := collector.report(stats)
	if !flags.noExport {
		dir := exportDir(cfg, flags.outputDir)
		formats := flags.formats
		if len(formats) == 0 {
			formats = cfg.Output.Formats
		}
		if err := report.export(dir, formats, collector.ready); err != nil {
			return err
		}
	}

	if flags.json {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else {
		printSubmitReport(cmd.OutOrStdout(), report, collector.ready)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", report.Failed, report.Total)
	}
	return nil
}

func applySubmitFlags(cmd *cobra.Command, flags *submitFlags, options subtitler.SubmissionOptions) subtitler.SubmissionOptions {
	if cmd.Flags().Changed("model") {
		options.Model = flags.model
	}
	if cmd.Flags().Changed("language") {
		options.Language = flags.language
	}
	if cmd.Flags().Changed("vad") {
		options.VAD = flags.vad
	}
	if cmd.Flags().Changed("enhance") {
		options.Enhance = flags.enhance
	}
	return options
}

func exportDir(cfg *config.Config, flagValue string) string {
	if dir := strings.TrimSpace(flagValue); dir != "" {
		return dir
	}
	if cfg != nil && cfg.Output.Dir != "" {
		return cfg.Output.Dir
	}
	return "."
}

// submitCollector records outcomes until the batch completes.
type submitCollector struct {
	orchestrator.NopPresenter

	mu       sync.Mutex
	files    []submitFileReport
	ready    map[string]orchestrator.Ready
	rejected []string
	done     chan batch.Stats
}

func newSubmitCollector() *submitCollector {
	return &submitCollector{
		ready: make(map[string]orchestrator.Ready),
		done:  make(chan batch.Stats, 1),
	}
}

func (c *submitCollector) OnReady(ready orchestrator.Ready) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready[ready.SessionID] = ready
	c.files = append(c.files, submitFileReport{
		File:      ready.File,
		SessionID: ready.SessionID,
		Status:    "ready",
		Language:  ready.Summary.Language,
		Model:     ready.Summary.Model,
		Segments:  ready.Summary.SegmentCount,
		Formats:   ready.Summary.Formats,
	})
}

func (c *submitCollector) OnFailed(failure orchestrator.Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = append(c.files, submitFileReport{
		File:      failure.File,
		SessionID: failure.SessionID,
		Status:    "failed",
		Reason:    failure.Reason,
		Kind:      failure.Kind,
	})
}

func (c *submitCollector) OnValidationRejected(reasons []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejected = append(c.rejected, reasons...)
}

func (c *submitCollector) OnBatchComplete(stats batch.Stats) {
	select {
	case c.done <- stats:
	default:
	}
}

func (c *submitCollector) report(stats batch.Stats) *submitReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	files := make([]submitFileReport, len(c.files))
	copy(files, c.files)
	return &submitReport{
		Total:     stats.Total,
		Succeeded: stats.Succeeded,
		Failed:    stats.Failed,
		Files:     files,
		Rejected:  append([]string(nil), c.rejected...),
	}
}

type submitReport struct {
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Files     []submitFileReport `json:"files"`
	Rejected  []string           `json:"rejected,omitempty"`
}

type submitFileReport struct {
	File      string   `json:"file"`
	SessionID string   `json:"session_id,omitempty"`
	Status    string   `json:"status"`
	Reason    string   `json:"reason,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Language  string   `json:"language,omitempty"`
	Model     string   `json:"model,omitempty"`
	Segments  int      `json:"segments,omitempty"`
	Formats   []string `json:"formats,omitempty"`
	Exported  []string `json:"exported,omitempty"`
}

func (r *submitReport) export(dir string, formats []string, ready map[string]orchestrator.Ready) error {
	for i := range r.Files {
		file := &r.Files[i]
		result, ok := ready[file.SessionID]
		if !ok {
			continue
		}
		written, err := export.Write(dir, export.Stem(result.File), result.View, formats)
		if err != nil {
			return err
		}
		for _, w := range written {
			file.Exported = append(file.Exported, w.Path)
		}
	}
	return nil
}

func printSubmitReport(out io.Writer, report *submitReport, ready map[string]orchestrator.Ready) {
	for _, file := range report.Files {
		result, ok := ready[file.SessionID]
		if !ok {
			continue
		}
		fmt.Fprintln(out, renderSummary(result.Summary,
			projector.Line{Label: "Session", Value: file.SessionID},
			projector.Line{Label: "Exported", Value: exportedText(file.Exported)},
		))
	}
	if report.Total > 1 {
		fmt.Fprintf(out, "%d of %d files succeeded\n", report.Succeeded, report.Total)
	}
}

func exportedText(paths []string) string {
	if len(paths) == 0 {
		return "none"
	}
	return strings.Join(paths, "\n")
}
