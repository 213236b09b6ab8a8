package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"subpilot/internal/fileutil"
	"subpilot/internal/projector"
	"subpilot/internal/session"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "session <session-id>",
		Short: "Show the stored result of a finished session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			payload, err := client.Session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, payload)
			}
			if payload.SessionID == "" {
				payload.SessionID = args[0]
			}
			result := session.ResultFromPayload(&payload)
			view := projector.New(session.Snapshot{
				SessionID: payload.SessionID,
				Phase:     session.PhaseReady,
				Percent:   100,
				Result:    &result,
			})
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(view.Summary(),
				projector.Line{Label: "Session", Value: payload.SessionID},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored result as JSON")
	return cmd
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "download <format> <session-id>",
		Short: "Download one subtitle format of a finished session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			dl, err := client.Download(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			dir := exportDir(ctx.configValue(), outputDir)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			name := fileutil.SanitizeFileName(dl.Filename)
			if name == "" {
				name = "subtitles." + strings.ToLower(args[0])
			}
			target := filepath.Join(dir, name)
			if err := fileutil.WriteFileAtomic(target, dl.Content, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory to save into (default: output.dir or current directory)")
	return cmd
}
