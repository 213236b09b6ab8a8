package main

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"subpilot/internal/language"
)

func newCapabilitiesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "capabilities",
		Aliases: []string{"caps"},
		Short:   "List the models and languages the service offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			caps, err := client.Capabilities(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, caps)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			device := caps.Device
			if caps.GPUName != "" {
				device = fmt.Sprintf("%s (%s, %s)", caps.Device, caps.GPUName, caps.GPUMemory)
			}
			for _, line := range renderSectionHeader("Service", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Device", statusInfo, device, colorize))
			fmt.Fprintln(out, renderStatusLine("CUDA", statusInfo, yesNo(caps.CUDAAvailable), colorize))
			fmt.Fprintln(out)

			modelRows := make([][]string, 0, len(caps.Models))
			for _, name := range caps.ModelNames() {
				info := caps.Models[name]
				modelRows = append(modelRows, []string{name, info.Size, info.Speed, info.Accuracy, info.VRAM})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Model", "Size", "Speed", "Accuracy", "VRAM"},
				modelRows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
			))

			langRows := make([][]string, 0, len(caps.SupportedLanguages))
			for _, code := range caps.LanguageCodes() {
				langRows = append(langRows, []string{code, lo.CoalesceOrEmpty(caps.SupportedLanguages[code], language.DisplayName(code))})
			}
			fmt.Fprintln(out, renderTable([]string{"Code", "Language"}, langRows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw capability document as JSON")
	return cmd
}
