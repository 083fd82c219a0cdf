package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

func newDiagCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Inspect the share debug log",
	}
	cmd.AddCommand(newDiagExportCmd(rt), newDiagUploadCmd(rt), newDiagClearCmd(rt))
	return cmd
}

func newDiagExportCmd(rt *runtime) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the debug export, or write it to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text := rt.app.debug.ExportText()
			if output == "" {
				rt.app.printf("%s\n", text)
				return nil
			}
			if err := os.WriteFile(output, []byte(text), 0o600); err != nil {
				return err
			}
			rt.app.printf("Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write")
	return cmd
}

func newDiagUploadCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Send the debug export to support",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.app.uploader == nil {
				return errors.New("support upload is not available")
			}
			ctx, cancel := rt.withTimeout(cmd)
			defer cancel()

			key, err := rt.app.debug.Upload(ctx, rt.app.uploader, rt.app.httpClient)
			if err != nil {
				return err
			}
			rt.app.printf("Uploaded, reference %s\n", key)
			return nil
		},
	}
}

func newDiagClearCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the debug log",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			rt.app.debug.Clear()
			rt.app.printf("Debug log cleared\n")
		},
	}
}
