package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/crpt/internal/registry"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check documents against the registry schema without sending them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(cmd)
			out := cmd.OutOrStdout()

			invalid := 0
			for _, path := range args {
				doc, err := registry.LoadDocument(path)
				if err == nil {
					err = registry.Validate(doc)
				}
				if err != nil {
					invalid++
				}
				fmt.Fprint(out, formatter.FormatValidation(path, err))
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d documents are invalid", invalid, len(args))
			}
			return nil
		},
	}
}
