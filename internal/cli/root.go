package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// NewRootCmd builds the crpt command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "crpt",
		Short:   "Submit documents to the CRPT registry under a shared rate limit",
		Version: version,
		Long: `crpt submits goods-introduction documents to the CRPT registry API.

Every request passes through one admission gate that allows at most
--capacity calls in any rolling --window, no matter how many documents are
submitted concurrently. Callers over the limit queue in arrival order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "Configuration file (YAML or JSON)")
	flags.BoolP("verbose", "v", false, "Enable verbose output")
	flags.Bool("no-color", false, "Disable colored output")
	flags.String("log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(newSubmitCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// RootCmd is the command run by the crpt binary.
var RootCmd = NewRootCmd()

// Execute runs RootCmd and prints any error to stderr.
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crpt version %s\n", version)
		},
	}
}
