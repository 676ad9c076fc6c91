package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Parse a CSV, XLSX or XLS file and report invalid rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(root.configPath)
			if err != nil {
				return err
			}

			sess, err := loadSession(cmd.Context(), args[0], cfg, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			v := sess.Snapshot()
			invalid := printProblems(out, v)
			fmt.Fprintf(out, "%d rows, %d invalid\n", len(v.Rows), invalid)
			if invalid > 0 {
				return ErrInvalidRows
			}
			return nil
		},
	}
}
