package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"payengine/internal/domain/payroll"
)

func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the engine version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"engineVersion": payroll.EngineVersion})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "paycalc engine %s\n", payroll.EngineVersion)
			return err
		},
	}
}
