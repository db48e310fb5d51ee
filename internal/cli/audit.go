package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := newComputeOptions(rootOpts)

	cmd := &cobra.Command{
		Use:   "audit <scenario.yaml>",
		Short: "Print the audit record for a scenario",
		Long: `Compute a scenario and print only its audit record as JSON.

The audit carries the engine version, the input hash and the trace, so two
runs over the same scenario can be compared.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := runCompute(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(comp.Audit)
		},
	}
	addComputeFlags(cmd, opts)
	return cmd
}
