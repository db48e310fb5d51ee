package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"payengine/internal/domain/money"
	"payengine/internal/domain/payroll"
	"payengine/internal/domain/payroll/document"
	"payengine/internal/store/sqlite"
)

// ComputeOptions holds flags for the compute and audit commands.
type ComputeOptions struct {
	*RootOptions
	Trace     string
	YtdDB     string
	StrictYtd bool
	Now       func() time.Time
}

func NewComputeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := newComputeOptions(rootOpts)

	cmd := &cobra.Command{
		Use:   "compute <scenario.yaml>",
		Short: "Compute a paycheck from a scenario file",
		Long: `Compute one paycheck and print it.

With --ytd-db the employee's prior year-to-date totals are read from a
local SQLite file when the scenario carries none, and the new totals are
written back after computing.

Examples:
  paycalc compute scenarios/hourly.yaml
  paycalc compute scenarios/hourly.yaml --trace debug --format json
  paycalc compute scenarios/hourly.yaml --ytd-db ./ytd.db --format csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := runCompute(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			return writeComputation(cmd.OutOrStdout(), opts.Format, comp)
		},
	}
	addComputeFlags(cmd, opts)
	return cmd
}

func newComputeOptions(rootOpts *RootOptions) *ComputeOptions {
	return &ComputeOptions{
		RootOptions: rootOpts,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

func addComputeFlags(cmd *cobra.Command, opts *ComputeOptions) {
	cmd.Flags().StringVar(&opts.Trace, "trace", "", "trace level (none|audit|debug)")
	cmd.Flags().StringVar(&opts.YtdDB, "ytd-db", opts.Config.YtdDBPath, "SQLite file holding YTD snapshots")
	cmd.Flags().BoolVar(&opts.StrictYtd, "strict-ytd", opts.Config.StrictYtdYear, "fail when prior YTD belongs to another year")
}

func runCompute(ctx context.Context, opts *ComputeOptions, path string) (payroll.PaycheckComputation, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	scenario, err := document.LoadFile(path)
	if err != nil {
		return payroll.PaycheckComputation{}, WrapExitError(ExitUsage, "failed to load scenario", err)
	}
	req, err := scenario.Request()
	if err != nil {
		return payroll.PaycheckComputation{}, WrapExitError(ExitUsage, "invalid scenario", err)
	}

	level, err := traceLevel(opts, req.TraceLevel)
	if err != nil {
		return payroll.PaycheckComputation{}, err
	}
	in := req.Input
	if in.PaycheckID == "" {
		in.PaycheckID = payroll.PaycheckID(uuid.NewString())
	}

	var store *sqlite.Store
	if opts.YtdDB != "" {
		store, err = sqlite.Open(opts.YtdDB)
		if err != nil {
			return payroll.PaycheckComputation{}, WrapExitError(ExitUsage, "failed to open ytd database", err)
		}
		defer store.Close()
		if priorYtdMissing(in.PriorYtd) {
			in.PriorYtd, err = store.Load(ctx, in.EmployerID, in.EmployeeID, in.Period.CheckDate.Year())
			if err != nil {
				return payroll.PaycheckComputation{}, WrapExitError(ExitUsage, "failed to load ytd", err)
			}
			opts.logf("loaded prior ytd for %s/%s %d", in.EmployerID, in.EmployeeID, in.PriorYtd.Year)
		}
	}

	earnings := payroll.StaticEarningConfig{}
	for _, def := range req.EarningDefinitions {
		earnings[def.Code] = def
	}
	comp, err := payroll.ComputePaycheck(in, payroll.Options{
		ComputedAt:            opts.Now(),
		TraceLevel:            level,
		EarningConfig:         earnings,
		DeductionConfig:       payroll.StaticDeductionConfig(req.DeductionPlans),
		EmployerContributions: req.EmployerContributions,
		StrictYtdYear:         opts.StrictYtd,
		SupportCap:            req.SupportCap,
	})
	if err != nil {
		return payroll.PaycheckComputation{}, WrapExitError(ExitComputation, "computation failed", err)
	}

	if store != nil {
		if err := store.Save(ctx, in.EmployerID, in.EmployeeID, comp.Paycheck.YtdAfter); err != nil {
			return payroll.PaycheckComputation{}, WrapExitError(ExitUsage, "failed to save ytd", err)
		}
		opts.logf("saved ytd for %s/%s %d", in.EmployerID, in.EmployeeID, comp.Paycheck.YtdAfter.Year)
	}
	return comp, nil
}

func traceLevel(opts *ComputeOptions, fromScenario payroll.TraceLevel) (payroll.TraceLevel, error) {
	raw := opts.Trace
	if raw == "" {
		raw = string(fromScenario)
	}
	if raw == "" {
		raw = opts.Config.DefaultTraceLevel
	}
	level := payroll.TraceLevel(strings.ToUpper(raw))
	switch level {
	case "", payroll.TraceNone, payroll.TraceAudit, payroll.TraceDebug:
		return level, nil
	}
	return "", NewExitError(ExitUsage, fmt.Sprintf("invalid trace level %q: must be none, audit or debug", raw))
}

func priorYtdMissing(y payroll.YtdSnapshot) bool {
	return y.Year == 0 && len(y.EarningsByCode) == 0 && len(y.WagesByBasis) == 0 &&
		len(y.DeductionsByCode) == 0 && len(y.EmployeeTaxesByRule) == 0
}

func (o *ComputeOptions) logf(format string, args ...any) {
	if o.Verbose {
		slog.Debug(fmt.Sprintf(format, args...))
	}
}

func writeComputation(w io.Writer, format string, comp payroll.PaycheckComputation) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(comp)
	case "csv":
		return payroll.WriteLinesCSV(w, comp.Paycheck)
	default:
		return writeText(w, comp.Paycheck)
	}
}

func writeText(w io.Writer, p payroll.PaycheckResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Paycheck %s\temployee %s\tcheck %s\t\n", p.PaycheckID, p.EmployeeID, p.Period.CheckDate.Format("2006-01-02"))
	fmt.Fprintln(tw, "\t\t\t")
	for _, row := range payroll.Lines(p) {
		if row.Section == payroll.SectionTotal {
			continue
		}
		amount, err := money.Parse(row.Amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", sectionLabel(row.Section), row.Description, amount.Format())
	}
	fmt.Fprintln(tw, "\t\t\t")
	fmt.Fprintf(tw, "\tGross\t%s\t\n", p.Gross.Format())
	fmt.Fprintf(tw, "\tNet\t%s\t\n", p.Net.Format())
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, step := range p.Trace.Steps {
		if note, ok := step.(payroll.Note); ok {
			fmt.Fprintf(w, "note: %s\n", note.Message)
		}
	}
	return nil
}

func sectionLabel(section string) string {
	switch section {
	case payroll.SectionEarning:
		return "earning"
	case payroll.SectionEmployeeTax:
		return "tax"
	case payroll.SectionEmployerTax:
		return "employer tax"
	case payroll.SectionDeduction:
		return "deduction"
	case payroll.SectionGarnishment:
		return "garnishment"
	case payroll.SectionEmployerContribution:
		return "employer"
	default:
		return section
	}
}
