package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/condoreg/internal/core"
)

// errImportFailed makes the process exit non-zero once the report has
// been printed.
var errImportFailed = errors.New("import did not complete cleanly")

type importFlags struct {
	registry       string
	updateExisting bool
	json           bool
}

func (f *importFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.registry, "registry", "r", "", "registry (condominium) ID")
	cmd.Flags().BoolVar(&f.updateExisting, "update-existing", false, "update units whose code already exists instead of rejecting them")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the report as JSON")
}

func newValidateCmd(a *app) *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a registry file without writing anything",
		Long: `Reads and validates every row of FILE and prints all problems found.
When a database is configured and --registry is given, codes are also
checked against the existing registry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			svc, closeFn, err := a.open(ctx, a.cfg, false)
			if err != nil {
				return err
			}
			defer closeFn()

			return runFile(cmd, args[0], flags, func(f *os.File) (*core.Report, error) {
				return svc.Validate(ctx, flags.registry, filepath.Base(f.Name()), f, core.Options{UpdateExisting: flags.updateExisting})
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Validate and commit a registry file",
		Long: `Validates FILE and, if no row has a blocking problem, writes every unit
to the registry in file order. A file with any problem is rejected whole.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.registry == "" {
				return errors.New("--registry is required")
			}

			// Interrupt stops the commit at the next row; rows already
			// written stay written.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			svc, closeFn, err := a.open(ctx, a.cfg, true)
			if err != nil {
				return err
			}
			defer closeFn()

			return runFile(cmd, args[0], flags, func(f *os.File) (*core.Report, error) {
				return svc.Import(ctx, flags.registry, filepath.Base(f.Name()), f,
					core.Options{UpdateExisting: flags.updateExisting},
					progressPrinter(cmd))
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// runFile opens path, runs fn on it and prints the resulting report.
func runFile(cmd *cobra.Command, path string, flags importFlags, fn func(*os.File) (*core.Report, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	report, err := fn(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if flags.json {
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		printReport(cmd.OutOrStdout(), report)
	}

	switch report.Status {
	case core.StatusValidated, core.StatusCommitted:
		return nil
	default:
		return errImportFailed
	}
}

// progressPrinter reports phase changes and commit batches on stderr.
func progressPrinter(cmd *cobra.Command) func(core.ImportProgress) {
	var last core.ImportPhase
	return func(p core.ImportProgress) {
		if p.Phase != last {
			cmd.PrintErrf("%s...\n", p.Phase)
			last = p.Phase
		}
		if p.Phase == core.PhaseCommitting && p.Processed > 0 {
			cmd.PrintErrf("  %d/%d rows (%d%%)\n", p.Processed, p.Total, p.Percent())
		}
	}
}
