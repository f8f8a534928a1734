package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chemaudit/chemaudit/internal/client"
)

type ValidateOptions struct {
	GlobalOptions

	Format     string
	Checks     []string
	Kekulize   bool
	moleculeIn string
}

func DefaultValidateOptions() *ValidateOptions {
	return &ValidateOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdValidate() *cobra.Command {
	o := DefaultValidateOptions()
	cmd := &cobra.Command{
		Use:     "validate MOLECULE",
		Short:   "Validate a single structure.",
		Example: "validate 'c1ccccc1O' --checks valence,kekulization\nvalidate - < aspirin.mol --format molblock",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runOptions(cmd, args, o); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *ValidateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.Format, "format", o.Format, "Input format: smiles, inchi or molblock. Detected when empty")
	fs.StringSliceVar(&o.Checks, "checks", o.Checks, "Checks to run, or all")
	fs.BoolVar(&o.Kekulize, "kekulize", o.Kekulize, "Report the canonical form in Kekule notation")
}

// Complete reads the molecule from stdin when the argument is "-".
func (o *ValidateOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.moleculeIn = args[0]
	if o.moleculeIn == "-" {
		data, err := readAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading molecule from stdin: %w", err)
		}
		o.moleculeIn = string(data)
	}
	return nil
}

func (o *ValidateOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if strings.TrimSpace(o.moleculeIn) == "" {
		return fmt.Errorf("molecule is empty")
	}
	return nil
}

func (o *ValidateOptions) Run(ctx context.Context, args []string) error {
	req := client.ValidateRequest{Molecule: o.moleculeIn, Format: o.Format, Checks: o.Checks}
	if o.Kekulize {
		preserve := false
		req.PreserveAromatic = &preserve
	}
	raw, err := o.Client().Validate(ctx, req)
	if err != nil {
		return err
	}
	return o.print(os.Stdout, raw)
}
