package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type GetOptions struct {
	GlobalOptions

	Page     int
	PageSize int
}

func DefaultGetOptions() *GetOptions {
	return &GetOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdGet() *cobra.Command {
	o := DefaultGetOptions()
	cmd := &cobra.Command{
		Use:     "get (batch/ID | results/ID | stats/ID | checks | health)",
		Short:   "Display a resource.",
		Example: "get results/0b9f... --page 2 --page-size 100",
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

func (o *GetOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.IntVar(&o.Page, "page", o.Page, "Results page, starting at 1")
	fs.IntVar(&o.PageSize, "page-size", o.PageSize, "Results per page")
}

func (o *GetOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	_, _, err := parseAndValidateKindId(args[0])
	return err
}

func (o *GetOptions) Run(ctx context.Context, args []string) error {
	c := o.Client()
	kind, id, err := parseAndValidateKindId(args[0])
	if err != nil {
		return err
	}

	var raw json.RawMessage
	switch kind {
	case BatchKind:
		job, err := c.GetBatch(ctx, id)
		if err != nil {
			return err
		}
		return o.printValue(os.Stdout, job)
	case ResultsKind:
		raw, err = c.Results(ctx, id, o.Page, o.PageSize)
	case StatsKind:
		raw, err = c.Stats(ctx, id)
	case ChecksKind:
		raw, err = c.Checks(ctx)
	case HealthKind:
		raw, err = c.Health(ctx)
	}
	if err != nil {
		return err
	}
	return o.print(os.Stdout, raw)
}
