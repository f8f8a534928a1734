package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"

	"github.com/chemaudit/chemaudit/pkg/version"
)

type VersionOptions struct {
	Output string
}

func DefaultVersionOptions() *VersionOptions {
	return &VersionOptions{
		Output: "",
	}
}

func NewCmdVersion() *cobra.Command {
	o := DefaultVersionOptions()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print chemaudit version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.Output != "" && !funk.ContainsString(legalOutputTypes, o.Output) {
				return fmt.Errorf("output format must be one of %v", legalOutputTypes)
			}
			return o.Run(cmd.Context(), args)
		},
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *VersionOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format. One of: (json, yaml).")
}

func (o *VersionOptions) Run(ctx context.Context, args []string) error {
	versionInfo := version.Get()
	if o.Output == "" {
		fmt.Printf("chemaudit version: %s\n", versionInfo.String())
		return nil
	}
	g := GlobalOptions{Output: o.Output}
	return g.printValue(os.Stdout, versionInfo)
}
