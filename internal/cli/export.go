package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"

	"github.com/chemaudit/chemaudit/internal/client"
)

var legalExportFormats = []string{"csv", "excel", "xlsx", "sdf", "json", "pdf"}

type ExportOptions struct {
	GlobalOptions

	format   string
	scoreMin int
	scoreMax int
	indices  []int
	outDir   string
	outFile  string
}

func DefaultExportOptions() *ExportOptions {
	return &ExportOptions{
		GlobalOptions: DefaultGlobalOptions(),
		format:        "csv",
		scoreMin:      -1,
		scoreMax:      -1,
		outDir:        ".",
	}
}

func NewCmdExport() *cobra.Command {
	o := DefaultExportOptions()
	cmd := &cobra.Command{
		Use:          "export batch/ID",
		Short:        "Download the results of a batch job.",
		Example:      "export batch/0b9f... --format pdf --score-min 50",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runOptions(cmd, args, o); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *ExportOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.format, "format", o.format, fmt.Sprintf("Export format. One of: (%s).", strings.Join(legalExportFormats, ", ")))
	fs.IntVar(&o.scoreMin, "score-min", o.scoreMin, "Only export results scoring at least this much")
	fs.IntVar(&o.scoreMax, "score-max", o.scoreMax, "Only export results scoring at most this much")
	fs.IntSliceVar(&o.indices, "indices", o.indices, "Only export these input positions")
	fs.StringVar(&o.outDir, "output-dir", o.outDir, "Directory receiving the file named by the server")
	fs.StringVarP(&o.outFile, "file", "f", o.outFile, "Write to this path instead, - for stdout")
}

func (o *ExportOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	kind, _, err := parseAndValidateKindId(args[0])
	if err != nil {
		return err
	}
	if kind != BatchKind {
		return fmt.Errorf("export only applies to batches")
	}
	if !funk.ContainsString(legalExportFormats, strings.ToLower(o.format)) {
		return fmt.Errorf("export format must be one of %s", strings.Join(legalExportFormats, ", "))
	}
	for _, s := range []int{o.scoreMin, o.scoreMax} {
		if s > 100 {
			return fmt.Errorf("score bounds must be between 0 and 100")
		}
	}
	return nil
}

func (o *ExportOptions) request() client.ExportRequest {
	req := client.ExportRequest{Format: strings.ToLower(o.format), Indices: o.indices}
	if o.scoreMin >= 0 {
		lo := o.scoreMin
		req.ScoreMin = &lo
	}
	if o.scoreMax >= 0 {
		hi := o.scoreMax
		req.ScoreMax = &hi
	}
	return req
}

func (o *ExportOptions) Run(ctx context.Context, args []string) error {
	_, id, _ := parseAndValidateKindId(args[0])
	c := o.Client()

	if o.outFile == "-" {
		_, _, err := c.Export(ctx, id, o.request(), os.Stdout)
		return err
	}

	tmp, err := os.CreateTemp(o.outDir, ".chemaudit-export-*")
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	name, n, err := c.Export(ctx, id, o.request(), tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	target := o.outFile
	if target == "" {
		if name == "" {
			name = fmt.Sprintf("batch_%s.%s", id, o.format)
		}
		target = filepath.Join(o.outDir, filepath.Base(name))
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", target, n)
	return nil
}
