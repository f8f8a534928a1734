package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"

	"github.com/chemaudit/chemaudit/internal/client"
	"github.com/chemaudit/chemaudit/internal/store/model"
)

type UploadOptions struct {
	GlobalOptions

	filePath               string
	structureColumn        string
	nameColumn             string
	checks                 []string
	catalogs               []string
	includeAlerts          bool
	includeScoring         bool
	includeStandardization bool
	wait                   bool
	pollInterval           time.Duration
}

func DefaultUploadOptions() *UploadOptions {
	return &UploadOptions{
		GlobalOptions: DefaultGlobalOptions(),
		pollInterval:  2 * time.Second,
	}
}

func NewCmdUpload() *cobra.Command {
	o := DefaultUploadOptions()
	cmd := &cobra.Command{
		Use:          "upload",
		Short:        "Submit a structure file for batch processing.",
		Example:      "upload --file-path compounds.csv --structure-column SMILES --include-alerts --wait",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runOptions(cmd, args, o); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
	}
	o.Bind(cmd.Flags())

	if err := markRequired(cmd, "file-path"); err != nil {
		panic(err)
	}

	return cmd
}

func markRequired(cmd *cobra.Command, requiredFlags ...string) error {
	for _, flag := range requiredFlags {
		if err := cmd.MarkFlagRequired(flag); err != nil {
			return err
		}
	}

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if funk.ContainsString(requiredFlags, f.Name) {
			f.Usage = fmt.Sprintf("%s (required)", f.Usage)
		}
	})

	return nil
}

func (o *UploadOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.filePath, "file-path", o.filePath, "Path to the .csv or .sdf file to upload")
	fs.StringVar(&o.structureColumn, "structure-column", o.structureColumn, "CSV column holding the structures")
	fs.StringVar(&o.nameColumn, "name-column", o.nameColumn, "CSV column holding the molecule names")
	fs.StringSliceVar(&o.checks, "checks", o.checks, "Checks to run on every molecule")
	fs.StringSliceVar(&o.catalogs, "catalogs", o.catalogs, "Alert catalogs to screen against")
	fs.BoolVar(&o.includeAlerts, "include-alerts", o.includeAlerts, "Screen every molecule for structural alerts")
	fs.BoolVar(&o.includeScoring, "include-scoring", o.includeScoring, "Compute ML-readiness and drug-likeness scores")
	fs.BoolVar(&o.includeStandardization, "include-standardization", o.includeStandardization, "Run the standardization pipeline")
	fs.BoolVar(&o.wait, "wait", o.wait, "Wait for the job to finish and print its final state")
	fs.DurationVar(&o.pollInterval, "poll-interval", o.pollInterval, "Status polling interval with --wait")
}

func (o *UploadOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	ext := filepath.Ext(o.filePath)
	if !funk.ContainsString([]string{".csv", ".sdf", ".sd"}, ext) {
		return fmt.Errorf("unsupported file type %q: expected .csv or .sdf", ext)
	}
	if o.pollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}

func (o *UploadOptions) Run(ctx context.Context, args []string) error {
	c := o.Client()

	f, err := os.Open(o.filePath)
	if err != nil {
		return fmt.Errorf("opening structure file: %w", err)
	}
	defer f.Close()

	submitted, err := c.SubmitBatch(ctx, client.BatchUpload{
		Filename:               filepath.Base(o.filePath),
		Data:                   f,
		StructureColumn:        o.structureColumn,
		NameColumn:             o.nameColumn,
		Checks:                 o.checks,
		Catalogs:               o.catalogs,
		IncludeAlerts:          o.includeAlerts,
		IncludeScoring:         o.includeScoring,
		IncludeStandardization: o.includeStandardization,
	})
	if err != nil {
		return fmt.Errorf("uploading structure file: %w", err)
	}
	if !o.wait {
		return o.printValue(os.Stdout, submitted)
	}

	job, err := c.WaitBatch(ctx, submitted.JobID, o.pollInterval, func(j *model.Job) {
		fmt.Fprintf(os.Stderr, "\r%s: %d/%d (%d%%)", j.Status, j.Processed, j.Total, j.Progress)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	return o.printValue(os.Stdout, job)
}

type BatchActionOptions struct {
	GlobalOptions

	action string
}

func NewCmdCancel() *cobra.Command {
	return newBatchActionCmd("cancel", "Cancel a running batch job.")
}

func NewCmdDelete() *cobra.Command {
	return newBatchActionCmd("delete", "Delete a batch job and its results.")
}

func newBatchActionCmd(action, short string) *cobra.Command {
	o := &BatchActionOptions{GlobalOptions: DefaultGlobalOptions(), action: action}
	cmd := &cobra.Command{
		Use:          action + " batch/ID",
		Short:        short,
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

func (o *BatchActionOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	kind, _, err := parseAndValidateKindId(args[0])
	if err != nil {
		return err
	}
	if kind != BatchKind {
		return fmt.Errorf("%s only applies to batches", o.action)
	}
	return nil
}

func (o *BatchActionOptions) Run(ctx context.Context, args []string) error {
	_, id, _ := parseAndValidateKindId(args[0])
	c := o.Client()
	switch o.action {
	case "cancel":
		job, err := c.CancelBatch(ctx, id)
		if err != nil {
			return err
		}
		return o.printValue(os.Stdout, job)
	default:
		if err := c.DeleteBatch(ctx, id); err != nil {
			return err
		}
		fmt.Printf("batch %s deleted\n", id)
		return nil
	}
}

func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, 1<<20))
}
