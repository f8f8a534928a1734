package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"sigs.k8s.io/yaml"

	"github.com/chemaudit/chemaudit/internal/client"
)

const (
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat}
)

type GlobalOptions struct {
	ServerUrl string
	Timeout   time.Duration
	Output    string
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ServerUrl: "http://localhost:8000",
		Timeout:   60 * time.Second,
		Output:    yamlFormat,
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ServerUrl, "server-url", "u", o.ServerUrl, "Address of the server")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Timeout of a single request")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	o.ServerUrl = strings.TrimSuffix(o.ServerUrl, "/")
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if o.ServerUrl == "" {
		return fmt.Errorf("server url is required")
	}
	if !funk.ContainsString(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

func (o *GlobalOptions) Client() *client.Client {
	return client.NewClient(o.ServerUrl, o.Timeout)
}

// print writes a JSON document in the selected output format.
func (o *GlobalOptions) print(w io.Writer, raw []byte) error {
	switch o.Output {
	case jsonFormat:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		marshalled, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling response: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", marshalled)
		return err
	default:
		marshalled, err := yaml.JSONToYAML(raw)
		if err != nil {
			return fmt.Errorf("marshalling response: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s", marshalled)
		return err
	}
}

// printValue marshals v and writes it in the selected output format.
func (o *GlobalOptions) printValue(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling response: %w", err)
	}
	return o.print(w, raw)
}

func runOptions(cmd *cobra.Command, args []string, o interface {
	Complete(cmd *cobra.Command, args []string) error
	Validate(args []string) error
}) error {
	if err := o.Complete(cmd, args); err != nil {
		return err
	}
	return o.Validate(args)
}
