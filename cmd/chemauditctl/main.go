package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/chemaudit/chemaudit/internal/cli"
)

func main() {
	command := NewChemauditCtlCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewChemauditCtlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chemauditctl [flags] [options]",
		Short: "chemauditctl controls the chemaudit service.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdValidate())
	cmd.AddCommand(cli.NewCmdUpload())
	cmd.AddCommand(cli.NewCmdGet())
	cmd.AddCommand(cli.NewCmdExport())
	cmd.AddCommand(cli.NewCmdCancel())
	cmd.AddCommand(cli.NewCmdDelete())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
