package main

import (
	"fmt"
	"os"

	"github.com/chtzvt/tablemapper/cmd/tablemapper/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		cfg     *config.Config
	)
	root := &cobra.Command{
		Use:           "tablemapper",
		Short:         "tablemapper runs the TableNameExtractor processor over record streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $PWD/tablemapper.yaml)")

	conf := func() *config.Config { return cfg }
	root.AddCommand(
		runCmd(conf),
		describeCmd(),
		evalCmd(),
		secretsCmd(conf),
		versionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
