package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chtzvt/tablemapper/cmd/tablemapper/config"
	"github.com/chtzvt/tablemapper/internal/secrets"
	"github.com/spf13/cobra"
)

func secretsCmd(conf func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{Use: "secrets", Short: "Manage the local keychain"}
	cmd.AddCommand(
		secretsGenKeyCmd(),
		secretsSetCmd(conf),
		secretsGetCmd(conf),
		secretsListCmd(conf),
		secretsDeleteCmd(conf),
	)
	return cmd
}

func secretsGenKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate a new hex-encoded keychain key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.GenerateKey()
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func secretsSetCmd(conf func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Store a secret; reads the value from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kc, err := openKeychain(conf().Secrets)
			if err != nil {
				return err
			}
			var value []byte
			if len(args) == 2 {
				value = []byte(args[1])
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				value = []byte(strings.TrimRight(string(b), "\r\n"))
			}
			if err := kc.Set(context.Background(), args[0], value); err != nil {
				return err
			}
			return kc.Save()
		},
	}
}

func secretsGetCmd(conf func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kc, err := openKeychain(conf().Secrets)
			if err != nil {
				return err
			}
			v, err := kc.Get(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(v))
			return nil
		},
	}
}

func secretsListCmd(conf func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List secret names",
		RunE: func(cmd *cobra.Command, args []string) error {
			kc, err := openKeychain(conf().Secrets)
			if err != nil {
				return err
			}
			for _, name := range kc.List() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func secretsDeleteCmd(conf func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kc, err := openKeychain(conf().Secrets)
			if err != nil {
				return err
			}
			kc.Delete(args[0])
			return kc.Save()
		},
	}
}
