package main

import (
	"fmt"

	"github.com/chtzvt/tablemapper/internal/expression"
	"github.com/spf13/cobra"
)

func evalCmd() *cobra.Command {
	var (
		expr  string
		attrs []string
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate an attribute expression such as ${env}_orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseAttrs(attrs)
			if err != nil {
				return err
			}
			v, err := expression.Evaluate(expr, a)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().StringVar(&expr, "expr", "", "expression to evaluate")
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "attribute key=value (repeatable)")
	_ = cmd.MarkFlagRequired("expr")
	return cmd
}
