package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/chtzvt/tablemapper/internal/encoder"
	"github.com/chtzvt/tablemapper/internal/processor"
	"github.com/chtzvt/tablemapper/internal/sink"
	"github.com/chtzvt/tablemapper/internal/source"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [processor]",
		Short: "Describe processors, or list registered components",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				printComponentsTable(out)
				return nil
			}
			p, err := processor.ForName(args[0])
			if err != nil {
				return err
			}
			printProcessor(out, p)
			return nil
		},
	}
}

func printComponentsTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Kind", "Name"})
	for _, n := range processor.Registered() {
		table.Append([]string{"processor", n})
	}
	for _, n := range source.Registered() {
		table.Append([]string{"source", n})
	}
	for _, n := range encoder.Registered() {
		table.Append([]string{"encoder", n})
	}
	for _, n := range sink.Registered() {
		table.Append([]string{"sink", n})
	}
	table.Render()
}

func printProcessor(w io.Writer, p processor.Processor) {
	fmt.Fprintf(w, "%s: %s\n\n", p.Name(), p.Description())

	props := tablewriter.NewWriter(w)
	props.SetHeader([]string{"Property", "Required", "Expressions", "Default", "Description"})
	for _, d := range p.Properties() {
		props.Append([]string{d.Name, strconv.FormatBool(d.Required), d.ExpressionLanguage.String(), orDash(d.Default), d.Description})
	}
	props.Render()

	rels := tablewriter.NewWriter(w)
	rels.SetHeader([]string{"Relationship", "Description"})
	for _, r := range p.Relationships() {
		rels.Append([]string{r.Name, r.Description})
	}
	rels.Render()

	attrs := tablewriter.NewWriter(w)
	attrs.SetHeader([]string{"Writes Attribute", "Description"})
	for _, a := range p.WritesAttributes() {
		attrs.Append([]string{a.Name, a.Description})
	}
	attrs.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
