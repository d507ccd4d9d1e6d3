package main

import (
	"fmt"
	"log/slog"

	"github.com/neurodesk/doctemplate/pkg/doctemplate"
	"github.com/neurodesk/doctemplate/pkg/templates"
	"github.com/spf13/cobra"
)

var checkCmd = cobra.Command{
	Use:   "check TEMPLATE...",
	Short: "Compile templates and report parse errors",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := commandConfig(cmd)
		if err != nil {
			return err
		}
		failed := 0
		for _, target := range args {
			job := &renderJob{cfg: cfg, target: target, logger: slog.Default()}
			tpl, _, err := job.compile(cmd.Context())
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", target, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%d partials)\n", target, len(tpl.Partials()))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d templates failed", failed, len(args))
		}
		return nil
	},
}

var astCmd = cobra.Command{
	Use:   "ast TEMPLATE",
	Short: "Print the compiled template tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := commandConfig(cmd)
		if err != nil {
			return err
		}
		job := &renderJob{cfg: cfg, target: args[0], logger: slog.Default()}
		tpl, _, err := job.compile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), doctemplate.Pretty(tpl.Root))
		return nil
	},
}

var listCmd = cobra.Command{
	Use:   "list",
	Short: "List built-in templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := commandConfig(cmd); err != nil {
			return err
		}
		for _, name := range templates.List() {
			tpl, err := templates.Get(name)
			if err != nil {
				slog.Warn("skipping template", "name", name, "error", err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", name, tpl.Description)
		}
		return nil
	},
}
