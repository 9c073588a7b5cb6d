package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"splicer/internal/config"
	"splicer/internal/services"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var asTOML bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective unconditioned value of every directive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asTOML {
				return engine.ExportTOML(out)
			}
			store := engine.Store()
			rows := make([][]string, 0, store.Len())
			for _, key := range store.Keys() {
				value, ok := engine.Resolve(key, "", nil)
				if !ok {
					value = "(unset)"
				}
				entries, _ := store.Lookup(key)
				conditional := 0
				for _, entry := range entries {
					if entry.Condition != nil {
						conditional++
					}
				}
				rows = append(rows, []string{key, firstLine(value), fmt.Sprint(conditional)})
			}
			fmt.Fprintf(out, "Sources: %s\n", strings.Join(engine.Sources(), ", "))
			fmt.Fprintln(out, renderTable(out, []string{"Directive", "Value", "Conditional"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asTOML, "toml", false, "Print the directives as a TOML document")
	return cmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write the default directives to a project config file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ctx.dir()
			if err != nil {
				return err
			}
			target := filepath.Join(dir, config.DefaultFileName)
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := os.WriteFile(target, []byte(config.DefaultDocument()), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default directives to %s\n", target)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing config file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config sources: %s\n", strings.Join(engine.Sources(), ", "))
			if err := engine.Validate(); err != nil {
				return services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func firstLine(value string) string {
	line, rest, found := strings.Cut(value, "\n")
	if found && rest != "" {
		return line + " …"
	}
	return line
}
