package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"templatefiller/internal/fill"
	"templatefiller/internal/schema"
)

func newSchemaCommand(ctx *commandContext) *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Template schema utilities",
	}
	schemaCmd.AddCommand(newSchemaLintCommand(ctx))
	return schemaCmd
}

func newSchemaLintCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "lint [schema.yaml]",
		Short:       "Check a template schema document against the fill registry",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				path = cfg.Schema.Path
			}

			tmpl, err := schema.Load(path, fill.Builtins())
			if err != nil {
				return fmt.Errorf("schema %s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, tmpl.Len())
			for _, rule := range tmpl.Rules() {
				fillName := ""
				if rule.Fill != nil {
					fillName = rule.Fill.Name
					if len(rule.Fill.Params) > 0 {
						params := make([]string, 0, len(rule.Fill.Params))
						for k, v := range rule.Fill.Params {
							params = append(params, k+"="+v)
						}
						fillName += " (" + strings.Join(sortedStrings(params), ", ") + ")"
					}
				}
				kind := string(rule.Kind)
				if kind == "" {
					kind = "any"
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", rule.Index),
					rule.Pattern,
					kind,
					yesNo(rule.Required),
					fillName,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Pattern", "Kind", "Required", "Fill"}, rows,
				[]columnAlignment{alignRight}))
			fmt.Fprintf(out, "Schema %s is valid (version %d, %d rule(s))\n", path, tmpl.Version, tmpl.Len())
			return nil
		},
	}
	return cmd
}
