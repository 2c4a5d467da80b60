package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/archlint/internal/config"
	"github.com/mvp-joe/archlint/internal/report"
	"github.com/mvp-joe/archlint/internal/rules"
)

func newRulesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the built-in checks a rule set can use",
		Long: `List every built-in check with its family, default severity and the
parameters it accepts. Rules in archlint.yaml name a check and may override
severity, scope (kinds, layers), message template and parameters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			infos := rules.Catalog()

			switch format {
			case config.FormatJSON:
				return listRulesJSON(w, infos)
			case config.FormatMarkdown:
				return listRulesTable(w, infos, true, nil)
			case "", config.FormatText:
				styles := report.PlainStyles()
				if report.IsTerminal(w) {
					styles = report.DefaultStyles()
				}
				return listRulesTable(w, infos, false, styles)
			default:
				return config.NewFieldError("--format", config.ErrInvalidFormat, "'%s'", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", config.FormatText, "output format: text, json, markdown")
	return cmd
}

// RulesJSONOutput is the JSON output structure for the check listing.
type RulesJSONOutput struct {
	Checks []rules.CheckInfo `json:"checks"`
	Count  int               `json:"count"`
}

func listRulesJSON(w io.Writer, infos []rules.CheckInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(RulesJSONOutput{Checks: infos, Count: len(infos)})
}

func listRulesTable(w io.Writer, infos []rules.CheckInfo, markdown bool, styles *report.Styles) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Check", "Family", "Severity", "Params", "Description"})
	for _, info := range infos {
		severity := info.Severity.String()
		name := info.Name
		if styles != nil {
			name = styles.Bold.Render(name)
		}
		t.AppendRow(table.Row{name, string(info.Family), severity, strings.Join(info.Params, ", "), info.Description})
	}

	if markdown {
		fmt.Fprintf(w, "# Checks\n\n")
		t.RenderMarkdown()
		return nil
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}
