// -- cmd/classes.go --
package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
	"github.com/duonglaiquang/htmlunit/internal/browser/host"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
	"github.com/duonglaiquang/htmlunit/internal/observability"
)

func newClassesCommand(a *app) *cobra.Command {
	var (
		browser string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the host classes exposed to scripts for a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.cfg.Browser().Version
			if cmd.Flags().Changed("browser") {
				name = browser
			}
			version, err := features.Lookup(name)
			if err != nil {
				return err
			}
			set, err := host.NewRegistry(observability.GetLogger()).Configuration(version)
			if err != nil {
				return err
			}
			if asJSON {
				return writeClassesJSON(cmd.OutOrStdout(), set)
			}
			return writeClassesTable(cmd.OutOrStdout(), set)
		},
	}
	cmd.Flags().StringVar(&browser, "browser", "", "browser to describe (chrome, edge, firefox, firefox-esr)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the configuration as JSON")
	return cmd
}

func writeClassesJSON(w io.Writer, set *jsconfig.ClassSet) error {
	out := struct {
		Browser string                  `json:"browser"`
		Classes []jsconfig.ClassSummary `json:"classes"`
	}{Browser: set.BrowserVersion().Nickname(), Classes: set.Summaries()}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeClassesTable(w io.Writer, set *jsconfig.ClassSet) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tEXTENDS\tCONSTRUCTOR\tCONSTANTS\tPROPERTIES\tFUNCTIONS")
	for _, s := range set.Summaries() {
		ctor := "-"
		switch {
		case s.ConstructorAlias != "":
			ctor = "alias " + s.ConstructorAlias
		case s.Constructor:
			ctor = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
			s.Name, orDash(s.Extends), ctor, len(s.Constants), len(s.Properties), len(s.Functions))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d classes for %s\n", set.Len(), set.BrowserVersion())
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
