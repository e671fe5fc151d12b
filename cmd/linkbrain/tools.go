package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/barabonda/linkbrain/cmd/linkbrain/internal"
	"github.com/barabonda/linkbrain/internal/tool"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	Long: `List every tool agents and MCP clients can call: the built-in graph
tools and the tools of configured remote servers.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, current, appOptions{remoteTools: true})
	if err != nil {
		return err
	}
	defer closeApp(a)

	descs := a.registry.List()
	out := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		return out.PrintJSON(descs)
	}
	return out.PrintTable([]string{"name", "source", "parameters", "description"}, toolRows(descs))
}

func toolRows(descs []tool.Descriptor) [][]string {
	rows := make([][]string, 0, len(descs))
	for _, d := range descs {
		source := "local"
		if d.Remote {
			source = "remote"
		}
		rows = append(rows, []string{d.Name, source, parameterList(d), firstLine(d.Description)})
	}
	return rows
}

// parameterList renders parameters as "name*" for required ones and
// "name" otherwise. Remote tools carry a raw schema and print "-".
func parameterList(d tool.Descriptor) string {
	if len(d.Parameters) == 0 {
		return "-"
	}
	names := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Required {
			names = append(names, p.Name+"*")
		} else {
			names = append(names, p.Name)
		}
	}
	return strings.Join(names, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
