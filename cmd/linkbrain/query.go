package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/barabonda/linkbrain/cmd/linkbrain/internal"
	"github.com/barabonda/linkbrain/internal/graph"
	"github.com/barabonda/linkbrain/internal/tool"
)

var queryFlags struct {
	write  bool
	params string
}

var queryCmd = &cobra.Command{
	Use:   "query <cypher>",
	Short: "Run one Cypher query",
	Long: `Run a single Cypher query through the executor and print the rows.
Queries run in read mode unless --write is given. Parameters are a JSON
object; integral numbers are sent as integers.`,
	Example: `  linkbrain query 'MATCH (p:Person) RETURN p.name AS name LIMIT 5'
  linkbrain query --params '{"id": 1918}' 'MATCH (n) WHERE n.id = $id RETURN n'`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryFlags.write, "write", false, "Run in write mode")
	queryCmd.Flags().StringVar(&queryFlags.params, "params", "", "Query parameters as a JSON object")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	params, err := tool.ParseObject(queryFlags.params)
	if err != nil {
		return internal.WrapError(internal.ExitError, "invalid --params", err)
	}

	mode := graph.AccessModeRead
	if queryFlags.write {
		mode = graph.AccessModeWrite
	}

	a, err := newApp(ctx, current, appOptions{})
	if err != nil {
		return err
	}
	defer closeApp(a)

	result, err := a.executor.Execute(ctx, graph.Query{Text: args[0], Params: params}, mode)
	if err != nil {
		return err
	}

	out := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
	return printResult(out, result)
}

func printResult(out internal.Formatter, result *graph.Result) error {
	if _, ok := out.(*internal.JSONFormatter); ok {
		return out.PrintJSON(result)
	}

	rows := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			v, _ := row.Get(col)
			cells[i] = internal.Cell(v)
		}
		rows = append(rows, cells)
	}
	if len(result.Columns) > 0 {
		if err := out.PrintTable(result.Columns, rows); err != nil {
			return err
		}
	}

	if summary := result.Counters.Summary(); summary != "" {
		return out.PrintText(summary)
	}
	if len(result.Columns) == 0 {
		return out.PrintText(fmt.Sprintf("(no columns, %s)", result.Elapsed.Round(time.Millisecond)))
	}
	return nil
}
