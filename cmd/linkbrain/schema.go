package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/barabonda/linkbrain/cmd/linkbrain/internal"
)

var schemaFlags struct {
	counts bool
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the graph schema snapshot",
	Long: `Print the schema snapshot as JSON: labels, relationship types,
property keys and the sampled properties of each label. Sections that
could not be read are listed under "errors". With --counts the node
count per label combination is printed instead.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaFlags.counts, "counts", false, "Print node counts per label combination")
}

func runSchema(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, current, appOptions{})
	if err != nil {
		return err
	}
	defer closeApp(a)

	out := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	if schemaFlags.counts {
		counts, err := a.schema.NodeCounts(ctx)
		if err != nil {
			return err
		}
		if globalFlags.GetOutputFormat() == internal.FormatJSON {
			return out.PrintJSON(counts)
		}
		rows := make([][]string, 0, len(counts))
		for _, c := range counts {
			rows = append(rows, []string{c.Labels, strconv.FormatInt(c.Count, 10)})
		}
		return out.PrintTable([]string{"labels", "count"}, rows)
	}

	snapshot, err := a.schema.Snapshot(ctx)
	if err != nil {
		return err
	}
	return out.PrintJSON(snapshot)
}
