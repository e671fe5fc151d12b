package main

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/barabonda/linkbrain/cmd/linkbrain/internal"
	"github.com/barabonda/linkbrain/internal/agent"
	"github.com/barabonda/linkbrain/internal/llm"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with the agent team",
	Long: `Run one supervised request: the supervisor hands the question to
member agents, which query the graph, and the final answer is printed.
With --verbose the hand-offs are listed first.

The question is read from stdin when it is "-" or omitted with stdin
not being a terminal.`,
	Example: `  linkbrain ask "Which architects designed more than three buildings?"
  echo "How many nodes are labelled Person?" | linkbrain ask`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

// askOutput is the JSON form of an answered request.
type askOutput struct {
	RunID       string             `json:"run_id"`
	Status      agent.Status       `json:"status"`
	Answer      string             `json:"answer"`
	Turns       int                `json:"turns"`
	Usage       llm.TokenUsage     `json:"usage"`
	Duration    string             `json:"duration"`
	Delegations []agent.Delegation `json:"delegations"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question, err := readQuestion(cmd, args)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, current, appOptions{connect: true, remoteTools: true})
	if err != nil {
		return err
	}
	defer closeApp(a)

	sup, err := a.supervisor()
	if err != nil {
		return err
	}

	result, runErr := sup.Run(ctx, question)
	if result == nil {
		return runErr
	}

	out := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
	if err := printAnswer(out, result, globalFlags.IsVerbose()); err != nil {
		return err
	}
	return runErr
}

func readQuestion(cmd *cobra.Command, args []string) (string, error) {
	question := strings.Join(args, " ")
	if question == "-" || (len(args) == 0 && !stdinIsTerminal(cmd)) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", internal.WrapError(internal.ExitError, "failed to read question from stdin", err)
		}
		question = string(data)
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return "", internal.NewCLIError(internal.ExitError,
			"ask needs a question: pass it as an argument or pipe it on stdin")
	}
	return question, nil
}

func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printAnswer(out internal.Formatter, result *agent.Result, verbose bool) error {
	if _, ok := out.(*internal.JSONFormatter); ok {
		delegations := result.Delegations
		if delegations == nil {
			delegations = []agent.Delegation{}
		}
		return out.PrintJSON(askOutput{
			RunID:       result.RunID,
			Status:      result.Status,
			Answer:      result.Answer(),
			Turns:       result.Turns,
			Usage:       result.Usage,
			Duration:    result.Duration.Round(time.Millisecond).String(),
			Delegations: delegations,
		})
	}

	if verbose && len(result.Delegations) > 0 {
		rows := make([][]string, 0, len(result.Delegations))
		for _, d := range result.Delegations {
			rows = append(rows, []string{d.Member, d.Status.String(), strconv.Itoa(d.Turns), d.Task})
		}
		if err := out.PrintTable([]string{"member", "status", "turns", "task"}, rows); err != nil {
			return err
		}
		if err := out.PrintText(""); err != nil {
			return err
		}
	}
	if result.Status != agent.StatusCompleted {
		return out.PrintError(result.Answer())
	}
	return out.PrintText(result.Answer())
}
