package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/runner"
)

// exitWord ends the session after the agent has answered it.
const exitWord = "goodbye"

func newChatCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent in the terminal",
		Long:  "Starts an interactive session. Type '" + exitWord + "' to end it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := build(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer app.Close()

			fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("chatagent")+" "+
				dimStyle.Render(fmt.Sprintf("%s/%s, type '%s' to quit", app.Backend.Info().Provider, app.Backend.Info().Name, exitWord)))
			return repl(cmd.Context(), app.Runner, cmd.InOrStdin(), cmd.OutOrStdout(), flags.greeting)
		},
	}
}

// repl alternates agent turns and user input until the exit word was
// answered, input ends or ctx is cancelled.
func repl(ctx context.Context, r *runner.Runner, in io.Reader, out io.Writer, greeting string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	text := strings.TrimSpace(greeting)
	for {
		if text != "" {
			if err := turn(ctx, r, text, out); err != nil {
				return err
			}
			if strings.EqualFold(text, exitWord) {
				fmt.Fprintln(out, dimStyle.Render("done!"))
				return nil
			}
		}

		fmt.Fprint(out, humanStyle.Render("Human: "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text = strings.TrimSpace(scanner.Text())
	}
}

// turn submits text and prints statuses until the final one. Cancelling ctx
// cancels the turn, which still reports its final status.
func turn(ctx context.Context, r *runner.Runner, text string, out io.Writer) error {
	turnID, statuses, err := r.Submit(context.WithoutCancel(ctx), text)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { _ = r.Cancel(turnID) })
	defer stop()

	for st := range statuses {
		printStatus(out, st)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return nil
}

func printStatus(out io.Writer, st core.Status) {
	switch st.Kind {
	case core.StatusThought:
		fmt.Fprintln(out, thoughtStyle.Render("Thought: "+st.Text))
	case core.StatusHeartbeat:
		fmt.Fprintln(out, dimStyle.Render(st.Text))
	case core.StatusAnswer:
		fmt.Fprintf(out, "%s %s\n\n", aiStyle.Render("AI:"), st.Text)
	default:
		fmt.Fprintf(out, "%s %s\n\n", aiStyle.Render("AI:"), errorStyle.Render(st.Text))
	}
}
