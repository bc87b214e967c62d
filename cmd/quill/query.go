package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/service"
)

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Run one reasoning session and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, _ := cmd.Flags().GetBool("stream")
			asJSON, _ := cmd.Flags().GetBool("json")

			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			req := service.Request{Query: strings.Join(args, " ")}
			out := cmd.OutOrStdout()

			if stream {
				events, err := a.Service.ProcessStream(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printStream(out, events, asJSON)
			}

			res, err := a.Service.Process(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printResult(out, res, asJSON)
		},
	}
	cmd.Flags().Bool("stream", false, "Print reasoning events as they happen")
	cmd.Flags().Bool("json", false, "Print raw JSON instead of text")
	return cmd
}

func printResult(w io.Writer, res service.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	for _, step := range res.DetailedReasoning {
		fmt.Fprintf(w, "[step %d] %s\n", step.Step, step.Thought)
	}
	if !res.Success {
		return fmt.Errorf("session %s failed: %s", res.SessionID, deref(res.Error))
	}
	fmt.Fprintln(w, deref(res.Answer))
	return nil
}

func printStream(w io.Writer, events <-chan agent.StreamEvent, asJSON bool) error {
	enc := json.NewEncoder(w)
	var final agent.StreamEvent
	for ev := range events {
		if asJSON {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		} else {
			printEvent(w, ev)
		}
		if ev.Terminal() {
			final = ev
		}
	}
	if final.Type == agent.EventSessionError {
		return fmt.Errorf("session %s failed: %s", final.SessionID, final.Err)
	}
	return nil
}

func printEvent(w io.Writer, ev agent.StreamEvent) {
	switch ev.Type {
	case agent.EventIterationStart:
		fmt.Fprintf(w, "\n--- iteration %d/%d ---\n", ev.Iteration, ev.MaxIterations)
	case agent.EventThinking:
		fmt.Fprint(w, ev.Content)
	case agent.EventStepParsed:
		fmt.Fprintln(w)
	case agent.EventToolsExecuted:
		fmt.Fprintf(w, "observation: %s\n", deref(ev.Observation))
	case agent.EventGeneratingFinalAnswer:
		fmt.Fprintln(w, "\n--- synthesizing final answer ---")
	case agent.EventSessionComplete:
		if ev.Session != nil {
			fmt.Fprintf(w, "\n%s\n", deref(ev.Session.FinalAnswer))
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
