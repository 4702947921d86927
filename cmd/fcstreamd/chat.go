package main

import (
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thecxx/fcstream/event"
	"github.com/thecxx/fcstream/orchestrator"
)

func newChatCommand(f *flags) *cobra.Command {
	var (
		conversationID string
		noFunctions    bool
	)
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Run one streaming turn and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			events, id, err := a.svc.Stream(cmd.Context(), orchestrator.Request{
				ConversationID: conversationID,
				Message:        strings.Join(args, " "),
				UseFunctions:   !noFunctions,
			})
			if err != nil {
				return err
			}
			if err := printEvents(cmd.OutOrStdout(), cmd.ErrOrStderr(), events); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "conversation: %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue an existing conversation")
	cmd.Flags().BoolVar(&noFunctions, "no-functions", false, "disable function calling")
	return cmd
}

// printEvents writes answer text to out and progress lines to status.
func printEvents(out, status io.Writer, events iter.Seq[event.Event]) error {
	var failure error
	for evt := range events {
		switch evt.Type {
		case event.TypeContent:
			fmt.Fprint(out, evt.Content)
		case event.TypeFunctionCallDetected:
			if c, ok := evt.Content.(event.FunctionCallDetected); ok {
				fmt.Fprintf(status, "\n[%s] %s\n", c.FunctionType, c.Description)
			}
		case event.TypeExecutingFunction, event.TypeGeneratingQuery, event.TypeQueryGenerated, event.TypeGeneratingResponse:
			fmt.Fprintf(status, "[%s] %v\n", evt.Type, evt.Content)
		case event.TypeContentDirect:
			if c, ok := evt.Content.(event.ContentDirect); ok {
				fmt.Fprintf(status, "[%s] %s\n", c.FunctionType, c.Status)
			}
		case event.TypeDone:
			fmt.Fprintln(out)
		case event.TypeError:
			failure = fmt.Errorf("%v", evt.Content)
		}
	}
	return failure
}
