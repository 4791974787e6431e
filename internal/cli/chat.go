package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
)

// TurnHandler runs one chat turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, text string) (model.OutboundMessage, error)
}

func newChatCmd(envFile *string) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant from the terminal",
		Long:  `Read questions from stdin, one per line, and print the assistant's replies. Type "exit" to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runREPL(cmd.Context(), a.assistant, cmd.InOrStdin(), cmd.OutOrStdout(), session)
		},
	}
	cmd.Flags().StringVar(&session, "session", "local", "session id used for conversation memory")
	return cmd
}

func runREPL(ctx context.Context, turns TurnHandler, in io.Reader, out io.Writer, session string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(out, "> ")
			continue
		case "exit", "quit":
			return nil
		}

		msg, err := turns.HandleTurn(ctx, session, line)
		if err != nil && !errors.Is(err, errx.ErrUnhandledTurn) {
			return err
		}
		switch msg.Kind {
		case model.KindImageAttachment:
			fmt.Fprintf(out, "[image] %s\n", msg.URL)
		default:
			fmt.Fprintln(out, msg.Content)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
