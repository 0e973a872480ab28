package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"bulk-orders/internal/adapters/cli"
	"bulk-orders/internal/app"
)

var errExit = errors.New("exit")

// Run starts the interactive loop. Each line is one CLI command; /order starts
// the guided order wizard. It returns when the reader is exhausted or the user types exit.
func Run(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, out io.Writer) {
	fmt.Fprintln(out, "Bulk Orders")
	fmt.Fprintln(out, "Type /order for a guided order, help for commands, exit to quit.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	dispatch := func(input string) error {
		tokens := strings.Fields(strings.TrimPrefix(input, "/"))
		if len(tokens) == 0 {
			return nil
		}
		switch strings.ToLower(tokens[0]) {
		case "exit", "quit", "q":
			return errExit
		case "order", "new-order":
			handleNewOrder(ctx, reader, out, svc)
			return nil
		default:
			return cli.Run(ctx, svc, tokens, out)
		}
	}

	for {
		fmt.Fprint(out, "\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input != "" {
			if dispErr := dispatch(input); dispErr != nil {
				if errors.Is(dispErr, errExit) {
					fmt.Fprintln(out, "Goodbye!")
					return
				}
				fmt.Fprintf(out, "Error: %v\n", dispErr)
			}
		}
		if err != nil {
			return
		}
	}
}
