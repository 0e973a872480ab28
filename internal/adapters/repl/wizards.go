package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bulk-orders/internal/adapters/cli"
	"bulk-orders/internal/app"

	"github.com/google/uuid"
)

// handleNewOrder asks for quantity and destination, shows the quote, and
// creates the order on confirmation. The same idempotency key is reused if the
// user retries after a failure, so a retry never produces a second order.
func handleNewOrder(ctx context.Context, reader *bufio.Reader, out io.Writer, svc app.ApplicationService) {
	fmt.Fprintln(out, "New order. Type 'cancel' at any prompt to abort.")

	qty, ok := promptInt(reader, out, "  Quantity: ")
	if !ok {
		return
	}
	lat, ok := promptFloat(reader, out, "  Destination latitude: ")
	if !ok {
		return
	}
	lon, ok := promptFloat(reader, out, "  Destination longitude: ")
	if !ok {
		return
	}

	req := app.OrderRequest{Quantity: qty, Latitude: lat, Longitude: lon}
	quote, err := svc.VerifyOrder(ctx, req)
	if err != nil {
		fmt.Fprintf(out, "Cannot quote this order: %v\n", err)
		return
	}
	cli.PrintQuote(out, quote.Quote)
	if !quote.Quote.Valid {
		fmt.Fprintln(out, "Order not created.")
		return
	}

	key := uuid.NewString()
	question := "Place this order?"
	for {
		fmt.Fprintf(out, "\n%s (y/n): ", question)
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(strings.ToLower(choice))
		if choice != "y" && choice != "yes" {
			fmt.Fprintln(out, "Order cancelled.")
			return
		}

		result, err := svc.CreateOrder(ctx, app.CreateOrderRequest{OrderRequest: req, IdempotencyKey: key})
		if err != nil {
			fmt.Fprintf(out, "Order FAILED: %v\n", err)
			question = "Try again?"
			continue
		}
		cli.PrintOrder(out, result.Order)
		return
	}
}

func prompt(reader *bufio.Reader, out io.Writer, label string) (string, bool) {
	for {
		fmt.Fprint(out, label)
		raw, err := reader.ReadString('\n')
		raw = strings.TrimSpace(raw)
		if strings.EqualFold(raw, "cancel") {
			fmt.Fprintln(out, "Order creation cancelled.")
			return "", false
		}
		if raw != "" {
			return raw, true
		}
		if err != nil {
			return "", false
		}
	}
}

func promptInt(reader *bufio.Reader, out io.Writer, label string) (int, bool) {
	for {
		raw, ok := prompt(reader, out, label)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fmt.Fprintln(out, "  Enter a whole number of at least 1.")
			continue
		}
		return n, true
	}
}

func promptFloat(reader *bufio.Reader, out io.Writer, label string) (float64, bool) {
	for {
		raw, ok := prompt(reader, out, label)
		if !ok {
			return 0, false
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fmt.Fprintln(out, "  Enter a number in degrees, e.g. 52.2297.")
			continue
		}
		return f, true
	}
}
