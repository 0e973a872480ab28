package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bulk-orders/internal/app"
	"bulk-orders/internal/core"
)

const usage = `Available commands:
  verify   <quantity> <lat> <lon>           price and allocate without ordering
  create   <quantity> <lat> <lon> [key]     place an order (optional idempotency key)
  status   <order-id> <status>              set PENDING, PROCESSING, COMPLETED or CANCELLED
  delete   <order-id>                       delete an order (stock is not restored)
  orders   [status]                         list orders, newest first
  stock                                     list warehouses and stock
  receive  <warehouse-id> <quantity> [notes]
  moves    <warehouse-id>                   list stock movements
  token    [subject] [ttl]                  mint an API bearer token`

// Run executes a one-shot CLI command, writing human-readable output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given\n%s", usage)
	}

	switch args[0] {
	case "help", "h":
		fmt.Fprintln(out, usage)

	case "verify", "v":
		req, err := parseOrderArgs(args[1:])
		if err != nil {
			return err
		}
		result, err := svc.VerifyOrder(ctx, req)
		if err != nil {
			return fmt.Errorf("verify failed: %w", err)
		}
		PrintQuote(out, result.Quote)

	case "create", "c":
		req, err := parseOrderArgs(args[1:])
		if err != nil {
			return err
		}
		create := app.CreateOrderRequest{OrderRequest: req}
		if len(args) > 4 {
			create.IdempotencyKey = args[4]
		}
		result, err := svc.CreateOrder(ctx, create)
		if err != nil {
			return fmt.Errorf("create failed: %w", err)
		}
		if result.Replayed {
			fmt.Fprintln(out, "Order already created by an earlier request with this key.")
		}
		PrintOrder(out, result.Order)

	case "status":
		if len(args) < 3 {
			return fmt.Errorf("usage: app status <order-id> <status>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		result, err := svc.UpdateOrderStatus(ctx, id, args[2])
		if err != nil {
			return fmt.Errorf("status update failed: %w", err)
		}
		fmt.Fprintf(out, "Order %s is now %s.\n", result.Order.OrderNumber, result.Order.Status)

	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: app delete <order-id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := svc.DeleteOrder(ctx, id); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		fmt.Fprintf(out, "Order %d deleted.\n", id)

	case "orders", "o":
		status := ""
		if len(args) > 1 {
			status = args[1]
		}
		result, err := svc.ListOrders(ctx, status, 0)
		if err != nil {
			return fmt.Errorf("failed to list orders: %w", err)
		}
		printOrders(out, result.Orders)

	case "stock", "s":
		result, err := svc.ListWarehouses(ctx)
		if err != nil {
			return fmt.Errorf("failed to list warehouses: %w", err)
		}
		printWarehouses(out, result.Warehouses)

	case "receive":
		if len(args) < 3 {
			return fmt.Errorf("usage: app receive <warehouse-id> <quantity> [notes]")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[2])
		}
		result, err := svc.ReceiveStock(ctx, app.ReceiveStockRequest{
			WarehouseID: id,
			Quantity:    qty,
			Notes:       strings.Join(args[3:], " "),
		})
		if err != nil {
			return fmt.Errorf("receive failed: %w", err)
		}
		fmt.Fprintf(out, "Warehouse %d now holds %d units.\n", result.Warehouse.ID, result.Warehouse.Stock)

	case "moves", "movements":
		if len(args) < 2 {
			return fmt.Errorf("usage: app moves <warehouse-id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		result, err := svc.ListMovements(ctx, id, 0)
		if err != nil {
			return fmt.Errorf("failed to list movements: %w", err)
		}
		printMovements(out, result.Movements)

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
	return nil
}

func parseOrderArgs(args []string) (app.OrderRequest, error) {
	if len(args) < 3 {
		return app.OrderRequest{}, fmt.Errorf("expected <quantity> <lat> <lon>")
	}
	qty, err := strconv.Atoi(args[0])
	if err != nil {
		return app.OrderRequest{}, fmt.Errorf("invalid quantity %q", args[0])
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return app.OrderRequest{}, fmt.Errorf("invalid latitude %q", args[1])
	}
	lon, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return app.OrderRequest{}, fmt.Errorf("invalid longitude %q", args[2])
	}
	return app.OrderRequest{Quantity: qty, Latitude: lat, Longitude: lon}, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// PrintQuote renders a quote as a table of allocations followed by the totals.
func PrintQuote(out io.Writer, q *core.Quote) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  QUOTE  %d units to (%.4f, %.4f)\n", q.Quantity, q.Destination.Latitude, q.Destination.Longitude)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-20s %-12s %12s %12s\n", "WAREHOUSE", "UNITS", "KM", "SHIPPING")
	fmt.Fprintln(out, strings.Repeat("-", 62))
	for _, l := range q.Lines {
		fmt.Fprintf(out, "  %-20s %-12d %12.1f %12s\n", l.WarehouseName, l.Quantity, l.DistanceKm, l.ShippingCost.StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("-", 62))
	fmt.Fprintf(out, "  %-33s %26s\n", "Base price", q.BasePrice.StringFixed(2))
	fmt.Fprintf(out, "  %-33s %26s\n", "Discount ("+q.DiscountRate.Shift(2).String()+"%)", q.DiscountAmount.StringFixed(2))
	fmt.Fprintf(out, "  %-33s %26s\n", "Total", q.TotalPrice.StringFixed(2))
	fmt.Fprintf(out, "  %-33s %26s\n", "Shipping", q.ShippingCost.StringFixed(2))
	fmt.Fprintln(out, strings.Repeat("=", 62))
	if q.Valid {
		fmt.Fprintln(out, "  VALID")
	} else {
		fmt.Fprintf(out, "  INVALID: %s\n", q.InvalidReason)
	}
}

// PrintOrder renders a committed order and its items.
func PrintOrder(out io.Writer, o *core.Order) {
	fmt.Fprintf(out, "\nOrder %s (id %d)  %s\n", o.OrderNumber, o.ID, o.Status)
	fmt.Fprintf(out, "  Quantity : %d\n", o.Quantity)
	fmt.Fprintf(out, "  Total    : %s (discount %s)\n", o.TotalPrice.StringFixed(2), o.DiscountAmount.StringFixed(2))
	fmt.Fprintf(out, "  Shipping : %s\n", o.ShippingCost.StringFixed(2))
	for _, it := range o.Items {
		fmt.Fprintf(out, "    %-20s %6d  %10s\n", it.WarehouseName, it.Quantity, it.ShippingCost.StringFixed(2))
	}
}

func printOrders(out io.Writer, orders []core.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(out, "No orders.")
		return
	}
	fmt.Fprintf(out, "%-6s %-22s %-11s %8s %12s %10s\n", "ID", "NUMBER", "STATUS", "QTY", "TOTAL", "SHIPPING")
	fmt.Fprintln(out, strings.Repeat("-", 74))
	for _, o := range orders {
		fmt.Fprintf(out, "%-6d %-22s %-11s %8d %12s %10s\n",
			o.ID, o.OrderNumber, o.Status, o.Quantity, o.TotalPrice.StringFixed(2), o.ShippingCost.StringFixed(2))
	}
}

func printWarehouses(out io.Writer, warehouses []core.Warehouse) {
	fmt.Fprintf(out, "%-4s %-20s %10s %11s %8s\n", "ID", "NAME", "LAT", "LON", "STOCK")
	fmt.Fprintln(out, strings.Repeat("-", 57))
	total := 0
	for _, w := range warehouses {
		fmt.Fprintf(out, "%-4d %-20s %10.4f %11.4f %8d\n", w.ID, w.Name, w.Location.Latitude, w.Location.Longitude, w.Stock)
		total += w.Stock
	}
	fmt.Fprintln(out, strings.Repeat("-", 57))
	fmt.Fprintf(out, "%-4s %-20s %10s %11s %8d\n", "", "TOTAL", "", "", total)
}

func printMovements(out io.Writer, movements []core.StockMovement) {
	if len(movements) == 0 {
		fmt.Fprintln(out, "No movements.")
		return
	}
	for _, m := range movements {
		ref := ""
		if m.OrderID != nil {
			ref = fmt.Sprintf("order %d", *m.OrderID)
		}
		fmt.Fprintf(out, "%s  %-8s %+6d  %-12s %s\n",
			m.CreatedAt.Format("2006-01-02 15:04:05"), m.MovementType, m.Quantity, ref, m.Notes)
	}
}
