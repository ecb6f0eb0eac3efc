package main

import (
	"net/url"
	"os"
)

func handleOrderCommand(cli *CLI, args []string) {
	if len(args) == 0 {
		cli.Errorln("Order subcommand required")
		cli.Errorln("Usage: bazarctl order <create|get|status|cancel|list> [options]")
		os.Exit(1)
	}

	subcommand := args[0]

	config := &GlobalConfig{}
	flagSet := cli.NewFlagSet("order "+subcommand, config)

	var (
		buyerID, listingID, actorID, notes, reason string
		buyerFilter, sellerFilter, statusFilter    string
		quantity                                   int
	)

	switch subcommand {
	case "create":
		flagSet.StringVar(&buyerID, "buyer", "", "Buyer account id")
		flagSet.StringVar(&listingID, "listing", "", "Listing id")
		flagSet.IntVar(&quantity, "quantity", 1, "Quantity")
		flagSet.StringVar(&notes, "notes", "", "Order notes")
	case "status":
		flagSet.StringVar(&actorID, "actor", "", "Acting account id")
		flagSet.StringVar(&notes, "notes", "", "Status change notes")
	case "cancel":
		flagSet.StringVar(&actorID, "actor", "", "Acting account id")
		flagSet.StringVar(&reason, "reason", "", "Cancellation reason")
	case "list":
		flagSet.StringVar(&buyerFilter, "buyer", "", "Filter by buyer id")
		flagSet.StringVar(&sellerFilter, "seller", "", "Filter by seller id")
		flagSet.StringVar(&statusFilter, "status", "", "Filter by status")
	}

	flagSet.Parse(args[1:])
	remaining := flagSet.Args()

	client := cli.CreateClient(config)

	switch subcommand {
	case "create":
		result, err := client.CreateOrder(map[string]any{
			"buyer_id":   buyerID,
			"listing_id": listingID,
			"quantity":   quantity,
			"notes":      notes,
		})
		cli.HandleError(err, "creating order")
		printJSON(cli, result)
	case "get":
		cli.ValidateExactArgs(remaining, 1, "Usage: bazarctl order get <id>")
		result, err := client.GetOrder(remaining[0])
		cli.HandleError(err, "getting order")
		printJSON(cli, result)
	case "status":
		cli.ValidateExactArgs(remaining, 2, "Usage: bazarctl order status <id> <status> [--actor id] [--notes text]")
		result, err := client.UpdateOrderStatus(remaining[0], actorID, remaining[1], notes)
		cli.HandleError(err, "updating order status")
		printJSON(cli, result)
	case "cancel":
		cli.ValidateExactArgs(remaining, 1, "Usage: bazarctl order cancel <id> [--actor id] [--reason text]")
		result, err := client.CancelOrder(remaining[0], actorID, reason)
		cli.HandleError(err, "cancelling order")
		printJSON(cli, result)
	case "list":
		query := url.Values{}
		if buyerFilter != "" {
			query.Set("buyer_id", buyerFilter)
		}
		if sellerFilter != "" {
			query.Set("seller_id", sellerFilter)
		}
		if statusFilter != "" {
			query.Set("status", statusFilter)
		}
		result, err := client.ListOrders(query)
		cli.HandleError(err, "listing orders")
		printJSON(cli, result)
	default:
		cli.ExitError("Unknown order subcommand: %s\n", subcommand)
	}
}
