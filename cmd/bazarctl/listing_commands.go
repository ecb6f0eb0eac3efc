package main

import (
	"net/url"
	"os"
	"strconv"
	"strings"
)

func handleListingCommand(cli *CLI, args []string) {
	if len(args) == 0 {
		cli.Errorln("Listing subcommand required")
		cli.Errorln("Usage: bazarctl listing <create|get|search|nearby|delete> [options]")
		os.Exit(1)
	}

	subcommand := args[0]

	config := &GlobalConfig{}
	flagSet := cli.NewFlagSet("listing "+subcommand, config)

	var (
		userID, listingType, title, description, tags, category string
		price, lat, lng, radius                                 float64
		actorID                                                 string
	)

	switch subcommand {
	case "create":
		flagSet.StringVar(&userID, "user", "", "Seller account id")
		flagSet.StringVar(&listingType, "type", "product", "Listing type: product or service")
		flagSet.StringVar(&title, "title", "", "Listing title")
		flagSet.StringVar(&description, "description", "", "Listing description")
		flagSet.Float64Var(&price, "price", 0, "Price")
		flagSet.StringVar(&tags, "tags", "", "Comma-separated tags")
		flagSet.StringVar(&category, "category", "", "Category id")
	case "search":
		flagSet.StringVar(&listingType, "type", "", "Filter by listing type")
		flagSet.StringVar(&category, "category", "", "Filter by category id")
		flagSet.StringVar(&userID, "user", "", "Filter by owner id")
		flagSet.StringVar(&tags, "tag", "", "Filter by tag")
	case "nearby":
		flagSet.Float64Var(&lat, "lat", 0, "Reference latitude")
		flagSet.Float64Var(&lng, "lng", 0, "Reference longitude")
		flagSet.Float64Var(&radius, "radius", 0, "Search radius in km")
		flagSet.StringVar(&listingType, "type", "", "Filter by listing type")
	case "delete":
		flagSet.StringVar(&actorID, "actor", "", "Acting account id")
	}

	flagSet.Parse(args[1:])
	remaining := flagSet.Args()

	client := cli.CreateClient(config)

	switch subcommand {
	case "create":
		payload := map[string]any{
			"user_id":     userID,
			"type":        listingType,
			"title":       title,
			"description": description,
			"price":       price,
			"category_id": category,
		}
		if tags != "" {
			payload["tags"] = strings.Split(tags, ",")
		}
		result, err := client.CreateListing(payload)
		cli.HandleError(err, "creating listing")
		printJSON(cli, result)
	case "get":
		cli.ValidateExactArgs(remaining, 1, "Usage: bazarctl listing get <id>")
		result, err := client.GetListing(remaining[0])
		cli.HandleError(err, "getting listing")
		printJSON(cli, result)
	case "search":
		query := url.Values{}
		if listingType != "" {
			query.Set("type", listingType)
		}
		if category != "" {
			query.Set("category_id", category)
		}
		if userID != "" {
			query.Set("user_id", userID)
		}
		if tags != "" {
			query.Set("tag", tags)
		}
		result, err := client.SearchListings(query)
		cli.HandleError(err, "searching listings")
		printJSON(cli, result)
	case "nearby":
		query := url.Values{}
		query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
		query.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
		if radius > 0 {
			query.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))
		}
		if listingType != "" {
			query.Set("type", listingType)
		}
		result, err := client.NearbyListings(query)
		cli.HandleError(err, "finding nearby listings")
		printJSON(cli, result)
	case "delete":
		cli.ValidateExactArgs(remaining, 1, "Usage: bazarctl listing delete <id> [--actor id]")
		result, err := client.DeleteListing(remaining[0], actorID)
		cli.HandleError(err, "deleting listing")
		printJSON(cli, result)
	default:
		cli.ExitError("Unknown listing subcommand: %s\n", subcommand)
	}
}
