package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	cli := NewCLI()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "user":
		handleUserCommand(cli, args)
	case "listing":
		handleListingCommand(cli, args)
	case "order":
		handleOrderCommand(cli, args)
	case "version":
		fmt.Printf("bazarctl version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("bazarctl - Bazar CLI Tool")
	fmt.Println()
	fmt.Println("Usage: bazarctl <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  user <subcommand>      User operations")
	fmt.Println("    register <username>  Register a new account")
	fmt.Println("    get <id>             Get account by id")
	fmt.Println("    stats <id>           Account listing/order stats")
	fmt.Println("    suspend <id>         Suspend account")
	fmt.Println("    activate <id>        Reinstate account")
	fmt.Println("    delete <id>          Delete account")
	fmt.Println()
	fmt.Println("  listing <subcommand>   Listing operations")
	fmt.Println("    create               Create listing from flags")
	fmt.Println("    get <id>             Get listing by id")
	fmt.Println("    search               Search listings")
	fmt.Println("    nearby               Find listings near a point")
	fmt.Println("    delete <id>          Delete listing")
	fmt.Println()
	fmt.Println("  order <subcommand>     Order operations")
	fmt.Println("    create               Place an order from flags")
	fmt.Println("    get <id>             Get order by id")
	fmt.Println("    status <id> <status> Move order to a new status")
	fmt.Println("    cancel <id>          Cancel order")
	fmt.Println("    list                 List orders by buyer/seller/status")
	fmt.Println()
	fmt.Println("  version                Show version")
	fmt.Println("  help                   Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --server <url>         Bazar server URL (default: http://localhost:8080)")
}
