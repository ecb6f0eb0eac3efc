package main

import "os"

func handleUserCommand(cli *CLI, args []string) {
	if len(args) == 0 {
		cli.Errorln("User subcommand required")
		cli.Errorln("Usage: bazarctl user <register|get|stats|suspend|activate|delete> [options]")
		os.Exit(1)
	}

	subcommand := args[0]

	config := &GlobalConfig{}
	flagSet := cli.NewFlagSet("user "+subcommand, config)

	var userType, email, reason string
	if subcommand == "register" {
		flagSet.StringVar(&userType, "type", "", "Account type: buyer, seller, or both")
		flagSet.StringVar(&email, "email", "", "Contact email")
	}
	if subcommand == "suspend" {
		flagSet.StringVar(&reason, "reason", "", "Suspension reason")
	}

	flagSet.Parse(args[1:])
	remaining := flagSet.Args()

	client := cli.CreateClient(config)

	switch subcommand {
	case "register":
		cli.ValidateExactArgs(remaining, 1, "Usage: bazarctl user register <username> [--type buyer|seller|both] [--email addr]")
		result, err := client.RegisterUser(remaining[0], userType, email)
		cli.HandleError(err, "registering user")
		printJSON(cli, result)
	case "get":
		cli.ValidateExactArgs(remaining, 1, "Usage: bazarctl user get <id>")
		result, err := client.GetUser(remaining[0])
		cli.HandleError(err, "getting user")
		printJSON(cli, result)
	case "stats":
		cli.ValidateExactArgs(remaining, 1, "Usage: bazarctl user stats <id>")
		result, err := client.UserStats(remaining[0])
		cli.HandleError(err, "getting user stats")
		printJSON(cli, result)
	case "suspend":
		cli.ValidateExactArgs(remaining, 1, "Usage: bazarctl user suspend <id> [--reason text]")
		result, err := client.SuspendUser(remaining[0], reason)
		cli.HandleError(err, "suspending user")
		printJSON(cli, result)
	case "activate":
		cli.ValidateExactArgs(remaining, 1, "Usage: bazarctl user activate <id>")
		result, err := client.ActivateUser(remaining[0])
		cli.HandleError(err, "activating user")
		printJSON(cli, result)
	case "delete":
		cli.ValidateExactArgs(remaining, 1, "Usage: bazarctl user delete <id>")
		result, err := client.DeleteUser(remaining[0])
		cli.HandleError(err, "deleting user")
		printJSON(cli, result)
	default:
		cli.ExitError("Unknown user subcommand: %s\n", subcommand)
	}
}
