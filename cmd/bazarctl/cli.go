package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// CLI represents the command-line interface with dependencies
type CLI struct {
	Output io.Writer
	Error  io.Writer
	Exit   func(int)
}

// NewCLI creates a new CLI instance with default dependencies
func NewCLI() *CLI {
	return &CLI{
		Output: os.Stdout,
		Error:  os.Stderr,
		Exit:   os.Exit,
	}
}

// GlobalConfig holds common configuration for all commands
type GlobalConfig struct {
	ServerURL string
	Token     string
}

// NewFlagSet creates a flag set pre-populated with the global flags.
func (cli *CLI) NewFlagSet(commandName string, config *GlobalConfig) *flag.FlagSet {
	flagSet := flag.NewFlagSet(commandName, flag.ExitOnError)
	flagSet.SetOutput(cli.Error)
	flagSet.StringVar(&config.ServerURL, "server", "http://localhost:8080", "Bazar server URL")
	flagSet.StringVar(&config.Token, "token", "", "JWT access token")
	return flagSet
}

// CreateClient creates a BazarClient from GlobalConfig
func (cli *CLI) CreateClient(config *GlobalConfig) *BazarClient {
	return NewBazarClient(config.ServerURL, config.Token)
}

// Printf writes formatted output to the output writer
func (cli *CLI) Printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.Output, format, args...)
}

// Println writes a line to the output writer
func (cli *CLI) Println(args ...interface{}) {
	fmt.Fprintln(cli.Output, args...)
}

// Errorln writes an error line to the error writer
func (cli *CLI) Errorln(args ...interface{}) {
	fmt.Fprintln(cli.Error, args...)
}

// ExitError prints an error message and exits
func (cli *CLI) ExitError(format string, args ...interface{}) {
	fmt.Fprintf(cli.Error, format, args...)
	cli.Exit(1)
}

// HandleError checks if error exists, prints it and exits
func (cli *CLI) HandleError(err error, context string) {
	if err != nil {
		cli.ExitError("Error %s: %v\n", context, err)
	}
}

// ValidateExactArgs checks if exactly n arguments are provided
func (cli *CLI) ValidateExactArgs(args []string, n int, usage string) {
	if len(args) != n {
		cli.Errorln(usage)
		cli.Exit(1)
	}
}

// ValidateMinArgs checks if at least n arguments are provided
func (cli *CLI) ValidateMinArgs(args []string, n int, usage string) {
	if len(args) < n {
		cli.Errorln(usage)
		cli.Exit(1)
	}
}
