package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

const defaultConfig = "./config.toml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses the global flags and dispatches to the named command. It returns
// the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("rewardsd", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", defaultConfig, "Path to the rewardsd config file")
	snapshotPath := global.String("snapshot", "", "Era snapshot YAML (overrides SnapshotFile)")
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n", rest[0])
		printUsage(stderr)
		return 2
	}
	env := &cliEnv{
		configPath:   *configPath,
		snapshotPath: *snapshotPath,
		stdout:       stdout,
		stderr:       stderr,
	}
	defer env.close()
	if err := cmd.run(env, rest[1:]); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type command struct {
	usage string
	run   func(env *cliEnv, args []string) error
}

var commands = map[string]command{
	"genesis":  {"genesis", runGenesis},
	"mint":     {"mint <account> <amount>", runMint},
	"balance":  {"balance <account>", runBalance},
	"compute":  {"compute", runCompute},
	"request":  {"request <caller> <validator>", runRequest},
	"settle":   {"settle <validator>", runSettle},
	"end-era":  {"end-era", runEndEra},
	"pending":  {"pending <validator> [nominator]", runPending},
	"receipts": {"receipts <account>", runReceipts},
	"queue":    {"queue", runQueue},
	"summary":  {"summary <era>", runSummary},
	"export":   {"export [-format csv|jsonl] [-out path]", runExport},
	"journal":  {"journal [-type t] [-limit n]", runJournal},
	"migrate":  {"migrate", runMigrate},
	"serve":    {"serve [-interval d]", runServe},
}

var commandOrder = []string{
	"genesis", "mint", "balance", "compute", "request", "settle", "end-era",
	"pending", "receipts", "queue", "summary", "export", "journal", "migrate", "serve",
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: rewardsd [-config path] [-snapshot path] <command> [args]")
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}
