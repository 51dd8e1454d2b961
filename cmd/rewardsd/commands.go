package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"firechain/core/rewards"
	"firechain/crypto"
	"firechain/integrations/exports"
	"firechain/observability/logging"
)

func runGenesis(env *cliEnv, args []string) error {
	if err := expectArgs(args, 0); err != nil {
		return err
	}
	if err := env.load(); err != nil {
		return err
	}
	pool, err := env.engineCfg.PoolAccount()
	if err != nil {
		return err
	}
	if err := env.ledger.InitGenesis(pool); err != nil {
		return err
	}
	env.logger.Info("reward ledger initialised", "pool", pool.String(), logging.MaskField("seed", env.cfg.Rewards.PoolSeed))
	return printJSON(env.stdout, map[string]any{"pool": pool.String(), "version": rewards.LedgerVersion})
}

func runMint(env *cliEnv, args []string) error {
	if err := expectArgs(args, 2); err != nil {
		return err
	}
	account, err := crypto.ParseAccount(args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	if err := env.load(); err != nil {
		return err
	}
	if err := env.bank.Mint(account, amount); err != nil {
		return err
	}
	return printBalance(env, account)
}

func runBalance(env *cliEnv, args []string) error {
	if err := expectArgs(args, 1); err != nil {
		return err
	}
	account, err := crypto.ParseAccount(args[0])
	if err != nil {
		return err
	}
	if err := env.load(); err != nil {
		return err
	}
	return printBalance(env, account)
}

func printBalance(env *cliEnv, account crypto.AccountID) error {
	balance, err := env.bank.BalanceOf(account)
	if err != nil {
		return err
	}
	return printJSON(env.stdout, map[string]string{"account": account.String(), "balance": balance.Dec()})
}

func runCompute(env *cliEnv, args []string) error {
	if err := expectArgs(args, 0); err != nil {
		return err
	}
	engine, err := env.currentEngine()
	if err != nil {
		return err
	}
	summary, err := engine.ComputeEra(context.Background())
	if err != nil {
		return err
	}
	return printJSON(env.stdout, viewSummary(summary))
}

func runRequest(env *cliEnv, args []string) error {
	if err := expectArgs(args, 2); err != nil {
		return err
	}
	caller, err := crypto.ParseAccount(args[0])
	if err != nil {
		return fmt.Errorf("caller: %w", err)
	}
	validator, err := crypto.ParseAccount(args[1])
	if err != nil {
		return fmt.Errorf("validator: %w", err)
	}
	engine, err := env.readEngine()
	if err != nil {
		return err
	}
	if err := engine.Request(context.Background(), caller, validator); err != nil {
		return err
	}
	return printJSON(env.stdout, map[string]string{"queued": validator.String()})
}

func runSettle(env *cliEnv, args []string) error {
	if err := expectArgs(args, 1); err != nil {
		return err
	}
	validator, err := crypto.ParseAccount(args[0])
	if err != nil {
		return err
	}
	engine, err := env.readEngine()
	if err != nil {
		return err
	}
	settlement, err := engine.Settle(context.Background(), validator)
	if settlement != nil {
		if perr := printJSON(env.stdout, viewSettlement(settlement)); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

func runEndEra(env *cliEnv, args []string) error {
	if err := expectArgs(args, 0); err != nil {
		return err
	}
	engine, err := env.currentEngine()
	if err != nil {
		return err
	}
	report, err := engine.OnEraEnd(context.Background())
	if report != nil {
		if perr := printJSON(env.stdout, viewReport(report)); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

func runPending(env *cliEnv, args []string) error {
	if len(args) != 1 && len(args) != 2 {
		return fmt.Errorf("expected a validator and an optional nominator")
	}
	validator, err := crypto.ParseAccount(args[0])
	if err != nil {
		return err
	}
	engine, err := env.readEngine()
	if err != nil {
		return err
	}
	out := map[string]string{"validator": validator.String()}
	if len(args) == 2 {
		nominator, err := crypto.ParseAccount(args[1])
		if err != nil {
			return err
		}
		owed, err := engine.NominatorPendingReward(validator, nominator)
		if err != nil {
			return err
		}
		out["nominator"] = nominator.String()
		out["pending"] = owed.Dec()
	} else {
		owed, err := engine.PendingReward(validator)
		if err != nil {
			return err
		}
		out["pending"] = owed.Dec()
	}
	return printJSON(env.stdout, out)
}

func runReceipts(env *cliEnv, args []string) error {
	if err := expectArgs(args, 1); err != nil {
		return err
	}
	account, err := crypto.ParseAccount(args[0])
	if err != nil {
		return err
	}
	engine, err := env.readEngine()
	if err != nil {
		return err
	}
	total, err := engine.LifetimeReceipts(account)
	if err != nil {
		return err
	}
	return printJSON(env.stdout, map[string]string{"account": account.String(), "received": total.Dec()})
}

func runQueue(env *cliEnv, args []string) error {
	if err := expectArgs(args, 0); err != nil {
		return err
	}
	engine, err := env.readEngine()
	if err != nil {
		return err
	}
	queue, err := engine.QueuedValidators()
	if err != nil {
		return err
	}
	return printJSON(env.stdout, map[string][]string{"queue": accountStrings(queue)})
}

func runSummary(env *cliEnv, args []string) error {
	if err := expectArgs(args, 1); err != nil {
		return err
	}
	era, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid era %q", args[0])
	}
	engine, err := env.readEngine()
	if err != nil {
		return err
	}
	summary, ok, err := engine.EraSummary(uint32(era))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no summary stored for era %d", era)
	}
	return printJSON(env.stdout, viewSummary(summary))
}

func runExport(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	format := fs.String("format", "csv", "Output format: csv or jsonl")
	out := fs.String("out", "", "Write the export to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := env.load(); err != nil {
		return err
	}
	summaries, err := env.ledger.EraSummaries()
	if err != nil {
		return err
	}
	var (
		data     []byte
		checksum string
	)
	switch strings.ToLower(*format) {
	case "csv":
		data, checksum, err = exports.ErasCSV(summaries)
	case "jsonl":
		data, checksum, err = exports.ErasJSONL(summaries)
	default:
		return fmt.Errorf("unsupported export format %q", *format)
	}
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = env.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	env.logger.Info("era summaries exported", "path", *out, "eras", len(summaries), "checksum", checksum)
	return printJSON(env.stdout, map[string]any{"path": *out, "eras": len(summaries), "sha256": checksum})
}

func runJournal(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("journal", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	kind := fs.String("type", "", "Only list events of this type")
	limit := fs.Int("limit", 0, "Maximum number of entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := env.emitters(); err != nil {
		return err
	}
	if env.sink == nil {
		return fmt.Errorf("journal disabled in %s", env.configPath)
	}
	entries, err := env.sink.Entries(context.Background(), *kind, *limit)
	if err != nil {
		return err
	}
	view, err := viewJournal(entries)
	if err != nil {
		return err
	}
	return printJSON(env.stdout, view)
}

func runMigrate(env *cliEnv, args []string) error {
	if err := expectArgs(args, 0); err != nil {
		return err
	}
	snap, err := env.snapshot()
	if err != nil {
		return err
	}
	report, err := rewards.MigrateNominatorRewards(env.ledger, snap, env.logger)
	if err != nil {
		return err
	}
	return printJSON(env.stdout, report)
}

func expectArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func parseAmount(value string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(strings.ReplaceAll(strings.TrimSpace(value), "_", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}
