package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/cli"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/httpexec"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/loadtest"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/project"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/report"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/result"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/runlock"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/scenario"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/types"
)

var version = "0.1.0"

var (
	flagProject string
	flagHost    string
	flagVerbose bool
	flagNoSave  bool

	flagLimit int

	flagTPS           int
	flagDuration      int
	flagRampUp        int
	flagMaxConcurrent int
	flagDistribution  string
	flagFullChain     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "apisim",
	Short: "Scenario-driven REST API testing and load generation",
	Long: `apisim runs scripted HTTP scenarios against a target API and validates
responses with declarative assertions, threading extracted values between
steps. The same scenarios drive sustained, rate-controlled load tests.

A project directory holds config/hosts.json, scenario/*.json|yaml and a
result/ directory for reports.

Examples:
  apisim list -P ./projects/example
  apisim run login-flow -P ./projects/example
  apisim loadtest login-flow -P ./projects/example --tps 100 --duration 60`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List scenarios in the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := project.NewManager(flagProject)
		if err != nil {
			return err
		}
		names, err := mgr.ListScenarios()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Execute a scenario once, end to end",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(args[0])
		if err != nil {
			return err
		}
		defer env.close()

		engine := scenario.NewEngine(env.executor, env.logger)
		res := engine.Execute(env.ctx, env.scenario, func(p result.ScenarioProgress) {
			if flagVerbose {
				cli.PrintScenarioProgress(os.Stderr, p)
			}
		})

		cli.PrintScenarioResult(os.Stdout, res)
		if err := env.saveScenario(res); err != nil {
			return err
		}
		if res.Status != result.StatusSuccess {
			env.close()
			os.Exit(1)
		}
		return nil
	},
}

var loadTestCmd = &cobra.Command{
	Use:   "loadtest <scenario>",
	Short: "Run a rate-controlled load test for a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(args[0])
		if err != nil {
			return err
		}
		defer env.close()

		cfg, err := loadTestConfig(cmd, env.scenario)
		if err != nil {
			return err
		}

		engine := loadtest.NewEngine(env.executor, env.logger)
		res, err := engine.Run(env.ctx, env.scenario, cfg, func(p result.LoadTestProgress) {
			cli.PrintLoadTestProgress(os.Stderr, p)
		})
		if err != nil {
			return err
		}

		cli.PrintLoadTestResult(os.Stdout, res)
		return env.saveLoadTest(res)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs recorded in the project database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := project.NewManager(flagProject)
		if err != nil {
			return err
		}
		resultsDir, err := mgr.ResultsDir()
		if err != nil {
			return err
		}
		store, err := report.NewStore(filepath.Join(resultsDir, "results.db"))
		if err != nil {
			return err
		}
		defer store.Close()

		scenarios, err := store.RecentScenarioRuns(flagLimit)
		if err != nil {
			return err
		}
		loadTests, err := store.RecentLoadTestRuns(flagLimit)
		if err != nil {
			return err
		}
		cli.PrintScenarioHistory(os.Stdout, scenarios)
		cli.PrintLoadTestHistory(os.Stdout, loadTests)
		return nil
	},
}

// loadTestConfig merges the scenario's embedded config with CLI overrides.
func loadTestConfig(cmd *cobra.Command, sc *types.Scenario) (*types.LoadTestConfig, error) {
	cfg := &types.LoadTestConfig{}
	if sc.LoadTest != nil {
		*cfg = *sc.LoadTest
	}
	if cmd.Flags().Changed("tps") {
		cfg.TargetTPS = flagTPS
	}
	if cmd.Flags().Changed("duration") {
		cfg.DurationSeconds = flagDuration
	}
	if cmd.Flags().Changed("ramp-up") {
		cfg.RampUpSeconds = flagRampUp
	}
	if cmd.Flags().Changed("max-concurrent") {
		cfg.MaxConcurrent = flagMaxConcurrent
	}
	if cmd.Flags().Changed("distribution") {
		cfg.Distribution = flagDistribution
	}
	if cmd.Flags().Changed("full-chain") {
		cfg.FullChain = flagFullChain
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runEnv bundles everything a command needs for one run.
type runEnv struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   zerolog.Logger
	manager  *project.Manager
	scenario *types.Scenario
	executor *httpexec.Executor
	store    *report.Store
	lock     *runlock.Lock
}

func setup(scenarioName string) (*runEnv, error) {
	level := zerolog.WarnLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	mgr, err := project.NewManager(flagProject)
	if err != nil {
		return nil, err
	}

	lock, err := runlock.Acquire(mgr.Root())
	if err != nil {
		return nil, err
	}

	sc, err := mgr.LoadScenario(scenarioName)
	if err != nil {
		lock.Release()
		return nil, err
	}
	if flagHost != "" {
		sc.Host = flagHost
	}

	hosts, err := mgr.LoadHosts()
	if err != nil {
		lock.Release()
		return nil, err
	}
	host, err := project.ResolveHost(hosts, sc)
	if err != nil {
		lock.Release()
		return nil, err
	}

	maxConcurrent := httpexec.DefaultPoolSize
	if sc.LoadTest != nil && sc.LoadTest.MaxConcurrent > maxConcurrent {
		maxConcurrent = sc.LoadTest.MaxConcurrent
	}
	executor := httpexec.NewExecutor(host, logger, httpexec.WithPoolSize(maxConcurrent))

	var store *report.Store
	if !flagNoSave {
		resultsDir, err := mgr.ResultsDir()
		if err != nil {
			lock.Release()
			return nil, err
		}
		store, err = report.NewStore(filepath.Join(resultsDir, "results.db"))
		if err != nil {
			lock.Release()
			return nil, err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &runEnv{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		manager:  mgr,
		scenario: sc,
		executor: executor,
		store:    store,
		lock:     lock,
	}, nil
}

func (e *runEnv) close() {
	if e.store != nil {
		e.store.Close()
	}
	e.lock.Release()
	e.cancel()
}

func (e *runEnv) saveScenario(res *result.ScenarioResult) error {
	if flagNoSave {
		return nil
	}
	if _, err := e.store.SaveScenarioResult(res); err != nil {
		return err
	}
	dir, err := e.manager.ResultsDir()
	if err != nil {
		return err
	}
	path, err := report.WriteJSON(dir, "scenario", res)
	if err != nil {
		return err
	}
	e.logger.Info().Str("path", path).Msg("report written")
	return nil
}

func (e *runEnv) saveLoadTest(res *result.LoadTestResult) error {
	if flagNoSave {
		return nil
	}
	if _, err := e.store.SaveLoadTestResult(res); err != nil {
		return err
	}
	dir, err := e.manager.ResultsDir()
	if err != nil {
		return err
	}
	path, err := report.WriteJSON(dir, "loadtest", res)
	if err != nil {
		return err
	}
	e.logger.Info().Str("path", path).Msg("report written")
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "P", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "host name override")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&flagNoSave, "no-save", false, "skip report persistence")

	loadTestCmd.Flags().IntVar(&flagTPS, "tps", 0, "target transactions per second")
	loadTestCmd.Flags().IntVar(&flagDuration, "duration", 0, "test duration in seconds")
	loadTestCmd.Flags().IntVar(&flagRampUp, "ramp-up", 0, "ramp-up duration in seconds")
	loadTestCmd.Flags().IntVar(&flagMaxConcurrent, "max-concurrent", 0, "max in-flight requests")
	loadTestCmd.Flags().StringVar(&flagDistribution, "distribution", "", "rate curve: constant|linear|exponential")
	loadTestCmd.Flags().BoolVar(&flagFullChain, "full-chain", false, "run the full scenario per dispatch")

	historyCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum rows per section")

	rootCmd.AddCommand(listCmd, runCmd, loadTestCmd, historyCmd)
}
