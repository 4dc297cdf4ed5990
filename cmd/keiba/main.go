// Package main provides the keiba command line tool for partitioning, training,
// scoring and backtesting the race corpus.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/keiba-value/internal/backtest"
	"github.com/yourusername/keiba-value/internal/config"
	"github.com/yourusername/keiba-value/internal/database"
	"github.com/yourusername/keiba-value/internal/logger"
	"github.com/yourusername/keiba-value/internal/metrics"
	"github.com/yourusername/keiba-value/internal/repository"
	"github.com/yourusername/keiba-value/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	envFile    string
	log        *logrus.Logger
	cfg        *config.Config
	db         *database.DB
	repos      *repository.Repositories
	pipeline   *service.Pipeline
)

var rootCmd = &cobra.Command{
	Use:           "keiba",
	Short:         "Value betting pipeline for horse race results",
	Long:          `Partitions a race corpus, trains a win classifier, scores the evaluation races and backtests staking policies.`,
	Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(cmd.Context()); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return flushMetrics()
	},
}

var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Split the raw corpus into training and evaluation directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		ratio, _ := cmd.Flags().GetFloat64("ratio")
		var seed *int64
		if cmd.Flags().Changed("seed") {
			value, _ := cmd.Flags().GetInt64("seed")
			seed = &value
		}

		result, err := pipeline.PartitionRawData(cmd.Context(), ratio, seed)
		if err != nil {
			return err
		}
		fmt.Printf("Partitioned %d races with seed %d: %d training, %d evaluation\n",
			result.Total(), result.Seed, len(result.Training), len(result.Evaluation))
		return nil
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the win classifier on the training corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := pipeline.Train(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Model written to %s\n", cfg.Model.Path)
		fmt.Printf("  Columns: %v\n", report.Columns)
		fmt.Printf("  Samples: %d train, %d validation\n", report.TrainSamples, report.ValidationSamples)
		fmt.Printf("  Accuracy: %.4f  Precision: %.4f  Recall: %.4f  Log loss: %.4f\n",
			report.Accuracy, report.Precision, report.Recall, report.LogLoss)
		return nil
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score the evaluation corpus and list the highest expected values",
	RunE: func(cmd *cobra.Command, args []string) error {
		top, _ := cmd.Flags().GetInt("top")
		scored, err := pipeline.PredictEvaluation(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Scored %d runners\n", len(scored))
		for i, row := range backtest.TopByExpectedValue(scored, top) {
			fmt.Printf("%2d. race %s #%d %s  odds %.1f  p %.4f  EV %.4f\n",
				i+1, row.RaceID, row.HorseNumber, row.HorseName, row.WinOdds, row.NormalizedWinRate, row.ExpectedValue)
		}
		return nil
	},
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Simulate a staking policy over the evaluation corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, _ := cmd.Flags().GetString("policy")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		stake, _ := cmd.Flags().GetFloat64("stake")

		report, err := pipeline.Backtest(cmd.Context(), policy, threshold, stake)
		if err != nil {
			return err
		}
		fmt.Print(backtest.GenerateConsoleReport(report))
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Backtest a policy across several expected value thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, _ := cmd.Flags().GetString("policy")
		thresholds, _ := cmd.Flags().GetFloat64Slice("thresholds")

		sweep, err := pipeline.Sweep(cmd.Context(), policy, thresholds)
		if err != nil {
			return err
		}
		fmt.Print(backtest.GenerateSweepReport(sweep))
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted backtest runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if repos == nil {
			return errors.New("run history requires database.enabled")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		policy, _ := cmd.Flags().GetString("policy")

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		runs, err := repos.BacktestRun.GetLatest(ctx, limit)
		if policy != "" {
			runs, err = repos.BacktestRun.GetByPolicy(ctx, policy, limit)
		}
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, run := range runs {
			fmt.Printf("%s  %s  %-12s threshold %.2f  bets %4d  ROI %7.2f%%  model %s\n",
				run.ID, run.RunDate.Format(time.RFC3339), run.Policy, run.Threshold, run.NumBets, run.ROI, run.ModelVersion)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the configuration")

	partitionCmd.Flags().Float64("ratio", 0, "Training share of races (defaults to partition.ratio)")
	partitionCmd.Flags().Int64("seed", 0, "Shuffle seed (defaults to partition.seed, or a fresh seed)")

	predictCmd.Flags().Int("top", backtest.DefaultTopN, "Number of runners to list")

	backtestCmd.Flags().String("policy", "", "Staking policy: flat or proportional (defaults to backtest.policy)")
	backtestCmd.Flags().Float64("threshold", -1, "Expected value threshold (defaults to backtest.threshold)")
	backtestCmd.Flags().Float64("stake", 0, "Unit stake for flat, race budget for proportional")

	sweepCmd.Flags().String("policy", "", "Staking policy: flat or proportional (defaults to backtest.policy)")
	sweepCmd.Flags().Float64Slice("thresholds", nil, "Thresholds to evaluate (defaults to backtest.sweep_thresholds)")

	runsCmd.Flags().Int("limit", 20, "Maximum runs to list")
	runsCmd.Flags().String("policy", "", "Only list runs for this policy")

	rootCmd.AddCommand(partitionCmd, trainCmd, predictCmd, backtestCmd, sweepCmd, runsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if db != nil {
		db.Close()
	}
	os.Exit(exitCode(err))
}

// exitCode reports recoverable pipeline conditions such as a missing corpus
// without failing the process.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if service.IsRecoverable(err) {
		if log != nil {
			log.WithError(err).Warn("Nothing to do")
		} else {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		return 0
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func loadConfig(ctx context.Context) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}
	if err := config.ApplySecrets(ctx, cfg); err != nil {
		return err
	}
	return config.Validate(cfg)
}

func setupDependencies(ctx context.Context) error {
	log = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	var opts []service.Option
	if cfg.Database.Enabled {
		var err error
		db, err = database.Initialize(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		repos, err = repository.NewRepositories(db)
		if err != nil {
			return fmt.Errorf("failed to initialize repositories: %w", err)
		}
		opts = append(opts, service.WithRunRepository(repos.BacktestRun))
	}

	var err error
	pipeline, err = service.NewPipeline(cfg, log, opts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	return nil
}

func flushMetrics() error {
	if cfg == nil || !cfg.Metrics.Enabled || cfg.Metrics.TextfilePath == "" {
		return nil
	}
	if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		return err
	}
	log.WithField("path", cfg.Metrics.TextfilePath).Debug("Metrics written")
	return nil
}
