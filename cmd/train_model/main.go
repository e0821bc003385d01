package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carregistry/config"
	"carregistry/db"
	"carregistry/logging"
	"carregistry/ml"
	"carregistry/pipeline"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type trainFlags struct {
	configPath string
	seedFile   string
	testRatio  float64
	seedRand   int64
	record     bool
	format     string
}

func newRootCmd(out io.Writer) *cobra.Command {
	var f trainFlags

	c := &cobra.Command{
		Use:           "train_model",
		Short:         "Train the mileage condition model offline and report held-out metrics",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd.Context(), out, f)
		},
	}

	c.Flags().StringVar(&f.configPath, "config", "config.yaml", "Config file (database path and training options)")
	c.Flags().StringVar(&f.seedFile, "seed", "", "Train from this CSV (mileage,label) instead of the database")
	c.Flags().Float64Var(&f.testRatio, "test-ratio", 0.2, "Share of observations held out for evaluation")
	c.Flags().Int64Var(&f.seedRand, "seed-rand", 42, "Seed for the train/test shuffle")
	c.Flags().BoolVar(&f.record, "record", false, "Write the run to the training log")
	c.Flags().StringVar(&f.format, "format", "pretty", "Output format: pretty|json")
	return c
}

type trainReport struct {
	Model      ml.Info    `json:"model"`
	Metrics    ml.Metrics `json:"metrics"`
	TrainCount int        `json:"train_count"`
	TestCount  int        `json:"test_count"`
}

func runTrain(ctx context.Context, out io.Writer, f trainFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.format != "pretty" && f.format != "json" {
		return fmt.Errorf("unknown format %q", f.format)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		// 使用 --seed 时可以不依赖配置文件
		if f.seedFile == "" || f.record {
			return err
		}
		def := config.Default()
		cfg = &def
	}

	logger, err := logging.New(config.LogConfig{Level: "warn"})
	if err != nil {
		return err
	}
	defer logger.Sync()

	var (
		observations []ml.Observation
		database     *db.DB
	)
	if f.record || f.seedFile == "" {
		database, err = db.Open(db.Config{Path: cfg.Database.Path, EnableWAL: cfg.Database.EnableWAL}, logger)
		if err != nil {
			return err
		}
		defer database.Close()
	}

	if f.seedFile != "" {
		observations, err = loadSeed(f.seedFile, cfg.Observations.MaxMileage, logger)
	} else {
		observations, err = db.NewObservationRepository(database).ListObservations(ctx)
	}
	if err != nil {
		return err
	}

	train, test := ml.SplitDataset(observations, f.testRatio, f.seedRand)
	model, err := ml.NewTrainingPipeline(ml.TrainOptions{
		LearningRate: cfg.ML.LearningRate,
		MaxEpochs:    cfg.ML.MaxEpochs,
		Tolerance:    cfg.ML.Tolerance,
		L2:           cfg.ML.L2,
	}).Train(train)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	// 样本过少时没有测试集，退回训练集评估
	evalSet := test
	if len(evalSet) == 0 {
		evalSet = train
	}
	metrics, err := ml.Evaluate(model, evalSet)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	if f.record {
		if err := db.NewTrainingLogRepository(database).RecordTraining(ctx, model.Info(), metrics); err != nil {
			return fmt.Errorf("record training: %w", err)
		}
	}

	return printReport(out, trainReport{
		Model:      model.Info(),
		Metrics:    metrics,
		TrainCount: len(train),
		TestCount:  len(test),
	}, f.format)
}

func loadSeed(path string, maxMileage float64, logger *zap.Logger) ([]ml.Observation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := pipeline.ParseObservations(file)
	if err != nil {
		return nil, err
	}
	observations, issues := pipeline.NewDataCleaner(maxMileage, logger).Clean(records)
	for _, issue := range issues {
		logger.Warn("rejected seed row", zap.Int("row", issue.Row), zap.String("reason", issue.Message))
	}
	if len(observations) == 0 {
		return nil, errors.New("seed file contains no usable observations")
	}
	return observations, nil
}

func printReport(w io.Writer, r trainReport, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	_, err := fmt.Fprintf(w, `model %s
  samples  train=%d test=%d
  bounds   min=%.0f max=%.0f
  weights  w=%.6f b=%.6f (epochs=%d)
  metrics  accuracy=%.2f precision=%.2f recall=%.2f log_loss=%.4f
`,
		r.Model.Version,
		r.TrainCount, r.TestCount,
		r.Model.MinMileage, r.Model.MaxMileage,
		r.Model.Weight, r.Model.Bias, r.Model.Epochs,
		r.Metrics.Accuracy, r.Metrics.Precision, r.Metrics.Recall, r.Metrics.LogLoss)
	return err
}
