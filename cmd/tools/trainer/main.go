// Command trainer fits the cleaning pipeline and the classifier on a raw
// credit dataset and writes a versioned model artifact.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"credit-risk-engine/internal/common/config"
	"credit-risk-engine/internal/common/logger"
	"credit-risk-engine/internal/model/artifact"
	"credit-risk-engine/internal/training"
	"credit-risk-engine/pkg/registry"
)

var (
	configPath   string
	dataPath     string
	outputPath   string
	snapshotPath string
	modelVersion string
	synthetic    int
	register     bool
	activate     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "trainer",
	Short: "Train the credit score model",
	Long: `trainer loads a raw credit CSV, fits the cleaning pipeline and the
gradient-boosted classifier, evaluates on a stratified hold-out split and
writes a checksummed artifact.

Examples:
  # Train from the configured dataset
  trainer --config configs/config.yaml

  # Smoke run on 5000 synthetic rows, registered and served
  trainer --synthetic 5000 --activate`,
	SilenceUsage: true,
	RunE:         runTrain,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "", "config file (default: configs/config.yaml lookup)")
	flags.StringVar(&dataPath, "data", "", "training CSV, overrides training.data_path")
	flags.StringVar(&outputPath, "output", "", "artifact path, overrides training.artifact_path")
	flags.StringVar(&snapshotPath, "snapshot", "", "write the cleaned training matrix to this CSV")
	flags.StringVar(&modelVersion, "model-version", "", "model version (default: gbdt-<timestamp>)")
	flags.IntVar(&synthetic, "synthetic", 0, "train on N generated rows instead of a CSV")
	flags.BoolVar(&register, "register", true, "add the artifact to the model registry")
	flags.BoolVar(&activate, "activate", false, "register the artifact as the served model")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trainCfg, err := training.ConfigFromSettings(cfg.Training, modelVersion)
	if err != nil {
		return err
	}

	ds, err := loadDataset(cfg, log)
	if err != nil {
		return err
	}

	snapshot := snapshotPath
	if snapshot == "" {
		snapshot = cfg.Training.SnapshotPath
	}
	out, err := training.NewTrainer(trainCfg, log).Execute(ctx, &training.Input{
		Dataset:      ds,
		SnapshotPath: snapshot,
	})
	if err != nil {
		return err
	}

	path := outputPath
	if path == "" {
		path = cfg.Training.ArtifactPath
	}
	if err := artifact.Save(path, out.Artifact); err != nil {
		return err
	}

	printReport(cmd, out, path)

	if register || activate {
		if err := registerArtifact(cfg.Registry.Path, path, out.Artifact); err != nil {
			return err
		}
		log.Info("Artifact registered", map[string]interface{}{
			"registry": cfg.Registry.Path,
			"version":  out.Artifact.ModelVersion,
			"active":   activate,
		})
	}
	return nil
}

func loadDataset(cfg *config.Config, log logger.Logger) (*training.Dataset, error) {
	if synthetic > 0 {
		log.Info("Generating synthetic dataset", map[string]interface{}{"rows": synthetic, "seed": cfg.Training.Seed})
		return training.Synthetic(synthetic, cfg.Training.Seed), nil
	}

	path := dataPath
	if path == "" {
		path = cfg.Training.DataPath
	}
	ds, report, err := training.LoadCSV(path)
	if err != nil {
		return nil, err
	}
	log.Info("Dataset loaded", map[string]interface{}{
		"path":          path,
		"rows":          report.Rows,
		"droppedLabels": report.DroppedLabels,
	})
	return ds, nil
}

func registerArtifact(registryPath, artifactPath string, a *artifact.Artifact) error {
	reg, err := registry.LoadOrNew(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	status := registry.StatusCandidate
	if activate {
		status = registry.StatusActive
	}
	accuracy := 0.0
	if a.Metrics != nil {
		accuracy = a.Metrics.Accuracy
	}
	if err := reg.Register(registry.Model{
		Version:   a.ModelVersion,
		Path:      artifactPath,
		Checksum:  a.Checksum,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		Accuracy:  accuracy,
		Status:    status,
	}); err != nil {
		return err
	}
	return reg.Save(registryPath)
}

func printReport(cmd *cobra.Command, out *training.Output, path string) {
	w := cmd.OutOrStdout()
	m := out.Metrics

	fmt.Fprintf(w, "artifact:  %s\n", path)
	fmt.Fprintf(w, "version:   %s\n", out.Artifact.ModelVersion)
	fmt.Fprintf(w, "checksum:  %s\n", out.Artifact.Checksum)
	fmt.Fprintf(w, "rows:      train=%d test=%d\n", m.TrainRows, m.TestRows)
	fmt.Fprintf(w, "accuracy:  %.4f\n\n", m.Accuracy)

	fmt.Fprintf(w, "%-10s %9s %9s %9s %8s\n", "class", "precision", "recall", "f1", "support")
	for _, name := range out.Artifact.ClassNames {
		c := m.PerClass[name]
		fmt.Fprintf(w, "%-10s %9.4f %9.4f %9.4f %8d\n", name, c.Precision, c.Recall, c.F1, c.Support)
	}

	type feature struct {
		name string
		gain float64
	}
	features := make([]feature, 0, len(out.Importance))
	for name, gain := range out.Importance {
		features = append(features, feature{name, gain})
	}
	sort.Slice(features, func(i, j int) bool { return features[i].gain > features[j].gain })
	if len(features) > 10 {
		features = features[:10]
	}

	fmt.Fprintln(w, "\ntop features by gain:")
	for _, f := range features {
		fmt.Fprintf(w, "  %-28s %12.2f\n", f.name, f.gain)
	}
}
