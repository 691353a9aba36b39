package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"lingo-quiz/internal/config"
	"lingo-quiz/internal/stats"
)

// NewStatsCmd prints the visualization data for the configured storage.
func NewStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print per-theme and global statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStats(cmd.Context(), *configPath, cmd.OutOrStdout())
		},
	}
}

func printStats(ctx context.Context, configPath string, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logLevel.Set(cfg.LogLevel())

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats.NewService(d.repo, d.provider).Visualization(ctx))
}
