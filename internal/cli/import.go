package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"

	"github.com/spf13/cobra"

	"lingo-quiz/internal/config"
	pgstore "lingo-quiz/internal/infra/postgres"
)

// NewImportCmd copies JSON content from a directory into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import metadata and quiz documents from a directory into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "content root; paths are stored relative to it")
	return cmd
}

func runImport(ctx context.Context, configPath, dir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logLevel.Set(cfg.LogLevel())
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	n, err := importDocuments(ctx, pgstore.NewDocumentSource(d.pool), os.DirFS(dir))
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "import: documents stored", "count", n, "dir", dir)

	if d.cache != nil {
		purged, err := d.cache.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purge document cache: %w", err)
		}
		slog.InfoContext(ctx, "import: document cache purged", "keys", purged)
	}
	return nil
}

type documentWriter interface {
	Put(ctx context.Context, path string, data []byte) error
}

// importDocuments stores every .json file under fsys by its slash path.
// Files that are not valid JSON abort the import.
func importDocuments(ctx context.Context, dst documentWriter, fsys fs.FS) (int, error) {
	n := 0
	err := fs.WalkDir(fsys, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || path.Ext(p) != ".json" {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if !json.Valid(data) {
			return fmt.Errorf("%s: not valid JSON", p)
		}
		if err := dst.Put(ctx, p, data); err != nil {
			return fmt.Errorf("store %s: %w", p, err)
		}
		slog.DebugContext(ctx, "import: stored", "path", p)
		n++
		return nil
	})
	return n, err
}
