package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/ragserver/config"
	"github.com/mohammad-safakhou/ragserver/internal/rag"
	srv "github.com/mohammad-safakhou/ragserver/internal/server"
)

func main() {
	_ = godotenv.Load()

	var root = &cobra.Command{Use: "ragserver"}
	var cfgPath string
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches . and ./config)")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			return srv.Run(cfg, serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides general.listen)")

	var migDir string
	var direction string
	var steps int
	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if !cfg.Databases.Postgres.Configured() {
				return fmt.Errorf("postgres not configured (databases.postgres.host/dbname or url)")
			}
			return srv.Migrate(migDir, cfg.Databases.Postgres.DSN(), direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	var rebuild bool
	var index = &cobra.Command{
		Use:   "index",
		Short: "Build the document index from the configured corpus folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			engine := rag.NewEngine(rag.Config{
				DocsFolder:   cfg.Documents.Folder,
				IndexPath:    cfg.Documents.IndexPath,
				ChunkSize:    cfg.Documents.ChunkSize,
				ChunkOverlap: cfg.Documents.ChunkOverlap,
				TopK:         cfg.Documents.TopK,
			}, nil, nil)
			if rebuild {
				err = engine.Rebuild()
			} else {
				err = engine.OpenOrBuild()
			}
			if err != nil {
				return err
			}
			log.Printf("index ready at %s", cfg.Documents.IndexPath)
			return nil
		},
	}
	index.Flags().BoolVar(&rebuild, "rebuild", false, "discard any existing index and rebuild from the corpus")

	root.AddCommand(serve, migrate, index)
	_ = root.Execute()
}
