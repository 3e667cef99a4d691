package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/draftroom/draftroom/internal/api"
	"github.com/draftroom/draftroom/internal/autosave"
	"github.com/draftroom/draftroom/internal/commit"
	"github.com/draftroom/draftroom/internal/config"
	"github.com/draftroom/draftroom/internal/draft"
	"github.com/draftroom/draftroom/internal/ingest"
	"github.com/draftroom/draftroom/internal/remote"
	"github.com/draftroom/draftroom/internal/rewrite"
	"github.com/draftroom/draftroom/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "draftroom",
		Short: "Local-first staging area for reviewing and committing content drafts",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(clearCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore(cfg config.Config) (*store.Store, func(), error) {
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	s, err := store.New(db, cfg.StorageCapBytes)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	return s, func() { db.Close() }, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the draft review API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()

			s, closeDB, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			// Build the rewrite client.
			var rewriter rewrite.Client
			if cfg.UseStubRewrite() {
				log.Println("REWRITE_API_KEY not set, using stub rewrite client")
				rewriter = &rewrite.StubClient{}
			} else {
				rewriter = rewrite.NewHTTPClient(cfg.RewriteKey,
					rewrite.WithBaseURL(cfg.RewriteBaseURL),
					rewrite.WithModel(cfg.RewriteModel),
					rewrite.WithTimeout(cfg.HTTPTimeout),
				)
			}

			remoteClient := remote.NewHTTPClient(cfg.RemoteBaseURL, cfg.RemoteToken, cfg.HTTPTimeout)

			drafts := draft.NewService(s, rewriter, api.RequestConfirmer, nil)
			ingestor := ingest.New(s, ingest.NewHTTPExtractor(cfg.HTTPTimeout), nil)
			pipeline := commit.NewPipeline(s, s, remoteClient, nil)
			bulk := commit.NewBulk(pipeline, nil)
			scheduler := autosave.New(s, cfg.AutosaveDelay, nil)
			defer scheduler.Close()

			srv := api.New(s, drafts, ingestor, pipeline, bulk, scheduler)
			httpServer := &http.Server{
				Addr:    ":" + cfg.Port,
				Handler: srv.Handler(),
			}

			// Graceful shutdown.
			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh
				log.Println("shutting down...")
				httpServer.Shutdown(context.Background())
			}()

			fmt.Printf("draftroom server listening on http://localhost:%s\n", cfg.Port)
			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all local batches, drafts, and stored files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()

			s, closeDB, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			if !yes {
				fmt.Print("Delete ALL local drafts, batches, and stored files? [y/N] ")
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Println("aborted")
					return nil
				}
			}

			if err := s.ClearAll(cmd.Context()); err != nil {
				return fmt.Errorf("clear drafts: %w", err)
			}
			fmt.Println("local drafts cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}
