package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/legal-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/legal-rag-assistant/internal/config"
	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/search/elastic"
)

// indexAdmin is the part of the Elasticsearch client the CLI drives.
type indexAdmin interface {
	EnsureIndex(ctx context.Context) (bool, error)
	Audit(ctx context.Context) (elastic.AuditReport, error)
	Count(ctx context.Context) (int64, error)
	Index() string
}

type corpusLoader interface {
	LoadCorpus(root string) ([]domain.Document, error)
}

type documentLoader interface {
	Load(ctx context.Context, docs []domain.Document) (int, error)
}

type indexerDeps struct {
	admin  indexAdmin
	corpus corpusLoader
	loader documentLoader
}

func newRootCmd(cfg config.Config) *cobra.Command {
	var deps *indexerDeps
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Build and inspect the legal provision index",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			stack, err := bootstrap.NewSearchStack(cfg)
			if err != nil {
				return err
			}
			deps = &indexerDeps{admin: stack.Index, corpus: stack.Parser, loader: stack.Loader}
			return nil
		},
	}
	addCommands(root, func() *indexerDeps { return deps }, cfg.CorpusRoot)
	return root
}

func addCommands(root *cobra.Command, deps func() *indexerDeps, defaultRoot string) {
	var (
		corpusRoot string
		timeout    time.Duration
	)

	ensureCmd := &cobra.Command{
		Use:   "ensure-index",
		Short: "Create the provision index with its mapping if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin := deps().admin
			created, err := admin.EnsureIndex(cmd.Context())
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created index %s\n", admin.Index())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "index %s already exists\n", admin.Index())
			}
			return nil
		},
	}

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Parse every act file under the corpus root, embed and bulk-index it",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := deps()
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if _, err := d.admin.EnsureIndex(ctx); err != nil {
				return err
			}
			docs, err := d.corpus.LoadCorpus(corpusRoot)
			if err != nil {
				return err
			}
			started := time.Now()
			indexed, err := d.loader.Load(ctx, docs)
			if err != nil {
				return err
			}
			slog.Info("corpus_loaded", "root", corpusRoot, "documents", indexed, "took_ms", time.Since(started).Milliseconds())
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents into %s\n", indexed, d.admin.Index())
			return nil
		},
	}
	loadCmd.Flags().StringVar(&corpusRoot, "root", defaultRoot, "directory holding the act JSON files")
	loadCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall load deadline")

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Report which filter fields carry a keyword subfield",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := deps().admin.Audit(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of indexed provision documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin := deps().admin
			n, err := admin.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d documents\n", admin.Index(), n)
			return nil
		},
	}

	root.AddCommand(ensureCmd, loadCmd, auditCmd, countCmd)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
