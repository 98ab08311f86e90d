package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/search/elastic"
)

type adminFake struct {
	exists  bool
	ensured int
	count   int64
	err     error
}

func (f *adminFake) EnsureIndex(context.Context) (bool, error) {
	f.ensured++
	if f.err != nil {
		return false, f.err
	}
	created := !f.exists
	f.exists = true
	return created, nil
}

func (f *adminFake) Audit(context.Context) (elastic.AuditReport, error) {
	return elastic.AuditReport{Index: "legal-provisions", Present: []string{"act_abbrev"}, Missing: []string{"section_id"}}, f.err
}

func (f *adminFake) Count(context.Context) (int64, error) { return f.count, f.err }

func (f *adminFake) Index() string { return "legal-provisions" }

type corpusFake struct {
	root string
	docs []domain.Document
}

func (f *corpusFake) LoadCorpus(root string) ([]domain.Document, error) {
	f.root = root
	return f.docs, nil
}

type loaderFake struct {
	got int
	err error
}

func (f *loaderFake) Load(_ context.Context, docs []domain.Document) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.got = len(docs)
	return len(docs), nil
}

func run(t *testing.T, deps *indexerDeps, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "indexer", SilenceUsage: true, SilenceErrors: true}
	addCommands(root, func() *indexerDeps { return deps }, "data/corpus")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEnsureIndexCommand(t *testing.T) {
	admin := &adminFake{}
	out, err := run(t, &indexerDeps{admin: admin}, "ensure-index")
	if err != nil {
		t.Fatalf("ensure-index error = %v", err)
	}
	if !strings.Contains(out, "created index legal-provisions") {
		t.Fatalf("unexpected output: %q", out)
	}

	out, _ = run(t, &indexerDeps{admin: admin}, "ensure-index")
	if !strings.Contains(out, "already exists") {
		t.Fatalf("expected skip on second run, got %q", out)
	}
}

func TestLoadCommandUsesRootFlag(t *testing.T) {
	admin := &adminFake{}
	corpus := &corpusFake{docs: []domain.Document{{Text: "a"}, {Text: "b"}}}
	loader := &loaderFake{}

	out, err := run(t, &indexerDeps{admin: admin, corpus: corpus, loader: loader}, "load", "--root", "/srv/acts")
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if corpus.root != "/srv/acts" || loader.got != 2 || admin.ensured != 1 {
		t.Fatalf("unexpected load wiring: root=%q docs=%d ensured=%d", corpus.root, loader.got, admin.ensured)
	}
	if !strings.Contains(out, "indexed 2 documents") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLoadCommandDefaultRootAndError(t *testing.T) {
	corpus := &corpusFake{}
	_, err := run(t, &indexerDeps{admin: &adminFake{}, corpus: corpus, loader: &loaderFake{err: errors.New("bulk failed")}}, "load")
	if err == nil || !strings.Contains(err.Error(), "bulk failed") {
		t.Fatalf("expected loader error, got %v", err)
	}
	if corpus.root != "data/corpus" {
		t.Fatalf("expected default root, got %q", corpus.root)
	}
}

func TestAuditAndCountCommands(t *testing.T) {
	admin := &adminFake{count: 42}
	out, err := run(t, &indexerDeps{admin: admin}, "audit")
	if err != nil || !strings.Contains(out, `"section_id"`) {
		t.Fatalf("audit: err=%v out=%q", err, out)
	}
	out, err = run(t, &indexerDeps{admin: admin}, "count")
	if err != nil || !strings.Contains(out, "legal-provisions: 42 documents") {
		t.Fatalf("count: err=%v out=%q", err, out)
	}
}
