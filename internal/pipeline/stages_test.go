package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"git.home.luguber.info/inful/docpub/internal/config"
)

func verifyState(t *testing.T, strict bool) *RunState {
	t.Helper()
	checkout := t.TempDir()
	cfg := &config.Config{}
	cfg.Generator.SourceDir = "docs"
	cfg.Generator.OutputDir = "site"
	cfg.Verify = config.VerifyConfig{Enabled: true, Strict: strict}
	return &RunState{
		Config:       cfg,
		Report:       NewRunReport("verify-test", TriggerManual),
		CheckoutPath: checkout,
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

// TestVerifyStageWarnsWithoutStrict tolerates broken links when not strict.
func TestVerifyStageWarnsWithoutStrict(t *testing.T) {
	state := verifyState(t, false)
	writeTree(t, state.CheckoutPath, map[string]string{
		"docs/index.md":   "[broken](missing.md)",
		"site/index.html": `<html><a href="gone.html">x</a></html>`,
	})

	if err := stageVerify(context.Background(), state); err != nil {
		t.Fatalf("non-strict verify must not fail: %v", err)
	}
}

// TestVerifyStageStrictFailsOnSourcePreflight proves the markdown preflight
// runs inside the stage: the rendered output is clean, only a source link
// is dangling.
func TestVerifyStageStrictFailsOnSourcePreflight(t *testing.T) {
	state := verifyState(t, true)
	writeTree(t, state.CheckoutPath, map[string]string{
		"docs/index.md":   "[broken](missing.md)",
		"site/index.html": `<html>no links</html>`,
	})

	err := stageVerify(context.Background(), state)
	if err == nil {
		t.Fatal("expected strict verification to fail on dangling source link")
	}
}

// TestVerifyStageStrictFailsOnOutput fails on broken internal output links.
func TestVerifyStageStrictFailsOnOutput(t *testing.T) {
	state := verifyState(t, true)
	writeTree(t, state.CheckoutPath, map[string]string{
		"docs/index.md":   "# clean\n",
		"site/index.html": `<html><a href="gone.html">x</a></html>`,
	})

	if err := stageVerify(context.Background(), state); err == nil {
		t.Fatal("expected strict verification to fail on broken output link")
	}
}

// TestVerifyStageStrictPassesWhenClean succeeds with resolvable links on
// both sides.
func TestVerifyStageStrictPassesWhenClean(t *testing.T) {
	state := verifyState(t, true)
	writeTree(t, state.CheckoutPath, map[string]string{
		"docs/index.md":   "[ok](guide.md)",
		"docs/guide.md":   "# guide\n",
		"site/index.html": `<html><a href="guide.html">ok</a></html>`,
		"site/guide.html": `<html></html>`,
	})

	if err := stageVerify(context.Background(), state); err != nil {
		t.Fatalf("strict verify on clean tree: %v", err)
	}
}

// TestVerifyStageSkippedWhenDisabled returns the skip sentinel.
func TestVerifyStageSkippedWhenDisabled(t *testing.T) {
	state := verifyState(t, false)
	state.Config.Verify.Enabled = false

	if err := stageVerify(context.Background(), state); !errors.Is(err, ErrStageSkipped) {
		t.Fatalf("expected skip, got %v", err)
	}
}
