package verify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/docpub/internal/config"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// TestCheckOutputResolvesInternalLinks accepts relative, root-relative and
// directory-style links that exist.
func TestCheckOutputResolvesInternalLinks(t *testing.T) {
	out := t.TempDir()
	writeFile(t, out, "index.html", `<html><body>
		<a href="api/ref.html">api</a>
		<a href="/guide/">guide</a>
		<a href="https://external.example.com/x">ext</a>
		<img src="assets/logo.png">
	</body></html>`)
	writeFile(t, out, "api/ref.html", `<html><a href="../index.html">home</a></html>`)
	writeFile(t, out, "guide/index.html", `<html></html>`)
	writeFile(t, out, "assets/logo.png", "png")

	report, err := NewService(config.VerifyConfig{Enabled: true}).CheckOutput(out)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(report.Problems) != 0 {
		t.Fatalf("expected no problems, got %v", report.Problems)
	}
	if report.FilesScanned != 3 {
		t.Fatalf("expected 3 html files scanned, got %d", report.FilesScanned)
	}
	if report.LinksChecked == 0 {
		t.Fatal("expected internal links to be checked")
	}
}

// TestCheckOutputFlagsMissingTargets reports internal links with no file.
func TestCheckOutputFlagsMissingTargets(t *testing.T) {
	out := t.TempDir()
	writeFile(t, out, "index.html", `<html><a href="missing.html">gone</a></html>`)

	report, err := NewService(config.VerifyConfig{Enabled: true}).CheckOutput(out)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(report.Problems) != 1 {
		t.Fatalf("expected 1 problem, got %v", report.Problems)
	}
	if report.Problems[0].Link != "missing.html" {
		t.Fatalf("unexpected problem: %+v", report.Problems[0])
	}
}

// TestCheckOutputIgnoresAnchorsAndExternal skips anchors, mailto and
// off-site links.
func TestCheckOutputIgnoresAnchorsAndExternal(t *testing.T) {
	out := t.TempDir()
	writeFile(t, out, "index.html", `<html>
		<a href="#section">anchor</a>
		<a href="mailto:docs@example.com">mail</a>
		<a href="https://other.example.com/page.html">other</a>
	</html>`)

	report, err := NewService(config.VerifyConfig{Enabled: true, BaseURL: "https://docs.example.com"}).CheckOutput(out)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(report.Problems) != 0 {
		t.Fatalf("expected no problems, got %v", report.Problems)
	}
}

// TestPreflightSources flags dangling relative markdown links only.
func TestPreflightSources(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "index.md", strings.Join([]string{
		"# Docs",
		"[ok](guide.md)",
		"[anchor ok](guide.md#install)",
		"[external](https://example.com/page)",
		"[broken](missing.md)",
		"![image](img/logo.png)",
	}, "\n"))
	writeFile(t, src, "guide.md", "# Guide\n")

	report, err := NewService(config.VerifyConfig{Enabled: true}).PreflightSources(src)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	var broken []string
	for _, p := range report.Problems {
		broken = append(broken, p.Link)
	}
	if len(broken) != 2 {
		t.Fatalf("expected missing.md and img/logo.png flagged, got %v", broken)
	}
}

// TestExtractLinksFromReader covers tag and attribute extraction.
func TestExtractLinksFromReader(t *testing.T) {
	links, err := ExtractLinksFromReader(strings.NewReader(`<html><head>
		<link rel="stylesheet" href="style.css">
		<script src="app.js"></script>
	</head><body>
		<a href="page.html">Page</a>
		<img src="logo.png" alt="Logo">
	</body></html>`), "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	byTag := map[string]string{}
	for _, l := range links {
		byTag[l.Tag] = l.URL
	}
	want := map[string]string{"link": "style.css", "script": "app.js", "a": "page.html", "img": "logo.png"}
	for tag, url := range want {
		if byTag[tag] != url {
			t.Fatalf("tag %s: got %q want %q (all: %v)", tag, byTag[tag], url, byTag)
		}
	}
}

// TestExtractMarkdownLinks covers inline, image, autolink and reference forms.
func TestExtractMarkdownLinks(t *testing.T) {
	body := []byte(strings.Join([]string{
		"[inline](a.md)",
		"![img](b.png)",
		"<https://auto.example.com>",
		"[ref][1]",
		"",
		"[1]: c.md",
	}, "\n"))
	links := ExtractMarkdownLinks(body)
	dests := map[string]bool{}
	for _, l := range links {
		dests[l.Destination] = true
	}
	for _, want := range []string{"a.md", "b.png", "https://auto.example.com", "c.md"} {
		if !dests[want] {
			t.Fatalf("missing destination %s in %v", want, dests)
		}
	}
}
