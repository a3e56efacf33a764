package verify

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/docpub/internal/config"
	"git.home.luguber.info/inful/docpub/internal/logfields"
)

// Problem is one verification finding.
type Problem struct {
	File   string // file the problem was found in, relative to the scanned root
	Link   string // offending link destination
	Reason string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s (%s)", p.File, p.Link, p.Reason)
}

// Report aggregates verification findings.
type Report struct {
	FilesScanned int
	LinksChecked int
	Problems     []Problem
}

// Service verifies generated output and preflights markdown sources.
type Service struct {
	cfg config.VerifyConfig
}

// NewService creates a verification service.
func NewService(cfg config.VerifyConfig) *Service { return &Service{cfg: cfg} }

// CheckOutput walks the rendered output tree and verifies that every internal
// link resolves to a file inside the tree. External links are not fetched;
// publishing must not depend on third-party availability.
func (s *Service) CheckOutput(outputDir string) (*Report, error) {
	report := &Report{}

	// Index of normalized existing paths for case/encoding tolerant lookup.
	existing := make(map[string]struct{})
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(outputDir, path)
		if rerr != nil {
			return rerr
		}
		existing[normalizePath(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk output tree: %w", err)
	}

	err = filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		rel, _ := filepath.Rel(outputDir, path)
		report.FilesScanned++

		links, lerr := ExtractLinks(path, s.cfg.BaseURL)
		if lerr != nil {
			report.Problems = append(report.Problems, Problem{File: rel, Reason: fmt.Sprintf("unparseable HTML: %v", lerr)})
			return nil
		}
		for _, link := range links {
			if !link.IsInternal {
				continue
			}
			report.LinksChecked++
			if target, ok := resolveInternal(rel, link.URL); ok {
				if _, found := existing[normalizePath(target)]; !found {
					report.Problems = append(report.Problems, Problem{File: rel, Link: link.URL, Reason: "target missing from output"})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(report.Problems) > 0 {
		slog.Warn("Output verification found problems",
			slog.Int("problems", len(report.Problems)),
			slog.Int("links_checked", report.LinksChecked))
	} else {
		slog.Info("Output verification passed",
			slog.Int("files", report.FilesScanned),
			slog.Int("links_checked", report.LinksChecked))
	}
	return report, nil
}

// PreflightSources scans markdown files under sourceDir for relative links
// pointing at files that do not exist. Generators rewrite most links, so this
// only catches targets that are broken before generation even starts.
func (s *Service) PreflightSources(sourceDir string) (*Report, error) {
	report := &Report{}
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, _ := filepath.Rel(sourceDir, path)
		report.FilesScanned++

		body, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		for _, link := range ExtractMarkdownLinks(body) {
			dest := link.Destination
			if dest == "" || strings.Contains(dest, "://") || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "mailto:") {
				continue
			}
			report.LinksChecked++
			target := dest
			if i := strings.IndexAny(target, "#?"); i >= 0 {
				target = target[:i]
			}
			if target == "" {
				continue
			}
			abs := filepath.Join(filepath.Dir(path), filepath.FromSlash(target))
			if _, serr := os.Stat(abs); serr != nil {
				report.Problems = append(report.Problems, Problem{File: rel, Link: dest, Reason: "relative target not found"})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to preflight sources: %w", err)
	}
	if len(report.Problems) > 0 {
		slog.Warn("Source preflight found dangling links", slog.Int("problems", len(report.Problems)), logfields.Path(sourceDir))
	}
	return report, nil
}

// Strict reports whether verification problems should fail the run.
func (s *Service) Strict() bool { return s.cfg.Strict }

// resolveInternal turns a link found in file rel into an output-relative
// target path. Returns ok=false for anchors and query-only links.
func resolveInternal(rel, link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil || u.Path == "" {
		return "", false
	}
	p := u.Path
	if strings.HasPrefix(p, "/") {
		p = strings.TrimPrefix(p, "/")
	} else {
		p = filepath.ToSlash(filepath.Join(filepath.Dir(rel), p))
	}
	// Directory-style links resolve to their index document.
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	return p, true
}

// normalizePath makes path comparison tolerant to unicode encoding
// differences between filesystems (NFC vs NFD file names).
func normalizePath(p string) string {
	return norm.NFC.String(filepath.ToSlash(p))
}
