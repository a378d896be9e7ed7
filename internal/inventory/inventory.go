// Package inventory scans the content tree: it reads every artifact's
// YAML frontmatter and audits the internal link graph.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/predictionscope/agent/internal/domain"
)

// Item is one artifact found in the content tree.
type Item struct {
	Slug          string
	Bucket        string
	Title         string
	Status        string
	Keywords      []string
	WordCount     int
	URL           string
	InternalLinks []string
}

// internal markdown links look like [anchor](/bucket/slug)
var linkExpr = regexp.MustCompile(`\[[^\]]*\]\((/[^)]+)\)`)

type frontmatter struct {
	Title          string   `yaml:"title"`
	Slug           string   `yaml:"slug"`
	Bucket         string   `yaml:"bucket"`
	Status         string   `yaml:"status"`
	TargetKeywords []string `yaml:"target_keywords"`
	WordCount      int      `yaml:"word_count"`
}

// Scan walks contentDir/<bucket>/*.md and returns every artifact found,
// sorted by URL. A file with unreadable frontmatter still appears, with
// metadata defaulted from its filename.
func Scan(contentDir string) ([]Item, error) {
	buckets, err := os.ReadDir(contentDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}

	var items []Item
	for _, bucket := range buckets {
		if !bucket.IsDir() {
			continue
		}

		dir := filepath.Join(contentDir, bucket.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read bucket %s: %w", bucket.Name(), err)
		}

		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") {
				continue
			}

			slug := strings.TrimSuffix(f.Name(), ".md")
			item := Item{
				Slug:   slug,
				Bucket: bucket.Name(),
				Title:  slug,
				Status: domain.StatusDraft,
				URL:    "/" + bucket.Name() + "/" + slug,
			}

			raw, err := os.ReadFile(filepath.Join(dir, f.Name()))
			if err != nil {
				return nil, fmt.Errorf("read artifact %s: %w", f.Name(), err)
			}

			if fm, ok := parseFrontmatter(string(raw)); ok {
				if fm.Title != "" {
					item.Title = fm.Title
				}
				if fm.Status != "" {
					item.Status = fm.Status
				}
				item.Keywords = fm.TargetKeywords
				item.WordCount = fm.WordCount
			}
			item.InternalLinks = extractLinks(string(raw))

			items = append(items, item)
		}
	}

	sort.Slice(items, func(a, b int) bool { return items[a].URL < items[b].URL })
	return items, nil
}

// LedgerEntries converts scanned items into ledger entries, used to seed
// the ledger when the content tree predates the ledger file.
func LedgerEntries(items []Item) []domain.LedgerEntry {
	entries := make([]domain.LedgerEntry, 0, len(items))
	for _, it := range items {
		primary := ""
		if len(it.Keywords) > 0 {
			primary = it.Keywords[0]
		}
		entries = append(entries, domain.LedgerEntry{
			Slug:           it.Slug,
			Title:          it.Title,
			Bucket:         it.Bucket,
			PrimaryKeyword: primary,
			WordCount:      it.WordCount,
			Status:         it.Status,
		})
	}
	return entries
}

// Audit reports the health of the internal link graph.
type Audit struct {
	TotalPages     int
	OrphanPages    []string
	UnderLinked    []string
	AverageInbound float64
}

// AuditLinks counts inbound links per page and flags orphans (zero
// inbound) and under-linked pages (exactly one).
func AuditLinks(items []Item) Audit {
	inbound := make(map[string]int, len(items))
	for _, it := range items {
		inbound[it.URL] = 0
	}
	for _, it := range items {
		for _, link := range it.InternalLinks {
			if _, ok := inbound[link]; ok && link != it.URL {
				inbound[link]++
			}
		}
	}

	audit := Audit{TotalPages: len(items)}
	total := 0
	for url, count := range inbound {
		total += count
		switch count {
		case 0:
			audit.OrphanPages = append(audit.OrphanPages, url)
		case 1:
			audit.UnderLinked = append(audit.UnderLinked, url)
		}
	}
	sort.Strings(audit.OrphanPages)
	sort.Strings(audit.UnderLinked)

	if len(inbound) > 0 {
		audit.AverageInbound = float64(total) / float64(len(inbound))
	}
	return audit
}

func parseFrontmatter(content string) (frontmatter, bool) {
	var fm frontmatter
	if !strings.HasPrefix(content, "---") {
		return fm, false
	}
	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return fm, false
	}
	if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
		return fm, false
	}
	return fm, true
}

func extractLinks(content string) []string {
	matches := linkExpr.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		links = append(links, m[1])
	}
	return links
}
