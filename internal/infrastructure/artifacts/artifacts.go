// Package artifacts renders produced articles to markdown files with YAML
// frontmatter under the content directory.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/ports"
)

// FileStore writes each article at contentDir/<bucket>/<slug>.md — the
// path is a pure function of (bucket, slug), so a re-run overwrites an
// orphaned draft instead of duplicating it.
type FileStore struct {
	contentDir string
}

var _ ports.ArtifactStore = (*FileStore)(nil)

// NewFileStore wires the content root directory.
func NewFileStore(contentDir string) *FileStore {
	return &FileStore{contentDir: contentDir}
}

type frontmatter struct {
	Title           string   `yaml:"title"`
	Slug            string   `yaml:"slug"`
	Bucket          string   `yaml:"bucket"`
	MetaDescription string   `yaml:"meta_description,omitempty"`
	TargetKeywords  []string `yaml:"target_keywords,omitempty"`
	GeneratedAt     string   `yaml:"generated_at"`
	WordCount       int      `yaml:"word_count"`
	Status          string   `yaml:"status"`
}

// Write persists the rendered article and returns its path.
func (s *FileStore) Write(ctx context.Context, art domain.Article) (string, error) {
	rendered, err := Render(art)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.contentDir, art.Bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bucket dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, art.Slug+".md")
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", path, err)
	}
	return path, nil
}

// Render wraps the article body in markdown with YAML frontmatter. A
// frontmatter block the writer may have included itself is stripped
// first so the metadata is never duplicated.
func Render(art domain.Article) (string, error) {
	meta, err := yaml.Marshal(frontmatter{
		Title:           art.Title,
		Slug:            art.Slug,
		Bucket:          art.Bucket,
		MetaDescription: art.MetaDescription,
		TargetKeywords:  art.Keywords,
		GeneratedAt:     art.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
		WordCount:       art.WordCount,
		Status:          domain.StatusDraft,
	})
	if err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}

	body := strings.TrimSpace(stripFrontmatter(art.Content))
	return fmt.Sprintf("---\n%s---\n\n%s\n", meta, body), nil
}

func stripFrontmatter(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}
	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return content
	}
	return parts[2]
}
