// Package github submits produced drafts to the content repository as a
// pull request for human review.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/predictionscope/agent/internal/config"
	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/infrastructure/artifacts"
	"github.com/predictionscope/agent/internal/ports"
)

// Publisher opens one branch and one pull request per run. It never
// merges; merging is the human reviewer's call.
type Publisher struct {
	apiBase    string
	owner      string
	repo       string
	baseBranch string
	token      string
	client     *http.Client
}

var _ ports.ReviewPublisher = (*Publisher)(nil)

// NewPublisher wires the target repository.
func NewPublisher(cfg config.GitHubConfig, client *http.Client) *Publisher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	base := cfg.BaseBranch
	if base == "" {
		base = "main"
	}
	return &Publisher{
		apiBase:    strings.TrimSuffix(cfg.APIBase, "/"),
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		baseBranch: base,
		token:      cfg.Token,
		client:     client,
	}
}

// OpenReview pushes the rendered drafts to a fresh branch and opens a PR.
// Returns the PR URL.
func (p *Publisher) OpenReview(ctx context.Context, runID string, arts []domain.Article, summary string) (string, error) {
	if p.token == "" || p.owner == "" || p.repo == "" {
		return "", fmt.Errorf("github publisher misconfigured")
	}
	if len(arts) == 0 {
		return "", fmt.Errorf("no drafts to submit")
	}

	baseSHA, err := p.branchSHA(ctx, p.baseBranch)
	if err != nil {
		return "", fmt.Errorf("resolve base branch: %w", err)
	}

	branch := "drafts/" + runID
	if err := p.createBranch(ctx, branch, baseSHA); err != nil {
		return "", fmt.Errorf("create branch %s: %w", branch, err)
	}

	for _, art := range arts {
		if err := p.putFile(ctx, branch, art); err != nil {
			return "", fmt.Errorf("commit %s: %w", art.Slug, err)
		}
	}

	url, err := p.openPullRequest(ctx, branch, runID, summary)
	if err != nil {
		return "", fmt.Errorf("open pull request: %w", err)
	}
	return url, nil
}

func (p *Publisher) branchSHA(ctx context.Context, branch string) (string, error) {
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/ref/heads/%s", p.apiBase, p.owner, p.repo, branch)
	if err := p.call(ctx, http.MethodGet, endpoint, nil, &ref); err != nil {
		return "", err
	}
	return ref.Object.SHA, nil
}

func (p *Publisher) createBranch(ctx context.Context, branch, sha string) error {
	body := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": sha,
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/refs", p.apiBase, p.owner, p.repo)
	return p.call(ctx, http.MethodPost, endpoint, body, nil)
}

func (p *Publisher) putFile(ctx context.Context, branch string, art domain.Article) error {
	rendered, err := artifacts.Render(art)
	if err != nil {
		return err
	}

	filePath := path.Join("content", art.Bucket, art.Slug+".md")
	body := map[string]string{
		"message": fmt.Sprintf("draft: %s", art.Title),
		"content": base64.StdEncoding.EncodeToString([]byte(rendered)),
		"branch":  branch,
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", p.apiBase, p.owner, p.repo, filePath)
	return p.call(ctx, http.MethodPut, endpoint, body, nil)
}

func (p *Publisher) openPullRequest(ctx context.Context, branch, runID, summary string) (string, error) {
	body := map[string]string{
		"title": fmt.Sprintf("Drafts for review: %s", runID),
		"head":  branch,
		"base":  p.baseBranch,
		"body":  summary,
	}
	var pr struct {
		HTMLURL string `json:"html_url"`
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls", p.apiBase, p.owner, p.repo)
	if err := p.call(ctx, http.MethodPost, endpoint, body, &pr); err != nil {
		return "", err
	}
	return pr.HTMLURL, nil
}

func (p *Publisher) call(ctx context.Context, method, endpoint string, body, v any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("github error %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
