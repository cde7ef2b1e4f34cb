package scm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"redpen/internal/core/ruleengine"
	str "redpen/internal/platform/strings"
)

// changedFileDTO is the wire shape of one file in a change set
type changedFileDTO struct {
	Path         string `json:"path"`
	Content      string `json:"content"`
	ChangedLines []int  `json:"changed_lines"`
}

// commentDTO is the wire shape of a posted finding
type commentDTO struct {
	RuleID     string `json:"rule_id"`
	Path       string `json:"path"`
	Line       int    `json:"line"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// GetChangedFiles implements analysis/domain.ChangeSource
func (c *Client) GetChangedFiles(ctx context.Context, subjectID string) ([]ruleengine.FileUnit, error) {
	p := fmt.Sprintf("/api/subjects/%s/files", url.PathEscape(subjectID))
	resp, err := c.Do(ctx, http.MethodGet, p, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", p).Msg("scm close body failed")
		}
	}()

	var files []changedFileDTO
	b, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &files); err != nil {
		return nil, err
	}

	out := make([]ruleengine.FileUnit, 0, len(files))
	for _, f := range files {
		// folded paths keep grouping stable across path encodings
		fu := ruleengine.FileUnit{Path: str.FoldPath(f.Path), Content: f.Content}
		if len(f.ChangedLines) > 0 {
			fu.ChangedLines = make(map[int]struct{}, len(f.ChangedLines))
			for _, n := range f.ChangedLines {
				fu.ChangedLines[n] = struct{}{}
			}
		}
		out = append(out, fu)
	}
	return out, nil
}

// PostFinding implements analysis/domain.ChangeSource
func (c *Client) PostFinding(ctx context.Context, subjectID string, f ruleengine.Finding) error {
	body, err := json.Marshal(commentDTO{
		RuleID:     f.RuleID,
		Path:       f.Path,
		Line:       f.Line,
		Severity:   string(f.Severity),
		Message:    f.Message,
		Suggestion: f.Suggestion,
	})
	if err != nil {
		return err
	}
	p := fmt.Sprintf("/api/subjects/%s/comments", url.PathEscape(subjectID))
	resp, err := c.Do(ctx, http.MethodPost, p, body)
	if err != nil {
		return err
	}
	return drainAndClose(resp.Body)
}

// PostSummary implements analysis/domain.ChangeSource
func (c *Client) PostSummary(ctx context.Context, subjectID string, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	p := fmt.Sprintf("/api/subjects/%s/summary", url.PathEscape(subjectID))
	resp, err := c.Do(ctx, http.MethodPost, p, body)
	if err != nil {
		return err
	}
	return drainAndClose(resp.Body)
}
