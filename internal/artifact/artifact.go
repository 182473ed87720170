// Package artifact talks to the remote artifact API: it fetches the
// builder-tool location payload published for an artifact and reports
// quiz submissions back to it.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/geowander/citytour/internal/ingest"
)

// Client calls the artifact API on behalf of one or more sessions. The
// base URL and bearer token travel with each session rather than the
// client, since every session may point at a different deployment.
type Client struct {
	client *http.Client
}

func NewClient(client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{client: client}
}

// FetchLocations retrieves the raw location records for the session's
// artifact. The info endpoint wraps the payload in an artifact_data
// field holding a JSON-encoded array string; both decode steps tag
// failures with ingest.ErrMalformedPayload so the loader can classify
// them apart from transport failures.
func (c *Client) FetchLocations(ctx context.Context, session ingest.ArtifactSession) ([]any, error) {
	u := fmt.Sprintf("%s/organization/space/series/artifact/info/%s/",
		session.BaseURL, url.PathEscape(session.ArtifactID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build artifact info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artifact info returned %s", resp.Status)
	}

	var info struct {
		ArtifactData string `json:"artifact_data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decoding artifact info: %v", ingest.ErrMalformedPayload, err)
	}
	if strings.TrimSpace(info.ArtifactData) == "" {
		return nil, fmt.Errorf("%w: artifact_data is empty", ingest.ErrMalformedPayload)
	}

	var records []any
	if err := json.Unmarshal([]byte(info.ArtifactData), &records); err != nil {
		return nil, fmt.Errorf("%w: decoding artifact_data array: %v", ingest.ErrMalformedPayload, err)
	}
	return records, nil
}

// SubmissionAnswer is one graded answer inside a submission summary.
type SubmissionAnswer struct {
	QuestionIndex  int    `json:"questionIndex"`
	QuestionText   string `json:"questionText"`
	SelectedAnswer string `json:"selectedAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
}

// SubmissionSummary is the quiz result payload reported upstream after
// a gated quiz completes.
type SubmissionSummary struct {
	TotalQuestions int                `json:"totalQuestions"`
	CorrectAnswers int                `json:"correctAnswers"`
	Score          int                `json:"score"`
	Answers        []SubmissionAnswer `json:"answers"`
	CompletedAt    string             `json:"completedAt"`
}

// SubmitQuizResult posts the summary to the submission endpoint. The
// API wants the summary JSON-encoded into a string field and the
// artifact ID repeated as an integer. Any error, including a non-2xx
// status, is returned for the caller to log; quiz flow never depends
// on its success.
func (c *Client) SubmitQuizResult(ctx context.Context, session ingest.ArtifactSession, summary SubmissionSummary) error {
	artifactNum, err := strconv.Atoi(session.ArtifactID)
	if err != nil {
		return fmt.Errorf("artifact id %q is not numeric", session.ArtifactID)
	}
	content, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding submission summary: %w", err)
	}
	body, err := json.Marshal(struct {
		Artifacts int    `json:"artifacts"`
		Content   string `json:"content"`
		Status    string `json:"status"`
	}{
		Artifacts: artifactNum,
		Content:   string(content),
		Status:    "submitted",
	})
	if err != nil {
		return fmt.Errorf("encoding submission body: %w", err)
	}

	u := fmt.Sprintf("%s/organization/results/artifact/submission/%s/submission/",
		session.BaseURL, url.PathEscape(session.ArtifactID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("submission request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("submission returned %s", resp.Status)
	}
	return nil
}
