// Package googletasks pushes tasks to a Google Tasks list.
package googletasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"taskboard/internal/model"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	OAuthClientFile = "oauth_client.json"
	TokenFile       = "token.json"

	tasksScope = "https://www.googleapis.com/auth/tasks"
)

// Client exports tasks through the Google Tasks API.
type Client struct {
	svc *tasks.Service
}

// New creates a client from oauth_client.json and token.json stored in dir.
func New(ctx context.Context, dir string) (*Client, error) {
	clientJSON, err := os.ReadFile(filepath.Join(dir, OAuthClientFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", OAuthClientFile, err)
	}
	oauthConfig, err := google.ConfigFromJSON(clientJSON, tasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", OAuthClientFile, err)
	}

	tokenData, err := os.ReadFile(filepath.Join(dir, TokenFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TokenFile, err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", TokenFile, err)
	}

	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, &token))
	return NewWithHTTPClient(ctx, httpClient)
}

// NewWithHTTPClient creates a client with a custom HTTP client and options (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Result summarises an export run.
type Result struct {
	Exported int
	Failed   map[uint]error
}

// Export inserts every task into listID. A failing task does not stop the rest.
func (c *Client) Export(ctx context.Context, listID string, items []model.Task) Result {
	if listID == "" {
		listID = DefaultListID
	}
	res := Result{Failed: make(map[uint]error)}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			res.Failed[item.ID] = err
			continue
		}
		if err := c.insert(ctx, listID, item); err != nil {
			res.Failed[item.ID] = err
			continue
		}
		res.Exported++
	}
	return res
}

func (c *Client) insert(ctx context.Context, listID string, item model.Task) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	_, err := c.svc.Tasks.Insert(listID, toGoogle(item)).Context(ctx).Do()
	if err != nil {
		return wrapError(err)
	}
	return nil
}

func toGoogle(item model.Task) *tasks.Task {
	out := &tasks.Task{
		Title:  item.Title,
		Notes:  notes(item),
		Status: "needsAction",
	}
	if item.DueDate != nil {
		out.Due = item.DueDate.UTC().Format(time.RFC3339)
	}
	if item.IsCompleted {
		out.Status = "completed"
		if item.CompletedAt != nil {
			completed := item.CompletedAt.UTC().Format(time.RFC3339)
			out.Completed = &completed
		}
	}
	return out
}

func notes(item model.Task) string {
	var lines []string
	if desc := strings.TrimSpace(item.Description); desc != "" {
		lines = append(lines, desc)
	}
	for _, st := range item.Subtasks {
		box := "[ ]"
		if st.Completed {
			box = "[x]"
		}
		lines = append(lines, fmt.Sprintf("%s %s", box, st.Title))
	}
	lines = append(lines, fmt.Sprintf("priority: %s, category: %s", item.Priority, item.Category))
	return strings.Join(lines, "\n")
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	if strings.Contains(errStr, "context deadline exceeded") {
		return fmt.Errorf("request timed out")
	}
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "403") {
		return fmt.Errorf("token expired or revoked, refresh %s", TokenFile)
	}
	if strings.Contains(errStr, "404") {
		return fmt.Errorf("task list not found")
	}
	return err
}
