package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"odyssey-archiver/feature/archive/models"

	"go.uber.org/zap"
)

// Thread identifies one root collection: a submission whose full comment
// tree is fetched and reconciled as a unit.
type Thread struct {
	ID    string
	Title string
}

// Source is the remote data-source collaborator the run coordinator depends
// on. Any error returned by a Source method is a fetch failure.
type Source interface {
	// ListThreads enumerates every submission in the configured subreddit.
	ListThreads(ctx context.Context) ([]Thread, error)
	// FetchThread returns every comment of the thread, at any depth, with
	// continuations resolved and no duplicates.
	FetchThread(ctx context.Context, thread Thread) ([]models.Observation, error)
}

// listingPageSize is the maximum Reddit returns per listing request.
const listingPageSize = 100

// listingSorts are unioned when enumerating threads, to reduce the odds of
// missing stickies or old submissions that fall off a single sort.
var listingSorts = []string{"new", "hot", "top"}

// Client talks to the Reddit OAuth JSON API.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient creates a Reddit API client from the configuration.
func NewClient(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		log:  log,
	}
}

// ListThreads enumerates all submissions in the subreddit by unioning the
// new, hot, and top(all) listings, resolving pagination cursors, and
// deduplicating by submission ID.
func (c *Client) ListThreads(ctx context.Context) ([]Thread, error) {
	seen := make(map[string]struct{})
	var threads []Thread

	for _, sort := range listingSorts {
		after := ""
		for {
			q := url.Values{}
			q.Set("limit", fmt.Sprintf("%d", listingPageSize))
			q.Set("raw_json", "1")
			if sort == "top" {
				q.Set("t", "all")
			}
			if after != "" {
				q.Set("after", after)
			}

			body, err := c.get(ctx, fmt.Sprintf("/r/%s/%s", c.cfg.Subreddit, sort), q)
			if err != nil {
				return nil, fmt.Errorf("list %s/%s: %w", c.cfg.Subreddit, sort, err)
			}

			var page thing
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, fmt.Errorf("parse %s listing: %w", sort, err)
			}
			var lst listing
			if err := json.Unmarshal(page.Data, &lst); err != nil {
				return nil, fmt.Errorf("parse %s listing data: %w", sort, err)
			}

			for _, child := range lst.Children {
				if child.Kind != kindSubmission {
					continue
				}
				var sub submissionData
				if err := json.Unmarshal(child.Data, &sub); err != nil {
					return nil, fmt.Errorf("parse submission: %w", err)
				}
				if _, ok := seen[sub.ID]; ok {
					continue
				}
				seen[sub.ID] = struct{}{}
				threads = append(threads, Thread{ID: sub.ID, Title: sub.Title})
			}

			if lst.After == "" || len(lst.Children) == 0 {
				break
			}
			after = lst.After
		}
	}

	c.log.Debug("listed threads", zap.Int("count", len(threads)))
	return threads, nil
}

// get performs an authorized GET against the API and returns the body.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	if c.cfg.ClientID != "" {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		// Rate limiting (429) lands here too; the run-level retry policy
		// decides whether a second pass is attempted.
		return nil, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	return body, nil
}

// accessToken returns a cached application token, refreshing it via the
// client_credentials grant when missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: unexpected status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response: empty access_token")
	}

	c.token = tok.AccessToken
	// Refresh one minute early to avoid using a token at the expiry edge.
	c.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}
