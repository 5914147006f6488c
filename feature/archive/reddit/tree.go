package reddit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"odyssey-archiver/core/utils"
	"odyssey-archiver/feature/archive/models"

	"go.uber.org/zap"
)

// Wire kinds of the Reddit "Thing" envelope.
const (
	kindComment    = "t1"
	kindSubmission = "t3"
	kindMore       = "more"
)

// deletedMarkers are the body sentinels the source substitutes when a
// comment is removed or its author deletes it. This is the only place the
// sentinel convention lives; downstream code consumes Observation.Deleted.
var deletedMarkers = map[string]struct{}{
	"[deleted]": {},
	"[removed]": {},
}

// moreChildrenBatch is the maximum IDs accepted per morechildren call.
const moreChildrenBatch = 100

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Children []thing `json:"children"`
	After    string  `json:"after"`
}

type submissionData struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type commentData struct {
	ID         string          `json:"id"`
	LinkID     string          `json:"link_id"`
	ParentID   string          `json:"parent_id"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	CreatedUTC float64         `json:"created_utc"`
	Edited     json.RawMessage `json:"edited"` // false, or a unix timestamp
	Score      *int            `json:"score"`
	Permalink  string          `json:"permalink"`
	Replies    json.RawMessage `json:"replies"` // "", or a nested Listing
}

type moreData struct {
	Children []string `json:"children"`
}

// collectedComment keeps the parsed fields together with the raw payload.
type collectedComment struct {
	data commentData
	raw  json.RawMessage
}

// FetchThread materializes the full comment tree of a thread as a flat,
// duplicate-free sequence of observations. Truncated reply lists arrive as
// "more" stubs; those are resolved through the morechildren endpoint with an
// iterative work list and spliced in before the sequence is emitted, ordered
// so a parent appears no later than its descendants.
func (c *Client) FetchThread(ctx context.Context, thread Thread) ([]models.Observation, error) {
	q := url.Values{}
	q.Set("limit", "500")
	q.Set("raw_json", "1")

	body, err := c.get(ctx, "/comments/"+thread.ID, q)
	if err != nil {
		return nil, fmt.Errorf("fetch thread %s: %w", thread.ID, err)
	}

	// The comments endpoint returns a two-element array: the submission
	// listing, then the comment listing.
	var pages []json.RawMessage
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, fmt.Errorf("parse thread %s: %w", thread.ID, err)
	}
	if len(pages) < 2 {
		return nil, fmt.Errorf("parse thread %s: expected 2 listings, got %d", thread.ID, len(pages))
	}

	var page thing
	if err := json.Unmarshal(pages[1], &page); err != nil {
		return nil, fmt.Errorf("parse thread %s comments: %w", thread.ID, err)
	}
	var lst listing
	if err := json.Unmarshal(page.Data, &lst); err != nil {
		return nil, fmt.Errorf("parse thread %s comment listing: %w", thread.ID, err)
	}

	collected := make(map[string]collectedComment)
	var order []string
	var pendingMore []string

	collect := func(th thing) error {
		return c.collectThing(th, collected, &order, &pendingMore)
	}

	for _, child := range lst.Children {
		if err := collect(child); err != nil {
			return nil, fmt.Errorf("thread %s: %w", thread.ID, err)
		}
	}

	// Resolve continuations. A morechildren response may itself contain
	// further "more" stubs, so this is a work list, not a single pass. Each
	// ID is requested at most once: a response that re-echoes IDs already
	// collected or already requested must not loop the list forever.
	requested := make(map[string]struct{})
	for len(pendingMore) > 0 {
		n := len(pendingMore)
		if n > moreChildrenBatch {
			n = moreChildrenBatch
		}
		batch := make([]string, 0, n)
		for _, id := range pendingMore[:n] {
			if _, ok := collected[id]; ok {
				continue
			}
			if _, ok := requested[id]; ok {
				continue
			}
			requested[id] = struct{}{}
			batch = append(batch, id)
		}
		pendingMore = pendingMore[n:]
		if len(batch) == 0 {
			continue
		}

		things, err := c.moreChildren(ctx, thread.ID, batch)
		if err != nil {
			return nil, fmt.Errorf("thread %s continuation: %w", thread.ID, err)
		}
		for _, th := range things {
			if err := collect(th); err != nil {
				return nil, fmt.Errorf("thread %s continuation: %w", thread.ID, err)
			}
		}
	}

	out := orderParentFirst(collected, order)

	obs := make([]models.Observation, 0, len(out))
	for _, id := range out {
		cc := collected[id]
		obs = append(obs, toObservation(cc, thread.ID))
	}

	c.log.Debug("fetched thread",
		zap.String("thread_id", thread.ID),
		zap.Int("comments", len(obs)),
	)
	return obs, nil
}

// collectThing folds one wire thing into the collection state: comments are
// recorded (children walked via an explicit stack), "more" stubs queue their
// child IDs for continuation resolution.
func (c *Client) collectThing(root thing, collected map[string]collectedComment, order *[]string, pendingMore *[]string) error {
	stack := []thing{root}
	for len(stack) > 0 {
		th := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch th.Kind {
		case kindComment:
			var cd commentData
			if err := json.Unmarshal(th.Data, &cd); err != nil {
				return fmt.Errorf("parse comment: %w", err)
			}
			if cd.ID == "" {
				return fmt.Errorf("parse comment: missing id")
			}
			if _, ok := collected[cd.ID]; !ok {
				collected[cd.ID] = collectedComment{data: cd, raw: th.Data}
				*order = append(*order, cd.ID)
			}

			// Replies is "" for leaves, a nested Listing otherwise.
			if len(cd.Replies) > 0 && !bytes.Equal(cd.Replies, []byte(`""`)) {
				var rep thing
				if err := json.Unmarshal(cd.Replies, &rep); err != nil {
					return fmt.Errorf("parse replies of %s: %w", cd.ID, err)
				}
				var repLst listing
				if err := json.Unmarshal(rep.Data, &repLst); err != nil {
					return fmt.Errorf("parse reply listing of %s: %w", cd.ID, err)
				}
				stack = append(stack, repLst.Children...)
			}

		case kindMore:
			var md moreData
			if err := json.Unmarshal(th.Data, &md); err != nil {
				return fmt.Errorf("parse continuation stub: %w", err)
			}
			*pendingMore = append(*pendingMore, md.Children...)
		}
	}
	return nil
}

// moreChildren resolves a batch of continuation IDs into flat comment things.
func (c *Client) moreChildren(ctx context.Context, threadID string, ids []string) ([]thing, error) {
	q := url.Values{}
	q.Set("api_type", "json")
	q.Set("link_id", kindSubmission+"_"+threadID)
	q.Set("children", strings.Join(ids, ","))
	q.Set("limit_children", "false")
	q.Set("raw_json", "1")

	body, err := c.get(ctx, "/api/morechildren", q)
	if err != nil {
		return nil, err
	}

	var resp struct {
		JSON struct {
			Data struct {
				Things []thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse morechildren: %w", err)
	}
	return resp.JSON.Data.Things, nil
}

// orderParentFirst returns comment IDs so that every comment whose parent is
// in the set appears after that parent. Top-level comments (parented to the
// submission) come first in collection order; a comment whose parent never
// materialized is treated as top-level rather than dropped.
func orderParentFirst(collected map[string]collectedComment, order []string) []string {
	childrenOf := make(map[string][]string)
	for _, id := range order {
		parent := parentCommentID(collected[id].data.ParentID)
		key := ""
		if parent != nil {
			if _, ok := collected[*parent]; ok {
				key = *parent
			}
		}
		childrenOf[key] = append(childrenOf[key], id)
	}

	out := make([]string, 0, len(order))
	emitted := make(map[string]struct{})
	queue := append([]string(nil), childrenOf[""]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := emitted[id]; ok {
			continue
		}
		emitted[id] = struct{}{}
		out = append(out, id)
		queue = append(queue, childrenOf[id]...)
	}

	// Anything unreachable (cycles would be a source defect, but be safe).
	for _, id := range order {
		if _, ok := emitted[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// parentCommentID extracts the bare comment ID from a t1_-prefixed fullname,
// or nil when the parent is the submission.
func parentCommentID(fullname string) *string {
	if strings.HasPrefix(fullname, kindComment+"_") {
		id := strings.TrimPrefix(fullname, kindComment+"_")
		return &id
	}
	return nil
}

// toObservation converts one collected comment into the engine's input unit,
// deciding the deletion sentinel at this boundary.
func toObservation(cc collectedComment, threadID string) models.Observation {
	cd := cc.data

	if id := strings.TrimPrefix(cd.LinkID, kindSubmission+"_"); id != "" && id != cd.LinkID {
		threadID = id
	}

	var author *string
	if cd.Author != "" && cd.Author != "[deleted]" {
		a := cd.Author
		author = &a
	}

	_, bodyDeleted := deletedMarkers[cd.Body]
	deleted := bodyDeleted || author == nil

	var edited *time.Time
	if len(cd.Edited) > 0 && !bytes.Equal(cd.Edited, []byte("false")) {
		var ts float64
		if err := json.Unmarshal(cd.Edited, &ts); err == nil && ts > 0 {
			t := utils.FromUnixSeconds(ts)
			edited = &t
		}
	}

	var permalink *string
	if cd.Permalink != "" {
		p := cd.Permalink
		if strings.HasPrefix(p, "/") {
			p = "https://www.reddit.com" + p
		}
		permalink = &p
	}

	return models.Observation{
		CommentID:       cd.ID,
		ThreadID:        threadID,
		ParentCommentID: parentCommentID(cd.ParentID),
		AuthorUsername:  author,
		CreatedUTC:      utils.FromUnixSeconds(cd.CreatedUTC),
		Body:            cd.Body,
		EditedUTC:       edited,
		Score:           cd.Score,
		Permalink:       permalink,
		Deleted:         deleted,
		Raw:             cc.raw,
	}
}
