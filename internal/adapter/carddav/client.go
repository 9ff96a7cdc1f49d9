// Package carddav implements a minimal CardDAV client: change listing
// via sync-collection REPORT (with a PROPFIND fallback for the first
// pass), bulk object retrieval via addressbook-multiget, and single-object
// GET. It speaks only the subset of RFC 6352 the sync engine needs.
package carddav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// ChangedObject is one address object reported changed since the last
// sync token.
type ChangedObject struct {
	Path string
	ETag string
}

// ObjectText is one fetched address object with its version tag.
type ObjectText struct {
	Path string
	ETag string
	Text string
}

// RemoteError reports a non-success HTTP status from the server.
type RemoteError struct {
	Op     string
	Status int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("carddav: %s: unexpected status %d", e.Op, e.Status)
}

// Client talks to CardDAV servers. Credentials and the server location
// come from the connection passed to each call, so one client serves
// every configured connection.
type Client struct {
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a Client with a default HTTP client.
func New(logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.With("adapter", "carddav"),
	}
}

// NewWithHTTPClient creates a Client with a custom HTTP client (for testing).
func NewWithHTTPClient(httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		log:        logger.With("adapter", "carddav"),
	}
}

// ListChanges returns the address objects changed since sinceToken and
// the server's next token. An empty sinceToken lists the whole
// collection via PROPFIND; the server's current token is then taken from
// the sync-collection semantics of a follow-up run.
func (c *Client) ListChanges(ctx context.Context, conn *domain.Connection, sinceToken string) ([]ChangedObject, string, error) {
	collection := collectionURL(conn)

	var (
		body   string
		method string
		depth  string
	)
	if sinceToken == "" {
		method, depth = "PROPFIND", "1"
		body = propfindBody
	} else {
		method, depth = "REPORT", "0"
		body = syncCollectionBody(sinceToken)
	}

	c.log.DebugContext(ctx, "carddav list changes",
		slog.String("connection", conn.ID.String()),
		slog.String("method", method),
		slog.Bool("initial", sinceToken == ""),
	)

	ms, err := c.doReport(ctx, conn, method, collection, depth, body, "list changes")
	if err != nil {
		return nil, "", err
	}

	collectionPath := strings.TrimRight(conn.AddressBookPath, "/")
	var changes []ChangedObject
	for _, resp := range ms.Responses {
		// The collection itself appears in PROPFIND output; members
		// reported gone carry a 404 response status.
		if strings.TrimRight(resp.Href, "/") == collectionPath {
			continue
		}
		if resp.Status != "" && !statusOK(resp.Status) {
			continue
		}
		p := resp.okProp()
		if p == nil || p.ResourceType.Collection != nil {
			continue
		}
		changes = append(changes, ChangedObject{Path: resp.Href, ETag: p.ETag})
	}

	c.log.DebugContext(ctx, "carddav changes listed",
		slog.String("connection", conn.ID.String()),
		slog.Int("changed", len(changes)),
	)

	return changes, ms.SyncToken, nil
}

// FetchMany retrieves the given address objects in one
// addressbook-multiget REPORT. Objects the server no longer has are
// silently absent from the result.
func (c *Client) FetchMany(ctx context.Context, conn *domain.Connection, paths []string) ([]ObjectText, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	ms, err := c.doReport(ctx, conn, "REPORT", collectionURL(conn), "1", multigetBody(paths), "multiget")
	if err != nil {
		return nil, err
	}

	var objects []ObjectText
	for _, resp := range ms.Responses {
		if resp.Status != "" && !statusOK(resp.Status) {
			continue
		}
		p := resp.okProp()
		if p == nil || p.AddressData == "" {
			continue
		}
		objects = append(objects, ObjectText{Path: resp.Href, ETag: p.ETag, Text: p.AddressData})
	}

	c.log.DebugContext(ctx, "carddav multiget",
		slog.String("connection", conn.ID.String()),
		slog.Int("requested", len(paths)),
		slog.Int("fetched", len(objects)),
	)

	return objects, nil
}

// Fetch retrieves a single address object by path.
func (c *Client) Fetch(ctx context.Context, conn *domain.Connection, path string) (*ObjectText, error) {
	reqURL := strings.TrimRight(conn.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("carddav: create request: %w", err)
	}
	req.SetBasicAuth(conn.Username, conn.Password)

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("carddav: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("carddav: object %s: %w", path, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Op: "fetch", Status: resp.StatusCode}
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("carddav: read body: %w", err)
	}

	return &ObjectText{Path: path, ETag: resp.Header.Get("ETag"), Text: string(text)}, nil
}

// doReport executes a PROPFIND/REPORT request and parses the
// multistatus response.
func (c *Client) doReport(ctx context.Context, conn *domain.Connection, method, reqURL, depth, body, op string) (*multistatus, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("carddav: create request: %w", err)
	}
	req.SetBasicAuth(conn.Username, conn.Password)
	req.Header.Set("Content-Type", `application/xml; charset="utf-8"`)
	req.Header.Set("Depth", depth)

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		c.log.ErrorContext(ctx, "carddav request failed",
			slog.String("connection", conn.ID.String()),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("carddav: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		return nil, &RemoteError{Op: op, Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("carddav: read body: %w", err)
	}

	ms, err := parseMultistatus(raw)
	if err != nil {
		return nil, fmt.Errorf("carddav: %s: %w", op, err)
	}
	return ms, nil
}

// doWithRetry executes the request with a single retry on 5xx or network
// errors. PROPFIND/REPORT/GET are all safe to repeat.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)

	shouldRetry := err != nil || (resp != nil && resp.StatusCode >= 500)
	if !shouldRetry {
		return resp, err
	}
	if ctx.Err() != nil {
		return resp, err
	}

	reason := "network error"
	if err == nil && resp != nil {
		reason = fmt.Sprintf("status %d", resp.StatusCode)
	}
	c.log.WarnContext(ctx, "carddav retry", slog.String("url", req.URL.Path), slog.String("reason", reason))

	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return c.httpClient.Do(retry)
}

func collectionURL(conn *domain.Connection) string {
	return strings.TrimRight(conn.BaseURL, "/") + conn.AddressBookPath
}
