package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/vertextoedge/release-sync/internal/domain"
)

// rfc2822Layouts are the pubDate forms accepted from the feed. The origin is
// expected to emit RFC-2822 dates; anything else aborts resolution.
var rfc2822Layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
}

// Resolver fetches the release feed and extracts the newest entry's metadata.
// The feed is assumed pre-sorted newest-first by the origin, so the first
// item in document order is "latest".
type Resolver struct {
	client       *http.Client
	feedURL      string
	publicPrefix string
	parser       *gofeed.Parser
	logger       *zap.Logger
}

// NewResolver creates a new Resolver. publicPrefix is the URL prefix under
// which the static file server exposes saved artifacts.
func NewResolver(client *http.Client, feedURL, publicPrefix string, logger *zap.Logger) *Resolver {
	return &Resolver{
		client:       client,
		feedURL:      feedURL,
		publicPrefix: publicPrefix,
		parser:       gofeed.NewParser(),
		logger:       logger,
	}
}

// Resolve fetches the feed and builds an Artifact from its newest entry.
// Every failure is a *domain.ResolutionError naming what was missing; no
// partially constructed Artifact is ever returned.
func (r *Resolver) Resolve(ctx context.Context) (*domain.Artifact, error) {
	body, err := r.fetch(ctx)
	if err != nil {
		return nil, domain.NewResolutionError("feed", err)
	}

	parsed, err := r.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewResolutionError("feed document", err)
	}

	if len(parsed.Items) == 0 {
		return nil, domain.NewResolutionError("latest entry", domain.ErrNoEntries)
	}
	item := parsed.Items[0]

	if item.Published == "" {
		return nil, domain.NewResolutionError("pub date", nil)
	}
	publishedAt, err := parseRFC2822(item.Published)
	if err != nil {
		return nil, domain.NewResolutionError("pub date", err)
	}

	if item.Link == "" {
		return nil, domain.NewResolutionError("link", nil)
	}

	hash, err := extractHash(item)
	if err != nil {
		return nil, err
	}

	if item.Title == "" {
		return nil, domain.NewResolutionError("title", nil)
	}
	// Titles look like "rom/build-42.zip"; only the final path segment is a
	// usable file name.
	fileName := path.Base(item.Title)
	if fileName == "." || fileName == "/" {
		return nil, domain.NewResolutionError("file name", nil)
	}

	artifact := &domain.Artifact{
		PublishedAt: publishedAt,
		DownloadURL: item.Link,
		ContentHash: hash,
		FileName:    fileName,
		PublicURL:   r.publicPrefix + "/" + fileName,
	}

	r.logger.Debug("resolved latest feed entry",
		zap.String("file", artifact.FileName),
		zap.Time("published_at", artifact.PublishedAt),
		zap.String("hash", artifact.ContentHash))

	return artifact, nil
}

// fetch retrieves the raw feed bytes
func (r *Resolver) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.feedURL, nil)
	if err != nil {
		return nil, err
	}

	res, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}

	return io.ReadAll(res.Body)
}

// extractHash pulls the content hash out of the entry's namespaced media
// extension: <media:content><media:hash>...</media:hash></media:content>.
func extractHash(item *gofeed.Item) (string, error) {
	media, ok := item.Extensions["media"]
	if !ok {
		return "", domain.NewResolutionError("media extension", nil)
	}

	contents, ok := media["content"]
	if !ok || len(contents) == 0 {
		return "", domain.NewResolutionError("media content", nil)
	}

	hashes, ok := contents[0].Children["hash"]
	if !ok || len(hashes) == 0 {
		return "", domain.NewResolutionError("hash", nil)
	}

	if hashes[0].Value == "" {
		return "", domain.NewResolutionError("hash value", nil)
	}
	return hashes[0].Value, nil
}

// parseRFC2822 parses an RFC-2822 style date as found in RSS pubDate fields
func parseRFC2822(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range rfc2822Layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
