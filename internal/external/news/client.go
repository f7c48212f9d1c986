package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/pkg/config"
	"github.com/wonny/tradecraft/pkg/httputil"
	"github.com/wonny/tradecraft/pkg/logger"
	"github.com/wonny/tradecraft/pkg/redis"
)

// FallbackSource marks a headline that did not come from the feed
const FallbackSource = "fallback"

const defaultSource = "Yahoo Finance"

// Headline is one feed item
type Headline struct {
	Headline  string `json:"headline"`
	Source    string `json:"source"`
	URL       string `json:"url"`
	Published string `json:"published"`
}

// IsFallback reports whether the headline is the placeholder
func (h Headline) IsFallback() bool {
	return h.Source == FallbackSource
}

// Client reads ticker headlines from the Yahoo Finance RSS feed
// ⭐ SSOT: 뉴스 헤드라인 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	now        func() time.Time
}

// NewClient creates a new headline client
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		httpClient: httputil.NewWithTimeout(cfg, log, 10*time.Second),
		logger:     log,
		baseURL:    cfg.News.BaseURL,
		now:        time.Now,
	}
}

// WithRedis shares the feed rate limit across processes
func (c *Client) WithRedis(client *redis.Client) *Client {
	if client == nil || !client.Enabled() {
		return c
	}
	c.httpClient.WithRateLimiter(redis.NewRateLimiter(client, client.Prefix()), redis.NewsRateLimit)
	return c
}

// TopHeadlines returns up to max headlines for ticker. It never fails: any
// error, or an empty feed, yields the single fallback headline.
func (c *Client) TopHeadlines(ctx context.Context, ticker string, max int) []Headline {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if max <= 0 {
		max = 5
	}

	body, err := c.fetchFeed(ctx, ticker)
	if err != nil {
		return c.fallback(ticker, err.Error())
	}

	items, err := parseFeed(body, max)
	if err != nil {
		return c.fallback(ticker, err.Error())
	}
	if len(items) == 0 {
		return c.fallback(ticker, "empty RSS feed")
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(items),
	}).Debug("Fetched headlines")
	return items
}

// LiveEvent builds a pipeline event from the top headline
func (c *Client) LiveEvent(ctx context.Context, ticker string) contracts.Event {
	top := c.TopHeadlines(ctx, ticker, 1)[0]
	return contracts.Event{
		Headline: top.Headline,
		Ticker:   ticker,
		Source:   top.Source,
	}.Normalize()
}

func (c *Client) fetchFeed(ctx context.Context, ticker string) (string, error) {
	params := url.Values{}
	params.Set("s", ticker)
	params.Set("region", "US")
	params.Set("lang", "en-US")
	fullURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}

func (c *Client) fallback(ticker, reason string) []Headline {
	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"reason": reason,
	}).Warn("Headlines fallback")

	return []Headline{{
		Headline:  FallbackHeadline(ticker),
		Source:    FallbackSource,
		Published: c.now().UTC().Format(time.RFC3339),
	}}
}

// FallbackHeadline is the placeholder text used when the feed is unavailable
func FallbackHeadline(ticker string) string {
	return fmt.Sprintf("%s — no live headline available (fallback mode)", strings.ToUpper(ticker))
}

// The HTML parser treats <link> and <source> as void elements and CDATA as
// a comment, so they are rewritten before parsing.
var feedRewriter = strings.NewReplacer(
	"<link>", "<href>",
	"</link>", "</href>",
	"<source", "<origin",
	"</source>", "</origin>",
	"<![CDATA[", "",
	"]]>", "",
)

// parseFeed extracts RSS <item> entries
func parseFeed(body string, max int) ([]Headline, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(feedRewriter.Replace(body)))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]Headline, 0, max)
	doc.Find("item").EachWithBreak(func(i int, item *goquery.Selection) bool {
		title := strings.TrimSpace(item.Find("title").First().Text())
		if title == "" {
			title = "No title"
		}
		source := strings.TrimSpace(item.Find("origin").First().Text())
		if source == "" {
			source = defaultSource
		}

		items = append(items, Headline{
			Headline:  title,
			Source:    source,
			URL:       strings.TrimSpace(item.Find("href").First().Text()),
			Published: strings.TrimSpace(item.Find("pubdate").First().Text()),
		})
		return len(items) < max
	})

	return items, nil
}
