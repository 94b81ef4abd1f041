package quote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "chorenote/internal/log"
	"chorenote/internal/recur"
)

// Quote is a short text with its author.
type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// Source provides the quote for a given date.
type Source interface {
	Quote(ctx context.Context, date recur.Date) (Quote, error)
}

// Client fetches a JSON quote over HTTP, keeps one quote per date on disk,
// and falls back to a built-in list when the URL is unset or unreachable.
// Asking again for the same date returns the same quote.
type Client struct {
	client   *http.Client
	url      string
	cacheDir string
}

// NewClient creates a quote Client. url may be empty; cacheDir may be empty
// to disable the disk cache.
func NewClient(url, cacheDir string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		url:      strings.TrimSpace(url),
		cacheDir: cacheDir,
	}
}

// Quote implements Source. It only returns an error if ctx is done; fetch
// failures degrade to the built-in list.
func (c *Client) Quote(ctx context.Context, date recur.Date) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, err
	}
	if q, ok := c.loadCache(date); ok {
		return q, nil
	}
	if c.url == "" {
		return Fallback(date), nil
	}

	q, err := c.fetch(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Quote{}, ctxErr
		}
		appLog.Error("quote fetch failed, using built-in quote", err, "url", redactURL(c.url))
		return Fallback(date), nil
	}
	if err := c.saveCache(date, q); err != nil {
		appLog.Error("quote cache save failed", err, "date", date.String())
	}
	return q, nil
}

func (c *Client) fetch(ctx context.Context) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, errors.New(resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Quote{}, err
	}
	return decode(body)
}

// wireQuote covers the field names used by common quote APIs.
type wireQuote struct {
	Q       string `json:"q"`
	A       string `json:"a"`
	Text    string `json:"text"`
	Content string `json:"content"`
	Quote   string `json:"quote"`
	Author  string `json:"author"`
}

func (w wireQuote) normalize() Quote {
	q := Quote{Text: firstNonEmpty(w.Q, w.Text, w.Content, w.Quote), Author: firstNonEmpty(w.A, w.Author)}
	q.Text = strings.TrimSpace(q.Text)
	q.Author = strings.TrimSpace(q.Author)
	return q
}

// decode accepts a single quote object or an array whose first element is
// the quote.
func decode(body []byte) (Quote, error) {
	body = []byte(strings.TrimSpace(string(body)))
	var w wireQuote
	if len(body) > 0 && body[0] == '[' {
		var list []wireQuote
		if err := json.Unmarshal(body, &list); err != nil {
			return Quote{}, err
		}
		if len(list) == 0 {
			return Quote{}, errors.New("quote: empty list")
		}
		w = list[0]
	} else if err := json.Unmarshal(body, &w); err != nil {
		return Quote{}, err
	}
	q := w.normalize()
	if q.Text == "" {
		return Quote{}, errors.New("quote: response has no quote text")
	}
	return q, nil
}

func (c *Client) cachePath(date recur.Date) string {
	return filepath.Join(c.cacheDir, date.String()+".json")
}

func (c *Client) loadCache(date recur.Date) (Quote, bool) {
	if c.cacheDir == "" {
		return Quote{}, false
	}
	data, err := os.ReadFile(c.cachePath(date))
	if err != nil {
		return Quote{}, false
	}
	var q Quote
	if err := json.Unmarshal(data, &q); err != nil || q.Text == "" {
		return Quote{}, false
	}
	return q, true
}

func (c *Client) saveCache(date recur.Date, q Quote) error {
	if c.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.cacheDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&q, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.cachePath(date), data, 0o600)
}

// builtin is used when no quote service is configured or reachable.
var builtin = []Quote{
	{Text: "We are what we repeatedly do. Excellence, then, is not an act, but a habit.", Author: "Will Durant"},
	{Text: "The secret of getting ahead is getting started.", Author: "Mark Twain"},
	{Text: "Well begun is half done.", Author: "Aristotle"},
	{Text: "Little by little, one travels far.", Author: "J.R.R. Tolkien"},
	{Text: "It does not matter how slowly you go as long as you do not stop.", Author: "Confucius"},
	{Text: "Order and simplification are the first steps toward the mastery of a subject.", Author: "Thomas Mann"},
	{Text: "Action is the foundational key to all success.", Author: "Pablo Picasso"},
}

// Fallback picks a built-in quote deterministically from the date.
func Fallback(date recur.Date) Quote {
	n := int64(len(builtin))
	i := date.DaysSince(recur.Date{}) % n
	if i < 0 {
		i += n
	}
	return builtin[i]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// redactURL keeps only scheme and host for logging.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i == -1 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
