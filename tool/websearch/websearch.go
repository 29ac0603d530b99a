// Package websearch implements a web search tool backed by Google
// Programmable Search. Result pages are fetched concurrently, reduced to
// text chunks and ranked against the query; the best chunks are returned,
// optionally summarized by the language model. Chunks are cached across
// calls so follow-up questions can be answered without a new search.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/logging"
	"github.com/hupe1980/chatagent/model"
	"github.com/hupe1980/chatagent/tool"
)

// Item is one search hit.
type Item struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Searcher finds pages for a query.
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]Item, error)
}

// GoogleSearcher queries the Custom Search JSON API.
type GoogleSearcher struct {
	APIKey string
	CX     string
	// Options are passed to the customsearch service (endpoint, HTTP client).
	Options []option.ClientOption
}

// Search implements Searcher. The API returns at most 10 results per call.
func (g *GoogleSearcher) Search(ctx context.Context, query string, num int) ([]Item, error) {
	if g.APIKey == "" || g.CX == "" {
		return nil, tool.NewToolError("websearch", "google search api key or engine id is not configured", tool.CodeInput)
	}
	opts := append([]option.ClientOption{option.WithAPIKey(g.APIKey)}, g.Options...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create search service: %w", err)
	}

	if num < 1 || num > 10 {
		num = 10
	}
	res, err := svc.Cse.List().Cx(g.CX).Q(query).Num(int64(num)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	items := make([]Item, 0, len(res.Items))
	for _, r := range res.Items {
		items = append(items, Item{Title: r.Title, Link: r.Link})
	}
	return items, nil
}

// Options configures a Tool.
type Options struct {
	NumSearch int
	KBest     int
	ChunkSize int
	// ReuseThreshold is the share of query terms the best cached chunk must
	// contain for the cache to answer without searching; > 1 disables reuse.
	ReuseThreshold float64
	// MaxCacheChunks bounds the chunk cache; the oldest chunks are dropped
	// first. 0 means NumSearch*KBest*20.
	MaxCacheChunks int
	Summarize      bool
	PageTimeout    time.Duration
	MaxPageBytes   int64
	Concurrency    int
	UserAgent      string
	HTTPClient     *http.Client
	Backend        model.Model
	Logger         logging.Logger
}

// Reference is the metadata attached to a search result.
type Reference = Item

// chunk is a ranked piece of page text.
type chunk struct {
	text string
	ref  Item
}

// Tool is the web search tool. It is safe for concurrent use.
type Tool struct {
	searcher Searcher
	opts     Options

	mu    sync.Mutex
	cache []chunk
}

// New creates a search tool.
func New(searcher Searcher, optFns ...func(o *Options)) *Tool {
	opts := Options{
		NumSearch:      10,
		KBest:          5,
		ChunkSize:      500,
		ReuseThreshold: 0.8,
		PageTimeout:    10 * time.Second,
		MaxPageBytes:   2 << 20,
		Concurrency:    4,
		UserAgent:      "Mozilla/5.0 (compatible; chatagent/1.0)",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.KBest <= 0 {
		opts.KBest = 5
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 500
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxCacheChunks <= 0 {
		opts.MaxCacheChunks = max(opts.NumSearch, 1) * opts.KBest * 20
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Tool{searcher: searcher, opts: opts}
}

// Factory builds the tool from configuration. The API key and engine id are
// read from the environment variables named by the api_key_env and cx_env
// parameters (GOOGLE_API_KEY and GOOGLE_CSE_ID by default).
func Factory(spec tool.Spec, deps tool.Deps) (tool.Tool, error) {
	p := spec.Parameters
	searcher := &GoogleSearcher{
		APIKey: os.Getenv(tool.StringParam(p, "api_key_env", "GOOGLE_API_KEY")),
		CX:     os.Getenv(tool.StringParam(p, "cx_env", "GOOGLE_CSE_ID")),
	}
	return New(searcher, func(o *Options) {
		o.NumSearch = tool.IntParam(p, "num_search", o.NumSearch)
		o.KBest = tool.IntParam(p, "k_best", o.KBest)
		o.ChunkSize = tool.IntParam(p, "chunk_size", o.ChunkSize)
		o.ReuseThreshold = tool.FloatParam(p, "reuse_threshold", o.ReuseThreshold)
		o.MaxCacheChunks = tool.IntParam(p, "max_cache_chunks", o.MaxCacheChunks)
		o.Summarize = tool.BoolParam(p, "summarize", o.Summarize)
		o.Backend = deps.Backend
		o.Logger = deps.Logger
	}), nil
}

// Run searches for query and returns the best matching text. Metadata is
// the list of references, most used first.
func (t *Tool) Run(ctx context.Context, query string) (tool.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return tool.Result{}, tool.NewToolError("websearch", "empty query", tool.CodeInput)
	}

	selected, coverage := t.rank(query)
	if len(selected) > 0 && coverage >= t.opts.ReuseThreshold {
		t.opts.Logger.Info("websearch.cache.hit", "query", query, "coverage", coverage)
	} else {
		items, err := t.searcher.Search(ctx, query, t.opts.NumSearch)
		if err != nil {
			return tool.Result{}, err
		}
		t.opts.Logger.Debug("websearch.results", "query", query, "items", len(items))

		fresh, err := t.fetchAll(ctx, items)
		if err != nil {
			return tool.Result{}, err
		}
		t.remember(fresh)

		selected, _ = t.rank(query)
	}

	if len(selected) == 0 {
		return tool.Result{Text: "No results found."}, nil
	}

	refs := references(selected)
	text, err := t.summarize(ctx, selected)
	if err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Text: text, Metadata: refs}, nil
}

// fetchAll downloads pages concurrently. Pages that fail are skipped.
func (t *Tool) fetchAll(ctx context.Context, items []Item) ([]chunk, error) {
	pages := make([][]chunk, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			text, err := t.fetch(gctx, item.Link)
			if err != nil {
				t.opts.Logger.Warn("websearch.fetch.failed", "link", item.Link, "error", err.Error())
				return nil
			}
			for _, c := range split(text, t.opts.ChunkSize) {
				pages[i] = append(pages[i], chunk{text: c, ref: item})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []chunk
	for _, p := range pages {
		out = append(out, p...)
	}
	return out, nil
}

// remember appends chunks to the cache and drops the oldest beyond
// MaxCacheChunks.
func (t *Tool) remember(chunks []chunk) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache = append(t.cache, chunks...)
	if over := len(t.cache) - t.opts.MaxCacheChunks; over > 0 {
		t.cache = append([]chunk(nil), t.cache[over:]...)
		t.opts.Logger.Debug("websearch.cache.evicted", "chunks", over)
	}
}

func (t *Tool) fetch(ctx context.Context, link string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.PageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", t.opts.UserAgent)

	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %s", resp.Status)
	}

	return ExtractText(io.LimitReader(resp.Body, t.opts.MaxPageBytes))
}

// ExtractText returns the visible text of an HTML document with whitespace
// collapsed.
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer, svg").Remove()
	return strings.Join(strings.Fields(doc.Find("body").Text()), " "), nil
}

// split cuts text into chunks of at most size bytes on word boundaries.
func split(text string, size int) []string {
	var (
		out []string
		b   strings.Builder
	)
	for _, w := range strings.Fields(text) {
		if b.Len() > 0 && b.Len()+1+len(w) > size {
			out = append(out, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func terms(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	}) {
		if len(f) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// rank returns the KBest cached chunks sharing terms with query, best first,
// and the share of query terms found in the best one.
func (t *Tool) rank(query string) ([]chunk, float64) {
	qterms := terms(query)
	if len(qterms) == 0 {
		return nil, 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	type scored struct {
		c     chunk
		score int
	}
	var hits []scored
	for _, c := range t.cache {
		lower := strings.ToLower(c.text)
		n := 0
		for _, q := range qterms {
			if strings.Contains(lower, q) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{c: c, score: n})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > t.opts.KBest {
		hits = hits[:t.opts.KBest]
	}

	out := make([]chunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.c)
	}
	if len(hits) == 0 {
		return nil, 0
	}
	return out, float64(hits[0].score) / float64(len(qterms))
}

// references lists the distinct sources of chunks, most used first.
func references(chunks []chunk) []Reference {
	counts := map[string]int{}
	var refs []Reference
	for _, c := range chunks {
		if counts[c.ref.Link] == 0 {
			refs = append(refs, c.ref)
		}
		counts[c.ref.Link]++
	}
	sort.SliceStable(refs, func(i, j int) bool { return counts[refs[i].Link] > counts[refs[j].Link] })
	return refs
}

func (t *Tool) summarize(ctx context.Context, chunks []chunk) (string, error) {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s", c.ref.Title, c.text)
	}
	if !t.opts.Summarize || t.opts.Backend == nil {
		return b.String(), nil
	}

	prompt := []core.Message{core.NewMessage(core.RoleUser,
		"Write a detailed summary of the following information:\n\n"+b.String())}
	start := time.Now()
	summary, err := t.opts.Backend.Complete(ctx, prompt)
	logging.LogLLMCall(t.opts.Logger, t.opts.Backend.Info().Name, 0, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(summary), nil
}
