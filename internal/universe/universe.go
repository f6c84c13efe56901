package universe

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/logger"
)

// Constituent is one index member with its sector classification.
type Constituent struct {
	Symbol string
	Sector string
}

// Static serves a fixed sector map, for configs that pin their universe.
type Static struct {
	sectors map[string][]string
}

var _ interfaces.UniverseProvider = (*Static)(nil)

func NewStatic(sectors map[string][]string) *Static {
	return &Static{sectors: sectors}
}

func (s *Static) Sectors(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(s.sectors))
	for sector := range s.sectors {
		out = append(out, sector)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Static) Constituents(ctx context.Context, sector string) ([]string, error) {
	symbols, ok := s.sectors[sector]
	if !ok {
		return nil, fmt.Errorf("unknown sector %q", sector)
	}
	out := append([]string(nil), symbols...)
	sort.Strings(out)
	return out, nil
}

// TableSelectors locates the constituents table and its columns. The
// defaults match the standard index listing layout: one row per member,
// ticker in the first cell, sector classification in the third.
type TableSelectors struct {
	Row       string
	SymbolCol int
	SectorCol int
}

func DefaultSelectors() TableSelectors {
	return TableSelectors{Row: "table#constituents tbody tr", SymbolCol: 0, SectorCol: 2}
}

// Scraper fetches index constituents from a public listing page and groups
// them by sector. The fetch runs once and is cached; the membership of an
// index does not change within a process lifetime.
type Scraper struct {
	indexURL  string
	selectors TableSelectors
	timeout   time.Duration

	once    sync.Once
	sectors map[string][]string
	fetched error
}

var _ interfaces.UniverseProvider = (*Scraper)(nil)

func NewScraper(indexURL string, selectors TableSelectors, timeout time.Duration) *Scraper {
	return &Scraper{indexURL: indexURL, selectors: selectors, timeout: timeout}
}

func (s *Scraper) load(ctx context.Context) error {
	s.once.Do(func() {
		s.sectors, s.fetched = s.fetch(ctx)
	})
	return s.fetched
}

func (s *Scraper) fetch(ctx context.Context) (map[string][]string, error) {
	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(s.indexURL)),
		colly.MaxDepth(1),
		colly.Async(false),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	sectors := map[string][]string{}
	c.OnHTML(s.selectors.Row, func(e *colly.HTMLElement) {
		cells := e.DOM.Find("td")
		symbol := cellText(cells, s.selectors.SymbolCol)
		sector := cellText(cells, s.selectors.SectorCol)
		if symbol == "" || sector == "" {
			return
		}
		sectors[sector] = append(sectors[sector], symbol)
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.ErrorWithErr(ctx, "Constituents scrape failed", err, "url", r.Request.URL.String())
	})

	if err := c.Visit(s.indexURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", s.indexURL, err)
	}
	c.Wait()

	if len(sectors) == 0 {
		return nil, fmt.Errorf("no constituents found at %s", s.indexURL)
	}

	logger.Info(ctx, "Constituents scraped", "url", s.indexURL, "sectors", len(sectors))
	return sectors, nil
}

func cellText(cells *goquery.Selection, col int) string {
	if col >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(col).Text())
}

func (s *Scraper) Sectors(ctx context.Context) ([]string, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.sectors))
	for sector := range s.sectors {
		out = append(out, sector)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Scraper) Constituents(ctx context.Context, sector string) ([]string, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	symbols, ok := s.sectors[sector]
	if !ok {
		return nil, fmt.Errorf("unknown sector %q", sector)
	}
	out := append([]string(nil), symbols...)
	sort.Strings(out)
	return out, nil
}

// AllSymbols flattens every sector into one sorted symbol list, for runs
// that trade the whole index.
func AllSymbols(ctx context.Context, p interfaces.UniverseProvider) ([]string, error) {
	sectors, err := p.Sectors(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, sector := range sectors {
		symbols, err := p.Constituents(ctx, sector)
		if err != nil {
			return nil, err
		}
		out = append(out, symbols...)
	}
	sort.Strings(out)
	return out, nil
}

func getDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
