package universe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const constituentsPage = `<html><body>
<table id="constituents">
<thead><tr><th>Symbol</th><th>Security</th><th>Sector</th></tr></thead>
<tbody>
<tr><td>AAPL</td><td>Apple</td><td>Information Technology</td></tr>
<tr><td>MSFT</td><td>Microsoft</td><td>Information Technology</td></tr>
<tr><td>JPM</td><td>JPMorgan</td><td>Financials</td></tr>
<tr><td></td><td>Malformed</td><td>Financials</td></tr>
</tbody>
</table>
</body></html>`

func newConstituentsServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(constituentsPage))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScraperGroupsBySector(t *testing.T) {
	srv := newConstituentsServer(t)
	s := NewScraper(srv.URL, DefaultSelectors(), 5*time.Second)
	ctx := context.Background()

	sectors, err := s.Sectors(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(sectors) != 2 || sectors[0] != "Financials" || sectors[1] != "Information Technology" {
		t.Fatalf("Expected sorted sectors, got %v", sectors)
	}

	tech, err := s.Constituents(ctx, "Information Technology")
	if err != nil {
		t.Fatal(err)
	}
	if len(tech) != 2 || tech[0] != "AAPL" || tech[1] != "MSFT" {
		t.Errorf("Expected [AAPL MSFT], got %v", tech)
	}

	// The row without a ticker must not survive parsing.
	fin, err := s.Constituents(ctx, "Financials")
	if err != nil {
		t.Fatal(err)
	}
	if len(fin) != 1 || fin[0] != "JPM" {
		t.Errorf("Expected [JPM], got %v", fin)
	}
}

func TestScraperUnknownSector(t *testing.T) {
	srv := newConstituentsServer(t)
	s := NewScraper(srv.URL, DefaultSelectors(), 5*time.Second)

	if _, err := s.Constituents(context.Background(), "Utilities"); err == nil {
		t.Error("Expected error for sector absent from the index")
	}
}

func TestScraperFetchesOnce(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(constituentsPage))
	}))
	t.Cleanup(srv.Close)

	s := NewScraper(srv.URL, DefaultSelectors(), 5*time.Second)
	ctx := context.Background()
	if _, err := s.Sectors(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Constituents(ctx, "Financials"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("Expected a single fetch, got %d", calls)
	}
}

func TestStaticProvider(t *testing.T) {
	s := NewStatic(map[string][]string{
		"Energy":     {"XOM", "CVX"},
		"Financials": {"JPM"},
	})
	ctx := context.Background()

	sectors, err := s.Sectors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sectors) != 2 || sectors[0] != "Energy" {
		t.Errorf("Expected sorted sectors, got %v", sectors)
	}

	energy, err := s.Constituents(ctx, "Energy")
	if err != nil {
		t.Fatal(err)
	}
	if len(energy) != 2 || energy[0] != "CVX" {
		t.Errorf("Expected sorted constituents, got %v", energy)
	}

	if _, err := s.Constituents(ctx, "Missing"); err == nil {
		t.Error("Expected error for unknown sector")
	}
}

func TestAllSymbols(t *testing.T) {
	s := NewStatic(map[string][]string{
		"Energy":     {"XOM"},
		"Financials": {"JPM", "BAC"},
	})

	symbols, err := AllSymbols(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"BAC", "JPM", "XOM"}
	if len(symbols) != len(want) {
		t.Fatalf("Expected %v, got %v", want, symbols)
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, symbols)
		}
	}
}
