package study

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/backtest"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/interfaces"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/logger"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/strategy"
	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// SeriesSource serves enriched historical series for backtesting.
type SeriesSource interface {
	GetSeries(ctx context.Context, symbol string) (*types.Series, error)
}

// Allocation is one recommended holding. Weight is the mean-return share
// of the holding's sector among the winning sectors.
type Allocation struct {
	Symbol    string
	Sector    string
	ReturnPct float64
	Weight    float64
}

// Report is the outcome of a full market study.
type Report struct {
	Sectors    []types.SectorResult
	Assets     []types.AssetResult
	TopSectors []string
	TopAssets  []Allocation
}

// Market backtests every index constituent, ranks sectors by average
// return and picks a weighted allocation from the best sectors.
type Market struct {
	provider   interfaces.UniverseProvider
	data       SeriesSource
	strat      strategy.Strategy
	topSectors int
	topAssets  int
}

func NewMarket(provider interfaces.UniverseProvider, data SeriesSource, strat strategy.Strategy, topSectors, topAssets int) *Market {
	return &Market{
		provider:   provider,
		data:       data,
		strat:      strat,
		topSectors: topSectors,
		topAssets:  topAssets,
	}
}

func (m *Market) Run(ctx context.Context) (*Report, error) {
	sectors, err := m.provider.Sectors(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	bySector := map[string][]types.AssetResult{}

	for _, sector := range sectors {
		symbols, err := m.provider.Constituents(ctx, sector)
		if err != nil {
			return nil, err
		}
		for _, symbol := range symbols {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			series, err := m.data.GetSeries(ctx, symbol)
			if err != nil {
				logger.Warn(ctx, "Skipping symbol in study", "symbol", symbol, "error", err.Error())
				continue
			}
			summary, err := backtest.Run(series, m.strat)
			if err != nil {
				logger.Warn(ctx, "Skipping symbol in study", "symbol", symbol, "error", err.Error())
				continue
			}
			if backtest.IsOutlier(summary) {
				logger.Debug(ctx, "Excluding outlier from study",
					"symbol", symbol,
					"return_pct", summary.ReturnPct,
					"transactions", summary.Transactions,
				)
				continue
			}
			asset := types.AssetResult{
				Sector:       sector,
				Symbol:       symbol,
				ReturnPct:    summary.ReturnPct,
				Transactions: summary.Transactions,
			}
			bySector[sector] = append(bySector[sector], asset)
			report.Assets = append(report.Assets, asset)
		}
	}

	for _, sector := range sectors {
		assets := bySector[sector]
		if len(assets) == 0 {
			continue
		}
		report.Sectors = append(report.Sectors, aggregateSector(sector, assets))
	}
	sort.Slice(report.Sectors, func(i, j int) bool {
		return report.Sectors[i].AvgReturn > report.Sectors[j].AvgReturn
	})

	top := m.topSectors
	if top > len(report.Sectors) {
		top = len(report.Sectors)
	}
	for _, s := range report.Sectors[:top] {
		report.TopSectors = append(report.TopSectors, s.Sector)
	}

	report.TopAssets = m.pickTopAssets(bySector, report.Sectors[:top])
	return report, nil
}

func aggregateSector(sector string, assets []types.AssetResult) types.SectorResult {
	var sumRet, sumTx float64
	for _, a := range assets {
		sumRet += a.ReturnPct
		sumTx += float64(a.Transactions)
	}
	mean := sumRet / float64(len(assets))

	var sumSq float64
	for _, a := range assets {
		d := a.ReturnPct - mean
		sumSq += d * d
	}

	return types.SectorResult{
		Sector:          sector,
		AvgReturn:       mean,
		StdDevReturn:    math.Sqrt(sumSq / float64(len(assets))),
		AvgTransactions: sumTx / float64(len(assets)),
		Assets:          len(assets),
	}
}

// pickTopAssets splits the asset budget across the winning sectors in
// proportion to each sector's mean return, then fills each share with that
// sector's best performers. Truncating the per-sector count can leave the
// total short of the budget; the shortfall is accepted, not redistributed.
// Sectors with a non-positive mean carry no weight and receive no share.
func (m *Market) pickTopAssets(bySector map[string][]types.AssetResult, topSectors []types.SectorResult) []Allocation {
	var total float64
	for _, s := range topSectors {
		if s.AvgReturn > 0 {
			total += s.AvgReturn
		}
	}
	if total <= 0 {
		return nil
	}

	var out []Allocation
	for _, s := range topSectors {
		if s.AvgReturn <= 0 {
			continue
		}
		share := s.AvgReturn / total
		count := int(float64(m.topAssets) * share)

		assets := append([]types.AssetResult(nil), bySector[s.Sector]...)
		sort.Slice(assets, func(i, j int) bool { return assets[i].ReturnPct > assets[j].ReturnPct })
		if count > len(assets) {
			count = len(assets)
		}
		for _, a := range assets[:count] {
			out = append(out, Allocation{
				Symbol:    a.Symbol,
				Sector:    a.Sector,
				ReturnPct: a.ReturnPct,
				Weight:    share,
			})
		}
	}
	return out
}

// WriteReport persists the study results: per-sector and per-asset CSVs
// plus a plain-text allocation list consumable by the live config.
func WriteReport(report *Report, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if err := writeCSV(filepath.Join(dir, "SectorPerformance.csv"),
		[]string{"sector", "avg_return_pct", "stddev_return_pct", "avg_transactions", "assets"},
		len(report.Sectors), func(i int) []string {
			s := report.Sectors[i]
			return []string{
				s.Sector,
				formatFloat(s.AvgReturn),
				formatFloat(s.StdDevReturn),
				formatFloat(s.AvgTransactions),
				strconv.Itoa(s.Assets),
			}
		}); err != nil {
		return err
	}

	if err := writeCSV(filepath.Join(dir, "AssetPerformance.csv"),
		[]string{"sector", "symbol", "return_pct", "transactions"},
		len(report.Assets), func(i int) []string {
			a := report.Assets[i]
			return []string{a.Sector, a.Symbol, formatFloat(a.ReturnPct), strconv.Itoa(a.Transactions)}
		}); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "TopAssets.txt"))
	if err != nil {
		return err
	}
	defer f.Close()
	for _, a := range report.TopAssets {
		if _, err := fmt.Fprintln(f, a.Symbol); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, header []string, rows int, row func(int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
