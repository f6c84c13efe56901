package portfolio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

// Flow is an external cash movement into (positive) or out of (negative)
// the account. Trades are internal and never appear here.
type Flow struct {
	Ts     time.Time
	Amount float64
}

// ModifiedDietz computes the percentage return between two equity
// snapshots, weighting each external flow by the fraction of the period it
// was invested. Weights are minute-based; sub-minute precision is noise at
// the polling cadence the ledger records at.
func ModifiedDietz(startEquity, endEquity float64, start, end time.Time, flows []Flow) (float64, error) {
	total := end.Sub(start).Minutes()
	if total <= 0 {
		return 0, errors.New("period end must be after start")
	}

	var sumFlows, weighted float64
	for _, f := range flows {
		if f.Ts.Before(start) || f.Ts.After(end) {
			continue
		}
		w := (total - f.Ts.Sub(start).Minutes()) / total
		sumFlows += f.Amount
		weighted += w * f.Amount
	}

	denom := startEquity + weighted
	if denom == 0 {
		return 0, errors.New("zero average invested capital")
	}
	return (endEquity - startEquity - sumFlows) / denom * 100, nil
}

// Ledger is an append-only CSV of equity snapshots, one row per cycle.
type Ledger struct {
	mu   sync.Mutex
	path string
}

var header = []string{"time", "equity", "cash_flow", "dietz_return_pct"}

func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Append records one snapshot, creating the file with a header row on
// first use.
func (l *Ledger) Append(rec types.EquityRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	_, statErr := os.Stat(l.path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(marshalRecord(rec)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (l *Ledger) Read() ([]types.EquityRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *Ledger) read() ([]types.EquityRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, nil
	}

	records := make([]types.EquityRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec, err := unmarshalRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// CorrectCashFlow attributes an external flow to the ledger row nearest in
// time. Deposits and withdrawals are reported out of band, so the exact
// snapshot they landed between is unknowable; nearest is the best estimate.
func (l *Ledger) CorrectCashFlow(ts time.Time, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("empty ledger, nothing to correct")
	}

	nearest := 0
	best := math.Abs(records[0].Ts.Sub(ts).Minutes())
	for i, rec := range records[1:] {
		d := math.Abs(rec.Ts.Sub(ts).Minutes())
		if d < best {
			best = d
			nearest = i + 1
		}
	}
	records[nearest].CashFlow += amount

	return l.rewrite(records)
}

// WriteDietzReturns recomputes the since-inception return for every row
// and rewrites the ledger with the results.
func (l *Ledger) WriteDietzReturns() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return nil
	}

	start := records[0]
	for i := 1; i < len(records); i++ {
		// The first row's flow sits at the period start and carries weight 1.
		var flows []Flow
		for _, rec := range records[:i+1] {
			if rec.CashFlow != 0 {
				flows = append(flows, Flow{Ts: rec.Ts, Amount: rec.CashFlow})
			}
		}
		ret, err := ModifiedDietz(start.Equity, records[i].Equity, start.Ts, records[i].Ts, flows)
		if err != nil {
			continue
		}
		records[i].DietzReturn = ret
		records[i].HasDietz = true
	}

	return l.rewrite(records)
}

func (l *Ledger) rewrite(records []types.EquityRecord) error {
	tmp := l.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, rec := range records {
		if err := w.Write(marshalRecord(rec)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

func marshalRecord(rec types.EquityRecord) []string {
	dietz := ""
	if rec.HasDietz {
		dietz = strconv.FormatFloat(rec.DietzReturn, 'f', 4, 64)
	}
	return []string{
		rec.Ts.UTC().Format(time.RFC3339),
		strconv.FormatFloat(rec.Equity, 'f', 2, 64),
		strconv.FormatFloat(rec.CashFlow, 'f', 2, 64),
		dietz,
	}
}

func unmarshalRecord(row []string) (types.EquityRecord, error) {
	if len(row) != len(header) {
		return types.EquityRecord{}, fmt.Errorf("malformed ledger row: %v", row)
	}
	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return types.EquityRecord{}, err
	}
	equity, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return types.EquityRecord{}, err
	}
	cashFlow, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return types.EquityRecord{}, err
	}

	rec := types.EquityRecord{Ts: ts.UTC(), Equity: equity, CashFlow: cashFlow}
	if row[3] != "" {
		dietz, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return types.EquityRecord{}, err
		}
		rec.DietzReturn = dietz
		rec.HasDietz = true
	}
	return rec, nil
}
