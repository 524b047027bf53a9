package signals

import (
	"sort"
	"time"

	"EdgeScan/internal/domain/models"
)

// Book collects signals, drops duplicates of (symbol, kind, timestamp,
// direction) and serves them grouped by symbol and bar. It performs no
// numeric work. Not safe for concurrent use; each pipeline owns its Book.
type Book struct {
	seen    map[string]struct{}
	signals []models.Signal
}

func NewBook() *Book {
	return &Book{seen: map[string]struct{}{}}
}

// Add records signals, ignoring ones already present. Returns how many were new.
func (b *Book) Add(sigs ...models.Signal) int {
	added := 0
	for _, s := range sigs {
		key := s.Key()
		if _, dup := b.seen[key]; dup {
			continue
		}
		b.seen[key] = struct{}{}
		b.signals = append(b.signals, s)
		added++
	}
	return added
}

func (b *Book) Len() int { return len(b.signals) }

// All returns every signal ordered by symbol, timestamp, then kind.
func (b *Book) All() []models.Signal {
	out := make([]models.Signal, len(b.signals))
	copy(out, b.signals)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Symbols returns the distinct symbols in sorted order.
func (b *Book) Symbols() []string {
	set := map[string]struct{}{}
	for _, s := range b.signals {
		set[s.Symbol] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ForSymbol returns the symbol's signals oldest first.
func (b *Book) ForSymbol(symbol string) []models.Signal {
	var out []models.Signal
	for _, s := range b.All() {
		if s.Symbol == symbol {
			out = append(out, s)
		}
	}
	return out
}

// At returns the symbol's signals on bar ts.
func (b *Book) At(symbol string, ts time.Time) []models.Signal {
	var out []models.Signal
	for _, s := range b.ForSymbol(symbol) {
		if s.Timestamp.Equal(ts) {
			out = append(out, s)
		}
	}
	return out
}

// Group returns symbol -> bar time -> signals.
func (b *Book) Group() map[string]map[time.Time][]models.Signal {
	out := map[string]map[time.Time][]models.Signal{}
	for _, s := range b.All() {
		bySym, ok := out[s.Symbol]
		if !ok {
			bySym = map[time.Time][]models.Signal{}
			out[s.Symbol] = bySym
		}
		ts := s.Timestamp.UTC()
		bySym[ts] = append(bySym[ts], s)
	}
	return out
}

// Latest returns the most recent signal of kind for symbol.
func (b *Book) Latest(symbol string, kind models.SignalKind) (models.Signal, bool) {
	var best models.Signal
	found := false
	for _, s := range b.signals {
		if s.Symbol != symbol || s.Kind != kind {
			continue
		}
		if !found || s.Timestamp.After(best.Timestamp) {
			best, found = s, true
		}
	}
	return best, found
}
