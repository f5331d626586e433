// Package dataset is the bundled local food table. It answers barcode and
// name queries from memory and never touches the network after loading.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/logging"
)

// Entry is one row of the dataset file. Numbers are per serving.
type Entry struct {
	Barcode      string   `json:"barcode"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand"`
	Category     string   `json:"category"`
	ServingGrams float64  `json:"serving_grams"`
	Calories     *float64 `json:"calories"`
	ProteinG     *float64 `json:"protein_g"`
	CarbsG       *float64 `json:"carbs_g"`
	FatG         *float64 `json:"fat_g"`
	FiberG       *float64 `json:"fiber_g"`
	SugarG       *float64 `json:"sugar_g"`
}

// Table holds the entries in file order plus a barcode index
type Table struct {
	entries   []Entry
	names     []string // normalized names, parallel to entries
	byBarcode map[string]int
}

// NewTable indexes entries. Later duplicates of a barcode are ignored.
func NewTable(entries []Entry) *Table {
	t := &Table{
		entries:   entries,
		names:     make([]string, len(entries)),
		byBarcode: make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		t.names[i] = domain.NormalizeName(e.Name)
		if code := domain.NormalizeBarcode(e.Barcode); code != "" {
			if _, dup := t.byBarcode[code]; !dup {
				t.byBarcode[code] = i
			}
		}
	}
	return t
}

// Decode parses a JSON array of entries
func Decode(data []byte) (*Table, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return NewTable(entries), nil
}

// Load reads and decodes the dataset from src
func Load(ctx context.Context, src Source) (*Table, error) {
	data, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	t, err := Decode(data)
	if err != nil {
		return nil, err
	}
	logging.Log.WithField("entries", t.Len()).Info("[DATASET] loaded")
	return t, nil
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Provider answers queries from a Table
type Provider struct {
	table *Table
}

func NewProvider(table *Table) *Provider {
	return &Provider{table: table}
}

func (p *Provider) Name() string {
	return domain.SourceLocal
}

func (p *Provider) Supports(kind domain.QueryKind) bool {
	return kind == domain.KindBarcode || kind == domain.KindProductName
}

// Lookup matches barcodes exactly. Names match when either the entry name
// contains the query or the query contains the entry name; the first such
// entry in file order wins.
func (p *Provider) Lookup(ctx context.Context, q domain.Query) *domain.Candidate {
	idx := -1
	if q.IsBarcode() {
		if i, ok := p.table.byBarcode[domain.NormalizeBarcode(q.Value)]; ok {
			idx = i
		}
	} else {
		name := domain.NormalizeName(q.Value)
		for i, entryName := range p.table.names {
			if entryName == "" || name == "" {
				continue
			}
			if strings.Contains(entryName, name) || strings.Contains(name, entryName) {
				idx = i
				break
			}
		}
	}

	if idx < 0 {
		logging.Log.WithFields(logrus.Fields{"source": p.Name(), "query": q.Key()}).Debug("[DATASET] no entry")
		return nil
	}
	return p.table.entries[idx].candidate()
}

func (e Entry) candidate() *domain.Candidate {
	c := &domain.Candidate{
		ProductName:  e.Name,
		Brand:        e.Brand,
		Category:     e.Category,
		Barcode:      e.Barcode,
		ServingGrams: e.ServingGrams,
		SourceID:     domain.SourceLocal,
	}
	c.Calories, c.Completeness.Calories = value(e.Calories)
	c.ProteinG, c.Completeness.Protein = value(e.ProteinG)
	c.CarbsG, c.Completeness.Carbs = value(e.CarbsG)
	c.FatG, c.Completeness.Fat = value(e.FatG)
	c.FiberG, c.Completeness.Fiber = value(e.FiberG)
	c.SugarG, c.Completeness.Sugar = value(e.SugarG)
	return c
}

func value(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
