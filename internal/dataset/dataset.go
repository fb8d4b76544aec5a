// Package dataset supplies the ordered rows that control tracks walk
// through. Datasets are read from YAML files; a built-in dataset generates
// plain hunt permutations on any number of bells.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/breathwave-go/internal/sequencer"
)

// BuiltinID is the dataset served without any files. Its sequences are
// named "plain-hunt-N" for MinStage <= N <= MaxStage.
const (
	BuiltinID = "builtin"
	MinStage  = 3
	MaxStage  = 16
)

var (
	ErrUnknownDataset  = errors.New("unknown dataset")
	ErrUnknownSequence = errors.New("unknown sequence")
)

// File is the YAML layout of one dataset.
type File struct {
	ID        string             `yaml:"id"`
	Sequences map[string][][]int `yaml:"sequences"`
}

// Provider is an in-memory dataset store implementing sequencer.RowSource.
type Provider struct {
	mu       sync.RWMutex
	datasets map[string]map[string][]sequencer.Row
}

func NewProvider() *Provider {
	return &Provider{datasets: make(map[string]map[string][]sequencer.Row)}
}

// Add registers rows under datasetID/sequenceID, replacing any previous
// sequence with the same name.
func (p *Provider) Add(datasetID, sequenceID string, rows []sequencer.Row) error {
	if datasetID == "" || sequenceID == "" {
		return errors.New("dataset and sequence ids must be set")
	}
	if datasetID == BuiltinID {
		return fmt.Errorf("dataset id %q is reserved", BuiltinID)
	}
	if len(rows) == 0 {
		return fmt.Errorf("sequence %s/%s has no rows", datasetID, sequenceID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	seqs, ok := p.datasets[datasetID]
	if !ok {
		seqs = make(map[string][]sequencer.Row)
		p.datasets[datasetID] = seqs
	}
	seqs[sequenceID] = copyRows(rows)
	return nil
}

// LoadYAML reads one dataset. fallbackID names it when the document has
// no id. It returns the dataset id.
func (p *Provider) LoadYAML(r io.Reader, fallbackID string) (string, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return "", fmt.Errorf("decode dataset: %w", err)
	}
	id := f.ID
	if id == "" {
		id = fallbackID
	}
	if len(f.Sequences) == 0 {
		return id, fmt.Errorf("dataset %s has no sequences", id)
	}
	names := make([]string, 0, len(f.Sequences))
	for name := range f.Sequences {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw := f.Sequences[name]
		rows := make([]sequencer.Row, len(raw))
		for i, r := range raw {
			rows[i] = sequencer.Row(r)
		}
		if err := p.Add(id, name, rows); err != nil {
			return id, err
		}
	}
	return id, nil
}

// LoadFile reads a dataset file; the file name without extension is the
// fallback id.
func (p *Provider) LoadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id, err := p.LoadYAML(f, base)
	if err != nil {
		return id, fmt.Errorf("%s: %w", path, err)
	}
	return id, nil
}

// LoadDir reads every .yaml and .yml file in dir. Files that fail to load
// are skipped and reported.
func (p *Provider) LoadDir(dir string) ([]string, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{err}
	}
	var ids []string
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
		default:
			continue
		}
		id, err := p.LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, errs
}

// SequenceRows implements sequencer.RowSource. The returned rows are a
// copy owned by the caller.
func (p *Provider) SequenceRows(datasetID, sequenceID string) ([]sequencer.Row, error) {
	if datasetID == BuiltinID {
		return builtinRows(sequenceID)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	seqs, ok := p.datasets[datasetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, datasetID)
	}
	rows, ok := seqs[sequenceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSequence, datasetID, sequenceID)
	}
	return copyRows(rows), nil
}

// Datasets lists the loaded dataset ids, sorted, excluding the built-in one.
func (p *Provider) Datasets() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.datasets))
	for id := range p.datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sequences lists the sequence ids of a dataset, sorted.
func (p *Provider) Sequences(datasetID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seqs := p.datasets[datasetID]
	ids := make([]string, 0, len(seqs))
	for id := range seqs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func builtinRows(sequenceID string) ([]sequencer.Row, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(sequenceID, "plain-hunt-"))
	if err != nil || !strings.HasPrefix(sequenceID, "plain-hunt-") || n < MinStage || n > MaxStage {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSequence, BuiltinID, sequenceID)
	}
	return PlainHunt(n), nil
}

// PlainHunt returns one plain course of plain hunt on n bells, starting
// from rounds and ending just before rounds recur. Successive rows swap
// adjacent pairs starting alternately at the first and second position.
func PlainHunt(n int) []sequencer.Row {
	if n < MinStage {
		return nil
	}
	row := make(sequencer.Row, n)
	for i := range row {
		row[i] = i + 1
	}
	rows := []sequencer.Row{append(sequencer.Row(nil), row...)}
	for step := 0; ; step++ {
		for j := step % 2; j+1 < n; j += 2 {
			row[j], row[j+1] = row[j+1], row[j]
		}
		if isRounds(row) {
			return rows
		}
		rows = append(rows, append(sequencer.Row(nil), row...))
	}
}

func isRounds(row sequencer.Row) bool {
	for i, v := range row {
		if v != i+1 {
			return false
		}
	}
	return true
}

func copyRows(rows []sequencer.Row) []sequencer.Row {
	out := make([]sequencer.Row, len(rows))
	for i, r := range rows {
		out[i] = append(sequencer.Row(nil), r...)
	}
	return out
}
