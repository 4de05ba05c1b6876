// Package store owns every entity in the system: a single mutex-guarded
// in-memory value, snapshotted to a JSON document on every mutation.
// Nothing outside this package ever holds a direct reference to the
// underlying maps — callers go through the transactional methods below.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/pkg/logging"
)

// document is the single JSON document persisted per process, matching the
// arrays and maps enumerated in the data model.
type document struct {
	Events     map[string]*model.Event       `json:"events"`
	Markets    map[string]*model.Market      `json:"markets"`
	Trades     []*model.Trade                `json:"trades"`
	Positions  map[string]*model.Position    `json:"positions"`
	Balances   map[string]*model.Balance     `json:"balances"`
	Tokens     map[string]*model.Token       `json:"tokens"`
	PriceHist  map[string][]model.PricePoint `json:"price_history"`
	AssetIndex map[string]int                `json:"asset_index"`
	Oracle     *model.OracleState            `json:"oracle,omitempty"`
}

func newDocument() *document {
	return &document{
		Events:     make(map[string]*model.Event),
		Markets:    make(map[string]*model.Market),
		Trades:     nil,
		Positions:  make(map[string]*model.Position),
		Balances:   make(map[string]*model.Balance),
		Tokens:     make(map[string]*model.Token),
		PriceHist:  make(map[string][]model.PricePoint),
		AssetIndex: make(map[string]int),
	}
}

func (d *document) clone() *document {
	out := newDocument()
	for k, v := range d.Events {
		cp := *v
		out.Events[k] = &cp
	}
	for k, v := range d.Markets {
		cp := *v
		out.Markets[k] = &cp
	}
	for _, v := range d.Trades {
		cp := *v
		out.Trades = append(out.Trades, &cp)
	}
	for k, v := range d.Positions {
		cp := *v
		out.Positions[k] = &cp
	}
	for k, v := range d.Balances {
		cp := *v
		out.Balances[k] = &cp
	}
	for k, v := range d.Tokens {
		cp := *v
		out.Tokens[k] = &cp
	}
	for k, v := range d.PriceHist {
		cp := make([]model.PricePoint, len(v))
		copy(cp, v)
		out.PriceHist[k] = cp
	}
	for k, v := range d.AssetIndex {
		out.AssetIndex[k] = v
	}
	if d.Oracle != nil {
		cp := *d.Oracle
		cp.Prices = make(map[string]float64, len(d.Oracle.Prices))
		for k, v := range d.Oracle.Prices {
			cp.Prices[k] = v
		}
		if d.Oracle.Degraded != nil {
			cp.Degraded = make(map[string]bool, len(d.Oracle.Degraded))
			for k, v := range d.Oracle.Degraded {
				cp.Degraded[k] = v
			}
		}
		out.Oracle = &cp
	}
	return out
}

// MaxPriceHistory bounds the ring buffer of price points kept per market.
const MaxPriceHistory = 500

// Config configures where the Store persists its document.
type Config struct {
	DataDir string
}

// Store is the sole owner of all entities. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	doc  *document
	path string
	log  *logging.Logger
}

// New loads the persisted document from DataDir/state.json, or starts with
// an empty document if the file is absent.
func New(cfg *Config) (*Store, error) {
	if cfg == nil || cfg.DataDir == "" {
		return nil, model.New(model.NotFound, "store: DataDir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.DataDir, "state.json")

	s := &Store{
		doc:  newDocument(),
		path: path,
		log:  logging.GetDefault().Component("store"),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Events == nil {
		doc.Events = make(map[string]*model.Event)
	}
	if doc.Markets == nil {
		doc.Markets = make(map[string]*model.Market)
	}
	if doc.Positions == nil {
		doc.Positions = make(map[string]*model.Position)
	}
	if doc.Balances == nil {
		doc.Balances = make(map[string]*model.Balance)
	}
	if doc.Tokens == nil {
		doc.Tokens = make(map[string]*model.Token)
	}
	if doc.PriceHist == nil {
		doc.PriceHist = make(map[string][]model.PricePoint)
	}
	if doc.AssetIndex == nil {
		doc.AssetIndex = make(map[string]int)
	}
	s.doc = &doc
	return s, nil
}

// persistLocked writes the current document to disk. Must be called while
// holding s.mu, so a reader can never observe a mutation that failed to
// reach disk: the lock is held across both the in-memory update and the
// write-through.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Snapshot is an opaque restore point captured by snapshot() and consumed
// by restore() — the rollback mechanism behind Transact.
type Snapshot struct {
	doc *document
}

// snapshot captures the current document for later rollback. It is called
// (and the result restored) only while s.mu is held, i.e. from inside a
// transaction — see Transact.
func (s *Store) snapshot() Snapshot {
	return Snapshot{doc: s.doc.clone()}
}

// restore replaces the live document with a previously captured snapshot
// and persists it, undoing every mutation made since the snapshot.
func (s *Store) restore(snap Snapshot) error {
	s.doc = snap.doc
	return s.persistLocked()
}

// Transact runs fn with exclusive access to the store. If fn returns an
// error, every mutation fn made is rolled back to the pre-call snapshot and
// the rollback is itself persisted; the original document on disk is left
// exactly as it would be had fn never run. This is the mechanism behind the
// trading engine's buy/sell atomicity guarantee.
func (s *Store) Transact(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	tx := &Tx{s: s}
	if err := fn(tx); err != nil {
		if rerr := s.restore(snap); rerr != nil {
			s.log.Error("rollback persist failed", "error", rerr)
		}
		return err
	}
	if err := s.persistLocked(); err != nil {
		return err
	}
	return nil
}

// View runs fn with shared (read-only by convention) access to the store.
// Callers must not mutate entities returned through tx from inside View.
func (s *Store) View(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Tx{s: s})
}
