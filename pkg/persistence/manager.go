// Package persistence implements the Persistence Manager: it owns the ordered set of SSTables for one data
// directory, routes writes to the single Active table, probes Sealed tables newest-first on read, and rolls
// and compacts tables as they fill up. The Manager is modeled as a single-threaded actor with an in-order
// mailbox; callers talk to it through Put/Get, which enqueue a message and block only the calling goroutine
// (never the Manager's own mailbox loop) until a reply arrives. The blocking file I/O a message triggers runs
// on a bounded worker pool, kept distinct from the mailbox loop itself per the concurrency model.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/shoalkv/shoal/pkg/metrics"
	"github.com/shoalkv/shoal/pkg/sstable"
)

// Config controls how a Manager sizes its SSTables and schedules background work.
type Config struct {
	Dir                 string // Directory owned exclusively by this Manager instance.
	BloomFilterSize     uint   // M: bits in each table's membership filter.
	BloomHashCount      uint   // K: hash probes per key.
	MaxKeysPerSSTable   int    // Active table seals once it holds this many distinct keys.
	CompactionThreshold int    // Compaction runs once the live table count exceeds this (spec default 3).
	WorkerPoolSize      int    // Bounded number of concurrent blocking file operations.
}

func (c Config) withDefaults() Config {
	if c.CompactionThreshold <= 0 {
		c.CompactionThreshold = 3
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = 4
	}
	if c.MaxKeysPerSSTable <= 0 {
		c.MaxKeysPerSSTable = 1000
	}
	if c.BloomFilterSize == 0 {
		c.BloomFilterSize = 1 << 16
	}
	if c.BloomHashCount == 0 {
		c.BloomHashCount = 4
	}
	return c
}

type cmdKind int

const (
	cmdPut cmdKind = iota
	cmdGet
	cmdSeal
	cmdInspect
)

type command struct {
	kind  cmdKind
	key   string
	value string
	reply chan result

	snapshotReply chan Snapshot // only set for cmdInspect
}

type result struct {
	value string
	found bool
	err   error
}

// Manager owns every SSTable in Config.Dir: exactly one Active and zero or more Sealed.
type Manager struct {
	cfg Config

	mailbox chan command
	sem     chan struct{} // bounds concurrent blocking file operations.
	done    chan struct{}
	wg      sync.WaitGroup

	// The following fields are only ever touched from the mailbox loop goroutine.
	tables  []*sstable.SSTable // all live tables, kept sorted ascending by (CreatedAt, Name).
	active  *sstable.SSTable
	counter int64 // monotonic counter used to name new tables.
}

// Open starts a Manager over cfg.Dir, recovering any existing *.sst files and creating a fresh Active table.
func Open(cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, errors.New("persistence: Dir must be set")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create data dir %s: %w", cfg.Dir, err)
	}

	m := &Manager{
		cfg:     cfg,
		mailbox: make(chan command, 64),
		sem:     make(chan struct{}, cfg.WorkerPoolSize),
		done:    make(chan struct{}),
	}
	if err := m.recover(); err != nil {
		return nil, err
	}
	m.wg.Add(1)
	go m.run()
	return m, nil
}

// recover scans cfg.Dir for *.sst files, reopens each (rebuilding its index and membership filter from the
// data file, discarding any index sidecar), marks them all Sealed, and creates a fresh Active table. Order the
// loaded tables by creation time ascending.
func (m *Manager) recover() error {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		return fmt.Errorf("persistence: read data dir %s: %w", m.cfg.Dir, err)
	}

	var loaded []*sstable.SSTable
	var maxOrdinal int64
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sst" {
			continue
		}
		path := filepath.Join(m.cfg.Dir, entry.Name())
		tbl, err := sstable.Open(path, m.cfg.BloomFilterSize, m.cfg.BloomHashCount)
		if err != nil {
			slog.Error("persistence: failed to recover sstable, skipping", "path", path, "error", err)
			continue
		}
		loaded = append(loaded, tbl)
		if n, err := sstable.ParseOrdinal(tbl.Name()); err == nil && n > maxOrdinal {
			maxOrdinal = n
		}
	}
	sort.Slice(loaded, func(i, j int) bool { return tableLess(loaded[i], loaded[j]) })

	m.tables = loaded
	m.counter = maxOrdinal
	active, err := m.createTable()
	if err != nil {
		return err
	}
	m.active = active
	m.tables = append(m.tables, active)
	metrics.LiveTables.Set(float64(len(m.tables)))
	slog.Info("persistence: recovery complete", "dir", m.cfg.Dir, "recoveredTables", len(loaded),
		"active", active.Name())
	return nil
}

// tableLess orders tables by creation time ascending, breaking ties by table name so ordering is deterministic
// even when two tables share a creation timestamp (common on filesystems with coarse mtime resolution).
func tableLess(a, b *sstable.SSTable) bool {
	at, bt := a.CreatedAt(), b.CreatedAt()
	if at.Equal(bt) {
		return a.Name() < b.Name()
	}
	return at.Before(bt)
}

func (m *Manager) nextName() string {
	m.counter++
	return fmt.Sprintf("sstable_%d", m.counter)
}

func (m *Manager) createTable() (*sstable.SSTable, error) {
	name := m.nextName()
	tbl, err := sstable.Create(m.cfg.Dir, name, m.cfg.BloomFilterSize, m.cfg.BloomHashCount)
	if err != nil {
		return nil, fmt.Errorf("persistence: create table %s: %w", name, err)
	}
	return tbl, nil
}

// runBlocking executes fn on a pooled worker goroutine, bounded by Config.WorkerPoolSize, and waits for it to
// finish. It is how the mailbox loop delegates blocking file I/O without performing the syscalls itself.
func (m *Manager) runBlocking(fn func() result) result {
	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	done := make(chan result, 1)
	go func() { done <- fn() }()
	return <-done
}

// run is the Manager's mailbox loop: one message processed at a time, in arrival order.
func (m *Manager) run() {
	defer m.wg.Done()
	for cmd := range m.mailbox {
		switch cmd.kind {
		case cmdPut:
			m.handlePut(cmd)
		case cmdGet:
			m.handleGet(cmd)
		case cmdSeal:
			m.handleSeal()
		case cmdInspect:
			m.handleInspect(cmd)
		}
	}
}

func (m *Manager) handlePut(cmd command) {
	active := m.active
	res := m.runBlocking(func() result {
		return result{err: active.Write(cmd.key, cmd.value)}
	})
	cmd.reply <- res // The caller is unblocked here; any seal/compaction below runs after the reply.

	if res.err != nil {
		return
	}
	if active.KeyCount() >= m.cfg.MaxKeysPerSSTable {
		m.handleSeal()
	}
}

func (m *Manager) handleGet(cmd command) {
	// Newest-first: the most recent write of a key dominates older writes that may still be awaiting
	// compaction.
	for i := len(m.tables) - 1; i >= 0; i-- {
		tbl := m.tables[i]
		res := m.runBlocking(func() result {
			v, found, err := tbl.Read(cmd.key)
			return result{value: v, found: found, err: err}
		})
		if res.err != nil {
			slog.Error("persistence: read failed, trying older tables", "table", tbl.Name(), "error", res.err)
			continue
		}
		if res.found {
			cmd.reply <- res
			return
		}
	}
	cmd.reply <- result{found: false}
}

// handleSeal finalizes the current Active table, creates a fresh one, and evaluates compaction. It is always
// run from the mailbox loop, either directly after a Put that crossed the key threshold, or (in principle) as
// a queued message; either way it never races with Put/Get handling.
func (m *Manager) handleSeal() {
	sealing := m.active
	sealing.Seal()

	fresh, err := m.createTable()
	if err != nil {
		metrics.Raise("persistence", "roll_failed", "failed to create fresh active table after seal",
			"error", err)
		return
	}
	m.active = fresh
	m.tables = append(m.tables, fresh)
	metrics.LiveTables.Set(float64(len(m.tables)))
	slog.Info("persistence: sealed table and rolled to a fresh active table",
		"sealed", sealing.Name(), "active", fresh.Name())

	m.evaluateCompaction()
}

// Put appends key,value through the Manager's mailbox and waits for the append (and its index/filter update)
// to complete. Sealing and compaction triggered by this Put, if any, happen after the reply and do not delay
// it.
func (m *Manager) Put(ctx context.Context, key, value string) error {
	select {
	case <-m.done:
		return errors.New("persistence: manager is closed")
	default:
	}
	reply := make(chan result, 1)
	select {
	case m.mailbox <- command{kind: cmdPut, key: key, value: value, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return errors.New("persistence: manager is closed")
	}
	select {
	case res := <-reply:
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get probes every table newest-first and returns the first value found.
func (m *Manager) Get(ctx context.Context, key string) (value string, found bool, err error) {
	select {
	case <-m.done:
		return "", false, errors.New("persistence: manager is closed")
	default:
	}
	reply := make(chan result, 1)
	select {
	case m.mailbox <- command{kind: cmdGet, key: key, reply: reply}:
	case <-ctx.Done():
		return "", false, ctx.Err()
	case <-m.done:
		return "", false, errors.New("persistence: manager is closed")
	}
	select {
	case res := <-reply:
		return res.value, res.found, res.err
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// Close stops accepting new requests and waits for the mailbox to drain, then closes every table's file
// descriptor.
func (m *Manager) Close() error {
	select {
	case <-m.done:
		return nil // Already closed.
	default:
	}
	close(m.done)
	close(m.mailbox)
	m.wg.Wait()

	var errs []error
	for _, tbl := range m.tables {
		if err := tbl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("persistence: close manager: %w", errors.Join(errs...))
	}
	return nil
}

// Snapshot describes the Manager's table list at an instant, for tests and introspection.
type Snapshot struct {
	ActiveName     string
	ActiveKeyCount int
	SealedNames    []string
	SealedCounts   map[string]int
	AllNames       []string // every live table, ascending by creation time, including Active.
}

// Inspect returns a point-in-time view of the table list, taken from inside the mailbox loop so it never
// races with an in-flight Put/Get/seal.
func (m *Manager) Inspect(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	cmd := command{kind: cmdInspect, snapshotReply: reply}
	select {
	case m.mailbox <- cmd:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-m.done:
		return Snapshot{}, errors.New("persistence: manager is closed")
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (m *Manager) handleInspect(cmd command) {
	snap := Snapshot{
		ActiveName:     m.active.Name(),
		ActiveKeyCount: m.active.KeyCount(),
		SealedCounts:   make(map[string]int),
	}
	for _, tbl := range m.tables {
		snap.AllNames = append(snap.AllNames, tbl.Name())
		if tbl == m.active {
			continue
		}
		snap.SealedNames = append(snap.SealedNames, tbl.Name())
		snap.SealedCounts[tbl.Name()] = tbl.KeyCount()
	}
	cmd.snapshotReply <- snap
}
