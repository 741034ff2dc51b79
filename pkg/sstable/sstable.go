// Package sstable implements a single on-disk sorted-string table: an append-only data file of "key,value\n"
// lines, a durable offset sidecar that is advisory only, and a membership filter pre-seeded with every key
// ever added. A table is Active (accepting writes) until it is sealed, after which it is read-only until a
// compaction deletes it.
package sstable

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shoalkv/shoal/pkg/filter"
	"github.com/shoalkv/shoal/pkg/metrics"
)

// State is the lifecycle stage of an SSTable.
type State int

const (
	Active State = iota
	Sealed
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "sealed"
}

var (
	// ErrSealed is returned when Write is attempted on a table that has already been sealed; it is a
	// programmer-error kind and is fatal to the caller's current operation, not to the process.
	ErrSealed = errors.New("sstable: write to sealed table")
	// ErrInvalidKey is returned when a key contains a comma or a newline.
	ErrInvalidKey = errors.New("sstable: key must not contain a comma or newline")
	// ErrInvalidValue is returned when a value contains a newline.
	ErrInvalidValue = errors.New("sstable: value must not contain a newline")
	// ErrMalformedEntry marks a data-file line that could not be split into key,value during recovery or read.
	ErrMalformedEntry = errors.New("sstable: malformed entry")
)

// SSTable is a single immutable-after-seal table backed by two files on disk.
type SSTable struct {
	mux sync.Mutex

	name      string
	dataPath  string
	indexPath string

	data *os.File
	size int64 // current length of the data file; the offset the next write lands at.

	index     map[string]int64
	mf        *filter.Membership
	createdAt time.Time
	state     State
}

// Create makes a brand-new, empty Active table named name inside dir. numBits/numHashes size its membership
// filter.
func Create(dir, name string, numBits, numHashes uint) (*SSTable, error) {
	dataPath := filepath.Join(dir, name+".sst")
	indexPath := filepath.Join(dir, name+".index")

	data, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sstable: create data file %s: %w", dataPath, err)
	}
	info, err := data.Stat()
	if err != nil {
		_ = data.Close()
		return nil, fmt.Errorf("sstable: stat new data file %s: %w", dataPath, err)
	}

	t := &SSTable{
		name:      name,
		dataPath:  dataPath,
		indexPath: indexPath,
		data:      data,
		size:      0,
		index:     make(map[string]int64),
		mf:        filter.New(numBits, numHashes),
		createdAt: info.ModTime(),
		state:     Active,
	}
	if err := t.rewriteIndexLocked(); err != nil {
		slog.Warn("sstable: failed to write initial index sidecar", "table", name, "error", err)
	}
	return t, nil
}

// Open recovers an existing table from its data file, ignoring any index sidecar: the index is always rebuilt
// by streaming the data file, and the membership filter is reseeded with every key encountered. This is both
// the startup-recovery path and the only way to reopen a table the process already knows about.
func Open(dataPath string, numBits, numHashes uint) (*SSTable, error) {
	name := strings.TrimSuffix(filepath.Base(dataPath), filepath.Ext(dataPath))
	indexPath := filepath.Join(filepath.Dir(dataPath), name+".index")

	data, err := os.OpenFile(dataPath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sstable: open data file %s: %w", dataPath, err)
	}
	info, err := data.Stat()
	if err != nil {
		_ = data.Close()
		return nil, fmt.Errorf("sstable: stat data file %s: %w", dataPath, err)
	}

	t := &SSTable{
		name:      name,
		dataPath:  dataPath,
		indexPath: indexPath,
		data:      data,
		index:     make(map[string]int64),
		mf:        filter.New(numBits, numHashes),
		createdAt: info.ModTime(),
		state:     Sealed, // recovered tables stay read-only; the manager creates a fresh Active table instead.
	}
	if err := t.rebuildIndex(); err != nil {
		_ = data.Close()
		return nil, err
	}
	return t, nil
}

// rebuildIndex streams the data file from the start, recording the offset of the *last* occurrence of every
// key and re-adding every key encountered to the membership filter. Malformed lines are logged and skipped;
// recovery continues. NOTE: caller must not hold mux (only called from Open, before the table escapes).
func (t *SSTable) rebuildIndex() error {
	if _, err := t.data.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("sstable: seek to start for recovery: %w", err)
	}
	reader := bufio.NewReader(t.data)
	var offset int64
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			if key, value, ok := splitEntry(line); ok {
				t.index[key] = offset
				t.mf.Add([]byte(key))
				_ = value // value isn't needed during index rebuild, only its offset.
			} else {
				metrics.Raise("sstable", "malformed_entry_during_recovery",
					"skipping unparsable line during recovery", "table", t.name, "offset", offset)
			}
			offset += int64(len(line))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("sstable: read during recovery: %w", err)
		}
	}
	t.size = offset
	return nil
}

// splitEntry splits a raw "key,value\n" line on the first comma, trimming the trailing newline. It returns
// ok=false if there is no comma to split on.
func splitEntry(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSuffix(line, "\n")
	trimmed = strings.TrimSuffix(trimmed, "\r")
	idx := strings.IndexByte(trimmed, ',')
	if idx < 0 {
		return "", "", false
	}
	return trimmed[:idx], trimmed[idx+1:], true
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.ContainsAny(key, ",\n") {
		return ErrInvalidKey
	}
	return nil
}

func validateValue(value string) error {
	if strings.Contains(value, "\n") {
		return ErrInvalidValue
	}
	return nil
}

// Write appends key,value to the data file, updates the in-memory index and membership filter, and rewrites
// the index sidecar in full. If the append itself fails partway through, the data file is truncated back to
// its pre-write length so the table is left unchanged externally. If only the sidecar rewrite fails, the table
// remains correct because recovery rebuilds the index from the data file; the failure is logged, not returned.
func (t *SSTable) Write(key, value string) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	if t.state == Sealed {
		return ErrSealed
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	line := key + "," + value + "\n"
	off := t.size
	n, err := t.data.WriteAt([]byte(line), off)
	if err != nil || n < len(line) {
		if truncErr := t.data.Truncate(off); truncErr != nil {
			slog.Error("sstable: failed to roll back partial write", "table", t.name, "error", truncErr)
		}
		if err == nil {
			err = fmt.Errorf("sstable: short write (%d of %d bytes)", n, len(line))
		}
		return fmt.Errorf("sstable: append to %s: %w", t.dataPath, err)
	}
	if err := t.data.Sync(); err != nil {
		slog.Warn("sstable: fsync failed after write; best-effort durability only", "table", t.name, "error", err)
	}

	t.index[key] = off
	t.mf.Add([]byte(key))
	t.size += int64(len(line))

	if err := t.rewriteIndexLocked(); err != nil {
		slog.Error("sstable: failed to rewrite index sidecar; relying on recovery to repair it",
			"table", t.name, "error", err)
	}

	metrics.KeysWritten.Inc()
	return nil
}

// rewriteIndexLocked truncates the index sidecar and rewrites every entry. NOTE: caller must hold mux.
func (t *SSTable) rewriteIndexLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(t.indexPath), filepath.Base(t.indexPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("sstable: create temp index file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for key, off := range t.index {
		if _, err := fmt.Fprintf(w, "%s,%d\n", key, off); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("sstable: write index entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("sstable: flush index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("sstable: close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.indexPath); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("sstable: rename index file into place: %w", err)
	}
	return nil
}

// Read looks up key: first consulting the membership filter (a negative result is a guaranteed miss), then the
// in-memory index, then the data file itself. A mismatch between the indexed offset and the requested key
// (IndexMismatch, a stale-index soft error) is treated as a miss and logged, not returned as an error.
func (t *SSTable) Read(key string) (value string, found bool, err error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	metrics.FilterProbes.Inc()
	if !t.mf.MightContain([]byte(key)) {
		metrics.FilterSkips.Inc()
		return "", false, nil
	}

	off, ok := t.index[key]
	if !ok {
		return "", false, nil
	}

	section := io.NewSectionReader(t.data, off, t.size-off)
	line, readErr := bufio.NewReader(section).ReadString('\n')
	if readErr != nil && readErr != io.EOF {
		return "", false, fmt.Errorf("sstable: read entry at offset %d: %w", off, readErr)
	}
	gotKey, gotValue, ok := splitEntry(line)
	if !ok {
		metrics.Raise("sstable", "malformed_entry_on_read", "could not parse indexed line",
			"table", t.name, "offset", off)
		return "", false, fmt.Errorf("%w: table %s offset %d", ErrMalformedEntry, t.name, off)
	}
	if gotKey != key {
		metrics.Raise("sstable", "index_mismatch", "indexed offset pointed at a different key",
			"table", t.name, "wantKey", key, "gotKey", gotKey, "offset", off)
		return "", false, nil
	}
	return gotValue, true, nil
}

// AllKeys returns the keys currently in the index, in unspecified order. Used only by compaction.
func (t *SSTable) AllKeys() []string {
	t.mux.Lock()
	defer t.mux.Unlock()

	keys := make([]string, 0, len(t.index))
	for k := range t.index {
		keys = append(keys, k)
	}
	return keys
}

// Seal transitions the table from Active to Sealed. It is a one-way transition; sealing an already-sealed
// table is a no-op.
func (t *SSTable) Seal() {
	t.mux.Lock()
	defer t.mux.Unlock()
	if t.state == Active {
		t.state = Sealed
		metrics.TablesSealed.Inc()
	}
}

// Close releases the table's open file descriptor without removing any files.
func (t *SSTable) Close() error {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.data.Close()
}

// Delete removes both the data file and the index sidecar. Used only by compaction, after the table's
// surviving keys have been persisted into a merged table.
func (t *SSTable) Delete() error {
	t.mux.Lock()
	defer t.mux.Unlock()

	closeErr := t.data.Close()
	dataErr := os.Remove(t.dataPath)
	indexErr := os.Remove(t.indexPath)
	if err := errors.Join(closeErr, dataErr, indexErr); err != nil {
		return fmt.Errorf("sstable: delete %s: %w", t.name, err)
	}
	return nil
}

func (t *SSTable) Name() string { return t.name }

func (t *SSTable) DataPath() string { return t.dataPath }

func (t *SSTable) IndexPath() string { return t.indexPath }

func (t *SSTable) CreatedAt() time.Time {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.createdAt
}

func (t *SSTable) KeyCount() int {
	t.mux.Lock()
	defer t.mux.Unlock()
	return len(t.index)
}

func (t *SSTable) State() State {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.state
}

// MightContain exposes the membership filter directly. Read performs the same check itself before touching the
// index or the data file, so a key the filter rules out never costs a disk seek.
func (t *SSTable) MightContain(key string) bool {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.mf.MightContain([]byte(key))
}

// ParseOrdinal extracts N from a table name of the form "sstable_<N>", used by the manager to keep its naming
// counter monotonic across restarts.
func ParseOrdinal(name string) (int64, error) {
	const prefix = "sstable_"
	if !strings.HasPrefix(name, prefix) {
		return 0, fmt.Errorf("sstable: name %q does not have prefix %q", name, prefix)
	}
	return strconv.ParseInt(strings.TrimPrefix(name, prefix), 10, 64)
}
