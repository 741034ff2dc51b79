package persistence

import (
	"log/slog"
	"sort"

	"github.com/shoalkv/shoal/pkg/metrics"
	"github.com/shoalkv/shoal/pkg/sstable"
)

// evaluateCompaction merges the three oldest Sealed tables into a single new Sealed table whenever the live
// table count (including the current Active table) exceeds Config.CompactionThreshold. It repeats until the
// threshold is satisfied or fewer than three Sealed tables remain, so a burst of rolls collapses in one pass
// rather than leaving the manager oscillating just above the bound. NOTE: must only be called from the
// mailbox loop.
func (m *Manager) evaluateCompaction() {
	for len(m.tables) > m.cfg.CompactionThreshold {
		sealed := m.sealedTablesAscending()
		if len(sealed) < 3 {
			return
		}
		oldest := sealed[:3]
		if err := m.compactOnce(oldest); err != nil {
			metrics.Raise("persistence", "compaction_failed", "failed to compact oldest sealed tables", "error", err)
			return
		}
	}
}

// sealedTablesAscending returns every Sealed table, ordered oldest-first, breaking ties in creation time by
// table name for determinism.
func (m *Manager) sealedTablesAscending() []*sstable.SSTable {
	var sealed []*sstable.SSTable
	for _, tbl := range m.tables {
		if tbl.State() == sstable.Sealed {
			sealed = append(sealed, tbl)
		}
	}
	sort.Slice(sealed, func(i, j int) bool { return tableLess(sealed[i], sealed[j]) })
	return sealed
}

// compactOnce merges sources (oldest to newest) into a freshly created Sealed table, deletes the sources, and
// splices the merged table into m.tables in creation-time order.
func (m *Manager) compactOnce(sources []*sstable.SSTable) error {
	merged, err := m.createTable()
	if err != nil {
		return err
	}

	for _, src := range sources {
		for _, key := range src.AllKeys() {
			value, found, err := src.Read(key)
			if err != nil {
				slog.Error("persistence: compaction read failed, dropping key", "source", src.Name(),
					"key", key, "error", err)
				continue
			}
			if !found {
				continue // Stale index entry; nothing to carry forward.
			}
			// Later sources (and later keys within the same source) naturally overwrite earlier ones,
			// since merged.Write keeps only the latest offset per key.
			if err := merged.Write(key, value); err != nil {
				slog.Error("persistence: compaction write failed, dropping key", "key", key, "error", err)
			}
		}
	}
	merged.Seal()

	sourceSet := make(map[*sstable.SSTable]struct{}, len(sources))
	for _, src := range sources {
		sourceSet[src] = struct{}{}
	}
	remaining := m.tables[:0:0]
	for _, tbl := range m.tables {
		if _, dropped := sourceSet[tbl]; dropped {
			continue
		}
		remaining = append(remaining, tbl)
	}
	remaining = append(remaining, merged)
	sort.Slice(remaining, func(i, j int) bool { return tableLess(remaining[i], remaining[j]) })
	m.tables = remaining

	for _, src := range sources {
		if err := src.Delete(); err != nil {
			slog.Error("persistence: failed to delete compacted source table", "table", src.Name(), "error", err)
		}
	}

	metrics.CompactionsRun.Inc()
	metrics.LiveTables.Set(float64(len(m.tables)))
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	slog.Info("persistence: compacted sealed tables", "sources", names, "merged", merged.Name())
	return nil
}
