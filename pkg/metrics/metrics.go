// Package metrics holds the prometheus collectors of an object store.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "objstore"
	subsystem = "store"
)

// Store counts block traffic. A nil *Store discards every update.
type Store struct {
	blocksWritten prometheus.Counter
	blocksDeduped prometheus.Counter
	bytesWritten  prometheus.Counter
	blocksRead    prometheus.Counter
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	filesWritten  prometheus.Counter
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Store, error) {
	m := &Store{
		blocksWritten: newCounter("blocks_written_total", "Blocks appended to packs."),
		blocksDeduped: newCounter("blocks_deduplicated_total", "Blocks skipped because the same ID was already stored."),
		bytesWritten:  newCounter("bytes_written_total", "Plaintext bytes of appended blocks."),
		blocksRead:    newCounter("blocks_read_total", "Blocks read from packs."),
		cacheHits:     newCounter("cache_hits_total", "Block reads served from the cache."),
		cacheMisses:   newCounter("cache_misses_total", "Block reads that missed the cache."),
		filesWritten:  newCounter("files_written_total", "File revisions committed."),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Store) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.blocksWritten, m.blocksDeduped, m.bytesWritten,
		m.blocksRead, m.cacheHits, m.cacheMisses, m.filesWritten,
	}
}

func (m *Store) BlockWritten(n int) {
	if m == nil {
		return
	}
	m.blocksWritten.Inc()
	m.bytesWritten.Add(float64(n))
}

func (m *Store) BlockDeduped() {
	if m != nil {
		m.blocksDeduped.Inc()
	}
}

func (m *Store) BlockRead() {
	if m != nil {
		m.blocksRead.Inc()
	}
}

// CacheLookup records a cache hit or miss.
func (m *Store) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

func (m *Store) FileWritten() {
	if m != nil {
		m.filesWritten.Inc()
	}
}
