// Package flow maintains an LRU-bounded table of active 5-tuple flows,
// deriving the active-flow-count and elephant-flow signals the Persona
// Inferer consumes each tick.
package flow

import (
	"hash/fnv"
	"net"
	"time"
)

const (
	tableSize  = 256
	maxAgeSecs = 60
)

// Key identifies a flow by its 5-tuple.
type Key struct {
	SrcIP    string
	DstIP    string
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8 // 6 = TCP, 17 = UDP
}

func (k Key) hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(k.SrcIP))
	h.Write([]byte{byte(k.SrcPort >> 8), byte(k.SrcPort)})
	h.Write([]byte(k.DstIP))
	h.Write([]byte{byte(k.DstPort >> 8), byte(k.DstPort)})
	h.Write([]byte{k.Protocol})
	return h.Sum32()
}

type slot struct {
	key      Key
	packets  uint64
	bytes    uint64
	lastSeen time.Time
	active   bool
}

// Table is a fixed-size, open-addressed flow table: 256 slots, linear
// probing from hash(key) mod 256, LRU eviction by last_seen on a full
// table. No dynamic allocation occurs after construction.
type Table struct {
	slots [tableSize]slot
}

// New returns an empty flow table.
func New() *Table {
	return &Table{}
}

// Update records packets/bytes observed for key at time now: insert on an
// empty slot, refresh on a match, or evict the least-recently-seen slot
// when the table is full.
func (t *Table) Update(key Key, packets, bytes uint64, now time.Time) {
	start := int(key.hash() % tableSize)

	for i := 0; i < tableSize; i++ {
		idx := (start + i) % tableSize
		s := &t.slots[idx]
		if !s.active {
			*s = slot{key: key, packets: packets, bytes: bytes, lastSeen: now, active: true}
			return
		}
		if s.key == key {
			s.packets = packets
			s.bytes = bytes
			s.lastSeen = now
			return
		}
	}

	// Table full: evict the slot with the smallest last_seen.
	evictIdx := 0
	oldest := t.slots[0].lastSeen
	for i := 1; i < tableSize; i++ {
		if t.slots[i].lastSeen.Before(oldest) {
			oldest = t.slots[i].lastSeen
			evictIdx = i
		}
	}
	t.slots[evictIdx] = slot{key: key, packets: packets, bytes: bytes, lastSeen: now, active: true}
}

// EvictStale marks inactive any slot not seen within maxAge of now.
func (t *Table) EvictStale(now time.Time, maxAge time.Duration) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.active && now.Sub(s.lastSeen) > maxAge {
			s.active = false
		}
	}
}

// DefaultMaxAge is the 60s staleness threshold the loop driver applies
// each tick.
const DefaultMaxAge = maxAgeSecs * time.Second

// Signals is the pair of derived values the Persona Inferer consumes.
type Signals struct {
	ActiveFlows  int
	ElephantFlow bool
}

// DeriveSignals computes active_flows and elephant_flow across active
// slots. An empty table reports ElephantFlow=false and ActiveFlows=0.
func (t *Table) DeriveSignals() Signals {
	var (
		active     int
		totalBytes uint64
		maxBytes   uint64
	)
	for _, s := range t.slots {
		if !s.active {
			continue
		}
		active++
		totalBytes += s.bytes
		if s.bytes > maxBytes {
			maxBytes = s.bytes
		}
	}
	if active == 0 || totalBytes == 0 {
		return Signals{ActiveFlows: active}
	}
	elephant := float64(maxBytes)/float64(totalBytes) >= 0.60
	return Signals{ActiveFlows: active, ElephantFlow: elephant}
}

// ParseIP is a thin validation wrapper used by conntrack population to
// reject malformed addresses before they enter a Key.
func ParseIP(s string) (string, bool) {
	if net.ParseIP(s) == nil {
		return "", false
	}
	return s, true
}
