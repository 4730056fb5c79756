package service

// Matchmaker keeps one FIFO waiting pool per room. Entries are connection
// ids in strict arrival order. Stale entries (disconnected or already paired
// users) are not removed eagerly; PopEligible discards them lazily while
// scanning from the head.
type Matchmaker struct {
	pools map[string][]string
}

// NewMatchmaker creates an empty set of waiting pools.
func NewMatchmaker() *Matchmaker {
	return &Matchmaker{
		pools: make(map[string][]string),
	}
}

// Enqueue appends id to the tail of room's pool.
func (m *Matchmaker) Enqueue(room, id string) {
	m.pools[room] = append(m.pools[room], id)
}

// PopEligible scans room's pool from the head, discarding every entry for
// which eligible returns false, and returns the first eligible id. Returns ""
// when the pool is exhausted. Discarded entries are gone for good; an
// ineligible entry is either stale or already paired through another path.
func (m *Matchmaker) PopEligible(room string, eligible func(id string) bool) string {
	pool := m.pools[room]
	for len(pool) > 0 {
		candidate := pool[0]
		pool = pool[1:]
		if eligible(candidate) {
			m.setPool(room, pool)
			return candidate
		}
	}
	m.setPool(room, pool)
	return ""
}

// Remove deletes id from room's pool, if present.
func (m *Matchmaker) Remove(room, id string) {
	pool := m.pools[room]
	for i, entry := range pool {
		if entry == id {
			m.setPool(room, append(pool[:i:i], pool[i+1:]...))
			return
		}
	}
}

// Waiting reports the number of entries in room's pool, including entries
// that would be discarded as stale on the next scan.
func (m *Matchmaker) Waiting(room string) int {
	return len(m.pools[room])
}

// Rooms reports the number of rooms with a non-empty pool.
func (m *Matchmaker) Rooms() int {
	return len(m.pools)
}

func (m *Matchmaker) setPool(room string, pool []string) {
	if len(pool) == 0 {
		delete(m.pools, room)
		return
	}
	m.pools[room] = pool
}
