package service

// PairTable holds the symmetric partner relation. Each pair is stored as two
// map entries written and cleared together, so the relation is always mutual
// or absent on both sides. Partner presence is the single source of truth for
// "matched"; no separate flag is kept.
type PairTable struct {
	partner map[string]string
}

// NewPairTable creates an empty partner relation.
func NewPairTable() *PairTable {
	return &PairTable{
		partner: make(map[string]string),
	}
}

// Link sets mutual partner pointers. Any prior partner of either side is
// unlinked first so the at-most-one-partner invariant holds.
func (t *PairTable) Link(a, b string) {
	t.Unlink(a)
	t.Unlink(b)
	t.partner[a] = b
	t.partner[b] = a
}

// Unlink clears the pair containing id and returns the former partner, or ""
// when id was unpaired.
func (t *PairTable) Unlink(id string) string {
	p, ok := t.partner[id]
	if !ok {
		return ""
	}
	delete(t.partner, id)
	delete(t.partner, p)
	return p
}

// Lookup returns id's current partner, or "" when there is none. A missing
// partner is normal steady state, never an error.
func (t *PairTable) Lookup(id string) string {
	return t.partner[id]
}

// Len reports the number of linked users (twice the number of pairs).
func (t *PairTable) Len() int {
	return len(t.partner)
}
