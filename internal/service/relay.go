package service

// Relay tracks which delivered message ids belong to which sender, so
// delete-for-everyone can verify ownership instead of relaying blindly.
// Ownership is held only while the pair exists; Forget clears a side when its
// pair dissolves or the connection goes away.
type Relay struct {
	sent map[string]map[string]struct{}
}

// NewRelay creates an empty ownership table.
func NewRelay() *Relay {
	return &Relay{
		sent: make(map[string]map[string]struct{}),
	}
}

// Record remembers that senderID originated msgID.
func (r *Relay) Record(senderID, msgID string) {
	ids, ok := r.sent[senderID]
	if !ok {
		ids = make(map[string]struct{})
		r.sent[senderID] = ids
	}
	ids[msgID] = struct{}{}
}

// Owns reports whether senderID originated msgID.
func (r *Relay) Owns(senderID, msgID string) bool {
	_, ok := r.sent[senderID][msgID]
	return ok
}

// Forget drops all ownership records for id.
func (r *Relay) Forget(id string) {
	delete(r.sent, id)
}
