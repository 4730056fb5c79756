package service

import (
	"time"
)

// CallState is the per-user call signaling state.
type CallState int

const (
	CallIdle CallState = iota
	CallRinging
	CallActive
)

func (s CallState) String() string {
	switch s {
	case CallRinging:
		return "ringing"
	case CallActive:
		return "active"
	default:
		return "idle"
	}
}

// CallSession is the transient record of a ringing call. It exists only
// between call-user and accept/reject/cancel/timeout/disconnect. Seq
// identifies this session instance: a deadline timer only fires against the
// session it was armed for, never against a later call by the same caller.
type CallSession struct {
	Caller string
	Callee string
	Seq    uint64

	timer *time.Timer
}

// CallTable tracks per-user call state and ringing sessions. Sessions are
// indexed by caller and, reverse, by callee, so lookups from either side are
// direct. Not safe for concurrent use on its own; the ChatService serializes
// access.
type CallTable struct {
	states   map[string]CallState
	byCaller map[string]*CallSession
	byCallee map[string]string
	seq      uint64
}

// NewCallTable creates an empty call table.
func NewCallTable() *CallTable {
	return &CallTable{
		states:   make(map[string]CallState),
		byCaller: make(map[string]*CallSession),
		byCallee: make(map[string]string),
	}
}

// StateOf returns id's call state; unknown ids are Idle.
func (t *CallTable) StateOf(id string) CallState {
	return t.states[id]
}

// StartRinging creates a session for caller ringing callee and moves the
// caller to Ringing. The caller must be Idle with no open session.
func (t *CallTable) StartRinging(caller, callee string) *CallSession {
	t.seq++
	sess := &CallSession{
		Caller: caller,
		Callee: callee,
		Seq:    t.seq,
	}
	t.byCaller[caller] = sess
	t.byCallee[callee] = caller
	t.states[caller] = CallRinging
	return sess
}

// ArmTimer attaches the cancellable ringing deadline to the session.
func (sess *CallSession) ArmTimer(d time.Duration, onExpire func()) {
	sess.timer = time.AfterFunc(d, onExpire)
}

// SessionByCaller returns the open session initiated by caller, or nil.
func (t *CallTable) SessionByCaller(caller string) *CallSession {
	return t.byCaller[caller]
}

// SessionByCallee returns the open session ringing callee, or nil.
func (t *CallTable) SessionByCallee(callee string) *CallSession {
	caller, ok := t.byCallee[callee]
	if !ok {
		return nil
	}
	return t.byCaller[caller]
}

// Resolve destroys a ringing session and cancels its deadline timer. The
// participants' states are left to the caller: accept moves both to Active,
// every other resolution moves the caller back to Idle.
func (t *CallTable) Resolve(sess *CallSession) {
	if sess == nil {
		return
	}
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
	// Both indexes are removed only when this session is still the current
	// one. A stale resolve must not strip the reverse index of a newer call
	// between the same two users.
	if current, ok := t.byCaller[sess.Caller]; ok && current.Seq == sess.Seq {
		delete(t.byCaller, sess.Caller)
		if caller, ok := t.byCallee[sess.Callee]; ok && caller == sess.Caller {
			delete(t.byCallee, sess.Callee)
		}
	}
}

// SetActive moves both call participants to Active.
func (t *CallTable) SetActive(a, b string) {
	t.states[a] = CallActive
	t.states[b] = CallActive
}

// SetIdle returns id to Idle.
func (t *CallTable) SetIdle(id string) {
	delete(t.states, id)
}

// Forget drops all call state owned by id. Session teardown and partner
// notification happen in the ChatService before this is called.
func (t *CallTable) Forget(id string) {
	delete(t.states, id)
}
