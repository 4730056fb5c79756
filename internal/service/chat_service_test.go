package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"kenalan/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu     sync.Mutex
	events []models.OutboundEvent
}

func (f *fakeSender) Send(event models.OutboundEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeSender) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.events))
	for i, e := range f.events {
		names[i] = e.Event
	}
	return names
}

func (f *fakeSender) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (f *fakeSender) lastData(event string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].Event == event {
			return f.events[i].Data
		}
	}
	return nil
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

func newTestService() *ChatService {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	svc := NewChatService(models.CallConfig{RingTimeoutSec: 30, EndCallCooldownMs: 2000}, logger)

	var seq int
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("msg-%d", seq)
	}
	return svc
}

func join(svc *ChatService, id, room string) *fakeSender {
	sender := &fakeSender{}
	svc.Join(id, sender, models.Profile{Name: "user-" + id, Room: room})
	return sender
}

func TestJoinPairsInArrivalOrder(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	// First two arrivals pair with each other immediately.
	assert.Equal(t, 1, a.count(models.EventMatched))
	assert.Equal(t, 1, b.count(models.EventMatched))
	assert.Equal(t, "b", svc.pairs.Lookup("a"))
	assert.Equal(t, "a", svc.pairs.Lookup("b"))

	c := join(svc, "c", "r1")
	d := join(svc, "d", "r1")
	e := join(svc, "e", "r1")

	// c and d pair, e waits.
	assert.Equal(t, 1, c.count(models.EventMatched))
	assert.Equal(t, "d", svc.pairs.Lookup("c"))
	assert.Equal(t, 1, d.count(models.EventMatched))
	assert.Equal(t, 0, e.count(models.EventMatched))
	assert.Equal(t, 1, svc.pools.Waiting("r1"))
}

func TestSurvivorNotRequeuedAfterPartnerLeaves(t *testing.T) {
	svc := newTestService()

	join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.Disconnect("a")
	b.reset()

	// b got partner-left but must re-join explicitly to wait again.
	c := join(svc, "c", "r1")
	assert.Equal(t, 0, c.count(models.EventMatched))
	assert.Equal(t, 0, b.count(models.EventMatched))
}

func TestDisconnectWhileWaitingClearsPoolEntry(t *testing.T) {
	svc := newTestService()

	join(svc, "a", "r1")
	svc.Disconnect("a")

	b := join(svc, "b", "r1")
	assert.Equal(t, 0, b.count(models.EventMatched))
	assert.Equal(t, 1, svc.pools.Waiting("r1"))

	c := join(svc, "c", "r1")
	assert.Equal(t, 1, b.count(models.EventMatched))
	assert.Equal(t, 1, c.count(models.EventMatched))
}

func TestJoinDifferentRoomsNeverPair(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	b := join(svc, "b", "r2")

	assert.Equal(t, 0, a.count(models.EventMatched))
	assert.Equal(t, 0, b.count(models.EventMatched))
	assert.Empty(t, svc.pairs.Lookup("a"))
}

func TestJoinValidationFailureChangesNothing(t *testing.T) {
	svc := newTestService()

	sender := &fakeSender{}
	svc.Join("a", sender, models.Profile{Name: "", Room: "r1"})

	assert.Equal(t, 1, sender.count(models.EventError))
	assert.Nil(t, svc.registry.Get("a"))
	assert.Equal(t, 0, svc.pools.Waiting("r1"))
}

func TestPartnerLinkAlwaysSymmetric(t *testing.T) {
	svc := newTestService()

	for i := 0; i < 7; i++ {
		join(svc, fmt.Sprintf("u%d", i), "r1")
	}

	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("u%d", i)
		if p := svc.pairs.Lookup(id); p != "" {
			assert.Equal(t, id, svc.pairs.Lookup(p), "partner relation must be mutual")
		}
	}
}

func TestRejoinReleasesPriorState(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	b := join(svc, "b", "r1")
	require.Equal(t, "b", svc.pairs.Lookup("a"))

	// a re-joins into another room: the old pair must dissolve first.
	svc.Join("a", a, models.Profile{Name: "user-a", Room: "r2"})

	assert.Empty(t, svc.pairs.Lookup("a"))
	assert.Empty(t, svc.pairs.Lookup("b"))
	assert.Equal(t, 1, b.count(models.EventPartnerLeft))
	assert.Equal(t, 1, svc.pools.Waiting("r2"))
	assert.Equal(t, 0, svc.pools.Waiting("r1"))
}

func TestRejoinWhileWaitingDoesNotDuplicatePoolEntry(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	svc.Join("a", a, models.Profile{Name: "user-a", Room: "r1"})

	assert.Equal(t, 1, svc.pools.Waiting("r1"))

	// The single entry must still be matchable.
	b := join(svc, "b", "r1")
	assert.Equal(t, 1, b.count(models.EventMatched))
}

func TestMessageRelayedToPartnerOnly(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	b := join(svc, "b", "r1")
	c := join(svc, "c", "r1")

	svc.SendMessage("a", "hi")

	require.Equal(t, 1, b.count(models.EventMessage))
	msg, ok := b.lastData(models.EventMessage).(models.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "hi", msg.Text)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())

	// Sender gets a confirmation, never a copy of its own message.
	assert.Equal(t, 1, a.count(models.EventMessageConfirmed))
	assert.Equal(t, 0, a.count(models.EventMessage))

	// Third parties receive nothing.
	assert.Equal(t, 0, c.count(models.EventMessage))
}

func TestMessageWithoutPartnerDroppedSilently(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	svc.SendMessage("a", "hello?")

	assert.Equal(t, 0, a.count(models.EventError))
	assert.Equal(t, 0, a.count(models.EventMessageConfirmed))
}

func TestTypingForwardedToPartner(t *testing.T) {
	svc := newTestService()

	join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.Typing("a")
	assert.Equal(t, 1, b.count(models.EventTyping))
}

func TestDeleteForEveryoneRequiresOwnership(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.SendMessage("a", "secret")
	confirmation, ok := a.lastData(models.EventMessageConfirmed).(models.MessageConfirmation)
	require.True(t, ok)

	// The partner cannot delete a message it did not send.
	svc.DeleteForEveryone("b", confirmation.ID)
	assert.Equal(t, 0, a.count(models.EventDeleteForEveryone))
	assert.Equal(t, 0, b.count(models.EventDeleteForEveryone))

	// The original sender can.
	svc.DeleteForEveryone("a", confirmation.ID)
	assert.Equal(t, 1, a.count(models.EventDeleteForEveryone))
	assert.Equal(t, 1, b.count(models.EventDeleteForEveryone))
}

func TestDeleteForEveryoneUnknownIDIgnored(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	join(svc, "b", "r1")

	svc.DeleteForEveryone("a", "msg-never-sent")
	assert.Equal(t, 0, a.count(models.EventDeleteForEveryone))
}

func TestOwnershipForgottenWhenPairDissolves(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	join(svc, "b", "r1")

	svc.SendMessage("a", "hi")
	confirmation := a.lastData(models.EventMessageConfirmed).(models.MessageConfirmation)

	svc.Disconnect("b")
	svc.DeleteForEveryone("a", confirmation.ID)
	assert.Equal(t, 0, a.count(models.EventDeleteForEveryone))
}

func TestDisconnectNotifiesPartnerWithSystemMessage(t *testing.T) {
	svc := newTestService()

	join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.Disconnect("a")

	assert.Equal(t, 1, b.count(models.EventPartnerLeft))
	require.Equal(t, 1, b.count(models.EventMessage))
	msg := b.lastData(models.EventMessage).(models.ChatMessage)
	assert.True(t, msg.System)
	assert.Equal(t, "user-a telah keluar dari chat", msg.Text)

	// The survivor is not re-queued automatically.
	assert.Equal(t, 0, svc.pools.Waiting("r1"))
	assert.Empty(t, svc.pairs.Lookup("b"))
}

func TestDisconnectWhileWaitingLeavesNoGhost(t *testing.T) {
	svc := newTestService()

	join(svc, "a", "r1")
	svc.Disconnect("a")

	assert.Nil(t, svc.registry.Get("a"))
	b := join(svc, "b", "r1")
	assert.Equal(t, 0, b.count(models.EventMatched))
}

func TestDisconnectUnknownIDIsNoOp(t *testing.T) {
	svc := newTestService()
	svc.Disconnect("ghost")
	svc.Disconnect("ghost")
}

func TestCallUserRequiresPartner(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	svc.CallUser("a")

	require.Equal(t, 1, a.count(models.EventCallFailed))
	data := a.lastData(models.EventCallFailed).(models.CallFailedPayload)
	assert.Equal(t, "no partner", data.Reason)
}

func TestCallFlowAccept(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.CallUser("a")
	assert.Equal(t, 1, a.count(models.EventCallSent))
	require.Equal(t, 1, b.count(models.EventIncomingCall))
	incoming := b.lastData(models.EventIncomingCall).(models.IncomingCallPayload)
	assert.Equal(t, "user-a", incoming.Name)
	assert.Equal(t, CallRinging, svc.calls.StateOf("a"))

	svc.AcceptCall("b")
	assert.Equal(t, 1, a.count(models.EventCallAccepted))
	assert.Equal(t, CallActive, svc.calls.StateOf("a"))
	assert.Equal(t, CallActive, svc.calls.StateOf("b"))
	assert.Nil(t, svc.calls.SessionByCaller("a"))
}

func TestCallFlowReject(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	join(svc, "b", "r1")

	svc.CallUser("a")
	svc.RejectCall("b")

	assert.Equal(t, 1, a.count(models.EventCallRejected))
	assert.Equal(t, CallIdle, svc.calls.StateOf("a"))
	assert.Nil(t, svc.calls.SessionByCaller("a"))
}

func TestCallFlowCancel(t *testing.T) {
	svc := newTestService()

	join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.CallUser("a")
	svc.CancelCall("a")

	assert.Equal(t, 1, b.count(models.EventCallRejected))
	assert.Equal(t, CallIdle, svc.calls.StateOf("a"))
}

func TestSecondCallWhileRingingRefused(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	join(svc, "b", "r1")

	svc.CallUser("a")
	svc.CallUser("a")

	assert.Equal(t, 1, a.count(models.EventCallSent))
	assert.Equal(t, 1, a.count(models.EventCallFailed))
}

func TestCallWhilePartnerBusyRefused(t *testing.T) {
	svc := newTestService()

	join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.CallUser("a")

	// The callee cannot start its own call while being rung.
	b.reset()
	svc.CallUser("b")
	assert.Equal(t, 1, b.count(models.EventCallFailed))
}

func TestCallTimeoutFiresExactlyOnce(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.CallUser("a")
	sess := svc.calls.SessionByCaller("a")
	require.NotNil(t, sess)
	seq := sess.Seq

	svc.expireCall("a", seq)
	assert.Equal(t, 1, a.count(models.EventCallTimeout))
	assert.Equal(t, 1, b.count(models.EventCallTimeout))
	assert.Equal(t, CallIdle, svc.calls.StateOf("a"))

	// A duplicate expiry for the same session is a no-op.
	svc.expireCall("a", seq)
	assert.Equal(t, 1, a.count(models.EventCallTimeout))

	// Accepting after timeout has no effect.
	svc.AcceptCall("b")
	assert.Equal(t, 0, a.count(models.EventCallAccepted))
}

func TestStaleTimerNeverResolvesNewerCall(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	join(svc, "b", "r1")

	svc.CallUser("a")
	staleSeq := svc.calls.SessionByCaller("a").Seq
	svc.CancelCall("a")

	svc.CallUser("a")
	newSess := svc.calls.SessionByCaller("a")
	require.NotNil(t, newSess)

	// The first call's deadline must not touch the second call.
	svc.expireCall("a", staleSeq)
	assert.Equal(t, 0, a.count(models.EventCallTimeout))
	assert.Equal(t, CallRinging, svc.calls.StateOf("a"))
}

func TestAcceptCancelsDeadline(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	join(svc, "b", "r1")

	svc.CallUser("a")
	seq := svc.calls.SessionByCaller("a").Seq
	svc.AcceptCall("b")

	svc.expireCall("a", seq)
	assert.Equal(t, 0, a.count(models.EventCallTimeout))
	assert.Equal(t, CallActive, svc.calls.StateOf("a"))
}

func TestSignalingGatedOnActiveCall(t *testing.T) {
	svc := newTestService()

	join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	offer := json.RawMessage(`{"sdp":"v=0"}`)

	// No call yet: dropped.
	svc.RelaySignal("a", models.EventOffer, offer)
	assert.Equal(t, 0, b.count(models.EventOffer))

	// Ringing is not enough.
	svc.CallUser("a")
	svc.RelaySignal("a", models.EventOffer, offer)
	assert.Equal(t, 0, b.count(models.EventOffer))

	// Active relays verbatim.
	svc.AcceptCall("b")
	svc.RelaySignal("a", models.EventOffer, offer)
	require.Equal(t, 1, b.count(models.EventOffer))
	assert.Equal(t, offer, b.lastData(models.EventOffer))

	svc.RelaySignal("b", models.EventAnswer, json.RawMessage(`{"sdp":"v=0"}`))
	svc.RelaySignal("b", models.EventICE, json.RawMessage(`{"candidate":"c"}`))
}

func TestMediaStatusNeedsOnlyPartner(t *testing.T) {
	svc := newTestService()

	join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.MediaStatus("a", models.MediaStatusPayload{Cam: false, Mic: true})
	require.Equal(t, 1, b.count(models.EventMediaStatus))
	status, ok := b.lastData(models.EventMediaStatus).(models.MediaStatusPayload)
	require.True(t, ok)
	assert.False(t, status.Cam)
	assert.True(t, status.Mic)
}

func TestDispatchMalformedMediaStatus(t *testing.T) {
	svc := newTestService()

	sender := &fakeSender{}
	svc.Dispatch("a", sender, models.Envelope{
		Event: models.EventMediaStatus,
		Data:  json.RawMessage(`{"cam":"yes"`),
	})

	assert.Equal(t, 1, sender.count(models.EventError))
}

func TestEndCallReturnsBothToIdle(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.CallUser("a")
	svc.AcceptCall("b")
	b.reset()

	svc.EndCall("a")

	assert.Equal(t, 1, b.count(models.EventEndCall))
	assert.Equal(t, 1, b.count(models.EventMessage)) // system notice
	assert.Equal(t, 1, a.count(models.EventMessage))
	assert.Equal(t, CallIdle, svc.calls.StateOf("a"))
	assert.Equal(t, CallIdle, svc.calls.StateOf("b"))
}

func TestEndCallDebounced(t *testing.T) {
	svc := newTestService()

	current := time.Unix(1000, 0)
	svc.now = func() time.Time { return current }

	a := join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.CallUser("a")
	svc.AcceptCall("b")
	b.reset()
	a.reset()

	svc.EndCall("a")
	svc.EndCall("a")
	assert.Equal(t, 1, b.count(models.EventEndCall))
	assert.Equal(t, 1, a.count(models.EventMessage))

	// The other side hanging up right after sees Idle state and stays quiet.
	svc.EndCall("b")
	assert.Equal(t, 1, b.count(models.EventEndCall))
	assert.Equal(t, 0, a.count(models.EventEndCall))

	// Past the cool-down, end-call is an idempotent no-op outside a call.
	current = current.Add(5 * time.Second)
	svc.EndCall("a")
	assert.Equal(t, 1, b.count(models.EventEndCall))
}

func TestSpuriousEndCallDoesNotArmCooldown(t *testing.T) {
	svc := newTestService()

	current := time.Unix(1000, 0)
	svc.now = func() time.Time { return current }

	join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	// end-call with no call in progress must stay a pure no-op.
	svc.EndCall("a")

	svc.CallUser("a")
	svc.AcceptCall("b")
	b.reset()

	// A genuine hangup inside the cool-down window still goes through.
	current = current.Add(time.Second)
	svc.EndCall("a")
	assert.Equal(t, 1, b.count(models.EventEndCall))
}

func TestEndCallWhileRingingCancels(t *testing.T) {
	svc := newTestService()

	join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.CallUser("a")
	svc.EndCall("a")

	assert.Equal(t, 1, b.count(models.EventCallRejected))
	assert.Equal(t, CallIdle, svc.calls.StateOf("a"))
}

func TestDisconnectDuringRinging(t *testing.T) {
	svc := newTestService()

	join(svc, "a", "r1")
	b := join(svc, "b", "r1")

	svc.CallUser("a")

	// Caller vanishes: callee must be released from the ringing UI.
	svc.Disconnect("a")
	assert.Equal(t, 1, b.count(models.EventCallRejected))
	assert.Nil(t, svc.calls.SessionByCallee("b"))
}

func TestDisconnectOfCalleeDuringRinging(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	join(svc, "b", "r1")

	svc.CallUser("a")
	svc.Disconnect("b")

	assert.Equal(t, 1, a.count(models.EventCallRejected))
	assert.Equal(t, CallIdle, svc.calls.StateOf("a"))
	assert.Nil(t, svc.calls.SessionByCaller("a"))
}

func TestDisconnectDuringActiveCall(t *testing.T) {
	svc := newTestService()

	a := join(svc, "a", "r1")
	join(svc, "b", "r1")

	svc.CallUser("a")
	svc.AcceptCall("b")
	a.reset()

	svc.Disconnect("b")

	assert.Equal(t, 1, a.count(models.EventEndCall))
	assert.Equal(t, 1, a.count(models.EventPartnerLeft))
	assert.Equal(t, CallIdle, svc.calls.StateOf("a"))
}

func TestDispatchMalformedPayload(t *testing.T) {
	svc := newTestService()

	sender := &fakeSender{}
	svc.Dispatch("a", sender, models.Envelope{
		Event: models.EventJoin,
		Data:  json.RawMessage(`{"name":`),
	})

	assert.Equal(t, 1, sender.count(models.EventError))
}

func TestDispatchUnknownEventIgnored(t *testing.T) {
	svc := newTestService()

	sender := &fakeSender{}
	svc.Dispatch("a", sender, models.Envelope{Event: "no-such-event"})
	assert.Empty(t, sender.eventNames())
}

// Mirrors the full scenario from the product brief: A and B wait, C pairs
// with A, messaging is partner-scoped, disconnect notifies, calls without a
// partner fail.
func TestEndToEndScenario(t *testing.T) {
	svc := newTestService()

	senderA := &fakeSender{}
	svc.Join("A", senderA, models.Profile{Name: "A", Room: "r1"})
	senderB := &fakeSender{}
	svc.Join("B", senderB, models.Profile{Name: "B", Room: "r1"})

	// A and B paired; C arrives and waits.
	senderC := &fakeSender{}
	svc.Join("C", senderC, models.Profile{Name: "C", Room: "r1"})
	assert.Equal(t, 0, senderC.count(models.EventMatched))

	// A's messages reach B only.
	svc.SendMessage("A", "hi")
	assert.Equal(t, 1, senderB.count(models.EventMessage))
	assert.Equal(t, 0, senderC.count(models.EventMessage))

	// A disconnects: B is notified with the system notice and not re-queued.
	svc.Disconnect("A")
	assert.Equal(t, 1, senderB.count(models.EventPartnerLeft))
	msg := senderB.lastData(models.EventMessage).(models.ChatMessage)
	assert.Equal(t, "A telah keluar dari chat", msg.Text)

	// C still has no partner, so calling fails.
	svc.CallUser("C")
	assert.Equal(t, 1, senderC.count(models.EventCallFailed))
}
