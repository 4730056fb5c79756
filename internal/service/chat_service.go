package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"kenalan/internal/constants"
	"kenalan/internal/errors"
	"kenalan/internal/metrics"
	"kenalan/internal/models"
	"kenalan/internal/privacy"
	"kenalan/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ChatService owns all session state: connection registry, waiting pools,
// partner relation, call table, and relay ownership. Every inbound event is
// processed to completion under one mutex, so component mutations within a
// handler are atomic to all observers. Ringing timers re-enter through the
// same mutex and validate their session sequence before acting.
type ChatService struct {
	mu     sync.Mutex
	logger *logrus.Logger

	registry *Registry
	pools    *Matchmaker
	pairs    *PairTable
	calls    *CallTable
	relay    *Relay

	ringTimeout     time.Duration
	endCallCooldown time.Duration

	now   func() time.Time
	newID func() string
}

// NewChatService creates a chat service with the given call settings.
func NewChatService(cfg models.CallConfig, logger *logrus.Logger) *ChatService {
	ringTimeout := time.Duration(cfg.RingTimeoutSec) * time.Second
	if ringTimeout <= 0 {
		ringTimeout = constants.DefaultRingTimeoutSec * time.Second
	}
	cooldown := time.Duration(cfg.EndCallCooldownMs) * time.Millisecond
	if cooldown <= 0 {
		cooldown = constants.DefaultEndCallCooldownMs * time.Millisecond
	}

	return &ChatService{
		logger:          logger,
		registry:        NewRegistry(),
		pools:           NewMatchmaker(),
		pairs:           NewPairTable(),
		calls:           NewCallTable(),
		relay:           NewRelay(),
		ringTimeout:     ringTimeout,
		endCallCooldown: cooldown,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// Dispatch routes one decoded envelope from connection id. Unknown events and
// malformed payloads are reported back on the connection and never affect any
// other session.
func (s *ChatService) Dispatch(id string, sender EventSender, env models.Envelope) {
	metrics.IncrementCounter("events_total", map[string]string{"event": env.Event}, "Inbound client events")

	switch env.Event {
	case models.EventJoin:
		var profile models.Profile
		if err := json.Unmarshal(env.Data, &profile); err != nil {
			s.sendError(sender, errors.Wrap(err, errors.ErrCodeInvalidInput, "malformed join payload").
				WithUserMessage("Malformed join payload"))
			return
		}
		s.Join(id, sender, profile)
	case models.EventMessage:
		var payload models.MessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			s.sendError(sender, errors.Wrap(err, errors.ErrCodeInvalidInput, "malformed message payload").
				WithUserMessage("Malformed message payload"))
			return
		}
		s.SendMessage(id, payload.Text)
	case models.EventTyping:
		s.Typing(id)
	case models.EventDeleteForEveryone:
		var payload models.DeletePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			s.sendError(sender, errors.Wrap(err, errors.ErrCodeInvalidInput, "malformed delete payload").
				WithUserMessage("Malformed delete payload"))
			return
		}
		s.DeleteForEveryone(id, payload.MessageID)
	case models.EventCallUser:
		s.CallUser(id)
	case models.EventAcceptCall:
		s.AcceptCall(id)
	case models.EventRejectCall:
		s.RejectCall(id)
	case models.EventCancelCall:
		s.CancelCall(id)
	case models.EventOffer, models.EventAnswer, models.EventICE:
		s.RelaySignal(id, env.Event, env.Data)
	case models.EventEndCall:
		s.EndCall(id)
	case models.EventMediaStatus:
		var payload models.MediaStatusPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			s.sendError(sender, errors.Wrap(err, errors.ErrCodeInvalidInput, "malformed media-status payload").
				WithUserMessage("Malformed media-status payload"))
			return
		}
		s.MediaStatus(id, payload)
	default:
		s.logger.WithFields(logrus.Fields{
			LogFieldConnID: privacy.MaskConnectionID(id),
			LogFieldEvent:  env.Event,
		}).Debug("Unknown event ignored")
	}
}

// Join registers (or re-registers) a connection and tries to pair it with the
// first eligible user waiting in the same room. A re-join fully releases prior
// pairing, pool membership, and call state first, exactly like a disconnect.
func (s *ChatService) Join(id string, sender EventSender, profile models.Profile) {
	if err := validation.ValidateProfile(profile); err != nil {
		s.sendError(sender, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownLocked(id)
	conn := s.registry.Upsert(id, profile, sender)

	log := s.logger.WithFields(logrus.Fields{
		LogFieldConnID: privacy.MaskConnectionID(id),
		LogFieldRoom:   profile.Room,
		"name":         privacy.MaskName(profile.Name),
	})

	partnerID := s.pools.PopEligible(profile.Room, func(candidate string) bool {
		if candidate == id {
			return false
		}
		return s.registry.Get(candidate) != nil && s.pairs.Lookup(candidate) == ""
	})

	if partnerID == "" {
		s.pools.Enqueue(profile.Room, id)
		log.WithField("waiting", s.pools.Waiting(profile.Room)).Info("Joined waiting pool")
		s.updateGaugesLocked(profile.Room)
		return
	}

	partner := s.registry.Get(partnerID)
	s.pairs.Link(id, partnerID)

	conn.Sender.Send(models.OutboundEvent{
		Event: models.EventMatched,
		Data:  models.PartnerProfile{ID: partnerID, Profile: partner.Profile},
	})
	partner.Sender.Send(models.OutboundEvent{
		Event: models.EventMatched,
		Data:  models.PartnerProfile{ID: id, Profile: conn.Profile},
	})

	metrics.IncrementCounter("pairs_made_total", map[string]string{"room": profile.Room}, "Pairs formed")
	log.WithField(LogFieldPartnerID, privacy.MaskConnectionID(partnerID)).Info("Paired")
	s.updateGaugesLocked(profile.Room)
}

// Disconnect releases every resource owned by id: waiting-pool membership,
// pair (partner notified), call session, relay ownership, registry record.
// It is unconditional and idempotent; disconnecting an unknown id is a no-op.
func (s *ChatService) Disconnect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.registry.Get(id)
	if conn == nil {
		return
	}
	room := conn.Profile.Room

	s.teardownLocked(id)
	s.relay.Forget(id)
	s.registry.Remove(id)

	s.logger.WithFields(logrus.Fields{
		LogFieldConnID: privacy.MaskConnectionID(id),
		LogFieldRoom:   room,
	}).Info("Disconnected")
	s.updateGaugesLocked(room)
}

// SendMessage stamps the payload and delivers it to the current partner only.
// No partner means nothing to deliver; that is normal steady state, not an
// error. The sender receives a confirmation with the assigned id, never a
// duplicate copy of the message.
func (s *ChatService) SendMessage(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.registry.Get(id)
	if conn == nil {
		return
	}
	if err := validation.ValidateMessageText(text); err != nil {
		s.sendError(conn.Sender, err)
		return
	}

	partner := s.livePartnerLocked(id)
	if partner == nil {
		s.logger.WithField(LogFieldConnID, privacy.MaskConnectionID(id)).Debug("Message dropped, no partner")
		return
	}

	msgID := s.newID()
	msg := models.NewChatMessage(msgID, text, conn.Profile.Name, s.now())
	s.relay.Record(id, msgID)

	partner.Sender.Send(models.OutboundEvent{Event: models.EventMessage, Data: msg})
	conn.Sender.Send(models.OutboundEvent{
		Event: models.EventMessageConfirmed,
		Data:  models.MessageConfirmation{ID: msgID},
	})

	metrics.IncrementCounter("messages_relayed_total", nil, "Chat messages relayed")
}

// Typing forwards a typing indicator to the current partner, if any.
func (s *ChatService) Typing(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if partner := s.livePartnerLocked(id); partner != nil {
		partner.Sender.Send(models.OutboundEvent{Event: models.EventTyping})
	}
}

// DeleteForEveryone redacts a delivered message on both ends. It succeeds only
// when the requester originated msgID; anything else is treated as a stale
// reference and ignored.
func (s *ChatService) DeleteForEveryone(id, msgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.registry.Get(id)
	if conn == nil {
		return
	}
	if err := validation.ValidateMessageID(msgID); err != nil {
		s.sendError(conn.Sender, err)
		return
	}

	if !s.relay.Owns(id, msgID) {
		s.logger.WithFields(logrus.Fields{
			LogFieldConnID:    privacy.MaskConnectionID(id),
			LogFieldMessageID: privacy.MaskMessageID(msgID),
			LogFieldErrorCode: string(errors.ErrCodeNotOwner),
		}).Debug("Delete refused, requester is not the sender")
		return
	}

	payload := models.DeletePayload{MessageID: msgID}
	conn.Sender.Send(models.OutboundEvent{Event: models.EventDeleteForEveryone, Data: payload})
	if partner := s.livePartnerLocked(id); partner != nil {
		partner.Sender.Send(models.OutboundEvent{Event: models.EventDeleteForEveryone, Data: payload})
	}

	metrics.IncrementCounter("messages_deleted_total", nil, "Messages redacted for everyone")
}

// CallUser starts ringing the current partner. Refused when there is no live
// partner or when either side already has call state; at most one outbound
// call per caller.
func (s *ChatService) CallUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.registry.Get(id)
	if conn == nil {
		return
	}

	partner := s.livePartnerLocked(id)
	if partner == nil {
		s.refuseCallLocked(conn, errors.ErrCodeNoPartner, "no partner")
		return
	}
	if s.busyLocked(id) {
		s.refuseCallLocked(conn, errors.ErrCodeCallBusy, "call already in progress")
		return
	}
	if s.busyLocked(partner.ID) {
		s.refuseCallLocked(conn, errors.ErrCodeCallBusy, "partner is busy")
		return
	}

	sess := s.calls.StartRinging(id, partner.ID)
	seq := sess.Seq
	sess.ArmTimer(s.ringTimeout, func() {
		s.expireCall(id, seq)
	})

	partner.Sender.Send(models.OutboundEvent{
		Event: models.EventIncomingCall,
		Data:  models.IncomingCallPayload{Name: conn.Profile.Name},
	})
	conn.Sender.Send(models.OutboundEvent{Event: models.EventCallSent})

	metrics.IncrementCounter("calls_started_total", nil, "Calls initiated")
	s.logger.WithFields(logrus.Fields{
		LogFieldConnID:    privacy.MaskConnectionID(id),
		LogFieldPartnerID: privacy.MaskConnectionID(partner.ID),
	}).Info("Call ringing")
}

// AcceptCall answers the call ringing the callee. Accepting after the session
// was resolved by timeout, cancel, or disconnect has no effect.
func (s *ChatService) AcceptCall(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.calls.SessionByCallee(id)
	if sess == nil {
		return
	}

	s.calls.Resolve(sess)
	s.calls.SetActive(sess.Caller, sess.Callee)

	if caller := s.registry.Get(sess.Caller); caller != nil {
		caller.Sender.Send(models.OutboundEvent{Event: models.EventCallAccepted})
	}

	metrics.IncrementCounter("calls_accepted_total", nil, "Calls accepted")
}

// RejectCall declines the call ringing the callee and returns the caller to
// Idle.
func (s *ChatService) RejectCall(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.calls.SessionByCallee(id)
	if sess == nil {
		return
	}

	s.calls.Resolve(sess)
	s.calls.SetIdle(sess.Caller)

	if caller := s.registry.Get(sess.Caller); caller != nil {
		caller.Sender.Send(models.OutboundEvent{Event: models.EventCallRejected})
	}

	metrics.IncrementCounter("calls_rejected_total", nil, "Calls rejected")
}

// CancelCall withdraws the caller's own ringing call.
func (s *ChatService) CancelCall(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelCallLocked(id)
}

func (s *ChatService) cancelCallLocked(id string) {
	sess := s.calls.SessionByCaller(id)
	if sess == nil {
		return
	}

	s.calls.Resolve(sess)
	s.calls.SetIdle(id)

	if callee := s.registry.Get(sess.Callee); callee != nil {
		callee.Sender.Send(models.OutboundEvent{
			Event: models.EventCallRejected,
			Data:  models.CallRejectedPayload{Reason: "cancelled"},
		})
	}
}

// EndCall hangs up an active call from either side, idempotently. Debounced
// per caller: both ends of a call hang up independently, and a doubled
// notification is a user-visible defect.
func (s *ChatService) EndCall(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.registry.Get(id)
	if conn == nil {
		return
	}

	now := s.now()
	if now.Sub(conn.lastEndCall) < s.endCallCooldown {
		return
	}

	if s.calls.SessionByCaller(id) != nil {
		// Still ringing; ending is the same as cancelling.
		conn.lastEndCall = now
		s.cancelCallLocked(id)
		return
	}

	if s.calls.StateOf(id) != CallActive {
		// No call exists; a spurious end-call must not arm the cool-down
		// and swallow a genuine hangup right after.
		return
	}

	conn.lastEndCall = now
	s.calls.SetIdle(id)
	partner := s.livePartnerLocked(id)
	if partner != nil {
		s.calls.SetIdle(partner.ID)
		partner.Sender.Send(models.OutboundEvent{Event: models.EventEndCall})
	}

	// Best-effort system chat notice for both chat transcripts.
	notice := models.NewSystemMessage(s.newID(), "Panggilan video berakhir", now)
	conn.Sender.Send(models.OutboundEvent{Event: models.EventMessage, Data: notice})
	if partner != nil {
		partner.Sender.Send(models.OutboundEvent{Event: models.EventMessage, Data: notice})
	}

	metrics.IncrementCounter("calls_ended_total", nil, "Calls ended")
}

// RelaySignal forwards offer/answer/ice verbatim to the current partner.
// Signaling is gated on an Active call: SDP and ICE never reach a partner who
// has not accepted a call.
func (s *ChatService) RelaySignal(id, event string, data json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.calls.StateOf(id) != CallActive {
		s.logger.WithFields(logrus.Fields{
			LogFieldConnID:    privacy.MaskConnectionID(id),
			LogFieldEvent:     event,
			LogFieldCallState: s.calls.StateOf(id).String(),
		}).Debug("Signal dropped outside active call")
		return
	}

	if partner := s.livePartnerLocked(id); partner != nil {
		partner.Sender.Send(models.OutboundEvent{Event: event, Data: data})
	}
}

// MediaStatus forwards camera/microphone state to the current partner. This is
// chat-call UI state, not SDP, so it only requires a partner, not an active
// call.
func (s *ChatService) MediaStatus(id string, status models.MediaStatusPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if partner := s.livePartnerLocked(id); partner != nil {
		partner.Sender.Send(models.OutboundEvent{Event: models.EventMediaStatus, Data: status})
	}
}

// expireCall is the ringing deadline callback. The sequence check makes sure a
// stale timer never resolves a later call by the same caller.
func (s *ChatService) expireCall(caller string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.calls.SessionByCaller(caller)
	if sess == nil || sess.Seq != seq {
		return
	}

	s.calls.Resolve(sess)
	s.calls.SetIdle(caller)

	if c := s.registry.Get(caller); c != nil {
		c.Sender.Send(models.OutboundEvent{Event: models.EventCallTimeout})
	}
	if callee := s.registry.Get(sess.Callee); callee != nil {
		callee.Sender.Send(models.OutboundEvent{Event: models.EventCallTimeout})
	}

	metrics.IncrementCounter("calls_timeout_total", nil, "Calls timed out while ringing")
	s.logger.WithField(LogFieldConnID, privacy.MaskConnectionID(caller)).Info("Call timed out")
}

// teardownLocked releases everything owned by id short of the registry record
// itself: pool membership, call session (peers notified), pair (partner
// notified with partner-left and a system chat message). Both disconnect and
// re-join route through here. Tolerates partially inconsistent state.
func (s *ChatService) teardownLocked(id string) {
	conn := s.registry.Get(id)
	if conn == nil {
		return
	}

	s.pools.Remove(conn.Profile.Room, id)
	s.teardownCallsLocked(id)

	if partnerID := s.pairs.Unlink(id); partnerID != "" {
		s.relay.Forget(id)
		s.relay.Forget(partnerID)

		if partner := s.registry.Get(partnerID); partner != nil {
			partner.Sender.Send(models.OutboundEvent{Event: models.EventPartnerLeft})
			notice := models.NewSystemMessage(s.newID(),
				fmt.Sprintf("%s telah keluar dari chat", conn.Profile.Name), s.now())
			partner.Sender.Send(models.OutboundEvent{Event: models.EventMessage, Data: notice})
		}
	}

	s.calls.Forget(id)
}

// teardownCallsLocked forces any call involving id back to Idle and notifies
// the remaining party. A call never survives its partner's departure.
func (s *ChatService) teardownCallsLocked(id string) {
	if sess := s.calls.SessionByCaller(id); sess != nil {
		s.calls.Resolve(sess)
		s.calls.SetIdle(id)
		if callee := s.registry.Get(sess.Callee); callee != nil {
			callee.Sender.Send(models.OutboundEvent{
				Event: models.EventCallRejected,
				Data:  models.CallRejectedPayload{Reason: "partner left"},
			})
		}
	}

	if sess := s.calls.SessionByCallee(id); sess != nil {
		s.calls.Resolve(sess)
		s.calls.SetIdle(sess.Caller)
		if caller := s.registry.Get(sess.Caller); caller != nil {
			caller.Sender.Send(models.OutboundEvent{
				Event: models.EventCallRejected,
				Data:  models.CallRejectedPayload{Reason: "partner left"},
			})
		}
	}

	if s.calls.StateOf(id) == CallActive {
		if partnerID := s.pairs.Lookup(id); partnerID != "" {
			s.calls.SetIdle(partnerID)
			if partner := s.registry.Get(partnerID); partner != nil {
				partner.Sender.Send(models.OutboundEvent{Event: models.EventEndCall})
			}
		}
		s.calls.SetIdle(id)
	}
}

// livePartnerLocked resolves id's partner to a live registry record. A
// missing or stale partner is absence, never an error.
func (s *ChatService) livePartnerLocked(id string) *Connection {
	partnerID := s.pairs.Lookup(id)
	if partnerID == "" {
		return nil
	}
	return s.registry.Get(partnerID)
}

// busyLocked reports whether id has any call state at all: ringing out,
// being rung, or in an active call.
func (s *ChatService) busyLocked(id string) bool {
	return s.calls.StateOf(id) != CallIdle ||
		s.calls.SessionByCaller(id) != nil ||
		s.calls.SessionByCallee(id) != nil
}

// refuseCallLocked reports a refused call attempt back to the caller only.
// The partner never learns about attempts that did not ring.
func (s *ChatService) refuseCallLocked(conn *Connection, code errors.ErrorCode, reason string) {
	metrics.IncrementCounter("call_refusals_total",
		map[string]string{"code": string(code)}, "Refused call attempts")
	s.logger.WithFields(logrus.Fields{
		LogFieldConnID:    privacy.MaskConnectionID(conn.ID),
		LogFieldErrorCode: string(code),
	}).Debug("Call refused")

	conn.Sender.Send(models.OutboundEvent{
		Event: models.EventCallFailed,
		Data:  models.CallFailedPayload{Reason: reason},
	})
}

func (s *ChatService) sendError(sender EventSender, err error) {
	if sender == nil {
		return
	}
	metrics.IncrementCounter("client_errors_total",
		map[string]string{"code": string(errors.GetCode(err))}, "Rejected client events")
	sender.Send(models.OutboundEvent{
		Event: models.EventError,
		Data:  models.ErrorPayload{Message: errors.GetUserMessage(err)},
	})
}

func (s *ChatService) updateGaugesLocked(room string) {
	metrics.SetGauge("connections_active", float64(s.registry.Len()), nil, "Live connections")
	metrics.SetGauge("pairs_active", float64(s.pairs.Len()/2), nil, "Active pairs")
	metrics.SetGauge("waiting_users", float64(s.pools.Waiting(room)),
		map[string]string{"room": room}, "Users waiting in room pool")
}
