package relay

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/medilink/telehealth/internal/domain/messaging"
)

// Inbound and outbound event names.
const (
	EventJoinConsultationRoom  = "joinConsultationRoom"
	EventLeaveConsultationRoom = "leaveConsultationRoom"
	EventJoinUserRoom          = "joinUserRoom"
	EventTyping                = "typing"
	EventUserTyping            = "userTyping"
	EventSendMessage           = "sendMessage"
	EventCallRequest           = "callRequest"
	EventIncomingCall          = "incomingCall"
	EventCallAccepted          = "callAccepted"
	EventCallRejected          = "callRejected"
	EventCallEnded             = "callEnded"
	EventOffer                 = "offer"
	EventAnswer                = "answer"
	EventICECandidate          = "iceCandidate"
	EventError                 = "error"
)

// Call kinds accepted on callRequest.
const (
	CallAudio = "audio"
	CallVideo = "video"
)

type roomPayload struct {
	ConsultationID string `json:"consultation_id"`
	UserID         string `json:"user_id"`
}

type typingPayload struct {
	ConsultationID string `json:"consultation_id"`
	IsTyping       bool   `json:"is_typing"`
}

// TypingEvent is the userTyping payload. The user fields come from the
// authenticated connection, not from the emitter's frame.
type TypingEvent struct {
	ConsultationID string `json:"consultation_id"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
	IsTyping       bool   `json:"is_typing"`
}

type callPayload struct {
	ConsultationID string `json:"consultation_id"`
	CallType       string `json:"call_type"`
}

// IncomingCall is the incomingCall payload.
type IncomingCall struct {
	ConsultationID string `json:"consultation_id"`
	CallType       string `json:"call_type"`
	CallerID       string `json:"caller_id"`
	CallerName     string `json:"caller_name"`
}

// ErrorEvent reports a failed sendMessage back to its emitter.
type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// signaling events are relayed verbatim to the rest of the room.
var signaling = map[string]bool{
	EventCallAccepted: true,
	EventCallRejected: true,
	EventCallEnded:    true,
	EventOffer:        true,
	EventAnswer:       true,
	EventICECandidate: true,
}

// Dispatch handles one inbound event from client. Rejected or unknown events
// are dropped.
func (s *Server) Dispatch(client *Client, env Envelope) {
	log := s.logger.Debug().Str("client_id", client.ID).Str("user_id", client.AccountID).Str("event", env.Event)

	switch {
	case env.Event == EventJoinConsultationRoom:
		var p roomPayload
		if !decode(env.Data, &p) || p.ConsultationID == "" {
			log.Msg("relay: join rejected, missing consultation id")
			return
		}
		if !s.isParticipant(client, p.ConsultationID) {
			log.Str("consultation_id", p.ConsultationID).Msg("relay: join rejected, not a participant")
			return
		}
		s.hub.Join(client, ConsultationRoom(p.ConsultationID))
		log.Str("consultation_id", p.ConsultationID).Msg("relay: joined consultation room")

	case env.Event == EventLeaveConsultationRoom:
		var p roomPayload
		if !decode(env.Data, &p) || p.ConsultationID == "" {
			log.Msg("relay: leave rejected, missing consultation id")
			return
		}
		s.hub.Leave(client, ConsultationRoom(p.ConsultationID))
		log.Str("consultation_id", p.ConsultationID).Msg("relay: left consultation room")

	case env.Event == EventJoinUserRoom:
		var p roomPayload
		if !decode(env.Data, &p) || p.UserID != client.AccountID {
			log.Msg("relay: user room rejected")
			return
		}
		s.hub.Join(client, UserRoom(p.UserID))
		log.Msg("relay: joined user room")

	case env.Event == EventTyping:
		var p typingPayload
		if !decode(env.Data, &p) || !s.inConsultation(client, p.ConsultationID) {
			log.Msg("relay: typing dropped")
			return
		}
		s.hub.Broadcast(ConsultationRoom(p.ConsultationID), EventUserTyping, TypingEvent{
			ConsultationID: p.ConsultationID,
			UserID:         client.AccountID,
			UserName:       client.Name,
			IsTyping:       p.IsTyping,
		}, client)

	case env.Event == EventSendMessage:
		s.sendMessage(client, env.Data)

	case env.Event == EventCallRequest:
		var p callPayload
		if !decode(env.Data, &p) || !s.inConsultation(client, p.ConsultationID) {
			log.Msg("relay: call request dropped")
			return
		}
		p.CallType = strings.ToLower(strings.TrimSpace(p.CallType))
		if p.CallType != CallAudio && p.CallType != CallVideo {
			log.Str("call_type", p.CallType).Msg("relay: call request dropped, unknown call type")
			return
		}
		s.hub.Broadcast(ConsultationRoom(p.ConsultationID), EventIncomingCall, IncomingCall{
			ConsultationID: p.ConsultationID,
			CallType:       p.CallType,
			CallerID:       client.AccountID,
			CallerName:     client.Name,
		}, client)

	case signaling[env.Event]:
		var p roomPayload
		if !decode(env.Data, &p) || !s.inConsultation(client, p.ConsultationID) {
			log.Msg("relay: signaling dropped")
			return
		}
		s.hub.Broadcast(ConsultationRoom(p.ConsultationID), env.Event, env.Data, client)

	default:
		log.Msg("relay: unknown event dropped")
	}
}

func (s *Server) sendMessage(client *Client, data json.RawMessage) {
	var in messaging.SendInput
	if !decode(data, &in) {
		s.hub.SendTo(client, EventError, ErrorEvent{Event: EventSendMessage, Message: "invalid message payload"})
		return
	}
	in.SenderID = client.AccountID

	ctx, cancel := context.WithTimeout(context.Background(), sendMsgTimeout)
	defer cancel()
	// Send broadcasts receiveMessage to the room itself once persisted.
	if _, err := s.messages.Send(ctx, in); err != nil {
		s.logger.Debug().Err(err).Str("client_id", client.ID).Str("consultation_id", in.ConsultationID).Msg("relay: send message failed")
		s.hub.SendTo(client, EventError, ErrorEvent{Event: EventSendMessage, Message: err.Error()})
	}
}

func (s *Server) isParticipant(client *Client, consultationID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), sendMsgTimeout)
	defer cancel()
	c, err := s.consultations.Find(ctx, consultationID)
	if err != nil {
		return false
	}
	return c.IsParticipant(client.AccountID)
}

// inConsultation reports whether client has joined the consultation's room.
// Ephemeral events from connections outside the room are not relayed.
func (s *Server) inConsultation(client *Client, consultationID string) bool {
	return consultationID != "" && s.hub.InRoom(client, ConsultationRoom(consultationID))
}

func decode(data json.RawMessage, v interface{}) bool {
	if len(data) == 0 {
		return false
	}
	return json.Unmarshal(data, v) == nil
}
