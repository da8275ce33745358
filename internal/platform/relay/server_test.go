package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medilink/telehealth/internal/domain/consultation"
	"github.com/medilink/telehealth/internal/domain/identity"
	"github.com/medilink/telehealth/internal/domain/messaging"
	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/auth"
)

const (
	patientID  = "patient-1"
	doctorID   = "doctor-1"
	strangerID = "stranger-1"
	consultID  = "consult-1"
)

type stubAccounts map[string]*identity.Account

func (s stubAccounts) Get(_ context.Context, id string) (*identity.Account, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, apperr.NotFound("account %s not found", id)
}

type stubConsultations map[string]*consultation.Consultation

func (s stubConsultations) Find(_ context.Context, id string) (*consultation.Consultation, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, apperr.NotFound("consultation %s not found", id)
}

// fakeMessages mirrors messaging.Service: it rejects empty content and
// broadcasts to the room after "persisting".
type fakeMessages struct {
	hub *Hub
}

func (f *fakeMessages) Send(_ context.Context, in messaging.SendInput) (*messaging.Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation("content is required")
	}
	msg := &messaging.Message{
		ID:             "msg-1",
		ConsultationID: in.ConsultationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Kind:           messaging.KindText,
		Timestamp:      time.Now().UTC(),
	}
	f.hub.BroadcastToConsultation(in.ConsultationID, messaging.EventReceiveMessage, msg)
	return msg, nil
}

type testRelay struct {
	hub    *Hub
	tokens *auth.TokenManager
	server *httptest.Server
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	accounts := stubAccounts{
		patientID:  {ID: patientID, Name: "Pat Patient", Role: auth.RolePatient},
		doctorID:   {ID: doctorID, Name: "Dr. Doe", Role: auth.RoleDoctor},
		strangerID: {ID: strangerID, Name: "Stranger", Role: auth.RolePatient},
	}
	consultations := stubConsultations{
		consultID: {ID: consultID, PatientID: patientID, DoctorID: doctorID, Status: consultation.StatusScheduled},
	}

	e := echo.New()
	NewServer(hub, tokens, accounts, consultations, &fakeMessages{hub: hub}, zerolog.Nop(), []string{"*"}).RegisterRoutes(e)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return &testRelay{hub: hub, tokens: tokens, server: server}
}

func (r *testRelay) url() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http") + "/ws"
}

func (r *testRelay) dial(t *testing.T, accountID, role string) *gorillawebsocket.Conn {
	t.Helper()
	token, _, err := r.tokens.Issue(accountID, role)
	require.NoError(t, err)
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(r.url(), http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *gorillawebsocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func receive(t *testing.T, conn *gorillawebsocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

// expectSilence fails if conn receives a frame within a short window. The
// connection is unusable for reads afterwards.
func expectSilence(t *testing.T, conn *gorillawebsocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var env Envelope
	err := conn.ReadJSON(&env)
	var netErr interface{ Timeout() bool }
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected no frame, got %+v (err %v)", env, err)
	}
}

func (r *testRelay) joinBoth(t *testing.T) (patient, doctor *gorillawebsocket.Conn) {
	t.Helper()
	patient = r.dial(t, patientID, auth.RolePatient)
	doctor = r.dial(t, doctorID, auth.RoleDoctor)
	emit(t, patient, EventJoinConsultationRoom, map[string]string{"consultation_id": consultID})
	emit(t, doctor, EventJoinConsultationRoom, map[string]string{"consultation_id": consultID})
	require.Eventually(t, func() bool {
		return r.hub.RoomCount(ConsultationRoom(consultID)) == 2
	}, 2*time.Second, 10*time.Millisecond)
	return patient, doctor
}

func TestServer_HandshakeRejections(t *testing.T) {
	r := newTestRelay(t)
	ghostToken, _, err := r.tokens.Issue("ghost", auth.RolePatient)
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		header http.Header
	}{
		{"missing token", r.url(), nil},
		{"malformed header", r.url(), http.Header{"Authorization": {"Token abc"}}},
		{"invalid token", r.url() + "?token=not-a-jwt", nil},
		{"unknown account", r.url() + "?token=" + ghostToken, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := gorillawebsocket.DefaultDialer.Dial(tt.target, tt.header)
			if conn != nil {
				conn.Close()
			}
			require.ErrorIs(t, err, gorillawebsocket.ErrBadHandshake)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, r.hub.ClientCount())
}

func TestServer_QueryTokenAndDisconnect(t *testing.T) {
	r := newTestRelay(t)
	token, _, err := r.tokens.Issue(patientID, auth.RolePatient)
	require.NoError(t, err)

	conn, _, err := gorillawebsocket.DefaultDialer.Dial(r.url()+"?token="+token, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return r.hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_RoomAccess(t *testing.T) {
	r := newTestRelay(t)
	r.joinBoth(t)
	stranger := r.dial(t, strangerID, auth.RolePatient)

	emit(t, stranger, EventJoinConsultationRoom, map[string]string{"consultation_id": consultID})
	emit(t, stranger, EventJoinConsultationRoom, map[string]string{"consultation_id": "missing"})
	emit(t, stranger, EventJoinUserRoom, map[string]string{"user_id": patientID})
	emit(t, stranger, EventJoinUserRoom, map[string]string{"user_id": strangerID})

	require.Eventually(t, func() bool {
		return r.hub.RoomCount(UserRoom(strangerID)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, r.hub.RoomCount(ConsultationRoom(consultID)))
	assert.Equal(t, 0, r.hub.RoomCount(ConsultationRoom("missing")))
	assert.Equal(t, 0, r.hub.RoomCount(UserRoom(patientID)))
}

func TestServer_LeaveConsultationRoom(t *testing.T) {
	r := newTestRelay(t)
	patient, _ := r.joinBoth(t)

	emit(t, patient, EventLeaveConsultationRoom, map[string]string{"consultation_id": consultID})
	require.Eventually(t, func() bool {
		return r.hub.RoomCount(ConsultationRoom(consultID)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_TypingUsesServerIdentity(t *testing.T) {
	r := newTestRelay(t)
	patient, doctor := r.joinBoth(t)

	emit(t, patient, EventTyping, map[string]interface{}{
		"consultation_id": consultID,
		"is_typing":       true,
		"user_name":       "Spoofed",
	})

	env := receive(t, doctor)
	require.Equal(t, EventUserTyping, env.Event)
	var typing TypingEvent
	require.NoError(t, json.Unmarshal(env.Data, &typing))
	assert.Equal(t, TypingEvent{ConsultationID: consultID, UserID: patientID, UserName: "Pat Patient", IsTyping: true}, typing)

	expectSilence(t, patient)
}

func TestServer_TypingOutsideRoomDropped(t *testing.T) {
	r := newTestRelay(t)
	_, doctor := r.joinBoth(t)
	stranger := r.dial(t, strangerID, auth.RolePatient)

	emit(t, stranger, EventTyping, map[string]interface{}{"consultation_id": consultID, "is_typing": true})
	expectSilence(t, doctor)
}

func TestServer_CallSignaling(t *testing.T) {
	r := newTestRelay(t)
	patient, doctor := r.joinBoth(t)

	emit(t, doctor, EventCallRequest, map[string]string{"consultation_id": consultID, "call_type": "Video"})
	env := receive(t, patient)
	require.Equal(t, EventIncomingCall, env.Event)
	var call IncomingCall
	require.NoError(t, json.Unmarshal(env.Data, &call))
	assert.Equal(t, IncomingCall{ConsultationID: consultID, CallType: CallVideo, CallerID: doctorID, CallerName: "Dr. Doe"}, call)

	emit(t, patient, EventCallAccepted, map[string]string{"consultation_id": consultID, "call_type": "video"})
	env = receive(t, doctor)
	assert.Equal(t, EventCallAccepted, env.Event)

	offer := `{"consultation_id":"consult-1","offer":{"sdp":"v=0\r\n","type":"offer"}}`
	require.NoError(t, doctor.WriteMessage(gorillawebsocket.TextMessage, []byte(`{"event":"offer","data":`+offer+`}`)))
	env = receive(t, patient)
	assert.Equal(t, EventOffer, env.Event)
	assert.JSONEq(t, offer, string(env.Data))

	emit(t, patient, EventICECandidate, map[string]interface{}{"consultation_id": consultID, "candidate": map[string]string{"candidate": "a=1"}})
	env = receive(t, doctor)
	assert.Equal(t, EventICECandidate, env.Event)

	emit(t, doctor, EventCallEnded, map[string]string{"consultation_id": consultID})
	env = receive(t, patient)
	assert.Equal(t, EventCallEnded, env.Event)
}

func TestServer_CallRequestUnknownTypeDropped(t *testing.T) {
	r := newTestRelay(t)
	patient, doctor := r.joinBoth(t)

	emit(t, doctor, EventCallRequest, map[string]string{"consultation_id": consultID, "call_type": "hologram"})
	expectSilence(t, patient)
}

func TestServer_SendMessageReachesWholeRoom(t *testing.T) {
	r := newTestRelay(t)
	patient, doctor := r.joinBoth(t)

	emit(t, patient, EventSendMessage, map[string]string{"consultation_id": consultID, "content": "hello doctor"})

	for _, conn := range []*gorillawebsocket.Conn{patient, doctor} {
		env := receive(t, conn)
		require.Equal(t, messaging.EventReceiveMessage, env.Event)
		var msg messaging.Message
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		assert.Equal(t, patientID, msg.SenderID)
		assert.Equal(t, "hello doctor", msg.Content)
	}
}

func TestServer_SendMessageErrorGoesToEmitter(t *testing.T) {
	r := newTestRelay(t)
	patient, doctor := r.joinBoth(t)

	emit(t, patient, EventSendMessage, map[string]string{"consultation_id": consultID, "content": "   "})

	env := receive(t, patient)
	require.Equal(t, EventError, env.Event)
	var evt ErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &evt))
	assert.Equal(t, EventSendMessage, evt.Event)
	assert.Contains(t, evt.Message, "content is required")

	expectSilence(t, doctor)
}

func TestServer_MalformedAndUnknownFramesIgnored(t *testing.T) {
	r := newTestRelay(t)
	patient, doctor := r.joinBoth(t)

	require.NoError(t, patient.WriteMessage(gorillawebsocket.TextMessage, []byte("not json")))
	emit(t, patient, "selfDestruct", map[string]string{"consultation_id": consultID})

	// The connection survives and later events still flow.
	emit(t, patient, EventCallEnded, map[string]string{"consultation_id": consultID})
	env := receive(t, doctor)
	assert.Equal(t, EventCallEnded, env.Event)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com/"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req), "requests without origin are allowed")

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
