package messaging

import (
	"strings"
	"time"
)

// Kind is the content type of a chat message.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFile  Kind = "file"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile, KindAudio, KindVideo:
		return true
	}
	return false
}

// EventReceiveMessage is the room event carrying a newly persisted message.
const EventReceiveMessage = "receiveMessage"

// Message is one chat entry in a consultation. Content is stored exactly as
// sent. SenderName is resolved on delivery and on history reads and is not
// stored.
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConsultationID string    `json:"consultation_id" bson:"consultationId"`
	SenderID       string    `json:"sender_id" bson:"senderId"`
	SenderName     string    `json:"sender_name,omitempty" bson:"-"`
	Content        string    `json:"content" bson:"content"`
	Kind           Kind      `json:"kind" bson:"kind"`
	FileURL        string    `json:"file_url,omitempty" bson:"fileUrl,omitempty"`
	Read           bool      `json:"is_read" bson:"isRead"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
}

type SendInput struct {
	ConsultationID string `json:"consultation_id"`
	SenderID       string `json:"-"`
	Content        string `json:"content"`
	Kind           Kind   `json:"kind"`
	FileURL        string `json:"file_url"`
}

func (in *SendInput) normalize() {
	in.ConsultationID = strings.TrimSpace(in.ConsultationID)
	in.FileURL = strings.TrimSpace(in.FileURL)
	in.Kind = Kind(strings.ToLower(strings.TrimSpace(string(in.Kind))))
	if in.Kind == "" {
		in.Kind = KindText
	}
}
