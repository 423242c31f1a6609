// Package activity defines the provider-neutral documents exchanged at the
// adapter boundary.
package activity

// Type tags an activity. The vocabulary is closed.
type Type string

const (
	TypeNote  Type = "Note"
	TypeImage Type = "Image"
	TypeAudio Type = "Audio"
	TypeVideo Type = "Video"
)

// Confirmation types returned by lifecycle and send operations.
const (
	ConfirmationConnected = "connected"
	ConfirmationSent      = "sent"
)

// Direction selects which schema an activity is checked against.
type Direction string

const (
	DirectionReceive Direction = "receive"
	DirectionSend    Direction = "send"
)

var knownTypes = map[Type]struct{}{
	TypeNote:  {},
	TypeImage: {},
	TypeAudio: {},
	TypeVideo: {},
}

// IsKnownType reports whether t belongs to the closed activity vocabulary.
func IsKnownType(t Type) bool {
	_, ok := knownTypes[t]
	return ok
}

// Entity identifies a sender or recipient.
type Entity struct {
	ID string `json:"id,omitempty"`
}

// Object is the content payload of an activity.
type Object struct {
	Type      Type   `json:"type,omitempty"`
	ID        string `json:"id,omitempty"`
	Content   string `json:"content,omitempty"`
	Keyword   string `json:"keyword,omitempty"`
	Published string `json:"published,omitempty"`
}

// Generator names the service that produced an activity.
type Generator struct {
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Activity is the canonical message document. Absent sub-documents are nil and
// absent strings are empty.
type Activity struct {
	Type      Type       `json:"type,omitempty"`
	Actor     *Entity    `json:"actor,omitempty"`
	Object    *Object    `json:"object,omitempty"`
	To        *Entity    `json:"to,omitempty"`
	Generator *Generator `json:"generator,omitempty"`
}

// Clone returns a deep copy so receivers never alias the sender's documents.
func (a Activity) Clone() Activity {
	out := Activity{Type: a.Type}
	if a.Actor != nil {
		actor := *a.Actor
		out.Actor = &actor
	}
	if a.Object != nil {
		object := *a.Object
		out.Object = &object
	}
	if a.To != nil {
		to := *a.To
		out.To = &to
	}
	if a.Generator != nil {
		generator := *a.Generator
		out.Generator = &generator
	}
	return out
}

// Confirmation is returned by Connect ("connected") and Send ("sent").
type Confirmation struct {
	Type      string   `json:"type"`
	ServiceID string   `json:"serviceID"`
	IDs       []string `json:"ids,omitempty"`
}

// RawRecord holds the fields taken from one carrier webhook invocation.
// Every field is optional; the empty string means the field was absent.
type RawRecord struct {
	Keyword   string `json:"keyword,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	MSISDN    string `json:"msisdn,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	To        string `json:"to,omitempty"`
}
