package domain

type MessageType string

const (
	MessageLogin     MessageType = "login"
	MessageOffer     MessageType = "offer"
	MessageAnswer    MessageType = "answer"
	MessageCandidate MessageType = "candidate"
	MessageUsers     MessageType = "users"
)

// IsRouted reports whether messages of this type are forwarded to a target user.
func (t MessageType) IsRouted() bool {
	switch t {
	case MessageOffer, MessageAnswer, MessageCandidate:
		return true
	}
	return false
}

// Field names of the wire records.
const (
	FieldType     = "type"
	FieldUsername = "username"
	FieldTarget   = "target"
	FieldFrom     = "from"
	FieldUsers    = "users"
)
