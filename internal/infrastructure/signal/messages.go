package signal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"peerlink/internal/core/domain"
)

// Envelope is one inbound record. Fields are kept raw so routed messages
// can be forwarded without interpreting their payload.
type Envelope struct {
	Type   domain.MessageType
	fields map[string]json.RawMessage
}

// DecodeEnvelope parses a frame as a JSON object with a string "type".
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", domain.ErrMalformedMessage)
	}

	rawType, ok := fields[domain.FieldType]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", domain.ErrMalformedMessage, domain.FieldType)
	}
	var msgType string
	if err := json.Unmarshal(rawType, &msgType); err != nil {
		return nil, fmt.Errorf("%w: %q is not a string", domain.ErrMalformedMessage, domain.FieldType)
	}

	return &Envelope{Type: domain.MessageType(msgType), fields: fields}, nil
}

// stringField returns ("", false, nil) when the field is absent.
func (e *Envelope) stringField(name string) (string, bool, error) {
	raw, ok := e.fields[name]
	if !ok {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", true, fmt.Errorf("%w: %q is not a string", domain.ErrMalformedMessage, name)
	}
	return s, true, nil
}

// Username returns the login name; an absent field is the empty name.
func (e *Envelope) Username() (domain.Username, error) {
	name, _, err := e.stringField(domain.FieldUsername)
	return domain.Username(name), err
}

func (e *Envelope) Target() (domain.Username, error) {
	target, ok, err := e.stringField(domain.FieldTarget)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: no %q field", domain.ErrTargetNotFound, domain.FieldTarget)
	}
	return domain.Username(target), nil
}

// WithFrom re-encodes the record with "from" set to the sender, or null for
// a sender that never logged in. All other fields are carried over as-is.
func (e *Envelope) WithFrom(from *domain.Username) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.fields)+1)
	for k, v := range e.fields {
		out[k] = v
	}

	fromRaw := json.RawMessage("null")
	if from != nil {
		encoded, err := marshal(string(*from))
		if err != nil {
			return nil, err
		}
		fromRaw = encoded
	}
	out[domain.FieldFrom] = fromRaw

	return marshal(out)
}

type userListMessage struct {
	Type  domain.MessageType `json:"type"`
	Users []string           `json:"users"`
}

func EncodeUserList(users []domain.Username) ([]byte, error) {
	return marshal(userListMessage{
		Type:  domain.MessageUsers,
		Users: domain.UsernameStrings(users),
	})
}

// marshal encodes without HTML escaping so SDP text survives byte for byte.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
