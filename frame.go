package roomcast

import (
	"encoding/json"
	"fmt"
)

// Frame is the unit of the wire protocol: a JSON text message carrying a
// verb name and an optional argument object.
type Frame struct {
	Type string          `json:"type"`
	Args json.RawMessage `json:"args,omitempty"`
}

// AckType returns the acknowledgement verb for an inbound verb.
func AckType(verb string) string {
	return verb + "-ack"
}

// ErrType returns the error verb for an inbound verb.
func ErrType(verb string) string {
	return verb + "-err"
}

// errorArgs is the args payload of every "<verb>-err" frame.
type errorArgs struct {
	Message string `json:"message"`
}

// EncodeFrame serializes a frame with the given type and args.
func EncodeFrame(typ string, args any) ([]byte, error) {
	frame := Frame{Type: typ}

	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal frame args: %w", err)
		}
		frame.Args = raw
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	return data, nil
}

// DecodeFrame parses an inbound frame. A frame that is valid JSON but lacks
// a "type" key decodes successfully with an empty Type; the router decides
// how to answer it.
func DecodeFrame(data []byte) (*Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return &frame, nil
}

// authArgs are the required arguments of the "auth" verb.
type authArgs struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// roomArgs are the required arguments of the "join" and "leave" verbs.
type roomArgs struct {
	ID string `json:"id"`
}

// joinAckArgs echo the membership transition facts back to the caller.
type joinAckArgs struct {
	ID        string `json:"id"`
	UserFirst bool   `json:"userFirst"`
	RoomFirst bool   `json:"roomFirst"`
}

// leaveAckArgs echo the membership transition facts back to the caller.
type leaveAckArgs struct {
	ID       string `json:"id"`
	UserLast bool   `json:"userLast"`
	RoomLast bool   `json:"roomLast"`
}
