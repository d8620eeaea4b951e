package signaling

import "encoding/json"

// Role distinguishes the two parties on a call.
type Role string

const (
	RoleStaff     Role = "staff"
	RoleRequester Role = "requester"
)

// Valid reports whether the role is one of the two known parties.
func (r Role) Valid() bool {
	return r == RoleStaff || r == RoleRequester
}

// Message types on the wire. Client-to-server: offer, answer, ice-candidate,
// leave. Server-to-client: joined, member-joined, member-left, session-closed,
// error. Signal frames are relayed verbatim in both directions.
const (
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeLeave        = "leave"

	TypeJoined        = "joined"
	TypeMemberJoined  = "member-joined"
	TypeMemberLeft    = "member-left"
	TypeSessionClosed = "session-closed"
	TypeError         = "error"
)

// Envelope is the single frame format in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SignalPayload wraps a relayed WebRTC frame. Data is opaque: SDP and ICE
// blobs pass through untouched. Target selects unicast; empty means everyone
// else in the room.
type SignalPayload struct {
	Target string          `json:"target,omitempty"`
	From   string          `json:"from,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// MemberInfo describes one room member. Initiate marks the side that should
// create the WebRTC offer for this pairing.
type MemberInfo struct {
	ConnectionID string `json:"connection_id"`
	Role         Role   `json:"role"`
	Initiate     bool   `json:"initiate,omitempty"`
}

// JoinedPayload acknowledges a successful join with the current roster in
// join order, the joiner excluded.
type JoinedPayload struct {
	ConnectionID string       `json:"connection_id"`
	Members      []MemberInfo `json:"members"`
}

// MemberEventPayload announces a peer joining or leaving.
type MemberEventPayload struct {
	Member MemberInfo `json:"member"`
}

// SessionClosedPayload explains why the server is closing the channel.
type SessionClosedPayload struct {
	Reason string `json:"reason"`
}

// initiates resolves which of two simultaneous joiners creates the offer:
// the lexicographically lower connection ID does. Both sides compute the
// same answer, so a signaling glare cannot occur.
func initiates(a, b string) bool {
	return a < b
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
