package signaling

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	id   string
	role Role

	mu       sync.Mutex
	received []Envelope
	full     bool
}

func newFakePeer(id string, role Role) *fakePeer {
	return &fakePeer{id: id, role: role}
}

func (p *fakePeer) ID() string { return p.id }
func (p *fakePeer) Role() Role { return p.role }

func (p *fakePeer) Send(env Envelope) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full {
		return false
	}
	p.received = append(p.received, env)
	return true
}

func (p *fakePeer) frames() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Envelope, len(p.received))
	copy(out, p.received)
	return out
}

func signalEnvelope(t string, data string) Envelope {
	return Envelope{Type: t, Payload: mustJSON(SignalPayload{Data: json.RawMessage(data)})}
}

func TestJoinReturnsRosterInJoinOrder(t *testing.T) {
	hub := NewHub(nil)

	a := newFakePeer("conn-a", RoleStaff)
	b := newFakePeer("conn-b", RoleRequester)
	c := newFakePeer("conn-c", RoleRequester)

	assert.Empty(t, hub.Join("tok", a))

	existing := hub.Join("tok", b)
	require.Len(t, existing, 1)
	assert.Equal(t, "conn-a", existing[0].ID())

	existing = hub.Join("tok", c)
	require.Len(t, existing, 2)
	assert.Equal(t, "conn-a", existing[0].ID())
	assert.Equal(t, "conn-b", existing[1].ID())
}

func TestRoomsAreIsolated(t *testing.T) {
	hub := NewHub(nil)

	a := newFakePeer("conn-a", RoleStaff)
	b := newFakePeer("conn-b", RoleRequester)
	hub.Join("tok-1", a)
	hub.Join("tok-2", b)

	hub.Forward("tok-1", "conn-a", signalEnvelope(TypeOffer, `{"sdp":"x"}`), "")
	assert.Empty(t, b.frames(), "signal must not cross rooms")
}

func TestForwardBroadcastSkipsSender(t *testing.T) {
	hub := NewHub(nil)

	a := newFakePeer("conn-a", RoleStaff)
	b := newFakePeer("conn-b", RoleRequester)
	hub.Join("tok", a)
	hub.Join("tok", b)

	hub.Forward("tok", "conn-a", signalEnvelope(TypeOffer, `{"sdp":"x"}`), "")

	assert.Empty(t, a.frames())
	require.Len(t, b.frames(), 1)
	assert.Equal(t, TypeOffer, b.frames()[0].Type)
}

func TestForwardUnicast(t *testing.T) {
	hub := NewHub(nil)

	a := newFakePeer("conn-a", RoleStaff)
	b := newFakePeer("conn-b", RoleRequester)
	c := newFakePeer("conn-c", RoleRequester)
	hub.Join("tok", a)
	hub.Join("tok", b)
	hub.Join("tok", c)

	hub.Forward("tok", "conn-a", signalEnvelope(TypeICECandidate, `{"candidate":"y"}`), "conn-c")

	assert.Empty(t, b.frames())
	require.Len(t, c.frames(), 1)
	assert.Equal(t, TypeICECandidate, c.frames()[0].Type)
}

func TestForwardAbsentTargetDropsSilently(t *testing.T) {
	hub := NewHub(nil)

	a := newFakePeer("conn-a", RoleStaff)
	b := newFakePeer("conn-b", RoleRequester)
	hub.Join("tok", a)
	hub.Join("tok", b)

	hub.Forward("tok", "conn-a", signalEnvelope(TypeAnswer, `{"sdp":"z"}`), "conn-gone")
	assert.Empty(t, a.frames())
	assert.Empty(t, b.frames())
}

func TestForwardFromNonMemberRejected(t *testing.T) {
	hub := NewHub(nil)

	a := newFakePeer("conn-a", RoleStaff)
	hub.Join("tok", a)

	hub.Forward("tok", "conn-outsider", signalEnvelope(TypeOffer, `{"sdp":"x"}`), "")
	assert.Empty(t, a.frames())
}

func TestLeaveEmptiesRoomExactlyOnce(t *testing.T) {
	hub := NewHub(nil)

	a := newFakePeer("conn-a", RoleStaff)
	b := newFakePeer("conn-b", RoleRequester)
	hub.Join("tok", a)
	hub.Join("tok", b)

	emptied, found := hub.Leave("tok", "conn-a")
	assert.False(t, emptied)
	assert.True(t, found)

	emptied, found = hub.Leave("tok", "conn-b")
	assert.True(t, emptied)
	assert.True(t, found)

	// The disconnect handler can fire twice for the same connection.
	emptied, found = hub.Leave("tok", "conn-b")
	assert.False(t, emptied)
	assert.False(t, found)

	assert.Empty(t, hub.Members("tok"))
}

func TestConcurrentJoinsAllLand(t *testing.T) {
	hub := NewHub(nil)
	const n = 64

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("tok-%d", i%8)
			hub.Join(token, newFakePeer(fmt.Sprintf("conn-%d", i), RoleRequester))
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < 8; i++ {
		total += len(hub.Members(fmt.Sprintf("tok-%d", i)))
	}
	assert.Equal(t, n, total)
}

func TestInitiateIsExclusivePerPair(t *testing.T) {
	// Exactly one side of any pairing creates the offer.
	assert.True(t, initiates("conn-a", "conn-b") != initiates("conn-b", "conn-a"))
	assert.True(t, initiates("conn-a", "conn-b"))
	assert.False(t, initiates("conn-b", "conn-a"))
}
