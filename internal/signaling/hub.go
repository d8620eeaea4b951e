package signaling

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/spec-kit/verification-service/internal/observability"
)

const shardCount = 32

// Peer is a live connection in a room. Send must not block; it reports
// whether the frame was accepted.
type Peer interface {
	ID() string
	Role() Role
	Send(env Envelope) bool
}

type room struct {
	// members in join order; rooms hold two peers in practice so a slice
	// beats a map.
	members []Peer
}

type shard struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// Hub tracks presence: which connections are in which session room. The room
// table is sharded by token so independent sessions never contend on one lock.
type Hub struct {
	shards  [shardCount]*shard
	active  atomic.Int64
	metrics *observability.Metrics
}

// NewHub creates an empty hub.
func NewHub(metrics *observability.Metrics) *Hub {
	h := &Hub{metrics: metrics}
	for i := range h.shards {
		h.shards[i] = &shard{rooms: make(map[string]*room)}
	}
	return h
}

func (h *Hub) shardFor(token string) *shard {
	f := fnv.New32a()
	f.Write([]byte(token))
	return h.shards[f.Sum32()%shardCount]
}

// Join adds the peer to the session's room and returns the peers already
// present, in join order. Creating the room and appending the member happen
// under one lock, so two concurrent joiners cannot both see an empty roster.
func (h *Hub) Join(token string, peer Peer) []Peer {
	s := h.shardFor(token)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[token]
	if !ok {
		r = &room{}
		s.rooms[token] = r
		h.metrics.SetRoomsActive(int(h.active.Add(1)))
	}
	existing := make([]Peer, len(r.members))
	copy(existing, r.members)
	r.members = append(r.members, peer)
	return existing
}

// Leave removes the peer. It reports whether the peer was present and whether
// the room became empty, which deletes it. A room is emptied at most once.
func (h *Hub) Leave(token, peerID string) (emptied, found bool) {
	s := h.shardFor(token)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[token]
	if !ok {
		return false, false
	}
	for i, member := range r.members {
		if member.ID() == peerID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			found = true
			break
		}
	}
	if found && len(r.members) == 0 {
		delete(s.rooms, token)
		h.metrics.SetRoomsActive(int(h.active.Add(-1)))
		return true, true
	}
	return false, found
}

// Members returns the room roster in join order.
func (h *Hub) Members(token string) []Peer {
	s := h.shardFor(token)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[token]
	if !ok {
		return nil
	}
	out := make([]Peer, len(r.members))
	copy(out, r.members)
	return out
}

// Forward relays a signal frame from a room member. Only current members may
// send; a named target outside the room drops the frame silently (the peer
// may have just disconnected), and an empty target broadcasts to everyone
// except the sender.
func (h *Hub) Forward(token, fromID string, env Envelope, target string) {
	members := h.Members(token)

	var sender Peer
	for _, m := range members {
		if m.ID() == fromID {
			sender = m
			break
		}
	}
	if sender == nil {
		h.metrics.RecordSignal(env.Type, "rejected")
		return
	}

	delivered := false
	for _, m := range members {
		if m.ID() == fromID {
			continue
		}
		if target != "" && m.ID() != target {
			continue
		}
		if m.Send(env) {
			delivered = true
		}
	}
	if delivered {
		h.metrics.RecordSignal(env.Type, "relayed")
	} else {
		h.metrics.RecordSignal(env.Type, "dropped")
	}
}

// Broadcast sends a frame to every member except the excluded connection.
func (h *Hub) Broadcast(token, excludeID string, env Envelope) {
	for _, m := range h.Members(token) {
		if m.ID() == excludeID {
			continue
		}
		m.Send(env)
	}
}
