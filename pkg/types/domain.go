package types

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Capabilities is a flat capability profile: requested by callers, advertised
// by slots as their stereotype, and negotiated onto live sessions.
type Capabilities map[string]string

// Clone returns an independent copy so callers cannot mutate shared state.
func (c Capabilities) Clone() Capabilities {
	if c == nil {
		return nil
	}
	out := make(Capabilities, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Contains reports whether every key in want is present in c with an equal
// value. An empty want matches anything.
func (c Capabilities) Contains(want Capabilities) bool {
	for k, v := range want {
		if c[k] != v {
			return false
		}
	}
	return true
}

// String renders the profile as sorted k=v pairs for stable log output.
func (c Capabilities) String() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(c[k])
	}
	sb.WriteString("}")
	return sb.String()
}

// Dialect identifies a protocol dialect a caller can speak.
type Dialect string

const (
	// DialectW3C is the dialect gridd negotiates natively.
	DialectW3C Dialect = "W3C"
	// DialectOSS is accepted from legacy callers and recorded as-is.
	DialectOSS Dialect = "OSS"
)

// RequestID uniquely identifies a queued session request.
type RequestID string

// SessionID uniquely identifies a live session.
type SessionID string

// NodeID uniquely identifies a registered node.
type NodeID string

// NewID returns a random 128-bit hex identifier.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("types: reading random id: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}

// SessionRequest describes one session-creation request. Treated as
// immutable once built; construct with NewSessionRequest.
type SessionRequest struct {
	RequestID   RequestID `json:"request_id" example:"5f2a6c9d8e4b41d0a3f7b1c2d3e4f5a6"`
	SubmittedAt time.Time `json:"submitted_at"`
	Dialects    []Dialect `json:"dialects"`
	// Acceptable capability profiles in declared order; the first profile
	// with a compatible slot wins.
	Capabilities []Capabilities    `json:"capabilities"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	// Timeout overrides the backlog's default wait budget when positive.
	Timeout time.Duration `json:"timeout,omitempty" swaggertype:"integer"`
}

// NewSessionRequest builds a request with a fresh id and submission time.
// The capability profiles are cloned so the request stays immutable.
func NewSessionRequest(caps ...Capabilities) SessionRequest {
	cloned := make([]Capabilities, len(caps))
	for i, c := range caps {
		cloned[i] = c.Clone()
	}
	return SessionRequest{
		RequestID:    RequestID(NewID()),
		SubmittedAt:  time.Now(),
		Dialects:     []Dialect{DialectW3C},
		Capabilities: cloned,
	}
}

// Session is a live bound instance of a capability profile, owned by exactly
// one node.
type Session struct {
	ID SessionID `json:"session_id" example:"0c1d2e3f4a5b6c7d8e9f0a1b2c3d4e5f"`
	// Owning node identity and its callable base URI.
	NodeID  NodeID `json:"node_id" example:"node-1"`
	NodeURI string `json:"node_uri" example:"http://10.0.0.7:5556"`
	// RequestedCapabilities is what the caller asked for;
	// NegotiatedCapabilities is what the slot actually provides.
	RequestedCapabilities  Capabilities `json:"requested_capabilities"`
	NegotiatedCapabilities Capabilities `json:"negotiated_capabilities"`
	StartedAt              time.Time    `json:"started_at"`
}

// SlotState is the lifecycle state of a slot.
type SlotState string

const (
	SlotAvailable SlotState = "available"
	SlotReserved  SlotState = "reserved"
	SlotOccupied  SlotState = "occupied"
)

// SlotStatus is a point-in-time snapshot of one slot.
type SlotStatus struct {
	// Stereotype is the capability profile this slot can materialize.
	Stereotype Capabilities `json:"stereotype"`
	State      SlotState    `json:"state" example:"available"`
	// SessionID is set only while the slot is occupied.
	SessionID SessionID `json:"session_id,omitempty"`
	// LastStartedAt is when the slot's current or most recent session
	// started; zero while the slot has never run one.
	LastStartedAt time.Time `json:"last_started_at,omitempty"`
}

// Availability is the health state a node reports for itself.
type Availability string

const (
	AvailabilityUp       Availability = "up"
	AvailabilityDraining Availability = "draining"
	AvailabilityDown     Availability = "down"
)

// NodeStatus is a point-in-time snapshot of one node: availability plus
// per-slot occupancy. Nodes produce it on demand; the distributor caches the
// latest snapshot per node.
type NodeStatus struct {
	NodeID          NodeID        `json:"node_id" example:"node-1"`
	NodeURI         string        `json:"node_uri" example:"http://10.0.0.7:5556"`
	Availability    Availability  `json:"availability" example:"up"`
	HeartbeatPeriod time.Duration `json:"heartbeat_period" swaggertype:"integer"`
	Slots           []SlotStatus  `json:"slots"`
	// LastHealthCheckAt is when the availability was last computed: by the
	// node itself when it built the snapshot, refreshed by the hub when a
	// probe lands.
	LastHealthCheckAt time.Time `json:"last_health_check_at,omitempty"`
}

// HasCapacity reports whether the node is up with at least one free slot.
func (ns NodeStatus) HasCapacity() bool {
	if ns.Availability != AvailabilityUp {
		return false
	}
	for _, s := range ns.Slots {
		if s.State == SlotAvailable {
			return true
		}
	}
	return false
}

// Load returns the number of slots that are reserved or occupied.
func (ns NodeStatus) Load() int {
	n := 0
	for _, s := range ns.Slots {
		if s.State != SlotAvailable {
			n++
		}
	}
	return n
}

// FreeMatching returns how many available slots could satisfy the given
// profile under plain stereotype containment.
func (ns NodeStatus) FreeMatching(caps Capabilities) int {
	n := 0
	for _, s := range ns.Slots {
		if s.State == SlotAvailable && s.Stereotype.Contains(caps) {
			n++
		}
	}
	return n
}

// DistributorStatus is the read-only aggregate over all registered nodes.
type DistributorStatus struct {
	HasCapacity bool         `json:"has_capacity"`
	Nodes       []NodeStatus `json:"nodes"`
}
