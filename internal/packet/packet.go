package packet

import (
	"time"

	"github.com/j-94/waggle-dance/internal/types"
)

// Kind is the tag of an agent packet. The set is closed: every kind the
// planner, the executor, or the scheduler can emit is declared here, and
// StatusOf maps each one. Tag strings are the wire vocabulary consumed by
// frontends and must not change.
type Kind string

// Lifecycle packets mark the phases of the model and tool calls a task makes.
const (
	PacketLLMStart       Kind = "handleLLMStart"
	PacketLLMEnd         Kind = "handleLLMEnd"
	PacketChainStart     Kind = "handleChainStart"
	PacketToolStart      Kind = "handleToolStart"
	PacketToolEnd        Kind = "handleToolEnd"
	PacketAgentAction    Kind = "handleAgentAction"
	PacketRetrieverStart Kind = "handleRetrieverStart"
	PacketRetrieverEnd   Kind = "handleRetrieverEnd"
)

// Streaming packets carry incremental model output.
const (
	PacketToken Kind = "token"
)

// Terminal success packets end a task and carry its value.
const (
	PacketDone     Kind = "done"
	PacketAgentEnd Kind = "handleAgentEnd"
	PacketChainEnd Kind = "handleChainEnd"
)

// Terminal failure packets end a task with an error and a severity.
const (
	PacketError          Kind = "error"
	PacketLLMError       Kind = "handleLLMError"
	PacketChainError     Kind = "handleChainError"
	PacketToolError      Kind = "handleToolError"
	PacketAgentError     Kind = "handleAgentError"
	PacketRetrieverError Kind = "handleRetrieverError"
)

// Human-in-the-loop packets ask for external input.
const (
	PacketHumanRequest Kind = "requestHumanInput"
)

// Presentation packets exist purely for status display.
const (
	PacketStarting Kind = "starting"
	PacketWorking  Kind = "working"
	PacketIdle     Kind = "idle"
)

// AllKinds returns every declared packet kind. Tests sweep this to prove the
// status mapping is total.
func AllKinds() []Kind {
	return []Kind{
		PacketLLMStart, PacketLLMEnd, PacketChainStart,
		PacketToolStart, PacketToolEnd, PacketAgentAction,
		PacketRetrieverStart, PacketRetrieverEnd,
		PacketToken,
		PacketDone, PacketAgentEnd, PacketChainEnd,
		PacketError, PacketLLMError, PacketChainError,
		PacketToolError, PacketAgentError, PacketRetrieverError,
		PacketHumanRequest,
		PacketStarting, PacketWorking, PacketIdle,
	}
}

// Valid reports whether k is a declared kind.
func (k Kind) Valid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Success reports whether k is a terminal success kind.
func (k Kind) Success() bool {
	switch k {
	case PacketDone, PacketAgentEnd, PacketChainEnd:
		return true
	}
	return false
}

// Failure reports whether k is a terminal failure kind.
func (k Kind) Failure() bool {
	switch k {
	case PacketError, PacketLLMError, PacketChainError,
		PacketToolError, PacketAgentError, PacketRetrieverError:
		return true
	}
	return false
}

// Finishing reports whether k ends a task, successfully or not.
func (k Kind) Finishing() bool {
	return k.Success() || k.Failure()
}

// Packet is one event in a task's stream. Which fields are set depends on
// the kind: Token for streaming, Value/Outputs for terminal success,
// Severity and Message for failures, Reason for human-input requests.
// Packets are transient; per-node order is the only guarantee.
type Packet struct {
	Kind      Kind           `json:"type"`
	NodeID    string         `json:"nodeId"`
	Token     string         `json:"token,omitempty"`
	Value     string         `json:"value,omitempty"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Severity  types.Severity `json:"severity,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func newPacket(kind Kind, nodeID string) Packet {
	return Packet{Kind: kind, NodeID: nodeID, Timestamp: time.Now().UTC()}
}

// NewLifecycle builds a bare lifecycle or presentation packet.
func NewLifecycle(kind Kind, nodeID string) Packet {
	return newPacket(kind, nodeID)
}

// NewToken builds a streaming packet for one model output chunk.
func NewToken(nodeID, token string) Packet {
	p := newPacket(PacketToken, nodeID)
	p.Token = token
	return p
}

// NewDone builds a "done" packet carrying the task's value.
func NewDone(nodeID, value string) Packet {
	p := newPacket(PacketDone, nodeID)
	p.Value = value
	return p
}

// NewAgentEnd builds the executor's terminal success packet.
func NewAgentEnd(nodeID, value string) Packet {
	p := newPacket(PacketAgentEnd, nodeID)
	p.Value = value
	return p
}

// NewChainEnd builds a chain completion packet with named outputs.
func NewChainEnd(nodeID string, outputs map[string]any) Packet {
	p := newPacket(PacketChainEnd, nodeID)
	p.Outputs = outputs
	return p
}

// NewFailure builds a terminal failure packet of the given kind.
func NewFailure(kind Kind, nodeID string, severity types.Severity, message string) Packet {
	p := newPacket(kind, nodeID)
	p.Severity = severity
	p.Message = message
	return p
}

// NewFailureFromErr builds an "error" packet from err, taking the severity
// recorded on it.
func NewFailureFromErr(nodeID string, err error) Packet {
	return NewFailure(PacketError, nodeID, types.SeverityOf(err), err.Error())
}

// NewHumanRequest builds a human-input request packet.
func NewHumanRequest(nodeID, reason string) Packet {
	p := newPacket(PacketHumanRequest, nodeID)
	p.Reason = reason
	return p
}
