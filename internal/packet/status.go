package packet

import "github.com/j-94/waggle-dance/internal/types"

// Status is the coarse task state a packet stream maps to. Frontends render
// these; the scheduler also consults Finishing kinds for completion.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWorking Status = "working"
	StatusWait    Status = "wait"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// StatusOf maps a packet kind to the status it implies. The switch lists
// every declared kind; the tests sweep AllKinds so an addition to the
// protocol without a mapping here fails immediately.
func StatusOf(k Kind) Status {
	switch k {
	case PacketLLMStart, PacketLLMEnd, PacketChainStart,
		PacketToolStart, PacketToolEnd, PacketAgentAction,
		PacketRetrieverStart, PacketRetrieverEnd,
		PacketToken,
		PacketStarting, PacketWorking:
		return StatusWorking
	case PacketDone, PacketAgentEnd, PacketChainEnd:
		return StatusDone
	case PacketError, PacketLLMError, PacketChainError,
		PacketToolError, PacketAgentError, PacketRetrieverError:
		return StatusError
	case PacketHumanRequest:
		return StatusWait
	case PacketIdle:
		return StatusIdle
	}
	return StatusError
}

// LatestStatus derives a task's current status from its packet stream: the
// status of the most recent packet, or idle when nothing has been emitted.
func LatestStatus(seq []Packet) Status {
	if len(seq) == 0 {
		return StatusIdle
	}
	return StatusOf(seq[len(seq)-1].Kind)
}

// FindFinish returns the last finishing packet in seq, scanning backwards.
func FindFinish(seq []Packet) (Packet, bool) {
	for i := len(seq) - 1; i >= 0; i-- {
		if seq[i].Kind.Finishing() {
			return seq[i], true
		}
	}
	return Packet{}, false
}

// FinishPacket returns the packet that ended the task. A stream that stopped
// without one yields a synthesized fatal error packet, so downstream
// consumers always see a deterministic finish.
func FinishPacket(nodeID string, seq []Packet) Packet {
	if p, ok := FindFinish(seq); ok {
		return p
	}
	return NewFailure(PacketError, nodeID, types.SeverityFatal,
		"task ended without a finishing packet")
}
