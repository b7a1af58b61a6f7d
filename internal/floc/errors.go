package floc

import "errors"

// Sentinel errors for every way the core recovers locally from a bad frame
// or exhausted resource. None of these propagate out of Tick; the core logs
// and drops instead, per the single-threaded cooperative contract.
var (
	// ErrMalformed indicates the frame is too short for its declared type.
	ErrMalformed = errors.New("floc: malformed frame")
	// ErrWrongNetwork indicates a frame's nid does not match this node's network id.
	ErrWrongNetwork = errors.New("floc: wrong network id")
	// ErrSelfEcho indicates a frame whose src_addr is this node's own device id.
	ErrSelfEcho = errors.New("floc: self echo")
	// ErrDuplicate indicates the bloom filter has already seen this fingerprint.
	ErrDuplicate = errors.New("floc: duplicate packet")
	// ErrQueueFull indicates an outbound queue was at capacity and the packet was dropped.
	ErrQueueFull = errors.New("floc: queue full")
	// ErrUnknownCommand indicates a COMMAND packet whose command_type is not registered.
	ErrUnknownCommand = errors.New("floc: unknown command type")
	// ErrMaxRetriesExceeded indicates a command exhausted MaxTransmissions without an ack.
	ErrMaxRetriesExceeded = errors.New("floc: max retries exceeded")
	// ErrTTLExhausted indicates a retransmit candidate arrived (or decremented) to ttl <= 1.
	ErrTTLExhausted = errors.New("floc: ttl exhausted")
)
