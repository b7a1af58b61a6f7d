// Package audit persists a best-effort record of every device action FLOC
// surfaces, and owns the seeded registry of command types a node recognizes
// (the set floc.Core consults to decide whether to ack an inbound COMMAND).
package audit

import "time"

// CommandType is a single recognized COMMAND packet command_type value.
// Unseeded command types are treated as unrecognized: the core logs and
// does not ack them.
type CommandType struct {
	ID          uint8  `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"uniqueIndex"`
	Description string `json:"description"`
}

func (CommandType) TableName() string {
	return "command_types"
}

// Entry is one audited device action: an inbound packet this node accepted
// and surfaced to the application layer.
type Entry struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	OccurredAt  time.Time `json:"occurred_at" gorm:"index"`
	SrcAddr     uint16    `json:"src_addr"`
	LastHop     uint16    `json:"last_hop"`
	FlocType    uint8     `json:"floc_type"`
	CommandType uint8     `json:"command_type"`
	DataSize    uint8     `json:"data_size"`
	IsError     bool      `json:"is_error"`
}

func (Entry) TableName() string {
	return "audit_entries"
}
