package model

import "encoding/json"

// VaultEventRecord is the JSON representation read back from the journal.
type VaultEventRecord struct {
	Vault     string          `json:"vault"`
	Seq       uint64          `json:"seq"`
	Kind      string          `json:"kind"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
