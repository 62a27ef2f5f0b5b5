package model

// VaultEvent is an instance or registry event ready for the event journal.
type VaultEvent struct {
	Vault     string      `json:"vault"`
	Seq       uint64      `json:"seq"`
	Kind      string      `json:"kind"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}
