package model

// StepFailure records a rejected scenario step.
type StepFailure struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
	Vault  string `json:"vault,omitempty"`
	Error  string `json:"error"`
}
