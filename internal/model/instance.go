package model

// RegistryEntry is a deployed instance as recorded by the registry.
type RegistryEntry struct {
	Instance       string `json:"instance"`
	Deployer       string `json:"deployer"`
	Pool           string `json:"pool"`
	Implementation string `json:"implementation,omitempty"`
	Immutable      bool   `json:"immutable"`
}
