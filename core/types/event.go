package types

// Event represents a structured state change produced by a native module. The
// attribute map uses string values so events can be serialised for RPC
// consumers and external indexers without further conversion.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
