package models

// ScanTokenKind tags the outcome of parsing a scanned QR payload.
type ScanTokenKind int

const (
	// ScanTokenUnrecognized means the payload matched neither form.
	ScanTokenUnrecognized ScanTokenKind = iota
	// ScanTokenUUID means the payload looks like an internal student id.
	ScanTokenUUID
	// ScanTokenCode means the payload is a human-readable student code.
	ScanTokenCode
)

// ScanToken is the tagged result of parsing a scanned payload.
type ScanToken struct {
	Kind  ScanTokenKind
	Value string
}
