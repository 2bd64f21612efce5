// Package storage defines the board directory abstraction.
package storage

// Provider reads and writes the ledger files of one board directory.
// Names are relative to the board root.
type Provider interface {
	// Read returns the raw bytes of the named file.
	Read(name string) ([]byte, error)
	// Write atomically replaces the named file with content.
	Write(name string, content []byte) error
	// Exists reports whether the named file is present.
	Exists(name string) (bool, error)
	// Root returns the absolute board directory.
	Root() string
}
