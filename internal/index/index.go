package index

import "github.com/starford/taskboard/internal/models"

// TaskIndex defines the interface for task indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type TaskIndex interface {
	ReplaceDocument(name, location string, doc *models.Document, checksum string, problems int) error
	FileChecksum(name string) (string, error)
	GetTask(id string) (*TaskRow, error)
	ListTasks(f Filter) ([]TaskRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies TaskIndex at compile time.
var _ TaskIndex = (*DB)(nil)
