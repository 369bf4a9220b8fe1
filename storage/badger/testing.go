package badger

// NewMemoryRegistry creates an in-memory registry for testing.
// Caller must close the registry when done.
func NewMemoryRegistry() (*Registry, error) {
	return NewRegistry(WithInMemory())
}
