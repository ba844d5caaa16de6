package badger

// Repositories bundles the BadgerDB repositories sharing one backend.
type Repositories struct {
	Backend  *Backend
	Jobs     *JobRepository
	Memories *MemoryRepository
	Graph    *GraphRepository
}

// NewMemoryRepositories opens an in-memory backend and creates every repository on it.
// Caller must call Close when done.
func NewMemoryRepositories() (*Repositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return NewRepositories(backend), nil
}

// NewRepositories creates every repository on an open backend.
func NewRepositories(backend *Backend) *Repositories {
	return &Repositories{
		Backend:  backend,
		Jobs:     NewJobRepository(backend),
		Memories: NewMemoryRepository(backend),
		Graph:    NewGraphRepository(backend),
	}
}

// Close closes the repositories and the backend.
func (r *Repositories) Close() error {
	r.Jobs.Close()
	r.Memories.Close()
	r.Graph.Close()
	return r.Backend.Close()
}
