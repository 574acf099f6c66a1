package domain

// ProcessorRepository defines the server-side persistence of the rankings collection.
// It backs the reference API server, not the client-side mirror.
type ProcessorRepository interface {
	// GetProcessors retrieves the whole collection ordered by identifier.
	GetProcessors() ([]*Processor, error)

	// CreateProcessor inserts a processor and returns its new identifier.
	// Any identifier carried by the record is ignored.
	CreateProcessor(processor *Processor) (int64, error)

	// UpdateProcessor replaces every field of the processor with the given identifier.
	// It returns ErrNotFound if no such processor exists.
	UpdateProcessor(id int64, processor *Processor) error

	// DeleteProcessor removes the processor with the given identifier.
	// It returns ErrNotFound if no such processor exists.
	DeleteProcessor(id int64) error
}
