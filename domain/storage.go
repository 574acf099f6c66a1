package domain

// StorageRepository is a persistent string key/value store, the equivalent of the
// browser local storage the console keeps its authentication token in.
type StorageRepository interface {
	// GetItem returns the value stored under key and whether it exists.
	GetItem(key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(key string) error
}
