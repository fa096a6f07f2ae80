package interfaces

// ProcessingQueue schedules post-upload validation of a stored object.
type ProcessingQueue interface {
	Enqueue(key string)
}
