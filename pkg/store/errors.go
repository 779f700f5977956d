package store

// Errors
var (
	ErrUnknownRecord  = &StoreError{"unknown record"}
	ErrEngineClosed   = &StoreError{"engine is closed"}
	ErrCommitFailed   = &StoreError{"commit failed"}
	ErrVolumeIO       = &StoreError{"volume I/O error"}
	ErrCorruption     = &StoreError{"data corruption detected"}
	ErrReadOnly       = &StoreError{"engine is read-only"}
	ErrNullRecord     = &StoreError{"record is null"}
	ErrInvalidConfig  = &StoreError{"invalid configuration"}
	ErrRecordTooLarge = &StoreError{"record too large"}
)

// StoreError represents a page store error
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}
