package api

import "github.com/ssargent/pagestore/pkg/store"

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RecordResponse describes a stored record
type RecordResponse struct {
	ID   string `json:"id"`
	Size int    `json:"size"`
}

// CommitResponse reports the durable head after a commit
type CommitResponse struct {
	HeadVersion uint64 `json:"head_version"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port          int
	Bind          string
	APIKey        string // client key for record operations
	SystemKey     string // key for commit and stats
	MaxRecordSize int64
}

// RecordStore is the subset of the engine served over HTTP
type RecordStore interface {
	PutBytes(data []byte) (store.RecordID, error)
	GetBytes(id store.RecordID) ([]byte, error)
	UpdateBytes(id store.RecordID, data []byte) error
	Delete(id store.RecordID) error
	Preallocate() (store.RecordID, error)
	Commit() error
	Stats() (*store.Stats, error)
}

var _ RecordStore = (*store.Engine)(nil)
