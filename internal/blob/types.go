// Package blob is the entry point to the archive object stores. Callers
// depend on Store and open a driver with Open.
package blob

import (
	"growcore/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// Sentinel errors shared by every driver.
var (
	ErrExists      = core.ErrExists
	ErrNotFound    = core.ErrNotFound
	ErrUnsupported = core.ErrUnsupported
	ErrInvalidKey  = core.ErrInvalidKey
)
