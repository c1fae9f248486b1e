package store

import (
	"fmt"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the storage engine of one storage node. It holds two independent
// keyspaces:
//
//   - a versioned (MVCC) keyspace, read at a snapshot version and written at
//     a commit version; keys may be covered by transaction locks
//   - a raw keyspace without versions or locks
//
// All methods are safe for concurrent use. Errors are of type *Error.
type IStore interface {
	// Get returns the newest value of key committed at or before version.
	// ok is false if the key does not exist at that version.
	Get(key []byte, version uint64) (value []byte, ok bool, err error)
	// BatchGet reads several keys at version. Missing keys are omitted.
	BatchGet(keys [][]byte, version uint64) ([]keyspace.Pair, error)
	// Scan returns up to limit pairs in key order from r at version.
	// If keyOnly is set, values are left nil.
	Scan(r keyspace.Range, version uint64, keyOnly bool, limit int) ([]keyspace.Pair, error)
	// Put writes value for key with the given commit version.
	Put(key, value []byte, commitVersion uint64) error
	// Delete writes a tombstone for key at commitVersion.
	Delete(key []byte, commitVersion uint64) error
	// Lock places a transaction lock on key. Reads at versions >= startVersion
	// fail with RetCKeyLocked until the lock is removed.
	Lock(key, primary []byte, startVersion, ttl uint64) error
	// Unlock removes the lock on key, if any.
	Unlock(key []byte) error

	// RawGet returns the raw value of key.
	RawGet(key []byte) (value []byte, ok bool, err error)
	// RawPut inserts or updates a raw key.
	RawPut(key, value []byte) error
	// RawDelete removes a raw key. Deleting a missing key is not an error.
	RawDelete(key []byte) error
}

// LockInfo describes a transaction lock that blocked a read.
type LockInfo struct {
	Key         []byte
	Primary     []byte
	LockVersion uint64
	TTL         uint64
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode   // The return code
	Msg  string    // The error message.
	Lock *LockInfo // Set for RetCKeyLocked
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("store error (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// NewLockedError reports that lock blocks a read.
func NewLockedError(lock LockInfo) *Error {
	return &Error{
		Code: RetCKeyLocked,
		Msg:  fmt.Sprintf("key %q is locked by %q at version %d", lock.Key, lock.Primary, lock.LockVersion),
		Lock: &lock,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCInvalidOperation                // 2: Invalid operation (bad arguments).
	RetCKeyLocked                       // 3: A transaction lock covers the key.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCKeyLocked:
		return "KeyLocked"
	default:
		return "Unknown"
	}
}
