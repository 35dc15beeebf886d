package vhost

import (
	"errors"
	"fmt"
	"time"
)

// Registry errors
var (
	ErrNotFound        = errors.New("host not found")
	ErrParse           = errors.New("hosts file is not a valid JSON object")
	ErrLockTimeout     = errors.New("timed out waiting for hosts file lock")
	ErrInvalidDomain   = errors.New("invalid domain")
	ErrDuplicateDomain = errors.New("domain already exists")
)

// NotFoundError reports a mutation that targeted a host or alias absent from the registry.
type NotFoundError struct {
	Domain  string
	AliasID string
}

func (e *NotFoundError) Error() string {
	if e.AliasID != "" {
		return fmt.Sprintf("alias %q not found on host %q", e.AliasID, e.Domain)
	}
	return fmt.Sprintf("host %q not found", e.Domain)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ParseError reports a hosts file whose top-level content is not a JSON object.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parsing hosts: %v", e.Err)
	}
	return fmt.Sprintf("parsing hosts file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// LockTimeoutError reports that another writer held the hosts file lock for longer than Timeout.
type LockTimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("another operation is in progress: lock %s not acquired within %s", e.Path, e.Timeout)
}

// Is reports whether target is ErrLockTimeout.
func (e *LockTimeoutError) Is(target error) bool {
	return target == ErrLockTimeout
}
