package domain

import "errors"

var (
	// ErrMissingField indicates a required input was absent.
	ErrMissingField = errors.New("required field missing")

	// ErrInvalidDate indicates a supplied expiry could not be parsed.
	ErrInvalidDate = errors.New("invalid date format")

	// ErrNotFoundOrInactive is returned by resolution for unknown or deactivated codes.
	ErrNotFoundOrInactive = errors.New("short link not found or inactive")

	// ErrExpired is returned by resolution for codes past their expiry.
	ErrExpired = errors.New("short link has expired")

	// ErrNotFound is returned by lifecycle operations on unknown codes.
	ErrNotFound = errors.New("short link not found")

	// ErrForbidden indicates the caller does not own the link.
	ErrForbidden = errors.New("caller does not own this short link")

	// ErrCodeSpaceExhausted indicates no free short code was found within the attempt budget.
	ErrCodeSpaceExhausted = errors.New("unable to allocate a unique short code")

	// ErrDuplicateCode is returned by stores when a short code is already taken.
	ErrDuplicateCode = errors.New("short code already exists")

	// ErrStorageUnavailable is matched by every StorageError.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StorageError wraps a failure of the durable store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return ErrStorageUnavailable.Error() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorageUnavailable) match any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

// NewStorageError returns nil for a nil err.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
