package model

import "errors"

// notFoundError signals a path that does not resolve to a property or model.
type notFoundError struct{ path string }

func (e notFoundError) Error() string { return "not found: " + e.path }

// ErrNotFound returns an error for a path that does not resolve.
func ErrNotFound(path string) error { return notFoundError{path: path} }

// IsNotFound reports whether err indicates an unresolved path.
func IsNotFound(err error) bool {
	var target notFoundError
	return errors.As(err, &target)
}

// conflictError signals a child name that is already taken.
type conflictError struct{ path string }

func (e conflictError) Error() string { return "already exists: " + e.path }

// IsConflict reports whether err indicates a duplicate child name.
func IsConflict(err error) bool {
	var target conflictError
	return errors.As(err, &target)
}

// invalidNameError signals an empty child name or one containing the path
// separator.
type invalidNameError struct{ name string }

func (e invalidNameError) Error() string { return "invalid name: " + `"` + e.name + `"` }

// IsInvalidName reports whether err indicates a rejected child name.
func IsInvalidName(err error) bool {
	var target invalidNameError
	return errors.As(err, &target)
}

// invalidValueError signals a value that cannot live in a property, such as a
// *Model.
type invalidValueError struct{ path, msg string }

func (e invalidValueError) Error() string { return e.path + ": " + e.msg }

// IsInvalidValue reports whether err indicates a value a property may not hold.
func IsInvalidValue(err error) bool {
	var target invalidValueError
	return errors.As(err, &target)
}
