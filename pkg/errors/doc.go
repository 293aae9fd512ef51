// Package errors provides structured error handling with error codes for simple-emailauth.
//
// This package standardizes error handling across all services with typed error codes
// and automatic HTTP status code mapping.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-emailauth/pkg/errors"
//
//	// Create a simple error
//	err := errors.New(errors.ErrCodeDuplicateEmail, "email already taken")
//
//	// Wrap an existing error
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to query database")
//
//	// Map to an HTTP status in a handler
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
package errors
