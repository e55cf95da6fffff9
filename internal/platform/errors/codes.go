// Package errors provides structured error handling for the breathing service.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeRequestInvalid covers malformed request payloads.
	CodeRequestInvalid Code = "REQUEST_INVALID"

	// Mode and parameter errors
	CodeModeUnknown       Code = "MODE_UNKNOWN"
	CodeParametersMissing Code = "PARAMETERS_MISSING"

	// Session errors
	CodeSessionNotFound        Code = "SESSION_NOT_FOUND"
	CodeSessionInvalidDuration Code = "SESSION_INVALID_DURATION"
	CodeRatingUnknown          Code = "RATING_UNKNOWN"
	CodeUpdateEmpty            Code = "UPDATE_EMPTY"

	// Metric errors
	CodeMetricOutOfRange Code = "METRIC_OUT_OF_RANGE"

	// Identity errors
	CodeIdentityMissing Code = "IDENTITY_MISSING"
	CodeIdentityInvalid Code = "IDENTITY_INVALID"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeRequestInvalid,
		CodeRatingUnknown,
		CodeSessionInvalidDuration,
		CodeUpdateEmpty,
		CodeMetricOutOfRange:
		return codes.InvalidArgument

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeModeUnknown,
		CodeParametersMissing,
		CodeSessionNotFound:
		return codes.NotFound

	// Unauthenticated - caller identity missing or unverifiable
	case CodeIdentityMissing,
		CodeIdentityInvalid:
		return codes.Unauthenticated

	// Unavailable - backing store failures, propagated not retried
	case CodeStoreUnavailable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
