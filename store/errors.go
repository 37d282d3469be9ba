package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

var (
	// ErrAlreadyExists is returned when creating a table that already exists.
	ErrAlreadyExists = errors.New("singletable: table already exists")

	// ErrTableNotFound is returned when describing or deleting a missing table.
	ErrTableNotFound = errors.New("singletable: table not found")

	// ErrConditionFailed is returned when a conditional write is rejected by the store.
	ErrConditionFailed = errors.New("singletable: condition check failed")

	// ErrConflict is returned when a uniqueness constraint (token, username, email) is violated.
	ErrConflict = errors.New("singletable: conflict")

	// ErrMalformedRecord is returned when a stored item cannot be decoded into its entity.
	ErrMalformedRecord = errors.New("singletable: malformed record")

	// ErrUnavailable is returned for throttling, service and network failures.
	// The operation may be retried by the caller.
	ErrUnavailable = errors.New("singletable: store unavailable")

	// ErrInvalidInput is returned when arguments fail validation.
	ErrInvalidInput = errors.New("singletable: invalid input")
)

// MalformedRecordError describes why an item failed to decode.
type MalformedRecordError struct {
	// Attribute is the offending attribute name.
	Attribute string

	// Reason is a short description, e.g. "missing" or "want S, got N".
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("singletable: malformed record: attribute %q: %s", e.Attribute, e.Reason)
}

// Is reports whether target is ErrMalformedRecord.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// retryableCodes are API error codes that indicate a transient failure.
var retryableCodes = map[string]bool{
	"ThrottlingException":                    true,
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
	"TransactionConflictException":           true,
	"TransactionInProgressException":         true,
	"LimitExceededException":                 true,
}

// retryableReasons are transaction cancellation reason codes that indicate a transient failure.
var retryableReasons = map[string]bool{
	"TransactionConflict":           true,
	"ThrottlingError":               true,
	"ProvisionedThroughputExceeded": true,
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if reason.Code != nil && retryableReasons[*reason.Code] {
				return true
			}
		}
		return false
	}

	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return retryableCodes[apiErr.ErrorCode()]
	}
	return false
}

// MapError wraps an SDK error returned by op in the store taxonomy.
// The original error stays in the chain.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return fmt.Errorf("%s: %w: %w", op, ErrConditionFailed, err)
	}

	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return fmt.Errorf("%s: %w: %w", op, ErrAlreadyExists, err)
	}

	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w: %w", op, ErrTableNotFound, err)
	}

	if IsRetryable(err) && !errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CancellationIndex returns the index of the first transaction item that
// failed its condition check, or -1 if err is not such a cancellation.
func CancellationIndex(err error) int {
	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) {
		return -1
	}
	for i, reason := range txErr.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return i
		}
	}
	return -1
}
