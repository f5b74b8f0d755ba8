// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"
	"fmt"
	"strings"
)

// StatusCode is the stable, symbolic outcome of a VM operation
type StatusCode uint64

// Validation
const (
	StatusUnknownValidation StatusCode = 0
)

// Verification
const (
	StatusLinkerError StatusCode = 1000 + iota
	StatusDuplicateModuleName
	StatusModuleAddressDoesNotMatchSender
	StatusBackwardIncompatibleModuleUpdate
	StatusCyclicModuleDependency
	StatusIndexOutOfBounds
	StatusLookupFailed
	StatusTypeMismatch
	StatusMissingDependency
	StatusMissingNativeFunction
	StatusNumberOfSignerArgumentsMismatch
	StatusNumberOfArgumentsMismatch
	StatusNumberOfTypeArgumentsMismatch
	StatusInvalidParamTypeForDeserialization
	StatusExecuteScriptFunctionCalledOnNonScriptVisibleFunction
	StatusInvalidModuleName
)

// Invariant violations
const (
	StatusUnknownInvariantViolation StatusCode = 2000 + iota
	StatusInternalTypeError
	StatusVMExtensionError
	StatusStorageError
)

// Deserialization
const (
	StatusCodeDeserializationError StatusCode = 3000 + iota
	StatusFailedToDeserializeArgument
	StatusFailedToDeserializeResource
	StatusUnknownBinaryFormat
)

// Execution
const (
	StatusExecuted StatusCode = 4000 + iota
	StatusAborted
	StatusOutOfGas
	StatusMissingData
	StatusResourceAlreadyExists
	StatusUnimplementedFunctionality
)

// StatusType is the family a status code belongs to
type StatusType byte

const (
	StatusTypeValidation StatusType = iota
	StatusTypeVerification
	StatusTypeInvariantViolation
	StatusTypeDeserialization
	StatusTypeExecution
	StatusTypeStorage
)

func (t StatusType) String() string {
	switch t {
	case StatusTypeValidation:
		return "validation"
	case StatusTypeVerification:
		return "verification"
	case StatusTypeInvariantViolation:
		return "invariant violation"
	case StatusTypeDeserialization:
		return "deserialization"
	case StatusTypeExecution:
		return "execution"
	case StatusTypeStorage:
		return "storage"
	default:
		return "unknown"
	}
}

var statusNames = map[StatusCode]string{
	StatusUnknownValidation:                                     "UNKNOWN_VALIDATION_STATUS",
	StatusLinkerError:                                           "LINKER_ERROR",
	StatusDuplicateModuleName:                                   "DUPLICATE_MODULE_NAME",
	StatusModuleAddressDoesNotMatchSender:                       "MODULE_ADDRESS_DOES_NOT_MATCH_SENDER",
	StatusBackwardIncompatibleModuleUpdate:                      "BACKWARD_INCOMPATIBLE_MODULE_UPDATE",
	StatusCyclicModuleDependency:                                "CYCLIC_MODULE_DEPENDENCY",
	StatusIndexOutOfBounds:                                      "INDEX_OUT_OF_BOUNDS",
	StatusLookupFailed:                                          "LOOKUP_FAILED",
	StatusTypeMismatch:                                          "TYPE_MISMATCH",
	StatusMissingDependency:                                     "MISSING_DEPENDENCY",
	StatusMissingNativeFunction:                                 "MISSING_NATIVE_FUNCTION",
	StatusNumberOfSignerArgumentsMismatch:                       "NUMBER_OF_SIGNER_ARGUMENTS_MISMATCH",
	StatusNumberOfArgumentsMismatch:                             "NUMBER_OF_ARGUMENTS_MISMATCH",
	StatusNumberOfTypeArgumentsMismatch:                         "NUMBER_OF_TYPE_ARGUMENTS_MISMATCH",
	StatusInvalidParamTypeForDeserialization:                    "INVALID_PARAM_TYPE_FOR_DESERIALIZATION",
	StatusExecuteScriptFunctionCalledOnNonScriptVisibleFunction: "EXECUTE_SCRIPT_FUNCTION_CALLED_ON_NON_SCRIPT_VISIBLE_FUNCTION",
	StatusInvalidModuleName:                                     "INVALID_MODULE_NAME",
	StatusUnknownInvariantViolation:                             "UNKNOWN_INVARIANT_VIOLATION_ERROR",
	StatusInternalTypeError:                                     "INTERNAL_TYPE_ERROR",
	StatusVMExtensionError:                                      "VM_EXTENSION_ERROR",
	StatusStorageError:                                          "STORAGE_ERROR",
	StatusCodeDeserializationError:                              "CODE_DESERIALIZATION_ERROR",
	StatusFailedToDeserializeArgument:                           "FAILED_TO_DESERIALIZE_ARGUMENT",
	StatusFailedToDeserializeResource:                           "FAILED_TO_DESERIALIZE_RESOURCE",
	StatusUnknownBinaryFormat:                                   "UNKNOWN_BINARY_FORMAT",
	StatusExecuted:                                              "EXECUTED",
	StatusAborted:                                               "ABORTED",
	StatusOutOfGas:                                              "OUT_OF_GAS",
	StatusMissingData:                                           "MISSING_DATA",
	StatusResourceAlreadyExists:                                 "RESOURCE_ALREADY_EXISTS",
	StatusUnimplementedFunctionality:                            "UNIMPLEMENTED_FUNCTIONALITY",
}

func (c StatusCode) String() string {
	if name, ok := statusNames[c]; ok {
		return name
	}
	return fmt.Sprintf("STATUS_%d", uint64(c))
}

// Type returns the family of [c]. Storage errors are reported as their own
// family so callers never confuse a resolver failure with a missing value.
func (c StatusCode) Type() StatusType {
	switch {
	case c == StatusStorageError:
		return StatusTypeStorage
	case c < 1000:
		return StatusTypeValidation
	case c < 2000:
		return StatusTypeVerification
	case c < 3000:
		return StatusTypeInvariantViolation
	case c < 4000:
		return StatusTypeDeserialization
	default:
		return StatusTypeExecution
	}
}

// LocationKind says where an error was raised
type LocationKind byte

const (
	LocationUndefined LocationKind = iota
	LocationScript
	LocationModule
)

// Location is the code location an error is attributed to
type Location struct {
	Kind   LocationKind
	Module ModuleID
}

// UndefinedLocation is used when no code location applies
var UndefinedLocation = Location{}

// ModuleLocation attributes an error to [id]
func ModuleLocation(id ModuleID) Location { return Location{Kind: LocationModule, Module: id} }

// ScriptLocation attributes an error to the executing script
var ScriptLocation = Location{Kind: LocationScript}

func (l Location) String() string {
	switch l.Kind {
	case LocationScript:
		return "script"
	case LocationModule:
		return l.Module.String()
	default:
		return "undefined"
	}
}

// VMError is an error carrying a status code
type VMError struct {
	Code      StatusCode
	SubStatus *uint64
	Message   string
	Location  Location
	cause     error
}

// NewError returns an error with status [code]
func NewError(code StatusCode) *VMError { return &VMError{Code: code} }

// WithMessage attaches a human readable message
func (e *VMError) WithMessage(msg string) *VMError {
	e.Message = msg
	return e
}

// WithSubStatus attaches a sub status, as used by aborts
func (e *VMError) WithSubStatus(code uint64) *VMError {
	e.SubStatus = &code
	return e
}

// WithCause records the underlying error, reachable through errors.Unwrap
func (e *VMError) WithCause(err error) *VMError {
	e.cause = err
	return e
}

// Finish attributes the error to [loc] unless it already has a location
func (e *VMError) Finish(loc Location) *VMError {
	if e.Location.Kind == LocationUndefined {
		e.Location = loc
	}
	return e
}

// StatusType returns the family of the error's code
func (e *VMError) StatusType() StatusType { return e.Code.Type() }

func (e *VMError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.String())
	if e.SubStatus != nil {
		fmt.Fprintf(&b, " (sub status %d)", *e.SubStatus)
	}
	if e.Location.Kind != LocationUndefined {
		fmt.Fprintf(&b, " at %s", e.Location)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *VMError) Unwrap() error { return e.cause }

// StatusOf returns the status code of [err]. Errors that do not carry a
// status are reported as unknown invariant violations.
func StatusOf(err error) StatusCode {
	if err == nil {
		return StatusExecuted
	}
	var vmErr *VMError
	if errors.As(err, &vmErr) {
		return vmErr.Code
	}
	return StatusUnknownInvariantViolation
}

// SubStatusOf returns the sub status of [err], if any
func SubStatusOf(err error) (uint64, bool) {
	var vmErr *VMError
	if errors.As(err, &vmErr) && vmErr.SubStatus != nil {
		return *vmErr.SubStatus, true
	}
	return 0, false
}

// AsVMError converts any error into a *VMError, wrapping foreign errors as
// unknown invariant violations.
func AsVMError(err error) *VMError {
	var vmErr *VMError
	if errors.As(err, &vmErr) {
		return vmErr
	}
	return NewError(StatusUnknownInvariantViolation).WithCause(err)
}

// StorageError wraps a resolver failure
func StorageError(err error) *VMError {
	return NewError(StatusStorageError).WithMessage("unexpected storage error").WithCause(err)
}
