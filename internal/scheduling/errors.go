package scheduling

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a caller should react to them.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Code identifies a specific rejection.
type Code string

const (
	CodeInvalidFormat          Code = "InvalidFormat"
	CodeInvalidRange           Code = "InvalidRange"
	CodeInvalidDuration        Code = "InvalidDuration"
	CodeInvalidRequest         Code = "InvalidRequest"
	CodePatientNotFound        Code = "PatientNotFound"
	CodeDoctorNotFound         Code = "DoctorNotFound"
	CodeClinicNotFound         Code = "ClinicNotFound"
	CodeAppointmentNotFound    Code = "AppointmentNotFound"
	CodeDoctorUnavailable      Code = "DoctorUnavailable"
	CodeClinicClosed           Code = "ClinicClosed"
	CodeOutsideOperatingHours  Code = "OutsideOperatingHours"
	CodeSchedulingConflict     Code = "SchedulingConflict"
	CodePastDate               Code = "PastDate"
	CodeInvalidTransition      Code = "InvalidTransition"
	CodeAccessDenied           Code = "AccessDenied"
	CodeConcurrentModification Code = "ConcurrentModification"
)

// Error is a structured rejection produced by the scheduling engine.
// Details carries whatever the caller needs to self-correct (conflicting
// appointment id, clinic hours, doctor schedule).
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by code, so errors.Is(err, ErrSchedulingConflict) works
// for any conflict regardless of message or details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With attaches a detail to the error and returns it.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidFormat          = &Error{Kind: KindValidation, Code: CodeInvalidFormat, Message: "time must match HH:MM (24-hour)"}
	ErrInvalidRange           = &Error{Kind: KindValidation, Code: CodeInvalidRange, Message: "start time must be before end time"}
	ErrInvalidDuration        = &Error{Kind: KindValidation, Code: CodeInvalidDuration, Message: "duration must be between 15 and 480 minutes"}
	ErrInvalidRequest         = &Error{Kind: KindValidation, Code: CodeInvalidRequest, Message: "invalid request"}
	ErrPatientNotFound        = &Error{Kind: KindNotFound, Code: CodePatientNotFound, Message: "patient not found"}
	ErrDoctorNotFound         = &Error{Kind: KindNotFound, Code: CodeDoctorNotFound, Message: "doctor not found"}
	ErrClinicNotFound         = &Error{Kind: KindNotFound, Code: CodeClinicNotFound, Message: "clinic not found"}
	ErrAppointmentNotFound    = &Error{Kind: KindNotFound, Code: CodeAppointmentNotFound, Message: "appointment not found"}
	ErrDoctorUnavailable      = &Error{Kind: KindConflict, Code: CodeDoctorUnavailable, Message: "doctor is not available at the requested time"}
	ErrClinicClosed           = &Error{Kind: KindConflict, Code: CodeClinicClosed, Message: "clinic is closed on the requested date"}
	ErrOutsideOperatingHours  = &Error{Kind: KindConflict, Code: CodeOutsideOperatingHours, Message: "requested time is outside clinic operating hours"}
	ErrSchedulingConflict     = &Error{Kind: KindConflict, Code: CodeSchedulingConflict, Message: "doctor already has an appointment in this time range"}
	ErrPastDate               = &Error{Kind: KindValidation, Code: CodePastDate, Message: "appointment must be in the future"}
	ErrInvalidTransition      = &Error{Kind: KindConflict, Code: CodeInvalidTransition, Message: "action not allowed in the current status"}
	ErrAccessDenied           = &Error{Kind: KindForbidden, Code: CodeAccessDenied, Message: "access denied"}
	ErrConcurrentModification = &Error{Kind: KindConflict, Code: CodeConcurrentModification, Message: "appointment was modified concurrently"}
)

// Errorf returns a fresh error with the kind and code of base and a formatted message.
func Errorf(base *Error, format string, args ...any) *Error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

// AsError unwraps err into a scheduling *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of a scheduling error, or 0 for anything else.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return 0
}
