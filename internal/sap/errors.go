package sap

import (
	"errors"
	"fmt"
)

// Kind buckets SAP failures by how they should be reported.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindServer     Kind = "server"
	KindGeneric    Kind = "generic"
)

// ErrNotConfigured is returned by Client methods when no endpoint is set.
var ErrNotConfigured = errors.New("sap: integration not configured")

// Error is a failed SAP call.
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("SAP API error: %d", e.StatusCode)
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Op != "" {
		return "sap: " + e.Op + ": " + msg
	}
	return "sap: " + msg
}

// Kind classifies the error by status code.
func (e *Error) Kind() Kind {
	switch {
	case e.StatusCode == 401:
		return KindAuth
	case e.StatusCode == 403:
		return KindPermission
	case e.StatusCode >= 500:
		return KindServer
	}
	return KindGeneric
}

// Classify returns the bucket and user-facing message for err. Errors that
// are not an *Error are generic and carry their own message.
func Classify(err error) (Kind, string) {
	if err == nil {
		return "", ""
	}
	var se *Error
	if !errors.As(err, &se) {
		return KindGeneric, "SAP error: " + err.Error()
	}
	switch k := se.Kind(); k {
	case KindAuth:
		return k, "not authorized to perform this SAP operation"
	case KindPermission:
		return k, "access to the SAP system denied"
	case KindServer:
		return k, "SAP internal error, try again later"
	default:
		msg := se.Message
		if msg == "" {
			msg = "unknown error"
		}
		return k, "SAP error: " + msg
	}
}
