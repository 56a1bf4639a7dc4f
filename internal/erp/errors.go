package erp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable reports a transport level failure reaching the ERP.
	ErrUnavailable = errors.New("erp: unavailable")
	// ErrAccessDenied reports rejected credentials or an expired ERP session.
	ErrAccessDenied = errors.New("erp: access denied")
	// ErrMissingRecord reports a read or write against a record that does not exist.
	ErrMissingRecord = errors.New("erp: record does not exist")
)

// RemoteError is the error object returned in a JSON-RPC response.
type RemoteError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    RemoteErrorData `json:"data"`
}

// RemoteErrorData carries the server-side exception details.
type RemoteErrorData struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Debug   string `json:"debug,omitempty"`
}

func (e *RemoteError) Error() string {
	msg := e.Data.Message
	if msg == "" {
		msg = e.Message
	}
	if e.Data.Name == "" {
		return fmt.Sprintf("erp: %s", msg)
	}
	name := e.Data.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return fmt.Sprintf("erp: %s: %s", name, msg)
}

// Is lets callers match remote exceptions against the package sentinels.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrAccessDenied:
		return strings.HasSuffix(e.Data.Name, "AccessDenied") || strings.HasSuffix(e.Data.Name, "SessionExpiredException")
	case ErrMissingRecord:
		return strings.HasSuffix(e.Data.Name, "MissingError")
	}
	return false
}
