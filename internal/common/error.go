package common

import (
	"fmt"
	"strings"

	"lmsdisasm/internal/lms"
)

// Error represents the library error object.
type Error struct {
	Code    lms.Err
	Sev     lms.ErrSeverity
	Idx     lms.Index
	Message string
}

// Sentinels for errors.Is; matching is by code only.
var (
	ErrFormatErr              = &Error{Code: lms.ErrFormat}
	ErrUnsupportedEncodingErr = &Error{Code: lms.ErrUnsupportedEncoding}
	ErrTruncatedInputErr      = &Error{Code: lms.ErrTruncatedInput}
	ErrFileErr                = &Error{Code: lms.ErrFileError}
	ErrCatalogErr             = &Error{Code: lms.ErrCatalog}
)

func NewError(sev lms.ErrSeverity, code lms.Err) *Error {
	return &Error{
		Code: code,
		Sev:  sev,
		Idx:  lms.BadIndex,
	}
}

func NewErrorMsg(sev lms.ErrSeverity, code lms.Err, msg string) *Error {
	return &Error{
		Code:    code,
		Sev:     sev,
		Idx:     lms.BadIndex,
		Message: msg,
	}
}

func NewErrorWithIdxMsg(sev lms.ErrSeverity, code lms.Err, idx lms.Index, msg string) *Error {
	return &Error{
		Code:    code,
		Sev:     sev,
		Idx:     idx,
		Message: msg,
	}
}

// FormatError reports a structurally invalid input at byte idx.
func FormatError(idx int, format string, args ...any) *Error {
	return NewErrorWithIdxMsg(lms.ErrSevError, lms.ErrFormat, lms.Index(idx), fmt.Sprintf(format, args...))
}

// UnsupportedEncodingError reports a well-formed encoding this decoder cannot render.
func UnsupportedEncodingError(idx int, format string, args ...any) *Error {
	return NewErrorWithIdxMsg(lms.ErrSevError, lms.ErrUnsupportedEncoding, lms.Index(idx), fmt.Sprintf(format, args...))
}

// TruncatedInputError reports a read past the end of the input.
func TruncatedInputError(idx int, want, have int) *Error {
	return NewErrorWithIdxMsg(lms.ErrSevError, lms.ErrTruncatedInput, lms.Index(idx),
		fmt.Sprintf("wanted %d bytes, %d remaining", want, have))
}

// CatalogError reports an invalid catalog entry.
func CatalogError(format string, args ...any) *Error {
	return NewErrorMsg(lms.ErrSevError, lms.ErrCatalog, fmt.Sprintf(format, args...))
}

// FileError wraps a failure to open, read or write a file.
func FileError(path string, err error) *Error {
	return NewErrorMsg(lms.ErrSevError, lms.ErrFileError, fmt.Sprintf("%s: %v", path, err))
}

// Error implements the standard error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	switch e.Sev {
	case lms.ErrSevNone:
		return "LIBRARY INTERNAL ERROR: Invalid Error Object"
	case lms.ErrSevError:
		sb.WriteString("ERROR:")
	case lms.ErrSevWarn:
		sb.WriteString("WARN :")
	case lms.ErrSevInfo:
		sb.WriteString("INFO :")
	default:
		return "LIBRARY INTERNAL ERROR: Invalid Error Object"
	}

	sb.WriteString(fmt.Sprintf("0x%04x ", e.Code))

	if desc, ok := errorCodeDesc[e.Code]; ok {
		sb.WriteString(fmt.Sprintf("(%s) [%s]; ", desc.name, desc.msg))
	} else {
		sb.WriteString("(unknown); ")
	}

	if e.Idx != lms.BadIndex {
		sb.WriteString(fmt.Sprintf("Idx=%d; ", e.Idx))
	}

	sb.WriteString(e.Message)
	return sb.String()
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

type errDesc struct {
	name string
	msg  string
}

var errorCodeDesc = map[lms.Err]errDesc{
	lms.OK:                     {"LMS_OK", "No Error."},
	lms.ErrFail:                {"LMS_ERR_FAIL", "General failure."},
	lms.ErrFormat:              {"LMS_ERR_FORMAT", "Malformed input."},
	lms.ErrUnsupportedEncoding: {"LMS_ERR_UNSUPPORTED_ENCODING", "Parameter encoding not supported."},
	lms.ErrTruncatedInput:      {"LMS_ERR_TRUNCATED_INPUT", "Input ended inside a field."},
	lms.ErrFileError:           {"LMS_ERR_FILE_ERROR", "File access error"},
	lms.ErrCatalog:             {"LMS_ERR_CATALOG", "Invalid opcode catalog."},
	lms.ErrLast:                {"LMS_ERR_LAST", "No error - error code end marker"},
}
