package tor

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// ControllerError is the common interface implemented by every error this
// package returns for a failed control-port operation. It lets callers
// switch on the taxonomy with errors.As without depending on a concrete
// struct.
type ControllerError interface {
	error

	// Code is the three-digit Tor reply status code that produced this
	// error, or 0 when the error did not originate from a status line
	// (e.g. a socket failure).
	Code() int
}

// baseError is embedded by every concrete error type below. It carries the
// status code and the raw reply message, and wraps a go-errors/errors.Error
// so a stack trace is available for unexpected protocol failures without
// losing the ability to do typed matching via errors.As against the
// concrete wrapping types, which go-errors chains do not support on their
// own.
type baseError struct {
	code    int
	message string
	cause   *goerrors.Error
}

func newBaseError(code int, message string) baseError {
	return baseError{
		code:    code,
		message: message,
		cause:   goerrors.New(message),
	}
}

func (e baseError) Error() string {
	return e.message
}

func (e baseError) Code() int {
	return e.code
}

// Unwrap exposes the stack-tracing cause so errors.Is/As can walk past this
// type when needed.
func (e baseError) Unwrap() error {
	return e.cause
}

// ProtocolError indicates the daemon returned a reply this package could
// not parse as a well-formed Tor control message.
type ProtocolError struct {
	baseError
}

// NewProtocolError builds a ProtocolError for a malformed reply.
func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{newBaseError(0, fmt.Sprintf(format, args...))}
}

// OperationFailedError is returned for a command that reached the daemon
// but that the daemon refused to carry out (reply codes 451-555 outside
// the more specific categories below).
type OperationFailedError struct {
	baseError
}

// NewOperationFailedError builds an OperationFailedError for the given
// status code and reply text.
func NewOperationFailedError(code int, message string) *OperationFailedError {
	return &OperationFailedError{newBaseError(code, message)}
}

// UnsatisfiableRequestError indicates the daemon understood the request but
// could not satisfy it given its current state (reply code 551).
type UnsatisfiableRequestError struct {
	baseError
}

// NewUnsatisfiableRequestError builds an UnsatisfiableRequestError.
func NewUnsatisfiableRequestError(code int, message string) *UnsatisfiableRequestError {
	return &UnsatisfiableRequestError{newBaseError(code, message)}
}

// CircuitExtensionFailedError is a specialization of
// UnsatisfiableRequestError raised when EXTENDCIRCUIT fails to extend a
// circuit through the requested path.
type CircuitExtensionFailedError struct {
	baseError
}

// NewCircuitExtensionFailedError builds a CircuitExtensionFailedError.
func NewCircuitExtensionFailedError(code int, message string) *CircuitExtensionFailedError {
	return &CircuitExtensionFailedError{newBaseError(code, message)}
}

// InvalidRequestError indicates the command itself was malformed (reply
// code 512, "invalid number of arguments").
type InvalidRequestError struct {
	baseError
}

// NewInvalidRequestError builds an InvalidRequestError.
func NewInvalidRequestError(code int, message string) *InvalidRequestError {
	return &InvalidRequestError{newBaseError(code, message)}
}

// InvalidArgumentsError is a specialization of InvalidRequestError for
// SETCONF/RESETCONF commands naming an unrecognized configuration option
// (reply code 552).
type InvalidArgumentsError struct {
	baseError

	// Arguments holds the specific argument names the daemon rejected,
	// when it reported them.
	Arguments []string
}

// NewInvalidArgumentsError builds an InvalidArgumentsError.
func NewInvalidArgumentsError(code int, message string, args []string) *InvalidArgumentsError {
	return &InvalidArgumentsError{
		baseError: newBaseError(code, message),
		Arguments: args,
	}
}

// SocketError indicates a failure at the transport layer rather than at the
// protocol layer: a dial failure, a read/write error, or an unexpected
// disconnect.
type SocketError struct {
	baseError
}

// NewSocketError wraps a transport-layer error as a SocketError.
func NewSocketError(cause error) *SocketError {
	msg := "socket error"
	if cause != nil {
		msg = cause.Error()
	}
	return &SocketError{newBaseError(0, msg)}
}

// ErrSocketClosed is returned by any in-flight or subsequent operation once
// the controller's socket has been closed, either by a call to Close or by
// the daemon disconnecting.
var ErrSocketClosed = &SocketError{newBaseError(0, "socket is closed")}

// AuthenticationFailure is the common interface for every error returned
// from Authenticate. It mirrors stem's AuthenticationFailure hierarchy.
type AuthenticationFailure interface {
	error

	// AuthMethod names the authentication method that produced this
	// failure: "NONE", "PASSWORD", "COOKIE", or "SAFECOOKIE".
	AuthMethod() string
}

type baseAuthFailure struct {
	method  string
	message string
}

func (e baseAuthFailure) Error() string {
	return e.message
}

func (e baseAuthFailure) AuthMethod() string {
	return e.method
}

// OpenAuthRejected is raised when the daemon rejects an AUTHENTICATE
// command sent with no credentials (the NONE method).
type OpenAuthRejected struct{ baseAuthFailure }

// NewOpenAuthRejected builds an OpenAuthRejected failure.
func NewOpenAuthRejected(message string) *OpenAuthRejected {
	return &OpenAuthRejected{baseAuthFailure{"NONE", message}}
}

// PasswordAuthRejected is raised when the daemon rejects PASSWORD
// authentication outright (for instance, it isn't configured with a
// HashedControlPassword at all).
type PasswordAuthRejected struct{ baseAuthFailure }

// NewPasswordAuthRejected builds a PasswordAuthRejected failure.
func NewPasswordAuthRejected(message string) *PasswordAuthRejected {
	return &PasswordAuthRejected{baseAuthFailure{"PASSWORD", message}}
}

// IncorrectPassword is raised when PASSWORD authentication is attempted
// with a password that does not match the daemon's HashedControlPassword.
type IncorrectPassword struct{ baseAuthFailure }

// NewIncorrectPassword builds an IncorrectPassword failure.
func NewIncorrectPassword(message string) *IncorrectPassword {
	return &IncorrectPassword{baseAuthFailure{"PASSWORD", message}}
}

// UnreadableCookieFile is raised when the COOKIE or SAFECOOKIE cookie file
// named in a PROTOCOLINFO reply cannot be opened or read.
type UnreadableCookieFile struct {
	baseAuthFailure
	Path string
}

// NewUnreadableCookieFile builds an UnreadableCookieFile failure.
func NewUnreadableCookieFile(method, path, message string) *UnreadableCookieFile {
	return &UnreadableCookieFile{baseAuthFailure{method, message}, path}
}

// IncorrectCookieSize is raised when a cookie file's contents are not
// exactly 32 bytes long.
type IncorrectCookieSize struct {
	baseAuthFailure
	Size int
}

// NewIncorrectCookieSize builds an IncorrectCookieSize failure.
func NewIncorrectCookieSize(method string, size int) *IncorrectCookieSize {
	return &IncorrectCookieSize{
		baseAuthFailure{method, fmt.Sprintf(
			"expected authentication cookie to be 32 bytes, got %d",
			size,
		)},
		size,
	}
}

// CookieAuthRejected is raised when the daemon rejects an AUTHENTICATE
// command built from a cookie value it does not recognize.
type CookieAuthRejected struct{ baseAuthFailure }

// NewCookieAuthRejected builds a CookieAuthRejected failure.
func NewCookieAuthRejected(method, message string) *CookieAuthRejected {
	return &CookieAuthRejected{baseAuthFailure{method, message}}
}

// IncorrectCookieValue is raised when the daemon rejects an AUTHENTICATE
// command even though the cookie file was read successfully and of the
// correct size: the value itself did not match.
type IncorrectCookieValue struct{ baseAuthFailure }

// NewIncorrectCookieValue builds an IncorrectCookieValue failure.
func NewIncorrectCookieValue(method, message string) *IncorrectCookieValue {
	return &IncorrectCookieValue{baseAuthFailure{method, message}}
}

// UnrecognizedAuthChallengeMethod is raised when AUTHCHALLENGE is attempted
// against a daemon that does not list SAFECOOKIE among its PROTOCOLINFO
// AuthMethods.
type UnrecognizedAuthChallengeMethod struct{ baseAuthFailure }

// NewUnrecognizedAuthChallengeMethod builds an
// UnrecognizedAuthChallengeMethod failure.
func NewUnrecognizedAuthChallengeMethod(message string) *UnrecognizedAuthChallengeMethod {
	return &UnrecognizedAuthChallengeMethod{baseAuthFailure{"SAFECOOKIE", message}}
}

// AuthChallengeFailed is raised when the AUTHCHALLENGE command itself
// fails, independent of the later HMAC verification step.
type AuthChallengeFailed struct{ baseAuthFailure }

// NewAuthChallengeFailed builds an AuthChallengeFailed failure.
func NewAuthChallengeFailed(message string) *AuthChallengeFailed {
	return &AuthChallengeFailed{baseAuthFailure{"SAFECOOKIE", message}}
}

// AuthSecurityFailure is raised when the server's AUTHCHALLENGE hash does
// not match our recomputed HMAC, indicating a potential hijacked session or
// a cookie we could not have legitimately read.
type AuthSecurityFailure struct{ baseAuthFailure }

// NewAuthSecurityFailure builds an AuthSecurityFailure failure.
func NewAuthSecurityFailure(message string) *AuthSecurityFailure {
	return &AuthSecurityFailure{baseAuthFailure{"SAFECOOKIE", message}}
}

// InvalidClientNonce is raised when the daemon rejects our client nonce
// during the SAFECOOKIE handshake.
type InvalidClientNonce struct{ baseAuthFailure }

// NewInvalidClientNonce builds an InvalidClientNonce failure.
func NewInvalidClientNonce(message string) *InvalidClientNonce {
	return &InvalidClientNonce{baseAuthFailure{"SAFECOOKIE", message}}
}

// errCodeMismatch is a sentinel for a reply whose status code does not
// match what a caller expected. No function in this package returns it; a
// failed reply surfaces as the typed OperationFailedError/
// InvalidRequestError, which carry the code itself.
var errCodeMismatch = errors.New("unexpected control-port reply code")
