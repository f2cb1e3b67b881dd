package libs

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies a failure for HTTP mapping and for callers that need
// to branch on outcome without parsing messages.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindUnauthenticated
	KindInvalidCredentials
	KindMfaRequired
	KindEmailNotVerified
	KindForbidden
	KindNotFound
	KindCsrfMismatch
	KindRateLimited
	KindCorruptCredential
	KindInternal
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the error kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindInvalidInput:
		return fiber.StatusBadRequest
	case KindUnauthenticated, KindInvalidCredentials, KindMfaRequired:
		return fiber.StatusUnauthorized
	case KindEmailNotVerified, KindForbidden, KindCsrfMismatch:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	}
	return fiber.StatusInternalServerError
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ErrorHandler is installed as the Fiber app error handler. Internal
// detail never reaches the client; the taxonomy message does.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var e *Error
	if errors.As(err, &e) {
		status := e.Status()
		if status == fiber.StatusInternalServerError {
			return c.Status(status).JSON(fiber.Map{"error": "internal error"})
		}
		return c.Status(status).JSON(fiber.Map{"error": e.Message})
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
