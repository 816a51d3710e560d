package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"hotelmap/internal/domain"
)

// errConfirmRequired is returned by destructive routes called without
// confirm=true.
var errConfirmRequired = errors.New("this request replaces or deletes data; repeat it with confirm=true")

// statusFor maps domain error kinds to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, errConfirmRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrGeometry):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInsufficientStorage
	}
	return http.StatusInternalServerError
}

func errorHandler(c fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
