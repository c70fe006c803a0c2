package server

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/xhad/grounder/internal/types"
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string { return e.Message }

func NewError(code int, msg string) Error {
	return Error{Code: code, Message: msg}
}

func ErrBadRequest() Error {
	return Error{Code: fiber.StatusBadRequest, Message: "invalid JSON request"}
}

func ErrInvalidID() Error {
	return Error{Code: fiber.StatusBadRequest, Message: "invalid id given"}
}

func ErrNotFound(resource string, arg any) Error {
	return Error{Code: fiber.StatusNotFound, Message: fmt.Sprintf("%s with %v not found", resource, arg)}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string { return "validation failed" }

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

// ErrorHandler maps kinded domain errors and API error types to HTTP
// responses.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}
	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	if errors.Is(err, types.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(NewError(fiber.StatusNotFound, err.Error()))
	}

	var kinded *types.Error
	if errors.As(err, &kinded) {
		switch kinded.Kind {
		case types.KindValidation:
			return c.Status(fiber.StatusBadRequest).JSON(NewError(fiber.StatusBadRequest, kinded.Err.Error()))
		case types.KindRateLimited, types.KindCircuitOpen:
			return c.Status(fiber.StatusServiceUnavailable).JSON(NewError(fiber.StatusServiceUnavailable, kinded.Err.Error()))
		case types.KindTransient:
			return c.Status(fiber.StatusBadGateway).JSON(NewError(fiber.StatusBadGateway, kinded.Err.Error()))
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	log.Printf("[SERVER] request failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(NewError(fiber.StatusInternalServerError, "internal server error"))
}
