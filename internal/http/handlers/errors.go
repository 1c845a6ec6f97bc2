package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"dazzlodocs/internal/domain"
)

// StatusFor maps a conversion error onto an HTTP status code.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrInvalidOptions):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrInputNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrRenderTimeout):
		return fiber.StatusRequestTimeout
	case errors.Is(err, domain.ErrEngineUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// toFiberError keeps the error text for client errors and prefixes server
// failures.
func toFiberError(err error) *fiber.Error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	code := StatusFor(err)
	if code >= fiber.StatusInternalServerError {
		return fiber.NewError(code, "PDF conversion failed: "+err.Error())
	}
	return fiber.NewError(code, err.Error())
}
