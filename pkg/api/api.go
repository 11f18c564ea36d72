package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/grexie/estorage/pkg/api/interop"
	"github.com/grexie/estorage/pkg/auth"
	"github.com/grexie/estorage/pkg/estorage"
)

type API interface {
	App() *fiber.App
}

type api struct {
	app      *fiber.App
	auth     auth.Auth
	estorage estorage.EncryptedStorage
}

var _ API = &api{}

// ValidationError carries per-field reasons for a 400 response.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "invalid inputs"
}

func errorHandler(c *fiber.Ctx, err error) error {
	var validationErr *ValidationError
	var idErr *estorage.IdentifierInvalidError
	var e *fiber.Error

	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(interop.NewValidationErrorResponse(validationErr.Fields))
	case errors.As(err, &idErr):
		return c.Status(fiber.StatusBadRequest).JSON(interop.NewValidationErrorResponse(map[string]string{idErr.Field: idErr.Reason}))
	case errors.As(err, &e):
		return c.Status(e.Code).JSON(interop.NewErrorResponse(err))
	}

	log.Errorf("%s %s: %v", c.Method(), c.Path(), err)
	if err := c.Status(fiber.StatusInternalServerError).JSON(interop.NewErrorResponse(err)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(interop.NewErrorResponse(fmt.Errorf("internal server error")))
	}
	return nil
}

func NewAPI(auth auth.Auth, estorage estorage.EncryptedStorage) (API, error) {
	a := api{auth: auth, estorage: estorage}

	a.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	a.app.Put("/store", a.auth.RequireAPIKey, a.Store)
	a.app.Post("/retrieve", a.auth.RequireAPIKey, a.Retrieve)
	a.app.Get("/status", a.Status)

	return &a, nil
}

func (a *api) App() *fiber.App {
	return a.app
}
