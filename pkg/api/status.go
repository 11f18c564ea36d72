package api

import (
	"github.com/carlmjohnson/versioninfo"
	"github.com/gofiber/fiber/v2"
	"github.com/grexie/estorage/pkg/api/interop"
)

type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Version       string `json:"version"`
}

func (a *api) Status(c *fiber.Ctx) error {
	return c.JSON(interop.NewResponse(StatusResponse{
		Authenticated: a.auth.Enabled(),
		Version:       versioninfo.Short(),
	}))
}
