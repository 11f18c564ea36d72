package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/grexie/estorage/pkg/api/interop"
	"github.com/grexie/estorage/pkg/estorage"
)

type StoreRequest struct {
	ID            *string         `json:"id"`
	EncryptionKey *string         `json:"encryption_key"`
	Value         json.RawMessage `json:"value"`
}

func (r *StoreRequest) Validate() error {
	fields := map[string]string{}
	if r.ID == nil || *r.ID == "" {
		fields["id"] = `"id" is required`
	}
	if r.EncryptionKey == nil || *r.EncryptionKey == "" {
		fields["encryption_key"] = `"encryption_key" is required`
	}
	if len(r.Value) == 0 {
		fields["value"] = `"value" is required`
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

type StoreResponse struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

func (a *api) Store(c *fiber.Ctx) error {
	var req StoreRequest

	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if err := req.Validate(); err != nil {
		return err
	} else if err := a.estorage.Save(c.UserContext(), *req.ID, *req.EncryptionKey, req.Value); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse(StoreResponse{ID: *req.ID, Value: req.Value}))
	}
}

type RetrieveRequest struct {
	ID            *string `json:"id"`
	DecryptionKey *string `json:"decryption_key"`
}

func (r *RetrieveRequest) Validate() error {
	fields := map[string]string{}
	if r.ID == nil || *r.ID == "" {
		fields["id"] = `"id" is required`
	}
	if r.DecryptionKey == nil || *r.DecryptionKey == "" {
		fields["decryption_key"] = `"decryption_key" is required`
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

type RetrieveResponse = []estorage.Result

func (a *api) Retrieve(c *fiber.Ctx) error {
	var req RetrieveRequest

	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if err := req.Validate(); err != nil {
		return err
	} else if results, err := a.estorage.Find(c.UserContext(), *req.ID, *req.DecryptionKey); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse[RetrieveResponse](results))
	}
}
