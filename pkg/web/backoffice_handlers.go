package web

import (
	"github.com/eventiq/eventiq/pkg/services"
	"github.com/gofiber/fiber/v3"
)

// collectionHandler binds the generic document CRUD to one collection.
// Every back-office group shares the same shape, so the routes are stamped
// out per collection instead of hand-writing six copies.
type collectionHandler struct {
	handlers   *APIHandlers
	collection string
}

func (h *APIHandlers) collection(name string) collectionHandler {
	return collectionHandler{handlers: h, collection: name}
}

func (ch collectionHandler) Create(c fiber.Ctx) error {
	var data map[string]any
	if err := c.Bind().JSON(&data); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	doc, err := ch.handlers.backofficeService.Create(c.Context(), ch.collection, data)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (ch collectionHandler) List(c fiber.Ctx) error {
	docs, err := ch.handlers.backofficeService.List(c.Context(), ch.collection)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{ch.collection: docs})
}

func (ch collectionHandler) Get(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record ID is required")
	}

	doc, err := ch.handlers.backofficeService.Get(c.Context(), ch.collection, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(doc)
}

func (ch collectionHandler) Update(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record ID is required")
	}

	var data map[string]any
	if err := c.Bind().JSON(&data); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	doc, err := ch.handlers.backofficeService.Update(c.Context(), ch.collection, id, data)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(doc)
}

func (ch collectionHandler) Delete(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record ID is required")
	}

	if err := ch.handlers.backofficeService.Delete(c.Context(), ch.collection, id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// CheckInParticipant marks a participant as arrived. A second check-in is a
// conflict.
func (h *APIHandlers) CheckInParticipant(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Participant ID is required")
	}

	doc, err := h.backofficeService.CheckIn(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(doc)
}

// LogVolunteerHours appends a work entry to a volunteer's hours log.
func (h *APIHandlers) LogVolunteerHours(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Volunteer ID is required")
	}

	var req LogHoursRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	doc, err := h.backofficeService.LogHours(c.Context(), id, req.Hours, req.Note)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(doc)
}

// RegisterBackofficeRoutes mounts the six document collections plus the
// participant check-in and volunteer hours endpoints.
func (h *APIHandlers) RegisterBackofficeRoutes(app *fiber.App) {
	for _, name := range []string{
		services.CollectionParticipants,
		services.CollectionVolunteers,
		services.CollectionBooths,
		services.CollectionVendors,
		services.CollectionExpenses,
		services.CollectionFeedback,
	} {
		ch := h.collection(name)

		g := app.Group("/" + name)
		g.Get("/", ch.List)
		g.Post("/", ch.Create)
		g.Get("/:id", ch.Get)
		g.Patch("/:id", ch.Update)
		g.Delete("/:id", ch.Delete)
	}

	app.Post("/participants/:id/check-in", h.CheckInParticipant)
	app.Post("/volunteers/:id/hours", h.LogVolunteerHours)
}
