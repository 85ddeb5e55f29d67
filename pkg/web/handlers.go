// Package web provides HTTP handlers and REST API endpoints for the approval workflow API.
package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eventiq/eventiq/pkg/engine"
	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// HeaderActor and HeaderActorRoles carry the caller identity resolved by
// whatever sits in front of the API. The API trusts them as-is.
const (
	HeaderActor      = "X-Actor"
	HeaderActorRoles = "X-Actor-Roles"
)

type APIHandlers struct {
	templateService   *services.Template
	requestService    *services.Request
	backofficeService *services.Backoffice
	identity          *engine.StaticIdentityProvider
	validator         *validator.Validate
}

func NewAPIHandlers(
	templateService *services.Template,
	requestService *services.Request,
	backofficeService *services.Backoffice,
	identity *engine.StaticIdentityProvider,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		templateService:   templateService,
		requestService:    requestService,
		backofficeService: backofficeService,
		identity:          identity,
		validator:         validator,
	}
}

// actor resolves the acting user: an explicit body field wins, the X-Actor
// header is the fallback. Roles carried in X-Actor-Roles are granted into
// the identity provider so the engine's authorization checks see them.
func (h *APIHandlers) actor(c fiber.Ctx, bodyActor string) string {
	actor := bodyActor
	if actor == "" {
		actor = c.Get(HeaderActor)
	}

	if actor == "" {
		return ""
	}

	if roles := c.Get(HeaderActorRoles); roles != "" {
		for _, role := range strings.Split(roles, ",") {
			if role = strings.TrimSpace(role); role != "" {
				h.identity.Grant(actor, role)
			}
		}
	}

	return actor
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.templateService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Eventiq API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Eventiq API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// --- Requests ---

func (h *APIHandlers) SubmitRequest(c fiber.Ctx) error {
	var req SubmitRequestRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	req.Requester = h.actor(c, req.Requester)

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.Requester == "" {
		return badRequest(c, "Requester is required, in the body or the X-Actor header")
	}

	created, err := h.requestService.Submit(c.Context(), services.SubmitRequest{
		TemplateID:  req.TemplateID,
		Requester:   req.Requester,
		Title:       req.Title,
		Description: req.Description,
		Priority:    models.RequestPriority(req.Priority),
		Payload:     req.Payload,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetRequests(c fiber.Ctx) error {
	req, err := h.parseListRequestsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.requestService.List(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"requests":      result.Requests,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListRequestsRequest parses and validates query parameters for listing requests.
func (h *APIHandlers) parseListRequestsRequest(c fiber.Ctx) (*services.ListRequestsRequest, error) {
	req := &services.ListRequestsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.Requester = c.Query("requester")
	req.Status = c.Query("status")
	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetRequest(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	detail, err := h.requestService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) DecideRequest(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	var req DecideRequestRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	req.Actor = h.actor(c, req.Actor)

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.Actor == "" {
		return badRequest(c, "Actor is required, in the body or the X-Actor header")
	}

	updated, err := h.requestService.Decide(c.Context(), id, services.DecideRequest{
		Level:      req.Level,
		Decision:   models.Decision(req.Decision),
		Actor:      req.Actor,
		Comment:    req.Comment,
		DelegateTo: req.DelegateTo,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) ResubmitRequest(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	var req ResubmitRequestRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	actor := h.actor(c, req.Actor)
	if actor == "" {
		return badRequest(c, "Actor is required, in the body or the X-Actor header")
	}

	updated, err := h.requestService.Resubmit(c.Context(), id, actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) CancelRequest(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	var req CancelRequestRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	actor := h.actor(c, req.Actor)
	if actor == "" {
		return badRequest(c, "Actor is required, in the body or the X-Actor header")
	}

	updated, err := h.requestService.Cancel(c.Context(), id, actor, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) GetRequestHistory(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	events, err := h.requestService.History(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"history": events})
}

// --- Templates ---

func (h *APIHandlers) CreateTemplate(c fiber.Ctx) error {
	var req CreateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	template := &models.WorkflowTemplate{
		Name:                   req.Name,
		Description:            req.Description,
		Category:               req.Category,
		TemplateGroupID:        req.TemplateGroupID,
		SLAHours:               req.SLAHours,
		Levels:                 req.Levels,
		AutoApproval:           req.AutoApproval,
		ReminderOffsetMinutes:  req.ReminderOffsetMinutes,
		EscalationAfterMinutes: req.EscalationAfterMinutes,
		PayloadSchema:          req.PayloadSchema,
	}

	created, err := h.templateService.Create(c.Context(), template)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	req := services.ListTemplatesRequest{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		GroupID:  c.Query("group_id"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}

		req.Offset = offset
	}

	templates, err := h.templateService.List(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"templates": templates})
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Template ID is required")
	}

	template, err := h.templateService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) UpdateTemplate(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Template ID is required")
	}

	var req UpdateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.templateService.Update(c.Context(), id, &models.WorkflowTemplate{
		Name:                   req.Name,
		Description:            req.Description,
		Category:               req.Category,
		SLAHours:               req.SLAHours,
		Levels:                 req.Levels,
		AutoApproval:           req.AutoApproval,
		ReminderOffsetMinutes:  req.ReminderOffsetMinutes,
		EscalationAfterMinutes: req.EscalationAfterMinutes,
		PayloadSchema:          req.PayloadSchema,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteTemplate(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Template ID is required")
	}

	if err := h.templateService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishTemplate(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Template ID is required")
	}

	published, err := h.templateService.Publish(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) CreateDraftFromPublished(c fiber.Ctx) error {
	groupID := c.Params("groupId")
	if groupID == "" {
		return badRequest(c, "Template group ID is required")
	}

	draft, err := h.templateService.CreateDraftFromPublished(c.Context(), groupID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(draft)
}
