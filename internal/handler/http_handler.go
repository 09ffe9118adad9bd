package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/djrq/queue-service/internal/domain"
	"github.com/djrq/queue-service/internal/service"
	"github.com/djrq/queue-service/pkg/log"
	"github.com/djrq/queue-service/pkg/response"
)

// HTTPHandler handles the REST API for viewers and DJs.
type HTTPHandler struct {
	queues   service.QueueService
	registry service.RegistryService
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(queues service.QueueService, registry service.RegistryService) *HTTPHandler {
	return &HTTPHandler{queues: queues, registry: registry}
}

// RegisterRoutes registers all routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Viewer routes: no license key, handles only.
		api.GET("/handles/:handle", h.ResolveHandle)
		api.GET("/handles/:handle/availability", h.HandleAvailability)
		api.POST("/viewer/requests", h.SubmitByHandle)

		// DJ routes: authorized by license key possession.
		dj := api.Group("/dj")
		dj.Use(RequireLicense())
		{
			dj.POST("/handle", h.RegisterHandle)
			dj.GET("/handle", h.CurrentHandle)
			dj.GET("/position", h.Position)

			dj.GET("/queues/:queue", h.ListQueue)
			dj.POST("/queues/:queue", h.AddRequest)
			dj.DELETE("/queues/:queue", h.DeleteAll)
			dj.PATCH("/queues/:queue/:id", h.UpdateRequest)
			dj.PATCH("/queues/:queue/:id/status", h.UpdateStatus)
			dj.DELETE("/queues/:queue/:id", h.DeleteRequest)
			dj.POST("/queues/:queue/:id/transfer", h.Transfer)
		}
	}

	r.GET("/health", h.HealthCheck)
}

func queueParam(c *gin.Context) (domain.Queue, bool) {
	queue := domain.Queue(c.Param("queue"))
	if !queue.Valid() {
		response.BadRequest(c, "unknown queue: "+c.Param("queue"))
		return "", false
	}
	return queue, true
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return 0, false
	}
	return id, true
}

// SubmitByHandleRequest is a viewer's request submission.
type SubmitByHandleRequest struct {
	Handle   string `json:"handle" binding:"required"`
	Username string `json:"username"`
	Track    string `json:"track" binding:"required"`
}

// SubmitByHandle handles POST /api/v1/viewer/requests
func (h *HTTPHandler) SubmitByHandle(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req SubmitByHandleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	submission, err := h.queues.SubmitByHandle(ctx, req.Handle, req.Username, req.Track)
	if err != nil {
		if errors.Is(err, domain.ErrTenantUnresolved) {
			response.NotFound(c, "DJ_NOT_FOUND", "no dj registered for that handle")
			return
		}
		l.Error().Err(err).Str(log.FieldHandle, req.Handle).Msg("submit by handle failed")
		response.InternalError(c, "failed to submit request")
		return
	}

	response.Created(c, submission)
}

// ResolveHandle handles GET /api/v1/handles/:handle
func (h *HTTPHandler) ResolveHandle(c *gin.Context) {
	ctx := c.Request.Context()

	resolved, err := h.registry.Resolve(ctx, c.Param("handle"))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("handle resolution failed")
		response.InternalError(c, "failed to resolve handle")
		return
	}
	if resolved == nil {
		// Unregistered is an expected outcome, not a transport failure.
		response.NotFound(c, "DJ_NOT_FOUND", "no dj registered for that handle")
		return
	}

	response.Success(c, resolved)
}

// HandleAvailability handles GET /api/v1/handles/:handle/availability
func (h *HTTPHandler) HandleAvailability(c *gin.Context) {
	ctx := c.Request.Context()

	available, err := h.registry.IsAvailable(ctx, c.Param("handle"))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("availability check failed")
		response.InternalError(c, "failed to check handle availability")
		return
	}

	response.Success(c, gin.H{"available": available})
}

// RegisterHandleRequest registers or replaces a DJ's handle.
type RegisterHandleRequest struct {
	Handle      string `json:"handle" binding:"required"`
	DisplayName string `json:"display_name"`
}

// RegisterHandle handles POST /api/v1/dj/handle
func (h *HTTPHandler) RegisterHandle(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req RegisterHandleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.registry.Register(ctx, req.Handle, licenseFrom(c), req.DisplayName); err != nil {
		if errors.Is(err, domain.ErrInvalidHandle) {
			response.Error(c, http.StatusUnprocessableEntity, "INVALID_HANDLE", err.Error())
			return
		}
		l.Error().Err(err).Str(log.FieldHandle, req.Handle).Msg("handle registration failed")
		response.InternalError(c, "failed to register handle")
		return
	}

	response.Success(c, gin.H{"handle": req.Handle})
}

// CurrentHandle handles GET /api/v1/dj/handle
func (h *HTTPHandler) CurrentHandle(c *gin.Context) {
	ctx := c.Request.Context()

	handle, err := h.registry.CurrentHandle(ctx, licenseFrom(c))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("current handle read failed")
		response.InternalError(c, "failed to read current handle")
		return
	}

	response.Success(c, gin.H{"handle": handle})
}

// Position handles GET /api/v1/dj/position
func (h *HTTPHandler) Position(c *gin.Context) {
	ctx := c.Request.Context()

	position, err := h.queues.Position(ctx, licenseFrom(c))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("position read failed")
		response.InternalError(c, "failed to estimate position")
		return
	}

	response.Success(c, gin.H{"position": position})
}

// ListQueue handles GET /api/v1/dj/queues/:queue
func (h *HTTPHandler) ListQueue(c *gin.Context) {
	ctx := c.Request.Context()

	queue, ok := queueParam(c)
	if !ok {
		return
	}

	requests, counts, err := h.queues.List(ctx, licenseFrom(c), queue)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldQueue, string(queue)).Msg("queue read failed")
		response.InternalError(c, "failed to read queue")
		return
	}

	response.Success(c, gin.H{"requests": requests, "counts": counts})
}

// AddRequestBody is a DJ's manual entry.
type AddRequestBody struct {
	Username string `json:"username"`
	Track    string `json:"track" binding:"required"`
	Notes    string `json:"notes"`
}

// AddRequest handles POST /api/v1/dj/queues/:queue
func (h *HTTPHandler) AddRequest(c *gin.Context) {
	ctx := c.Request.Context()

	queue, ok := queueParam(c)
	if !ok {
		return
	}

	var body AddRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	id, err := h.queues.Add(ctx, licenseFrom(c), queue, domain.NewRequest{
		Username: body.Username,
		Track:    body.Track,
		Notes:    body.Notes,
		Platform: domain.PlatformManual,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldQueue, string(queue)).Msg("add request failed")
		response.InternalError(c, "failed to add request")
		return
	}

	response.Created(c, gin.H{"id": id})
}

// UpdateStatusBody toggles the played flag.
type UpdateStatusBody struct {
	Played *bool `json:"played" binding:"required"`
}

// UpdateStatus handles PATCH /api/v1/dj/queues/:queue/:id/status
func (h *HTTPHandler) UpdateStatus(c *gin.Context) {
	ctx := c.Request.Context()

	queue, ok := queueParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	var body UpdateStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.queues.UpdateStatus(ctx, licenseFrom(c), queue, id, *body.Played); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64(log.FieldEntryID, id).Msg("status update failed")
		response.InternalError(c, "failed to update status")
		return
	}

	response.Success(c, gin.H{"id": id, "played": *body.Played})
}

// UpdateRequest handles PATCH /api/v1/dj/queues/:queue/:id
func (h *HTTPHandler) UpdateRequest(c *gin.Context) {
	ctx := c.Request.Context()

	queue, ok := queueParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	var upd domain.RequestUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.queues.UpdateFields(ctx, licenseFrom(c), queue, id, upd); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64(log.FieldEntryID, id).Msg("request update failed")
		response.InternalError(c, "failed to update request")
		return
	}

	response.Success(c, gin.H{"id": id})
}

// DeleteRequest handles DELETE /api/v1/dj/queues/:queue/:id
func (h *HTTPHandler) DeleteRequest(c *gin.Context) {
	ctx := c.Request.Context()

	queue, ok := queueParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.queues.Delete(ctx, licenseFrom(c), queue, id); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64(log.FieldEntryID, id).Msg("delete failed")
		response.InternalError(c, "failed to delete request")
		return
	}

	response.Success(c, gin.H{"id": id})
}

// DeleteAll handles DELETE /api/v1/dj/queues/:queue
func (h *HTTPHandler) DeleteAll(c *gin.Context) {
	ctx := c.Request.Context()

	queue, ok := queueParam(c)
	if !ok {
		return
	}

	if err := h.queues.DeleteAll(ctx, licenseFrom(c), queue); err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldQueue, string(queue)).Msg("delete all failed")
		response.InternalError(c, "failed to clear queue")
		return
	}

	response.Success(c, gin.H{"queue": queue})
}

// Transfer handles POST /api/v1/dj/queues/:queue/:id/transfer
// Moves the entry from :queue to the other queue, preserving its id.
func (h *HTTPHandler) Transfer(c *gin.Context) {
	ctx := c.Request.Context()

	from, ok := queueParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	to := domain.QueueStaged
	if from == domain.QueueStaged {
		to = domain.QueueActive
	}

	if err := h.queues.Transfer(ctx, licenseFrom(c), id, from, to); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(c, "REQUEST_NOT_FOUND", "request not found")
			return
		}
		log.Ctx(ctx).Error().Err(err).Int64(log.FieldEntryID, id).Msg("transfer failed")
		response.InternalError(c, "failed to transfer request")
		return
	}

	response.Success(c, gin.H{"id": id, "from": from, "to": to})
}

// HealthCheck handles GET /health
func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
