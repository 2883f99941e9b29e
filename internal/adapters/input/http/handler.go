package http

import (
	"bufio"
	"context"
	"strings"

	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/input"
	"lingua-stream/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HTTPHandler struct - Primary/Driving adapter for HTTP
type HTTPHandler struct {
	registry  input.ModelRegistry
	library   input.ModelLibrary
	session   input.InferenceSession
	db        *gorm.DB
	validator validator.Validator
}

// New func - Creates new HTTP handler. db may be nil when the ledger is kept in memory.
func New(registry input.ModelRegistry, library input.ModelLibrary, session input.InferenceSession, db *gorm.DB) *HTTPHandler {
	return &HTTPHandler{
		registry:  registry,
		library:   library,
		session:   session,
		db:        db,
		validator: validator.New(),
	}
}

// Register func - Mounts the API routes on router
func (hdl *HTTPHandler) Register(router fiber.Router) {
	router.Get("/models", hdl.ListModels)
	router.Get("/models/downloads", hdl.DownloadHistory)
	router.Post("/models/:id/download", hdl.DownloadModel)
	router.Delete("/models/:id", hdl.DeleteModel)
	router.Post("/chat", hdl.Chat)
	router.Delete("/chat/:conversation_id", hdl.CancelChat)
	router.Post("/session/release", hdl.ReleaseSession)
}

// HealthCheck func
func (hdl *HTTPHandler) HealthCheck(c *fiber.Ctx) error {
	health := HealthResponse{
		Ledger:      "memory",
		ModelLoaded: hdl.session.CurrentModelID(),
		Ready:       hdl.session.IsReady(),
	}
	if hdl.db != nil {
		sqlDB, err := hdl.db.DB()
		if err != nil {
			logrus.Errorln(err)
			return c.Status(fiber.StatusInternalServerError).JSON(ResponseBody{Status: InternalServerError})
		}
		if err := sqlDB.Ping(); err != nil {
			logrus.Errorln(err)
			return c.Status(fiber.StatusInternalServerError).JSON(ResponseBody{Status: InternalServerError})
		}
		health.Ledger = hdl.db.Dialector.Name()
	}
	return c.Status(fiber.StatusOK).JSON(ResponseBody{Status: Success, Data: health})
}

// ListModels godoc
// @Summary List models
// @Description Local catalog entries followed by the remote provider's models
// @Tags MODELS
// @Accept application/json
// @Success 200 {object} map[string]interface{}
// @Router /v1/api/models [get]
// @Produce json
// @param include_local query bool false "include on-device models (default true)"
// @param api_url query string false "remote base url"
func (hdl *HTTPHandler) ListModels(c *fiber.Ctx) error {
	var query ListModelsQuery
	if err := c.QueryParser(&query); err != nil {
		logrus.Errorln(err)
		return c.Status(fiber.StatusBadRequest).JSON(ResponseBody{Status: BadRequest})
	}
	if err := hdl.validator.ValidateStruct(query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(badRequest(err))
	}
	includeLocal := query.IncludeLocal == nil || *query.IncludeLocal
	settings := domain.RemoteSettings{
		APIKey: bearerToken(c.Get(fiber.HeaderAuthorization)),
		APIURL: query.APIURL,
	}

	models, err := hdl.registry.ListAll(c.UserContext(), settings, includeLocal)
	if err != nil {
		return c.Status(statusFor(err)).JSON(errorBody(err))
	}
	if models == nil {
		models = make([]domain.ModelDescriptor, 0)
	}
	return c.Status(fiber.StatusOK).JSON(ResponseBody{Status: Success, Data: models})
}

// DownloadModel godoc
// @Summary Download a model
// @Description Streams download progress as server-sent events
// @Tags MODELS
// @Success 200 {string} string "text/event-stream"
// @Router /v1/api/models/{id}/download [post]
// @Produce text/event-stream
// @param id path string true "catalog id, with or without the local: prefix"
func (hdl *HTTPHandler) DownloadModel(c *fiber.Ctx) error {
	id, _ := domain.ParseModelID(c.Params("id"))
	if !hdl.inCatalog(id) {
		return c.Status(fiber.StatusNotFound).JSON(errorBody(domain.ErrUnknownModel))
	}

	ctx, cancel := context.WithCancel(context.Background())
	queue := newEventQueue()
	go func() {
		var last domain.DownloadProgress
		err := hdl.library.Download(ctx, id, func(p domain.DownloadProgress) {
			last = p
			queue.push(eventProgress, p)
		})
		if err != nil {
			queue.push(eventError, newErrorEvent(err))
			return
		}
		queue.push(eventComplete, last)
	}()

	setStreamHeaders(c)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer queue.close()
		defer cancel()
		for ev := range queue.events {
			if err := writeEvent(w, ev); err != nil {
				logrus.Warnf("Client left download of %s: %v", id, err)
				return
			}
			if ev.terminal() {
				return
			}
		}
	})
	return nil
}

// DeleteModel godoc
// @Summary Delete a model file
// @Tags MODELS
// @Accept application/json
// @Success 200 {object} map[string]interface{}
// @Router /v1/api/models/{id} [delete]
// @Produce json
// @param id path string true "catalog id"
func (hdl *HTTPHandler) DeleteModel(c *fiber.Ctx) error {
	id, _ := domain.ParseModelID(c.Params("id"))
	if err := hdl.library.Delete(id); err != nil {
		logrus.Errorln(err)
		return c.Status(statusFor(err)).JSON(errorBody(err))
	}
	return c.Status(fiber.StatusOK).JSON(ResponseBody{Status: Success, Data: domain.LocalModelID(id)})
}

// DownloadHistory godoc
// @Summary Download ledger
// @Tags MODELS
// @Accept application/json
// @Success 200 {object} map[string]interface{}
// @Router /v1/api/models/downloads [get]
// @Produce json
// @param model_id query string false "catalog id"
// @param status query string false "COMPLETED, FAILED or CANCELLED"
// @param page query int false "page"
// @param limit query int false "limit"
func (hdl *HTTPHandler) DownloadHistory(c *fiber.Ctx) error {
	var query DownloadHistoryQuery
	if err := c.QueryParser(&query); err != nil {
		logrus.Errorln(err)
		return c.Status(fiber.StatusBadRequest).JSON(ResponseBody{Status: BadRequest})
	}
	if err := hdl.validator.ValidateStruct(query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(badRequest(err))
	}

	page, perPage := 1, 20
	if query.Page != nil {
		page = *query.Page
	}
	if query.Limit != nil {
		perPage = *query.Limit
	}
	condition := domain.DownloadQuery{
		ModelID: query.ModelID,
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
	}
	if query.Status != nil {
		status := domain.DownloadStatus(*query.Status)
		condition.Status = &status
	}

	result, err := hdl.library.History(condition)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ResponseBody{Status: InternalServerError})
	}
	records := result.Records
	if records == nil {
		records = make([]domain.DownloadRecord, 0)
	}
	return c.Status(fiber.StatusOK).JSON(ResponseBody{
		Status:      Success,
		Data:        records,
		CurrentPage: &page,
		PerPage:     &perPage,
		TotalItem:   &result.TotalItem,
	})
}

// Chat godoc
// @Summary Chat completion
// @Description Streams tokens as server-sent events unless stream is false
// @Tags CHAT
// @Accept application/json
// @Success 200 {string} string "text/event-stream"
// @Router /v1/api/chat [post]
// @Produce text/event-stream
// @param Chat body ChatRequest true "Chat"
func (hdl *HTTPHandler) Chat(c *fiber.Ctx) error {
	var request ChatRequest
	if err := c.BodyParser(&request); err != nil {
		logrus.Errorln(err)
		return c.Status(fiber.StatusBadRequest).JSON(ResponseBody{Status: BadRequest})
	}
	if err := hdl.validator.ValidateStruct(request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(badRequest(err))
	}
	turn := request.toDomain()

	if !request.streaming() {
		result, err := hdl.registry.CompleteBlocking(c.UserContext(), turn.ModelID, turn.Messages, turn.Settings)
		if err != nil {
			logrus.Errorln(err)
			return c.Status(statusFor(err)).JSON(errorBody(err))
		}
		return c.Status(fiber.StatusOK).JSON(ResponseBody{Status: Success, Data: result})
	}

	queue := newEventQueue()
	// the stream outlives this handler, so it must not hang off the request context
	handle, err := hdl.registry.StartTurn(context.Background(), turn, domain.StreamCallbacks{
		OnToken: func(token string) {
			queue.push(eventToken, TokenEvent{Token: token})
		},
		OnComplete: func(result domain.CompletionResult) {
			queue.push(eventComplete, result)
		},
		OnError: func(err error) {
			queue.push(eventError, newErrorEvent(err))
		},
	})
	if err != nil {
		queue.close()
		logrus.Errorln(err)
		return c.Status(statusFor(err)).JSON(errorBody(err))
	}

	setStreamHeaders(c)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer queue.close()
		for {
			select {
			case ev := <-queue.events:
				if err := writeEvent(w, ev); err != nil {
					logrus.Warnf("Client left stream %s: %v", handle.ID, err)
					handle.Cancel()
					return
				}
				if ev.terminal() {
					return
				}
			case <-handle.Done():
				// callbacks run before the worker exits, so whatever was delivered is queued
				terminal, err := queue.drain(w)
				if err == nil && !terminal {
					_ = writeEvent(w, sseEvent{name: eventCancelled, data: fiber.Map{"conversation_id": turn.ConversationID}})
				}
				return
			}
		}
	})
	return nil
}

// CancelChat godoc
// @Summary Cancel the live turn of a conversation
// @Tags CHAT
// @Accept application/json
// @Success 200 {object} map[string]interface{}
// @Router /v1/api/chat/{conversation_id} [delete]
// @Produce json
// @param conversation_id path string true "conversation id"
func (hdl *HTTPHandler) CancelChat(c *fiber.Ctx) error {
	conversationID := c.Params("conversation_id")
	if err := hdl.registry.CancelTurn(conversationID); err != nil {
		return c.Status(statusFor(err)).JSON(errorBody(err))
	}
	return c.Status(fiber.StatusOK).JSON(ResponseBody{Status: Success, Data: conversationID})
}

// ReleaseSession godoc
// @Summary Release the loaded on-device model
// @Tags CHAT
// @Accept application/json
// @Success 200 {object} map[string]interface{}
// @Router /v1/api/session/release [post]
// @Produce json
func (hdl *HTTPHandler) ReleaseSession(c *fiber.Ctx) error {
	if err := hdl.session.Cleanup(); err != nil {
		logrus.Errorln(err)
		return c.Status(statusFor(err)).JSON(errorBody(err))
	}
	return c.Status(fiber.StatusOK).JSON(ResponseBody{Status: Success})
}

func (hdl *HTTPHandler) inCatalog(id string) bool {
	for _, m := range hdl.library.ListCatalog() {
		if m.ID == domain.LocalModelID(id) {
			return true
		}
	}
	return false
}

func badRequest(err error) ResponseBody {
	return ResponseBody{Status: Status{Code: BadRequest.Code, Message: validator.Messages(err)}}
}

func bearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
