package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/samandartukhtayev/user-registry/config"
	"github.com/samandartukhtayev/user-registry/logger"
	"github.com/samandartukhtayev/user-registry/models"
	"github.com/samandartukhtayev/user-registry/service"
)

// allowedMethods is advertised on 405 responses for the users collection.
var allowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// UserHandler binds the user service to the /users collection.
type UserHandler struct {
	users     *service.UserService
	errorMode string
}

// NewUserHandler creates a new UserHandler. An empty errorMode means compat.
func NewUserHandler(users *service.UserService, errorMode string) *UserHandler {
	if errorMode == "" {
		errorMode = config.ErrorModeCompat
	}
	return &UserHandler{users: users, errorMode: errorMode}
}

// Routes registers the four operations on r, which is mounted at /users.
func (h *UserHandler) Routes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)
	r.Put("/", h.HandleUpdate)
	r.Delete("/", h.HandleDelete)
	r.MethodNotAllowed(HandleMethodNotAllowed)
}

// HandleList responds with every stored user.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, users)
}

// HandleCreate stores the user in the request body and responds 201.
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, service.OpCreate)
	if !ok {
		return
	}

	user, err := h.users.Create(r.Context(), p)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, user)
}

// HandleUpdate replaces the user identified by the body id.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, service.OpUpdate)
	if !ok {
		return
	}

	user, err := h.users.Update(r.Context(), p)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

// HandleDelete removes the user identified by the body id and responds 204.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, service.OpDelete)
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), p); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMethodNotAllowed rejects methods outside GET, POST, PUT and DELETE.
func HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s Not Allowed", r.Method))
}

// decode reads the payload for op. A malformed body is answered like any
// other failure of op.
func (h *UserHandler) decode(w http.ResponseWriter, r *http.Request, op service.Op) (service.UserPayload, bool) {
	var p service.UserPayload
	if err := readJSON(w, r, &p); err != nil {
		e := service.NewError(op, fmt.Errorf("%w: decode body: %w", models.ErrValidation, err))
		logger.From(r.Context()).Warn("malformed user payload", logger.Op(string(op)), logger.Err(err))
		h.writeFailure(w, r, e)
		return service.UserPayload{}, false
	}
	return p, true
}

func (h *UserHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		writeError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	writeError(w, r, h.statusFor(svcErr), svcErr.Message)
}

func (h *UserHandler) statusFor(e *service.Error) int {
	if h.errorMode != config.ErrorModeDetailed {
		return http.StatusInternalServerError
	}

	switch e.Kind() {
	case models.ErrValidation:
		return http.StatusBadRequest
	case models.ErrNotFound:
		return http.StatusNotFound
	case models.ErrConstraintViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
