// internal/backend/handler.go
package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"libradesk/internal/records"
	"libradesk/internal/view"
)

const maxBody = 1 << 20

// Mountable is a Resource of any entity type.
type Mountable interface {
	Entity() string
	mount(r chi.Router, logger *slog.Logger)
}

// NewRouter serves every resource under /api/v1/{entity}.
func NewRouter(logger *slog.Logger, resources ...Mountable) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/api/v1", func(r chi.Router) {
		for _, res := range resources {
			res.mount(r, logger)
		}
	})
	return r
}

func (res *Resource[T]) mount(r chi.Router, logger *slog.Logger) {
	h := &handler[T]{res: res, logger: logger.With("entity", res.Entity())}
	r.Route("/"+res.Entity(), func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

type handler[T Record[T]] struct {
	res    *Resource[T]
	logger *slog.Logger
}

func (h *handler[T]) list(w http.ResponseWriter, r *http.Request) {
	spec, err := view.ParseValues(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.res.List(r.Context(), spec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler[T]) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.res.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler[T]) create(w http.ResponseWriter, r *http.Request) {
	h.withPatch(w, r, func(ctx context.Context, p records.Patch) (T, error) {
		return h.res.Create(ctx, p)
	}, http.StatusCreated)
}

func (h *handler[T]) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.withPatch(w, r, func(ctx context.Context, p records.Patch) (T, error) {
		return h.res.Update(ctx, id, p)
	}, http.StatusOK)
}

func (h *handler[T]) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.res.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler[T]) withPatch(w http.ResponseWriter, r *http.Request, fn func(context.Context, records.Patch) (T, error), status int) {
	var patch records.Patch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid JSON body: " + err.Error()})
		return
	}
	if patch == nil {
		patch = records.Patch{}
	}
	rec, err := fn(r.Context(), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, rec)
}

type errorBody struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// fail maps the error taxonomy onto status codes. Anything unrecognised is
// a server fault and is logged.
func (h *handler[T]) fail(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Message: err.Error()}
	var fe records.FieldErrors
	if errors.As(err, &fe) {
		body.Fields = fe
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, records.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, records.ErrDuplicateID):
		status = http.StatusConflict
	case errors.Is(err, records.ErrInvalidValue),
		errors.Is(err, records.ErrUnknownField),
		errors.Is(err, view.ErrInvalidSpec):
		status = http.StatusUnprocessableEntity
	default:
		h.logger.Error("backend: request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
		body.Message = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
