package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "vidgrab/internal/errors"
	"vidgrab/internal/services"
)

// PageGrabber saves every video of a page.
type PageGrabber interface {
	GrabPage(ctx context.Context, pageURL string) (services.PageResult, error)
}

// GrabRequest is the body of POST /api/grab.
type GrabRequest struct {
	PageURL string `json:"pageUrl" validate:"required,url,max=2048"`
}

// GrabItem is the result for one video.
type GrabItem struct {
	SourceURL string `json:"sourceUrl,omitempty"`
	Saved     bool   `json:"saved"`
	Strategy  string `json:"strategy,omitempty"`
	Path      string `json:"path,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
	Counted   bool   `json:"counted"`
	Count     int    `json:"count,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GrabResponse is the reply of POST /api/grab.
type GrabResponse struct {
	Success bool       `json:"success"`
	PageURL string     `json:"pageUrl"`
	Videos  int        `json:"videos"`
	Results []GrabItem `json:"results"`
	Error   string     `json:"error,omitempty"`
}

// GrabHandler exposes page grabbing over HTTP. Failure notices are pushed
// to websocket clients by the pipeline, not returned here.
type GrabHandler struct {
	grabber  PageGrabber
	validate *validator.Validate
	logger   *slog.Logger
}

// NewGrabHandler creates the handler.
func NewGrabHandler(grabber PageGrabber, logger *slog.Logger) *GrabHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrabHandler{
		grabber:  grabber,
		validate: validator.New(),
		logger:   logger.With(slog.String("handler", "grab")),
	}
}

// Post handles POST /api/grab
func (h *GrabHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req GrabRequest
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxMessageBytes), &req); err != nil {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.ValidationFailed(err)))
		return
	}

	res, err := h.grabber.GrabPage(r.Context(), req.PageURL)
	body := GrabResponse{
		Success: err == nil,
		PageURL: res.PageURL,
		Videos:  res.Videos,
		Results: make([]GrabItem, 0, len(res.Results)),
	}
	for _, gr := range res.Results {
		item := GrabItem{
			SourceURL: gr.SourceURL,
			Saved:     gr.Outcome.Saved,
			Strategy:  gr.Outcome.Strategy,
			Path:      gr.Outcome.Path,
			Bytes:     gr.Outcome.Bytes,
			Counted:   gr.Decision.Counted,
			Count:     gr.Count,
		}
		if gr.Outcome.Err != nil {
			item.Error = gr.Outcome.Err.Error()
		}
		body.Results = append(body.Results, item)
	}

	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrAuthorizationRequired):
		render.Status(r, http.StatusForbidden)
		body.Error = err.Error()
	case apperrors.IsStorage(err):
		h.logger.ErrorContext(r.Context(), "grab failed on storage", slog.String("error", err.Error()))
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.StorageUnavailable(err)))
		return
	default:
		h.logger.WarnContext(r.Context(), "grab failed", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadGateway)
		body.Error = err.Error()
	}
	render.JSON(w, r, body)
}
