// Package httpapi exposes the snip workflow to the overlay over loopback HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"screen-snip/src/encoder"
	"screen-snip/src/events"
	"screen-snip/src/snip"
	"screen-snip/src/window"
)

const maxBodyBytes = 1 << 20

// Controller is the snip workflow served by the API.
type Controller interface {
	Start(ctx context.Context) error
	Query() (encoder.Image, error)
	Finish(sel snip.Selection) error
	Cancel() error
	Log(message string)
	CaptureFullscreen() (encoder.Image, error)
	Status() snip.Status
}

// WindowLister reports the windows known to the window manager.
type WindowLister interface {
	Windows() []window.State
}

// ImageResponse is the JSON form of an encoded image.
type ImageResponse struct {
	DataURL string `json:"dataUrl"`
	MIME    string `json:"mime"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type logRequest struct {
	Message string `json:"message"`
}

// Server routes overlay requests to a Controller.
type Server struct {
	ctrl    Controller
	bus     *events.Bus
	windows WindowLister
	router  *chi.Mux
}

// New builds the router. bus may be nil, in which case /events is unavailable.
func New(ctrl Controller, bus *events.Bus) *Server {
	s := &Server{ctrl: ctrl, bus: bus}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/snip", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Get("/image", s.handleImage)
		r.Post("/finish", s.handleFinish)
		r.Post("/cancel", s.handleCancel)
	})
	r.Post("/log", s.handleLog)
	r.Get("/capture", s.handleCapture)
	r.Get("/status", s.handleStatus)
	r.Get("/events", s.handleEvents)
	r.Get("/windows", s.handleWindows)

	s.router = r
	return s
}

// SetWindows lets a display layer that (re)connects read current window state
// from GET /windows before following the event stream.
func (s *Server) SetWindows(w WindowLister) { s.windows = w }

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("httpapi: listening on %s", lis.Addr())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Start(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImage serves the live capture; ?format=png returns raw PNG bytes.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.ctrl.Query()
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "png" {
		w.Header().Set("Content-Type", encoder.MIMEType)
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(img.Bytes)
		return
	}
	writeJSON(w, http.StatusOK, toImageResponse(img))
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	var sel snip.Selection
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&sel); err != nil {
		writeError(w, fmt.Errorf("%w: %v", snip.ErrInvalidSelection, err))
		return
	}
	if err := s.ctrl.Finish(sel); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Cancel(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLog accepts {"message": "..."} or a plain-text body.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	msg := string(body)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req logRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		msg = req.Message
	}
	s.ctrl.Log(msg)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	img, err := s.ctrl.CaptureFullscreen()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toImageResponse(img))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	if s.windows == nil {
		http.Error(w, "window state unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.windows.Windows())
}

// handleEvents streams bus events for ?target= as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		http.Error(w, "target required", http.StatusBadRequest)
		return
	}
	if s.bus == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch, unsubscribe, err := s.bus.Subscribe(target, 8)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				log.Printf("httpapi: marshal event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func toImageResponse(img encoder.Image) ImageResponse {
	return ImageResponse{DataURL: img.DataURL, MIME: img.MIME, Width: img.Width, Height: img.Height}
}

// statusFor maps workflow errors to HTTP status codes and a short kind.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, snip.ErrNoActiveSnip):
		return http.StatusConflict, "no_active_snip"
	case errors.Is(err, snip.ErrInvalidSelection):
		return http.StatusUnprocessableEntity, "invalid_selection"
	case errors.Is(err, snip.ErrSelectionTooSmall):
		return http.StatusUnprocessableEntity, "selection_too_small"
	case errors.Is(err, snip.ErrWindowOp):
		return http.StatusBadGateway, "window_op"
	case errors.Is(err, snip.ErrCapture):
		return http.StatusInternalServerError, "capture"
	case errors.Is(err, snip.ErrEncode):
		return http.StatusInternalServerError, "encode"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("httpapi: %s: %v", kind, err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}
