package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/cutout/internal/analysis"
	"github.com/MeKo-Tech/cutout/internal/composite"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
	"github.com/MeKo-Tech/cutout/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// modelsHandler returns the capability table.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pipeline == nil {
		s.writeErrorResponse(w, r, "Pipeline not initialized", http.StatusServiceUnavailable)
		return
	}
	st := s.pipeline.Status()
	resp := ModelsResponse{
		ModelsDir: st.ModelsDir,
		Quality:   st.Quality,
		Backends:  st.Backends,
		Count:     len(st.Backends),
	}
	for _, c := range st.Backends {
		if c.Available {
			resp.Available++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// removeHandler cuts out the uploaded image. The response is the encoded
// image, or JSON with a base64 PNG when format=json.
func (s *Server) removeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pipeline == nil {
		s.writeErrorResponse(w, r, "Pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	img, settings, format, err := s.parseRemoveRequest(w, r)
	if err != nil {
		requestsTotal.WithLabelValues("remove", "error").Inc()
		s.writeRequestError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.Process(ctx, img, settings, nil)
	if err != nil {
		requestsTotal.WithLabelValues("remove", "error").Inc()
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.writeErrorResponse(w, r, fmt.Sprintf("Processing failed: %v", err), status)
		return
	}
	recordResult("remove", res, time.Since(start))

	w.Header().Set("X-Cutout-Backend", res.Backend)
	w.Header().Set("X-Cutout-Strategy", res.Strategy)
	if res.Degraded {
		w.Header().Set("X-Cutout-Degraded", "true")
	}

	switch format {
	case "json":
		var buf bytes.Buffer
		if err := utils.EncodeImage(&buf, res.Image, utils.EncodeOptions{Format: utils.FormatPNG}); err != nil {
			s.writeErrorResponse(w, r, "Failed to encode image", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, RemoveResponse{
			Success:         true,
			RequestID:       requestIDFrom(r.Context()),
			Image:           base64.StdEncoding.EncodeToString(buf.Bytes()),
			Width:           res.Width,
			Height:          res.Height,
			Backend:         res.Backend,
			Strategy:        res.Strategy,
			Degraded:        res.Degraded,
			ForegroundRatio: res.ForegroundRatio(),
			Attempts:        res.Attempts,
			Timings:         res.Timings,
		})
	default:
		of, _ := utils.ParseOutputFormat(format)
		opts := utils.EncodeOptions{Format: of, JPEGQuality: 90, Matte: matte(settings)}
		if of == utils.FormatJPEG {
			w.Header().Set("Content-Type", "image/jpeg")
		} else {
			w.Header().Set("Content-Type", "image/png")
		}
		if err := utils.EncodeImage(w, res.Image, opts); err != nil {
			slog.Error("Failed to write image response", "error", err, "request_id", requestIDFrom(r.Context()))
		}
	}
}

func (s *Server) parseRemoveRequest(w http.ResponseWriter, r *http.Request) (image.Image, pipeline.Settings, string, error) {
	img, err := s.parseUpload(w, r, "image")
	if err != nil {
		return nil, pipeline.Settings{}, "", err
	}
	req, err := settingsFromForm(r)
	if err != nil {
		return nil, pipeline.Settings{}, "", badRequest("%v", err)
	}
	format := strings.ToLower(req.Format)
	if format != "json" {
		if _, err := utils.ParseOutputFormat(format); err != nil {
			return nil, pipeline.Settings{}, "", badRequest("%v", err)
		}
	}
	settings, err := req.apply(s.defaults)
	if err != nil {
		return nil, pipeline.Settings{}, "", badRequest("Invalid settings: %v", err)
	}
	bg, err := optionalUpload(r, "bg_image")
	if err != nil {
		return nil, pipeline.Settings{}, "", err
	}
	settings.BackgroundImageData = bg
	return img, settings, format, nil
}

// analyzeHandler reports complexity and quality metrics without segmenting.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	img, err := s.parseUpload(w, r, "image")
	if err != nil {
		requestsTotal.WithLabelValues("analyze", "error").Inc()
		s.writeRequestError(w, r, err)
		return
	}
	b := img.Bounds()
	requestsTotal.WithLabelValues("analyze", "success").Inc()
	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Success:    true,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Complexity: analysis.AnalyzeComplexity(img),
		Quality:    analysis.AssessQuality(img),
	})
}

func (s *Server) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeoutSec > 0 {
		return context.WithTimeout(parent, time.Duration(s.timeoutSec)*time.Second)
	}
	return context.WithCancel(parent)
}

func matte(s pipeline.Settings) color.Color {
	if c, err := composite.ParseColor(s.BackgroundColor); err == nil {
		return c
	}
	return color.White
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeRequestError(w http.ResponseWriter, r *http.Request, err error) {
	var re *requestError
	if errors.As(err, &re) {
		s.writeErrorResponse(w, r, re.msg, re.status)
		return
	}
	s.writeErrorResponse(w, r, err.Error(), http.StatusBadRequest)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		RequestID: requestIDFrom(r.Context()),
	})
}
