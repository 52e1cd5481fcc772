package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// SettingsRequest carries per-request overrides. Nil fields keep the server
// defaults. The same shape is used for form fields and websocket messages.
type SettingsRequest struct {
	BackgroundMode   *string  `json:"bg_mode,omitempty"`
	BackgroundColor  *string  `json:"bg_color,omitempty"`
	Quality          *string  `json:"bg_quality,omitempty"`
	EnhanceDetails   *bool    `json:"enhance_details,omitempty"`
	EnhancementLevel *string  `json:"enhancement_level,omitempty"`
	HairRefinement   *bool    `json:"hair_refinement,omitempty"`
	EdgeRefinement   *float64 `json:"edge_refinement,omitempty"`
	Feathering       *float64 `json:"feathering,omitempty"`
	PreserveHoles    *bool    `json:"preserve_holes,omitempty"`
	ForceBinaryAlpha *bool    `json:"force_binary_alpha,omitempty"`
	MaxDimension     *int     `json:"max_dimension,omitempty"`
	Format           string   `json:"format,omitempty"`
}

// apply overlays the request on base and validates the result. Background
// images are never read from server paths named by a client.
func (r SettingsRequest) apply(base pipeline.Settings) (pipeline.Settings, error) {
	s := base
	s.BackgroundImage = ""
	setIf(&s.BackgroundMode, r.BackgroundMode)
	setIf(&s.BackgroundColor, r.BackgroundColor)
	setIf(&s.Quality, r.Quality)
	setIf(&s.EnhanceDetails, r.EnhanceDetails)
	setIf(&s.EnhancementLevel, r.EnhancementLevel)
	setIf(&s.HairRefinement, r.HairRefinement)
	setIf(&s.EdgeRefinement, r.EdgeRefinement)
	setIf(&s.Feathering, r.Feathering)
	setIf(&s.PreserveHoles, r.PreserveHoles)
	setIf(&s.ForceBinaryAlpha, r.ForceBinaryAlpha)
	setIf(&s.MaxDimension, r.MaxDimension)
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// settingsFromForm reads overrides from multipart or query values.
func settingsFromForm(r *http.Request) (SettingsRequest, error) {
	var (
		req SettingsRequest
		err error
	)
	str := func(key string) *string {
		if v := r.FormValue(key); v != "" {
			return &v
		}
		return nil
	}
	req.BackgroundMode = str("bg_mode")
	req.BackgroundColor = str("bg_color")
	req.Quality = str("bg_quality")
	if req.Quality == nil {
		req.Quality = str("quality")
	}
	req.EnhancementLevel = str("enhancement_level")
	req.Format = r.FormValue("format")

	bools := map[string]**bool{
		"enhance_details":    &req.EnhanceDetails,
		"hair_refinement":    &req.HairRefinement,
		"preserve_holes":     &req.PreserveHoles,
		"force_binary_alpha": &req.ForceBinaryAlpha,
	}
	for key, dst := range bools {
		if *dst, err = parseOptional(r.FormValue(key), strconv.ParseBool); err != nil {
			return req, fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	floats := map[string]**float64{
		"edge_refinement": &req.EdgeRefinement,
		"feathering":      &req.Feathering,
	}
	parseFloat := func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
	for key, dst := range floats {
		if *dst, err = parseOptional(r.FormValue(key), parseFloat); err != nil {
			return req, fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	if req.MaxDimension, err = parseOptional(r.FormValue("max_dimension"), strconv.Atoi); err != nil {
		return req, fmt.Errorf("invalid max_dimension: %w", err)
	}
	return req, nil
}

func parseOptional[T any](raw string, parse func(string) (T, error)) (*T, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := parse(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// requestError carries the HTTP status for a rejected upload.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// parseUpload reads the multipart form and decodes the field image.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, field string) (image.Image, error) {
	limit := s.maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, &requestError{status: http.StatusRequestEntityTooLarge, msg: "File too large"}
		}
		return nil, badRequest("Failed to parse form data")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, badRequest("No %s file provided", field)
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))
	return decodeUpload(file)
}

// optionalUpload decodes field when present.
func optionalUpload(r *http.Request, field string) (image.Image, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, badRequest("Failed to read %s", field)
	}
	defer func() { _ = file.Close() }()
	return decodeUpload(file)
}

func decodeUpload(f multipart.File) (image.Image, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &requestError{status: http.StatusInternalServerError, msg: "Failed to read image data"}
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, badRequest("Invalid image format")
	}
	return img, nil
}
