package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/segment"
	"github.com/MeKo-Tech/cutout/internal/testutil"
)

var (
	backdrop = color.RGBA{R: 250, G: 250, B: 250, A: 255}
	subject  = color.RGBA{R: 40, G: 40, B: 160, A: 255}
)

// newTestServer serves with traditional backends only.
func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  30,
		Pipeline:    pipeline.DefaultConfig(),
	}
	cfg.Pipeline.Learned = nil
	cfg.Pipeline.Matting = false
	if mutate != nil {
		mutate(&cfg)
	}
	pl, err := pipeline.NewBuilder().WithConfig(cfg.Pipeline).WithRegistry(segment.NewRegistry()).Build()
	require.NoError(t, err)
	s := newServer(pl, cfg)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func scenePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.Disc(testutil.SmallSize, backdrop, subject, 0.3)))
	return buf.Bytes()
}

// multipartRequest builds a POST with optional image bytes and form fields.
func multipartRequest(t *testing.T, target, field string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile(field, "upload.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// failingProcessor always errors.
type failingProcessor struct{ err error }

func (f failingProcessor) Process(context.Context, image.Image, pipeline.Settings, pipeline.ProgressFunc) (*pipeline.Result, error) {
	return nil, f.err
}

func (f failingProcessor) Status() pipeline.Status { return pipeline.Status{} }

func (f failingProcessor) Close() error { return nil }

var errBackendCrashed = errors.New("backend crashed")
