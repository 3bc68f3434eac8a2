package qr

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	DefaultSize = 260
	MinSize     = 64
	MaxSize     = 1024
)

var (
	ErrEmptyContent = errors.New("qr content is empty")
	ErrInvalidSize  = errors.New("qr size out of range")
)

// Renderer encodes text into PNG QR images.
type Renderer struct {
	renders metric.Int64Counter
}

// NewRenderer creates a renderer that counts renders on meter.
// A nil meter disables counting.
func NewRenderer(meter metric.Meter) *Renderer {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("qr")
	}
	renders, err := meter.Int64Counter("qrform_qr_renders",
		metric.WithDescription("QR images rendered"),
	)
	if err != nil {
		renders, _ = noop.NewMeterProvider().Meter("qr").Int64Counter("qrform_qr_renders")
	}
	return &Renderer{renders: renders}
}

// PNG renders text as a size x size PNG at medium error correction.
// A zero size selects DefaultSize.
func (r *Renderer) PNG(ctx context.Context, text string, size int) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyContent
	}
	if size == 0 {
		size = DefaultSize
	}
	if size < MinSize || size > MaxSize {
		return nil, ErrInvalidSize
	}

	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	r.renders.Add(ctx, 1, metric.WithAttributes(attribute.Int("size", size)))
	return png, nil
}

// DataURL renders text and returns it as a data:image/png;base64 URL
// suitable for an <img> src.
func (r *Renderer) DataURL(ctx context.Context, text string, size int) (string, error) {
	png, err := r.PNG(ctx, text, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
