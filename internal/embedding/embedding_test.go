package embedding

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log"
	"math"
	"strings"
	"testing"
	"time"

	"brainbolt/internal/domain"
)

type fakeBackend struct {
	dim      int
	lastText string
	vec      []float32
	err      error
	delay    time.Duration
}

func (f *fakeBackend) Name() string   { return "fake" }
func (f *fakeBackend) Dimension() int { return f.dim }

func (f *fakeBackend) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.lastText = text
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return append([]float32(nil), f.vec...), f.err
}

func (f *fakeBackend) EmbedImage(_ context.Context, img Image) ([]float32, error) {
	if img.Pixels == nil || len(img.PNG) == 0 {
		return nil, errors.New("image not canonicalized")
	}
	return append([]float32(nil), f.vec...), f.err
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func jpegPayload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for x := 0; x < 16; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 16), uint8(y * 32), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestService_NormalizesBothModalities(t *testing.T) {
	svc := NewService(&fakeBackend{dim: 2, vec: []float32{3, 4}}, Config{}, nil, quiet())
	ctx := context.Background()
	for name, embed := range map[string]func() ([]float32, error){
		"text":  func() ([]float32, error) { return svc.EmbedText(ctx, "hello") },
		"image": func() ([]float32, error) { return svc.EmbedImage(ctx, jpegPayload(t)) },
	} {
		v, err := embed()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		norm := math.Sqrt(float64(v[0]*v[0] + v[1]*v[1]))
		if math.Abs(norm-1) > 1e-6 {
			t.Fatalf("%s: expected unit norm, got %f", name, norm)
		}
	}
}

func TestService_TruncatesDeterministically(t *testing.T) {
	fb := &fakeBackend{dim: 1, vec: []float32{1}}
	svc := NewService(fb, Config{MaxTokens: 3}, nil, quiet())
	if _, err := svc.EmbedText(context.Background(), "  one two\n three four five"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if fb.lastText != "one two three" {
		t.Fatalf("unexpected truncation %q", fb.lastText)
	}
	if got := Truncate("one two\n three four five", 3); got != fb.lastText {
		t.Fatalf("query and ingest truncation differ: %q vs %q", got, fb.lastText)
	}
}

func TestService_MalformedImageIsEmbeddingError(t *testing.T) {
	svc := NewService(&fakeBackend{dim: 1, vec: []float32{1}}, Config{}, nil, quiet())
	_, err := svc.EmbedImage(context.Background(), []byte("definitely not an image"))
	var ee *domain.EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
	if ee.Kind != domain.KindImage {
		t.Fatalf("expected image kind, got %v", ee.Kind)
	}
}

func TestService_TimeoutIsTyped(t *testing.T) {
	svc := NewService(&fakeBackend{dim: 1, vec: []float32{1}, delay: time.Second}, Config{Timeout: 20 * time.Millisecond}, nil, quiet())
	_, err := svc.EmbedText(context.Background(), "slow")
	var ee *domain.EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestService_RejectsDimensionMismatch(t *testing.T) {
	svc := NewService(&fakeBackend{dim: 3, vec: []float32{1, 2}}, Config{}, nil, quiet())
	if _, err := svc.EmbedText(context.Background(), "x"); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestService_ZeroVectorIsDegenerate(t *testing.T) {
	svc := NewService(&fakeBackend{dim: 2, vec: []float32{0, 0}}, Config{}, nil, quiet())
	_, err := svc.EmbedText(context.Background(), "and so on")
	var ee *domain.EmbeddingError
	if !errors.As(err, &ee) || !errors.Is(err, domain.ErrDegenerateEmbedding) {
		t.Fatalf("expected degenerate EmbeddingError, got %v", err)
	}
}

func TestCanonicalize(t *testing.T) {
	img, err := Canonicalize(jpegPayload(t))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if !bytes.HasPrefix(img.PNG, []byte("\x89PNG")) {
		t.Fatalf("expected PNG re-encoding")
	}
	if b := img.Pixels.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Fatalf("unexpected bounds %v", b)
	}
	if _, err := Canonicalize(nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestNormalizeAndIsZero(t *testing.T) {
	z := Normalize([]float32{0, 0})
	if !IsZero(z) {
		t.Fatalf("zero vector must stay zero")
	}
	v := Normalize([]float32{0, 2})
	if v[1] != 1 {
		t.Fatalf("expected [0 1], got %v", v)
	}
	if Truncate(strings.Repeat("a ", 100), 0) == "" {
		t.Fatalf("non-positive limit must not truncate")
	}
}
