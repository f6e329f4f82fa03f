// Package hashing is a deterministic, offline multimodal embedder. Text is
// embedded by signed feature hashing of its tokens; images by hashing a
// coarse luminance grid and colour histogram into the same space.
package hashing

import (
	"context"
	"hash/fnv"
	"image"
	"math"
	"regexp"
	"strconv"
	"strings"

	"brainbolt/internal/embedding"
)

const DefaultDimension = 512

// Embedder implements embedding.Backend without any model weights.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates a hashing embedder of the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// EmbedText hashes unigrams (weight 1) and bigrams (weight 0.5) with
// sublinear term frequency. Text made only of stopwords yields a zero vector.
func (e *Embedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimension)
	tokens := e.tokenize(text)
	tf := make(map[string]float64)
	for i, tok := range tokens {
		tf["t:"+tok]++
		if i > 0 {
			tf["b:"+tokens[i-1]+" "+tok] += 0.5
		}
	}
	for feature, count := range tf {
		e.add(vec, feature, 1+math.Log(count))
	}
	return vec, nil
}

const gridSize = 8

// EmbedImage hashes an 8x8 luminance grid (mean-centred) and a 4x4x4 colour
// histogram.
func (e *Embedder) EmbedImage(_ context.Context, img embedding.Image) ([]float32, error) {
	vec := make([]float32, e.dimension)
	px := img.Pixels
	b := px.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return vec, nil
	}
	var lum [gridSize * gridSize]float64
	var cells [gridSize * gridSize]float64
	var hist [64]float64
	total := 0.0
	stepX, stepY := maxInt(1, b.Dx()/64), maxInt(1, b.Dy()/64)
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl := rgb(px, x, y)
			cell := ((y-b.Min.Y)*gridSize/b.Dy())*gridSize + (x-b.Min.X)*gridSize/b.Dx()
			lum[cell] += 0.299*r + 0.587*g + 0.114*bl
			cells[cell]++
			hist[int(r*3.999)*16+int(g*3.999)*4+int(bl*3.999)]++
			total++
		}
	}
	mean := 0.0
	for i := range lum {
		if cells[i] > 0 {
			lum[i] /= cells[i]
		}
		mean += lum[i]
	}
	mean /= float64(len(lum))
	for i, v := range lum {
		e.add(vec, "l:"+strconv.Itoa(i), v-mean)
	}
	for i, v := range hist {
		if v > 0 {
			e.add(vec, "c:"+strconv.Itoa(i), v/total)
		}
	}
	return vec, nil
}

func (e *Embedder) add(vec []float32, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += float32(weight)
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func rgb(img image.Image, x, y int) (float64, float64, float64) {
	r, g, b, _ := img.At(x, y).RGBA()
	return float64(r) / 65535, float64(g) / 65535, float64(b) / 65535
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
