// Package embedding maps text to fixed-length vectors.
package embedding

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/pkg/utils"
)

// Embedder produces vector embeddings for text. The same text always yields the same
// vector for a given model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Model names the model and its parameters. Vectors from embedders with different
	// names are not comparable even when their dimensions agree.
	Model() string
	Close() error
}

// Options configures New.
type Options struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	CacheSize  int
	Logger     *zap.Logger
}

// New returns the ONNX embedder for opts.ModelPath, or a HashEmbedder of the same
// dimensionality when the ONNX runtime or model cannot be loaded.
func New(opts Options) Embedder {
	logger := utils.OrNop(opts.Logger)
	if opts.ModelPath != "" {
		e, err := NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens, opts.CacheSize)
		if err == nil {
			logger.Info("using ONNX embedder", zap.String("model", opts.ModelPath))
			return e
		}
		logger.Warn("ONNX embedder unavailable, falling back to hash embedder", zap.Error(err))
	}
	return NewHashEmbedder(opts.Dimensions)
}

// ModelName is the Model value of the ONNX embedder loaded from modelPath.
func ModelName(modelPath string) string {
	return "onnx:" + filepath.Base(modelPath)
}

// embedEach is the EmbedBatch implementation for embedders without native batching.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
