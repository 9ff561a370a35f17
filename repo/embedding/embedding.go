package embedding

import (
	"context"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/yasaa/yasaa-vision-go/entity/conf"
)

// NewEmbedder 创建向量模型，检索查询与离线入库共用
func NewEmbedder(ctx context.Context, cfg *conf.AppConfig) *openai.Embedder {
	mc := cfg.Model.EmbeddingModel
	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		Model:   mc.ModelID,
		BaseURL: mc.BaseURL,
		APIKey:  mc.APIKey,
	})
	if err != nil {
		slog.Fatal("NewEmbedder failed, err: %v", err)
		return nil
	}
	return embedder
}
