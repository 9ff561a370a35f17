package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yasaa/yasaa-vision-go/entity/conf"
)

// Store 基于 MongoDB Atlas Vector Search 的知识库。
// 实现 eino 的 retriever.Retriever 接口，供检索阶段作为协作方调用；
// 排序完全沿用 Atlas 返回的相似度顺序，本层不做重排，也不设相关性阈值。
type Store struct {
	coll     *mongo.Collection  // 存放书籍段落的集合
	embedder embedding.Embedder // 查询向量化模型
	index    string             // 向量索引名
	topK     int                // 配置的检索扇出，调用方未传TopK选项时的兜底
	timeout  time.Duration      // 单次检索调用的超时
}

// chunkDoc 集合中的单条段落文档
type chunkDoc struct {
	Text      string    `bson:"text"`                // 段落正文
	Embedding []float64 `bson:"embedding,omitempty"` // 段落向量
	Source    string    `bson:"source"`              // 来源书籍/文件
	Page      int       `bson:"page"`                // 页码或块序号
	Score     float64   `bson:"score,omitempty"`     // 检索得分（仅查询结果携带）
}

// New 连接知识库
func New(ctx context.Context, cfg *conf.AppConfig, embedder embedding.Embedder) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("knowledge connect failed: %w", err)
	}

	return &Store{
		coll:     client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection),
		embedder: embedder,
		index:    cfg.Mongo.Index,
		topK:     cfg.RAG.TopK,
		timeout:  time.Duration(cfg.Mongo.TimeoutSec) * time.Second,
	}, nil
}

// Retrieve 按相似度检索至多K条段落，按库返回的相关性降序排列。
// 返回不足K条不是错误，部分结果照常接受。
func (s *Store) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	// 从选项中取TopK，未传则回落到配置值
	topK := s.topK
	ro := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)

	// 整个检索调用受统一超时约束，超时与普通失败同等处理
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// 向量化查询文本
	vectors, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query failed: empty embedding result")
	}

	// 执行向量检索
	cursor, err := s.coll.Aggregate(ctx, buildSearchPipeline(s.index, vectors[0], *ro.TopK))
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []chunkDoc
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("decode search results failed: %w", err)
	}

	// 转换为文档列表，保持库返回的顺序
	docs := make([]*schema.Document, 0, len(chunks))
	for i, chunk := range chunks {
		doc := &schema.Document{
			ID:      fmt.Sprintf("%s-%d", chunk.Source, chunk.Page),
			Content: chunk.Text,
			MetaData: map[string]any{
				"source": chunk.Source,
				"page":   chunk.Page,
			},
		}
		doc.WithScore(chunk.Score)
		docs = append(docs, doc)
		slog.Debug("Retrieve debug, rank = %d, source = %s, page = %d, score = %f", i, chunk.Source, chunk.Page, chunk.Score)
	}
	return docs, nil
}

// InsertChunks 批量写入段落，离线入库工具使用
func (s *Store) InsertChunks(ctx context.Context, source string, texts []string, vectors [][]float64) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("insert chunks failed: %d texts but %d vectors", len(texts), len(vectors))
	}

	docs := make([]interface{}, 0, len(texts))
	for i, text := range texts {
		docs = append(docs, chunkDoc{
			Text:      text,
			Embedding: vectors[i],
			Source:    source,
			Page:      i,
		})
	}

	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert chunks failed: %w", err)
	}
	return nil
}

// buildSearchPipeline 构造 $vectorSearch 聚合管道。
// numCandidates 取 10*K，Atlas 官方推荐的召回候选倍数。
func buildSearchPipeline(index string, vector []float64, topK int) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: index},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: topK * 10},
			{Key: "limit", Value: topK},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "text", Value: 1},
			{Key: "source", Value: 1},
			{Key: "page", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}
}
