package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HildaM/logs/slog"
	"github.com/yasaa/yasaa-vision-go/entity/conf"
	"github.com/yasaa/yasaa-vision-go/repo/embedding"
	"github.com/yasaa/yasaa-vision-go/repo/knowledge"
)

// 切块参数：按字符切块并保留重叠，保证段落边界信息不丢
const (
	chunkSize    = 1000 // 单块最大字符数
	chunkOverlap = 150  // 相邻块重叠字符数
	embedBatch   = 64   // 单次向量化的块数上限
)

// Run 离线入库：读取目录下的文本资料，切块、向量化并写入知识库。
// 该工具独立于编排核心运行，核心自身从不计算向量。
func Run(ctx context.Context, cfg *conf.AppConfig, dir string) error {
	embedder := embedding.NewEmbedder(ctx, cfg)
	store, err := knowledge.New(ctx, cfg, embedder)
	if err != nil {
		return fmt.Errorf("ingest failed, open knowledge store: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("ingest failed, read dir: %w", err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("ingest failed, read %s: %w", entry.Name(), err)
		}

		// 切块
		chunks := SplitChunks(string(data), chunkSize, chunkOverlap)
		if len(chunks) == 0 {
			slog.Info("ingest skip empty file, name = %s", entry.Name())
			continue
		}

		// 分批向量化
		vectors := make([][]float64, 0, len(chunks))
		for start := 0; start < len(chunks); start += embedBatch {
			end := start + embedBatch
			if end > len(chunks) {
				end = len(chunks)
			}
			batch, err := embedder.EmbedStrings(ctx, chunks[start:end])
			if err != nil {
				return fmt.Errorf("ingest failed, embed %s: %w", entry.Name(), err)
			}
			vectors = append(vectors, batch...)
		}

		// 写入知识库
		if err := store.InsertChunks(ctx, entry.Name(), chunks, vectors); err != nil {
			return fmt.Errorf("ingest failed, insert %s: %w", entry.Name(), err)
		}

		slog.Info("ingest success, name = %s, chunks = %d", entry.Name(), len(chunks))
		total += len(chunks)
	}

	slog.Info("ingest done, total chunks = %d", total)
	return nil
}

// SplitChunks 按字符数切块，相邻块保留overlap个字符的重叠
func SplitChunks(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	step := size - overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
