package llm

import (
	"context"
	"time"

	openai3 "github.com/cloudwego/eino-ext/libs/acl/openai"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/getkin/kin-openapi/openapi3gen"
	"github.com/yasaa/yasaa-vision-go/entity/conf"
	"github.com/yasaa/yasaa-vision-go/entity/model"
)

// NewVisionModel 创建观察阶段的视觉模型。
// 通过 JSON Schema 响应格式强制模型输出 ObservationResult 结构，
// hand_detected 字段由此获得，无需在文本里埋哨兵串再做解析。
func NewVisionModel(ctx context.Context, cfg *conf.AppConfig) *openai.ChatModel {
	// 定义返回结构
	obsSchema, _ := openapi3gen.NewSchemaRefForValue(&model.ObservationResult{}, nil)

	mc := cfg.Model.VisionModel
	llm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:     mc.ModelID,
		BaseURL:   mc.BaseURL,
		APIKey:    mc.APIKey,
		MaxTokens: &mc.MaxTokens,
		Timeout:   time.Duration(mc.TimeoutSec) * time.Second, // 超时等同协作方失败处理
		// 观察报告响应格式
		ResponseFormat: &openai3.ChatCompletionResponseFormat{
			Type: openai3.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai3.ChatCompletionResponseFormatJSONSchema{
				Name:   "observation",
				Strict: false,
				Schema: obsSchema.Value,
			},
		},
	})
	if err != nil {
		slog.Fatal("NewVisionModel failed, err: %v", err)
		return nil
	}
	return llm
}

// NewPersonaModel 创建合成阶段的对话模型
func NewPersonaModel(ctx context.Context, cfg *conf.AppConfig) *openai.ChatModel {
	mc := cfg.Model.PersonaModel
	temperature := float32(0.8) // 解读文案需要一点发挥空间

	llm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:       mc.ModelID,
		BaseURL:     mc.BaseURL,
		APIKey:      mc.APIKey,
		MaxTokens:   &mc.MaxTokens,
		Temperature: &temperature,
		Timeout:     time.Duration(mc.TimeoutSec) * time.Second,
	})
	if err != nil {
		slog.Fatal("NewPersonaModel failed, err: %v", err)
		return nil
	}
	return llm
}
