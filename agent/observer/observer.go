package observer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HildaM/logs/slog"

	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/yasaa/yasaa-vision-go/entity/conf"
	"github.com/yasaa/yasaa-vision-go/entity/consts"
	"github.com/yasaa/yasaa-vision-go/entity/model"
	"github.com/yasaa/yasaa-vision-go/repo/llm"
	"github.com/yasaa/yasaa-vision-go/repo/template"
)

// observerImpl 观察者。
// 调用视觉协作方对手掌照片做纯观察性分析，先判定照片中是否确实有手，
// 再产出技术报告。hand_detected 是后续路由的唯一分支信号。
type observerImpl[I, O any] struct {
	llm ecmodel.BaseChatModel // 视觉模型服务
}

// NewObserver 创建实例
func NewObserver[I, O any](ctx context.Context, cfg *conf.AppConfig) *observerImpl[I, O] {
	return &observerImpl[I, O]{
		llm: llm.NewVisionModel(ctx, cfg),
	}
}

// NewObserverWithModel 以指定模型创建实例，测试时注入伪造协作方使用
func NewObserverWithModel[I, O any](m ecmodel.BaseChatModel) *observerImpl[I, O] {
	return &observerImpl[I, O]{llm: m}
}

// NewGraphNode 创建任务图
func (o *observerImpl[I, O]) NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt) {
	// 创建图实例
	graph := compose.NewGraph[I, O]()

	// 添加节点
	graph.AddLambdaNode("analyze", compose.InvokableLambdaWithOption(o.analyze))
	graph.AddLambdaNode("router", compose.InvokableLambdaWithOption(router))

	// 构造工作流
	graph.AddEdge(compose.START, "analyze")
	graph.AddEdge("analyze", "router")
	graph.AddEdge("router", compose.END)

	return consts.Observer, graph, compose.WithNodeName(consts.Observer)
}

// analyze 观察节点，调用视觉协作方分析手掌照片。
// 协作方失败（网络/超时/响应格式异常）记录为 ObservationFailure 写入状态，
// 不向上抛节点错误，由路由负责短路，核心不做重试。
func (o *observerImpl[I, O]) analyze(ctx context.Context, name string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		// 照片应由调用方保证存在，缺失按观察失败处理
		if state.ImageBase64 == "" {
			state.Err = model.NewStageError(model.ObservationFailure, fmt.Errorf("input image missing"))
			return nil
		}

		// 加载固定的技术观察指令（只许观察，不许解读）
		sysPrompt, err := template.GetPromptTemplate(ctx, name)
		if err != nil {
			state.Err = model.NewStageError(model.ObservationFailure, err)
			return nil
		}

		// 构造带图片的多模态消息
		userMsg := &schema.Message{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{
					Type: schema.ChatMessagePartTypeText,
					Text: "Analyze the provided hand image.",
				},
				{
					Type: schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{
						URL:    dataURL(state.ImageBase64),
						Detail: schema.ImageURLDetailHigh,
					},
				},
			},
		}

		// 调用视觉协作方
		resp, err := o.llm.Generate(ctx, []*schema.Message{
			schema.SystemMessage(sysPrompt),
			userMsg,
		})
		if err != nil {
			slog.Error("analyze failed, vision generate err = %+v", err)
			state.Err = model.NewStageError(model.ObservationFailure, err)
			return nil
		}

		// 解析结构化观察结果
		result, err := parseObservation(resp.Content)
		if err != nil {
			slog.Error("analyze failed, parse observation err = %+v, content = %s", err, resp.Content)
			state.Err = model.NewStageError(model.ObservationFailure, err)
			return nil
		}

		// 写入状态：分支信号与技术报告
		state.HandDetected = result.HandDetected
		if result.HandDetected {
			state.ObservationReport = result.Report
		}
		slog.Info("analyze success, hand_detected = %v, report length = %d", result.HandDetected, len(result.Report))
		return nil
	})
	return output, err
}

// router 观察之后的唯一分支点，按决策表选择后续路径：
// 有错误→立即终止；未检测到手→正常终止（面向用户的提示由调用方渲染）；
// 否则→进入检索阶段。其余阶段不得再改变控制流。
func router(ctx context.Context, input string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()

		if state.Err != nil {
			slog.Info("observer router, stage error present, terminate, kind = %s", state.Err.Kind)
			state.Goto = compose.END
			return nil
		}
		if !state.HandDetected {
			slog.Info("observer router, no hand detected, terminate")
			state.Goto = compose.END
			return nil
		}

		state.Goto = consts.Retriever
		return nil
	})
	return output, err
}

// dataURL 将Base64照片包装为模型接受的data URL
func dataURL(imageBase64 string) string {
	return fmt.Sprintf("data:image/jpeg;base64,%s", imageBase64)
}

// parseObservation 解析视觉协作方的结构化响应
func parseObservation(content string) (*model.ObservationResult, error) {
	result := &model.ObservationResult{}
	if err := json.Unmarshal([]byte(content), result); err != nil {
		return nil, fmt.Errorf("malformed observation response: %w", err)
	}
	return result, nil
}
