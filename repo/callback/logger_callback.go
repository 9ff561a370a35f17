package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/callbacks"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/protocol/sse"
	"github.com/google/uuid"
	"github.com/yasaa/yasaa-vision-go/entity/model"
)

// LoggerCallback 日志回调
type LoggerCallback struct {
	callbacks.HandlerBuilder // 可以用 callbacks.HandlerBuilder 来辅助实现 callback

	ID  string      // 线程ID，用于标识当前对话会话
	SSE *sse.Writer // SSE写入器，用于向客户端推送实时流式数据
	Out chan string // 输出通道，用于异步传递消息内容
}

// pushF 推送格式化数据到客户端
// 将响应数据序列化后通过SSE和输出通道进行双路推送
func (cb *LoggerCallback) pushF(ctx context.Context, event string, data *model.ChatResp) error {
	// 将响应数据序列化为JSON格式
	dataByte, err := json.Marshal(data)
	if err != nil {
		slog.Error("pushF failed, marshal data err = %+v, data = %+v", err, data)
		return err
	}
	// 通过SSE推送到客户端（如果SSE连接存在）
	if cb.SSE != nil {
		err = cb.SSE.WriteEvent("", event, dataByte)
	}
	// 通过输出通道异步传递消息内容（如果通道存在）
	if cb.Out != nil {
		cb.Out <- data.Content
	}
	return err
}

// pushMsg 推送消息到客户端
func (cb *LoggerCallback) pushMsg(ctx context.Context, msgID string, msg *schema.Message) error {
	// 空消息检查
	if msg == nil {
		return nil
	}

	// 从状态中获取当前阶段名称
	agentName := ""
	_ = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		agentName = state.Goto
		return nil
	})

	// 提取完成原因（如果存在响应元数据）
	fr := ""
	if msg.ResponseMeta != nil {
		fr = msg.ResponseMeta.FinishReason
	}

	// 构建标准响应数据结构并推送
	data := &model.ChatResp{
		ThreadID:      cb.ID,
		Agent:         agentName,
		ID:            msgID,
		Role:          "assistant",
		Content:       msg.Content,
		FinishReason:  fr,
		MessageChunks: msg.Content,
	}
	return cb.pushF(ctx, "message_chunk", data)
}

// OnStart 阶段开始执行时的回调方法
func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	// 如果输入是字符串类型（阶段名），通过输出通道记录开始信息
	if inputStr, ok := input.(string); ok {
		if cb.Out != nil {
			cb.Out <- "\n==================\n"
			cb.Out <- fmt.Sprintf(" [OnStart] %s ", inputStr)
			cb.Out <- "\n==================\n"
		}
	}
	return ctx
}

// OnEnd 阶段执行结束时的回调方法
func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	return ctx
}

// OnError 阶段执行出错时的回调方法
// 注意：阶段失败会被记录到状态并由路由短路，走到这里的只有基础设施级错误
func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	slog.Error("LoggerCallback OnError, err = %+v", err)
	return ctx
}

// OnEndWithStreamOutput 处理流式输出的回调方法
// 当阶段产生流式输出时被调用，负责实时处理和推送流式数据
func (cb *LoggerCallback) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	// 生成唯一消息ID，用于标识本次流式会话
	msgID := uuid.New().String()
	// 启动异步goroutine处理流式数据，避免阻塞主流程
	go func() {
		// 确保流在函数结束时被正确关闭
		defer output.Close()
		// 异常恢复机制，防止panic导致整个程序崩溃
		defer func() {
			if err := recover(); err != nil {
				slog.Error("OnEndStream panic_recover, msgID = %s, err = %v", msgID, err)
			}
		}()
		// 循环接收流式数据帧
		for {
			frame, err := output.Recv()
			// 流结束标志，正常退出循环
			if errors.Is(err, io.EOF) {
				break
			}
			// 接收错误，记录日志并退出
			if err != nil {
				slog.Error("OnEndStream recv_error, msgID = %s, err = %v", msgID, err)
				return
			}

			// 根据数据帧类型进行不同处理
			switch v := frame.(type) {
			case *schema.Message:
				// 处理单个消息
				_ = cb.pushMsg(ctx, msgID, v)
			case *ecmodel.CallbackOutput:
				// 处理模型回调输出，提取其中的消息
				_ = cb.pushMsg(ctx, msgID, v.Message)
			case []*schema.Message:
				// 处理消息数组，逐个推送
				for _, m := range v {
					_ = cb.pushMsg(ctx, msgID, m)
				}
			default:
				// 未知类型的数据帧，暂时忽略
			}
		}
	}()
	return ctx
}

// OnStartWithStreamInput 处理流式输入的回调方法
func (cb *LoggerCallback) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	// 确保输入流被正确关闭，释放相关资源
	defer input.Close()
	return ctx
}
