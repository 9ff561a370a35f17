package server

import (
	"context"
	"encoding/json"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/app"
	hertzserver "github.com/cloudwego/hertz/pkg/app/server"
	hconsts "github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/protocol/sse"
	"github.com/yasaa/yasaa-vision-go/agent"
	"github.com/yasaa/yasaa-vision-go/entity/conf"
	"github.com/yasaa/yasaa-vision-go/entity/consts"
	"github.com/yasaa/yasaa-vision-go/entity/model"
	"github.com/yasaa/yasaa-vision-go/repo/callback"
	"github.com/yasaa/yasaa-vision-go/repo/session"
)

// Run 启动HTTP前端。
// 前端只负责构造初始状态、每轮调用一次编排器并渲染结果，
// 对话历史与照片记忆都在这一层维护，核心保持无状态。
func Run(cfg *conf.AppConfig) {
	h := hertzserver.Default(hertzserver.WithHostPorts(cfg.Server.Addr))

	h.POST("/api/chat", chat)
	h.POST("/api/reset", reset)

	slog.Info("server start, addr = %s", cfg.Server.Addr)
	h.Spin()
}

// chat 处理一轮对话：SSE推送各阶段的流式产出，最后推送终态事件
func chat(ctx context.Context, c *app.RequestContext) {
	var req model.ChatReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(hconsts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	cfg := conf.GetCfg()
	store := session.NewStore()

	// 照片记忆：本轮没有上传就复用该会话最近一次的照片
	imageBase64 := req.ImageBase64
	if imageBase64 == "" {
		imageBase64 = store.Image(req.ThreadID)
	}
	if imageBase64 == "" {
		c.JSON(hconsts.StatusBadRequest, map[string]string{"error": "image required"})
		return
	}

	// 组装本轮对话输入
	userMsg := schema.UserMessage(req.Message)
	conversation := append(store.History(req.ThreadID), userMsg)

	// SSE流式推送
	w := sse.NewWriter(c)
	defer w.Close()

	st, err := agent.Run(ctx, cfg, conversation, imageBase64,
		compose.WithCallbacks(&callback.LoggerCallback{
			ID:  req.ThreadID,
			SSE: w,
		}))
	if err != nil {
		// 基础设施级错误：编译/执行失败，同样渲染通用失败文案
		slog.Error("chat failed, run err = %+v", err)
		pushFinal(w, req.ThreadID, string(model.StatusFailed), consts.MsgStageFailure)
		return
	}

	// 渲染终态：成功文本、未检测到手的提示或通用失败文案
	status, text := st.Outcome()
	pushFinal(w, req.ThreadID, string(status), text)

	recordTurn(store, req.ThreadID, userMsg, imageBase64, st, status, text)
}

// recordTurn 记录本轮会话记忆，由前端层维护，核心不持久化。
// 失败轮次的通用致歉文案不入历史，避免后续轮次把它当作先前的解读。
func recordTurn(store *session.Store, threadID string, userMsg *schema.Message, imageBase64 string, st *model.State, status model.Status, text string) {
	store.Append(threadID, userMsg)
	if status != model.StatusFailed {
		store.Append(threadID, schema.AssistantMessage(text, nil))
	}
	store.SetImage(threadID, imageBase64)
	if st.ObservationReport != "" {
		store.SetReport(threadID, st.ObservationReport)
	}
}

// reset 清空会话，开始新对话
func reset(ctx context.Context, c *app.RequestContext) {
	var req model.ChatReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(hconsts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	session.NewStore().Reset(req.ThreadID)
	c.JSON(hconsts.StatusOK, map[string]string{"thread_id": req.ThreadID})
}

// pushFinal 推送终态事件
func pushFinal(w *sse.Writer, threadID, status, text string) {
	data, err := json.Marshal(&model.ChatResp{
		ThreadID:     threadID,
		Role:         "assistant",
		Content:      text,
		FinishReason: status,
	})
	if err != nil {
		slog.Error("pushFinal failed, marshal err = %+v", err)
		return
	}
	if err := w.WriteEvent("", "final", data); err != nil {
		slog.Error("pushFinal failed, write event err = %+v", err)
	}
}
