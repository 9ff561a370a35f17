package model

// ChatReq HTTP前端的对话请求
type ChatReq struct {
	ThreadID    string `json:"thread_id"`              // 会话ID，服务端据此维护对话历史
	Message     string `json:"message"`                // 用户本轮输入
	ImageBase64 string `json:"image_base64,omitempty"` // Base64编码的手掌照片
}

// ChatResp 推送给前端的流式响应块
type ChatResp struct {
	ThreadID      string `json:"thread_id"`               // 会话ID
	Agent         string `json:"agent"`                   // 当前执行的阶段名
	ID            string `json:"id"`                      // 消息ID
	Role          string `json:"role"`                    // 角色，固定为assistant
	Content       string `json:"content"`                 // 消息内容
	FinishReason  string `json:"finish_reason,omitempty"` // 完成原因
	MessageChunks string `json:"message_chunks,omitempty"`
}
