package model

import "fmt"

// ErrKind 阶段失败类型
type ErrKind string

const (
	ObservationFailure ErrKind = "observation_failure" // 视觉协作方调用失败（网络/超时/响应格式异常）
	RetrievalFailure   ErrKind = "retrieval_failure"   // 知识检索协作方调用失败
	SynthesisFailure   ErrKind = "synthesis_failure"   // 文本合成协作方调用失败
)

// StageError 记录在状态中的阶段失败。
// 一旦写入，路由立即短路，后续阶段不再执行，核心不做重试。
type StageError struct {
	Kind ErrKind `json:"kind"` // 失败类型
	Msg  string  `json:"msg"`  // 底层错误描述
}

// NewStageError 创建实例
func NewStageError(kind ErrKind, err error) *StageError {
	return &StageError{
		Kind: kind,
		Msg:  err.Error(),
	}
}

// Error 实现error接口
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}
