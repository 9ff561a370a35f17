package model

import (
	"github.com/cloudwego/eino/schema"
	"github.com/yasaa/yasaa-vision-go/entity/consts"
)

// State 一次调用内贯穿所有阶段的共享状态。
// 每次调用持有独立实例，阶段之间只通过该结构传递数据，
// 各字段在一次调用内只被写入一次，不存在跨调用共享。
type State struct {
	// 用户输入的信息（对各阶段只读）
	Messages    []*schema.Message `json:"messages,omitempty"`
	ImageBase64 string            `json:"image_base64,omitempty"`

	// 子图共享变量
	Goto              string             `json:"goto,omitempty"`
	HandDetected      bool               `json:"hand_detected"`
	ObservationReport string             `json:"observation_report,omitempty"`
	RetrievedPassages []*schema.Document `json:"retrieved_passages,omitempty"`
	FinalText         string             `json:"final_text,omitempty"`
	Err               *StageError        `json:"error,omitempty"`

	// 全局配置变量（由状态生成函数从配置拷贝，阶段逻辑不读全局配置）
	TopK          int `json:"top_k,omitempty"`
	MaxLimitToken int `json:"max_limit_token,omitempty"`
}

// Status 终止状态
type Status string

const (
	StatusDone   Status = "done"   // 正常终止（包含未检测到手掌的情况）
	StatusFailed Status = "failed" // 某一阶段协作方调用失败
)

// Outcome 返回终止状态与对应的用户可见文本。
// 不变量：final_text 与 error 二者至多一个生效，这里是唯一的裁决点。
func (s *State) Outcome() (Status, string) {
	if s.Err != nil {
		return StatusFailed, consts.MsgStageFailure
	}
	if !s.HandDetected {
		return StatusDone, consts.MsgNoHandDetected
	}
	return StatusDone, s.FinalText
}

// ObservationResult 观察阶段的结构化输出。
// 通过 JSON Schema 响应格式强制模型返回该结构，
// hand_detected 是路由的唯一分支信号。
type ObservationResult struct {
	HandDetected bool   `json:"hand_detected"` // 图片中是否确实存在手掌
	Report       string `json:"report"`        // 纯观察性的技术描述，不含解读语气
}
