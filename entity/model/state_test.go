package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yasaa/yasaa-vision-go/entity/consts"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name       string
		state      *State
		wantStatus Status
		wantText   string
	}{
		{
			name:       "合成成功",
			state:      &State{HandDetected: true, FinalText: "Kuzum, hayat çizgin çok güçlü."},
			wantStatus: StatusDone,
			wantText:   "Kuzum, hayat çizgin çok güçlü.",
		},
		{
			name:       "未检测到手掌，正常终止",
			state:      &State{HandDetected: false},
			wantStatus: StatusDone,
			wantText:   consts.MsgNoHandDetected,
		},
		{
			name:       "阶段失败",
			state:      &State{Err: NewStageError(RetrievalFailure, errors.New("timeout"))},
			wantStatus: StatusFailed,
			wantText:   consts.MsgStageFailure,
		},
		{
			name:       "错误优先于检测信号",
			state:      &State{HandDetected: true, Err: NewStageError(SynthesisFailure, errors.New("boom"))},
			wantStatus: StatusFailed,
			wantText:   consts.MsgStageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, text := tt.state.Outcome()
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantText, text)
			// 任何终态都恰好产出一段用户可见文本
			assert.NotEmpty(t, text)
		})
	}
}

func TestOutcomeMessagesDistinct(t *testing.T) {
	// 未检测到手的提示与失败道歉必须是不同文案，用户不能混淆两类结果
	assert.NotEqual(t, consts.MsgNoHandDetected, consts.MsgStageFailure)
}

func TestStageError(t *testing.T) {
	err := NewStageError(ObservationFailure, errors.New("connection refused"))
	assert.Equal(t, ObservationFailure, err.Kind)
	assert.Contains(t, err.Error(), "observation_failure")
	assert.Contains(t, err.Error(), "connection refused")
}
