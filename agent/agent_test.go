package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	ecmodel "github.com/cloudwego/eino/components/model"
	eretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yasaa/yasaa-vision-go/agent/observer"
	"github.com/yasaa/yasaa-vision-go/agent/persona"
	"github.com/yasaa/yasaa-vision-go/agent/retriever"
	"github.com/yasaa/yasaa-vision-go/entity/conf"
	"github.com/yasaa/yasaa-vision-go/entity/consts"
	"github.com/yasaa/yasaa-vision-go/entity/model"
)

// fakeChatModel 伪造的模型协作方，记录调用次数，返回固定响应或固定错误
type fakeChatModel struct {
	calls int
	resp  *schema.Message
	err   error
}

func (f *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...ecmodel.Option) (*schema.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...ecmodel.Option) (*schema.StreamReader[*schema.Message], error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return schema.StreamReaderFromArray([]*schema.Message{f.resp}), nil
}

// fakeKnowledge 伪造的知识库协作方
type fakeKnowledge struct {
	calls int
	docs  []*schema.Document
	err   error
}

func (f *fakeKnowledge) Retrieve(ctx context.Context, query string, opts ...eretriever.Option) ([]*schema.Document, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

const (
	visionHandJSON   = `{"hand_detected":true,"report":"Hand Shape: square. Life Line: deep and curved around the Mount of Venus."}`
	visionNoHandJSON = `{"hand_detected":false,"report":""}`
	personaAnswer    = "Kuzum, hayat çizgin derin ve kavisli. Benham kitabında da yazar ki bu güçlü bir yaşam enerjisidir."
	testImage        = "dGVzdC1pbWFnZS1ieXRlcw=="
)

func testConfig() *conf.AppConfig {
	return &conf.AppConfig{
		RAG:     conf.RAGConfig{TopK: 5},
		Setting: conf.SettingConfig{MaxLimitToken: 2000},
	}
}

func passages(n int) []*schema.Document {
	docs := make([]*schema.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, &schema.Document{
			ID:      fmt.Sprintf("benham-%d", i),
			Content: fmt.Sprintf("passage %d about the life line", i),
			MetaData: map[string]any{
				"source": "benham.txt",
				"page":   i,
			},
		})
	}
	return docs
}

// runOnce 以伪造协作方构建图并执行一次完整调用
func runOnce(t *testing.T, vision *fakeChatModel, kb *fakeKnowledge, synth *fakeChatModel, conversation []*schema.Message, image string) *model.State {
	t.Helper()
	ctx := context.Background()

	st := NewState(testConfig(), conversation, image)
	instances := map[string]Agent[string, string]{
		consts.Observer:  observer.NewObserverWithModel[string, string](vision),
		consts.Retriever: retriever.NewRetrieverWithStore[string, string](kb),
		consts.Persona:   persona.NewPersonaWithModel[string, string](synth),
	}

	graph, err := buildGraph(ctx, st, instances)
	require.NoError(t, err)

	_, err = graph.Invoke(ctx, consts.Observer)
	require.NoError(t, err)
	return st
}

func userTurn(text string) []*schema.Message {
	return []*schema.Message{schema.UserMessage(text)}
}

func TestFullPath(t *testing.T) {
	vision := &fakeChatModel{resp: schema.AssistantMessage(visionHandJSON, nil)}
	kb := &fakeKnowledge{docs: passages(5)}
	synth := &fakeChatModel{resp: schema.AssistantMessage(personaAnswer, nil)}

	st := runOnce(t, vision, kb, synth, userTurn("Elime bakar mısın?"), testImage)

	status, text := st.Outcome()
	assert.Equal(t, model.StatusDone, status)
	assert.Equal(t, personaAnswer, text)
	assert.True(t, st.HandDetected)
	assert.Nil(t, st.Err)

	// 每个协作方恰好被调用一次
	assert.Equal(t, 1, vision.calls)
	assert.Equal(t, 1, kb.calls)
	assert.Equal(t, 1, synth.calls)

	// 段落按库返回的顺序保留
	require.Len(t, st.RetrievedPassages, 5)
	for i, doc := range st.RetrievedPassages {
		assert.Equal(t, fmt.Sprintf("benham-%d", i), doc.ID)
	}
}

func TestNoHandDetected(t *testing.T) {
	vision := &fakeChatModel{resp: schema.AssistantMessage(visionNoHandJSON, nil)}
	kb := &fakeKnowledge{docs: passages(5)}
	synth := &fakeChatModel{resp: schema.AssistantMessage(personaAnswer, nil)}

	st := runOnce(t, vision, kb, synth, userTurn("Bu fotoğrafa bak"), testImage)

	// 正常终止，提示语不是错误文案
	status, text := st.Outcome()
	assert.Equal(t, model.StatusDone, status)
	assert.Equal(t, consts.MsgNoHandDetected, text)
	assert.Nil(t, st.Err)
	assert.Empty(t, st.FinalText)
	assert.Empty(t, st.RetrievedPassages)

	// 未检测到手时，检索与合成协作方绝不能被调用
	assert.Equal(t, 0, kb.calls)
	assert.Equal(t, 0, synth.calls)
}

func TestObservationFailure(t *testing.T) {
	vision := &fakeChatModel{err: errors.New("connection timeout")}
	kb := &fakeKnowledge{docs: passages(5)}
	synth := &fakeChatModel{resp: schema.AssistantMessage(personaAnswer, nil)}

	st := runOnce(t, vision, kb, synth, userTurn("Elime bakar mısın?"), testImage)

	status, text := st.Outcome()
	assert.Equal(t, model.StatusFailed, status)
	assert.Equal(t, consts.MsgStageFailure, text)
	require.NotNil(t, st.Err)
	assert.Equal(t, model.ObservationFailure, st.Err.Kind)
	assert.False(t, st.HandDetected)

	assert.Equal(t, 0, kb.calls)
	assert.Equal(t, 0, synth.calls)
}

func TestMalformedObservationResponse(t *testing.T) {
	vision := &fakeChatModel{resp: schema.AssistantMessage("not a json payload", nil)}
	kb := &fakeKnowledge{docs: passages(5)}
	synth := &fakeChatModel{resp: schema.AssistantMessage(personaAnswer, nil)}

	st := runOnce(t, vision, kb, synth, userTurn("Elime bakar mısın?"), testImage)

	require.NotNil(t, st.Err)
	assert.Equal(t, model.ObservationFailure, st.Err.Kind)
	assert.Equal(t, 0, kb.calls)
	assert.Equal(t, 0, synth.calls)
}

func TestRetrievalFailure(t *testing.T) {
	vision := &fakeChatModel{resp: schema.AssistantMessage(visionHandJSON, nil)}
	kb := &fakeKnowledge{err: errors.New("vector search timeout")}
	synth := &fakeChatModel{resp: schema.AssistantMessage(personaAnswer, nil)}

	st := runOnce(t, vision, kb, synth, userTurn("Elime bakar mısın?"), testImage)

	status, _ := st.Outcome()
	assert.Equal(t, model.StatusFailed, status)
	require.NotNil(t, st.Err)
	assert.Equal(t, model.RetrievalFailure, st.Err.Kind)
	assert.Empty(t, st.FinalText)

	// 检索失败后合成协作方绝不能被调用
	assert.Equal(t, 1, kb.calls)
	assert.Equal(t, 0, synth.calls)
}

func TestPartialRetrievalStillSynthesizes(t *testing.T) {
	// 请求K=5但只返回2条，不算失败，合成照常进行
	vision := &fakeChatModel{resp: schema.AssistantMessage(visionHandJSON, nil)}
	kb := &fakeKnowledge{docs: passages(2)}
	synth := &fakeChatModel{resp: schema.AssistantMessage(personaAnswer, nil)}

	st := runOnce(t, vision, kb, synth, userTurn("Elime bakar mısın?"), testImage)

	status, text := st.Outcome()
	assert.Equal(t, model.StatusDone, status)
	assert.Equal(t, personaAnswer, text)
	assert.Len(t, st.RetrievedPassages, 2)
	assert.Equal(t, 1, synth.calls)
}

func TestEmptyRetrievalStillSynthesizes(t *testing.T) {
	// 零条结果也是有效输入，降级路径必须产出回答
	vision := &fakeChatModel{resp: schema.AssistantMessage(visionHandJSON, nil)}
	kb := &fakeKnowledge{docs: nil}
	synth := &fakeChatModel{resp: schema.AssistantMessage(personaAnswer, nil)}

	st := runOnce(t, vision, kb, synth, userTurn("Elime bakar mısın?"), testImage)

	status, text := st.Outcome()
	assert.Equal(t, model.StatusDone, status)
	assert.NotEmpty(t, text)
	assert.Equal(t, 1, synth.calls)
}

func TestSynthesisFailure(t *testing.T) {
	vision := &fakeChatModel{resp: schema.AssistantMessage(visionHandJSON, nil)}
	kb := &fakeKnowledge{docs: passages(5)}
	synth := &fakeChatModel{err: errors.New("model overloaded")}

	st := runOnce(t, vision, kb, synth, userTurn("Elime bakar mısın?"), testImage)

	status, text := st.Outcome()
	assert.Equal(t, model.StatusFailed, status)
	assert.Equal(t, consts.MsgStageFailure, text)
	require.NotNil(t, st.Err)
	assert.Equal(t, model.SynthesisFailure, st.Err.Kind)

	// 不产出替代文案
	assert.Empty(t, st.FinalText)
}

func TestIdempotentAcrossInvocations(t *testing.T) {
	// 相同输入与确定性协作方下，两次独立调用得到相同终态
	run := func() *model.State {
		vision := &fakeChatModel{resp: schema.AssistantMessage(visionHandJSON, nil)}
		kb := &fakeKnowledge{docs: passages(3)}
		synth := &fakeChatModel{resp: schema.AssistantMessage(personaAnswer, nil)}
		return runOnce(t, vision, kb, synth, userTurn("Elime bakar mısın?"), testImage)
	}

	first := run()
	second := run()

	assert.Equal(t, first.HandDetected, second.HandDetected)
	assert.Equal(t, first.ObservationReport, second.ObservationReport)
	assert.Equal(t, first.FinalText, second.FinalText)
	assert.Equal(t, len(first.RetrievedPassages), len(second.RetrievedPassages))

	firstStatus, firstText := first.Outcome()
	secondStatus, secondText := second.Outcome()
	assert.Equal(t, firstStatus, secondStatus)
	assert.Equal(t, firstText, secondText)
}

func TestConversationNotMutatedByTruncation(t *testing.T) {
	// 对话消息归调用方所有，超长截断只作用于送给模型的拷贝
	vision := &fakeChatModel{resp: schema.AssistantMessage(visionHandJSON, nil)}
	kb := &fakeKnowledge{docs: passages(3)}
	synth := &fakeChatModel{resp: schema.AssistantMessage(personaAnswer, nil)}

	longQuestion := strings.Repeat("a", 3000)
	conversation := userTurn(longQuestion)

	st := runOnce(t, vision, kb, synth, conversation, testImage)

	status, _ := st.Outcome()
	assert.Equal(t, model.StatusDone, status)
	// 调用方的消息内容保持原样
	assert.Equal(t, longQuestion, conversation[0].Content)
}

func TestMissingImageIsObservationFailure(t *testing.T) {
	vision := &fakeChatModel{resp: schema.AssistantMessage(visionHandJSON, nil)}
	kb := &fakeKnowledge{docs: passages(5)}
	synth := &fakeChatModel{resp: schema.AssistantMessage(personaAnswer, nil)}

	st := runOnce(t, vision, kb, synth, userTurn("Elime bakar mısın?"), "")

	require.NotNil(t, st.Err)
	assert.Equal(t, model.ObservationFailure, st.Err.Kind)
	// 视觉协作方根本不应被调用
	assert.Equal(t, 0, vision.calls)
}
