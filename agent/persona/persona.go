package persona

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HildaM/logs/slog"

	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/yasaa/yasaa-vision-go/agent/comm"
	"github.com/yasaa/yasaa-vision-go/entity/conf"
	"github.com/yasaa/yasaa-vision-go/entity/consts"
	"github.com/yasaa/yasaa-vision-go/entity/model"
	"github.com/yasaa/yasaa-vision-go/repo/llm"
	"github.com/yasaa/yasaa-vision-go/repo/template"
)

// personaImpl 人格化输出者。
// 将对话历史、观察报告与检索段落交给合成协作方，在固定人设下
// 生成最终解读文本。没有检索到任何段落时也必须产出降级的有效回答。
type personaImpl[I, O any] struct {
	llm ecmodel.BaseChatModel // llm模型服务
}

// NewPersona 创建实例
func NewPersona[I, O any](ctx context.Context, cfg *conf.AppConfig) *personaImpl[I, O] {
	return &personaImpl[I, O]{
		llm: llm.NewPersonaModel(ctx, cfg),
	}
}

// NewPersonaWithModel 以指定模型创建实例，测试时注入伪造协作方使用
func NewPersonaWithModel[I, O any](m ecmodel.BaseChatModel) *personaImpl[I, O] {
	return &personaImpl[I, O]{llm: m}
}

// NewGraphNode 创建任务图
func (p *personaImpl[I, O]) NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt) {
	graph := compose.NewGraph[I, O]()

	// 添加节点
	graph.AddLambdaNode("synthesize", compose.InvokableLambdaWithOption(p.synthesize))
	graph.AddLambdaNode("router", compose.InvokableLambdaWithOption(router))

	// 构造工作流
	graph.AddEdge(compose.START, "synthesize")
	graph.AddEdge("synthesize", "router")
	graph.AddEdge("router", compose.END)

	return consts.Persona, graph, compose.WithNodeName(consts.Persona)
}

// synthesize 合成节点，调用合成协作方生成最终解读。
// 协作方失败记录为 SynthesisFailure 写入状态，不产出替代文案，
// 通用的失败提示由调用方渲染。
func (p *personaImpl[I, O]) synthesize(ctx context.Context, name string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		// 加载人设提示词模板
		sysPrompt, err := template.GetPromptTemplate(ctx, name)
		if err != nil {
			state.Err = model.NewStageError(model.SynthesisFailure, err)
			return nil
		}

		// 构建Jinja2格式的提示词模板，包含系统消息和用户输入占位符
		promptTemp := prompt.FromMessages(schema.Jinja2,
			schema.SystemMessage(sysPrompt),
			schema.MessagesPlaceholder("user_input", true),
		)

		// 准备模板变量，这些变量会被注入到提示词模板中
		variables := map[string]any{
			"report":       state.ObservationReport,                                         // 观察阶段的技术报告
			"passages":     formatPassages(state.RetrievedPassages),                         // 检索到的书籍段落
			"CURRENT_TIME": time.Now().Format("2006-01-02 15:04:05"),                        // 当前时间
			"user_input":   comm.TruncateMessages(ctx, state.Messages, state.MaxLimitToken), // 用户输入消息
		}
		msgs, err := promptTemp.Format(ctx, variables)
		if err != nil {
			slog.Error("synthesize failed, format prompt template err = %+v", err)
			state.Err = model.NewStageError(model.SynthesisFailure, err)
			return nil
		}

		// 调用合成协作方
		resp, err := p.llm.Generate(ctx, msgs)
		if err != nil {
			slog.Error("synthesize failed, generate err = %+v", err)
			state.Err = model.NewStageError(model.SynthesisFailure, err)
			return nil
		}

		state.FinalText = resp.Content
		slog.Info("synthesize success, final text length = %d", len(resp.Content))
		return nil
	})
	return output, err
}

// router 路由节点，合成是最后一个阶段，流程到此结束
func router(ctx context.Context, input string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()

		state.Goto = compose.END
		return nil
	})
	return output, err
}

// formatPassages 将检索段落格式化为带来源编号的引用块。
// 段落为空时给出明确指示，保证降级路径也能产出有效回答。
func formatPassages(docs []*schema.Document) string {
	if len(docs) == 0 {
		return "(Kaynak bulunamadı. Yalnızca gözlem raporuna dayanarak yorum yap.)"
	}

	var sb strings.Builder
	for i, doc := range docs {
		source := doc.MetaData["source"]
		page := doc.MetaData["page"]
		sb.WriteString(fmt.Sprintf("Kaynak %d [%v, sayfa %v]:\n%s\n\n", i+1, source, page, doc.Content))
	}
	return strings.TrimSpace(sb.String())
}
