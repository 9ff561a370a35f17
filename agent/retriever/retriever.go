package retriever

import (
	"context"

	"github.com/HildaM/logs/slog"

	eretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/yasaa/yasaa-vision-go/entity/conf"
	"github.com/yasaa/yasaa-vision-go/entity/consts"
	"github.com/yasaa/yasaa-vision-go/entity/model"
	"github.com/yasaa/yasaa-vision-go/repo/embedding"
	"github.com/yasaa/yasaa-vision-go/repo/knowledge"
)

// retrieverImpl 检索者。
// 以观察报告为查询，从知识库检索至多K条相关书籍段落，
// 保持库返回的相关性顺序，不做重排，返回不足K条不算失败。
type retrieverImpl[I, O any] struct {
	kb eretriever.Retriever // 知识库检索服务
}

// NewRetriever 创建实例
func NewRetriever[I, O any](ctx context.Context, cfg *conf.AppConfig) *retrieverImpl[I, O] {
	store, err := knowledge.New(ctx, cfg, embedding.NewEmbedder(ctx, cfg))
	if err != nil {
		slog.Fatal("NewRetriever failed, err: %v", err)
		return nil
	}
	return &retrieverImpl[I, O]{kb: store}
}

// NewRetrieverWithStore 以指定知识库创建实例，测试时注入伪造协作方使用
func NewRetrieverWithStore[I, O any](kb eretriever.Retriever) *retrieverImpl[I, O] {
	return &retrieverImpl[I, O]{kb: kb}
}

// NewGraphNode 创建任务图
func (r *retrieverImpl[I, O]) NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt) {
	graph := compose.NewGraph[I, O]()

	// 添加节点
	graph.AddLambdaNode("search", compose.InvokableLambdaWithOption(r.search))
	graph.AddLambdaNode("router", compose.InvokableLambdaWithOption(router))

	// 构造工作流
	graph.AddEdge(compose.START, "search")
	graph.AddEdge("search", "router")
	graph.AddEdge("router", compose.END)

	return consts.Retriever, graph, compose.WithNodeName(consts.Retriever)
}

// search 检索节点，调用知识库协作方做相似度检索。
// 协作方失败记录为 RetrievalFailure 写入状态，合成阶段不得再执行。
func (r *retrieverImpl[I, O]) search(ctx context.Context, name string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		// 观察报告即查询文本，K来自状态中的配置拷贝
		docs, err := r.kb.Retrieve(ctx, state.ObservationReport, eretriever.WithTopK(state.TopK))
		if err != nil {
			slog.Error("search failed, retrieve err = %+v", err)
			state.Err = model.NewStageError(model.RetrievalFailure, err)
			return nil
		}

		// 保持库返回的顺序写入状态，部分结果照常接受
		state.RetrievedPassages = docs
		slog.Info("search success, requested = %d, got = %d", state.TopK, len(docs))
		return nil
	})
	return output, err
}

// router 路由节点
func router(ctx context.Context, input string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()

		// 检索失败立即终止，否则进入合成阶段
		if state.Err != nil {
			state.Goto = compose.END
			return nil
		}
		state.Goto = consts.Persona
		return nil
	})
	return output, err
}
