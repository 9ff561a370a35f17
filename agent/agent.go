package agent

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/yasaa/yasaa-vision-go/agent/observer"
	"github.com/yasaa/yasaa-vision-go/agent/persona"
	"github.com/yasaa/yasaa-vision-go/agent/retriever"
	"github.com/yasaa/yasaa-vision-go/entity/conf"
	"github.com/yasaa/yasaa-vision-go/entity/consts"
	"github.com/yasaa/yasaa-vision-go/entity/model"
)

// Agent 定义了一个代理接口，用于创建和管理代理实例
type Agent[I, O any] interface {
	// NewGraphNode 获取代理节点
	NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt)
}

// NewState 创建一次调用的初始状态。
// 每次调用持有独立实例，检索扇出K与输入截断长度在此从配置拷入，
// 之后各阶段只读状态、不读全局配置。
func NewState(cfg *conf.AppConfig, conversation []*schema.Message, imageBase64 string) *model.State {
	return &model.State{
		Messages:      conversation,
		ImageBase64:   imageBase64,
		Goto:          consts.Observer,
		TopK:          cfg.RAG.TopK,
		MaxLimitToken: cfg.Setting.MaxLimitToken,
	}
}

// BuildAgentGraph 用于构建手相解读工作流图。
// 拓扑固定：观察 → （分支）→ 检索 → 合成，每次调用编译并执行一次。
func BuildAgentGraph[I, O any](ctx context.Context, cfg *conf.AppConfig, st *model.State) (compose.Runnable[I, O], error) {
	// 定义agent实例映射，确保节点名字与实例严格对应
	agentInstances := map[string]Agent[I, O]{
		consts.Observer:  observer.NewObserver[I, O](ctx, cfg),
		consts.Retriever: retriever.NewRetriever[I, O](ctx, cfg),
		consts.Persona:   persona.NewPersona[I, O](ctx, cfg),
	}
	return buildGraph(ctx, st, agentInstances)
}

// buildGraph 以给定的agent实例集合构建并编译工作流图
func buildGraph[I, O any](ctx context.Context, st *model.State, agentInstances map[string]Agent[I, O]) (compose.Runnable[I, O], error) {
	// 初始化状态：一次调用一个状态实例，引擎自身不跨调用缓存任何状态
	stateGenFunc := func(ctx context.Context) *model.State {
		return st
	}

	// 创建 Agent 流程图
	graph := compose.NewGraph[I, O](
		compose.WithGenLocalState(stateGenFunc),
	)

	// 构造任务图 - 使用映射确保名字与实例对应
	for agentName, agentInstance := range agentInstances {
		key, node, nameOption := agentInstance.NewGraphNode(ctx)
		// 验证返回的key与预期的agentName一致
		if key != agentName {
			slog.Error("Agent key mismatch: expected %s, got %s", agentName, key)
			return nil, fmt.Errorf("agent key mismatch: expected %s, got %s", agentName, key)
		}

		// 添加节点
		graph.AddGraphNode(key, node, nameOption)
	}

	// 构造branch - 每个阶段结束后按状态中的Goto流转
	for agentName := range agentInstances {
		graph.AddBranch(agentName,
			compose.NewGraphBranch(routeToNextAgent, getAgentGraphMap()))
	}

	// 构造起始边
	graph.AddEdge(compose.START, consts.Observer)

	// 编译图
	runnable, err := graph.Compile(ctx,
		compose.WithGraphName(consts.GraphName),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
	)
	if err != nil {
		slog.Error("buildGraph failed, compile err = %v", err)
		return nil, err
	}
	return runnable, nil
}

// Run 执行一次端到端调用：构建图、跑完固定拓扑、返回终止状态。
// 对调用方而言是同步的，终止结果通过 state.Outcome 读取；
// 核心不做重试，重试属于包裹整个Run的调用方策略。
func Run(ctx context.Context, cfg *conf.AppConfig, conversation []*schema.Message, imageBase64 string, opts ...compose.Option) (*model.State, error) {
	st := NewState(cfg, conversation, imageBase64)

	graph, err := BuildAgentGraph[string, string](ctx, cfg, st)
	if err != nil {
		return nil, err
	}

	if _, err := graph.Invoke(ctx, consts.Observer, opts...); err != nil {
		return nil, err
	}
	return st, nil
}

// Stream 同Run，但以流式方式执行，中间产出经由回调推送。
// 返回前先读完输出流，保证状态已到达终态。
func Stream(ctx context.Context, cfg *conf.AppConfig, conversation []*schema.Message, imageBase64 string, opts ...compose.Option) (*model.State, error) {
	st := NewState(cfg, conversation, imageBase64)

	graph, err := BuildAgentGraph[string, string](ctx, cfg, st)
	if err != nil {
		return nil, err
	}

	sr, err := graph.Stream(ctx, consts.Observer, opts...)
	if err != nil {
		return nil, err
	}
	defer sr.Close()

	// 读完流，确保拓扑执行结束
	for {
		if _, err := sr.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return st, nil
}

// routeToNextAgent 根据状态中的Goto字段路由到下一个代理节点。
// 这是图中唯一的条件流转机制，各阶段只通过写Goto表达决策。
func routeToNextAgent(ctx context.Context, input string) (next string, err error) {
	defer func() {
		slog.Info("route_to_next_agent info, input = %s, next = %s", input, next)
	}()
	_ = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		next = state.Goto
		return nil
	})
	return next, nil
}

// getAgentGraphMap 返回所有可用的agent节点及其启用状态
// 注意：这个函数应该与BuildAgentGraph中的agentInstances保持一致
func getAgentGraphMap() map[string]bool {
	return map[string]bool{
		consts.Observer:  true, // 观察者，分析手掌照片并判定分支信号
		consts.Retriever: true, // 检索者，从知识库检索相关段落
		consts.Persona:   true, // 人格化输出者，生成最终解读文本
		compose.END:      true, // 流程结束节点，标记任务完成
	}
}
