package consts

const (
	GraphName = "yasaa_vision_agent" // 代理图名称，用于标识整个手相解读工作流
)

// Agent 名字
const (
	Observer  = "observer"  // 观察者，负责分析手掌照片并生成技术观察报告
	Retriever = "retriever" // 检索者，负责从知识库中检索相关的书籍段落
	Persona   = "persona"   // 人格化输出者，负责以固定人设生成最终解读文本
)

// GetAgentNameList 返回列表
func GetAgentNameList() []string {
	return []string{
		Observer,
		Retriever,
		Persona,
	}
}

// 面向用户的固定话术。
// 两类"没有结果"必须使用不同文案：未检测到手掌是正常的终止结果，
// 协作方调用失败才是故障，二者不能让用户混淆。
const (
	// MsgNoHandDetected 未检测到手掌时的提示语（正常终止，不是错误）
	MsgNoHandDetected = "Kuzum, gönderdiğin fotoğrafta bir el göremedim. Avuç içini net gösteren bir fotoğraf yükler misin?"

	// MsgStageFailure 任一阶段协作方调用失败时的通用道歉语
	MsgStageFailure = "Kusura bakma canım, şu an falına bakamıyorum. Kısa bir süre sonra tekrar dener misin?"
)
