package conf

// Model 单个模型配置
type Model struct {
	ModelID    string `yaml:"model_id" mapstructure:"model_id"`       // 模型ID
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`       // 模型服务的基础URL地址
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`         // 模型服务的API密钥
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"`   // 单次生成的最大token数
	TimeoutSec int    `yaml:"timeout_sec" mapstructure:"timeout_sec"` // 单次调用的超时秒数，超时按协作方失败处理
}

// ModelConfig 模型配置
type ModelConfig struct {
	VisionModel    Model `yaml:"vision_model" mapstructure:"vision_model"`       // 观察阶段使用的视觉模型
	PersonaModel   Model `yaml:"persona_model" mapstructure:"persona_model"`     // 合成阶段使用的对话模型
	EmbeddingModel Model `yaml:"embedding_model" mapstructure:"embedding_model"` // 检索与入库使用的向量模型
}

// MongoConfig 向量知识库配置
type MongoConfig struct {
	URI        string `yaml:"uri" mapstructure:"uri"`                 // MongoDB Atlas 连接串
	Database   string `yaml:"database" mapstructure:"database"`       // 数据库名
	Collection string `yaml:"collection" mapstructure:"collection"`   // 集合名
	Index      string `yaml:"index" mapstructure:"index"`             // 向量索引名
	TimeoutSec int    `yaml:"timeout_sec" mapstructure:"timeout_sec"` // 单次检索调用的超时秒数
}

// RAGConfig 检索配置
type RAGConfig struct {
	TopK int `yaml:"top_k" mapstructure:"top_k"` // 检索扇出K，可配置调整，返回不足K条不算失败
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"` // 监听地址，如 127.0.0.1:8888
}

// SettingConfig 应用运行配置
type SettingConfig struct {
	MaxLimitToken int `yaml:"max_limit_token" mapstructure:"max_limit_token"` // 输入消息的最大限制长度
}

// AppConfig 应用配置
type AppConfig struct {
	Model   ModelConfig   `yaml:"model" mapstructure:"model"`     // 大语言模型相关配置
	Mongo   MongoConfig   `yaml:"mongo" mapstructure:"mongo"`     // 向量知识库相关配置
	RAG     RAGConfig     `yaml:"rag" mapstructure:"rag"`         // 检索相关配置
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`   // HTTP服务相关配置
	Setting SettingConfig `yaml:"setting" mapstructure:"setting"` // 应用运行时配置参数
}
