package session

import (
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Store 前端侧的会话存储，用threadID进行索引。
// 对话历史由前端负责维护，编排核心本身不持久化任何状态；
// 此处粗略使用map实现，工程上可以用工业存储组件实现。
type Store struct {
	mu      sync.RWMutex
	history map[string][]*schema.Message // 每个会话的消息历史
	images  map[string]string            // 每个会话最近上传的照片，追问时无需重复上传
	reports map[string]string            // 每个会话最近一次的观察报告
}

// 全局会话存储实例
var storeImpl = Store{
	history: make(map[string][]*schema.Message),
	images:  make(map[string]string),
	reports: make(map[string]string),
}

// NewStore 返回全局会话存储实例
func NewStore() *Store {
	return &storeImpl
}

// History 返回会话的消息历史副本
func (s *Store) History(threadID string) []*schema.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.history[threadID]
	out := make([]*schema.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Append 追加本轮消息到会话历史
func (s *Store) Append(threadID string, msgs ...*schema.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[threadID] = append(s.history[threadID], msgs...)
}

// SetImage 记录会话最近上传的照片
func (s *Store) SetImage(threadID, imageBase64 string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[threadID] = imageBase64
}

// Image 返回会话最近上传的照片
func (s *Store) Image(threadID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.images[threadID]
}

// SetReport 记录会话最近一次的观察报告
func (s *Store) SetReport(threadID, report string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[threadID] = report
}

// Report 返回会话最近一次的观察报告
func (s *Store) Report(threadID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports[threadID]
}

// Reset 清空会话，开始新对话
func (s *Store) Reset(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, threadID)
	delete(s.images, threadID)
	delete(s.reports, threadID)
}
