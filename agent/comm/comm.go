package comm

import (
	"context"

	"github.com/HildaM/logs/slog"

	"github.com/cloudwego/eino/schema"
)

// TruncateMessages 输入消息长度限制处理。
// maxLimit 来自每次调用的状态拷贝，阶段逻辑不读全局配置。
// 对话消息归调用方所有，截断时拷贝后修改，不改写原消息。
func TruncateMessages(ctx context.Context, inputList []*schema.Message, maxLimit int) []*schema.Message {
	if maxLimit <= 0 {
		return inputList
	}

	sum := 0
	outList := make([]*schema.Message, 0, len(inputList))
	for _, input := range inputList {
		if input == nil {
			slog.Debug("TruncateMessages debug, input is nil")
			outList = append(outList, input)
			continue
		}

		length := len(input.Content)
		if length >= maxLimit {
			slog.Debug("TruncateMessages debug, input content length is %d, max limit token is %d", length, maxLimit)
			// 截断, 取后半段部分的最新信息
			msg := *input
			msg.Content = input.Content[length-maxLimit:]
			input = &msg
		}

		outList = append(outList, input)
		sum += len(input.Content)
	}

	slog.Debug("TruncateMessages debug, input content sum length is %d", sum)
	return outList
}
