package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HildaM/logs/slog"
)

// GetPromptTemplate 加载并返回一个提示模板
func GetPromptTemplate(ctx context.Context, promptName string) (string, error) {
	// 获取当前路径
	dir, err := os.Getwd()
	if err != nil {
		msg := fmt.Errorf("GetPromptTemplate failed, get current working directory, err: %w", err)
		slog.Error(msg.Error())
		return "", msg
	}

	// 从当前目录逐级向上查找 prompts 目录，兼容从子目录运行的场景
	for {
		templatePath := filepath.Join(dir, "prompts", fmt.Sprintf("%s.md", promptName))
		content, err := os.ReadFile(templatePath)
		if err == nil {
			return string(content), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			msg := fmt.Errorf("GetPromptTemplate failed, template %s.md not found under any prompts dir", promptName)
			slog.Error(msg.Error())
			return "", msg
		}
		dir = parent
	}
}
