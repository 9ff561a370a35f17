package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/yasaa/yasaa-vision-go/agent"
	"github.com/yasaa/yasaa-vision-go/entity/conf"
	"github.com/yasaa/yasaa-vision-go/entity/model"
	"github.com/yasaa/yasaa-vision-go/ingest"
	"github.com/yasaa/yasaa-vision-go/repo/callback"
	"github.com/yasaa/yasaa-vision-go/server"
)

func main() {
	imagePath := flag.String("image", "", "手掌照片路径")
	serverMode := flag.Bool("server", false, "以HTTP服务方式运行")
	ingestDir := flag.String("ingest", "", "资料目录，离线导入知识库后退出")
	flag.Parse()

	// 初始化配置
	if err := conf.Init(); err != nil {
		log.Fatal(err)
	}

	switch {
	case *ingestDir != "":
		if err := ingest.Run(context.Background(), conf.GetCfg(), *ingestDir); err != nil {
			slog.Fatal("ingest failed, err: %v", err)
		}
	case *serverMode:
		server.Run(conf.GetCfg())
	default:
		runConsole(*imagePath)
	}
}

// runConsole 运行控制台：读一张照片和一个问题，跑一次完整调用
func runConsole(imagePath string) {
	ctx := context.Background()

	if imagePath == "" {
		slog.Fatal("runConsole failed, image path required, use -image <path>")
		return
	}

	// 读取并编码手掌照片
	data, err := os.ReadFile(imagePath)
	if err != nil {
		slog.Fatal("runConsole failed, read image err: %v", err)
		return
	}
	imageBase64 := base64.StdEncoding.EncodeToString(data)

	// 读取用户终端输入
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Sorunu yaz: ")

	// 构造用户输入Prompt
	userPrompt, _ := reader.ReadString('\n')
	userPrompt = strings.TrimSpace(userPrompt) // 去除换行符
	userMessage := []*schema.Message{
		schema.UserMessage(userPrompt),
	}

	// 流式输出
	outChan := make(chan string)
	go func() {
		for out := range outChan {
			fmt.Print(out)
		}
	}()

	st, err := agent.Stream(ctx, conf.GetCfg(), userMessage, imageBase64,
		compose.WithCallbacks(&callback.LoggerCallback{
			Out: outChan,
		}))
	if err != nil {
		slog.Error("Stream failed, err: %v", err)
		return
	}

	// 渲染终态
	status, text := st.Outcome()
	if status == model.StatusFailed {
		slog.Error("run failed, stage error = %+v", st.Err)
	}
	fmt.Printf("\n\n%s\n", text)
}
