// resumeprocessor 离线处理单个PDF简历：读取文本层，或用与服务端相同的提供方抽取结构化字段
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"resume-search/internal/config"
	appCoreLogger "resume-search/internal/logger"
	"resume-search/internal/parser"
	"resume-search/internal/processor"
	"resume-search/internal/types"

	"github.com/spf13/pflag"
)

var (
	configPath = pflag.StringP("config", "c", "", "配置文件路径")
	pdfPath    = pflag.StringP("pdf", "f", "", "PDF简历文件路径 (必填)")
	command    = pflag.String("cmd", "extract", "执行的命令: text=仅读取PDF文本层, extract=抽取结构化字段")
	modelType  = pflag.StringP("model-type", "m", string(types.ModelTypeGPTFitz), "抽取提供方: gpt_fitz 或 mistral")
	summary    = pflag.Bool("summary", false, "输出用于向量化的简历摘要而不是JSON")
	maxLen     = pflag.Int("maxlen", -1, "text 命令显示的最大字符数，-1 显示全部")
	timeout    = pflag.Duration("timeout", 5*time.Minute, "整体超时")
)

func main() {
	pflag.Parse()

	if _, err := appCoreLogger.Init(appCoreLogger.Config{Level: "warn", Format: "pretty", TimeFormat: "15:04:05"}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
	}

	if *pdfPath == "" {
		fmt.Fprintln(os.Stderr, "错误: 必须提供PDF文件路径 (--pdf)")
		pflag.Usage()
		os.Exit(1)
	}
	absPath, err := filepath.Abs(*pdfPath)
	if err != nil {
		exitf("无法获取文件的绝对路径: %v", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		exitf("无法访问文件 %s: %v", absPath, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *command {
	case "text":
		runText(ctx, absPath)
	case "extract":
		runExtract(ctx, absPath)
	default:
		fmt.Fprintf(os.Stderr, "错误: 未知命令 '%s'。支持的命令: text, extract\n", *command)
		pflag.Usage()
		os.Exit(1)
	}
}

func runText(ctx context.Context, path string) {
	extractor, err := parser.NewEinoPDFTextExtractor(ctx)
	if err != nil {
		exitf("创建PDF提取器失败: %v", err)
	}
	start := time.Now()
	text, meta, err := extractor.ExtractFromFile(ctx, path)
	if err != nil {
		exitf("提取PDF文本失败: %v", err)
	}
	fmt.Fprintf(os.Stderr, "提取完成, 耗时 %v, 共 %d 字符, 元数据 %v\n", time.Since(start), len(text), meta)

	runes := []rune(text)
	if *maxLen >= 0 && len(runes) > *maxLen {
		fmt.Println(string(runes[:*maxLen]))
		fmt.Printf("\n... (省略 %d 字符)\n", len(runes)-*maxLen)
		return
	}
	fmt.Println(text)
}

func runExtract(ctx context.Context, path string) {
	provider, err := types.ParseModelType(*modelType)
	if err != nil {
		exitf("%v", err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		exitf("加载配置失败: %v", err)
	}
	extractor, err := processor.BuildExtractor(ctx, cfg)
	if err != nil {
		exitf("初始化简历抽取器失败: %v", err)
	}

	start := time.Now()
	fields, err := extractor.Extract(processor.ContextWithJobID(ctx, "cli"), path, provider)
	if err != nil {
		exitf("抽取失败: %v", err)
	}
	fmt.Fprintf(os.Stderr, "抽取完成, 提供方 %s, 耗时 %v\n", provider, time.Since(start))

	if !*summary {
		out, err := json.MarshalIndent(fields, "", "  ")
		if err != nil {
			exitf("序列化结果失败: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	record, err := processor.BuildResumeRecord(fields, provider)
	if err != nil {
		exitf("抽取结果不完整: %v", err)
	}
	fmt.Println(processor.FormatResumeText(record))
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "错误: "+format+"\n", args...)
	os.Exit(1)
}
