package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"upbot/internal/app"
	upcfg "upbot/internal/config"
	"upbot/internal/logger"
)

func main() {
	cfgPath := flag.String("config", defaultConfigPath(), "配置文件路径")
	dumpConfig := flag.Bool("dump-config", false, "打印补全后的有效配置并退出")
	flag.Parse()

	cfg, err := upcfg.Load(*cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}

	if *dumpConfig {
		dump, err := cfg.Dump()
		if err != nil {
			log.Fatalf("导出配置失败: %v", err)
		}
		fmt.Print(dump)
		return
	}

	logger.SetLevel(cfg.App.LogLevel)
	w, logFile, err := logger.OpenDailyFile(cfg.App.LogsDir)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	defer logFile.Close()
	log.SetOutput(w)
	logger.SetOutput(w)
	logger.Infof("✓ 配置加载成功（模式=%s，周期=%s，指标=%s）",
		cfg.App.Mode, cfg.Trade.Interval, cfg.Trade.Operator)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, *cfgPath)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	if err := application.Run(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("UPBOT_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yaml"
}
