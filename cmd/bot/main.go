package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/truongcongthanh2000/command-trade/internal/alert"
	"github.com/truongcongthanh2000/command-trade/internal/bot"
	"github.com/truongcongthanh2000/command-trade/internal/config"
	"github.com/truongcongthanh2000/command-trade/internal/exchange"
	"github.com/truongcongthanh2000/command-trade/internal/journal"
	"github.com/truongcongthanh2000/command-trade/internal/logger"
	"github.com/truongcongthanh2000/command-trade/internal/market"
	"github.com/truongcongthanh2000/command-trade/internal/notify"
	"github.com/truongcongthanh2000/command-trade/internal/scheduler"
	"github.com/truongcongthanh2000/command-trade/internal/trader"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	flag.Parse()

	// 先用默认配置初始化日志, 加载配置文件后再按配置重建
	logger.InitDefault()

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 JSON 配置 ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	apiKey := os.Getenv("BINANCE_API_KEY")
	secretKey := os.Getenv("BINANCE_SECRET_KEY")
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if apiKey == "" || secretKey == "" {
		logger.S().Fatal("环境变量 BINANCE_API_KEY / BINANCE_SECRET_KEY 未设置")
	}
	if botToken == "" {
		logger.S().Fatal("环境变量 TELEGRAM_BOT_TOKEN 未设置")
	}

	location, err := time.LoadLocation(cfg.ReportTimezone)
	if err != nil {
		logger.S().Fatalf("无法加载时区 %s: %v", cfg.ReportTimezone, err)
	}

	// --- 交易所客户端 (带时间同步) ---
	ex, err := exchange.NewLiveExchange(apiKey, secretKey, cfg.BaseURL, logger.S())
	if err != nil {
		logger.S().Fatalf("无法创建交易所客户端: %v", err)
	}

	// --- 订单流水 ---
	jr, err := journal.NewBadgerJournal(cfg.DBPath)
	if err != nil {
		logger.S().Fatalf("无法打开订单流水数据库 %s: %v", cfg.DBPath, err)
	}
	defer jr.Close()

	// --- Telegram ---
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		logger.S().Fatalf("无法创建Telegram客户端: %v", err)
	}
	logger.S().Infof("Telegram已认证: %s", api.Self.UserName)

	notifier := notify.New(notify.NewTelegramSender(api), logger.S())
	defer notifier.Close()

	// --- 核心组件 ---
	tr := trader.New(ex, jr, cfg.QuoteAsset, logger.S())
	marketSvc := market.NewService(apiKey, secretKey, location)
	sched := scheduler.New(logger.S())
	defer sched.Stop()

	// 告警触发后推送到告警通道
	watcher := alert.NewWatcher(cfg.WSBaseURL, func(a alert.Alert, price float64) {
		notifier.Push(notify.Message{
			ChatID: cfg.Telegram.AlertChatID,
			Title:  "⚡ Price alert",
			Body:   a.String() + ", now " + strconv.FormatFloat(price, 'f', -1, 64),
		})
	}, logger.S())
	defer watcher.Stop()

	b := bot.New(bot.Options{
		API:      api,
		Config:   cfg,
		Trader:   tr,
		Market:   marketSvc,
		Exchange: ex,
		Sched:    sched,
		Watcher:  watcher,
		Notifier: notifier,
		Location: location,
		Logger:   logger.S(),
	})

	// --- 信号处理, 优雅退出 ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		logger.S().Infof("收到信号 %v, 准备退出...", sig)
		cancel()
	}()

	logger.S().Info("命令交易机器人已启动")
	if err := b.Run(ctx); err != nil && err != context.Canceled {
		logger.S().Errorf("机器人退出: %v", err)
	}
	logger.S().Info("已退出")
}
