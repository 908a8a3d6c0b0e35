package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/truongcongthanh2000/command-trade/internal/alert"
	"github.com/truongcongthanh2000/command-trade/internal/exchange"
	"github.com/truongcongthanh2000/command-trade/internal/journal"
	"github.com/truongcongthanh2000/command-trade/internal/market"
	"github.com/truongcongthanh2000/command-trade/internal/models"
	"github.com/truongcongthanh2000/command-trade/internal/notify"
	"github.com/truongcongthanh2000/command-trade/internal/scheduler"
	"github.com/truongcongthanh2000/command-trade/internal/trader"
	"go.uber.org/zap"
)

// statsJobKey 以目标聊天ID作为定时报表的调度键,
// 同一通道重复调度只替换周期, 不会叠加多个定时器。
func statsJobKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// commandTimeout 是单条命令访问交易所接口的超时时间。
const commandTimeout = 30 * time.Second

// Options 汇集Bot运行所需的全部依赖。
type Options struct {
	API      *tgbotapi.BotAPI
	Config   *models.Config
	Trader   *trader.Trader
	Market   *market.Service
	Exchange exchange.Exchange
	Sched    *scheduler.Scheduler
	Watcher  *alert.Watcher
	Notifier *notify.Notifier
	Location *time.Location
	Logger   *zap.SugaredLogger
}

// Bot 是Telegram命令层: 长轮询接收命令, 解析参数后驱动交易/行情/告警组件,
// 所有回复都经由通知队列异步发送。
type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *models.Config
	trader   *trader.Trader
	market   *market.Service
	ex       exchange.Exchange
	sched    *scheduler.Scheduler
	watcher  *alert.Watcher
	notifier *notify.Notifier
	location *time.Location
	logger   *zap.SugaredLogger
}

// New 创建Bot实例。
func New(opts Options) *Bot {
	return &Bot{
		api:      opts.API,
		cfg:      opts.Config,
		trader:   opts.Trader,
		market:   opts.Market,
		ex:       opts.Exchange,
		sched:    opts.Sched,
		watcher:  opts.Watcher,
		notifier: opts.Notifier,
		location: opts.Location,
		logger:   opts.Logger,
	}
}

// Run 注册命令菜单并进入长轮询循环, ctx取消后返回。
func (b *Bot) Run(ctx context.Context) error {
	if err := b.registerCommands(); err != nil {
		b.logger.Warnw("注册命令菜单失败", "error", err)
	}
	b.sendStartupMessage()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// registerCommands 把命令清单同步到Telegram的命令菜单。
func (b *Bot) registerCommands() error {
	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "help", Description: "List all commands"},
		tgbotapi.BotCommand{Command: "info", Description: "Get spot/futures account info"},
		tgbotapi.BotCommand{Command: "forder", Description: "Place order 'forder buy/sell coin leverage margin sl(opt) tp(opt)'"},
		tgbotapi.BotCommand{Command: "fclose", Description: "Close positions 'fclose coin'"},
		tgbotapi.BotCommand{Command: "fch", Description: "Get chart 'fch coin interval(opt, df=15m) range(opt, df=21)'"},
		tgbotapi.BotCommand{Command: "fp", Description: "Get prices 'fp coin1 coin2 ...'"},
		tgbotapi.BotCommand{Command: "fstats", Description: "Schedule get stats 'fstats interval(seconds)'"},
		tgbotapi.BotCommand{Command: "falert", Description: "Track price alert 'falert coin price'"},
		tgbotapi.BotCommand{Command: "falert_list", Description: "List price alerts"},
		tgbotapi.BotCommand{Command: "falert_remove", Description: "Remove price alert 'falert_remove coin'"},
		tgbotapi.BotCommand{Command: "fhistory", Description: "Order history 'fhistory coin limit(opt, df=10)'"},
	)
	_, err := b.api.Request(commands)
	return err
}

// sendStartupMessage 启动时向群里报告服务器公网IP, 方便核对白名单。
func (b *Bot) sendStartupMessage() {
	ip, err := publicIP()
	if err != nil {
		b.logger.Warnw("查询公网IP失败", "error", err)
		ip = "unknown"
	}
	b.reply(b.cfg.Telegram.GroupChatID,
		fmt.Sprintf("👋 Hello, your server public IP is `%s`\nCommand `/fstats` interval(seconds) to schedule get stats for current positions", ip))
}

// publicIP 通过 api.ipify.org 查询出口IP。
func publicIP() (string, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get("https://api.ipify.org")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// handleUpdate 分发一条消息。只接受配置群聊里的命令, 其余消息一律忽略。
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if msg.Chat == nil || msg.Chat.ID != b.cfg.Telegram.GroupChatID {
		b.logger.Warnw("忽略来自未授权会话的命令", "command", msg.Command())
		return
	}

	args := strings.Fields(msg.CommandArguments())
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch msg.Command() {
	case "help", "start":
		b.handleHelp()
	case "info":
		b.handleInfo(cmdCtx)
	case "forder":
		b.handleOrder(args)
	case "fclose":
		b.handleClose(args)
	case "fch":
		b.handleChart(cmdCtx, args)
	case "fp":
		b.handlePrices(cmdCtx, args)
	case "fstats":
		b.handleStats(args)
	case "falert":
		b.handleAlert(args)
	case "falert_list":
		b.handleAlertList()
	case "falert_remove":
		b.handleAlertRemove(args)
	case "fhistory":
		b.handleHistory(args)
	}
}

func (b *Bot) handleHelp() {
	msg := "👋 Hello, list all commands:\n"
	msg += "/help - List all commands\n"
	msg += "/info - Get info current spot/futures account: balance, pnl, positions, ...\n"
	msg += "/forder - Place order 'forder buy/sell coin leverage margin sl(optional) tp(optional)'\n"
	msg += "/fclose - Close all positions 'fclose coin'\n"
	msg += "/fch - Get chart 'fch coin interval(optional, default=15m) range(optional, default=21)'\n"
	msg += "/fp - Get prices 'fp coin1 coin2 ...'\n"
	msg += "/fstats - Schedule get stats for current positions 'fstats interval(seconds)'\n"
	msg += "/falert - Track price alert 'falert coin price'\n"
	msg += "/falert_list - List active price alerts\n"
	msg += "/falert_remove - Remove price alert 'falert_remove coin'\n"
	msg += "/fhistory - Order history 'fhistory coin limit(optional, default=10)'"
	b.reply(b.cfg.Telegram.GroupChatID, msg)
}

// handleInfo 汇总现货余额和合约账户概览。
func (b *Bot) handleInfo(ctx context.Context) {
	spot, err := b.market.SpotReport(ctx, b.cfg.QuoteAsset)
	if err != nil {
		b.replyError("Error Command.info", err)
		return
	}
	futuresReport, _, _, err := b.trader.Summary(false)
	if err != nil {
		b.replyError("Error Command.info", err)
		return
	}
	b.reply(b.cfg.Telegram.GroupChatID, spot+"\n--------------------\n"+futuresReport)
}

// handleOrder 处理开仓命令: forder side coin leverage margin [sl] [tp]。
// 只校验杠杆和保证金能否解析成数字, 其余交给交易所判断。
func (b *Bot) handleOrder(args []string) {
	if len(args) < 4 {
		b.reply(b.cfg.Telegram.GroupChatID, "👋 Usage: /forder buy/sell coin leverage margin sl(optional) tp(optional)")
		return
	}
	side, coin := args[0], args[1]
	leverage, err := strconv.Atoi(args[2])
	if err != nil {
		b.replyError("Error Command.forder", fmt.Errorf("invalid leverage %q: %w", args[2], err))
		return
	}
	margin, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		b.replyError("Error Command.forder", fmt.Errorf("invalid margin %q: %w", args[3], err))
		return
	}
	stopPrice, takeProfitPrice := "", ""
	if len(args) > 4 {
		stopPrice = args[4]
	}
	if len(args) > 5 {
		takeProfitPrice = args[5]
	}

	result, err := b.trader.OpenPosition(side, coin, leverage, margin, stopPrice, takeProfitPrice)
	if err != nil {
		b.replyError(fmt.Sprintf("Error Command.forder - %s - %s", side, coin), err)
		return
	}
	if !result.Ok {
		b.replyBatchErrors("Error Command.forder", result.Symbol, result.Orders, result.Responses)
		return
	}

	msg := fmt.Sprintf("👋 Your order for %s is successful\n", result.Symbol)
	for _, order := range result.Orders {
		msg += describeOrder(order)
	}
	b.reply(b.cfg.Telegram.GroupChatID, msg)
}

// handleClose 处理平仓命令并报告每单的已实现盈亏。
func (b *Bot) handleClose(args []string) {
	if len(args) < 1 {
		b.reply(b.cfg.Telegram.GroupChatID, "👋 Usage: /fclose coin")
		return
	}
	coin := args[0]

	result, err := b.trader.ClosePosition(coin)
	if err != nil {
		b.replyError(fmt.Sprintf("Error Command.fclose - %s", coin), err)
		return
	}
	if len(result.Orders) == 0 {
		b.reply(b.cfg.Telegram.GroupChatID, fmt.Sprintf("👋 No positions to close for %s", result.Symbol))
		return
	}
	if !result.Ok && result.CancelErr == nil {
		b.replyBatchErrors("Error Command.fclose", result.Symbol, result.Orders, result.Responses)
		return
	}

	var msg string
	if result.CancelErr != nil {
		// 平仓单已成交, 但残留的止损/止盈挂单没撤掉, 必须明确提示人工处理
		msg = fmt.Sprintf("⚠️ Your close positions for %s filled, but cancelling the leftover open orders failed: %v\nCancel them manually, they can still trigger without a position.\n",
			result.Symbol, result.CancelErr)
	} else {
		msg = fmt.Sprintf("👋 Your close positions for %s is successful\n", result.Symbol)
	}
	for idx, order := range result.Orders {
		closure := result.Closures[idx]
		line := fmt.Sprintf("- %s %s, orderId: %d, pnl: **$%.2f** (fee: $%.2f)",
			order.Side, order.Quantity, closure.OrderID, closure.PnL, closure.Commission)
		if closure.NoFills {
			line += " ⚠️ no fills found yet, verify manually"
		}
		msg += line + "\n"
	}
	b.reply(b.cfg.Telegram.GroupChatID, msg)
}

// handleChart 输出K线表格, 标题附带24小时行情摘要。
func (b *Bot) handleChart(ctx context.Context, args []string) {
	if len(args) < 1 {
		b.reply(b.cfg.Telegram.GroupChatID, "👋 Usage: /fch coin interval(optional) range(optional)")
		return
	}
	symbol := b.trader.Symbol(args[0])
	interval := ""
	limit := 0
	if len(args) > 1 {
		interval = args[1]
	}
	if len(args) > 2 {
		if n, err := strconv.Atoi(args[2]); err == nil {
			limit = n
		}
	}

	table, err := b.market.KlineTable(ctx, symbol, interval, limit)
	if err != nil {
		b.replyError(fmt.Sprintf("Error Command.fch - %s", symbol), err)
		return
	}
	caption, err := b.market.TickerCaption(ctx, symbol, b.pricePrecision(symbol))
	if err != nil {
		b.replyError(fmt.Sprintf("Error Command.fch - %s", symbol), err)
		return
	}
	b.reply(b.cfg.Telegram.GroupChatID, caption+"\n```\n"+table+"\n```")
}

// handlePrices 逐个币种输出24小时行情摘要。
func (b *Bot) handlePrices(ctx context.Context, args []string) {
	if len(args) < 1 {
		b.reply(b.cfg.Telegram.GroupChatID, "👋 Usage: /fp coin1 coin2 ...")
		return
	}
	msg := ""
	for _, coin := range args {
		symbol := b.trader.Symbol(coin)
		caption, err := b.market.TickerCaption(ctx, symbol, b.pricePrecision(symbol))
		if err != nil {
			b.replyError(fmt.Sprintf("Error Command.fp - %s", symbol), err)
			continue
		}
		msg += caption + "\n"
	}
	if msg != "" {
		b.reply(b.cfg.Telegram.GroupChatID, msg)
	}
}

// handleStats 按给定秒数调度定时报表, 重复调用只替换周期。
func (b *Bot) handleStats(args []string) {
	if len(args) < 1 {
		b.reply(b.cfg.Telegram.GroupChatID, "👋 Usage: /fstats interval(seconds)")
		return
	}
	seconds, err := strconv.Atoi(args[0])
	if err != nil || seconds <= 0 {
		b.replyError("Error Command.fstats", fmt.Errorf("invalid interval %q", args[0]))
		return
	}

	b.sched.Schedule(statsJobKey(b.cfg.Telegram.PnlChatID), time.Duration(seconds)*time.Second, b.statsTick)
	b.reply(b.cfg.Telegram.GroupChatID, fmt.Sprintf("Set stats successful!, interval=%ds", seconds))
}

// statsTick 是定时报表任务: 有持仓才发报告, ROI超过阈值时在标题后追加信号行。
func (b *Bot) statsTick() {
	report, totalROI, totalPnl, err := b.trader.Summary(true)
	if err != nil {
		b.logger.Errorw("定时报表获取账户信息失败", "error", err)
		b.notifier.Push(notify.Message{
			ChatID: b.cfg.Telegram.PnlChatID,
			Title:  "Error stats",
			Body:   err.Error(),
		})
		return
	}
	if report == "" {
		return
	}

	now := time.Now().In(b.location)
	title := fmt.Sprintf("👋 Stats - %s", now.Format("2006-01-02 15:04:05"))
	if totalROI >= b.cfg.Telegram.ROISignal || totalROI <= -b.cfg.Telegram.ROISignal {
		title += fmt.Sprintf("\n%s - **$%.2f**", b.cfg.Telegram.Me, totalPnl)
	}
	b.notifier.Push(notify.Message{
		ChatID: b.cfg.Telegram.PnlChatID,
		Title:  title,
		Body:   report,
	})
}

// handleAlert 注册一条价格告警: falert coin price。
// 触发方向由注册时的现价决定, 同一币种重复注册会覆盖旧目标。
func (b *Bot) handleAlert(args []string) {
	if len(args) < 2 {
		b.reply(b.cfg.Telegram.GroupChatID, "👋 Usage: /falert coin price")
		return
	}
	symbol := b.trader.Symbol(args[0])
	target, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		b.replyError("Error Command.falert", fmt.Errorf("invalid price %q: %w", args[1], err))
		return
	}
	currentPrice, err := b.ex.GetPrice(symbol)
	if err != nil {
		b.replyError(fmt.Sprintf("Error Command.falert - %s", symbol), err)
		return
	}

	registered := b.watcher.Track(symbol, target, currentPrice)
	b.reply(b.cfg.Telegram.GroupChatID,
		fmt.Sprintf("👋 Alert registered: %s (current price %s)",
			registered, strconv.FormatFloat(currentPrice, 'f', -1, 64)))
}

func (b *Bot) handleAlertList() {
	alerts := b.watcher.List()
	if len(alerts) == 0 {
		b.reply(b.cfg.Telegram.GroupChatID, "👋 No active alerts")
		return
	}
	msg := "👋 Active alerts:\n"
	for _, a := range alerts {
		msg += "- " + a.String() + "\n"
	}
	b.reply(b.cfg.Telegram.GroupChatID, msg)
}

func (b *Bot) handleAlertRemove(args []string) {
	if len(args) < 1 {
		b.reply(b.cfg.Telegram.GroupChatID, "👋 Usage: /falert_remove coin")
		return
	}
	symbol := b.trader.Symbol(args[0])
	if b.watcher.Remove(symbol) {
		b.reply(b.cfg.Telegram.GroupChatID, fmt.Sprintf("👋 Alert for %s removed", symbol))
	} else {
		b.reply(b.cfg.Telegram.GroupChatID, fmt.Sprintf("👋 No alert found for %s", symbol))
	}
}

// handleHistory 输出最近的订单流水: fhistory coin [limit]。
func (b *Bot) handleHistory(args []string) {
	if len(args) < 1 {
		b.reply(b.cfg.Telegram.GroupChatID, "👋 Usage: /fhistory coin limit(optional)")
		return
	}
	coin := args[0]
	limit := 10
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := b.trader.History(coin, limit)
	if err != nil {
		b.replyError(fmt.Sprintf("Error Command.fhistory - %s", coin), err)
		return
	}
	if len(entries) == 0 {
		b.reply(b.cfg.Telegram.GroupChatID, fmt.Sprintf("👋 No orders recorded for %s", b.trader.Symbol(coin)))
		return
	}

	msg := fmt.Sprintf("👋 Last %d orders for %s:\n", len(entries), b.trader.Symbol(coin))
	for _, entry := range entries {
		line := fmt.Sprintf("- %s %s %s %s", entry.Time.In(b.location).Format("01-02 15:04:05"), entry.Kind, entry.Side, entry.Type)
		if entry.Quantity != "" {
			line += " qty " + entry.Quantity
		}
		if entry.StopPrice != "" {
			line += " stop " + entry.StopPrice
		}
		if entry.Kind == journal.KindClose {
			line += fmt.Sprintf(" pnl $%.2f", entry.PnL)
		}
		msg += line + "\n"
	}
	b.reply(b.cfg.Telegram.GroupChatID, msg)
}

// describeOrder 把一条订单渲染成回执里的一行。
func describeOrder(order models.BatchOrder) string {
	line := fmt.Sprintf("- %s %s %s", order.Type, order.Side, order.Symbol)
	if order.Quantity != "" {
		line += ", quantity: " + order.Quantity
	}
	if order.StopPrice != "" {
		line += ", stopPrice: " + order.StopPrice
	}
	return line + "\n"
}

// replyBatchErrors 汇报批次里被拒绝的订单。
// 找不到被拒条目时退回一条通用错误, 保证失败永远有回执。
func (b *Bot) replyBatchErrors(title, symbol string, orders []models.BatchOrder, responses []models.BatchOrderResponse) {
	msg := ""
	for idx := range responses {
		if !responses[idx].Rejected() {
			continue
		}
		msg += fmt.Sprintf("%s - %s - %s - %s\nError: %s\n",
			title, orders[idx].Side, orders[idx].Type, symbol, responses[idx].Msg)
	}
	if msg == "" {
		msg = fmt.Sprintf("%s - %s\nError: operation failed, check the logs", title, symbol)
	}
	b.reply(b.cfg.Telegram.GroupChatID, msg)
}

// pricePrecision 查询交易对的价格精度, 失败时退回默认值。
func (b *Bot) pricePrecision(symbol string) int {
	info, err := b.ex.GetSymbolInfo(symbol)
	if err != nil {
		return market.DefaultPricePrecision
	}
	return info.PricePrecision
}

// reply 把文本回复投递到通知队列。
func (b *Bot) reply(chatID int64, text string) {
	b.notifier.Push(notify.Message{ChatID: chatID, Body: text})
}

// replyError 记日志的同时向群里报错。
func (b *Bot) replyError(title string, err error) {
	b.logger.Errorw("命令执行失败", "title", title, "error", err)
	b.notifier.Push(notify.Message{
		ChatID: b.cfg.Telegram.GroupChatID,
		Title:  title,
		Body:   "Error: " + err.Error(),
	})
}
