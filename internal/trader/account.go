package trader

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/truongcongthanh2000/command-trade/internal/models"
)

// Summarize 把账户快照汇总成报告文本, 并返回账户级的总ROI(%)和总未实现盈亏。
//
// 每个仓位的ROI以仓位保证金为基数; 总ROI以钱包总额为基数
// (totalUnrealizedProfit / totalWalletBalance * 100), 两者口径不同, 不可混用。
// skipWhenEmpty 为 true 且没有有效仓位时返回 ("", 0, 0),
// 让定时任务可以直接跳过本轮通知而不是发送一份空报告。
func Summarize(accInfo *models.AccountInfo, quoteAsset string, skipWhenEmpty bool) (string, float64, float64) {
	var blocks []string
	for _, position := range accInfo.Positions {
		amount, _ := strconv.ParseFloat(position.PositionAmt, 64)
		if math.Abs(amount) <= Epsilon {
			// 挂单占用的保证金, 不是实际敞口
			continue
		}
		blocks = append(blocks, positionBlock(position, amount, quoteAsset))
	}

	if skipWhenEmpty && len(blocks) == 0 {
		return "", 0, 0
	}

	totalWallet := parse(accInfo.TotalWalletBalance)
	totalUnrealized := parse(accInfo.TotalUnrealizedProfit)
	var totalROI float64
	if totalWallet != 0 {
		totalROI = round2(totalUnrealized / totalWallet * 100)
	}

	var sb strings.Builder
	sb.WriteString("**Futures Account**\n")
	for _, block := range blocks {
		sb.WriteString(block)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "**Before Total Balance**: **$%.2f**\n", totalWallet)
	fmt.Fprintf(&sb, "**Total Initial Margin**: **$%.2f** (Position: **$%.2f**, Open: **$%.2f**)\n",
		parse(accInfo.TotalInitialMargin), parse(accInfo.TotalPositionInitialMargin), parse(accInfo.TotalOpenOrderInitialMargin))
	fmt.Fprintf(&sb, "**Available Balance**: **$%.2f**\n\n", parse(accInfo.AvailableBalance))
	fmt.Fprintf(&sb, "**Total Unrealized Profit**: **$%.2f**\n", totalUnrealized)
	fmt.Fprintf(&sb, "**Total ROI**: **%.2f%%**\n", totalROI)
	fmt.Fprintf(&sb, "**After Total Balance**: **$%.2f**", parse(accInfo.TotalMarginBalance))

	return sb.String(), totalROI, round2(totalUnrealized)
}

// positionBlock 渲染单个仓位的报告段落。
func positionBlock(position models.Position, amount float64, quoteAsset string) string {
	url := "https://www.binance.com/en/futures/" + position.Symbol

	// 方向只看数量的符号
	direction := "**SHORT**"
	if amount > 0 {
		direction = "**BUY**"
	}

	// 等效杠杆 = round(名义价值 / 仓位保证金)
	positionMargin := parse(position.PositionInitialMargin)
	var leverage float64
	if positionMargin != 0 {
		leverage = math.Abs(math.Round(parse(position.Notional) / positionMargin))
	}

	unrealized := parse(position.UnrealizedProfit)
	var roi float64
	if positionMargin != 0 {
		roi = round2(unrealized / positionMargin * 100)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s](%s): %s **%.0fx**, margin: **$%s**\n", position.Symbol, url, direction, leverage, position.PositionInitialMargin)
	fmt.Fprintf(&sb, "- entryPrice: **$%s**, markPrice: **$%s**\n", position.EntryPrice, position.MarkPrice)
	fmt.Fprintf(&sb, "- PNL: **$%.2f**, ROI: **%.2f%%**", unrealized, roi)
	if parse(position.OpenOrderInitialMargin) > Epsilon {
		fmt.Fprintf(&sb, ", openMargin: **$%s**\n", position.OpenOrderInitialMargin)
	} else {
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "- Close position: `/fclose %s`\n\n", strings.TrimSuffix(position.Symbol, quoteAsset))
	return sb.String()
}

func parse(value string) float64 {
	f, _ := strconv.ParseFloat(value, 64)
	return f
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
