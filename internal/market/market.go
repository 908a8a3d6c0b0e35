package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
)

const (
	// DefaultInterval 是未指定周期时使用的K线周期。
	DefaultInterval = "15m"
	// DefaultKlineLimit 是未指定范围时抓取的K线条数。
	DefaultKlineLimit = 21
	// DefaultPricePrecision 是交易规则缺失时行情价格的显示精度。
	DefaultPricePrecision = 4

	// epsilon 以下的现货余额视为尘埃, 不计入报告。
	epsilon = 1e-2
)

// Service 封装行情查询: 合约K线/24小时行情走合约客户端, 现货余额走现货客户端。
// K线和24小时行情是公共接口, 不需要API Key。
type Service struct {
	futuresClient *futures.Client
	spotClient    *binance.Client
	location      *time.Location
}

// NewService 创建行情服务, location用于K线时间列的显示时区。
func NewService(apiKey, secretKey string, location *time.Location) *Service {
	return &Service{
		futuresClient: futures.NewClient(apiKey, secretKey),
		spotClient:    binance.NewClient(apiKey, secretKey),
		location:      location,
	}
}

// KlineTable 抓取最近的合约K线并渲染成等宽文本表格。
// interval为空时用默认周期, limit<=0时用默认条数。
func (s *Service) KlineTable(ctx context.Context, symbol, interval string, limit int) (string, error) {
	if interval == "" {
		interval = DefaultInterval
	}
	if limit <= 0 {
		limit = DefaultKlineLimit
	}

	klines, err := s.futuresClient.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return "", err
	}
	return renderKlineTable(symbol, interval, klines, s.location), nil
}

// TickerCaption 生成交易对的24小时行情摘要, 附带合约页面链接。
func (s *Service) TickerCaption(ctx context.Context, symbol string, pricePrecision int) (string, error) {
	stats, err := s.futuresClient.NewListPriceChangeStatsService().
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return "", err
	}
	if len(stats) == 0 {
		return "", fmt.Errorf("无交易对 %s 的24小时行情", symbol)
	}
	return buildCaption(symbol, stats[0], pricePrecision), nil
}

// SpotReport 汇总现货账户的非尘埃余额。
// 余额以计价资产面值累加, 非稳定币按数量计, 与原始报表口径一致。
func (s *Service) SpotReport(ctx context.Context, quoteAsset string) (string, error) {
	account, err := s.spotClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return "", err
	}
	return renderSpotReport(account.Balances, quoteAsset), nil
}

// renderKlineTable 把K线渲染成文本表格, 时间列使用给定时区。
func renderKlineTable(symbol, interval string, klines []*futures.Kline, location *time.Location) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s - %s", symbol, interval))
	t.AppendHeader(table.Row{"Time", "Open", "High", "Low", "Close", "Volume"})
	for _, k := range klines {
		openTime := time.UnixMilli(k.OpenTime).In(location)
		t.AppendRow(table.Row{
			openTime.Format("01-02 15:04"),
			k.Open,
			k.High,
			k.Low,
			k.Close,
			k.Volume,
		})
	}
	return t.Render()
}

// buildCaption 按24小时行情拼装摘要: 现价/涨跌幅/开盘价/最高/最低,
// 最高最低附带相对开盘价的百分比。
func buildCaption(symbol string, stats *futures.PriceChangeStats, pricePrecision int) string {
	openPrice, _ := strconv.ParseFloat(stats.OpenPrice, 64)
	highPrice, _ := strconv.ParseFloat(stats.HighPrice, 64)
	lowPrice, _ := strconv.ParseFloat(stats.LowPrice, 64)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s](https://www.binance.com/en/futures/%s)\n", symbol, symbol)
	fmt.Fprintf(&b, "⚡ %-8s **%s**\n", "Price", formatPrice(stats.LastPrice, pricePrecision))
	fmt.Fprintf(&b, "🕢 %-8s**%s%%**\n", "24h", stats.PriceChangePercent)
	fmt.Fprintf(&b, "📝 %-8s**%s**\n", "OPrice", formatPrice(stats.OpenPrice, pricePrecision))
	fmt.Fprintf(&b, "⬆️ %-8s**%s (%.2f%%)**\n", "High", formatPrice(stats.HighPrice, pricePrecision), changePercent(highPrice, openPrice))
	fmt.Fprintf(&b, "⬇️ %-8s**%s (%.2f%%)**\n", "Low", formatPrice(stats.LowPrice, pricePrecision), changePercent(lowPrice, openPrice))
	return b.String()
}

// renderSpotReport 渲染现货余额清单和总额。
func renderSpotReport(balances []binance.Balance, quoteAsset string) string {
	var b strings.Builder
	b.WriteString("**SPOT Account**\n")

	total := 0.0
	for _, balance := range balances {
		free, _ := strconv.ParseFloat(balance.Free, 64)
		locked, _ := strconv.ParseFloat(balance.Locked, 64)
		amount := free + locked
		if amount <= epsilon {
			continue
		}
		total += amount
		if balance.Asset == quoteAsset {
			fmt.Fprintf(&b, "%s: $%.2f\n", balance.Asset, amount)
		} else {
			fmt.Fprintf(&b, "[%s](https://www.binance.com/en/trade/%s_%s?type=spot): $%.2f\n",
				balance.Asset, balance.Asset, quoteAsset, amount)
		}
	}
	fmt.Fprintf(&b, "\n**Total balance**: %.2f", total)
	return b.String()
}

// formatPrice 把价格字符串按精度舍入并去掉尾随零。
func formatPrice(price string, precision int) string {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return price
	}
	out := d.Round(int32(precision)).String()
	if strings.Contains(out, ".") {
		out = strings.TrimRight(out, "0")
		out = strings.TrimSuffix(out, ".")
	}
	return out
}

// changePercent 计算相对开盘价的涨跌百分比, 开盘价为零时记零。
func changePercent(price, openPrice float64) float64 {
	if openPrice == 0 {
		return 0
	}
	return (price - openPrice) / openPrice * 100
}
