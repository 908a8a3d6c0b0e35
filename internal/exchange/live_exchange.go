package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/truongcongthanh2000/command-trade/internal/models"
	"go.uber.org/zap"
)

// LiveExchange 实现了 Exchange 接口，用于与真实的币安合约交易所进行交互。
type LiveExchange struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
	timeOffset int64
}

// NewLiveExchange 创建一个新的 LiveExchange 实例，并与服务器同步时间。
func NewLiveExchange(apiKey, secretKey, baseURL string, logger *zap.SugaredLogger) (*LiveExchange, error) {
	e := &LiveExchange{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}

	if err := e.syncTime(); err != nil {
		return nil, fmt.Errorf("与币安服务器同步时间失败: %v", err)
	}

	return e, nil
}

// syncTime 与币安服务器同步时间，计算时间偏移。
func (e *LiveExchange) syncTime() error {
	serverTime, err := e.GetServerTime()
	if err != nil {
		return err
	}
	localTime := time.Now().UnixMilli()
	e.timeOffset = serverTime - localTime
	e.logger.Infow("与币安服务器时间同步完成", "timeOffset(ms)", e.timeOffset)
	return nil
}

// doRequest 是一个通用的请求处理函数，用于向币安API发送请求。
func (e *LiveExchange) doRequest(method, endpoint string, params url.Values, signed bool) ([]byte, error) {
	fullURL := fmt.Sprintf("%s%s", e.baseURL, endpoint)
	queryParams := url.Values{}
	if params != nil {
		for k, v := range params {
			queryParams[k] = v
		}
	}

	var encodedParams string
	if signed {
		// 对于签名请求，添加时间戳并生成签名
		timestamp := time.Now().UnixMilli() + e.timeOffset
		queryParams.Set("timestamp", fmt.Sprintf("%d", timestamp))

		payloadToSign := queryParams.Encode()
		signature := e.sign(payloadToSign)
		encodedParams = fmt.Sprintf("%s&signature=%s", payloadToSign, signature)
	} else {
		encodedParams = queryParams.Encode()
	}

	var req *http.Request
	var err error

	if method == http.MethodGet {
		finalURL := fullURL
		if encodedParams != "" {
			finalURL = fmt.Sprintf("%s?%s", fullURL, encodedParams)
		}
		req, err = http.NewRequest(method, finalURL, nil)
	} else { // POST, PUT, DELETE
		req, err = http.NewRequest(method, fullURL, strings.NewReader(encodedParams))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}

	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %v", err)
	}

	req.Header.Set("X-MBX-APIKEY", e.apiKey)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("执行请求失败: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %v", err)
	}

	var binanceError models.Error
	if json.Unmarshal(body, &binanceError) == nil && binanceError.Code != 0 {
		return body, &binanceError
	}

	if resp.StatusCode != http.StatusOK {
		// 当API返回非200状态码时，我们将响应体和错误一起返回
		// 以便上层调用者可以记录详细的错误信息。
		return body, fmt.Errorf("API请求失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// sign 对请求参数进行签名。
func (e *LiveExchange) sign(data string) string {
	h := hmac.New(sha256.New, []byte(e.secretKey))
	h.Write([]byte(data))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// --- Exchange 接口实现 ---

// GetPrice 获取指定交易对的当前价格。
func (e *LiveExchange) GetPrice(symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	data, err := e.doRequest(http.MethodGet, "/fapi/v1/ticker/price", params, false)
	if err != nil {
		return 0, err
	}

	var ticker struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(data, &ticker); err != nil {
		return 0, err
	}

	return strconv.ParseFloat(ticker.Price, 64)
}

// GetSymbolInfo 获取交易对的交易规则 (数量精度、价格精度)。
func (e *LiveExchange) GetSymbolInfo(symbol string) (*models.SymbolInfo, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	data, err := e.doRequest(http.MethodGet, "/fapi/v1/exchangeInfo", params, false)
	if err != nil {
		return nil, err
	}

	var exchangeInfo models.ExchangeInfo
	if err := json.Unmarshal(data, &exchangeInfo); err != nil {
		return nil, err
	}

	for _, s := range exchangeInfo.Symbols {
		if s.Symbol == symbol {
			return &s, nil
		}
	}

	return nil, fmt.Errorf("未找到交易对 %s 的信息", symbol)
}

// PlaceBatchOrders 批量下单。订单按传入顺序提交, 币安按位置返回每个订单的结果:
// 成功条目携带 orderId, 失败条目携带负数 code 和 msg, 二者下标与请求对齐。
func (e *LiveExchange) PlaceBatchOrders(orders []models.BatchOrder) ([]models.BatchOrderResponse, error) {
	payload, err := json.Marshal(orders)
	if err != nil {
		return nil, fmt.Errorf("序列化批量订单失败: %v", err)
	}

	params := url.Values{}
	params.Set("batchOrders", string(payload))
	data, err := e.doRequest(http.MethodPost, "/fapi/v1/batchOrders", params, true)
	if err != nil {
		e.logger.Errorw("批量下单请求失败", "error", err, "raw_response", string(data))
		return nil, err
	}

	var responses []models.BatchOrderResponse
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, fmt.Errorf("解析批量下单响应失败: %v", err)
	}
	return responses, nil
}

// CancelAllOpenOrders 取消指定交易对的所有挂单。
func (e *LiveExchange) CancelAllOpenOrders(symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	_, err := e.doRequest(http.MethodDelete, "/fapi/v1/allOpenOrders", params, true)
	return err
}

// GetUserTrades 返回完全归属于指定订单的成交记录。
// userTrades接口不支持按orderId过滤, 因此取最近的成交在本地筛选。
func (e *LiveExchange) GetUserTrades(symbol string, orderID int64) ([]models.Trade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", "100")
	data, err := e.doRequest(http.MethodGet, "/fapi/v1/userTrades", params, true)
	if err != nil {
		return nil, err
	}

	var trades []models.Trade
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, err
	}

	var matched []models.Trade
	for _, t := range trades {
		if t.OrderID == orderID {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// GetAccountInfo 获取账户信息, 包含各项保证金汇总和持仓列表。
// 账户接口的持仓不带标记价格, 这里用premiumIndex一次性补齐。
func (e *LiveExchange) GetAccountInfo() (*models.AccountInfo, error) {
	data, err := e.doRequest(http.MethodGet, "/fapi/v2/account", nil, true)
	if err != nil {
		return nil, fmt.Errorf("获取账户信息失败: %v", err)
	}

	var accInfo models.AccountInfo
	if err := json.Unmarshal(data, &accInfo); err != nil {
		return nil, fmt.Errorf("解析账户信息失败: %v", err)
	}

	// 过滤掉既没有持仓也没有挂单保证金的条目
	var active []models.Position
	for _, p := range accInfo.Positions {
		posAmt, _ := strconv.ParseFloat(p.PositionAmt, 64)
		openMargin, _ := strconv.ParseFloat(p.OpenOrderInitialMargin, 64)
		if posAmt != 0 || openMargin != 0 {
			active = append(active, p)
		}
	}
	accInfo.Positions = active

	if len(accInfo.Positions) > 0 {
		if err := e.fillMarkPrices(accInfo.Positions); err != nil {
			// 标记价格仅用于展示, 拿不到时降级为空而不是整体失败
			e.logger.Warnw("获取标记价格失败", "error", err)
		}
	}

	return &accInfo, nil
}

// fillMarkPrices 从premiumIndex接口批量补齐持仓的标记价格。
func (e *LiveExchange) fillMarkPrices(positions []models.Position) error {
	data, err := e.doRequest(http.MethodGet, "/fapi/v1/premiumIndex", nil, false)
	if err != nil {
		return err
	}

	var marks []models.MarkPrice
	if err := json.Unmarshal(data, &marks); err != nil {
		return err
	}

	bySymbol := make(map[string]string, len(marks))
	for _, m := range marks {
		bySymbol[m.Symbol] = m.MarkPrice
	}
	for i := range positions {
		positions[i].MarkPrice = bySymbol[positions[i].Symbol]
	}
	return nil
}

// GetPositions 获取指定交易对的持仓信息; symbol为空时返回全部活跃持仓。
func (e *LiveExchange) GetPositions(symbol string) ([]models.Position, error) {
	accInfo, err := e.GetAccountInfo()
	if err != nil {
		return nil, err
	}
	if symbol == "" {
		return accInfo.Positions, nil
	}

	var positions []models.Position
	for _, p := range accInfo.Positions {
		if p.Symbol == symbol {
			positions = append(positions, p)
		}
	}
	return positions, nil
}

// GetPositionRisk 获取持仓风险信息, 用于读取当前杠杆倍数和保证金模式。
func (e *LiveExchange) GetPositionRisk(symbol string) ([]models.PositionRisk, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	data, err := e.doRequest(http.MethodGet, "/fapi/v2/positionRisk", params, true)
	if err != nil {
		return nil, err
	}

	var risks []models.PositionRisk
	if err := json.Unmarshal(data, &risks); err != nil {
		return nil, err
	}
	return risks, nil
}

// SetLeverage 设置杠杆。
func (e *LiveExchange) SetLeverage(symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	_, err := e.doRequest(http.MethodPost, "/fapi/v1/leverage", params, true)
	return err
}

// SetMarginType 设置保证金模式。
func (e *LiveExchange) SetMarginType(symbol string, marginType string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("marginType", marginType) // "ISOLATED" or "CROSSED"
	_, err := e.doRequest(http.MethodPost, "/fapi/v1/marginType", params, true)

	// 如果错误是币安的特定错误，并且错误码是 -4046 (No need to change margin type), 则忽略该错误
	if err != nil {
		if binanceErr, ok := err.(*models.Error); ok && binanceErr.Code == -4046 {
			e.logger.Info("保证金模式无需更改，已是目标模式。")
			return nil
		}
		return err
	}

	return nil
}

// GetServerTime 获取服务器时间
func (e *LiveExchange) GetServerTime() (int64, error) {
	data, err := e.doRequest(http.MethodGet, "/fapi/v1/time", nil, false)
	if err != nil {
		return 0, err
	}
	var serverTime struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(data, &serverTime); err != nil {
		return 0, err
	}
	return serverTime.ServerTime, nil
}
