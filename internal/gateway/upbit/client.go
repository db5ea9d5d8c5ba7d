// Package upbit 封装本程序所需的 Upbit REST 接口。
package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"upbot/internal/market"
	"upbot/internal/ratelimit"
)

const defaultBaseURL = "https://api.upbit.com"

// Credentials Upbit Open API 密钥对。
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Client 带限流与签名的 Upbit REST 客户端。
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	creds      Credentials
	limiter    *ratelimit.Limiter
}

// NewClient 构造客户端。limiter 为 nil 时不做限流（仅测试用）。
func NewClient(baseURL string, creds Credentials, limiter *ratelimit.Limiter) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		raw = defaultBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 upbit 地址失败: %w", err)
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		creds:      creds,
		limiter:    limiter,
	}, nil
}

// Authenticated 是否配置了密钥对。
func (c *Client) Authenticated() bool {
	return c.creds.AccessKey != "" && c.creds.SecretKey != ""
}

type marketInfo struct {
	Market      string `json:"market"`
	KoreanName  string `json:"korean_name"`
	EnglishName string `json:"english_name"`
}

// Markets 列出全部可交易市场。
func (c *Client) Markets(ctx context.Context) ([]market.Info, error) {
	var raw []marketInfo
	if err := c.doRequest(ctx, ratelimit.ClassGeneral, http.MethodGet, "/v1/market/all", nil, false, &raw); err != nil {
		return nil, err
	}
	infos := make([]market.Info, 0, len(raw))
	for _, m := range raw {
		quote, _, ok := strings.Cut(m.Market, "-")
		if !ok {
			continue
		}
		infos = append(infos, market.Info{Market: m.Market, Quote: quote})
	}
	return infos, nil
}

// Tickers 查询一组市场的最新成交价。
func (c *Client) Tickers(ctx context.Context, markets []string) ([]market.Ticker, error) {
	if len(markets) == 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("markets", strings.Join(markets, ","))
	var out []market.Ticker
	if err := c.doRequest(ctx, ratelimit.ClassGeneral, http.MethodGet, "/v1/ticker?"+q.Encode(), nil, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Candles 取一页蜡烛。interval 为分钟数字符串或 days/weeks，
// to 为空表示最新，否则取早于该开盘时间（UTC）的数据。
// 交易所按最新在前返回，这里原样透传，排序交给调用方。
func (c *Client) Candles(ctx context.Context, mkt, interval string, count int, to string) ([]market.Candle, error) {
	path, err := candlePath(interval)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("market", mkt)
	q.Set("count", strconv.Itoa(count))
	if to != "" {
		q.Set("to", to+"Z")
	}
	var out []market.Candle
	if err := c.doRequest(ctx, ratelimit.ClassGeneral, http.MethodGet, path+"?"+q.Encode(), nil, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func candlePath(interval string) (string, error) {
	switch interval {
	case market.IntervalDays:
		return "/v1/candles/days", nil
	case market.IntervalWeeks:
		return "/v1/candles/weeks", nil
	}
	if _, err := strconv.Atoi(interval); err != nil {
		return "", fmt.Errorf("不支持的蜡烛周期 %q", interval)
	}
	return "/v1/candles/minutes/" + interval, nil
}

type accountEntry struct {
	Currency     string `json:"currency"`
	Balance      string `json:"balance"`
	Locked       string `json:"locked"`
	AvgBuyPrice  string `json:"avg_buy_price"`
	UnitCurrency string `json:"unit_currency"`
}

// Wallet 查询账户全部余额。
func (c *Client) Wallet(ctx context.Context) ([]market.WalletEntry, error) {
	var raw []accountEntry
	if err := c.doRequest(ctx, ratelimit.ClassGeneral, http.MethodGet, "/v1/accounts", nil, true, &raw); err != nil {
		return nil, err
	}
	wallet := make([]market.WalletEntry, 0, len(raw))
	for _, a := range raw {
		wallet = append(wallet, market.WalletEntry{
			Currency:     a.Currency,
			Balance:      parseFloat(a.Balance),
			Locked:       parseFloat(a.Locked),
			AvgBuyPrice:  parseFloat(a.AvgBuyPrice),
			UnitCurrency: a.UnitCurrency,
		})
	}
	return wallet, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

type orderPayload struct {
	Market  string `json:"market"`
	Side    string `json:"side"`
	OrdType string `json:"ord_type"`
	Price   string `json:"price,omitempty"`
	Volume  string `json:"volume,omitempty"`
}

type orderResponse struct {
	UUID      string `json:"uuid"`
	Market    string `json:"market"`
	Side      string `json:"side"`
	OrdType   string `json:"ord_type"`
	Price     string `json:"price"`
	Volume    string `json:"volume"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
}

// PlaceBid 以指定金额市价买入。
func (c *Client) PlaceBid(ctx context.Context, mkt string, cash float64) (*market.Order, error) {
	payload := orderPayload{
		Market:  mkt,
		Side:    market.SideBid,
		OrdType: "price",
		Price:   strconv.FormatFloat(cash, 'f', -1, 64),
	}
	return c.placeOrder(ctx, payload)
}

// PlaceAsk 以指定数量市价卖出。
func (c *Client) PlaceAsk(ctx context.Context, mkt string, volume float64) (*market.Order, error) {
	payload := orderPayload{
		Market:  mkt,
		Side:    market.SideAsk,
		OrdType: "market",
		Volume:  strconv.FormatFloat(volume, 'f', -1, 64),
	}
	return c.placeOrder(ctx, payload)
}

func (c *Client) placeOrder(ctx context.Context, payload orderPayload) (*market.Order, error) {
	var raw orderResponse
	if err := c.doRequest(ctx, ratelimit.ClassOrder, http.MethodPost, "/v1/orders", payload, true, &raw); err != nil {
		return nil, err
	}
	order := toOrder(raw)
	return &order, nil
}

// Orders 查询某市场的订单记录（最新在前）。
func (c *Client) Orders(ctx context.Context, mkt string, states []string) ([]market.Order, error) {
	q := url.Values{}
	q.Set("market", mkt)
	q.Set("order_by", "desc")
	for _, s := range states {
		q.Add("states[]", s)
	}
	var raw []orderResponse
	if err := c.doRequest(ctx, ratelimit.ClassGeneral, http.MethodGet, "/v1/orders?"+q.Encode(), nil, true, &raw); err != nil {
		return nil, err
	}
	orders := make([]market.Order, 0, len(raw))
	for _, r := range raw {
		orders = append(orders, toOrder(r))
	}
	return orders, nil
}

func toOrder(r orderResponse) market.Order {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return market.Order{
		UUID:      r.UUID,
		Market:    r.Market,
		OrdType:   r.OrdType,
		Side:      r.Side,
		Price:     parseFloat(r.Price),
		Volume:    parseFloat(r.Volume),
		State:     r.State,
		CreatedAt: created,
		Identity:  market.CurrencyOf(r.Market),
	}
}

func (c *Client) doRequest(ctx context.Context, class ratelimit.Class, method, path string, payload any, authed bool, out any) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("upbit client 未初始化")
	}
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, class); err != nil {
			return err
		}
	}
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		body = strings.NewReader(string(buf))
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if !c.Authenticated() {
			return fmt.Errorf("upbit 密钥未配置，无法调用 %s", path)
		}
		token, err := signToken(c.creds, endpoint.RawQuery, payload)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("调用 upbit 失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("读取 upbit 响应失败: %w", err)
	}
	if resp.StatusCode >= 300 {
		return apiError(resp.Status, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析 upbit 响应失败: %w", err)
	}
	return nil
}

// apiError 提取 {"error":{"name","message"}} 形式的错误体。
func apiError(status string, data []byte) error {
	msg := gjson.GetBytes(data, "error.message").String()
	name := gjson.GetBytes(data, "error.name").String()
	switch {
	case msg != "" && name != "":
		return fmt.Errorf("upbit 返回错误(%s): %s: %s", status, name, msg)
	case msg != "":
		return fmt.Errorf("upbit 返回错误(%s): %s", status, msg)
	case len(data) > 0:
		return fmt.Errorf("upbit 返回错误(%s): %s", status, strings.TrimSpace(string(data)))
	default:
		return fmt.Errorf("upbit 返回错误: %s", status)
	}
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fmt.Errorf("upbit API 地址未设置")
	}
	trimmed := strings.TrimSpace(path)
	query := ""
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		query = trimmed[idx+1:]
		trimmed = trimmed[:idx]
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + trimmed
	base.RawQuery = query
	base.Fragment = ""
	return &base, nil
}
