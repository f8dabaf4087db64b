package kraken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const apiVersion = "0"

type Client struct {
	baseURL string
	key     string
	secret  []byte
	http    *http.Client
	log     *zap.Logger

	nonceMu   sync.Mutex
	lastNonce int64
}

func New(baseURL, key, secret string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil && secret != "" {
		return nil, fmt.Errorf("api secret is not valid base64: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		secret:  decoded,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}, nil
}

type apiResponse struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Ticker returns the last trade price for the pair.
func (c *Client) Ticker(ctx context.Context, pair string) (float64, error) {
	raw, err := c.public(ctx, "Ticker", url.Values{"pair": {pair}})
	if err != nil {
		return 0, &FetchError{Op: "Ticker", Err: err}
	}
	var result map[string]struct {
		Close []string `json:"c"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, &FetchError{Op: "Ticker", Err: err}
	}
	// Keyed by pair altname (e.g. XXMRZUSD for XMRUSD); a single pair was
	// requested so take the first entry.
	for _, ticker := range result {
		if len(ticker.Close) == 0 {
			break
		}
		price, err := strconv.ParseFloat(ticker.Close[0], 64)
		if err != nil {
			return 0, &FetchError{Op: "Ticker", Err: err}
		}
		if price <= 0 {
			return 0, &FetchError{Op: "Ticker", Err: fmt.Errorf("non-positive price %g", price)}
		}
		return price, nil
	}
	return 0, &FetchError{Op: "Ticker", Err: errors.New("no ticker data for pair")}
}

// assetAliases maps plain asset codes to the legacy Kraken ledger codes.
var assetAliases = map[string][]string{
	"XMR": {"XMR", "XXMR"},
	"USD": {"USD", "ZUSD"},
	"XBT": {"XBT", "XXBT"},
	"ETH": {"ETH", "XETH"},
	"EUR": {"EUR", "ZEUR"},
}

// Balances returns all account balances keyed by Kraken asset code.
func (c *Client) Balances(ctx context.Context) (map[string]float64, error) {
	raw, err := c.private(ctx, "Balance", url.Values{})
	if err != nil {
		return nil, &FetchError{Op: "Balance", Err: err}
	}
	var parsed map[string]string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &FetchError{Op: "Balance", Err: err}
	}
	balances := make(map[string]float64, len(parsed))
	for key, v := range parsed {
		amount, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &FetchError{Op: "Balance", Err: err}
		}
		balances[key] = amount
	}
	return balances, nil
}

// AssetAmount sums the balance of an asset across its plain and legacy
// ledger codes.
func AssetAmount(balances map[string]float64, asset string) float64 {
	keys, ok := assetAliases[asset]
	if !ok {
		keys = []string{asset}
	}
	var total float64
	for _, key := range keys {
		total += balances[key]
	}
	return total
}

type OrderResult struct {
	TxIDs       []string
	Description string
}

func (r OrderResult) TxID() string {
	return strings.Join(r.TxIDs, ",")
}

// AddMarketOrder places a market order for volume units of the base asset.
// Side is "buy" or "sell".
func (c *Client) AddMarketOrder(ctx context.Context, pair, side string, volume float64) (OrderResult, error) {
	if side != "buy" && side != "sell" {
		return OrderResult{}, &OrderError{Op: "AddOrder", Err: fmt.Errorf("invalid side %q", side)}
	}
	if volume <= 0 {
		return OrderResult{}, &OrderError{Op: "AddOrder", Err: fmt.Errorf("invalid volume %g", volume)}
	}
	data := url.Values{
		"pair":      {pair},
		"type":      {side},
		"ordertype": {"market"},
		"volume":    {strconv.FormatFloat(volume, 'f', 8, 64)},
	}
	raw, err := c.private(ctx, "AddOrder", data)
	if err != nil {
		return OrderResult{}, &OrderError{Op: "AddOrder", Err: err}
	}
	var result struct {
		TxID  []string `json:"txid"`
		Descr struct {
			Order string `json:"order"`
		} `json:"descr"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return OrderResult{}, &OrderError{Op: "AddOrder", Err: err}
	}
	return OrderResult{TxIDs: result.TxID, Description: result.Descr.Order}, nil
}

func (c *Client) public(ctx context.Context, method string, data url.Values) (json.RawMessage, error) {
	path := "/" + apiVersion + "/public/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, method)
}

func (c *Client) private(ctx context.Context, method string, data url.Values) (json.RawMessage, error) {
	if c.key == "" || len(c.secret) == 0 {
		return nil, errors.New("api credentials are required")
	}
	path := "/" + apiVersion + "/private/" + method
	nonce := c.nextNonce()
	data.Set("nonce", strconv.FormatInt(nonce, 10))
	body := data.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", c.key)
	req.Header.Set("API-Sign", c.sign(path, strconv.FormatInt(nonce, 10), body))
	return c.do(req, method)
}

// sign computes API-Sign = base64(HMAC-SHA512(path + SHA256(nonce + postdata), secret)).
func (c *Client) sign(path, nonce, body string) string {
	inner := sha256.Sum256([]byte(nonce + body))
	mac := hmac.New(sha512.New, c.secret)
	mac.Write([]byte(path))
	mac.Write(inner[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// nextNonce returns a strictly increasing millisecond nonce.
func (c *Client) nextNonce() int64 {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	nonce := time.Now().UnixMilli()
	if nonce <= c.lastNonce {
		nonce = c.lastNonce + 1
	}
	c.lastNonce = nonce
	return nonce
}

func (c *Client) do(req *http.Request, method string) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Error) > 0 {
		return nil, fmt.Errorf("api error on %s: %s", method, strings.Join(parsed.Error, "; "))
	}
	return parsed.Result, nil
}
