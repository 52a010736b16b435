package rpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/accounts"
	"github.com/fortiblox/X1-Interface/pkg/rpc"
	"github.com/fortiblox/X1-Interface/pkg/svm"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/nftinterface"
)

// Default configuration values.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 100 * time.Millisecond
	DefaultMaxRetryDelay = 2 * time.Second
)

// Client makes JSON-RPC requests to a pool of nodes.
type Client struct {
	httpClient *http.Client
	pool       Pool
	log        *logrus.Entry

	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
}

// New creates a client over the given pool.
func New(pool Pool, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pool:          pool,
		log:           logrus.StandardLogger().WithField("type", "rpcclient"),
		maxRetries:    DefaultMaxRetries,
		retryDelay:    DefaultRetryDelay,
		maxRetryDelay: DefaultMaxRetryDelay,
	}
}

// Dial creates a client that rotates over urls.
func Dial(urls []string, timeout time.Duration) *Client {
	return New(NewSimplePool(urls), timeout)
}

// SetRetries sets how many extra attempts a read request gets after a
// transport failure.
func (c *Client) SetRetries(maxRetries int, delay time.Duration) {
	c.maxRetries = maxRetries
	c.retryDelay = delay
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// contextResult is a ResponseWithContext with its value left undecoded.
type contextResult struct {
	Context rpc.Context     `json:"context"`
	Value   json.RawMessage `json:"value"`
}

func (r *contextResult) isNull() bool {
	return len(r.Value) == 0 || string(r.Value) == "null"
}

// callWithRetry retries call on transport errors with exponential backoff.
func (c *Client) callWithRetry(ctx context.Context, method string, params []interface{}, result interface{}) error {
	delay := c.retryDelay
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err = c.call(ctx, method, params, result); !IsRetryable(err) {
			return err
		}

		c.log.WithFields(logrus.Fields{
			"method":  method,
			"attempt": attempt + 1,
		}).WithError(err).Debug("request failed")

		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = min(delay*2, c.maxRetryDelay)
		}
	}
	return err
}

// call makes one JSON-RPC call to an endpoint from the pool.
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	endpoint, err := c.pool.GetEndpoint(ctx)
	if err != nil {
		return fmt.Errorf("get endpoint: %w", err)
	}

	start := time.Now()

	req := rpc.Request{
		JSONRPC: rpc.JSONRPCVersion,
		ID:      1,
		Method:  method,
	}
	if len(params) > 0 {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.pool.MarkUnhealthy(endpoint.URL, err)
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.pool.MarkUnhealthy(endpoint.URL, err)
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.pool.MarkUnhealthy(endpoint.URL, fmt.Errorf("status %d", resp.StatusCode))
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		c.pool.MarkUnhealthy(endpoint.URL, err)
		return fmt.Errorf("unmarshal response: %w", err)
	}

	// RPC errors are not endpoint health issues
	c.pool.MarkHealthy(endpoint.URL, time.Since(start))

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    rpcResp.Error.Data,
		}
	}

	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// GetHealth returns nil when the node reports itself healthy.
func (c *Client) GetHealth(ctx context.Context) error {
	return c.callWithRetry(ctx, "getHealth", nil, nil)
}

// GetSlot returns the node's current slot.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.callWithRetry(ctx, "getSlot", nil, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// GetVersion returns the node version.
func (c *Client) GetVersion(ctx context.Context) (*rpc.VersionInfo, error) {
	var version rpc.VersionInfo
	if err := c.callWithRetry(ctx, "getVersion", nil, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// GetNodeStatus returns the node counters.
func (c *Client) GetNodeStatus(ctx context.Context) (*rpc.NodeStatus, error) {
	var status rpc.NodeStatus
	if err := c.callWithRetry(ctx, "getNodeStatus", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetLatestBlockhash returns the blockhash new transactions should carry.
func (c *Client) GetLatestBlockhash(ctx context.Context) (types.Hash, error) {
	var res contextResult
	if err := c.callWithRetry(ctx, "getLatestBlockhash", nil, &res); err != nil {
		return types.Hash{}, err
	}
	var latest rpc.LatestBlockhash
	if err := json.Unmarshal(res.Value, &latest); err != nil {
		return types.Hash{}, fmt.Errorf("unmarshal blockhash: %w", err)
	}
	return types.HashFromBase58(latest.Blockhash)
}

// GetBalance returns the lamports held by pubkey, zero for missing accounts.
func (c *Client) GetBalance(ctx context.Context, pubkey types.Pubkey) (uint64, error) {
	var res contextResult
	if err := c.callWithRetry(ctx, "getBalance", []interface{}{pubkey.String()}, &res); err != nil {
		return 0, err
	}
	var balance uint64
	if err := json.Unmarshal(res.Value, &balance); err != nil {
		return 0, fmt.Errorf("unmarshal balance: %w", err)
	}
	return balance, nil
}

// GetAccountInfo fetches an account. Missing accounts return
// accounts.ErrAccountNotFound.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey types.Pubkey) (*accounts.Account, error) {
	params := []interface{}{
		pubkey.String(),
		rpc.AccountInfoConfig{Encoding: rpc.EncodingBase64},
	}

	var res contextResult
	if err := c.callWithRetry(ctx, "getAccountInfo", params, &res); err != nil {
		return nil, err
	}
	if res.isNull() {
		return nil, accounts.ErrAccountNotFound
	}

	var info struct {
		Data       []string     `json:"data"`
		Executable bool         `json:"executable"`
		Lamports   uint64       `json:"lamports"`
		Owner      types.Pubkey `json:"owner"`
		RentEpoch  uint64       `json:"rentEpoch"`
	}
	if err := json.Unmarshal(res.Value, &info); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	if len(info.Data) != 2 {
		return nil, fmt.Errorf("unexpected account data: %v", info.Data)
	}
	data, err := rpc.DecodeData(info.Data[0], rpc.Encoding(info.Data[1]))
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}

	return &accounts.Account{
		Lamports:   info.Lamports,
		Data:       data,
		Owner:      info.Owner,
		Executable: info.Executable,
		RentEpoch:  info.RentEpoch,
	}, nil
}

// GetInterfaceRecord fetches the interface record of authority.
func (c *Client) GetInterfaceRecord(ctx context.Context, authority types.Pubkey) (types.Pubkey, *nftinterface.InterfaceRecord, error) {
	var res contextResult
	if err := c.callWithRetry(ctx, "getInterfaceRecord", []interface{}{authority.String()}, &res); err != nil {
		return types.Pubkey{}, nil, err
	}
	if res.isNull() {
		return types.Pubkey{}, nil, ErrRecordNotFound
	}

	var info struct {
		Address         types.Pubkey `json:"address"`
		PricePerUnit    uint64       `json:"pricePerUnit"`
		MaxSupply       uint16       `json:"maxSupply"`
		TotalSupply     uint16       `json:"totalSupply"`
		UpdateAuthority types.Pubkey `json:"updateAuthority"`
		FeeReceiver     types.Pubkey `json:"feeReceiver"`
		Sealed          uint8        `json:"sealed"`
	}
	if err := json.Unmarshal(res.Value, &info); err != nil {
		return types.Pubkey{}, nil, fmt.Errorf("unmarshal interface record: %w", err)
	}
	return info.Address, &nftinterface.InterfaceRecord{
		PricePerUnit:    info.PricePerUnit,
		MaxSupply:       info.MaxSupply,
		TotalSupply:     info.TotalSupply,
		UpdateAuthority: info.UpdateAuthority,
		FeeReceiver:     info.FeeReceiver,
		Sealed:          info.Sealed,
	}, nil
}

// GetWhitelistRecord fetches the whitelist record binding authority to target.
func (c *Client) GetWhitelistRecord(ctx context.Context, authority, target types.Pubkey) (types.Pubkey, *nftinterface.WhitelistRecord, error) {
	var res contextResult
	params := []interface{}{authority.String(), target.String()}
	if err := c.callWithRetry(ctx, "getWhitelistRecord", params, &res); err != nil {
		return types.Pubkey{}, nil, err
	}
	if res.isNull() {
		return types.Pubkey{}, nil, ErrRecordNotFound
	}

	var info struct {
		Address types.Pubkey `json:"address"`
		Sealed  uint8        `json:"sealed"`
	}
	if err := json.Unmarshal(res.Value, &info); err != nil {
		return types.Pubkey{}, nil, fmt.Errorf("unmarshal whitelist record: %w", err)
	}
	return info.Address, &nftinterface.WhitelistRecord{Sealed: info.Sealed}, nil
}

// RequestAirdrop credits lamports to pubkey and returns the new balance.
func (c *Client) RequestAirdrop(ctx context.Context, pubkey types.Pubkey, lamports uint64) (uint64, error) {
	var res contextResult
	if err := c.call(ctx, "requestAirdrop", []interface{}{pubkey.String(), lamports}, &res); err != nil {
		return 0, err
	}
	var balance uint64
	if err := json.Unmarshal(res.Value, &balance); err != nil {
		return 0, fmt.Errorf("unmarshal balance: %w", err)
	}
	return balance, nil
}

// SendTransaction submits a signed transaction. It is never retried: a
// resend after a lost response is rejected as already processed. A
// transaction the node executed but did not commit returns a
// *TransactionError.
func (c *Client) SendTransaction(ctx context.Context, tx *svm.Transaction) (types.Signature, error) {
	params := []interface{}{
		base64.StdEncoding.EncodeToString(tx.Serialize()),
		rpc.SendTransactionConfig{Encoding: rpc.EncodingBase64},
	}

	var sig string
	err := c.call(ctx, "sendTransaction", params, &sig)
	if err != nil {
		return types.Signature{}, transactionError(err)
	}
	return types.SignatureFromBase58(sig)
}

// transactionError converts a preflight failure carrying execution data into
// a *TransactionError.
func transactionError(err error) error {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != rpc.SendTransactionPreflightFailure || len(rpcErr.Data) == 0 {
		return err
	}

	var failure rpc.SimulationFailure
	if jsonErr := json.Unmarshal(rpcErr.Data, &failure); jsonErr != nil {
		return err
	}
	sig, sigErr := types.SignatureFromBase58(failure.Signature)
	if sigErr != nil {
		return err
	}

	txErr := &TransactionError{
		Signature:     sig,
		Logs:          failure.Logs,
		UnitsConsumed: failure.UnitsConsumed,
		Err:           errors.New(failure.Err),
	}
	if failure.Code != nil {
		txErr.Err = nftinterface.Error(*failure.Code)
	}
	return txErr
}

// GetTransaction fetches a journaled transaction.
func (c *Client) GetTransaction(ctx context.Context, signature types.Signature) (*rpc.TransactionResponse, error) {
	var tx *rpc.TransactionResponse
	if err := c.callWithRetry(ctx, "getTransaction", []interface{}{signature.String()}, &tx); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

// GetSignaturesForAddress lists journaled transactions touching address,
// newest first.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address types.Pubkey, limit int, before *types.Signature) ([]rpc.SignatureInfo, error) {
	config := rpc.SignaturesForAddressConfig{Limit: limit}
	if before != nil {
		config.Before = before.String()
	}

	var sigs []rpc.SignatureInfo
	if err := c.callWithRetry(ctx, "getSignaturesForAddress", []interface{}{address.String(), config}, &sigs); err != nil {
		return nil, err
	}
	return sigs, nil
}
