package blockstream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dwarvesf/btc-forwarder/internal/utils/config"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

// ErrTxNotFound is returned when the explorer has never seen the transaction,
// neither in the mempool nor in a block.
var ErrTxNotFound = errors.New("transaction not found")

const maxRetries = 3

type blockstream struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

func New(cfg *config.AppConfig, logger *logger.Logger) IBlockStream {
	return &blockstream{
		baseURL: cfg.Bitcoin.BlockstreamAPIURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *blockstream) BroadcastTx(txHex string) (string, error) {
	url := fmt.Sprintf("%s/tx", c.baseURL)
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		// Create a new reader for each attempt since it gets consumed
		payload := strings.NewReader(txHex)

		req, err := http.NewRequest("POST", url, payload)
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %v", err)
			c.logger.Error("[BroadcastTx][http.NewRequest]", map[string]string{
				"error":   err.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}

		req.Header.Add("Content-Type", "text/plain")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to request broadcast transaction: %v", err)
			c.logger.Error("[BroadcastTx][client.Do]", map[string]string{
				"error":   err.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %v", err)
			c.logger.Error("[BroadcastTx][io.ReadAll]", map[string]string{
				"error":   err.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("status code: %v, failed to broadcast transaction: %s", resp.StatusCode, string(body))
			c.logger.Error("[BroadcastTx] broadcast error", map[string]string{
				"error":      string(body),
				"statusCode": strconv.Itoa(resp.StatusCode),
				"attempt":    strconv.Itoa(attempt),
			})

			// Don't retry validation errors, the transaction itself is bad
			if resp.StatusCode == http.StatusBadRequest {
				return "", lastErr
			}

			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}

		// body is the txid of the accepted transaction
		return strings.TrimSpace(string(body)), nil
	}

	return "", lastErr
}

// EstimateFees returns a map of confirmation target times (in blocks) to fee rates (in sat/vB)
// Example response:
//
//	{
//	  "1": 25.0,  // 25 sat/vB for next block
//	  "2": 20.0,  // 20 sat/vB for 2 blocks
//	  "6": 10.0   // 10 sat/vB for 6 blocks
//	}
func (c *blockstream) EstimateFees() (map[string]float64, error) {
	url := fmt.Sprintf("%s/fee-estimates", c.baseURL)

	var fees map[string]float64
	if err := c.getJSON(url, "EstimateFees", &fees); err != nil {
		return nil, err
	}

	return fees, nil
}

func (c *blockstream) GetUTXOs(address string) ([]UTXO, error) {
	url := fmt.Sprintf("%s/address/%s/utxo", c.baseURL, address)

	var utxos []UTXO
	if err := c.getJSON(url, "GetUTXOs", &utxos); err != nil {
		return nil, err
	}

	return utxos, nil
}

// GetAddressTxs returns confirmed transactions for an address, newest first.
// When lastSeenTxID is set the explorer pages from right after that
// transaction (25 per page).
func (c *blockstream) GetAddressTxs(address string, lastSeenTxID string) ([]Transaction, error) {
	var url string
	if lastSeenTxID == "" {
		url = fmt.Sprintf("%s/address/%s/txs", c.baseURL, address)
	} else {
		url = fmt.Sprintf("%s/address/%s/txs/chain/%s", c.baseURL, address, lastSeenTxID)
	}

	var txs []Transaction
	if err := c.getJSON(url, "GetAddressTxs", &txs); err != nil {
		return nil, err
	}

	return txs, nil
}

func (c *blockstream) GetTxStatus(txID string) (*TxStatus, error) {
	url := fmt.Sprintf("%s/tx/%s/status", c.baseURL, txID)
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := c.client.Get(url)
		if err != nil {
			lastErr = errors.Wrap(err, "failed to get tx status")
			c.logger.Error("[GetTxStatus][client.Get]", map[string]string{
				"error":   err.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrTxNotFound
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			c.logger.Error("[GetTxStatus][client.Get]", map[string]string{
				"error":      lastErr.Error(),
				"statusCode": strconv.Itoa(resp.StatusCode),
				"attempt":    strconv.Itoa(attempt),
			})
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = errors.Wrap(err, "failed to read response body")
			c.logger.Error("[GetTxStatus][io.ReadAll]", map[string]string{
				"error":   lastErr.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			continue
		}

		var status TxStatus
		if err := json.Unmarshal(body, &status); err != nil {
			lastErr = errors.Wrap(err, "failed to parse tx status")
			c.logger.Error("[GetTxStatus][json.Unmarshal]", map[string]string{
				"error":   lastErr.Error(),
				"attempt": strconv.Itoa(attempt),
				"body":    string(body),
			})
			continue
		}

		return &status, nil
	}

	return nil, lastErr
}

func (c *blockstream) GetTipHeight() (int64, error) {
	url := fmt.Sprintf("%s/blocks/tip/height", c.baseURL)
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := c.client.Get(url)
		if err != nil {
			lastErr = errors.Wrap(err, "failed to get tip height")
			c.logger.Error("[GetTipHeight][client.Get]", map[string]string{
				"error":   err.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			c.logger.Error("[GetTipHeight][client.Get]", map[string]string{
				"error":      lastErr.Error(),
				"statusCode": strconv.Itoa(resp.StatusCode),
				"attempt":    strconv.Itoa(attempt),
			})
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = errors.Wrap(err, "failed to read response body")
			c.logger.Error("[GetTipHeight][io.ReadAll]", map[string]string{
				"error":   lastErr.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			continue
		}

		height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
		if err != nil {
			lastErr = errors.Wrap(err, "failed to parse tip height")
			c.logger.Error("[GetTipHeight][strconv.ParseInt]", map[string]string{
				"error": lastErr.Error(),
				"body":  string(body),
			})
			continue
		}

		return height, nil
	}

	return 0, lastErr
}

// GetBTCBalance returns the confirmed balance of an address in satoshis.
func (c *blockstream) GetBTCBalance(address string) (int64, error) {
	url := fmt.Sprintf("%s/address/%s", c.baseURL, address)

	var response GetBalanceResponse
	if err := c.getJSON(url, "GetBTCBalance", &response); err != nil {
		return 0, err
	}

	return response.ChainStats.FundedTxoSum - response.ChainStats.SpentTxoSum, nil
}

// getJSON GETs url and unmarshals the response into out, retrying transient
// failures with a linear backoff.
func (c *blockstream) getJSON(url, method string, out interface{}) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := c.client.Get(url)
		if err != nil {
			lastErr = errors.Wrapf(err, "failed to request %s", url)
			c.logger.Error(fmt.Sprintf("[%s][client.Get]", method), map[string]string{
				"error":   err.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			c.logger.Error(fmt.Sprintf("[%s][client.Get]", method), map[string]string{
				"error":      lastErr.Error(),
				"statusCode": strconv.Itoa(resp.StatusCode),
				"attempt":    strconv.Itoa(attempt),
			})
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = errors.Wrap(err, "failed to read response body")
			c.logger.Error(fmt.Sprintf("[%s][io.ReadAll]", method), map[string]string{
				"error":   lastErr.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			lastErr = errors.Wrap(err, "failed to parse response")
			c.logger.Error(fmt.Sprintf("[%s][json.Unmarshal]", method), map[string]string{
				"error":   lastErr.Error(),
				"attempt": strconv.Itoa(attempt),
				"body":    string(body),
			})
			continue
		}

		return nil
	}

	return lastErr
}
