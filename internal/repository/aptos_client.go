package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"DefiGuard/internal/domain/models"
	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/pkg/config"
	xhttp "DefiGuard/pkg/http"
	applogger "DefiGuard/pkg/logger"
)

const addressHexLen = 64

// AptosClient reads accounts from an Aptos fullnode REST API.
type AptosClient struct {
	client *xhttp.Client
	l      *applogger.Logger
}

func NewAptosClient(cfg *config.Config, l *applogger.Logger) *AptosClient {
	timeout := cfg.Aptos.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AptosClient{
		client: xhttp.NewClient(
			xhttp.WithBaseURL(cfg.Aptos.NodeURL),
			xhttp.WithTimeout(timeout),
			xhttp.WithRetry(3, 100*time.Millisecond),
		),
		l: l,
	}
}

// NormalizeAddress validates a hex account address and returns it as 0x plus 64 lowercase hex digits.
func NormalizeAddress(addr string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(addr), "0x"), "0X")
	if raw == "" || len(raw) > addressHexLen {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	padded := "0x" + strings.Repeat("0", addressHexLen-len(raw)) + strings.ToLower(raw)
	if _, err := hexutil.Decode(padded); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return padded, nil
}

// AccountTransactions returns up to limit of the account's most recent transactions, oldest first.
func (c *AptosClient) AccountTransactions(ctx context.Context, address string, limit int) ([]models.ChainTransaction, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var txs []models.ChainTransaction
	err = c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         "/v1/accounts/" + addr + "/transactions",
		QueryParams: map[string][]string{"limit": {strconv.Itoa(limit)}},
	}, &txs)
	if err != nil {
		c.l.Warn("aptos account transactions failed",
			applogger.String("address", addr),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get account transactions: %w", err)
	}
	c.l.Debug("aptos account transactions",
		applogger.String("address", addr),
		applogger.Int("count", len(txs)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return txs, nil
}

type resourceEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AccountResource decodes the data of a Move resource into dest. A missing resource
// yields ErrResourceNotFound.
func (c *AptosClient) AccountResource(ctx context.Context, address, resourceType string, dest interface{}) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	var env resourceEnvelope
	err = c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    "/v1/accounts/" + addr + "/resource/" + url.PathEscape(resourceType),
	}, &env)
	if xhttp.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%s at %s: %w", resourceType, addr, domrepo.ErrResourceNotFound)
	}
	if err != nil {
		c.l.Warn("aptos account resource failed",
			applogger.String("address", addr),
			applogger.String("resource", resourceType),
			applogger.Error(err),
		)
		return fmt.Errorf("get account resource %s: %w", resourceType, err)
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("decode resource %s: %w", resourceType, err)
	}
	return nil
}
