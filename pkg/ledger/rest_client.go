package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	cometlog "github.com/cometbft/cometbft/libs/log"

	"github.com/strangelove-ventures/fomc-oracle/pkg/metrics"
	"github.com/strangelove-ventures/fomc-oracle/pkg/tss"
)

const (
	PathEntryFunction = "/v1/entry_function"

	functionRegisterKey = "interest_rate::set_bls_public_key"
	functionRecordMove  = "interest_rate::record_interest_rate_movement_v5"
)

// EntryFunctionCall is the relay request body. Arguments are encoded as
// strings: u64 in decimal, bool as "true"/"false", bytes as 0x-hex.
type EntryFunctionCall struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []string `json:"arguments"`
}

type RESTConfig struct {
	Endpoints     []string
	ModuleAddress string
	TypeArguments []string
	Retries       uint
	RetryDelay    time.Duration
	Timeout       time.Duration
}

var _ Client = &RESTClient{}

// RESTClient posts entry function calls to a transaction relay. Failed calls
// are retried with backoff, rotating through the configured endpoints.
type RESTClient struct {
	logger cometlog.Logger
	cfg    RESTConfig
	client *http.Client

	mu      sync.Mutex
	current int
}

func NewRESTClient(logger cometlog.Logger, cfg RESTConfig) (*RESTClient, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("at least one ledger endpoint is required")
	}
	if cfg.ModuleAddress == "" {
		return nil, errors.New("ledger module address is required")
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RESTClient{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *RESTClient) RegisterGroupKey(ctx context.Context, groupKey tss.PublicKey) (TxID, error) {
	return c.call(ctx, EntryFunctionCall{
		Function:      c.cfg.ModuleAddress + "::" + functionRegisterKey,
		TypeArguments: []string{},
		Arguments:     []string{"0x" + hex.EncodeToString(groupKey)},
	})
}

func (c *RESTClient) SubmitAttestation(ctx context.Context, sub Submission) (TxID, error) {
	typeArgs := c.cfg.TypeArguments
	if typeArgs == nil {
		typeArgs = []string{}
	}
	return c.call(ctx, EntryFunctionCall{
		Function:      c.cfg.ModuleAddress + "::" + functionRecordMove,
		TypeArguments: typeArgs,
		Arguments: []string{
			strconv.FormatUint(sub.Decision.Magnitude, 10),
			strconv.FormatBool(sub.Decision.IsIncrease),
			"0x" + hex.EncodeToString(sub.Signature),
		},
	})
}

func (c *RESTClient) endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Endpoints[c.current%len(c.cfg.Endpoints)]
}

func (c *RESTClient) rotate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = (c.current + 1) % len(c.cfg.Endpoints)
}

func (c *RESTClient) call(ctx context.Context, call EntryFunctionCall) (TxID, error) {
	body, err := json.Marshal(call)
	if err != nil {
		return "", err
	}

	var txID TxID
	err = retry.Do(
		func() error {
			var err error
			txID, err = c.post(ctx, c.endpoint(), body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.Retries),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrUnrecognizedResponse) && !isClientError(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			metrics.TotalLedgerRetries.Inc()
			c.logger.Error("Ledger request failed, rotating endpoint",
				"attempt", n+1,
				"endpoint", c.endpoint(),
				"function", call.Function,
				"error", err,
			)
			c.rotate()
		}),
	)
	if err != nil {
		return "", err
	}
	return txID, nil
}

// StatusError is a non-2xx relay answer.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger endpoint %s returned HTTP %d: %s", e.Endpoint, e.Status, e.Body)
}

func isClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status >= 400 && se.Status < 500 && se.Status != http.StatusTooManyRequests
}

func (c *RESTClient) post(ctx context.Context, endpoint string, body []byte) (TxID, error) {
	url := strings.TrimRight(endpoint, "/") + PathEntryFunction
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Endpoint: endpoint, Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return ParseTxResponse(respBody)
}
