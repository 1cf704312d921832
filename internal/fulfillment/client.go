// Package fulfillment talks to the upstream SMM panel. Without an API key
// the client runs in demo mode: orders get synthetic references and are
// never dispatched anywhere.
package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ilomswe/smmhub-backend/pkg/config"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
	"github.com/ilomswe/smmhub-backend/pkg/txid"
)

// Client is the panel-facing surface the order engine depends on.
type Client interface {
	Submit(ctx context.Context, serviceRef, link string, quantity int64) (string, error)
	Status(ctx context.Context, externalRef string) (*StatusResult, error)
	Cancel(ctx context.Context, externalRef string) error
	Refill(ctx context.Context, externalRef string) error
	Balance(ctx context.Context) (*BalanceResult, error)
	Demo() bool
}

// StatusResult mirrors the panel's order status payload.
type StatusResult struct {
	Status     string `json:"status"`
	Charge     string `json:"charge"`
	StartCount int64  `json:"start_count"`
	Remains    int64  `json:"remains"`
}

// BalanceResult mirrors the panel's balance payload.
type BalanceResult struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type client struct {
	http   httpDoer
	apiURL string
	apiKey string
	logg   *logger.Logger
}

// New builds a panel client from config. An empty API key selects demo mode.
func New(cfg config.FulfillmentConfig, logg *logger.Logger) Client {
	return &client{
		http:   &http.Client{Timeout: cfg.Timeout},
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey: cfg.APIKey,
		logg:   logg,
	}
}

func (c *client) Demo() bool {
	return c.apiKey == ""
}

func (c *client) Submit(ctx context.Context, serviceRef, link string, quantity int64) (string, error) {
	svc, ok := LookupService(serviceRef)
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "unknown service")
	}

	if c.Demo() {
		return "DEMO-" + txid.New(txid.PrefixOrder), nil
	}

	payload, err := c.call(ctx, url.Values{
		"action":   {"add"},
		"service":  {svc.PanelID},
		"link":     {link},
		"quantity": {strconv.FormatInt(quantity, 10)},
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Order json.Number `json:"order"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode panel response")
	}
	if resp.Order == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "panel returned no order id")
	}
	return resp.Order.String(), nil
}

func (c *client) Status(ctx context.Context, externalRef string) (*StatusResult, error) {
	if c.Demo() {
		return &StatusResult{Status: "Completed"}, nil
	}

	payload, err := c.call(ctx, url.Values{
		"action": {"status"},
		"order":  {externalRef},
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status     string      `json:"status"`
		Charge     string      `json:"charge"`
		StartCount json.Number `json:"start_count"`
		Remains    json.Number `json:"remains"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode panel response")
	}

	start, _ := resp.StartCount.Int64()
	remains, _ := resp.Remains.Int64()
	return &StatusResult{
		Status:     resp.Status,
		Charge:     resp.Charge,
		StartCount: start,
		Remains:    remains,
	}, nil
}

func (c *client) Cancel(ctx context.Context, externalRef string) error {
	if c.Demo() {
		return nil
	}
	_, err := c.call(ctx, url.Values{
		"action": {"cancel"},
		"order":  {externalRef},
	})
	return err
}

func (c *client) Refill(ctx context.Context, externalRef string) error {
	if c.Demo() {
		return nil
	}
	_, err := c.call(ctx, url.Values{
		"action": {"refill"},
		"order":  {externalRef},
	})
	return err
}

func (c *client) Balance(ctx context.Context) (*BalanceResult, error) {
	if c.Demo() {
		return &BalanceResult{Balance: "0", Currency: "USD"}, nil
	}

	payload, err := c.call(ctx, url.Values{"action": {"balance"}})
	if err != nil {
		return nil, err
	}

	var resp BalanceResult
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode panel response")
	}
	return &resp, nil
}

// call performs one form-encoded panel request and surfaces panel-level
// errors from the JSON body.
func (c *client) call(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build panel request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "panel request failed")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read panel response")
	}
	if res.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("panel returned HTTP %d", res.StatusCode))
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "panel error: "+apiErr.Error)
	}
	return body, nil
}
