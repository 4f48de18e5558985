package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gitlab.com/yelinaung/business-ledger/internal/models"
)

var errNoRates = errors.New("rate table missing in response")

// DefaultFrankfurterURL is the public Frankfurter API endpoint.
const DefaultFrankfurterURL = "https://api.frankfurter.app"

// FrankfurterClient is a client for frankfurter.app exchange rates API.
type FrankfurterClient struct {
	baseURL    string
	httpClient *http.Client
}

type frankfurterResponse struct {
	Base  string                 `json:"base"`
	Date  string                 `json:"date"`
	Rates map[string]json.Number `json:"rates"`
}

// NewFrankfurterClient creates a Frankfurter API client.
func NewFrankfurterClient(baseURL string, timeout time.Duration) *FrankfurterClient {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = DefaultFrankfurterURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FrankfurterClient{
		baseURL: trimmed,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Latest fetches the latest rates relative to base.
func (c *FrankfurterClient) Latest(ctx context.Context, base string) (*RateTable, error) {
	base = models.NormalizeCurrencyCode(base)
	if base == "" {
		return nil, errors.New("base currency is required")
	}

	endpoint := fmt.Sprintf("%s/latest?from=%s", c.baseURL, url.QueryEscape(base))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create rates request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request rates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange API returned status %d", resp.StatusCode)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var payload frankfurterResponse
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode rates response: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, errNoRates
	}
	if payload.Base != "" && models.NormalizeCurrencyCode(payload.Base) != base {
		return nil, fmt.Errorf("exchange API answered for base %s, wanted %s", payload.Base, base)
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates)+1)
	for code, raw := range payload.Rates {
		rate, err := decimal.NewFromString(raw.String())
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate for %s: %w", code, err)
		}
		if !rate.IsPositive() {
			continue
		}
		rates[models.NormalizeCurrencyCode(code)] = rate
	}
	if len(rates) == 0 {
		return nil, errNoRates
	}
	rates[base] = decimal.NewFromInt(1)

	rateDate, err := time.Parse(time.DateOnly, payload.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate date: %w", err)
	}

	return &RateTable{
		Base:      base,
		Rates:     rates,
		RateDate:  rateDate,
		FetchedAt: time.Now().UTC(),
		Origin:    OriginLive,
	}, nil
}
