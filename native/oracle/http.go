package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed pulls price rounds from a JSON endpoint. The endpoint is expected
// to return an object of the form {"answer": "100000000000", "updated_at":
// 1712000000} where answer carries Decimals fractional digits.
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
	decimals uint8
}

// NewHTTPFeed constructs an HTTP-backed feed. When client is nil
// http.DefaultClient is used.
func NewHTTPFeed(client HTTPDoer, endpoint string, decimals uint8) *HTTPFeed {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFeed{client: client, endpoint: strings.TrimSpace(endpoint), decimals: decimals}
}

type httpRoundPayload struct {
	Answer    json.Number `json:"answer"`
	UpdatedAt json.Number `json:"updated_at"`
}

// LatestRoundData implements the PriceFeed interface.
func (f *HTTPFeed) LatestRoundData() (Round, error) {
	if f == nil || f.endpoint == "" {
		return Round{}, fmt.Errorf("http feed not configured")
	}
	req, err := http.NewRequest(http.MethodGet, f.endpoint, nil)
	if err != nil {
		return Round{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return Round{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Round{}, fmt.Errorf("http feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var payload httpRoundPayload
	if err := decoder.Decode(&payload); err != nil {
		return Round{}, fmt.Errorf("http feed: decode: %w", err)
	}
	answerStr := strings.TrimSpace(payload.Answer.String())
	if answerStr == "" {
		return Round{}, fmt.Errorf("http feed: empty answer")
	}
	answer, ok := new(big.Int).SetString(answerStr, 10)
	if !ok {
		return Round{}, fmt.Errorf("http feed: invalid answer %q", answerStr)
	}
	var ts time.Time
	if raw := strings.TrimSpace(payload.UpdatedAt.String()); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			ts = time.Unix(parsed, 0)
		}
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Round{Answer: answer, UpdatedAt: ts}, nil
}

// Decimals implements the PriceFeed interface.
func (f *HTTPFeed) Decimals() uint8 {
	if f == nil {
		return 0
	}
	return f.decimals
}
