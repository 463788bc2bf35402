// Package payment implements the adapter to the external payment
// provider (PayPal REST v2 Checkout).  The adapter is a pure boundary
// translator: it turns engine intents (create order, capture order)
// into provider calls and normalizes the outcomes into typed errors.
// It never reads or mutates booking or inventory state, and it holds
// no database transaction across its network calls.
package payment

import (
    "bytes"
    "context"
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
)

// ErrGatewayUnavailable marks transport failures and provider 5xx
// responses.  The operation may be retried; no booking state changes.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrGatewayRejected marks a provider-level 4xx on order creation.  The
// provider's error body is preserved on the wrapping ProviderError for
// diagnostics but must not be echoed verbatim to end users.
var ErrGatewayRejected = errors.New("payment gateway rejected request")

// ErrCaptureFailed marks a genuine payment decline (insufficient
// funds, card refused).  Only then should the booking move to
// CANCELLED and its seats be released; other capture rejections keep
// the booking PENDING.
var ErrCaptureFailed = errors.New("payment capture failed")

// ErrAlreadyCaptured marks a capture rejected because the order was
// captured before.  A concurrent duplicate likely settled the booking
// already; callers should re-read it instead of treating this as a
// failure.
var ErrAlreadyCaptured = errors.New("order already captured")

// ProviderError wraps one of the sentinel errors above together with
// the raw provider response for logging.
type ProviderError struct {
    Op         string // "create_order", "capture_order" or "token"
    StatusCode int    // HTTP status returned by the provider
    Body       string // raw response body, for diagnostics only
    Sentinel   error  // one of the package sentinels
}

func (e *ProviderError) Error() string {
    return fmt.Sprintf("paypal %s: %v (status %d)", e.Op, e.Sentinel, e.StatusCode)
}

// Unwrap lets callers match the sentinel with errors.Is.
func (e *ProviderError) Unwrap() error { return e.Sentinel }

// OrderRequest describes an order to be created with the provider.
type OrderRequest struct {
    AmountCents uint64 // total to charge, in cents
    Currency    string // ISO currency code, e.g. "USD"
    Description string // shown in the provider checkout UI
    ReturnURL   string // redirect target after approval
    CancelURL   string // redirect target after cancellation
}

// Order is the normalized result of creating a provider order.
type Order struct {
    ID          string // opaque provider order id
    ApprovalURL string // where the payer must be redirected to approve
}

// CaptureResult is the normalized result of a successful capture.
type CaptureResult struct {
    TransactionID string // provider capture/transaction id
    Status        string // provider status string, e.g. COMPLETED
    AmountCents   uint64 // captured amount; zero when the provider omitted it
}

// Client talks to the PayPal REST API.  It is an injected, stateless
// collaborator: construct one in main and pass it into the settlement
// service.  The only internal state is the cached OAuth token, guarded
// by a mutex.
type Client struct {
    BaseURL  string       // e.g. https://api-m.sandbox.paypal.com
    ClientID string       // OAuth client id
    Secret   string       // OAuth client secret
    HTTP     *http.Client // underlying HTTP client; timeout set by NewClient

    mu       sync.Mutex
    token    string
    tokenExp time.Time
}

// NewClient builds a Client with a bounded request timeout.
func NewClient(baseURL, clientID, secret string) *Client {
    return &Client{
        BaseURL:  strings.TrimRight(baseURL, "/"),
        ClientID: clientID,
        Secret:   secret,
        HTTP:     &http.Client{Timeout: 15 * time.Second},
    }
}

// accessToken returns a cached OAuth token, fetching a new one via the
// client-credentials grant when the cache is empty or near expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.token != "" && time.Now().Before(c.tokenExp.Add(-30*time.Second)) {
        return c.token, nil
    }

    form := url.Values{"grant_type": {"client_credentials"}}
    req, err := http.NewRequestWithContext(ctx, http.MethodPost,
        c.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
    if err != nil {
        return "", err
    }
    req.SetBasicAuth(c.ClientID, c.Secret)
    req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
    req.Header.Set("Accept", "application/json")

    resp, err := c.HTTP.Do(req)
    if err != nil {
        return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
    }
    defer resp.Body.Close()
    body, _ := io.ReadAll(resp.Body)
    if resp.StatusCode != http.StatusOK {
        return "", c.providerError("token", resp.StatusCode, body)
    }
    var tok struct {
        AccessToken string `json:"access_token"`
        ExpiresIn   int64  `json:"expires_in"`
    }
    if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
        return "", fmt.Errorf("%w: malformed token response", ErrGatewayUnavailable)
    }
    c.token = tok.AccessToken
    c.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
    return c.token, nil
}

// providerError classifies a non-2xx provider response: 5xx means the
// provider is unhealthy (retryable), anything else is a rejection.
func (c *Client) providerError(op string, status int, body []byte) error {
    sentinel := ErrGatewayRejected
    if status >= http.StatusInternalServerError {
        sentinel = ErrGatewayUnavailable
    }
    return &ProviderError{Op: op, StatusCode: status, Body: string(body), Sentinel: sentinel}
}

// captureError classifies a non-2xx capture response by the issue
// codes in the error body.  Only INSTRUMENT_DECLINED is a decline;
// ORDER_ALREADY_CAPTURED signals a duplicate; everything else (order
// not approved yet, unknown order id) is a plain rejection that must
// not cost the payer their reservation.
func (c *Client) captureError(status int, body []byte) error {
    if status >= http.StatusInternalServerError {
        return &ProviderError{Op: "capture_order", StatusCode: status, Body: string(body), Sentinel: ErrGatewayUnavailable}
    }
    var data struct {
        Name    string `json:"name"`
        Details []struct {
            Issue string `json:"issue"`
        } `json:"details"`
    }
    sentinel := ErrGatewayRejected
    if err := json.Unmarshal(body, &data); err == nil {
        for _, d := range data.Details {
            switch d.Issue {
            case "INSTRUMENT_DECLINED":
                sentinel = ErrCaptureFailed
            case "ORDER_ALREADY_CAPTURED":
                sentinel = ErrAlreadyCaptured
            }
        }
    }
    return &ProviderError{Op: "capture_order", StatusCode: status, Body: string(body), Sentinel: sentinel}
}

// CreateOrder creates a provider order for the given amount and returns
// its id plus the approval redirect the payer must visit.
func (c *Client) CreateOrder(ctx context.Context, r OrderRequest) (Order, error) {
    token, err := c.accessToken(ctx)
    if err != nil {
        return Order{}, err
    }

    payload := map[string]interface{}{
        "intent": "CAPTURE",
        "purchase_units": []map[string]interface{}{{
            "amount": map[string]string{
                "currency_code": r.Currency,
                "value":         FormatAmount(r.AmountCents),
            },
            "description": r.Description,
        }},
        "application_context": map[string]string{
            "brand_name":   "Event Booking API",
            "landing_page": "NO_PREFERENCE",
            "user_action":  "PAY_NOW",
            "return_url":   r.ReturnURL,
            "cancel_url":   r.CancelURL,
        },
    }
    body, status, err := c.post(ctx, "/v2/checkout/orders", token, payload)
    if err != nil {
        return Order{}, err
    }
    if status < 200 || status > 299 {
        return Order{}, c.providerError("create_order", status, body)
    }

    var data struct {
        ID    string `json:"id"`
        Links []struct {
            Href string `json:"href"`
            Rel  string `json:"rel"`
        } `json:"links"`
    }
    if err := json.Unmarshal(body, &data); err != nil || data.ID == "" {
        return Order{}, fmt.Errorf("%w: malformed order response", ErrGatewayUnavailable)
    }
    out := Order{ID: data.ID}
    for _, l := range data.Links {
        if l.Rel == "approve" {
            out.ApprovalURL = l.Href
            break
        }
    }
    return out, nil
}

// CaptureOrder finalizes charging a previously approved order.  The
// result carries the provider transaction id, status string and the
// captured amount when the provider reported one.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (CaptureResult, error) {
    token, err := c.accessToken(ctx)
    if err != nil {
        return CaptureResult{}, err
    }

    body, status, err := c.post(ctx, "/v2/checkout/orders/"+orderID+"/capture", token, map[string]interface{}{})
    if err != nil {
        return CaptureResult{}, err
    }
    if status < 200 || status > 299 {
        return CaptureResult{}, c.captureError(status, body)
    }

    var data struct {
        ID            string `json:"id"`
        Status        string `json:"status"`
        PurchaseUnits []struct {
            Payments struct {
                Captures []struct {
                    ID     string `json:"id"`
                    Status string `json:"status"`
                    Amount struct {
                        Value string `json:"value"`
                    } `json:"amount"`
                } `json:"captures"`
            } `json:"payments"`
        } `json:"purchase_units"`
    }
    if err := json.Unmarshal(body, &data); err != nil {
        return CaptureResult{}, fmt.Errorf("%w: malformed capture response", ErrGatewayUnavailable)
    }

    res := CaptureResult{TransactionID: data.ID, Status: data.Status}
    if len(data.PurchaseUnits) > 0 && len(data.PurchaseUnits[0].Payments.Captures) > 0 {
        captured := data.PurchaseUnits[0].Payments.Captures[0]
        res.TransactionID = captured.ID
        res.Status = captured.Status
        if cents, err := ParseAmount(captured.Amount.Value); err == nil {
            res.AmountCents = cents
        }
    }
    if res.Status == "DECLINED" || res.Status == "FAILED" {
        return CaptureResult{}, &ProviderError{Op: "capture_order", StatusCode: status, Body: string(body), Sentinel: ErrCaptureFailed}
    }
    if res.TransactionID == "" {
        res.TransactionID = orderID
    }
    if res.Status == "" {
        res.Status = "COMPLETED"
    }
    return res, nil
}

// post sends a JSON POST with bearer auth and returns the raw body and
// status.  Transport failures become ErrGatewayUnavailable.
func (c *Client) post(ctx context.Context, path, token string, payload interface{}) ([]byte, int, error) {
    raw, err := json.Marshal(payload)
    if err != nil {
        return nil, 0, err
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
    if err != nil {
        return nil, 0, err
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Authorization", "Bearer "+token)

    resp, err := c.HTTP.Do(req)
    if err != nil {
        return nil, 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
    }
    defer resp.Body.Close()
    body, err := io.ReadAll(resp.Body)
    if err != nil {
        return nil, 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
    }
    return body, resp.StatusCode, nil
}

// FormatAmount renders integer cents as the provider's decimal string,
// e.g. 4000 -> "40.00".
func FormatAmount(cents uint64) string {
    return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// ParseAmount converts a provider decimal string back to cents.  At
// most two decimal places are honored; anything else is an error.
func ParseAmount(s string) (uint64, error) {
    s = strings.TrimSpace(s)
    if s == "" {
        return 0, fmt.Errorf("empty amount")
    }
    whole, frac, found := strings.Cut(s, ".")
    units, err := strconv.ParseUint(whole, 10, 64)
    if err != nil {
        return 0, fmt.Errorf("invalid amount %q", s)
    }
    if !found {
        return units * 100, nil
    }
    if len(frac) > 2 {
        return 0, fmt.Errorf("invalid amount %q", s)
    }
    for len(frac) < 2 {
        frac += "0"
    }
    cents, err := strconv.ParseUint(frac, 10, 64)
    if err != nil {
        return 0, fmt.Errorf("invalid amount %q", s)
    }
    return units*100 + cents, nil
}
