package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider/token"
)

// httpResult is the raw outcome of one provider round-trip.
type httpResult struct {
	status int
	body   []byte
}

// doRequest executes one bounded HTTP call and classifies every transport
// failure into the model error taxonomy. A nil error means an HTTP response
// was received, whatever its status code; 5xx is classified here because no
// provider-level diagnosis is possible for it.
func doRequest(ctx context.Context, client *http.Client, p model.Provider, op, method, url string, headers map[string]string, body []byte) (*httpResult, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, model.NewTransportError(p, op, false, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewTransportError(p, op, isTimeout(err), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewTransportError(p, op, isTimeout(err), err)
	}

	if resp.StatusCode >= 500 {
		return &httpResult{status: resp.StatusCode, body: payload},
			model.NewTransportError(p, op, false, fmt.Errorf("provider returned status %d", resp.StatusCode))
	}
	return &httpResult{status: resp.StatusCode, body: payload}, nil
}

// doJSON marshals the payload, executes the call and sets JSON headers.
func doJSON(ctx context.Context, client *http.Client, p model.Provider, op, method, url string, headers map[string]string, payload interface{}) (*httpResult, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, model.NewTransportError(p, op, false, err)
		}
	}
	merged := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	for k, v := range headers {
		merged[k] = v
	}
	return doRequest(ctx, client, p, op, method, url, merged, body)
}

// authRejected classifies a 401 or 403 on an authenticated business call:
// the provider revoked or expired the session token server-side. The cached
// token is dropped so the next attempt re-authenticates.
func authRejected(res *httpResult, tokens *token.Cache, p model.Provider, merchantID string) error {
	if res.status != http.StatusUnauthorized && res.status != http.StatusForbidden {
		return nil
	}
	tokens.Invalidate(token.Key(merchantID, p))
	return model.NewAuthError(p, "session token rejected", nil)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// timeoutResponse converts a classified transport error into the canonical
// response the controller records: TIMEOUT when the deadline was exceeded,
// FAILED otherwise.
func timeoutResponse(err error) *model.InvoiceResponse {
	outcome := model.OutcomeFailed
	var transportErr *model.TransportError
	if errors.As(err, &transportErr) && transportErr.Timeout {
		outcome = model.OutcomeTimeout
	}
	return &model.InvoiceResponse{
		Outcome: outcome,
		Message: err.Error(),
	}
}
