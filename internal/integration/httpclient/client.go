// Package httpclient builds the resty clients used by the payment provider adapters.
package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/alexssanderFonseca/lucrocerto/internal/telemetry"
	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = 30 * time.Second

// New returns a traced resty client bound to baseURL. A non-positive timeout
// falls back to DefaultTimeout.
func New(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetTransport(telemetry.WrapTransport(http.DefaultTransport)).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "lucrocerto-pagamentos/1.0")
}

// ServerError reports whether the provider failed on its side; such responses
// are treated like transport failures, never as rejections.
func ServerError(resp *resty.Response) bool {
	return resp.StatusCode() >= http.StatusInternalServerError
}

// UnexpectedStatus formats a provider failure keeping its original body.
func UnexpectedStatus(provider string, resp *resty.Response) error {
	return fmt.Errorf("%s api error: status %d: %s", provider, resp.StatusCode(), resp.String())
}
