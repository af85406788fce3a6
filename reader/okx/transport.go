package okx

import "net/http"

const userAgent = "cryptolens-okx/1.0"

// userAgentTransport stamps every request; OKX throttles blank agents harder.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	req.Header.Set("Accept", "application/json")
	return t.base.RoundTrip(req)
}

func withUserAgent(client *http.Client) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = userAgentTransport{agent: userAgent, base: base}
	return client
}
