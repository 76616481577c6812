package transport

import (
	"net/http"
	"time"

	"github.com/tailored-agentic-units/echodev/device"
	"github.com/tailored-agentic-units/echodev/observability"
)

const readHeaderTimeout = 10 * time.Second

// NewServer returns an HTTP server on addr serving d over HTTP/1.1 and
// cleartext HTTP/2.
func NewServer(addr string, d *device.Device, observer observability.Observer) *http.Server {
	path, handler := NewHandler(d, observer)

	mux := http.NewServeMux()
	mux.Handle(path, handler)

	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		Protocols:         protocols,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
