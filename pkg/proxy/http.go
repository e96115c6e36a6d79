package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"pulsegate/pkg/engine"
)

type hostKey struct{}

// maxBody caps how much of a /pulse response is buffered for filtering.
const maxBody = 32 << 20

func newReverseProxy(target *url.URL, d *engine.Dispatcher, srv *Server) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// Let the transport negotiate compression so bodies arrive decoded.
			pr.Out.Header.Del("Accept-Encoding")
			pr.Out = pr.Out.WithContext(context.WithValue(pr.Out.Context(), hostKey{}, pr.In.Host))
		},
		ModifyResponse: func(resp *http.Response) error {
			return filterResponse(resp, d)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			srv.logger.Error("Upstream request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

func filterResponse(resp *http.Response, d *engine.Dispatcher) error {
	req := resp.Request
	if req == nil || resp.Header.Get("Content-Encoding") != "" {
		return nil
	}
	clientHost, _ := req.Context().Value(hostKey{}).(string)
	r := engine.Response{
		ServerAddr:  req.URL.Host,
		RequestHost: clientHost,
		Method:      req.Method,
		Path:        req.URL.Path,
	}
	if !d.Inspects(r) {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		resp.Body.Close()
		return fmt.Errorf("failed to read upstream body: %w", err)
	}
	if len(body) > maxBody {
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
		return nil
	}
	resp.Body.Close()

	r.Body = body
	if out := d.HandleResponse(r); out.Action == engine.ActionReplace {
		body = out.Payload
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return nil
}
