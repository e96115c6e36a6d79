package proxy

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pulsegate/pkg/engine"
)

// handshakeHeaders are set by the dialer itself and must not be copied.
var handshakeHeaders = map[string]bool{
	"Upgrade":                  true,
	"Connection":               true,
	"Sec-Websocket-Key":        true,
	"Sec-Websocket-Version":    true,
	"Sec-Websocket-Extensions": true,
	"Host":                     true,
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// relay bridges one client WebSocket to the upstream feed. Upstream frames
// go through the dispatcher; client frames are forwarded as is.
type relay struct {
	upstream *url.URL
	prefix   string
	d        *engine.Dispatcher
	dialer   websocket.Dialer
	srv      *Server
}

func (rl *relay) target(r *http.Request) string {
	u := *rl.upstream
	path := strings.TrimPrefix(r.URL.Path, rl.prefix)
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	u.RawQuery = r.URL.RawQuery
	return u.String()
}

func (rl *relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	for k, vs := range r.Header {
		if !handshakeHeaders[http.CanonicalHeaderKey(k)] {
			header[k] = vs
		}
	}

	target := rl.target(r)
	up, resp, err := rl.dialer.DialContext(r.Context(), target, header)
	if err != nil {
		rl.srv.logger.Error("Upstream WebSocket dial failed", "target", target, "error", err)
		status := http.StatusBadGateway
		if resp != nil {
			status = resp.StatusCode
		}
		http.Error(w, "upstream unavailable", status)
		return
	}
	defer up.Close()

	respHeader := http.Header{}
	if proto := up.Subprotocol(); proto != "" {
		respHeader.Set("Sec-Websocket-Protocol", proto)
	}
	client, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		rl.srv.logger.Warn("Client upgrade failed", "error", err)
		return
	}
	defer client.Close()

	frame := engine.Frame{ServerAddr: rl.upstream.Host, RequestHost: r.Host}
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		pipe(client, up, func(payload []byte) engine.Outcome {
			f := frame
			f.FromClient = true
			f.Payload = payload
			return rl.d.HandleWebSocket(f)
		})
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		pipe(up, client, func(payload []byte) engine.Outcome {
			f := frame
			f.Payload = payload
			return rl.d.HandleWebSocket(f)
		})
	}()

	<-done
}

// pipe copies frames from src to dst until either side fails. Text frames
// are decided by decide; other frames are copied unchanged.
func pipe(src, dst *websocket.Conn, decide func([]byte) engine.Outcome) {
	for {
		mt, payload, err := src.ReadMessage()
		if err != nil {
			closeWith(dst, err)
			return
		}

		if mt == websocket.TextMessage {
			out := decide(payload)
			switch out.Action {
			case engine.ActionDrop:
				continue
			case engine.ActionReplace:
				payload = out.Payload
			}
		}

		if err := dst.WriteMessage(mt, payload); err != nil {
			return
		}
	}
}

// closeWith forwards the close code of err to conn.
func closeWith(conn *websocket.Conn, err error) {
	code, text := websocket.CloseNormalClosure, ""
	if ce, ok := err.(*websocket.CloseError); ok {
		code, text = ce.Code, ce.Text
		if code == websocket.CloseNoStatusReceived || code == websocket.CloseAbnormalClosure {
			code = websocket.CloseNormalClosure
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}
