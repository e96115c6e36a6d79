package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"pulsegate/pkg/config"
	"pulsegate/pkg/stats"
)

const (
	upstream = "cluster7.axiom.trade:443"
	client   = "localhost:8080"
)

// pulseItem builds a positional update_pulse item. An empty funder leaves
// the funding slot null.
func pulseItem(pair, dev, funder string) []any {
	item := make([]any, 43)
	item[0] = pair
	item[2] = dev
	item[36] = []any{}
	if funder != "" {
		item[39] = map[string]any{"fundingWalletAddress": funder, "amountSol": 1.5}
	}
	return item
}

// pulseEnvelope keeps "room" ahead of "content" so the room tag sits inside
// the classification prefix, as on the live feed.
type pulseEnvelope struct {
	Room    string  `json:"room"`
	Content [][]any `json:"content"`
}

func updatePulse(t *testing.T, items ...[]any) []byte {
	t.Helper()
	b, err := json.Marshal(pulseEnvelope{Room: "update_pulse_v2", Content: items})
	require.NoError(t, err)
	return b
}

func newTestDispatcher(cfg *config.FilterConfig) *Dispatcher {
	return NewDispatcher(cfg, stats.NewAggregator(nil))
}

func TestDispatcher_IsTargetHost(t *testing.T) {
	d := newTestDispatcher(filterConfig(false, true, nil, nil))

	assert.True(t, d.IsTargetHost(upstream, client))
	assert.True(t, d.IsTargetHost("10.0.0.1:443", "api.axiom.trade"))
	assert.False(t, d.IsTargetHost("10.0.0.1:443", "example.com"))
}

func TestDispatcher_ClassifyRoom(t *testing.T) {
	d := newTestDispatcher(filterConfig(false, true, nil, nil))

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "update pulse", text: `{"room":"update_pulse_v2","content":[]}`, want: "update_pulse_v2"},
		{name: "new pairs", text: `{"room":"new_pairs","content":{}}`, want: "new_pairs"},
		{name: "case insensitive", text: `{"room":"NEW_PAIRS"}`, want: "new_pairs"},
		{name: "new pairs checked first", text: `{"a":"update_pulse_v2","b":"new_pairs"}`, want: "new_pairs"},
		{name: "beyond prefix", text: fmt.Sprintf(`{"pad":"%050d","room":"new_pairs"}`, 0), want: ""},
		{name: "multibyte prefix counted in characters", text: `{"é":"ééééééééééééééééééééé","room":"new_pairs"}`, want: "new_pairs"},
		{name: "other room", text: `{"room":"sol_price"}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.ClassifyRoom(tt.text))
		})
	}
}

func TestDispatcher_UpdatePulseFilters(t *testing.T) {
	d := newTestDispatcher(filterConfig(false, true, nil, []string{"X"}))
	payload := updatePulse(t,
		pulseItem("p1", "d1", ""),
		pulseItem("p2", "d2", "X"),
		pulseItem("p3", "d3", "Y"),
	)
	require.Equal(t, "update_pulse_v2", d.ClassifyRoom(string(payload)))

	out := d.HandleWebSocket(Frame{ServerAddr: upstream, RequestHost: client, Payload: payload})

	require.Equal(t, ActionReplace, out.Action)
	content := gjson.GetBytes(out.Payload, "content").Array()
	require.Len(t, content, 1)
	assert.Equal(t, "p2", content[0].Get("0").String())
	assert.Equal(t, "update_pulse_v2", gjson.GetBytes(out.Payload, "room").String())
	assert.Equal(t, stats.Counts{Total: 3, Kept: 1}, d.Stats().Snapshot().Pulse)

	again := d.HandleWebSocket(Frame{ServerAddr: upstream, RequestHost: client, Payload: out.Payload})
	assert.Equal(t, ActionPass, again.Action, "filtered output passes unchanged")
}

func TestDispatcher_UpdatePulseAllDropped(t *testing.T) {
	d := newTestDispatcher(filterConfig(false, true, nil, []string{"X"}))
	payload := updatePulse(t, pulseItem("p1", "d1", ""), pulseItem("p2", "d2", "Y"))

	out := d.HandleWebSocket(Frame{ServerAddr: upstream, Payload: payload})

	assert.Equal(t, ActionDrop, out.Action)
	assert.Nil(t, out.Payload)
	assert.Equal(t, stats.Counts{Total: 2, Kept: 0}, d.Stats().Snapshot().Pulse)
}

func TestDispatcher_UpdatePulseEmptyContentDropped(t *testing.T) {
	d := newTestDispatcher(filterConfig(false, true, nil, []string{"X"}))

	out := d.HandleWebSocket(Frame{ServerAddr: upstream, Payload: []byte(`{"room":"update_pulse_v2","content":[]}`)})

	assert.Equal(t, ActionDrop, out.Action)
	assert.Equal(t, stats.Counts{}, d.Stats().Snapshot().Pulse)
}

func TestDispatcher_WebSocketPassthrough(t *testing.T) {
	d := newTestDispatcher(filterConfig(false, true, nil, []string{"X"}))
	dropAll := updatePulse(t, pulseItem("p1", "d1", ""))

	tests := []struct {
		name  string
		frame Frame
	}{
		{name: "client to server", frame: Frame{ServerAddr: upstream, FromClient: true, Payload: dropAll}},
		{name: "other host", frame: Frame{ServerAddr: "example.com:443", RequestHost: "example.com", Payload: dropAll}},
		{name: "binary frame", frame: Frame{ServerAddr: upstream, Payload: []byte{0xff, 0xfe, 'u', 'p'}}},
		{name: "malformed json", frame: Frame{ServerAddr: upstream, Payload: []byte(`{"room":"update_pulse_v2","content":[`)}},
		{name: "content not a list", frame: Frame{ServerAddr: upstream, Payload: []byte(`{"room":"update_pulse_v2","content":{"a":1}}`)}},
		{name: "content missing", frame: Frame{ServerAddr: upstream, Payload: []byte(`{"room":"update_pulse_v2"}`)}},
		{name: "unrelated room", frame: Frame{ServerAddr: upstream, Payload: []byte(`{"room":"sol_price","content":[1]}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := d.HandleWebSocket(tt.frame)
			assert.Equal(t, ActionPass, out.Action)
			assert.Nil(t, out.Payload)
		})
	}
	assert.Equal(t, stats.Snapshot{}, d.Stats().Snapshot())
}

func TestDispatcher_NewPairs(t *testing.T) {
	cfg := filterConfig(false, true, nil, nil)
	d := newTestDispatcher(cfg)
	payload := []byte(`{"room":"new_pairs","content":{"pair_address":"p","token_name":"Moon"}}`)

	out := d.HandleWebSocket(Frame{ServerAddr: upstream, Payload: payload})
	assert.Equal(t, ActionPass, out.Action)

	out = d.HandleWebSocket(Frame{ServerAddr: upstream, Payload: []byte(`{"room":"new_pairs"}`)})
	assert.Equal(t, ActionPass, out.Action, "missing content is not counted")

	assert.Equal(t, stats.Counts{Total: 1, Kept: 1}, d.Stats().Snapshot().NewPair)

	cfg.SuppressNewPairs = true
	out = d.HandleWebSocket(Frame{ServerAddr: upstream, Payload: payload})
	assert.Equal(t, ActionDrop, out.Action)
	assert.Equal(t, stats.Counts{Total: 2, Kept: 2}, d.Stats().Snapshot().NewPair)
}

func TestDispatcher_SuppressNewPairsDropsEveryMessage(t *testing.T) {
	cfg := filterConfig(false, true, nil, nil)
	cfg.SuppressNewPairs = true
	d := newTestDispatcher(cfg)

	for _, payload := range []string{
		`{"room":"new_pairs","content":{"token_name":"Moon"}}`,
		`{"room":"new_pairs"}`,
		`{"room":"new_pairs", bad`,
	} {
		out := d.HandleWebSocket(Frame{ServerAddr: upstream, Payload: []byte(payload)})
		assert.Equal(t, ActionDrop, out.Action, payload)
	}
	assert.Equal(t, stats.Counts{Total: 1, Kept: 1}, d.Stats().Snapshot().NewPair, "only decodable pairs are counted")
}

func TestDispatcher_ResponseList(t *testing.T) {
	d := newTestDispatcher(filterConfig(false, true, nil, []string{"X"}))
	resp := Response{ServerAddr: "api.axiom.trade:443", Method: http.MethodPost, Path: "/pulse", Body: []byte(xhrItems)}

	out := d.HandleResponse(resp)

	require.Equal(t, ActionReplace, out.Action)
	items := gjson.ParseBytes(out.Payload).Array()
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].Get("pairAddress").String())
	assert.Equal(t, stats.Counts{Total: 3, Kept: 1}, d.Stats().Snapshot().XHR)
}

func TestDispatcher_ResponseListNothingKept(t *testing.T) {
	d := newTestDispatcher(filterConfig(false, true, nil, []string{"Z"}))

	out := d.HandleResponse(Response{ServerAddr: "api.axiom.trade", Method: http.MethodPost, Path: "/pulse", Body: []byte(xhrItems)})

	assert.Equal(t, ActionReplace, out.Action, "responses are rewritten, never suppressed")
	assert.Equal(t, "[]", string(out.Payload))
}

func TestDispatcher_ResponseSingleton(t *testing.T) {
	d := newTestDispatcher(filterConfig(false, true, nil, []string{"X"}))
	base := Response{ServerAddr: "api.axiom.trade", Method: http.MethodPost, Path: "/pulse"}

	base.Body = []byte(`{"pairAddress":"p","devWalletFunding":{"fundingWalletAddress":"Y"}}`)
	out := d.HandleResponse(base)
	assert.Equal(t, ActionReplace, out.Action)
	assert.Equal(t, "{}", string(out.Payload))

	base.Body = []byte(`{"pairAddress":"p","devWalletFunding":{"fundingWalletAddress":"X"}}`)
	out = d.HandleResponse(base)
	assert.Equal(t, ActionPass, out.Action)

	assert.Equal(t, stats.Counts{Total: 2, Kept: 1}, d.Stats().Snapshot().XHR)
}

func TestDispatcher_ResponsePassthrough(t *testing.T) {
	d := newTestDispatcher(filterConfig(false, true, nil, []string{"Z"}))
	body := []byte(xhrItems)

	tests := []struct {
		name string
		resp Response
	}{
		{name: "GET", resp: Response{ServerAddr: "api.axiom.trade", Method: http.MethodGet, Path: "/pulse", Body: body}},
		{name: "other path", resp: Response{ServerAddr: "api.axiom.trade", Method: http.MethodPost, Path: "/pulse2", Body: body}},
		{name: "other host", resp: Response{ServerAddr: "example.com", RequestHost: "example.com", Method: http.MethodPost, Path: "/pulse", Body: body}},
		{name: "malformed", resp: Response{ServerAddr: "api.axiom.trade", Method: http.MethodPost, Path: "/pulse", Body: []byte("<html>")}},
		{name: "scalar", resp: Response{ServerAddr: "api.axiom.trade", Method: http.MethodPost, Path: "/pulse", Body: []byte(`"ok"`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ActionPass, d.HandleResponse(tt.resp).Action)
		})
	}
	assert.Equal(t, stats.Counts{}, d.Stats().Snapshot().XHR)
}

func TestDispatcher_MessageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := NewDispatcher(filterConfig(false, true, nil, []string{"X"}), stats.NewAggregator(reg), WithRegisterer(reg))

	d.HandleWebSocket(Frame{ServerAddr: upstream, Payload: updatePulse(t, pulseItem("p1", "d1", ""))})
	d.HandleWebSocket(Frame{ServerAddr: upstream, Payload: updatePulse(t, pulseItem("p2", "d2", "X"))})

	assert.InDelta(t, 1, testutil.ToFloat64(d.messages.WithLabelValues("update_pulse", "drop")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(d.messages.WithLabelValues("update_pulse", "pass")), 1e-9)
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "pass", ActionPass.String())
	assert.Equal(t, "replace", ActionReplace.String())
	assert.Equal(t, "drop", ActionDrop.String())
	assert.Equal(t, "action(9)", Action(9).String())
}

func TestDispatcher_MalformedIsLoggedAndPassed(t *testing.T) {
	var buf bytes.Buffer
	cfg := filterConfig(false, true, nil, []string{"X"})
	cfg.Logging = true
	d := NewDispatcher(cfg, stats.NewAggregator(nil), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	out := d.HandleWebSocket(Frame{ServerAddr: upstream, Payload: []byte(`{"room":"update_pulse_v2",`)})
	assert.Equal(t, ActionPass, out.Action)
	assert.Contains(t, buf.String(), "Failed to decode update_pulse message")

	_, err := parseJSON([]byte("nope"))
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}
