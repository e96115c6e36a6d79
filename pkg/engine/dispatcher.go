package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"

	"pulsegate/pkg/config"
	"pulsegate/pkg/model"
	"pulsegate/pkg/stats"
)

// roomPrefixLen is how many leading characters are searched for a room tag.
const roomPrefixLen = 50

// ErrMalformedPayload is reported when a payload is not valid JSON.
var ErrMalformedPayload = errors.New("malformed payload")

// Action tells the transport what to do with a message.
type Action int

const (
	// ActionPass leaves the message untouched.
	ActionPass Action = iota
	// ActionReplace swaps the payload for Outcome.Payload.
	ActionReplace
	// ActionDrop suppresses the message entirely.
	ActionDrop
)

func (a Action) String() string {
	switch a {
	case ActionPass:
		return "pass"
	case ActionReplace:
		return "replace"
	case ActionDrop:
		return "drop"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Outcome is the decision for one message or response.
type Outcome struct {
	Action  Action
	Payload []byte // set only for ActionReplace
}

func pass() Outcome                 { return Outcome{Action: ActionPass} }
func drop() Outcome                 { return Outcome{Action: ActionDrop} }
func replace(payload []byte) Outcome { return Outcome{Action: ActionReplace, Payload: payload} }

// Frame is one WebSocket message as seen by the transport.
type Frame struct {
	ServerAddr  string // resolved upstream address
	RequestHost string // host the client asked for
	FromClient  bool
	Payload     []byte
}

// Response is one HTTP exchange as seen by the transport.
type Response struct {
	ServerAddr  string
	RequestHost string
	Method      string
	Path        string
	Body        []byte
}

// Dispatcher classifies intercepted traffic and routes it through the
// decoder, policy and rewriter. It never returns an error to the transport:
// anything it cannot handle is passed through unchanged.
type Dispatcher struct {
	cfg    *config.FilterConfig
	policy *Policy
	stats  *stats.Aggregator
	logger *slog.Logger

	messages *prometheus.CounterVec
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRegisterer exports per-action message counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(d *Dispatcher) {
		d.messages = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsegate_messages_total",
			Help: "Intercepted messages by kind and action taken",
		}, []string{"kind", "action"})
		reg.MustRegister(d.messages)
	}
}

// NewDispatcher creates a dispatcher for cfg that records into agg.
func NewDispatcher(cfg *config.FilterConfig, agg *stats.Aggregator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:    cfg,
		policy: PolicyFromConfig(cfg),
		stats:  agg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Policy() *Policy          { return d.policy }
func (d *Dispatcher) Stats() *stats.Aggregator { return d.stats }

// IsTargetHost reports whether either the resolved server address or the
// requested host contains the configured target host.
func (d *Dispatcher) IsTargetHost(serverAddr, requestHost string) bool {
	target := d.cfg.TargetHost
	return strings.Contains(serverAddr, target) || strings.Contains(requestHost, target)
}

// ClassifyRoom finds the room tag in the first characters of text.
// It returns "" when neither room is present.
func (d *Dispatcher) ClassifyRoom(text string) string {
	n := 0
	for i := range text {
		if n == roomPrefixLen {
			text = text[:i]
			break
		}
		n++
	}
	head := strings.ToLower(text)

	switch {
	case strings.Contains(head, d.cfg.RoomNewPairs):
		return d.cfg.RoomNewPairs
	case strings.Contains(head, d.cfg.RoomUpdatePulse):
		return d.cfg.RoomUpdatePulse
	default:
		return ""
	}
}

// HandleWebSocket decides one WebSocket message. Only server-to-client text
// from the target host is inspected.
func (d *Dispatcher) HandleWebSocket(f Frame) Outcome {
	if f.FromClient || !d.IsTargetHost(f.ServerAddr, f.RequestHost) || !utf8.Valid(f.Payload) {
		return pass()
	}

	var out Outcome
	kind := "ws"
	switch d.ClassifyRoom(string(f.Payload)) {
	case d.cfg.RoomUpdatePulse:
		kind = "update_pulse"
		out = d.handleUpdatePulse(f.Payload)
	case d.cfg.RoomNewPairs:
		kind = "new_pairs"
		out = d.handleNewPairs(f.Payload)
	default:
		out = pass()
	}
	d.count(kind, out)
	return out
}

func (d *Dispatcher) handleUpdatePulse(payload []byte) Outcome {
	env, err := parseJSON(payload)
	if err != nil {
		d.diag("Failed to decode update_pulse message", err)
		return pass()
	}

	content := env.Get("content")
	if !content.IsArray() {
		return pass()
	}

	res := RewriteComposite(content.Array(), model.DecodeUpdatePulseItem, d.policy.Keep)
	d.stats.Record(model.CategoryPulse, res.Total, len(res.Kept))
	d.info("Update Pulse: items filtered", "kept", len(res.Kept), "total", res.Total)

	if res.DropWholeMessage {
		d.verbose("Message dropped - no items passed filter")
		return drop()
	}
	if res.Dropped() == 0 {
		return pass()
	}

	out, err := ReplaceContent(payload, res.Kept)
	if err != nil {
		d.diag("Error filtering update_pulse message", err)
		return pass()
	}
	return replace(out)
}

// handleNewPairs evaluates one announcement. With SuppressNewPairs every
// new_pairs message is dropped, including ones that cannot be decoded.
func (d *Dispatcher) handleNewPairs(payload []byte) Outcome {
	out := d.evaluateNewPair(payload)
	if d.cfg.SuppressNewPairs {
		return drop()
	}
	return out
}

func (d *Dispatcher) evaluateNewPair(payload []byte) Outcome {
	env, err := parseJSON(payload)
	if err != nil {
		d.diag("Failed to decode new_pairs message", err)
		return pass()
	}

	content := env.Get("content")
	if !content.Exists() {
		return pass()
	}

	pair := model.DecodeNewPair(content)
	keep := KeepNewPair(pair)
	d.stats.RecordNewPair(keep)

	if !keep {
		d.verbose("New pair message dropped")
		return drop()
	}
	name := pair.TokenName
	if name == "" {
		name = "Unknown"
	}
	d.verbose("New pair kept", "token_name", name)
	return pass()
}

// HandleResponse decides one HTTP response. Only POST requests to the pulse
// path on the target host are inspected. A dropped singleton becomes {}; the
// response itself is never suppressed.
func (d *Dispatcher) HandleResponse(r Response) Outcome {
	if !d.Inspects(r) {
		return pass()
	}

	out := d.handlePulseResponse(r.Body)
	d.count("xhr", out)
	return out
}

// Inspects reports whether HandleResponse would look at the body of r.
func (d *Dispatcher) Inspects(r Response) bool {
	return r.Method == http.MethodPost && r.Path == d.cfg.PulsePath && d.IsTargetHost(r.ServerAddr, r.RequestHost)
}

func (d *Dispatcher) handlePulseResponse(body []byte) Outcome {
	root, err := parseJSON(body)
	if err != nil {
		d.diag("Failed to decode /pulse response", err)
		return pass()
	}

	switch {
	case root.IsArray():
		res := RewriteComposite(root.Array(), model.DecodeXHRResponse, d.policy.Keep)
		d.stats.Record(model.CategoryXHR, res.Total, len(res.Kept))
		d.info("XHR /pulse: items filtered", "kept", len(res.Kept), "total", res.Total)
		if res.Dropped() == 0 {
			return pass()
		}
		return replace(encodeArray(res.Kept))

	case root.IsObject():
		keep := RewriteSingleton(model.DecodeXHRResponse(root), d.policy.Keep)
		kept := 0
		if keep {
			kept = 1
		}
		d.stats.Record(model.CategoryXHR, 1, kept)
		if keep {
			return pass()
		}
		d.verbose("XHR response filtered out")
		return replace(emptyObject)

	default:
		return pass()
	}
}

func parseJSON(payload []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(payload) {
		return gjson.Result{}, fmt.Errorf("%w: %d bytes", ErrMalformedPayload, len(payload))
	}
	return gjson.ParseBytes(payload), nil
}

func (d *Dispatcher) count(kind string, out Outcome) {
	if d.messages != nil {
		d.messages.WithLabelValues(kind, out.Action.String()).Inc()
	}
}

// diag logs a recoverable failure when logging is enabled.
func (d *Dispatcher) diag(msg string, err error) {
	if d.cfg.Logging {
		d.logger.Error(msg, "error", err)
	}
}

func (d *Dispatcher) info(msg string, args ...any) {
	if d.cfg.Logging {
		d.logger.Info(msg, args...)
	}
}

func (d *Dispatcher) verbose(msg string, args ...any) {
	if d.cfg.VerboseLogging {
		d.logger.Info(msg, args...)
	}
}
