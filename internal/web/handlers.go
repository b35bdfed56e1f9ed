package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/rotago/internal/debug"
	"github.com/cjeanneret/rotago/internal/logic/animation"
	"github.com/cjeanneret/rotago/internal/logic/motion"
	"github.com/cjeanneret/rotago/internal/logic/rotation"
)

const (
	maxBodyBytes    = 64 << 10
	heartbeatPeriod = 30 * time.Second
	wsWriteTimeout  = 5 * time.Second
)

// RotateFunc starts a rotation and returns its keyframes. It must not block
// until the rotation ends; cb reports start and end.
type RotateFunc func(req animation.Request, cb animation.Callbacks) (rotation.Sequence, error)

// ConfigView is the animation configuration shown to the browser.
type ConfigView struct {
	DurationS      float64  `json:"duration_s"`
	DelayS         float64  `json:"delay_s"`
	IterationCount int      `json:"iteration_count"`
	Direction      string   `json:"direction"`
	FillMode       string   `json:"fill_mode"`
	StepLimitDeg   float64  `json:"step_limit_deg"`
	Axes           []string `json:"axes"`
}

// NewConfigView builds the view from the animation defaults.
func NewConfigView(cfg animation.Config, stepLimit float64, axes []string) ConfigView {
	return ConfigView{
		DurationS:      cfg.Duration.Seconds(),
		DelayS:         cfg.Delay.Seconds(),
		IterationCount: cfg.IterationCount,
		Direction:      string(cfg.Direction),
		FillMode:       string(cfg.FillMode),
		StepLimitDeg:   stepLimit,
		Axes:           axes,
	}
}

// PlanResponse is returned by GET /plan and POST /rotate.
type PlanResponse struct {
	Status    string              `json:"status,omitempty"`
	Degrees   float64             `json:"degrees"`
	Clockwise bool                `json:"clockwise"`
	Keyframes []rotation.Keyframe `json:"keyframes"`
}

// RotateBody is the POST /rotate payload.
type RotateBody struct {
	Target    string   `json:"target"`
	Degrees   float64  `json:"degrees"`
	Clockwise bool     `json:"clockwise"`
	DurationS *float64 `json:"duration_s,omitempty"`
}

// Request converts the body into a rotation request. A duration that is not
// a positive finite number of seconds leaves the configured duration.
func (b RotateBody) Request() animation.Request {
	req := animation.Request{Target: b.Target, Degrees: b.Degrees, Clockwise: b.Clockwise}
	if b.DurationS != nil {
		if d, ok := animation.DurationFromSeconds(*b.DurationS); ok {
			req.Duration = d
		}
	}
	return req
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Rotate      RotateFunc
	Config      ConfigView
	staticFS    fs.FS
	upgrader    websocket.Upgrader
}

// NewHandlers creates handlers with the given dependencies.
// If rotate is nil, POST /rotate returns 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, rotate RotateFunc, cfg ConfigView, staticFS fs.FS) *Handlers {
	if cfg.StepLimitDeg <= 0 {
		cfg.StepLimitDeg = rotation.StepLimit
	}
	return &Handlers{
		Broadcaster: broadcaster,
		Rotate:      rotate,
		Config:      cfg,
		staticFS:    staticFS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true }, // LAN appliance
		},
	}
}

// HandleConfig returns the animation defaults as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Config)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandlePlan handles GET /plan?degrees=&clockwise= and returns the keyframes
// without moving anything.
func (h *Handlers) HandlePlan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	degrees, err := strconv.ParseFloat(q.Get("degrees"), 64)
	if err != nil {
		http.Error(w, "degrees must be a number", http.StatusBadRequest)
		return
	}
	clockwise := false
	if s := q.Get("clockwise"); s != "" {
		if clockwise, err = strconv.ParseBool(s); err != nil {
			http.Error(w, "clockwise must be a boolean", http.StatusBadRequest)
			return
		}
	}

	seq, err := rotation.PlanWithLimit(degrees, clockwise, h.Config.StepLimitDeg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, PlanResponse{Degrees: degrees, Clockwise: clockwise, Keyframes: seq})
}

// HandleRotate handles POST /rotate. The rotation runs in the background;
// progress is reported through the broadcaster.
func (h *Handlers) HandleRotate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeRotateBody(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.Rotate == nil {
		http.Error(w, "rotation not configured", http.StatusServiceUnavailable)
		return
	}

	req := body.Request()
	axis := req.Target
	seq, err := h.Rotate(req, animation.Callbacks{
		OnStart: func() {
			h.Broadcaster.BroadcastAxis("info", axis, fmt.Sprintf("rotating %g° %s", req.Degrees, turnName(req.Clockwise)))
		},
		OnEnd: func(err error) {
			if err != nil {
				h.Broadcaster.BroadcastAxis("error", axis, "rotation failed: "+err.Error())
				return
			}
			h.Broadcaster.BroadcastAxis("info", axis, "rotation complete")
		},
	})
	switch {
	case err == nil:
	case errors.Is(err, motion.ErrAxisBusy):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, animation.ErrNoPlayer):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		debug.Error(fmt.Errorf("rotate %s: %w", axis, err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, PlanResponse{
		Status:    "started",
		Degrees:   req.Degrees,
		Clockwise: req.Clockwise,
		Keyframes: seq,
	})
}

// decodeRotateBody validates the raw JSON against the rotate schema before
// decoding it into a RotateBody.
func decodeRotateBody(r io.Reader) (RotateBody, error) {
	var body RotateBody
	data, err := io.ReadAll(r)
	if err != nil {
		return body, fmt.Errorf("read body: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return body, errors.New("invalid JSON")
	}
	if err := rotateSchema.Validate(doc); err != nil {
		return body, fmt.Errorf("invalid request: %w", err)
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return body, errors.New("invalid JSON")
	}
	return body, nil
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandleWS handles GET /ws: the SSE events, one text message each. Anything
// the client sends is ignored; a read error ends the session.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func turnName(clockwise bool) string {
	if clockwise {
		return "clockwise"
	}
	return "counter-clockwise"
}
