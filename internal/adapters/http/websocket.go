package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/traveltime/internal/core/domain"
	"github.com/samirrijal/traveltime/internal/core/usecases"
	"github.com/samirrijal/traveltime/internal/pkg/metrics"
)

// clientMessage is a map event sent by the browser.
//
//	{"type":"load","query":"id=06037000100&mode=car"}
//	{"type":"click","features":[{"id":"06037000200"}]}
//	{"type":"hover","features":[...]}   {"type":"leave"}
//	{"type":"zoom","zoom":9.4}
//	{"type":"select","mode":"bicycle"}  (or geography, year)
type clientMessage struct {
	Type      string              `json:"type"`
	Query     string              `json:"query,omitempty"`
	Features  []domain.MapFeature `json:"features,omitempty"`
	Zoom      *float64            `json:"zoom,omitempty"`
	Mode      string              `json:"mode,omitempty"`
	Geography string              `json:"geography,omitempty"`
	Year      int                 `json:"year,omitempty"`
}

// serverMessage is pushed to the browser. Only the fields of its type are set.
type serverMessage struct {
	Type    string         `json:"type"`
	Layer   string         `json:"layer,omitempty"`
	States  []featureState `json:"states,omitempty"`
	Percent *int           `json:"percent,omitempty"`
	Labels  []string       `json:"labels,omitempty"`
	Query   *string        `json:"query,omitempty"`
	Message string         `json:"message,omitempty"`
}

type featureState struct {
	ID    string `json:"id"`
	Color string `json:"color,omitempty"`
	Hover *bool  `json:"hover,omitempty"`
}

// colorName is the map style token for a bucket.
func colorName(b domain.ColorBucket) string {
	if b >= domain.Bucket1 && b <= domain.Bucket6 {
		return fmt.Sprintf("color_%d", int(b))
	}
	return "none"
}

type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// mapSession is the server side of one map view. It renders feature
// states, legend, progress and URL changes as JSON messages and feeds
// client events to an InteractionController.
type mapSession struct {
	ctx  context.Context
	ctrl *usecases.InteractionController
	log  *slog.Logger

	mu sync.Mutex // serialises writes
	w  messageWriter

	tasks sync.WaitGroup
}

func newMapSession(ctx context.Context, deps *Dependencies, w messageWriter, log *slog.Logger) *mapSession {
	s := &mapSession{ctx: ctx, w: w, log: log}
	recon := usecases.NewReconciler(s, deps.Thresholds)
	coord := usecases.NewQueryCoordinator(deps.Times, func(busy bool) { s.Busy(ctx, busy) })
	s.ctrl = usecases.NewInteractionController(
		coord, recon, s, s,
		deps.Catalog.Defaults, deps.Catalog.Years, deps.Catalog.DefaultZoom,
	)
	return s
}

func (s *mapSession) send(m serverMessage) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.WriteMessage(websocket.TextMessage, data)
}

func (s *mapSession) SetFeatureStates(ctx context.Context, layer domain.Geography, states []domain.FeatureState) error {
	out := make([]featureState, len(states))
	for i, st := range states {
		out[i] = featureState{ID: st.ID, Hover: st.Hover}
		if st.Bucket != nil {
			out[i].Color = colorName(*st.Bucket)
		}
	}
	return s.send(serverMessage{Type: "state", Layer: string(layer), States: out})
}

func (s *mapSession) SetLegend(ctx context.Context, labels [domain.BucketCount]string) error {
	return s.send(serverMessage{Type: "legend", Labels: labels[:]})
}

func (s *mapSession) Progress(ctx context.Context, percent int) {
	_ = s.send(serverMessage{Type: "progress", Percent: &percent})
}

func (s *mapSession) Busy(ctx context.Context, busy bool) {
	t := "idle"
	if busy {
		t = "busy"
	}
	_ = s.send(serverMessage{Type: t})
}

func (s *mapSession) Warn(ctx context.Context, message string) {
	_ = s.send(serverMessage{Type: "warning", Message: message})
}

func (s *mapSession) Replace(ctx context.Context, q url.Values) error {
	enc := q.Encode()
	return s.send(serverMessage{Type: "url", Query: &enc})
}

// handle dispatches one client message. Events that may start a query
// run in the background so that hover and zoom keep flowing while it
// runs; a second query meanwhile is dropped by the coordinator.
func (s *mapSession) handle(data []byte) {
	var m clientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		s.Warn(s.ctx, "invalid message")
		return
	}

	ctx := s.ctx
	switch m.Type {
	case "load":
		q, err := url.ParseQuery(strings.TrimPrefix(m.Query, "?"))
		if err != nil {
			s.Warn(ctx, "invalid query string")
			return
		}
		s.async(func() error { return s.ctrl.Load(ctx, q) })
	case "click":
		s.async(func() error { return s.ctrl.Click(ctx, m.Features) })
	case "hover":
		s.report(s.ctrl.MouseMove(ctx, m.Features))
	case "leave":
		s.report(s.ctrl.MouseLeave(ctx))
	case "zoom":
		if m.Zoom == nil {
			s.Warn(ctx, "zoom message without zoom level")
			return
		}
		s.report(s.ctrl.ZoomEnd(ctx, *m.Zoom))
	case "select":
		switch {
		case m.Mode != "":
			s.async(func() error { return s.ctrl.SetMode(ctx, domain.Mode(m.Mode)) })
		case m.Geography != "":
			s.async(func() error { return s.ctrl.SetGeography(ctx, domain.Geography(m.Geography)) })
		case m.Year != 0:
			s.async(func() error { return s.ctrl.SetYear(ctx, m.Year) })
		default:
			s.Warn(ctx, "select message without mode, geography or year")
		}
	default:
		s.Warn(ctx, "unknown message type: "+m.Type)
	}
}

func (s *mapSession) async(fn func() error) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		s.report(fn())
	}()
}

// report logs errors the controller has not already shown to the user.
func (s *mapSession) report(err error) {
	if err == nil || errors.Is(err, domain.ErrBusy) || errors.Is(err, context.Canceled) {
		return
	}
	s.log.Debug("map event failed", "error", err)
}

// wait blocks until background events have finished.
func (s *mapSession) wait() { s.tasks.Wait() }

// MapSessionHandler serves one map view per WebSocket connection. The
// session's queries are cancelled when the client disconnects.
func MapSessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		log := slog.Default().With("remote", c.RemoteAddr().String())
		log.Info("map session opened")
		metrics.ActiveMapSessions.Inc()
		defer metrics.ActiveMapSessions.Dec()

		s := newMapSession(ctx, deps, c, log)

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					s.mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			s.handle(msg)
		}

		cancel()
		s.wait()
		log.Info("map session closed")
	}
}
