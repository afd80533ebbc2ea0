package eventloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"screen-snip/src/encoder"
	"screen-snip/src/events"
	"screen-snip/src/hotkey"
	"screen-snip/src/notification"
	"screen-snip/src/singleinstance"
	"screen-snip/src/snip"
	"screen-snip/src/tray"
	"screen-snip/src/worker"
)

// Controller is the snip workflow driven by resident requests.
type Controller interface {
	Start(ctx context.Context) error
	Query() (encoder.Image, error)
	Finish(sel snip.Selection) error
	Cancel() error
	Log(message string)
	CaptureFullscreen() (encoder.Image, error)
	Status() snip.Status
}

// Loop is the coordinator for resident TCP requests, hotkey and tray triggers.
type Loop struct {
	ctrl           Controller
	bus            *events.Bus
	srv            singleinstance.Server
	triggers       chan trigger
	defaultTooltip string
	waitTimeout    time.Duration
	workers        int
}

type trigger int

const (
	triggerStart trigger = iota
	triggerCancel
)

func (t trigger) String() string {
	if t == triggerCancel {
		return "cancel"
	}
	return "start"
}

// New creates a loop dispatching to ctrl. bus backs WAIT requests.
func New(ctrl Controller, bus *events.Bus) *Loop {
	return &Loop{
		ctrl:           ctrl,
		bus:            bus,
		triggers:       make(chan trigger, 4),
		defaultTooltip: "Screen Snip",
		waitTimeout:    2 * time.Minute,
	}
}

// SetDefaultTooltip optionally sets the tray tooltip base text.
func (l *Loop) SetDefaultTooltip(tt string) { l.defaultTooltip = tt }

// SetWorkers sets how many requests are served concurrently; <=0 picks a default.
func (l *Loop) SetWorkers(n int) { l.workers = n }

// SetWaitTimeout bounds how long a WAIT request may block.
func (l *Loop) SetWaitTimeout(d time.Duration) { l.waitTimeout = d }

// StartHotkey registers a global hotkey that starts a snip.
func (l *Loop) StartHotkey(combo string) {
	if combo == "" {
		return
	}
	hotkey.Listen(combo, l.TriggerStart)
}

// TriggerStart asks the loop to start a snip. Extra presses are dropped while the queue is full.
func (l *Loop) TriggerStart() { l.post(triggerStart) }

// TriggerCancel asks the loop to cancel the active snip.
func (l *Loop) TriggerCancel() { l.post(triggerCancel) }

func (l *Loop) post(t trigger) {
	select {
	case l.triggers <- t:
	default:
		log.Printf("eventloop: trigger queue full, dropping")
	}
}

// Run starts the singleinstance server and processes client requests.
// It blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.srv = singleinstance.NewServer()
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	defer l.srv.Close()
	if p := l.srv.Port(); p > 0 {
		log.Printf("Resident listening on 127.0.0.1:%d", p)
		tray.SetAboutExtra(fmt.Sprintf("Resident TCP port: %d", p))
	}

	// Accept loop in background so triggers keep flowing while requests block.
	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		defer close(reqCh)
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				return
			}
			select {
			case reqCh <- conn:
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}()

	pool := worker.New(l.workers)
	defer pool.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-l.triggers:
			if !pool.Submit(func() { l.handleTrigger(ctx, t) }) {
				log.Printf("eventloop: all workers busy, dropping %s trigger", t)
				notification.Show("Screen Snip", "Busy, please retry")
			}
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			if !pool.Submit(func() { l.handleConn(ctx, conn) }) {
				log.Printf("eventloop: all workers busy, rejecting %s", conn.Request().Command)
				_ = conn.RespondError("Busy, please retry")
				_ = conn.Close()
			}
		}
	}
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	defer conn.Close()
	body, err := l.Handle(ctx, conn.Request())
	if err != nil {
		log.Printf("eventloop: %s failed: %v", conn.Request().Command, err)
		_ = conn.RespondError(err.Error())
		return
	}
	_ = conn.RespondSuccess(body)
}

func (l *Loop) handleTrigger(ctx context.Context, t trigger) {
	switch t {
	case triggerStart:
		log.Printf("handleTrigger: start")
		l.setBusy(true)
		if err := l.ctrl.Start(ctx); err != nil {
			log.Printf("handleTrigger: start failed: %v", err)
			l.setBusy(false)
			notification.Show("Screen Snip", fmt.Sprintf("Snip failed: %v", err))
		}
	case triggerCancel:
		log.Printf("handleTrigger: cancel")
		if err := l.ctrl.Cancel(); err != nil {
			log.Printf("handleTrigger: cancel failed: %v", err)
		}
		l.setBusy(false)
	}
}

func (l *Loop) setBusy(b bool) {
	if b {
		tray.UpdateTooltip("Screen Snip: selecting...")
	} else {
		tray.UpdateTooltip(l.defaultTooltip)
	}
}

// Handle executes one resident request and returns the SUCCESS body.
func (l *Loop) Handle(ctx context.Context, req singleinstance.Request) (string, error) {
	switch req.Command {
	case singleinstance.CmdPing:
		return "PONG", nil
	case singleinstance.CmdStart:
		if err := l.ctrl.Start(ctx); err != nil {
			return "", err
		}
		l.setBusy(true)
		return "", nil
	case singleinstance.CmdQuery:
		img, err := l.ctrl.Query()
		if err != nil {
			return "", err
		}
		return img.DataURL, nil
	case singleinstance.CmdFinish:
		sel, err := ParseSelection(req.Args)
		if err != nil {
			return "", err
		}
		defer l.setBusy(false)
		return "", l.ctrl.Finish(sel)
	case singleinstance.CmdCancel:
		defer l.setBusy(false)
		return "", l.ctrl.Cancel()
	case singleinstance.CmdLog:
		l.ctrl.Log(strings.Join(req.Args, " "))
		return "", nil
	case singleinstance.CmdCapture:
		img, err := l.ctrl.CaptureFullscreen()
		if err != nil {
			return "", err
		}
		return img.DataURL, nil
	case singleinstance.CmdStatus:
		b, err := json.Marshal(l.ctrl.Status())
		if err != nil {
			return "", err
		}
		return string(b), nil
	case singleinstance.CmdWait:
		return l.wait(ctx, req.Args)
	default:
		return "", fmt.Errorf("unsupported command %q", req.Command)
	}
}

// wait blocks until the next event for a target and returns it as JSON.
func (l *Loop) wait(ctx context.Context, args []string) (string, error) {
	if l.bus == nil {
		return "", errors.New("event bus unavailable")
	}
	if len(args) == 0 || args[0] == "" {
		return "", errors.New("WAIT requires a target")
	}
	name := ""
	if len(args) > 1 {
		name = args[1]
	}
	ch, unsubscribe, err := l.bus.Subscribe(args[0], 4)
	if err != nil {
		return "", err
	}
	defer unsubscribe()

	if l.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.waitTimeout)
		defer cancel()
	}
	ev, err := events.WaitFor(ctx, ch, name)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseSelection reads "x y w h vw vh [polygon]" where polygon is
// "x1,y1;x2,y2;..." in viewport coordinates.
func ParseSelection(args []string) (snip.Selection, error) {
	if len(args) != 6 && len(args) != 7 {
		return snip.Selection{}, fmt.Errorf("%w: expected x y width height viewportWidth viewportHeight [polygon], got %d values", snip.ErrInvalidSelection, len(args))
	}
	var v [6]float32
	for i := 0; i < 6; i++ {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return snip.Selection{}, fmt.Errorf("%w: %q: %v", snip.ErrInvalidSelection, args[i], err)
		}
		v[i] = float32(f)
	}
	sel := snip.Selection{X: v[0], Y: v[1], Width: v[2], Height: v[3], ViewportWidth: v[4], ViewportHeight: v[5]}
	if len(args) == 7 {
		poly, err := parsePolygon(args[6])
		if err != nil {
			return snip.Selection{}, err
		}
		sel.Polygon = poly
	}
	return sel, nil
}

func parsePolygon(s string) ([]snip.Vertex, error) {
	var out []snip.Vertex
	for _, pair := range strings.Split(s, ";") {
		if pair == "" {
			continue
		}
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("%w: polygon point %q", snip.ErrInvalidSelection, pair)
		}
		x, errX := strconv.ParseFloat(xs, 32)
		y, errY := strconv.ParseFloat(ys, 32)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("%w: polygon point %q", snip.ErrInvalidSelection, pair)
		}
		out = append(out, snip.Vertex{X: float32(x), Y: float32(y)})
	}
	return out, nil
}

// FormatSelection is the inverse of ParseSelection.
func FormatSelection(sel snip.Selection) []string {
	f := func(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
	args := []string{f(sel.X), f(sel.Y), f(sel.Width), f(sel.Height), f(sel.ViewportWidth), f(sel.ViewportHeight)}
	if len(sel.Polygon) > 0 {
		pts := make([]string, len(sel.Polygon))
		for i, p := range sel.Polygon {
			pts[i] = f(p.X) + "," + f(p.Y)
		}
		args = append(args, strings.Join(pts, ";"))
	}
	return args
}
