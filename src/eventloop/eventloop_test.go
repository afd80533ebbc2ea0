package eventloop

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"screen-snip/src/encoder"
	"screen-snip/src/events"
	"screen-snip/src/singleinstance"
	"screen-snip/src/snip"
)

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	lastSel  snip.Selection
	logged   []string
	startErr error
	queryErr error
	// startGate, when set, holds Start until it is closed.
	startGate chan struct{}
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) Start(ctx context.Context) error {
	f.record("start")
	if f.startGate != nil {
		select {
		case <-f.startGate:
		case <-ctx.Done():
		}
	}
	return f.startErr
}

func (f *fakeController) Query() (encoder.Image, error) {
	f.record("query")
	if f.queryErr != nil {
		return encoder.Image{}, f.queryErr
	}
	return encoder.Image{DataURL: encoder.DataURLPrefix + "cXVlcnk="}, nil
}

func (f *fakeController) Finish(sel snip.Selection) error {
	f.record("finish")
	f.mu.Lock()
	f.lastSel = sel
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Cancel() error {
	f.record("cancel")
	return nil
}

func (f *fakeController) Log(message string) {
	f.record("log")
	f.mu.Lock()
	f.logged = append(f.logged, message)
	f.mu.Unlock()
}

func (f *fakeController) CaptureFullscreen() (encoder.Image, error) {
	f.record("capture")
	return encoder.Image{DataURL: encoder.DataURLPrefix + "ZnVsbA=="}, nil
}

func (f *fakeController) Status() snip.Status {
	f.record("status")
	return snip.Status{State: "idle", OverlayURL: "overlay.html", DefaultMode: "lasso"}
}

func TestHandleDispatch(t *testing.T) {
	ctrl := &fakeController{}
	l := New(ctrl, events.NewBus())
	ctx := context.Background()

	tests := []struct {
		req      singleinstance.Request
		wantCall string
		wantBody string
	}{
		{req: singleinstance.Request{Command: singleinstance.CmdStart}, wantCall: "start"},
		{req: singleinstance.Request{Command: singleinstance.CmdQuery}, wantCall: "query", wantBody: encoder.DataURLPrefix + "cXVlcnk="},
		{req: singleinstance.Request{Command: singleinstance.CmdFinish, Args: []string{"1", "2", "3", "4", "5", "6"}}, wantCall: "finish"},
		{req: singleinstance.Request{Command: singleinstance.CmdCancel}, wantCall: "cancel"},
		{req: singleinstance.Request{Command: singleinstance.CmdLog, Args: []string{"overlay ready"}}, wantCall: "log"},
		{req: singleinstance.Request{Command: singleinstance.CmdCapture}, wantCall: "capture", wantBody: encoder.DataURLPrefix + "ZnVsbA=="},
	}
	for _, tt := range tests {
		t.Run(tt.req.Command, func(t *testing.T) {
			before := len(ctrl.Calls())
			body, err := l.Handle(ctx, tt.req)
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			calls := ctrl.Calls()
			if len(calls) != before+1 || calls[before] != tt.wantCall {
				t.Fatalf("calls = %v, want trailing %q", calls, tt.wantCall)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}

	if ctrl.lastSel.ViewportHeight != 6 || ctrl.lastSel.X != 1 {
		t.Errorf("finish selection = %+v", ctrl.lastSel)
	}
	if len(ctrl.logged) != 1 || ctrl.logged[0] != "overlay ready" {
		t.Errorf("logged = %v", ctrl.logged)
	}
}

func TestHandleStatus(t *testing.T) {
	l := New(&fakeController{}, events.NewBus())
	body, err := l.Handle(context.Background(), singleinstance.Request{Command: singleinstance.CmdStatus})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var st snip.Status
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("status body is not JSON: %v (%q)", err, body)
	}
	if st.State != "idle" || st.DefaultMode != "lasso" {
		t.Errorf("status = %+v", st)
	}
}

func TestHandleErrors(t *testing.T) {
	ctrl := &fakeController{queryErr: snip.ErrNoActiveSnip}
	l := New(ctrl, events.NewBus())
	ctx := context.Background()

	if _, err := l.Handle(ctx, singleinstance.Request{Command: singleinstance.CmdQuery}); !errors.Is(err, snip.ErrNoActiveSnip) {
		t.Errorf("query error = %v, want ErrNoActiveSnip", err)
	}
	if _, err := l.Handle(ctx, singleinstance.Request{Command: singleinstance.CmdFinish, Args: []string{"1", "2"}}); !errors.Is(err, snip.ErrInvalidSelection) {
		t.Errorf("short finish error = %v, want ErrInvalidSelection", err)
	}
	for _, c := range ctrl.Calls() {
		if c == "finish" {
			t.Error("malformed finish reached the controller")
		}
	}
	if _, err := l.Handle(ctx, singleinstance.Request{Command: "REBOOT"}); err == nil {
		t.Error("expected error for unsupported command")
	}
	if _, err := l.Handle(ctx, singleinstance.Request{Command: singleinstance.CmdWait}); err == nil {
		t.Error("expected error for WAIT without target")
	}
}

func TestHandleWait(t *testing.T) {
	bus := events.NewBus()
	defer bus.Shutdown()
	l := New(&fakeController{}, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan string, 1)
	go func() {
		body, err := l.Handle(ctx, singleinstance.Request{Command: singleinstance.CmdWait, Args: []string{"main", events.SnipComplete}})
		if err != nil {
			t.Errorf("wait: %v", err)
		}
		done <- body
	}()

	deadline := time.Now().Add(2 * time.Second)
	for bus.Subscribers("main") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	_ = bus.Emit("main", events.SnipCancel, "")
	_ = bus.Emit("main", events.SnipComplete, "data:image/png;base64,AAAA")

	var ev events.Event
	if err := json.Unmarshal([]byte(<-done), &ev); err != nil {
		t.Fatalf("wait body: %v", err)
	}
	if ev.Name != events.SnipComplete || ev.Payload != "data:image/png;base64,AAAA" {
		t.Errorf("wait returned %+v", ev)
	}
}

func TestHandleWaitTimeout(t *testing.T) {
	bus := events.NewBus()
	defer bus.Shutdown()
	l := New(&fakeController{}, bus)
	l.SetWaitTimeout(20 * time.Millisecond)

	_, err := l.Handle(context.Background(), singleinstance.Request{Command: singleinstance.CmdWait, Args: []string{"nobody"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTriggers(t *testing.T) {
	ctrl := &fakeController{}
	l := New(ctrl, events.NewBus())
	ctx := context.Background()

	l.TriggerStart()
	l.handleTrigger(ctx, <-l.triggers)
	l.TriggerCancel()
	l.handleTrigger(ctx, <-l.triggers)

	if got := ctrl.Calls(); !reflect.DeepEqual(got, []string{"start", "cancel"}) {
		t.Fatalf("calls = %v", got)
	}

	for i := 0; i < 10; i++ {
		l.TriggerStart()
	}
	if len(l.triggers) != cap(l.triggers) {
		t.Fatalf("expected trigger queue to saturate at %d, got %d", cap(l.triggers), len(l.triggers))
	}
}

func TestRunServesResidentRequests(t *testing.T) {
	t.Setenv("SNIP_PORT_START", "49741")
	t.Setenv("SNIP_PORT_END", "49741")
	ctrl := &fakeController{}
	l := New(ctrl, events.NewBus())

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- l.Run(ctx) }()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer reqCancel()
	var (
		delegated bool
		body      string
		err       error
	)
	for i := 0; i < 50; i++ {
		delegated, body, err = singleinstance.NewClient().Send(reqCtx, singleinstance.Request{Command: singleinstance.CmdStatus})
		if delegated {
			break
		}
		select {
		case err := <-runErr:
			cancel()
			t.Skipf("resident could not start: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
	}
	if !delegated || err != nil {
		cancel()
		t.Fatalf("status not delegated: delegated=%v err=%v", delegated, err)
	}
	if !strings.Contains(body, `"state":"idle"`) {
		t.Errorf("status body = %q", body)
	}

	cancel()
	select {
	case err := <-runErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTriggeredStartDoesNotBlockRequests(t *testing.T) {
	t.Setenv("SNIP_PORT_START", "49742")
	t.Setenv("SNIP_PORT_END", "49742")
	gate := make(chan struct{})
	ctrl := &fakeController{startGate: gate}
	l := New(ctrl, events.NewBus())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- l.Run(ctx) }()

	l.TriggerStart()
	deadline := time.Now().Add(2 * time.Second)
	for !containsCall(ctrl.Calls(), "start") {
		if time.Now().After(deadline) {
			close(gate)
			t.Fatal("triggered start never reached the controller")
		}
		time.Sleep(5 * time.Millisecond)
	}

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer reqCancel()
	var (
		delegated bool
		err       error
	)
	for i := 0; i < 50; i++ {
		delegated, _, err = singleinstance.NewClient().Send(reqCtx, singleinstance.Request{Command: singleinstance.CmdStatus})
		if delegated {
			break
		}
		select {
		case err := <-runErr:
			close(gate)
			t.Skipf("resident could not start: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
	}
	close(gate)
	if !delegated || err != nil {
		t.Fatalf("status not served during triggered start: delegated=%v err=%v", delegated, err)
	}
}

func containsCall(calls []string, want string) bool {
	for _, c := range calls {
		if c == want {
			return true
		}
	}
	return false
}

func TestSelectionArgs(t *testing.T) {
	sel := snip.Selection{X: 10.5, Y: 20, Width: 30, Height: 40.25, ViewportWidth: 1280, ViewportHeight: 720,
		Polygon: []snip.Vertex{{X: 10.5, Y: 20}, {X: 40, Y: 20}, {X: 25, Y: 60}}}
	got, err := ParseSelection(FormatSelection(sel))
	if err != nil {
		t.Fatalf("ParseSelection: %v", err)
	}
	if !reflect.DeepEqual(got, sel) {
		t.Fatalf("got %+v, want %+v", got, sel)
	}

	bad := [][]string{
		{"1", "2", "3", "4", "5"},
		{"a", "2", "3", "4", "5", "6"},
		{"1", "2", "3", "4", "5", "6", "1;2"},
		{"1", "2", "3", "4", "5", "6", "1,x"},
	}
	for _, args := range bad {
		if _, err := ParseSelection(args); !errors.Is(err, snip.ErrInvalidSelection) {
			t.Errorf("ParseSelection(%v) = %v, want ErrInvalidSelection", args, err)
		}
	}
}

type captureEmitter struct {
	got []events.Event
}

func (c *captureEmitter) Emit(target, event, payload string) error {
	c.got = append(c.got, events.Event{Target: target, Name: event, Payload: payload})
	return nil
}

func TestClipboardEmitter(t *testing.T) {
	next := &captureEmitter{}
	var copied [][]byte
	e := ClipboardEmitter{Next: next, Write: func(png []byte) error {
		copied = append(copied, png)
		return nil
	}}

	if err := e.Emit("main", events.SnipComplete, encoder.DataURL([]byte("png-bytes"))); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := e.Emit("main", events.SnipCancel, ""); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(copied) != 1 || string(copied[0]) != "png-bytes" {
		t.Errorf("copied = %q", copied)
	}
	if len(next.got) != 2 {
		t.Errorf("forwarded %d events, want 2", len(next.got))
	}

	failing := ClipboardEmitter{Next: next, Write: func([]byte) error { return errors.New("clipboard busy") }}
	if err := failing.Emit("main", events.SnipComplete, encoder.DataURL([]byte("x"))); err != nil {
		t.Errorf("clipboard failure must not fail the emit: %v", err)
	}
}
