package widgets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/pagekit/internal/component"
	"github.com/conneroisu/pagekit/internal/dom"
)

// Toast levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// DefaultToastDuration is how long a toast stays up without a configured
// duration.
const DefaultToastDuration = 3 * time.Second

// Bus events handled or emitted by the toast widget.
const (
	EventToastShow      = "toast:show"
	EventToastDismissed = "toast:dismissed"
)

// ToastRequest is the payload of a toast:show event.
type ToastRequest struct {
	Message string
	Level   string
}

// ToastRecord is one visible toast.
type ToastRecord struct {
	ID      string
	Message string
	Level   string
	Shown   time.Time
}

type liveToast struct {
	ToastRecord
	node  *dom.Node
	timer component.TimerID
}

// Toast shows transient notifications inside its root container.
type Toast struct {
	*component.Base

	duration time.Duration

	mu     sync.Mutex
	toasts []*liveToast
	seq    int
}

// NewToast is the toast factory.
func NewToast(b *component.Base) component.Component {
	return &Toast{Base: b, duration: durationOption(b.Config(), "duration", DefaultToastDuration)}
}

// Setup wires dismiss buttons and the toast:show bus event.
func (t *Toast) Setup(context.Context) error {
	t.On("click", func(ev *dom.Event) {
		if ev.Target == nil || ev.Target.Closest("[data-toast-dismiss]") == nil {
			return
		}
		if item := ev.Target.Closest("[data-toast-id]"); item != nil {
			t.Dismiss(item.GetAttr("data-toast-id"))
		}
	})
	t.Subscribe(EventToastShow, func(payload any) {
		switch req := payloadOf(payload).(type) {
		case ToastRequest:
			t.Show(req.Message, req.Level)
		case string:
			t.Show(req, LevelInfo)
		}
	})
	return nil
}

// Teardown removes toasts still on screen.
func (t *Toast) Teardown() {
	t.mu.Lock()
	live := t.toasts
	t.toasts = nil
	t.mu.Unlock()

	for _, lt := range live {
		lt.node.Remove()
	}
}

// Duration returns how long each toast stays visible.
func (t *Toast) Duration() time.Duration { return t.duration }

// Show renders a toast and schedules its removal. It returns the toast id,
// or "" when the widget is not ready.
func (t *Toast) Show(message, level string) string {
	if t.State() != component.StateReady {
		return ""
	}
	if level == "" {
		level = LevelInfo
	}

	t.mu.Lock()
	t.seq++
	rec := ToastRecord{
		ID:      fmt.Sprintf("%s-toast-%d", t.ID(), t.seq),
		Message: message,
		Level:   level,
		Shown:   t.Clock().Now(),
	}
	t.mu.Unlock()

	node, err := t.render(rec)
	if err != nil {
		t.Logger().Error(context.Background(), err, "Toast render failed")
		return ""
	}
	t.Root().AppendChild(node)

	lt := &liveToast{ToastRecord: rec, node: node}
	t.mu.Lock()
	t.toasts = append(t.toasts, lt)
	lt.timer = t.SetTimeout(t.duration, func() { t.Dismiss(rec.ID) })
	t.mu.Unlock()

	return rec.ID
}

// Dismiss removes the toast with id. It reports whether it was visible.
func (t *Toast) Dismiss(id string) bool {
	t.mu.Lock()
	var lt *liveToast
	for i, candidate := range t.toasts {
		if candidate.ID == id {
			lt = candidate
			t.toasts = append(t.toasts[:i], t.toasts[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	if lt == nil {
		return false
	}

	t.ClearTimer(lt.timer)
	lt.node.Remove()
	t.Emit(EventToastDismissed, lt.ToastRecord)
	return true
}

// Toasts returns the visible toasts, oldest first.
func (t *Toast) Toasts() []ToastRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ToastRecord, len(t.toasts))
	for i, lt := range t.toasts {
		out[i] = lt.ToastRecord
	}
	return out
}

func (t *Toast) render(rec ToastRecord) (*dom.Node, error) {
	var buf bytes.Buffer
	if err := toastMarkup(rec).Render(context.Background(), &buf); err != nil {
		return nil, err
	}
	nodes, err := t.Document().ParseFragment(buf.String())
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 {
		return nil, fmt.Errorf("toast markup produced %d elements", len(nodes))
	}
	return nodes[0], nil
}

func toastMarkup(rec ToastRecord) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="toast toast-%s" role="status" data-toast-id="%s">`+
				`<span class="toast-message">%s</span>`+
				`<button type="button" class="toast-close" data-toast-dismiss aria-label="Close">&times;</button>`+
				`</div>`,
			templ.EscapeString(rec.Level), templ.EscapeString(rec.ID), templ.EscapeString(rec.Message))
		return err
	})
}

func durationOption(cfg component.Config, key string, def time.Duration) time.Duration {
	switch v := cfg.Option(key, def).(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Millisecond
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
