package notify

import (
	"context"
	"sync"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is the transient on-screen message of one page event.
type Notification struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Notifier receives notifications emitted by the cart and session stores.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

func Success(ctx context.Context, n Notifier, message string) {
	if n != nil {
		n.Notify(ctx, Notification{Kind: KindSuccess, Message: message})
	}
}

// Failure emits the shopper-facing message for err.
func Failure(ctx context.Context, n Notifier, err error) {
	if n != nil && err != nil {
		n.Notify(ctx, Notification{Kind: KindError, Message: pkgerrors.UserMessage(err)})
	}
}

// Recorder collects the notifications of one page event. A newer notification
// replaces the one on screen, so Last is what the shopper sees.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns every notification in emission order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// LogNotifier writes notifications to the structured logger.
type LogNotifier struct {
	Logger *logger.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	ctx = l.Logger.WithFields(ctx, map[string]any{"kind": string(n.Kind), "notification": n.Message})
	if n.Kind == KindError {
		l.Logger.Warn(ctx, "shopper notified of failure")
		return
	}
	l.Logger.Debug(ctx, "shopper notified")
}

// Multi fans a notification out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(ctx, n)
		}
	}
}
