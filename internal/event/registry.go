package event

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"pkdindustries/forkingdongles/internal/metrics"
)

var (
	ErrDuplicate    = errors.New("event already registered")
	ErrUnknownEvent = errors.New("event not registered")
	ErrBadCallback  = errors.New("bad event callback")
	ErrBadParams    = errors.New("wrong number of event parameters")

	// ErrReject is returned by a callback that declines an event. The callback is
	// skipped without being logged as a failure.
	ErrReject = errors.New("event rejected")
)

// Func is an event callback. c is the session context the registry was built with.
type Func[C any] func(ctx context.Context, c C, kind Kind, params ...any) (Result, error)

// Callback pairs a Func with the number of parameters it expects.
type Callback[C any] struct {
	Params   int
	Variadic bool
	Func     Func[C]
}

// ID identifies a registered callback within one event kind.
type ID uint64

type entry[C any] struct {
	id ID
	cb Callback[C]
}

// Registry declares event kinds and fires their callbacks in registration order.
type Registry[C any] struct {
	mu        sync.Mutex
	owner     C
	logger    *zap.SugaredLogger
	arity     map[Kind]int
	callbacks map[Kind][]entry[C]
	next      map[Kind]ID
}

// NewRegistry creates an empty registry whose callbacks receive owner.
func NewRegistry[C any](owner C, logger *zap.SugaredLogger) *Registry[C] {
	if logger == nil {
		logger = zap.S()
	}
	return &Registry[C]{
		owner:     owner,
		logger:    logger,
		arity:     make(map[Kind]int),
		callbacks: make(map[Kind][]entry[C]),
		next:      make(map[Kind]ID),
	}
}

// Register declares kind with a fixed parameter count.
func (r *Registry[C]) Register(kind Kind, arity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.arity[kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, kind)
	}
	if arity < 0 {
		return fmt.Errorf("negative arity %d for %s", arity, kind)
	}
	r.arity[kind] = arity
	return nil
}

// Registered reports whether kind has been declared.
func (r *Registry[C]) Registered(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.arity[kind]
	return ok
}

// RegisterCallback appends cb to kind's callbacks and returns its handle.
// Callbacks for kinds not yet declared are accepted without an arity check.
func (r *Registry[C]) RegisterCallback(kind Kind, cb Callback[C]) (ID, error) {
	if cb.Func == nil {
		return 0, fmt.Errorf("%w: %s: nil func", ErrBadCallback, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if arity, ok := r.arity[kind]; ok && cb.Params != arity && !cb.Variadic {
		return 0, fmt.Errorf("%w: %s takes %d params, callback takes %d", ErrBadCallback, kind, arity, cb.Params)
	}

	r.next[kind]++
	id := r.next[kind]
	r.callbacks[kind] = append(r.callbacks[kind], entry[C]{id: id, cb: cb})
	return id, nil
}

// UnregisterCallback removes a callback. Unknown kinds and ids are ignored.
func (r *Registry[C]) UnregisterCallback(kind Kind, id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.callbacks[kind]
	idx := slices.IndexFunc(entries, func(e entry[C]) bool { return e.id == id })
	if idx == -1 {
		return
	}
	r.callbacks[kind] = slices.Delete(slices.Clone(entries), idx, idx+1)
}

// Callbacks returns the handles registered for kind, in firing order.
func (r *Registry[C]) Callbacks(kind Kind) []ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]ID, 0, len(r.callbacks[kind]))
	for _, e := range r.callbacks[kind] {
		ids = append(ids, e.id)
	}
	return ids
}

// Fire runs every callback for kind in registration order, waiting for each to
// return before starting the next. A Stop or StopAll result ends the loop and
// becomes the result of Fire. Callback errors never abort the loop.
func (r *Registry[C]) Fire(ctx context.Context, kind Kind, params ...any) (Result, error) {
	r.mu.Lock()
	arity, ok := r.arity[kind]
	entries := r.callbacks[kind]
	r.mu.Unlock()

	if !ok {
		return Continue, fmt.Errorf("%w: %s", ErrUnknownEvent, kind)
	}
	if len(params) != arity {
		return Continue, fmt.Errorf("%w: %s takes %d, got %d", ErrBadParams, kind, arity, len(params))
	}

	metrics.EventsFired.WithLabelValues(kind.String()).Inc()

	for _, e := range entries {
		result, err := r.invoke(ctx, e, kind, params)
		switch {
		case errors.Is(err, ErrReject):
			metrics.CallbackRejections.WithLabelValues(kind.String()).Inc()
			continue
		case err != nil:
			metrics.CallbackFailures.WithLabelValues(kind.String()).Inc()
			r.logger.Errorw("Event callback failed", "event", kind.String(), "callback", e.id, "error", err)
			continue
		}
		if result.Stopped() {
			return result, nil
		}
	}
	return Continue, nil
}

func (r *Registry[C]) invoke(ctx context.Context, e entry[C], kind Kind, params []any) (result Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("callback panicked: %v", p)
		}
	}()
	return e.cb.Func(ctx, r.owner, kind, params...)
}
