package event

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pkdindustries/forkingdongles/internal/metrics"
)

type owner struct {
	calls []string
}

func newTestRegistry(t *testing.T) (*Registry[*owner], *owner) {
	t.Helper()
	o := &owner{}
	r := NewRegistry(o, zap.NewNop().Sugar())
	for _, a := range Arities {
		require.NoError(t, r.Register(a.Kind, a.Arity))
	}
	return r, o
}

func recorder(name string, result Result, err error) Callback[*owner] {
	return Callback[*owner]{
		Params: 3,
		Func: func(_ context.Context, o *owner, _ Kind, _ ...any) (Result, error) {
			o.calls = append(o.calls, name)
			return result, err
		},
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.Register(Privmsg, 3)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.True(t, r.Registered(Privmsg))
}

func TestRegistry_FireStopsAtStopAll(t *testing.T) {
	r, o := newTestRegistry(t)

	for _, cb := range []Callback[*owner]{
		recorder("first", Continue, nil),
		recorder("second", StopAll, nil),
		recorder("third", Continue, nil),
	} {
		_, err := r.RegisterCallback(Privmsg, cb)
		require.NoError(t, err)
	}

	result, err := r.Fire(context.Background(), Privmsg, "alice", "#test", "hi")
	require.NoError(t, err)
	assert.Equal(t, StopAll, result)
	assert.Equal(t, []string{"first", "second"}, o.calls)
}

func TestRegistry_FireStop(t *testing.T) {
	r, o := newTestRegistry(t)

	_, err := r.RegisterCallback(Privmsg, recorder("first", Stop, nil))
	require.NoError(t, err)
	_, err = r.RegisterCallback(Privmsg, recorder("second", Continue, nil))
	require.NoError(t, err)

	result, err := r.Fire(context.Background(), Privmsg, "alice", "#test", "hi")
	require.NoError(t, err)
	assert.Equal(t, Stop, result)
	assert.Equal(t, []string{"first"}, o.calls)
}

func TestRegistry_FireErrorsDoNotAbort(t *testing.T) {
	r, o := newTestRegistry(t)

	before := testutil.ToFloat64(metrics.CallbackFailures.WithLabelValues(Privmsg.String()))

	_, err := r.RegisterCallback(Privmsg, recorder("rejects", Continue, fmt.Errorf("not mine: %w", ErrReject)))
	require.NoError(t, err)
	_, err = r.RegisterCallback(Privmsg, recorder("fails", Continue, errors.New("boom")))
	require.NoError(t, err)
	_, err = r.RegisterCallback(Privmsg, Callback[*owner]{
		Params: 3,
		Func: func(context.Context, *owner, Kind, ...any) (Result, error) {
			panic("kaboom")
		},
	})
	require.NoError(t, err)
	_, err = r.RegisterCallback(Privmsg, recorder("last", Continue, nil))
	require.NoError(t, err)

	result, err := r.Fire(context.Background(), Privmsg, "alice", "#test", "hi")
	require.NoError(t, err)
	assert.Equal(t, Continue, result)
	assert.Equal(t, []string{"rejects", "fails", "last"}, o.calls)

	after := testutil.ToFloat64(metrics.CallbackFailures.WithLabelValues(Privmsg.String()))
	assert.Equal(t, before+2, after)
}

func TestRegistry_FireUnknownEvent(t *testing.T) {
	r := NewRegistry(&owner{}, zap.NewNop().Sugar())

	_, err := r.Fire(context.Background(), Privmsg, "alice", "#test", "hi")
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestRegistry_FireBadParams(t *testing.T) {
	r, o := newTestRegistry(t)
	_, err := r.RegisterCallback(Privmsg, recorder("first", Continue, nil))
	require.NoError(t, err)

	_, err = r.Fire(context.Background(), Privmsg, "alice", "#test")
	assert.ErrorIs(t, err, ErrBadParams)
	assert.Empty(t, o.calls)
}

func TestRegistry_RegisterCallbackValidation(t *testing.T) {
	r, _ := newTestRegistry(t)
	noop := func(context.Context, *owner, Kind, ...any) (Result, error) { return Continue, nil }

	tests := []struct {
		name    string
		kind    Kind
		cb      Callback[*owner]
		wantErr bool
	}{
		{"nil func", Join, Callback[*owner]{Params: 2}, true},
		{"arity mismatch", Join, Callback[*owner]{Params: 3, Func: noop}, true},
		{"matching arity", Join, Callback[*owner]{Params: 2, Func: noop}, false},
		{"variadic", Kick, Callback[*owner]{Variadic: true, Func: noop}, false},
		{"undeclared kind", Kind(99), Callback[*owner]{Params: 7, Func: noop}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.RegisterCallback(tt.kind, tt.cb)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadCallback)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_UnregisterCallback(t *testing.T) {
	r, o := newTestRegistry(t)

	first, err := r.RegisterCallback(Privmsg, recorder("first", Continue, nil))
	require.NoError(t, err)
	second, err := r.RegisterCallback(Privmsg, recorder("second", Continue, nil))
	require.NoError(t, err)
	assert.Less(t, first, second)
	assert.Equal(t, []ID{first, second}, r.Callbacks(Privmsg))

	r.UnregisterCallback(Privmsg, first)
	r.UnregisterCallback(Privmsg, first)
	r.UnregisterCallback(Quit, 42)
	assert.Equal(t, []ID{second}, r.Callbacks(Privmsg))

	_, err = r.Fire(context.Background(), Privmsg, "alice", "#test", "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, o.calls)

	third, err := r.RegisterCallback(Privmsg, recorder("third", Continue, nil))
	require.NoError(t, err)
	assert.Greater(t, third, second)
}

func TestRegistry_CallbackReceivesOwnerAndParams(t *testing.T) {
	r, o := newTestRegistry(t)

	var got []any
	_, err := r.RegisterCallback(Kick, Callback[*owner]{
		Params: 4,
		Func: func(_ context.Context, c *owner, kind Kind, params ...any) (Result, error) {
			assert.Same(t, o, c)
			assert.Equal(t, Kick, kind)
			got = params
			return Continue, nil
		},
	})
	require.NoError(t, err)

	_, err = r.Fire(context.Background(), Kick, "bob", "#test", "alice", "bye")
	require.NoError(t, err)
	assert.Equal(t, []any{"bob", "#test", "alice", "bye"}, got)
}

func TestResult(t *testing.T) {
	assert.False(t, Continue.Stopped())
	assert.True(t, Stop.Stopped())
	assert.True(t, StopAll.Stopped())
	assert.Equal(t, "stop_all", StopAll.String())
	assert.Equal(t, "kick", Kick.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
