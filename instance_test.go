package hotswap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceLifecycle(t *testing.T) {
	l := new(fakeLoader)
	i := NewInstance(l, nil, false)
	require.NoError(t, i.StopRoot(), "no-op without object")
	require.NoError(t, l.Load("Foo.o"))

	require.NoError(t, i.StartRoot("Foo"))
	require.NoError(t, i.StartRoot("Foo"))
	assert.True(t, i.Running())
	assert.Equal(t, "Foo", i.Name())
	assert.Equal(t, 1, l.objects)
	assert.Equal(t, []string{"load", "create", "start"}, l.calls)

	require.NoError(t, i.StopRoot())
	require.NoError(t, i.StopRoot())
	assert.False(t, i.Running())
	assert.Equal(t, 0, l.objects)
	assert.Equal(t, []string{"load", "create", "start", "stop", "destroy"}, l.calls)
}

func TestInstanceCreateFailures(t *testing.T) {
	l := new(fakeLoader)
	i := NewInstance(l, nil, false)
	require.ErrorIs(t, i.StartRoot("Foo"), ErrNoInstance, "not loaded")

	l.none = true
	require.NoError(t, l.Load("Foo.o"))
	require.ErrorIs(t, i.StartRoot("Foo"), ErrNoInstance)
	assert.False(t, i.Running())
}

func TestInstanceStartPanic(t *testing.T) {
	l := &fakeLoader{panics: true}
	require.NoError(t, l.Load("Foo.o"))
	i := NewInstance(l, nil, false)
	err := i.StartRoot("Foo")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoInstance)
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, i.Running())
	require.NoError(t, i.StopRoot())
}

func TestStateText(t *testing.T) {
	assert.Equal(t, "Swapping", Swapping.String())
	assert.Equal(t, "Unknown", State(42).String())
	b, err := json.Marshal(map[string]State{"state": Running})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"Running"}`, string(b))
}
