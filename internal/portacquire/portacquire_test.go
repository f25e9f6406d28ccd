package portacquire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_BindsDesiredPortWhenFree(t *testing.T) {
	a := New(nil, nil)

	ln, port, err := a.Acquire("127.0.0.1", 0, StrategyIncrement, 5)
	require.NoError(t, err)
	defer ln.Close()
	assert.Equal(t, ln.Addr().(*net.TCPAddr).Port, port)
}

func TestAcquire_FallsBackOnConflictWithIncrementStrategy(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	desired := blocker.Addr().(*net.TCPAddr).Port

	var switched *Event
	a := New(nil, func(e Event) { switched = &e })

	ln, port, err := a.Acquire("127.0.0.1", desired, StrategyIncrement, 10)
	require.NoError(t, err)
	defer ln.Close()

	assert.NotEqual(t, desired, port)
	require.NotNil(t, switched)
	assert.Equal(t, desired, switched.Desired)
	assert.Equal(t, port, switched.Actual)
}

func TestAcquire_ExhaustsAttemptsAndReturnsError(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	desired := blocker.Addr().(*net.TCPAddr).Port

	a := New(nil, nil)
	_, _, err = a.Acquire("127.0.0.1", desired, StrategyIncrement, 1)
	require.Error(t, err)
}
