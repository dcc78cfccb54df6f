package og

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmaker/internal/model/enum"
)

func TestStateMachineLifecycle(t *testing.T) {
	m := NewStateMachine()

	o, err := m.Create("1", enum.OrderSideBuy, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, OrderStateNew, o.State)

	_, err = m.Create("1", enum.OrderSideBuy, 100, 10)
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	o, err = m.Fill("1", 4)
	require.NoError(t, err)
	assert.Equal(t, OrderStatePartFilled, o.State)
	assert.Equal(t, int64(6), o.LeavesQty)

	o, err = m.Amend("1", 99.5, 8)
	require.NoError(t, err)
	assert.Equal(t, 99.5, o.Price)
	assert.Equal(t, int64(12), o.Qty)

	o, err = m.Fill("1", 8)
	require.NoError(t, err)
	assert.Equal(t, OrderStateFilled, o.State)

	_, err = m.Amend("1", 99, 5)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Cancel("1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, m.Open())
}

func TestStateMachineRejectsBadInput(t *testing.T) {
	m := NewStateMachine()

	_, err := m.Create("", enum.OrderSideSell, 1, 1)
	assert.ErrorIs(t, err, ErrUnknownOrder)
	_, err = m.Create("x", enum.OrderSideSell, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQty)
	_, err = m.Cancel("missing")
	assert.ErrorIs(t, err, ErrUnknownOrder)

	_, err = m.Create("x", enum.OrderSideSell, 1, 5)
	require.NoError(t, err)
	_, err = m.Fill("x", 6)
	assert.ErrorIs(t, err, ErrInvalidFill)
}

func TestStateMachineOpenAndPrune(t *testing.T) {
	m := NewStateMachine()
	for _, id := range []string{"c", "a", "b"} {
		_, err := m.Create(id, enum.OrderSideBuy, 1, 1)
		require.NoError(t, err)
	}
	_, err := m.Cancel("b")
	require.NoError(t, err)

	open := m.Open()
	require.Len(t, open, 2)
	assert.Equal(t, "a", open[0].ID)
	assert.Equal(t, "c", open[1].ID)

	m.Prune()
	_, ok := m.Order("b")
	assert.False(t, ok)
}
