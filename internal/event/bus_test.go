package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBus(t *testing.T) {
	bus := NewBusWithBuffer(1)
	events, unsubscribe := bus.Subscribe()

	bus.Publish(New(TypeMMPApproved, "u-1", "Kassala", map[string]string{"id": "f-1"}))
	bus.Publish(New(TypeMMPRejected, "u-1", "", nil))

	got := <-events
	assert.Equal(t, TypeMMPApproved, got.Type)
	assert.Equal(t, "Kassala", got.Hub)
	assert.NotEmpty(t, got.ID)

	select {
	case e := <-events:
		t.Fatalf("expected dropped event, got %s", e.Type)
	default:
	}

	unsubscribe()
	unsubscribe()
	_, open := <-events
	require.False(t, open)
}
