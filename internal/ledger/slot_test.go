package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotDiscardsStaleCommit(t *testing.T) {
	var slot Slot
	older := slot.Begin()
	newer := slot.Begin()

	fresh := &Report{Customer: Customer{ID: "new"}}
	stale := &Report{Customer: Customer{ID: "old"}}

	require.True(t, slot.Commit(newer, fresh))
	assert.False(t, slot.Commit(older, stale))
	assert.Equal(t, "new", slot.Current().Customer.ID)
}

func TestSlotFailureKeepsPreviousReport(t *testing.T) {
	var slot Slot
	first := slot.Begin()
	require.True(t, slot.Commit(first, &Report{Customer: Customer{ID: "kept"}}))

	second := slot.Begin()
	assert.True(t, slot.Fail(second))
	assert.Equal(t, "kept", slot.Current().Customer.ID)
}

func TestSlotCommitResetsSort(t *testing.T) {
	var slot Slot
	slot.ToggleSort(ColDebit)
	ticket := slot.Begin()
	require.True(t, slot.Commit(ticket, &Report{}))
	assert.Equal(t, SortState{}, slot.Sort())
}

func TestSlotResetInvalidatesTickets(t *testing.T) {
	var slot Slot
	ticket := slot.Begin()
	slot.Reset()
	assert.False(t, slot.Commit(ticket, &Report{}))
	assert.Nil(t, slot.Current())
}

func TestWorkspacesEvictIdleSlots(t *testing.T) {
	ws := NewWorkspaces(time.Millisecond)
	ws.Get("a")
	time.Sleep(5 * time.Millisecond)
	ws.Get("b")
	_, ok := ws.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 1, ws.Len())
	assert.NotEmpty(t, NewWorkspaceID())
}
