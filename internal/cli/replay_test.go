package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirsync/internal/engine"
	"github.com/roach88/dirsync/internal/props"
)

func TestReplayEmptyDatabase(t *testing.T) {
	f := newFixture(t, "text")

	out, err := execute(t, NewReplayCommand(f.opts))
	require.NoError(t, err)
	assert.Contains(t, out, "No entries to replay.")
}

func TestReplayRebuildsObjects(t *testing.T) {
	f := seeded(t, "json")
	ctx := context.Background()

	st := f.openStore(t)
	_, err := st.DB().ExecContext(ctx, "DELETE FROM director_object")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewReplayCommand(f.opts))
	require.NoError(t, err)

	var resp struct {
		Status string              `json:"status"`
		Data   engine.ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, engine.ReplayResult{Entries: 2, Put: 2}, resp.Data)

	st = f.openStore(t)
	obj, err := st.GetObject(ctx, "host", "www2")
	require.NoError(t, err)
	assert.Equal(t, props.String("10.0.0.2"), obj["address"])
}

func TestReplayRefusesBrokenChain(t *testing.T) {
	f := seeded(t, "text")
	ctx := context.Background()

	st := f.openStore(t)
	_, err := st.DB().ExecContext(ctx, "UPDATE director_activity_log SET object_name = 'evil' WHERE id = 2")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewReplayCommand(f.opts))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrChainBroken+"]")
}
