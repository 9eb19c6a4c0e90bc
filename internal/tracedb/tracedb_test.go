package tracedb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/trace"
	"github.com/weftlabs/weft/internal/value"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "traces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sealedTrace(t *testing.T) *trace.ExecutionTrace {
	t.Helper()
	b := trace.NewBuilder(content.Sum(content.DomainProgram, []byte("prog")))
	require.NoError(t, b.RecordEffect(trace.EffectRecord{
		EffectType:  content.Sum(content.DomainEffectType, []byte("weft/test")),
		EffectName:  "weft/test",
		PrePC:       1,
		PostPC:      2,
		LogicalTime: 1,
	}))
	states := map[resource.ID]resource.State{
		content.Sum(content.DomainResource, []byte("r")): resource.Consumed,
	}
	sealed, _ := b.Finalize(trace.Terminus{Kind: trace.Halted}, "", value.Int(1), 50, states)
	return sealed
}

func TestWriteRead_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sealed := sealedTrace(t)

	require.NoError(t, db.WriteTrace(ctx, sealed))

	got, err := db.ReadTrace(ctx, sealed.TraceHash)
	require.NoError(t, err)
	assert.Equal(t, sealed.TraceHash, got.TraceHash)
	assert.Equal(t, sealed.ProgramHash, got.ProgramHash)
	assert.Equal(t, sealed.Terminus, got.Terminus)
	assert.Equal(t, sealed.ExecutedEffects, got.ExecutedEffects)
	assert.Equal(t, trace.Encode(sealed), trace.Encode(got))
}

func TestWriteTrace_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sealed := sealedTrace(t)

	require.NoError(t, db.WriteTrace(ctx, sealed))
	require.NoError(t, db.WriteTrace(ctx, sealed))

	infos, err := db.ListTraces(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestWriteTrace_RejectsUnsealed(t *testing.T) {
	db := openTestDB(t)
	err := db.WriteTrace(context.Background(), &trace.ExecutionTrace{})
	assert.ErrorContains(t, err, "not sealed")
}

func TestReadTrace_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.ReadTrace(context.Background(), content.Sum(content.DomainTrace, []byte("missing")))
	assert.True(t, IsNotFound(err))
}

func TestListTraces_Fields(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sealed := sealedTrace(t)
	require.NoError(t, db.WriteTrace(ctx, sealed))

	infos, err := db.ListTraces(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, sealed.TraceHash, infos[0].Hash)
	assert.Equal(t, sealed.ProgramHash, infos[0].ProgramHash)
	assert.Equal(t, "halted", infos[0].Terminus)
	assert.Equal(t, 1, infos[0].EffectCount)
	assert.Equal(t, uint64(50), infos[0].GasRemaining)
	assert.NotEmpty(t, infos[0].CreatedAt)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.db")
	db, err := Open(path)
	require.NoError(t, err)
	sealed := sealedTrace(t)
	require.NoError(t, db.WriteTrace(context.Background(), sealed))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.ReadTrace(context.Background(), sealed.TraceHash)
	require.NoError(t, err)
	assert.Equal(t, sealed.TraceHash, got.TraceHash)
}
