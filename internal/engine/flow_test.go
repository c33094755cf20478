package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ValidFormat(t *testing.T) {
	gen := UUIDv7Generator{}
	id := gen.Generate()

	// Verify 36 characters (hyphenated UUID format)
	assert.Equal(t, 36, len(id), "UUID should be 36 characters")

	// Verify it's a valid UUID
	parsed, err := uuid.Parse(id)
	require.NoError(t, err, "run id should be valid UUID")

	// Verify it's UUIDv7 (version 7)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDv7Generator_Uniqueness(t *testing.T) {
	gen := UUIDv7Generator{}
	const iterations = 1000

	ids := make(map[string]bool, iterations)

	// Generate many ids
	for i := 0; i < iterations; i++ {
		id := gen.Generate()
		require.False(t, ids[id], "id %s generated twice", id)
		ids[id] = true
	}

	assert.Equal(t, iterations, len(ids), "all ids should be unique")
}

func TestUUIDv7Generator_HyphenatedFormat(t *testing.T) {
	gen := UUIDv7Generator{}
	id := gen.Generate()

	// Verify hyphenated format: 8-4-4-4-12
	// Example: "550e8400-e29b-41d4-a716-446655440000"
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestUUIDv7Generator_Concurrent(t *testing.T) {
	gen := UUIDv7Generator{}
	const goroutines = 100

	ids := make(chan string, goroutines)
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.Generate()
		}()
	}

	wg.Wait()
	close(ids)

	// Verify all ids are unique
	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate run id generated")
		seen[id] = true
	}

	assert.Equal(t, goroutines, len(seen))
}

func TestSequenceGenerator_Sequential(t *testing.T) {
	gen := NewSequenceGenerator("run-1", "run-2", "run-3")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.Equal(t, "run-3", gen.Generate())
}

func TestSequenceGenerator_PanicsWhenExhausted(t *testing.T) {
	gen := NewSequenceGenerator("run-1")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Panics(t, func() {
		gen.Generate()
	}, "should panic when all run ids exhausted")
}

func TestSequenceGenerator_EmptyIDs(t *testing.T) {
	gen := NewSequenceGenerator()

	assert.Panics(t, func() {
		gen.Generate()
	}, "should panic when no ids provided")
}

func TestEngine_RunIDsFromGenerator(t *testing.T) {
	f := setupEngine(t)
	eng := New(f.store, f.log, WithRunIDGenerator(NewSequenceGenerator("first", "second")))
	in := RunInput{Plan: compile(t, hostRule(false)), Sources: cmdb()}

	sum, err := eng.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "first", sum.RunID)

	sum, err = eng.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "second", sum.RunID)
}

func TestEngine_DefaultRunIDIsUUIDv7(t *testing.T) {
	f := setupEngine(t)
	eng := New(f.store, f.log)

	sum, err := eng.Run(context.Background(), RunInput{Plan: compile(t, hostRule(false)), Sources: cmdb()})
	require.NoError(t, err)

	parsed, err := uuid.Parse(sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
