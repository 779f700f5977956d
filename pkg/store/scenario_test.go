package store

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/pagestore/pkg/serializer"
)

func TestScenario_TenThousandRecords(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}

	e := openTestEngine(t, func(c *Config) {
		c.PageSize = 1 << 20
		c.ConcurrencyShift = 2
	})

	const n = 10000
	ids := make([]RecordID, n)
	seen := make(map[RecordID]bool, n)
	for i := range ids {
		id, err := e.PutBytes(payload(1024, int64(i)))
		require.NoError(t, err)
		require.False(t, seen[id], "id collision on %d", id)
		seen[id] = true
		ids[i] = id
	}

	for i, id := range ids {
		got, err := e.GetBytes(id)
		require.NoError(t, err)
		require.Equal(t, payload(1024, int64(i)), got)
	}

	st, err := e.Stats()
	require.NoError(t, err)
	pages := 0
	for _, s := range st.Shards {
		pages += s.Pages
		assert.Equal(t, n/4, s.Records, "round robin spreads records evenly")
	}
	assert.GreaterOrEqual(t, pages, 10)
	assert.LessOrEqual(t, pages, 15)
}

// Mirrors a randomized update workload: values grow and shrink across the
// inline and chained layouts, with commits and reopen in between.
func TestScenario_RandomUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "random.db")
	withFile := func(c *Config) { c.InMemory = false; c.Path = path }

	e, err := Open(testConfig(withFile))
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(42))
	want := make(map[RecordID][]byte)
	var ids []RecordID
	for i := 0; i < 100; i++ {
		data := payload(rnd.Intn(1000), rnd.Int63())
		id, err := Put(e, data, serializer.Bytes{})
		require.NoError(t, err)
		want[id] = data
		ids = append(ids, id)
	}

	for round := 0; round < 5; round++ {
		for i := 0; i < 200; i++ {
			id := ids[rnd.Intn(len(ids))]
			size := rnd.Intn(1000)
			if rnd.Intn(20) == 0 {
				size = testPageSize + rnd.Intn(3*testPageSize)
			}
			data := payload(size, rnd.Int63())
			require.NoError(t, Update(e, id, data, serializer.Bytes{}))
			want[id] = data
		}
		require.NoError(t, e.Commit())
		require.NoError(t, e.Verify())
	}
	require.NoError(t, e.Close())

	reopened := openTestEngine(t, withFile)
	require.NoError(t, reopened.Verify())
	for id, data := range want {
		got, err := Get(reopened, id, serializer.Bytes{})
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
}

func TestScenario_LargeRecords(t *testing.T) {
	e := openTestEngine(t)

	big := payload(1<<20, 9)
	id, err := e.PutBytes(big)
	require.NoError(t, err)
	got, err := e.GetBytes(id)
	require.NoError(t, err)
	assert.Equal(t, big, got)

	// freeing the chain in the same epoch returns its pages at once
	stBefore, err := e.Stats()
	require.NoError(t, err)
	require.NoError(t, e.Delete(id))
	stAfter, err := e.Stats()
	require.NoError(t, err)
	assert.Equal(t, stBefore.FreePages+chainPages(len(big), testPageSize), stAfter.FreePages)

	_, err = e.GetBytes(id)
	assert.ErrorIs(t, err, ErrUnknownRecord)
	require.NoError(t, e.Verify())
}
