package store

import (
	"bytes"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestConcurrentPuts(t *testing.T) {
	e := openTestEngine(t)

	const workers, perWorker = 8, 500
	results := make([][]RecordID, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				id, err := e.PutBytes(payload(16+i%300, int64(w*perWorker+i)))
				if err != nil {
					return err
				}
				results[w] = append(results[w], id)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[RecordID]bool)
	for w, ids := range results {
		for i, id := range ids {
			require.False(t, seen[id], "id %d issued twice", id)
			seen[id] = true

			got, err := e.GetBytes(id)
			require.NoError(t, err)
			assert.Equal(t, payload(16+i%300, int64(w*perWorker+i)), got)
		}
	}
	assert.Len(t, seen, workers*perWorker)
	require.NoError(t, e.Verify())
}

// A writer holding one shard must not stall puts: they move on to the next
// free shard.
func TestPutLiveness(t *testing.T) {
	e := openTestEngine(t)

	blocked := e.shards[0]
	blocked.lock()
	lockedAt := time.Now()

	done := make(chan []RecordID)
	go func() {
		var ids []RecordID
		for i := 0; i < 100; i++ {
			id, err := e.PutBytes([]byte("live"))
			if err != nil {
				break
			}
			ids = append(ids, id)
		}
		done <- ids
	}()

	var ids []RecordID
	select {
	case ids = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("puts blocked behind a held shard lock")
	}
	putsDone := time.Since(lockedAt)
	time.Sleep(50 * time.Millisecond)
	blocked.unlock()

	require.Len(t, ids, 100)
	for _, id := range ids {
		assert.NotEqual(t, 0, id.shard(e.shift), "record %d placed in the locked shard", id)
	}

	held := blocked.lockStats()
	assert.Zero(t, held.Contended, "no put waited for the held shard")
	assert.Equal(t, uint64(1), held.Acquisitions)
	assert.Greater(t, held.HoldTime, putsDone, "every put finished while shard 0 was held")

	var acquisitions uint64
	for _, s := range e.shards[1:] {
		st := s.lockStats()
		acquisitions += st.Acquisitions
		assert.Zero(t, st.Contended, "shard %d", s.index)
		assert.Less(t, st.HoldTime, held.HoldTime, "shard %d held longer than the blocked shard", s.index)
	}
	assert.GreaterOrEqual(t, acquisitions, uint64(100))
}

func TestConcurrentMixedWorkload(t *testing.T) {
	e := openTestEngine(t)

	var (
		mu   sync.Mutex
		live = make(map[RecordID][]byte)
	)

	var g errgroup.Group
	for w := 0; w < 6; w++ {
		w := w
		g.Go(func() error {
			rnd := rand.New(rand.NewSource(int64(w)))
			var mine []RecordID
			for i := 0; i < 300; i++ {
				switch op := rnd.Intn(10); {
				case op < 5 || len(mine) == 0:
					data := payload(rnd.Intn(2*testPageSize), rnd.Int63())
					id, err := e.PutBytes(data)
					if err != nil {
						return err
					}
					mine = append(mine, id)
					mu.Lock()
					live[id] = data
					mu.Unlock()
				case op < 7:
					id := mine[rnd.Intn(len(mine))]
					data := payload(rnd.Intn(4096), rnd.Int63())
					if err := e.UpdateBytes(id, data); err != nil {
						return err
					}
					mu.Lock()
					live[id] = data
					mu.Unlock()
				case op < 9:
					k := rnd.Intn(len(mine))
					id := mine[k]
					mine = append(mine[:k], mine[k+1:]...)
					if err := e.Delete(id); err != nil {
						return err
					}
					mu.Lock()
					delete(live, id)
					mu.Unlock()
				default:
					if err := e.Commit(); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, e.Verify())

	for id, want := range live {
		got, err := e.GetBytes(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	st, err := e.Stats()
	require.NoError(t, err)
	assert.Equal(t, len(live), st.Records)
}

func TestConcurrentReadersDuringCommit(t *testing.T) {
	e := openTestEngine(t)

	ids := make([]RecordID, 200)
	for i := range ids {
		var err error
		ids[i], err = e.PutBytes(payload(512, int64(i)))
		require.NoError(t, err)
	}

	var g errgroup.Group
	for r := 0; r < 4; r++ {
		g.Go(func() error {
			for i, id := range ids {
				got, err := e.GetBytes(id)
				if err != nil {
					return err
				}
				if !bytes.Equal(got, payload(512, int64(i))) {
					t.Errorf("record %d read back wrong bytes", id)
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 0; i < 5; i++ {
			if _, err := e.PutBytes([]byte("commit trigger")); err != nil {
				return err
			}
			if err := e.Commit(); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())
}
