package dataset

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
)

func snapshotAt(t time.Time, ids ...string) *domain.Snapshot {
	shelters := make([]domain.Shelter, len(ids))
	for i, id := range ids {
		shelters[i] = domain.Shelter{ID: id, Name: "Abrigo " + id}
	}
	return &domain.Snapshot{Shelters: shelters, RefreshedAt: t}
}

func TestCache_EmptyUntilFirstPublish(t *testing.T) {
	c := NewCache()
	assert.Nil(t, c.Current())
	_, ok := c.RefreshedAt()
	assert.False(t, ok)
}

func TestCache_PublishReplacesWholeSnapshot(t *testing.T) {
	c := NewCache()
	t1 := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	c.Publish(snapshotAt(t1, "a", "b"))
	first := c.Current()
	require.NotNil(t, first)
	assert.Len(t, first.Shelters, 2)

	c.Publish(snapshotAt(t1.Add(10*time.Minute), "c"))
	second := c.Current()
	assert.Len(t, second.Shelters, 1)
	assert.Equal(t, "c", second.Shelters[0].ID)

	// The borrowed reference stays fully the old snapshot.
	assert.Len(t, first.Shelters, 2)

	at, ok := c.RefreshedAt()
	require.True(t, ok)
	assert.Equal(t, t1.Add(10*time.Minute), at)
}

func TestCache_ReadersObserveMonotonicRefreshes(t *testing.T) {
	c := NewCache()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	c.Publish(snapshotAt(base))

	done := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := time.Time{}
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := c.Current()
				if snap.RefreshedAt.Before(last) {
					t.Errorf("refreshedAt went backwards: %v after %v", snap.RefreshedAt, last)
					return
				}
				last = snap.RefreshedAt
			}
		}()
	}

	for i := 1; i <= 1000; i++ {
		c.Publish(snapshotAt(base.Add(time.Duration(i) * time.Second)))
	}
	close(done)
	wg.Wait()
}
