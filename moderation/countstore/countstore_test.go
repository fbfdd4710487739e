package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.Get(ctx, "test1", "val1", time.Minute)
	assert.NoError(err)
	assert.Equal(0, c)

	c, err = cs.Increment(ctx, "test1", "val1", time.Minute)
	assert.NoError(err)
	assert.Equal(1, c)
	c, err = cs.Increment(ctx, "test1", "val1", time.Minute)
	assert.NoError(err)
	assert.Equal(2, c)

	// other subjects and other windows are independent buckets
	c, err = cs.Get(ctx, "test1", "other", time.Minute)
	assert.NoError(err)
	assert.Equal(0, c)
	c, err = cs.Get(ctx, "test1", "val1", time.Hour)
	assert.NoError(err)
	assert.Equal(0, c)

	assert.NoError(cs.Reset(ctx, "test1", "val1", time.Minute))
	c, err = cs.Get(ctx, "test1", "val1", time.Minute)
	assert.NoError(err)
	assert.Equal(0, c)
}

func TestMemCountStoreDistinct(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetDistinct(ctx, "reports", "stream1", Cumulative)
	assert.NoError(err)
	assert.Equal(0, c)

	for _, member := range []string{"one", "one", "one", "two"} {
		c, err = cs.IncrementDistinct(ctx, "reports", "stream1", member, Cumulative)
		assert.NoError(err)
	}
	assert.Equal(2, c)

	c, err = cs.GetDistinct(ctx, "reports", "stream1", Cumulative)
	assert.NoError(err)
	assert.Equal(2, c)

	// windowed distinct bucket is separate from the cumulative one
	c, err = cs.GetDistinct(ctx, "reports", "stream1", time.Minute)
	assert.NoError(err)
	assert.Equal(0, c)
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, err := cs.Increment(ctx, "concurrent", "val", time.Hour)
				assert.NoError(err)
			}
		}()
	}
	wg.Wait()

	c, err := cs.Get(ctx, "concurrent", "val", time.Hour)
	assert.NoError(err)
	assert.Equal(400, c)
}
