// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package b42

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	_, ok := q.TryGet()
	assert.False(t, ok)

	for i := 0; i < 5; i++ {
		q.Put(i)
	}
	assert.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		v, ok := q.TryGet()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueZeroValue(t *testing.T) {
	var q Queue[string]
	q.Put("a")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
}

func TestQueueGetBlocks(t *testing.T) {
	q := NewQueue[error]()
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		v, err := q.Get(ctx)
		if err == nil {
			err = v
		}
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Put(ErrNoTransport)
	assert.ErrorIs(t, <-done, ErrNoTransport)
}

func TestQueueGetCanceled(t *testing.T) {
	q := NewQueue[Frame]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueConcurrent(t *testing.T) {
	const producers, perProducer = 4, 250
	q := NewQueue[int]()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Put(i)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sum := 0
	for i := 0; i < producers*perProducer; i++ {
		v, err := q.Get(ctx)
		require.NoError(t, err)
		sum += v
	}
	wg.Wait()
	assert.Equal(t, producers*perProducer*(perProducer-1)/2, sum)
	assert.Equal(t, 0, q.Len())
}
