package wire

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudhraja/protosynth/schema"
)

func TestBufferPool_LIFO(t *testing.T) {
	p := NewBufferPool()

	outer := p.Acquire()
	inner := p.Acquire()
	assert.NotSame(t, outer, inner)
	assert.Equal(t, 2, p.Outstanding())

	assert.PanicsWithValue(t, "wire: scratch buffer released out of order", func() {
		p.Release(outer)
	})

	inner.WriteString("dirty")
	p.Release(inner)
	p.Release(outer)
	assert.Equal(t, 0, p.Outstanding())

	// released buffers come back empty and in reverse order
	again := p.Acquire()
	assert.Same(t, outer, again)
	assert.Equal(t, 0, again.Len())
	p.Release(again)
}

func TestBufferPool_DropsOversized(t *testing.T) {
	p := NewBufferPool()
	buf := p.Acquire()
	buf.Grow(maxRetainedBuffer + 1)
	p.Release(buf)

	next := p.Acquire()
	assert.NotSame(t, buf, next)
	p.Release(next)
}

func TestBufferPool_WithReleasesOnError(t *testing.T) {
	p := NewBufferPool()
	boom := errors.New("boom")

	err := p.With(func(buf *bytes.Buffer) error {
		return p.With(func(inner *bytes.Buffer) error {
			return boom
		})
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, p.Outstanding())
}

func TestBufferPool_ReleasedAfterFailedEncode(t *testing.T) {
	msg := nodeSchema()
	msg.NestedTypes[0].Fields[0].Label = schema.LabelRequired
	c := mustSynthesize(t, msg, Config{})

	p := NewBufferPool()
	rec := NewRecord(map[string]interface{}{
		"children": []interface{}{
			map[string]interface{}{"meta": map[string]interface{}{}},
		},
	})
	err := c.SerializeWithPool(&bytes.Buffer{}, rec, p)
	require.ErrorIs(t, err, ErrMissingRequired)
	assert.Equal(t, 0, p.Outstanding())

	// the pool is still usable
	require.NoError(t, c.SerializeWithPool(&bytes.Buffer{}, NewRecord(map[string]interface{}{"value": int32(1)}), p))
	assert.Equal(t, 0, p.Outstanding())
}

func TestMessageCodec_ConcurrentEncode(t *testing.T) {
	c := mustSynthesize(t, nodeSchema(), Config{})
	rec := NewRecord(map[string]interface{}{
		"value":    int32(7),
		"children": []interface{}{map[string]interface{}{"value": int32(8)}},
		"meta":     map[string]interface{}{"label": "shared"},
	})
	want, err := c.Marshal(rec)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := c.Marshal(rec)
				if !assert.NoError(t, err) || !assert.Equal(t, want, got) {
					return
				}
			}
		}()
	}
	wg.Wait()
}
