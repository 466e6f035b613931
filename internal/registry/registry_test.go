package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAware struct {
	attached bool
	detached DetachReason
	gotDetach bool
}

func (f *fakeAware) OnAttach()                  { f.attached = true }
func (f *fakeAware) OnDetach(r DetachReason) { f.detached = r; f.gotDetach = true }

func TestRegisterLookupDispose(t *testing.T) {
	r := New()
	val := &fakeAware{}
	h := r.Register(KindCursor, val)

	assert.True(t, val.attached)
	assert.Equal(t, int64(1), h.ID)

	got, err := r.MustLookup(h.ID)
	require.NoError(t, err)
	assert.Same(t, h, got)

	r.Dispose(h.ID, DetachExplicitDispose)
	assert.True(t, val.gotDetach)
	assert.Equal(t, DetachExplicitDispose, val.detached)

	_, err = r.MustLookup(h.ID)
	assert.Error(t, err)
}

func TestDetachAll(t *testing.T) {
	r := New()
	a := &fakeAware{}
	b := &fakeAware{}
	r.Register(KindTransaction, a)
	r.Register(KindCursor, b)

	assert.Equal(t, 2, r.Len())
	r.DetachAll(DetachSessionClosed)

	assert.True(t, a.gotDetach)
	assert.True(t, b.gotDetach)
	assert.Equal(t, 0, r.Len())
}

func TestCountByKind(t *testing.T) {
	r := New()
	r.Register(KindCursor, &fakeAware{})
	r.Register(KindCursor, &fakeAware{})
	r.Register(KindTransaction, &fakeAware{})

	counts := r.Count()
	assert.Equal(t, 2, counts[KindCursor])
	assert.Equal(t, 1, counts[KindTransaction])
}
