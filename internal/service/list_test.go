package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/title-reviews/internal/model"
)

func TestListNeighbours(t *testing.T) {
	first := newList([]int{1, 2}, 5, model.Page{Number: 1, Size: 2})
	assert.True(t, first.HasNext())
	assert.False(t, first.HasPrevious())

	last := newList([]int{5}, 5, model.Page{Number: 3, Size: 2})
	assert.False(t, last.HasNext())
	assert.True(t, last.HasPrevious())

	empty := newList[int](nil, 0, model.Page{Number: 1, Size: 2})
	assert.NotNil(t, empty.Items)
	assert.False(t, empty.HasNext())
}

func TestDeriveSlug(t *testing.T) {
	assert.Equal(t, "keep", deriveSlug("Whatever", "keep"))
	assert.Equal(t, "film-noir", deriveSlug("Film Noir", ""))
	long := deriveSlug("a very long genre name that keeps going and going past fifty", "")
	assert.LessOrEqual(t, len(long), model.MaxSlugLen)
}
