package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBook_HasGenre(t *testing.T) {
	book := &Book{
		Title:  "Dune",
		Genres: []string{"Science Fiction", "Classic"},
	}

	assert.True(t, book.HasGenre("Science Fiction"))
	assert.True(t, book.HasGenre("science fiction"))
	assert.True(t, book.HasGenre("CLASSIC"))
	assert.False(t, book.HasGenre("Romance"))
}

func TestAuthor_SetBorn(t *testing.T) {
	author := &Author{Name: "Ursula K. Le Guin"}
	author.InitTimestamps()
	before := author.UpdatedAt

	time.Sleep(time.Millisecond)

	year := 1929
	author.SetBorn(&year)
	assert.NotNil(t, author.Born)
	assert.Equal(t, 1929, *author.Born)
	assert.True(t, author.UpdatedAt.After(before))

	author.SetBorn(nil)
	assert.Nil(t, author.Born)
}

func TestRecord_InitTimestamps(t *testing.T) {
	var r Record
	r.InitTimestamps()

	assert.False(t, r.CreatedAt.IsZero())
	assert.Equal(t, r.CreatedAt, r.UpdatedAt)
}
