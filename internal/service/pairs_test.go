package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairTableLinkIsMutual(t *testing.T) {
	p := NewPairTable()
	p.Link("a", "b")

	assert.Equal(t, "b", p.Lookup("a"))
	assert.Equal(t, "a", p.Lookup("b"))
	assert.Equal(t, 2, p.Len())
}

func TestPairTableRelinkReleasesPriorPartners(t *testing.T) {
	p := NewPairTable()
	p.Link("a", "b")
	p.Link("c", "d")

	// Re-linking a with c must fully dissolve both prior pairs.
	p.Link("a", "c")

	assert.Equal(t, "c", p.Lookup("a"))
	assert.Equal(t, "a", p.Lookup("c"))
	assert.Equal(t, "", p.Lookup("b"))
	assert.Equal(t, "", p.Lookup("d"))
	assert.Equal(t, 2, p.Len())
}

func TestPairTableUnlink(t *testing.T) {
	p := NewPairTable()
	p.Link("a", "b")

	assert.Equal(t, "b", p.Unlink("a"))
	assert.Equal(t, "", p.Lookup("a"))
	assert.Equal(t, "", p.Lookup("b"))
	assert.Equal(t, 0, p.Len())

	assert.Equal(t, "", p.Unlink("a"))
	assert.Equal(t, "", p.Unlink("never-seen"))
}
