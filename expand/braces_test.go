package expand_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/cageshell/cageshell/expand"
)

func TestExpandBracesList(t *testing.T) {
	c := qt.New(t)
	got := expand.ExpandBraces("file.{a,b,c}")
	c.Assert(got, qt.DeepEquals, []string{"file.a", "file.b", "file.c"})
}

func TestExpandBracesRange(t *testing.T) {
	c := qt.New(t)
	got := expand.ExpandBraces("{1..3}")
	c.Assert(got, qt.DeepEquals, []string{"1", "2", "3"})
}

func TestExpandBracesZeroPaddedRange(t *testing.T) {
	c := qt.New(t)
	got := expand.ExpandBraces("{01..03}")
	c.Assert(got, qt.DeepEquals, []string{"01", "02", "03"})
}

func TestExpandBracesNoMeta(t *testing.T) {
	c := qt.New(t)
	got := expand.ExpandBraces("plain")
	c.Assert(got, qt.DeepEquals, []string{"plain"})
}
