package netfetch_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/cageshell/cageshell/netfetch"
)

func TestAllowListExactMatch(t *testing.T) {
	c := qt.New(t)
	a := netfetch.AllowList{Patterns: []string{"api.example.com"}}
	c.Assert(a.Allowed("api.example.com"), qt.IsTrue)
	c.Assert(a.Allowed("other.example.com"), qt.IsFalse)
}

func TestAllowListWildcard(t *testing.T) {
	c := qt.New(t)
	a := netfetch.AllowList{Patterns: []string{"*.example.com"}}
	c.Assert(a.Allowed("api.example.com"), qt.IsTrue)
	c.Assert(a.Allowed("example.com"), qt.IsFalse)
	c.Assert(a.Allowed("evil.com"), qt.IsFalse)
}

func TestAllowListSubdomains(t *testing.T) {
	c := qt.New(t)
	a := netfetch.AllowList{Patterns: []string{"example.com"}, AllowSubdomains: true}
	c.Assert(a.Allowed("api.example.com"), qt.IsTrue)
	c.Assert(a.Allowed("example.com"), qt.IsTrue)
}

func TestAllowListEmptyDeniesEverything(t *testing.T) {
	c := qt.New(t)
	var a netfetch.AllowList
	c.Assert(a.Allowed("example.com"), qt.IsFalse)
}

func TestFetcherRejectsDisallowedHost(t *testing.T) {
	c := qt.New(t)
	f := netfetch.New(netfetch.Config{
		AllowList: netfetch.AllowList{Patterns: []string{"api.example.com"}},
	})
	_, err := f.Do(context.Background(), netfetch.Request{
		Method: netfetch.MethodGet,
		URL:    "https://evil.com/",
	})
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestFetcherRejectsDisallowedMethod(t *testing.T) {
	c := qt.New(t)
	f := netfetch.New(netfetch.Config{
		AllowList: netfetch.AllowList{Patterns: []string{"api.example.com"}},
	})
	_, err := f.Do(context.Background(), netfetch.Request{
		Method: netfetch.MethodPost,
		URL:    "https://api.example.com/",
	})
	c.Assert(err, qt.Not(qt.IsNil))
}
