package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFilterRender(t *testing.T) {
	f := &Filter{}
	f.Add("l.status = ?", "active")
	f.Add("l.category_id = ?", int64(10))
	f.Add("a.numeric_value BETWEEN ? AND ?", 100.0, 200.0)

	where, args := f.Render(3)
	want := "l.status = $3 AND l.category_id = $4 AND a.numeric_value BETWEEN $5 AND $6"
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	if diff := cmp.Diff([]any{"active", int64(10), 100.0, 200.0}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterRender_Empty(t *testing.T) {
	f := &Filter{}
	where, args := f.Render(1)
	if where != "TRUE" || args != nil {
		t.Errorf("empty filter rendered %q with args %v", where, args)
	}
}

func TestFilterClone(t *testing.T) {
	f := &Filter{}
	f.Add("l.status = ?", "active")

	c := f.Clone()
	c.Add("l.city_id = ?", int64(1))

	if f.Len() != 1 {
		t.Errorf("clone mutated the original: len = %d", f.Len())
	}
	if c.Len() != 2 {
		t.Errorf("clone len = %d", c.Len())
	}

	origWhere, _ := f.Render(1)
	if diff := cmp.Diff("l.status = $1", origWhere); diff != "" {
		t.Errorf("original where changed:\n%s", diff)
	}
}
