package vocab

import (
	"context"
	"testing"
)

type flipLoader struct {
	groups [][]string
	tags   [][]string
	calls  int
}

func (l *flipLoader) Load(context.Context) ([]string, []string, error) {
	i := l.calls
	if i >= len(l.groups) {
		i = len(l.groups) - 1
	}
	l.calls++
	return l.groups[i], l.tags[i], nil
}

func TestRegistryLookups(t *testing.T) {
	r, err := New(context.Background(), Static{
		Groups: []string{"lecture", "society"},
		Tags:   []string{"music"},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	if !r.ValidGroup("lecture") {
		t.Error("lecture should be a valid group")
	}
	if r.ValidGroup("music") {
		t.Error("music is a tag, not a group")
	}
	if !r.ValidTag("music") {
		t.Error("music should be a valid tag")
	}
	if r.ValidTag("") {
		t.Error("empty tag should be invalid")
	}
}

func TestRegistryReload(t *testing.T) {
	loader := &flipLoader{
		groups: [][]string{{"lecture"}, {"sports"}},
		tags:   [][]string{{"music"}, {"leisure"}},
	}
	r, err := New(context.Background(), loader)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if !r.ValidGroup("lecture") || r.ValidGroup("sports") {
		t.Fatal("initial load not in effect")
	}
	before := r.Version()

	if err := r.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if r.ValidGroup("lecture") || !r.ValidGroup("sports") {
		t.Error("reload did not swap the group set")
	}
	if r.ValidTag("music") || !r.ValidTag("leisure") {
		t.Error("reload did not swap the tag set")
	}
	if r.Version() != before+1 {
		t.Errorf("version = %d, want %d", r.Version(), before+1)
	}
}

func TestRegistrySortedViews(t *testing.T) {
	r, err := New(context.Background(), Static{
		Groups: []string{"society", "lecture", "concert"},
		Tags:   []string{"sports"},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	groups := r.Groups()
	want := []string{"concert", "lecture", "society"}
	if len(groups) != len(want) {
		t.Fatalf("groups = %v, want %v", groups, want)
	}
	for i := range want {
		if groups[i] != want[i] {
			t.Fatalf("groups = %v, want %v", groups, want)
		}
	}
}
