package diff

import (
	"strings"
	"testing"
)

func TestComputeIdentical(t *testing.T) {
	lines := []string{"alpha", "beta", "gamma"}
	ops := Compute(lines, lines)

	if len(ops) != 3 {
		t.Fatalf("expected 3 ops, got %d", len(ops))
	}
	for i, op := range ops {
		if op.Kind != Equal || op.A != i || op.B != i {
			t.Errorf("op %d = %+v, want equal at %d", i, op, i)
		}
	}
}

func TestComputeInsertion(t *testing.T) {
	ops := Compute([]string{"alpha", "gamma"}, []string{"alpha", "beta", "gamma"})

	inserts := 0
	for _, op := range ops {
		if op.Kind == Insert {
			inserts++
			if op.Text != "beta" || op.B != 1 || op.A != -1 {
				t.Errorf("unexpected insert %+v", op)
			}
		}
	}
	if inserts != 1 {
		t.Errorf("expected 1 insertion, got %d", inserts)
	}
}

func TestComputeDeletion(t *testing.T) {
	ops := Compute([]string{"alpha", "beta", "gamma"}, []string{"alpha", "gamma"})

	deletes := 0
	for _, op := range ops {
		if op.Kind == Delete {
			deletes++
			if op.Text != "beta" || op.A != 1 || op.B != -1 {
				t.Errorf("unexpected delete %+v", op)
			}
		}
	}
	if deletes != 1 {
		t.Errorf("expected 1 deletion, got %d", deletes)
	}
}

func TestComputeOneSideEmpty(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want Kind
	}{
		{"all inserted", nil, []string{"alpha", "beta"}, Insert},
		{"all deleted", []string{"alpha", "beta"}, nil, Delete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := Compute(tt.a, tt.b)
			if len(ops) != 2 {
				t.Fatalf("expected 2 ops, got %d", len(ops))
			}
			for _, op := range ops {
				if op.Kind != tt.want {
					t.Errorf("got %v, want %v", op.Kind, tt.want)
				}
			}
		})
	}
	if ops := Compute(nil, nil); ops != nil {
		t.Errorf("expected nil script, got %v", ops)
	}
}

func TestComputeOrdersReplacementDeleteFirst(t *testing.T) {
	ops := Compute([]string{"a", "old", "c"}, []string{"a", "new", "c"})
	kinds := make([]string, len(ops))
	for i, op := range ops {
		kinds[i] = op.Kind.String()
	}
	if got := strings.Join(kinds, ""); got != "=-+=" {
		t.Errorf("script = %q, want \"=-+=\"", got)
	}
}

func TestBlocksCounts(t *testing.T) {
	tests := []struct {
		name                  string
		orig, rev             []string
		ins, del, same, hunks int
	}{
		{"identical", []string{"Hello", "test", "Bye"}, []string{"Hello", "test", "Bye"}, 0, 0, 3, 0},
		{"addition", []string{"intro", "end"}, []string{"intro", "new", "end"}, 1, 0, 2, 1},
		{"deletion", []string{"intro", "middle", "end"}, []string{"intro", "end"}, 0, 1, 2, 1},
		{"replaced", []string{"old1", "old2", "old3"}, []string{"new1", "new2"}, 2, 3, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Blocks(tt.orig, tt.rev, "a.docx", "b.docx", 3)
			if r.Insertions != tt.ins || r.Deletions != tt.del || r.Unchanged != tt.same {
				t.Errorf("got +%d -%d =%d, want +%d -%d =%d", r.Insertions, r.Deletions, r.Unchanged, tt.ins, tt.del, tt.same)
			}
			if len(r.Hunks) != tt.hunks {
				t.Errorf("got %d hunks, want %d", len(r.Hunks), tt.hunks)
			}
		})
	}
}

func TestHunkHeader(t *testing.T) {
	r := Blocks([]string{"alpha", "beta", "gamma"}, []string{"alpha", "BETA", "gamma"}, "a", "b", 1)
	if len(r.Hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(r.Hunks))
	}
	if got := r.Hunks[0].Header; got != "@@ -1,3 +1,3 @@" {
		t.Errorf("header = %q", got)
	}
}

func TestFormatUnified(t *testing.T) {
	r := Blocks([]string{"intro", "middle", "end"}, []string{"intro", "new middle", "end"}, "orig.docx", "rev.docx", 1)
	out := r.FormatUnified(false)

	for _, want := range []string{"--- orig.docx", "+++ rev.docx", "- middle", "+ new middle", "1 insertions, 1 deletions, 2 unchanged"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
