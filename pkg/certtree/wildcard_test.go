package certtree

import "testing"

func bs(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func bss(paths ...[][]byte) [][][]byte { return paths }

func equalPathList(a, b [][][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pathsEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func TestMoreSpecificWildcardsFor(t *testing.T) {
	requested := bs("a", "b", "c")

	cases := []struct {
		name       string
		responding [][]byte
		want       [][][]byte
	}{
		{
			"a_exact_match",
			bs("a", "b", "c"),
			bss(),
		},
		{
			"b_trailing_dir_separator",
			bs("a", "b", ""),
			bss(bs("a", "b", "c", "<*>")),
		},
		{
			"c_two_segments",
			bs("a", "b"),
			bss(
				bs("a", "b", "c", "<*>"),
				bs("a", "b", "", "<*>"),
			),
		},
		{
			"d_one_segment_dir_separator",
			bs("a", ""),
			bss(
				bs("a", "b", "c", "<*>"),
				bs("a", "b", "", "<*>"),
				bs("a", "b", "<*>"),
			),
		},
		{
			"e_one_segment",
			bs("a"),
			bss(
				bs("a", "b", "c", "<*>"),
				bs("a", "b", "", "<*>"),
				bs("a", "b", "<*>"),
				bs("a", "", "<*>"),
			),
		},
		{
			"f_root_dir_separator",
			bs(""),
			bss(
				bs("a", "b", "c", "<*>"),
				bs("a", "b", "", "<*>"),
				bs("a", "b", "<*>"),
				bs("a", "", "<*>"),
				bs("a", "<*>"),
			),
		},
		{
			"g_empty",
			bs(),
			bss(
				bs("a", "b", "c", "<*>"),
				bs("a", "b", "", "<*>"),
				bs("a", "b", "<*>"),
				bs("a", "", "<*>"),
				bs("a", "<*>"),
				bs("", "<*>"),
			),
		},
		{
			"h_unrelated_path",
			bs("d", "e", "f"),
			bss(
				bs("a", "b", "c", "<*>"),
				bs("a", "b", "", "<*>"),
				bs("a", "b", "<*>"),
				bs("a", "", "<*>"),
				bs("a", "<*>"),
				bs("", "<*>"),
			),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := MoreSpecificWildcardsFor(requested, c.responding)
			if !equalPathList(got, c.want) {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestIsWildcardPathValidForRequestPath(t *testing.T) {
	if !IsWildcardPathValidForRequestPath(bs("a", "b"), bs("a", "b", "c")) {
		t.Fatal("expected prefix match to be valid")
	}
	if !IsWildcardPathValidForRequestPath(bs("a", ""), bs("a", "b")) {
		t.Fatal("expected trailing dir-separator wildcard to tolerate a following segment")
	}
	if IsWildcardPathValidForRequestPath(bs("x", "y"), bs("a", "b", "c")) {
		t.Fatal("expected unrelated wildcard path to be invalid")
	}
}

func TestStripPathAffixes(t *testing.T) {
	got := stripPathAffixes(bs("http_expr", "a", "b", "<$>"))
	want := bs("a", "b")
	if !pathsEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got = stripPathAffixes(bs("http_expr", "", "<*>"))
	want = bs("")
	if !pathsEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
