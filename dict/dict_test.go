package dict

import (
	"bytes"
	"math"
	"reflect"
	"strings"
	"testing"
)

const text = `A01M0001_0001 えー [laughter] 今日 は
A01M0001_0002 今日 は 晴れ
A01M0001_0003 <noise>
A01M0001_0004
`

func TestWrite_CharReservedBlock(t *testing.T) {
	counts, err := CountTokens(strings.NewReader(text), UnitChar, []string{"[laughter]", "<noise>"})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, UnitChar, Select(counts, UnitChar, 0)); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	want := []string{"<unk> 1", "<eos> 2", "<pad> 3", "<space> 4"}
	if !reflect.DeepEqual(lines[:4], want) {
		t.Fatalf("reserved block: got %q", lines[:4])
	}
	if lines[4] != "<noise> 5" {
		t.Errorf("first corpus token: got %q", lines[4])
	}
	entries, err := Read(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range entries {
		if e.Index != i+1 {
			t.Fatalf("entry %d (%q): index %d, want %d", i, e.Token, e.Index, i+1)
		}
	}
	if len(entries) != len(lines) {
		t.Errorf("Read: %d entries for %d lines", len(entries), len(lines))
	}
}

func TestReservedTokens(t *testing.T) {
	if n := len(ReservedTokens(UnitChar)); n != 4 {
		t.Errorf("char: %d reserved", n)
	}
	for _, u := range []string{UnitWord, UnitWordPiece, UnitWordChar} {
		if n := len(ReservedTokens(u)); n != 3 {
			t.Errorf("%s: %d reserved", u, n)
		}
	}
}

func TestExtractNLSyms(t *testing.T) {
	got, err := ExtractNLSyms(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"<noise>", "[laughter]"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCountTokens(t *testing.T) {
	nl := []string{"[laughter]", "<noise>"}

	char, err := CountTokens(strings.NewReader(text), UnitChar, nl)
	if err != nil {
		t.Fatal(err)
	}
	if char["今"] != 2 || char["[laughter]"] != 1 || char["["] != 0 {
		t.Errorf("char counts: %v", char)
	}
	if _, ok := char[" "]; ok {
		t.Error("word boundaries must not be tokens")
	}

	word, err := CountTokens(strings.NewReader(text), UnitWord, nl)
	if err != nil {
		t.Fatal(err)
	}
	if word["今日"] != 2 || word["晴れ"] != 1 || word["A01M0001_0001"] != 0 {
		t.Errorf("word counts: %v", word)
	}

	wc, err := CountTokens(strings.NewReader(text), UnitWordChar, nl)
	if err != nil {
		t.Fatal(err)
	}
	if wc["今日"] != 2 || wc["日"] != 2 || wc["[laughter]"] != 1 {
		t.Errorf("word_char counts: %v", wc)
	}
}

func TestSelect(t *testing.T) {
	counts := map[string]int{"b": 3, "a": 3, "c": 5, "d": 1, "<unk>": 9}

	if got := Select(counts, UnitChar, 2); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("char: %q", got)
	}
	if got := Select(counts, UnitWord, 2); !reflect.DeepEqual(got, []string{"c", "a"}) {
		t.Errorf("word: %q", got)
	}
	if got := Select(counts, UnitWordPiece, 2); !reflect.DeepEqual(got, []string{"c", "a", "b", "d"}) {
		t.Errorf("wp: %q", got)
	}

	wc := map[string]int{"今日": 4, "晴れ": 2, "今": 1, "日": 1}
	if got := Select(wc, UnitWordChar, 1); !reflect.DeepEqual(got, []string{"今日", "今", "日"}) {
		t.Errorf("word_char: %q", got)
	}
}

func TestWrite_SkipsDuplicatesAndReserved(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, UnitWord, []string{"x", "<unk>", "x", "", "y"}); err != nil {
		t.Fatal(err)
	}
	want := "<unk> 1\n<eos> 2\n<pad> 3\nx 4\ny 5\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestCountPieces(t *testing.T) {
	got, err := CountPieces(strings.NewReader("▁今日 は\n▁今日 ▁晴 れ\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got["▁今日"] != 2 || got["は"] != 1 || len(got) != 4 {
		t.Errorf("got %v", got)
	}
}

func TestRead_Malformed(t *testing.T) {
	if _, err := Read(strings.NewReader("<unk> 1\nbroken\n")); err == nil {
		t.Error("expected error for line without index")
	}
}

func TestOOVRate(t *testing.T) {
	counts := map[string]int{"a": 6, "b": 3, "c": 1}
	if got := OOVRate(counts, []string{"a", "b"}); math.Abs(got-10) > 1e-9 {
		t.Errorf("got %v, want 10", got)
	}
	if got := OOVRate(nil, nil); got != 0 {
		t.Errorf("empty: %v", got)
	}
}
