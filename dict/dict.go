// Package dict builds the line-oriented vocabulary table read by the
// trainers.
//
// A dictionary starts with a reserved block (<unk> 1, <eos> 2, <pad> 3 and,
// for characters, <space> 4) followed by "token index" lines whose indices
// continue after the block in reading order. Index 0 is the CTC blank and is
// never written.
package dict

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// Linguistic units, matching the unit parameter.
const (
	UnitChar      = "char"
	UnitWord      = "word"
	UnitWordPiece = "wp"
	UnitWordChar  = "word_char"
)

// Reserved symbols.
const (
	Unk   = "<unk>"
	EOS   = "<eos>"
	Pad   = "<pad>"
	Space = "<space>"
)

// Entry is one dictionary line.
type Entry struct {
	Token string
	Index int
}

// ReservedTokens returns the reserved block for unit.
func ReservedTokens(unit string) []Entry {
	out := []Entry{{Unk, 1}, {EOS, 2}, {Pad, 3}}
	if unit == UnitChar {
		out = append(out, Entry{Space, 4})
	}
	return out
}

var nlsymRE = regexp.MustCompile(`\[[^\[\]\s]+\]|<[^<>\s]+>`)

// ExtractNLSyms returns the non-linguistic symbols ([laughter], <noise>)
// found in the transcript bodies of a Kaldi text file, sorted and unique.
func ExtractNLSyms(r io.Reader) ([]string, error) {
	seen := make(map[string]bool)
	err := eachTranscript(r, func(words []string) {
		for _, w := range words {
			for _, m := range nlsymRE.FindAllString(w, -1) {
				seen[m] = true
			}
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// CountTokens counts the tokens of a Kaldi text file ("uttid w1 w2 ...")
// for unit. Words listed in nlsyms are never split into characters.
func CountTokens(r io.Reader, unit string, nlsyms []string) (map[string]int, error) {
	sym := make(map[string]bool, len(nlsyms))
	for _, s := range nlsyms {
		sym[s] = true
	}
	counts := make(map[string]int)
	chars := func(w string) {
		if sym[w] {
			counts[w]++
			return
		}
		for _, c := range w {
			counts[string(c)]++
		}
	}
	err := eachTranscript(r, func(words []string) {
		for _, w := range words {
			switch unit {
			case UnitChar:
				chars(w)
			case UnitWordChar:
				counts[w]++
				if !sym[w] {
					chars(w)
				}
			default:
				counts[w]++
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// CountPieces counts whitespace-separated pieces, one sentence per line.
// Used on sentencepiece encoder output.
func CountPieces(r io.Reader) (map[string]int, error) {
	counts := make(map[string]int)
	sc := newScanner(r)
	for sc.Scan() {
		for _, p := range strings.Fields(sc.Text()) {
			counts[p]++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// Select orders counted tokens for unit. Characters are sorted
// lexicographically. Everything else goes by descending frequency with
// lexicographic ties; word keeps the top vocabSize entries and word_char
// keeps every character plus the top vocabSize words. vocabSize <= 0 keeps
// all tokens. Reserved symbols are never selected.
func Select(counts map[string]int, unit string, vocabSize int) []string {
	var toks []string
	for t := range counts {
		if isReserved(t) {
			continue
		}
		toks = append(toks, t)
	}
	if unit == UnitChar {
		sort.Strings(toks)
		return toks
	}
	byFreq := func(s []string) {
		sort.Slice(s, func(i, j int) bool {
			if counts[s[i]] != counts[s[j]] {
				return counts[s[i]] > counts[s[j]]
			}
			return s[i] < s[j]
		})
	}
	if unit == UnitWordChar {
		var chars, words []string
		for _, t := range toks {
			if isChar(t) {
				chars = append(chars, t)
			} else {
				words = append(words, t)
			}
		}
		byFreq(words)
		words = truncate(words, vocabSize)
		sort.Strings(chars)
		return append(words, chars...)
	}
	byFreq(toks)
	if unit == UnitWord {
		toks = truncate(toks, vocabSize)
	}
	return toks
}

// Write writes the reserved block for unit followed by tokens. Tokens that
// collide with a reserved symbol or repeat an earlier token are skipped so
// indices stay unique.
func Write(w io.Writer, unit string, tokens []string) error {
	bw := bufio.NewWriter(w)
	reserved := ReservedTokens(unit)
	for _, e := range reserved {
		if _, err := fmt.Fprintf(bw, "%s %d\n", e.Token, e.Index); err != nil {
			return err
		}
	}
	next := len(reserved) + 1
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if t == "" || isReserved(t) || seen[t] {
			continue
		}
		seen[t] = true
		if _, err := fmt.Fprintf(bw, "%s %d\n", t, next); err != nil {
			return err
		}
		next++
	}
	return bw.Flush()
}

// Read parses a dictionary file into its entries.
func Read(r io.Reader) ([]Entry, error) {
	var out []Entry
	sc := newScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		tok, idx, ok := strings.Cut(text, " ")
		var n int
		if ok {
			_, err := fmt.Sscanf(strings.TrimSpace(idx), "%d", &n)
			ok = err == nil
		}
		if !ok {
			return nil, fmt.Errorf("dict line %d: malformed entry %q", line, text)
		}
		out = append(out, Entry{Token: tok, Index: n})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// OOVRate returns the percentage of running words in counts that are not
// in vocab.
func OOVRate(counts map[string]int, vocab []string) float64 {
	in := make(map[string]bool, len(vocab))
	for _, v := range vocab {
		in[v] = true
	}
	var total, oov int
	for w, n := range counts {
		total += n
		if !in[w] {
			oov += n
		}
	}
	if total == 0 {
		return 0
	}
	return float64(oov) * 100 / float64(total)
}

func eachTranscript(r io.Reader, fn func(words []string)) error {
	sc := newScanner(r)
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 2 {
			continue
		}
		fn(f[1:])
	}
	return sc.Err()
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return sc
}

func isReserved(t string) bool {
	switch t {
	case Unk, EOS, Pad, Space:
		return true
	}
	return false
}

func isChar(t string) bool {
	n := 0
	for range t {
		n++
		if n > 1 {
			return false
		}
	}
	return n == 1
}

func truncate(s []string, n int) []string {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
