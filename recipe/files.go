package recipe

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dcshock/speechpipe/dict"
)

func countLines(path string) (int, error) {
	lines, err := readLines(path)
	return len(lines), err
}

// readLines returns the non-empty lines of path.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func writeNLSyms(text, out string, logger *slog.Logger) error {
	f, err := os.Open(text)
	if err != nil {
		return err
	}
	defer f.Close()
	syms, err := dict.ExtractNLSyms(f)
	if err != nil {
		return fmt.Errorf("%s: %w", text, err)
	}
	logger.Info("non-linguistic symbols", "path", out, "symbols", syms)
	var buf bytes.Buffer
	for _, s := range syms {
		buf.WriteString(s)
		buf.WriteByte('\n')
	}
	return writeFileAtomic(out, buf.Bytes())
}

// writeSentences writes the transcript bodies of a Kaldi text file, one per
// line, as sentencepiece training input.
func writeSentences(text, out string) error {
	lines, err := readLines(text)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, l := range lines {
		_, body, _ := strings.Cut(l, " ")
		buf.WriteString(strings.TrimSpace(body))
		buf.WriteByte('\n')
	}
	return writeFileAtomic(out, buf.Bytes())
}

func writeTokenDict(text, unit string, vocabSize int, nlsymsPath, out string, logger *slog.Logger) error {
	nlsyms, err := readLines(nlsymsPath)
	if err != nil {
		return err
	}
	f, err := os.Open(text)
	if err != nil {
		return err
	}
	defer f.Close()
	counts, err := dict.CountTokens(f, unit, nlsyms)
	if err != nil {
		return fmt.Errorf("%s: %w", text, err)
	}
	return writeDict(out, unit, dict.Select(counts, unit, vocabSize), logger)
}

func writePieceDict(pieces, out string, logger *slog.Logger) error {
	f, err := os.Open(pieces)
	if err != nil {
		return err
	}
	defer f.Close()
	counts, err := dict.CountPieces(f)
	if err != nil {
		return fmt.Errorf("%s: %w", pieces, err)
	}
	return writeDict(out, dict.UnitWordPiece, dict.Select(counts, dict.UnitWordPiece, 0), logger)
}

func writeDict(out, unit string, tokens []string, logger *slog.Logger) error {
	var buf bytes.Buffer
	if err := dict.Write(&buf, unit, tokens); err != nil {
		return err
	}
	if err := writeFileAtomic(out, buf.Bytes()); err != nil {
		return err
	}
	logger.Info("dictionary", "path", out, "vocab_size", bytes.Count(buf.Bytes(), []byte{'\n'}))
	return nil
}

// writeOOVReport writes the out-of-vocabulary rate of each set's running
// words against the dictionary.
func writeOOVReport(p Paths, sets []string, dictPath, out string, logger *slog.Logger) error {
	df, err := os.Open(dictPath)
	if err != nil {
		return err
	}
	entries, err := dict.Read(df)
	df.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", dictPath, err)
	}
	vocab := make([]string, len(entries))
	for i, e := range entries {
		vocab[i] = e.Token
	}

	var buf bytes.Buffer
	buf.WriteString("OOV rate:\n")
	for _, set := range sets {
		text := filepath.Join(p.SetDir(set), "text")
		f, err := os.Open(text)
		if err != nil {
			return err
		}
		counts, err := dict.CountTokens(f, dict.UnitWord, nil)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", text, err)
		}
		rate := dict.OOVRate(counts, vocab)
		logger.Info("oov rate", "set", set, "percent", fmt.Sprintf("%.2f", rate))
		fmt.Fprintf(&buf, "%s: %.2f%%\n", set, rate)
	}
	return writeFileAtomic(out, buf.Bytes())
}
