package recipe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dcshock/speechpipe/collab"
	"github.com/dcshock/speechpipe/config"
	"github.com/dcshock/speechpipe/marker"
	"github.com/dcshock/speechpipe/pipeline"
)

const transcript = `A01F0001_0001 えー 今日 は
A01F0001_0002 [laughter] 今日 は 晴れ
A01F0001_0003 明日 は 雨
A01F0001_0004 <noise> 晴れ
A01F0001_0005 今日 は 雨
A01F0001_0006 明日 も 晴れ
`

type fixture struct {
	t       *testing.T
	root    string
	data    string
	bundle  *config.Bundle
	rec     *collab.Recorder
	markers *marker.FileStore
}

func newFixture(t *testing.T, kv ...string) *fixture {
	t.Helper()
	root := t.TempDir()
	data := filepath.Join(root, "data")
	ovs := []config.Override{
		{Name: "data", Value: data},
		{Name: "model", Value: filepath.Join(root, "results")},
		{Name: "csj_datatop", Value: filepath.Join(root, "corpus")},
		{Name: "gpu", Value: "0"},
		{Name: "dev_n_utts", Value: "2"},
	}
	for _, s := range kv {
		o, err := config.ParseOverride(s)
		if err != nil {
			t.Fatal(err)
		}
		ovs = append(ovs, o)
	}
	b, err := config.Resolve(ovs)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(data, 0o755); err != nil {
		t.Fatal(err)
	}
	markers, err := marker.NewFileStore(data)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{t: t, root: root, data: data, bundle: b, rec: collab.NewRecorder(), markers: markers}
	f.simulateCollaborators()
	return f
}

// simulateCollaborators installs hooks that leave behind the files later
// steps read.
func (f *fixture) simulateCollaborators() {
	write := func(dir string) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "text"), []byte(transcript), 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "segments"), []byte(transcript), 0o644)
	}
	copyFile := func(src, dst string) error {
		b, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, b, 0o644)
	}
	f.rec.On("csj_data_prep", func(_ context.Context, inv collab.Invocation) error {
		return write(filepath.Join(f.data, "train_"+inv.Args[1]))
	})
	f.rec.On("csj_eval_data_prep", func(_ context.Context, inv collab.Invocation) error {
		return write(filepath.Join(f.data, inv.Args[1]))
	})
	f.rec.On("remove_pos", func(_ context.Context, inv collab.Invocation) error {
		return copyFile(inv.Args[0], inv.Stdout)
	})
	f.rec.On("nkf", func(_ context.Context, inv collab.Invocation) error {
		return copyFile(inv.Stdin, inv.Stdout)
	})
	f.rec.On("subset_data_dir", func(_ context.Context, inv collab.Invocation) error {
		return write(inv.Args[3])
	})
	f.rec.On("remove_dup_utts", func(_ context.Context, inv collab.Invocation) error {
		return write(inv.Args[2])
	})
}

func (f *fixture) pipeline() *pipeline.Pipeline {
	f.t.Helper()
	r := &Recipe{
		Bundle:  f.bundle,
		Runner:  f.rec,
		Markers: f.markers,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	p, err := r.Pipeline()
	if err != nil {
		f.t.Fatal(err)
	}
	return p
}

func (f *fixture) run(floor, stop int) (pipeline.Result, error) {
	opts := &pipeline.RunOptions{Floor: floor}
	if stop >= 0 {
		opts.Stop = pipeline.StopAt(stop)
	}
	return f.pipeline().Run(context.Background(), opts)
}

func (f *fixture) exists(key string) bool {
	_, err := os.Stat(filepath.Join(f.data, key))
	return err == nil
}

func (f *fixture) call(name string) collab.Invocation {
	f.t.Helper()
	for _, c := range f.rec.Calls() {
		if c.Name == name {
			return c
		}
	}
	f.t.Fatalf("no %s invocation in %v", name, f.rec.Names())
	return collab.Invocation{}
}

func TestDataPrep_CreatesMarker(t *testing.T) {
	f := newFixture(t, "unit=char")
	if _, err := f.run(0, 0); err != nil {
		t.Fatal(err)
	}
	if !f.exists(".done_stage_0_all") {
		t.Fatal("stage 0 marker not created")
	}
	names := f.rec.Names()
	if names[0] != "csj_autorun" || names[1] != "csj_data_prep" {
		t.Errorf("invocation order: %v", names)
	}
	if len(names) != 13 {
		t.Errorf("want 13 invocations, got %d: %v", len(names), names)
	}
	text, err := os.ReadFile(filepath.Join(f.data, "train_all", "text"))
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != transcript {
		t.Error("normalized transcript was not moved into place")
	}
	if _, err := os.Stat(filepath.Join(f.data, "train_all", ".text.tmp")); !os.IsNotExist(err) {
		t.Error("scratch directory left behind")
	}
}

func TestRerun_DoesNoWork(t *testing.T) {
	f := newFixture(t, "unit=char")
	if _, err := f.run(0, -1); err != nil {
		t.Fatal(err)
	}
	for _, k := range Keys(f.bundle) {
		if !f.exists(string(k)) {
			t.Errorf("marker %s missing after full run", k)
		}
	}

	f.rec.Reset()
	res, err := f.run(0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(f.rec.Calls()); n != 0 {
		t.Errorf("second run made %d invocations: %v", n, f.rec.Names())
	}
	if len(res.Ran()) != 0 {
		t.Errorf("second run executed stages %v", res.Ran())
	}
}

func TestKeys(t *testing.T) {
	f := newFixture(t, "data_size=aps", "lm_data_size=all", "unit=wp", "wp_type=unigram", "vocab_size=5000")
	want := []marker.Key{
		".done_stage_0_aps",
		".done_stage_1_aps",
		".done_stage_2_aps_wpunigram5000",
		".done_stage_3_apsall_wpunigram5000",
		".done_stage_4_aps_wpunigram5000",
	}
	if got := Keys(f.bundle); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCharDictionary(t *testing.T) {
	f := newFixture(t, "unit=char")
	if _, err := f.run(0, 2); err != nil {
		t.Fatal(err)
	}
	p := NewPaths(f.bundle)
	if filepath.Base(p.Dict) != "train_nodev_all_char.txt" {
		t.Errorf("dict path: %s", p.Dict)
	}
	lines, err := readLines(p.Dict)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"<unk> 1", "<eos> 2", "<pad> 3", "<space> 4"}
	if !reflect.DeepEqual(lines[:4], want) {
		t.Errorf("reserved block: %q", lines[:4])
	}
	if lines[4] != "<noise> 5" {
		t.Errorf("first token: %q", lines[4])
	}
	syms, err := readLines(p.NLSyms)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(syms, []string{"<noise>", "[laughter]"}) {
		t.Errorf("nlsyms: %q", syms)
	}
}

func TestWordUnit_WritesOOVReport(t *testing.T) {
	f := newFixture(t, "unit=word", "vocab_size=3")
	if _, err := f.run(0, 2); err != nil {
		t.Fatal(err)
	}
	report, err := os.ReadFile(filepath.Join(f.data, "dict", "oov_rate", "word3_all.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(report), "OOV rate:\ntrain_nodev_all: ") {
		t.Errorf("report: %q", report)
	}
	if !strings.Contains(string(report), "eval3: ") {
		t.Errorf("report misses eval sets: %q", report)
	}
}

func TestWordPiece_TrainsSentencePiece(t *testing.T) {
	f := newFixture(t, "unit=wp", "vocab_size=100")
	f.rec.On("spm_encode", func(_ context.Context, inv collab.Invocation) error {
		return os.WriteFile(inv.Stdout, []byte("▁今日 は\n▁晴 れ ▁今日\n"), 0o644)
	})
	if _, err := f.run(0, 2); err != nil {
		t.Fatal(err)
	}
	train := f.call("spm_train")
	if train.Args[0] != "--user_defined_symbols=<noise>,[laughter]" {
		t.Errorf("spm_train symbols: %q", train.Args[0])
	}
	p := NewPaths(f.bundle)
	lines, err := readLines(p.Dict)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3+4 || lines[3] != "▁今日 4" {
		t.Errorf("dict: %q", lines)
	}
	if _, err := os.Stat(filepath.Join(f.data, "dict", ".spm.tmp")); !os.IsNotExist(err) {
		t.Error("sentencepiece scratch directory left behind")
	}
}

func TestTrainers_DeviceSelection(t *testing.T) {
	f := newFixture(t, "unit=char", "gpu=0,1,2")
	if _, err := f.run(0, -1); err != nil {
		t.Fatal(err)
	}

	lm := f.call("lm_train")
	if !reflect.DeepEqual(lm.Env, []string{"CUDA_VISIBLE_DEVICES=0"}) {
		t.Errorf("lm env: %v", lm.Env)
	}
	if !hasPair(lm.Args, "--n_gpus", "1") || !hasPair(lm.Args, "--n_units", "1024") {
		t.Errorf("lm args: %v", lm.Args)
	}

	asr := f.call("asr_train")
	if !reflect.DeepEqual(asr.Env, []string{"CUDA_VISIBLE_DEVICES=0,1,2"}) {
		t.Errorf("asr env: %v", asr.Env)
	}
	if !hasPair(asr.Args, "--n_gpus", "3") || !hasPair(asr.Args, "--enc_type", "blstm") {
		t.Errorf("asr args: %v", asr.Args)
	}
	if hasPair(asr.Args, "--wp_model", NewPaths(f.bundle).WPModel+".model") {
		t.Error("char unit should not pass a word-piece model")
	}
}

func TestLM_MissingFeaturesForLMDataSize(t *testing.T) {
	f := newFixture(t, "unit=char", "lm_data_size=aps")
	_, err := f.run(0, -1)
	var pe *pipeline.PrerequisiteError
	if !errors.As(err, &pe) {
		t.Fatalf("want *PrerequisiteError, got %v", err)
	}
	if pe.Stage != StageLM || pe.Missing != ".done_stage_1_aps" {
		t.Errorf("got %+v", pe)
	}
	if pe.Hint != "run speechpipe run --data_size aps first" {
		t.Errorf("hint: %q", pe.Hint)
	}
	if !f.exists(".done_stage_2_all_char") {
		t.Error("stage 2 marker should survive the failure")
	}
	for _, name := range f.rec.Names() {
		if name == "lm_train" || name == "asr_train" {
			t.Errorf("%s ran despite the missing prerequisite", name)
		}
	}
}

func TestLM_OtherDataSizeBuildsManifest(t *testing.T) {
	f := newFixture(t, "unit=char", "lm_data_size=aps")
	if err := f.markers.Create(context.Background(), ".done_stage_1_aps"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.run(0, 3); err != nil {
		t.Fatal(err)
	}
	var lmData collab.Invocation
	for _, c := range f.rec.Calls() {
		if c.Name == "make_dataset" && strings.Contains(c.Stdout, "dataset_lm") {
			lmData = c
		}
	}
	if !strings.HasSuffix(lmData.Stdout, "train_nodev_aps_vocaball_char.tsv") {
		t.Errorf("lm manifest: %+v", lmData)
	}
	if !f.exists(".done_stage_3_allaps_char") {
		t.Error("stage 3 marker missing")
	}
}

func TestCollaboratorFailure_NoMarker(t *testing.T) {
	f := newFixture(t, "unit=char")
	f.rec.On("compute_cmvn_stats", func(_ context.Context, inv collab.Invocation) error {
		return &collab.ExitError{Name: inv.Name, Code: 1}
	})
	_, err := f.run(0, -1)
	var ee *collab.ExitError
	if !errors.As(err, &ee) || ee.Code != 1 {
		t.Fatalf("want ExitError code 1, got %v", err)
	}
	if !f.exists(".done_stage_0_all") {
		t.Error("stage 0 marker should exist")
	}
	if f.exists(".done_stage_1_all") {
		t.Error("failed stage must not write its marker")
	}
	if _, err := os.Stat(filepath.Join(f.data, "train_nodev_all.tmp")); !os.IsNotExist(err) {
		t.Error("scratch directory left behind after failure")
	}
}

func TestDevSplit_TooFewUtterances(t *testing.T) {
	f := newFixture(t, "unit=char", "dev_n_utts=6")
	_, err := f.run(0, 1)
	if err == nil || !strings.Contains(err.Error(), "need more than dev_n_utts=6") {
		t.Fatalf("got %v", err)
	}
}

func TestDownload(t *testing.T) {
	f := newFixture(t, "unit=char", "download_url=http://127.0.0.1:1/csj.tar.gz")
	_, err := f.run(0, 0)
	if err == nil {
		t.Fatal("expected download error")
	}
	if len(f.rec.Calls()) != 0 {
		t.Errorf("collaborators ran after failed download: %v", f.rec.Names())
	}
}

func TestDryRun_TouchesNothing(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "data")
	b, err := config.Resolve([]config.Override{
		{Name: "data", Value: data},
		{Name: "model", Value: filepath.Join(root, "results")},
		{Name: "csj_datatop", Value: filepath.Join(root, "corpus")},
		{Name: "gpu", Value: "0"},
		{Name: "download_url", Value: "http://127.0.0.1:1/csj.tar.gz"},
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := collab.NewRecorder()
	rec.CreateStdout = false
	r := &Recipe{
		Bundle:  b,
		Runner:  rec,
		Markers: marker.NewMemoryStore(),
		DryRun:  true,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	p, err := r.Pipeline()
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Ran(), []int{0, 1, 2, 3, 4}) {
		t.Errorf("ran %v", res.Ran())
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("dry run wrote %v", entries)
	}
	last := rec.Calls()[len(rec.Calls())-1]
	if last.Name != "asr_train" {
		t.Errorf("last invocation: %s", last.Name)
	}
}

func TestPipeline_UnregisteredCollaborators(t *testing.T) {
	f := newFixture(t, "unit=wp", "wp_type=bpe", "vocab_size=100")
	reg := config.NewRegistry()
	for _, name := range config.DefaultRegistry("").Names() {
		if name != "spm_train" && name != "lm_train" {
			reg.Register(name, name)
		}
	}
	r := &Recipe{Bundle: f.bundle, Registry: reg, Runner: f.rec, Markers: f.markers}
	_, err := r.Pipeline()
	var ce *config.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !strings.Contains(ce.Message, "lm_train, spm_train") {
		t.Errorf("message: %q", ce.Message)
	}
	if len(f.rec.Calls()) != 0 {
		t.Errorf("collaborators ran: %v", f.rec.Names())
	}
}

func TestArchiveName(t *testing.T) {
	tests := map[string]string{
		"https://example.com/corpora/csj.tar.gz?sig=x": "csj.tar.gz",
		"https://example.com/":                         "corpus.tar",
		"":                                             "corpus.tar",
	}
	for in, want := range tests {
		if got := archiveName(in); got != want {
			t.Errorf("archiveName(%q) = %q, want %q", in, got, want)
		}
	}
}

func hasPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
