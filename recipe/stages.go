package recipe

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dcshock/speechpipe/collab"
	"github.com/dcshock/speechpipe/config"
	"github.com/dcshock/speechpipe/httpstages"
	"github.com/dcshock/speechpipe/pipeline"
)

func (bl *builder) hint(stage int, size string) string {
	return fmt.Sprintf("run speechpipe run --stage %d --data_size %s first", stage, size)
}

func (bl *builder) dataPrep() pipeline.Stage {
	size := bl.b.Get("data_size")
	datatop := bl.b.Get("csj_datatop")

	var steps []pipeline.Step
	if u := bl.b.Get("download_url"); u != "" {
		archive := filepath.Join(datatop, archiveName(u))
		steps = append(steps,
			bl.local("download "+u, httpstages.Download(bl.HTTPClient, u, archive)),
			bl.local("verify "+archive, httpstages.ExpectSHA256(archive, bl.b.Get("download_sha256"))),
			bl.exec("extract_corpus", "-xf", archive, "-C", datatop),
		)
	}
	steps = append(steps,
		bl.mkdir(bl.p.Data),
		bl.exec("csj_autorun", datatop, bl.p.CorpusDir, bl.b.Get("csj_ver")),
		bl.exec("csj_data_prep", bl.p.CorpusDir, size),
	)
	for _, x := range bl.d.EvalSets {
		steps = append(steps, bl.exec("csj_eval_data_prep", filepath.Join(bl.p.CorpusDir, "eval"), x))
	}

	// Drop <sp> and POS tags, then normalize character width.
	for _, x := range append([]string{"train_" + size}, bl.d.EvalSets...) {
		text := filepath.Join(bl.p.SetDir(x), "text")
		tmp := filepath.Join(bl.p.SetDir(x), ".text.tmp")
		nopos := filepath.Join(tmp, "text.nopos")
		normalized := filepath.Join(tmp, "text")
		steps = append(steps, bl.scratch(tmp,
			bl.execIO("remove_pos", "", nopos, text),
			bl.execIO("nkf", nopos, normalized, "-Z"),
			bl.local("replace "+text, pipeline.Rename(normalized, text)),
		))
	}

	return pipeline.Stage{
		Index:  StageDataPrep,
		Name:   "data preparation",
		Marker: dataPrepKey(size),
		Steps:  steps,
	}
}

func (bl *builder) features() pipeline.Stage {
	size := bl.b.Get("data_size")
	nj := bl.b.Get("nj")
	cmd := bl.b.Get("train_cmd")
	train := "train_" + size
	trainSet, devSet := bl.d.TrainSet, bl.d.DevSet

	var steps []pipeline.Step
	for _, x := range append([]string{train}, bl.d.EvalSets...) {
		steps = append(steps, bl.exec("make_fbank",
			"--nj", nj, "--cmd", cmd, "--write_utt2num_frames", "true",
			bl.p.SetDir(x), bl.p.LogDir("make_fbank", x), filepath.Join(bl.p.Data, "fbank")))
	}

	// The head of the training data becomes the dev set; the rest goes
	// through duplicate removal into the final training set.
	devN := bl.b.Get("dev_n_utts")
	steps = append(steps, bl.exec("subset_data_dir", "--first", bl.p.SetDir(train), devN, bl.p.SetDir(devSet)))
	tmp := bl.p.SetDir(trainSet) + ".tmp"
	steps = append(steps, bl.scratch(tmp,
		bl.deferred(func(dry bool) (collab.Invocation, error) {
			rest, err := bl.remaining(filepath.Join(bl.p.SetDir(train), "segments"), dry)
			if err != nil {
				return collab.Invocation{}, err
			}
			return bl.inv("subset_data_dir", "--last", bl.p.SetDir(train), rest, tmp), nil
		}),
		bl.exec("remove_dup_utts", bl.b.Get("max_dup_utts"), tmp, bl.p.SetDir(trainSet)),
	))

	cmvn := filepath.Join(bl.p.SetDir(trainSet), "cmvn.ark")
	steps = append(steps, bl.exec("compute_cmvn_stats", "scp:"+filepath.Join(bl.p.SetDir(trainSet), "feats.scp"), cmvn))

	dump := func(src, dst string) pipeline.Step {
		return bl.exec("dump_feat", "--cmd", cmd, "--nj", nj,
			filepath.Join(bl.p.SetDir(src), "feats.scp"), cmvn, bl.p.LogDir("dump_feat", dst), bl.p.DumpDir(dst))
	}
	steps = append(steps, dump(trainSet, trainSet), dump(devSet, devSet))
	for _, x := range bl.d.EvalSets {
		steps = append(steps, dump(x, x+"_"+size))
	}

	return pipeline.Stage{
		Index:    StageFeatures,
		Name:     "feature extraction",
		Marker:   featuresKey(size),
		Requires: []pipeline.Prerequisite{{Key: dataPrepKey(size), Hint: bl.hint(StageDataPrep, size)}},
		Steps:    steps,
	}
}

// remaining returns the number of training utterances left after the dev
// split, as a collaborator argument.
func (bl *builder) remaining(segments string, dry bool) (string, error) {
	devN, err := bl.b.Int("dev_n_utts")
	if err != nil {
		return "", err
	}
	if dry {
		return fmt.Sprintf("$(($(wc -l < %s) - %d))", segments, devN), nil
	}
	n, err := countLines(segments)
	if err != nil {
		return "", err
	}
	if n <= devN {
		return "", fmt.Errorf("%s has %d utterances, need more than dev_n_utts=%d", segments, n, devN)
	}
	return strconv.Itoa(n - devN), nil
}

func (bl *builder) dataset() pipeline.Stage {
	size := bl.b.Get("data_size")
	unit := bl.b.Get("unit")
	trainSet, devSet := bl.d.TrainSet, bl.d.DevSet
	text := filepath.Join(bl.p.SetDir(trainSet), "text")
	dictDir := filepath.Dir(bl.p.Dict)

	steps := []pipeline.Step{
		bl.mkdir(dictDir),
		bl.local("nlsyms "+bl.p.NLSyms, func(ctx context.Context) error {
			return writeNLSyms(text, bl.p.NLSyms, bl.logger())
		}),
	}
	if unit == config.UnitWordPiece {
		tmp := filepath.Join(dictDir, ".spm.tmp")
		input := filepath.Join(tmp, "input.txt")
		pieces := filepath.Join(tmp, "pieces.txt")
		bl.require("spm_train")
		steps = append(steps, bl.scratch(tmp,
			bl.local("sentences "+input, func(ctx context.Context) error {
				return writeSentences(text, input)
			}),
			bl.deferred(func(dry bool) (collab.Invocation, error) {
				var syms []string
				if !dry {
					var err error
					if syms, err = readLines(bl.p.NLSyms); err != nil {
						return collab.Invocation{}, err
					}
				}
				return bl.inv("spm_train",
					"--user_defined_symbols="+strings.Join(syms, ","),
					"--input="+input,
					"--vocab_size="+bl.b.Get("vocab_size"),
					"--model_type="+bl.b.Get("wp_type"),
					"--model_prefix="+bl.p.WPModel,
					"--input_sentence_size=100000000",
					"--character_coverage=1.0"), nil
			}),
			bl.execIO("spm_encode", input, pieces, "--model="+bl.p.WPModel+".model", "--output_format=piece"),
			bl.local("dictionary "+bl.p.Dict, func(ctx context.Context) error {
				return writePieceDict(pieces, bl.p.Dict, bl.logger())
			}),
		))
	} else {
		vocab, _ := strconv.Atoi(bl.b.Get("vocab_size"))
		steps = append(steps, bl.local("dictionary "+bl.p.Dict, func(ctx context.Context) error {
			return writeTokenDict(text, unit, vocab, bl.p.NLSyms, bl.p.Dict, bl.logger())
		}))
	}
	if unit == config.UnitWord {
		report := filepath.Join(dictDir, "oov_rate", "word"+bl.b.Get("vocab_size")+"_"+size+".txt")
		sets := append([]string{trainSet, devSet}, bl.d.EvalSets...)
		steps = append(steps, bl.local("oov report "+report, func(ctx context.Context) error {
			return writeOOVReport(bl.p, sets, bl.p.Dict, report, bl.logger())
		}))
	}

	steps = append(steps, bl.mkdir(filepath.Join(bl.p.Data, "dataset")))
	manifest := func(set, dump, out string) pipeline.Step {
		return bl.execIO("make_dataset", "", bl.p.Manifest(out, bl.tag),
			"--feat", filepath.Join(bl.p.DumpDir(dump), "feats.scp"),
			"--unit", unit, "--wp_model", bl.p.WPModel,
			bl.p.SetDir(set), bl.p.Dict)
	}
	steps = append(steps, manifest(trainSet, trainSet, trainSet), manifest(devSet, devSet, devSet))
	for _, x := range bl.d.EvalSets {
		steps = append(steps, manifest(x, x+"_"+size, x+"_"+size))
	}

	return pipeline.Stage{
		Index:    StageDataset,
		Name:     "creating dataset for ASR",
		Marker:   datasetKey(bl.b),
		Requires: []pipeline.Prerequisite{{Key: featuresKey(size), Hint: bl.hint(StageFeatures, size)}},
		Steps:    steps,
	}
}

func (bl *builder) lm() pipeline.Stage {
	size := bl.b.Get("data_size")
	lmSize := bl.b.Get("lm_data_size")
	trainSet, devSet := bl.d.TrainSet, bl.d.DevSet
	trainLM := bl.p.LMManifest("train_nodev_"+lmSize+"_vocab"+size, bl.tag)
	devLM := bl.p.LMManifest(devSet, bl.tag)

	steps := []pipeline.Step{bl.mkdir(filepath.Dir(trainLM), bl.p.Model)}
	if lmSize == size {
		steps = append(steps, bl.local("copy "+trainLM, pipeline.CopyFile(bl.p.Manifest(trainSet, bl.tag), trainLM)))
	} else {
		steps = append(steps, bl.execIO("make_dataset", "", trainLM,
			"--unit", bl.b.Get("unit"), "--wp_model", bl.p.WPModel,
			bl.p.SetDir("train_nodev_"+lmSize), bl.p.Dict))
	}
	steps = append(steps, bl.local("copy "+devLM, pipeline.CopyFile(bl.p.Manifest(devSet, bl.tag), devLM)))

	args := []string{
		"--corpus", bl.b.Get("corpus"),
		"--n_gpus", "1",
		"--train_set", trainLM,
		"--dev_set", devLM,
	}
	args = append(args, bl.evalArgs()...)
	args = append(args, bl.unitArgs()...)
	args = append(args, "--model_save_dir", filepath.Join(bl.p.Model, "lm"))
	if r := bl.b.Get("lm_resume"); r != "" {
		args = append(args, "--resume", r)
	}
	args = append(args, bl.b.TrainerArgs(config.GroupLM)...)

	// RNNLM training is pinned to the first listed device.
	train := bl.inv("lm_train", args...)
	train.Env = []string{"CUDA_VISIBLE_DEVICES=" + bl.d.RNNLMGPU}
	steps = append(steps, pipeline.Exec(bl.Runner, train))

	return pipeline.Stage{
		Index:  StageLM,
		Name:   "RNNLM training",
		Marker: lmKey(bl.b),
		Requires: []pipeline.Prerequisite{
			{Key: featuresKey(lmSize), Hint: fmt.Sprintf("run speechpipe run --data_size %s first", lmSize)},
			{Key: datasetKey(bl.b), Hint: bl.hint(StageDataset, size)},
		},
		Steps: steps,
	}
}

func (bl *builder) asr() pipeline.Stage {
	size := bl.b.Get("data_size")
	args := []string{
		"--corpus", bl.b.Get("corpus"),
		"--n_gpus", strconv.Itoa(bl.d.NGPUs()),
		"--train_set", bl.p.Manifest(bl.d.TrainSet, bl.tag),
		"--dev_set", bl.p.Manifest(bl.d.DevSet, bl.tag),
	}
	args = append(args, bl.evalArgs()...)
	args = append(args, bl.unitArgs()...)
	args = append(args, "--nlsyms", bl.p.NLSyms, "--model_save_dir", filepath.Join(bl.p.Model, "asr"))
	if r := bl.b.Get("resume"); r != "" {
		args = append(args, "--resume", r)
	}
	args = append(args, bl.b.TrainerArgs(config.ASRGroups...)...)

	train := bl.inv("asr_train", args...)
	train.Env = []string{"CUDA_VISIBLE_DEVICES=" + strings.Join(bl.d.GPUs, ",")}

	return pipeline.Stage{
		Index:    StageASR,
		Name:     "model training",
		Marker:   asrKey(bl.b),
		Requires: []pipeline.Prerequisite{{Key: datasetKey(bl.b), Hint: bl.hint(StageDataset, size)}},
		Steps: []pipeline.Step{
			bl.mkdir(bl.p.Model),
			pipeline.Exec(bl.Runner, train),
		},
	}
}

func (bl *builder) evalArgs() []string {
	size := bl.b.Get("data_size")
	args := []string{"--eval_sets"}
	for _, x := range bl.d.EvalSets {
		args = append(args, bl.p.Manifest(x+"_"+size, bl.tag))
	}
	return args
}

func (bl *builder) unitArgs() []string {
	args := []string{"--unit", bl.b.Get("unit"), "--dict", bl.p.Dict}
	if bl.b.Get("unit") == config.UnitWordPiece {
		args = append(args, "--wp_model", bl.p.WPModel+".model")
	}
	return args
}

func (bl *builder) execIO(name, stdin, stdout string, args ...string) pipeline.Step {
	inv := bl.inv(name, args...)
	inv.Stdin = stdin
	inv.Stdout = stdout
	return pipeline.Exec(bl.Runner, inv)
}

// archiveName is the file name of the archive at raw.
func archiveName(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return "corpus.tar"
}
