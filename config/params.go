package config

import (
	"strconv"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Group partitions the parameter table.
type Group string

const (
	// GroupRecipe holds paths, corpus selection, vocabulary and device
	// settings. The recipe turns them into explicit collaborator arguments.
	GroupRecipe Group = "recipe"

	GroupASRTopology     Group = "asr_topology"
	GroupASROptimization Group = "asr_optimization"
	GroupASRMultiTask    Group = "asr_multitask"
	GroupLM              Group = "lm"
)

// ASRGroups are the groups flattened into the ASR trainer's arguments.
var ASRGroups = []Group{GroupASRTopology, GroupASROptimization, GroupASRMultiTask}

// ParamSpec describes one parameter and its compiled-in default.
type ParamSpec struct {
	Name    string
	Default string
	Group   Group
	Usage   string

	// Flag is the trainer's option name when it differs from Name.
	Flag string
}

// TrainerFlag returns the option name passed to the trainer.
func (s ParamSpec) TrainerFlag() string {
	if s.Flag != "" {
		return s.Flag
	}
	return s.Name
}

// Linguistic units.
const (
	UnitChar      = "char"
	UnitWord      = "word"
	UnitWordPiece = "wp"
	UnitWordChar  = "word_char"
)

func defaultJobs() int {
	n := cpuid.CPU.PhysicalCores
	if n < 1 {
		n = cpuid.CPU.LogicalCores
	}
	if n < 1 {
		n = 1
	}
	return n
}

func recipe(name, def, usage string) ParamSpec {
	return ParamSpec{Name: name, Default: def, Group: GroupRecipe, Usage: usage}
}

func topo(name, def string) ParamSpec {
	return ParamSpec{Name: name, Default: def, Group: GroupASRTopology}
}

func optim(name, def string) ParamSpec {
	return ParamSpec{Name: name, Default: def, Group: GroupASROptimization}
}

func mtl(name, def string) ParamSpec {
	return ParamSpec{Name: name, Default: def, Group: GroupASRMultiTask}
}

// lm declares an RNNLM parameter. The trainer receives it without the lm_
// prefix, except lm_type which keeps its name.
func lm(name, def string) ParamSpec {
	flag := strings.TrimPrefix(name, "lm_")
	if name == "lm_type" {
		flag = name
	}
	return ParamSpec{Name: name, Default: def, Group: GroupLM, Flag: flag}
}

var specs = []ParamSpec{
	// recipe
	recipe("corpus", "csj", "corpus name passed to the trainers"),
	recipe("data", "data", "working data directory (markers, features, dictionaries, manifests)"),
	recipe("model", "results", "directory for trained models"),
	recipe("csj_datatop", "corpus/CSJ", "CSJ database top directory"),
	recipe("csj_ver", "dvd", "CSJ distribution format (dvd or usb)"),
	recipe("neuralsp_root", "neural_sp", "neural_sp checkout holding the trainer entry points"),
	recipe("download_url", "", "optional corpus archive to fetch before data preparation"),
	recipe("download_sha256", "", "expected SHA-256 of the downloaded archive"),
	recipe("data_size", "all", "ASR training data size (aps_other, aps, sps, all_except_dialog, all)"),
	recipe("lm_data_size", "", "LM training data size (default: same as data_size)"),
	recipe("unit", UnitWordPiece, "linguistic unit (char, word, wp, word_char)"),
	recipe("vocab_size", "10000", "vocabulary size (ignored for char)"),
	recipe("wp_type", "bpe", "word-piece model type (bpe or unigram; wp only)"),
	recipe("gpu", "", "comma-separated GPU ids (required)"),
	recipe("nj", strconv.Itoa(defaultJobs()), "parallel jobs for feature extraction"),
	recipe("train_cmd", "run.pl", "Kaldi job dispatcher for feature extraction"),
	recipe("dev_n_utts", "4000", "utterances split off the head of the training data as dev set"),
	recipe("max_dup_utts", "300", "maximum duplicated utterances kept in the training set"),
	recipe("resume", "", "ASR model checkpoint to resume from"),
	recipe("lm_resume", "", "LM checkpoint to resume from"),

	// ASR topology
	topo("n_splices", "1"),
	topo("n_stacks", "1"),
	topo("n_skips", "1"),
	topo("max_n_frames", "2000"),
	topo("sequence_summary_network", "false"),
	topo("conv_in_channel", "1"),
	topo("conv_channels", ""),
	topo("conv_kernel_sizes", ""),
	topo("conv_strides", ""),
	topo("conv_poolings", ""),
	topo("conv_batch_norm", "false"),
	topo("conv_bottleneck_dim", "0"),
	topo("subsample", "1_2_2_2_1"),
	topo("enc_type", "blstm"),
	topo("enc_n_units", "512"),
	topo("enc_n_projs", "0"),
	topo("enc_n_layers", "5"),
	topo("enc_residual", "false"),
	topo("enc_nin", "false"),
	topo("subsample_type", "drop"),
	topo("lc_chunk_size_left", "0"),
	topo("lc_chunk_size_right", "0"),
	topo("attn_type", "location"),
	topo("attn_dim", "512"),
	topo("attn_n_heads", "1"),
	topo("attn_sigmoid", "false"),
	topo("mocha_chunk_size", "1"),
	topo("dec_type", "lstm"),
	topo("dec_n_units", "1024"),
	topo("dec_n_projs", "0"),
	topo("dec_n_layers", "1"),
	topo("dec_loop_type", "normal"),
	topo("dec_residual", "false"),
	topo("input_feeding", "false"),
	topo("dec_bottleneck_dim", "1024"),
	topo("emb_dim", "512"),
	topo("tie_embedding", "false"),
	topo("ctc_fc_list", "512"),

	// ASR optimization, initialization and regularization
	optim("batch_size", "30"),
	optim("optimizer", "adam"),
	optim("learning_rate", "1e-3"),
	optim("n_epochs", "25"),
	optim("convert_to_sgd_epoch", "100"),
	optim("print_step", "200"),
	optim("decay_start_epoch", "10"),
	optim("decay_rate", "0.85"),
	optim("decay_patient_n_epochs", "0"),
	optim("decay_type", "epoch"),
	optim("not_improved_patient_n_epochs", "5"),
	optim("eval_start_epoch", "1"),
	optim("warmup_start_learning_rate", "1e-4"),
	optim("warmup_n_steps", "0"),
	optim("param_init", "0.1"),
	optim("pretrained_model", ""),
	optim("clip_grad_norm", "5.0"),
	optim("dropout_in", "0.0"),
	optim("dropout_enc", "0.4"),
	optim("dropout_dec", "0.4"),
	optim("dropout_emb", "0.4"),
	optim("dropout_att", "0.0"),
	optim("weight_decay", "1e-6"),
	optim("ss_prob", "0.2"),
	optim("ss_type", "constant"),
	optim("lsm_prob", "0.1"),
	optim("focal_loss", "0.0"),
	optim("adaptive_softmax", "false"),

	// ASR multi-task learning and LM integration
	mtl("ctc_weight", "0.0"),
	mtl("bwd_weight", "0.0"),
	mtl("mtl_per_batch", "true"),
	mtl("task_specific_layer", "false"),
	mtl("lm_fusion_type", "cold"),
	mtl("lm_fusion", ""),
	mtl("lm_init", ""),
	mtl("lmobj_weight", "0.0"),
	mtl("share_lm_softmax", "false"),

	// RNNLM
	lm("lm_type", "lstm"),
	lm("lm_n_units", "1024"),
	lm("lm_n_projs", "0"),
	lm("lm_n_layers", "2"),
	lm("lm_emb_dim", "1024"),
	lm("lm_tie_embedding", "true"),
	lm("lm_residual", "true"),
	lm("lm_use_glu", "true"),
	lm("lm_batch_size", "128"),
	lm("lm_bptt", "200"),
	lm("lm_optimizer", "adam"),
	lm("lm_learning_rate", "1e-3"),
	lm("lm_n_epochs", "40"),
	lm("lm_convert_to_sgd_epoch", "100"),
	lm("lm_print_step", "500"),
	lm("lm_decay_start_epoch", "10"),
	lm("lm_decay_rate", "0.9"),
	lm("lm_decay_patient_n_epochs", "0"),
	lm("lm_decay_type", "epoch"),
	lm("lm_not_improved_patient_n_epochs", "10"),
	lm("lm_eval_start_epoch", "1"),
	lm("lm_param_init", "0.05"),
	lm("lm_pretrained_model", ""),
	lm("lm_clip_grad_norm", "1.0"),
	lm("lm_dropout_hidden", "0.2"),
	lm("lm_dropout_out", "0.0"),
	lm("lm_dropout_emb", "0.2"),
	lm("lm_weight_decay", "1e-6"),
	lm("lm_lsm_prob", "0.0"),
	lm("lm_adaptive_softmax", "false"),
	lm("lm_serialize", "true"),
}

// Defaults returns the parameter table in declaration order.
func Defaults() []ParamSpec {
	out := make([]ParamSpec, len(specs))
	copy(out, specs)
	return out
}
