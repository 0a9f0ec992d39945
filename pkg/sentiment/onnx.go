package sentiment

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// DefaultONNXLabels is the class order of the five-star multilingual
// sentiment models: index 0 is "1 star".
var DefaultONNXLabels = []string{"1 star", "2 stars", "3 stars", "4 stars", "5 stars"}

// ONNXConfig locates a BERT-style sequence classification model.
type ONNXConfig struct {
	// ModelPath is the .onnx model file.
	ModelPath string

	// VocabPath is the WordPiece vocab.txt. Defaults to vocab.txt next to
	// the model.
	VocabPath string

	// LibraryPath is the ONNX Runtime shared library. Defaults to
	// libonnxruntime.so next to the model.
	LibraryPath string

	// MaxSeqLen caps the token sequence length.
	MaxSeqLen int

	// Labels names the output classes by index; each name is read with
	// ParseLabel.
	Labels []string

	// Threads sets intra-op parallelism.
	Threads int
}

// ortEnv initializes the process-wide ONNX Runtime environment once.
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNX classifies text with a local sequence classification model.
type ONNX struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	numLabels  int64
	labels     []Label
	tokenizer  *wordPiece

	// mu serializes inference; one run already uses Threads cores.
	mu sync.Mutex
}

// NewONNX loads the model and vocabulary described by cfg.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx: model path not set: %w", ErrUnavailable)
	}
	modelDir := filepath.Dir(cfg.ModelPath)
	if cfg.VocabPath == "" {
		cfg.VocabPath = filepath.Join(modelDir, "vocab.txt")
	}
	if cfg.LibraryPath == "" {
		cfg.LibraryPath = filepath.Join(modelDir, "libonnxruntime.so")
	}
	if len(cfg.Labels) == 0 {
		cfg.Labels = DefaultONNXLabels
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 4
	}

	v, err := loadVocab(cfg.VocabPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}

	if err := initORT(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("onnx: initializing runtime: %v: %w", err, ErrUnavailable)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: reading model info: %w", err)
	}
	inputNames, err := modelInputs(inputs)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	dims := outputs[0].Dimensions
	if len(dims) != 2 {
		return nil, fmt.Errorf("onnx: expected [batch, classes] logits, got %v", dims)
	}
	numLabels := dims[1]
	if numLabels != int64(len(cfg.Labels)) {
		return nil, fmt.Errorf("onnx: model has %d classes but %d labels are configured", numLabels, len(cfg.Labels))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: creating session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(cfg.Threads); err != nil {
		return nil, fmt.Errorf("onnx: setting threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("onnx: setting threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: creating session: %w", err)
	}

	labels := make([]Label, len(cfg.Labels))
	for i, name := range cfg.Labels {
		labels[i] = ParseLabel(name)
	}

	return &ONNX{
		session:    session,
		inputNames: inputNames,
		numLabels:  numLabels,
		labels:     labels,
		tokenizer:  newWordPiece(v, cfg.MaxSeqLen),
	}, nil
}

// modelInputs returns the BERT inputs the model declares, in feed order.
// token_type_ids is optional; DistilBERT-style models omit it.
func modelInputs(inputs []ort.InputOutputInfo) ([]string, error) {
	declared := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		declared[in.Name] = true
	}
	for _, name := range []string{"input_ids", "attention_mask"} {
		if !declared[name] {
			return nil, fmt.Errorf("onnx: model missing required input %q", name)
		}
	}
	names := []string{"input_ids", "attention_mask"}
	if declared["token_type_ids"] {
		names = append(names, "token_type_ids")
	}
	return names, nil
}

// Name implements Classifier.
func (o *ONNX) Name() string { return "onnx" }

// Classify implements Classifier.
func (o *ONNX) Classify(ctx context.Context, text string) (Result, error) {
	results, err := o.ClassifyBatch(ctx, []string{text})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// ClassifyBatch implements BatchClassifier with a single inference call.
func (o *ONNX) ClassifyBatch(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := o.tokenizer.encodeBatch(texts)
	logits, err := o.infer(batch)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(texts))
	for i := range texts {
		row := logits[int64(i)*o.numLabels : int64(i+1)*o.numLabels]
		results[i] = o.decode(row)
	}
	return results, nil
}

func (o *ONNX) infer(b encodedBatch) ([]float32, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	shape := ort.NewShape(b.batchSize, b.seqLen)
	feeds := map[string][]int64{
		"input_ids":      b.inputIDs,
		"attention_mask": b.attentionMask,
		"token_type_ids": b.tokenTypeIDs,
	}

	inputs := make([]ort.Value, 0, len(o.inputNames))
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for _, name := range o.inputNames {
		t, err := ort.NewTensor(shape, feeds[name])
		if err != nil {
			return nil, fmt.Errorf("onnx: creating %s tensor: %w", name, err)
		}
		inputs = append(inputs, t)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(b.batchSize, o.numLabels))
	if err != nil {
		return nil, fmt.Errorf("onnx: creating output tensor: %w", err)
	}
	defer out.Destroy()

	if err := o.session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	data := out.GetData()
	logits := make([]float32, len(data))
	copy(logits, data)
	return logits, nil
}

func (o *ONNX) decode(logits []float32) Result {
	probs := softmax(logits)
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return Result{Label: o.labels[best], Confidence: probs[best]}
}

// Close releases the inference session.
func (o *ONNX) Close() error {
	if o.session != nil {
		return o.session.Destroy()
	}
	return nil
}

// softmax converts logits to probabilities.
func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	peak := float64(logits[0])
	for _, l := range logits[1:] {
		peak = math.Max(peak, float64(l))
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(float64(l) - peak)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
