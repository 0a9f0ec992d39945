// Package sentiment defines the sentiment classifier boundary used by the
// urgency scorer and its backends: an offline lexicon, a local ONNX model,
// a remote HTTP inference endpoint, a SQLite-backed cache and a failover
// chain.
package sentiment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Label is one of the five ordinal sentiment classes, or Unknown.
type Label int

const (
	// Unknown is any label the classifier returned that is not recognized,
	// or the label of a failed classification.
	Unknown Label = iota
	VeryNegative
	Negative
	Neutral
	Positive
	VeryPositive
)

var labelNames = map[Label]string{
	Unknown:      "Unknown",
	VeryNegative: "Very Negative",
	Negative:     "Negative",
	Neutral:      "Neutral",
	Positive:     "Positive",
	VeryPositive: "Very Positive",
}

// Labels lists the recognized classes from most negative to most positive.
var Labels = []Label{VeryNegative, Negative, Neutral, Positive, VeryPositive}

func (l Label) String() string {
	if name, ok := labelNames[l]; ok {
		return name
	}
	return labelNames[Unknown]
}

// Weight is the urgency contribution of a label: the more negative, the more
// urgent. Unknown contributes nothing.
func (l Label) Weight() int {
	switch l {
	case VeryNegative:
		return 3
	case Negative:
		return 2
	case Neutral, Positive:
		return 1
	default:
		return 0
	}
}

// MarshalText encodes the label as its display name.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes any name ParseLabel understands.
func (l *Label) UnmarshalText(text []byte) error {
	*l = ParseLabel(string(text))
	return nil
}

// labelAliases maps lowercased external label spellings to classes.
// LABEL_n follows the five-class Spanish model ordering where LABEL_0 is the
// most positive class.
var labelAliases = map[string]Label{
	"very negative": VeryNegative,
	"very_negative": VeryNegative,
	"muy negativo":  VeryNegative,
	"1 star":        VeryNegative,
	"label_4":       VeryNegative,

	"negative": Negative,
	"negativo": Negative,
	"neg":      Negative,
	"2 stars":  Negative,
	"label_3":  Negative,

	"neutral": Neutral,
	"neutro":  Neutral,
	"neu":     Neutral,
	"3 stars": Neutral,
	"label_2": Neutral,

	"positive": Positive,
	"positivo": Positive,
	"pos":      Positive,
	"4 stars":  Positive,
	"label_1":  Positive,

	"very positive": VeryPositive,
	"very_positive": VeryPositive,
	"muy positivo":  VeryPositive,
	"5 stars":       VeryPositive,
	"label_0":       VeryPositive,
}

// ParseLabel maps an external classifier label to a Label. Matching is
// case-insensitive; unrecognized labels return Unknown.
func ParseLabel(s string) Label {
	key := strings.ToLower(strings.TrimSpace(s))
	if l, ok := labelAliases[key]; ok {
		return l
	}
	return Unknown
}

// Result is the outcome of one classification.
type Result struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (r Result) String() string {
	return fmt.Sprintf("%s (%.2f)", r.Label, r.Confidence)
}

// resultJSON is the wire and cache form of a Result.
type resultJSON struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func encodeResult(r Result) ([]byte, error) {
	return json.Marshal(resultJSON{Label: r.Label.String(), Score: r.Confidence})
}

func decodeResult(data []byte) (Result, error) {
	var rj resultJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return Result{}, err
	}
	return Result{Label: ParseLabel(rj.Label), Confidence: rj.Score}, nil
}
