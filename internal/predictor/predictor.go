// Package predictor evaluates a pre-trained linear regression artifact. The
// artifact is loaded once at startup and treated as immutable: prediction is
// a pure dot product over a fixed feature schema plus an intercept.
//
// Categorical covariates are encoded through the artifact's level tables, so
// the model file fully determines which strings are legal for a categorical
// feature and what numeric value each one carries.
package predictor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/storeline/siteval-cli/internal/faults"
)

// Model is a versioned linear regression artifact.
type Model struct {
	Name         string                        `json:"name" yaml:"name"`
	Version      string                        `json:"version" yaml:"version"`
	Features     []string                      `json:"features" yaml:"features"`
	Coefficients []float64                     `json:"coefficients" yaml:"coefficients"`
	Intercept    float64                       `json:"intercept" yaml:"intercept"`
	Levels       map[string]map[string]float64 `json:"levels" yaml:"levels"`
}

// Load reads a model artifact from a .json, .yaml, or .yml file. Any read,
// parse, or consistency failure is a faults.LoadError: the artifact is
// unusable and startup must abort.
func Load(path string) (*Model, error) {
	m, err := load(path)
	if err != nil {
		return nil, faults.NewLoadError(path, err)
	}

	zap.L().Info("predictor: model loaded",
		zap.String("path", path),
		zap.String("name", m.Name),
		zap.String("version", m.Version),
		zap.Int("features", len(m.Features)),
	)
	return m, nil
}

func load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "predictor: read model %s", path)
	}

	m := &Model{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, m); err != nil {
			return nil, eris.Wrap(err, "predictor: parse model")
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, m); err != nil {
			return nil, eris.Wrap(err, "predictor: parse model")
		}
	default:
		return nil, eris.Errorf("predictor: unsupported model extension %q", filepath.Ext(path))
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) validate() error {
	if len(m.Features) == 0 {
		return eris.New("predictor: model has no features")
	}
	if len(m.Coefficients) != len(m.Features) {
		return eris.Errorf("predictor: %d coefficients for %d features",
			len(m.Coefficients), len(m.Features))
	}

	seen := make(map[string]struct{}, len(m.Features))
	for _, name := range m.Features {
		if _, dup := seen[name]; dup {
			return eris.Errorf("predictor: duplicate feature %q", name)
		}
		seen[name] = struct{}{}
	}

	for name, levels := range m.Levels {
		if _, ok := seen[name]; !ok {
			return eris.Errorf("predictor: levels declared for unknown feature %q", name)
		}
		if len(levels) == 0 {
			return eris.Errorf("predictor: feature %q has an empty level table", name)
		}
	}
	return nil
}

// Categorical reports whether the feature is encoded through a level table.
func (m *Model) Categorical(feature string) bool {
	_, ok := m.Levels[feature]
	return ok
}

// Level translates a categorical value into its numeric encoding. An unknown
// value is a faults.ValidationError naming the feature, since it means the
// caller sent a category the model was never trained on.
func (m *Model) Level(feature, value string) (float64, error) {
	levels, ok := m.Levels[feature]
	if !ok {
		return 0, eris.Errorf("predictor: feature %q has no level table", feature)
	}
	v, ok := levels[value]
	if !ok {
		return 0, faults.NewValidationError(feature, "unknown level "+strconv.Quote(value))
	}
	return v, nil
}

// Predict evaluates the regression on a feature vector. The vector's key set
// must equal the model's feature schema exactly; any difference is a
// faults.SchemaMismatchError rather than a silent zero-fill.
func (m *Model) Predict(features map[string]float64) (float64, error) {
	var missing, extra []string
	for _, name := range m.Features {
		if _, ok := features[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(features) != len(m.Features) || len(missing) > 0 {
		want := make(map[string]struct{}, len(m.Features))
		for _, name := range m.Features {
			want[name] = struct{}{}
		}
		for name := range features {
			if _, ok := want[name]; !ok {
				extra = append(extra, name)
			}
		}
		sort.Strings(missing)
		sort.Strings(extra)
		return 0, faults.NewSchemaMismatchError(missing, extra)
	}

	x := make([]float64, len(m.Features))
	for i, name := range m.Features {
		x[i] = features[name]
	}

	w := mat.NewVecDense(len(m.Coefficients), m.Coefficients)
	v := mat.NewVecDense(len(x), x)
	return mat.Dot(w, v) + m.Intercept, nil
}
