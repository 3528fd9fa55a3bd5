package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ceslavas/image-processing-tools/infrastructure/logger"
)

// File is the YAML document read from disk.
type File struct {
	NumpyBasics *NumpyBasics  `yaml:"numpy_basics"`
	Logging     logger.Config `yaml:"logging"`
	Output      OutputConfig  `yaml:"output"`
}

// NumpyBasics holds the processing parameters. Pointer fields stay nil
// when the key is absent.
type NumpyBasics struct {
	ImagePath *string    `yaml:"image_path"`
	Step      *StepValue `yaml:"step"`
}

// OutputConfig 控制合成图写到哪里；核心流程本身不写文件。
type OutputConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // png, jpeg, gif, bmp, tiff；为空时按扩展名推断
}

// StepValue keeps the raw scalar so that `step: 3` and `step: "3"` both
// parse, and a non-numeric value is reported by Validate. An unquoted float
// with an integral value (`step: 3.0`) is accepted too; a quoted "3.0" is not.
type StepValue struct {
	raw string
	tag string
}

// NewStepValue wraps a raw scalar, as if read from YAML.
func NewStepValue(raw string) *StepValue {
	return &StepValue{raw: raw}
}

func (s *StepValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: step must be a scalar", node.Line)
	}
	s.raw = node.Value
	s.tag = node.ShortTag()
	return nil
}

// Raw returns the value as written in the file.
func (s StepValue) Raw() string { return s.raw }

// Int coerces the value to an integer.
func (s StepValue) Int() (int, error) {
	v := strings.TrimSpace(s.raw)
	n, err := strconv.Atoi(v)
	if err == nil || s.tag != "!!float" {
		return n, err
	}
	f, ferr := strconv.ParseFloat(v, 64)
	if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, err
	}
	return int(f), nil
}

// Load reads YAML config from path. It only parses; see Validate.
func Load(path string) (File, error) {
	var cfg File
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w at path: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse yaml: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides the processing parameters
// from env vars if present.
func LoadWithEnvOverrides(path string) (File, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	imagePath, okPath := os.LookupEnv("STRIPES_IMAGE_PATH")
	step, okStep := os.LookupEnv("STRIPES_STEP")
	if !okPath && !okStep {
		return cfg, nil
	}
	if cfg.NumpyBasics == nil {
		cfg.NumpyBasics = &NumpyBasics{}
	}
	if okPath {
		cfg.NumpyBasics.ImagePath = &imagePath
	}
	if okStep {
		cfg.NumpyBasics.Step = NewStepValue(step)
	}
	return cfg, nil
}
