package config

import (
	"fmt"

	"github.com/Ceslavas/image-processing-tools/imagefile"
)

// MinStep is the smallest accepted band width.
const MinStep = 1

// Params are the validated processing parameters.
type Params struct {
	ImagePath string
	Step      int
}

// DimensionProbe returns an image's width and height without keeping it open.
type DimensionProbe func(path string) (width, height int, err error)

// Validator checks a File against the image it references.
type Validator struct {
	Probe DimensionProbe
}

// NewValidator returns a Validator that reads image headers from disk.
func NewValidator() Validator {
	return Validator{Probe: imagefile.Dimensions}
}

// Validate ensures image_path and step are present, step is an integer,
// and 1 <= step <= MaxStep(image size).
func Validate(cfg File) (Params, error) {
	return NewValidator().Validate(cfg)
}

// MaxStep is 2% of the larger image side, rounded down.
func MaxStep(width, height int) int {
	return max(width, height) / 50
}

func (v Validator) Validate(cfg File) (Params, error) {
	nb := cfg.NumpyBasics
	if nb == nil || nb.ImagePath == nil || nb.Step == nil {
		return Params{}, fmt.Errorf("%w: 'numpy_basics.image_path' or 'numpy_basics.step' is missing", ErrInvalidConfig)
	}

	step, err := nb.Step.Int()
	if err != nil {
		return Params{}, fmt.Errorf("%w: the provided step value is not a valid integer: %q", ErrInvalidConfig, nb.Step.Raw())
	}

	probe := v.Probe
	if probe == nil {
		probe = imagefile.Dimensions
	}
	width, height, err := probe(*nb.ImagePath)
	if err != nil {
		return Params{}, err
	}

	maxStep := MaxStep(width, height)
	if step < MinStep || step > maxStep {
		return Params{}, &StepOutOfRangeError{Step: step, Min: MinStep, Max: maxStep}
	}
	return Params{ImagePath: *nb.ImagePath, Step: step}, nil
}

// LoadAndValidate is Load followed by Validate.
func LoadAndValidate(path string) (Params, error) {
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		return Params{}, err
	}
	return Validate(cfg)
}
