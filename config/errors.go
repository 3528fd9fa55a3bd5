package config

import (
	"errors"
	"fmt"

	"github.com/Ceslavas/image-processing-tools/imagefile"
)

var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrInvalidConfig  = errors.New("invalid configuration data")
	ErrStepOutOfRange = errors.New("step value out of range")

	// ErrImageNotFound is shared with the image loader so both the bound
	// check and the processing run report the same failure.
	ErrImageNotFound = imagefile.ErrImageNotFound
)

// StepOutOfRangeError carries the allowed bounds and the offending step.
type StepOutOfRangeError struct {
	Step int
	Min  int
	Max  int
}

func (e *StepOutOfRangeError) Error() string {
	return fmt.Sprintf("the step value is not within the allowed range: %d <= step <= %d, provided step: %d",
		e.Min, e.Max, e.Step)
}

func (e *StepOutOfRangeError) Is(target error) bool {
	return target == ErrStepOutOfRange
}
