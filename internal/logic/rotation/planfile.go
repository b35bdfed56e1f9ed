package rotation

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// PlanFileVersion is written into every plan file.
const PlanFileVersion = "1.0"

// PlanFile is the on-disk form of a plan.
type PlanFile struct {
	Version   string   `yaml:"version"`
	Degrees   float64  `yaml:"degrees"`
	Clockwise bool     `yaml:"clockwise"`
	StepLimit float64  `yaml:"step_limit"`
	Keyframes Sequence `yaml:"keyframes"`
}

// NewPlanFile plans the rotation and wraps the result for writing.
func NewPlanFile(degrees float64, clockwise bool, stepLimit float64) (*PlanFile, error) {
	seq, err := PlanWithLimit(degrees, clockwise, stepLimit)
	if err != nil {
		return nil, err
	}
	return &PlanFile{
		Version:   PlanFileVersion,
		Degrees:   degrees,
		Clockwise: clockwise,
		StepLimit: stepLimit,
		Keyframes: seq,
	}, nil
}

// WritePlan writes a plan as YAML. Paths ending in ".zst" are zstd-compressed.
func WritePlan(plan *PlanFile, path string) error {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	if isCompressed(path) {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		data = enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return fmt.Errorf("close zstd encoder: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write plan file: %w", err)
	}
	return nil
}

// ReadPlan reads a plan written by WritePlan and checks its keyframes. No
// keyframe may turn further than maxStepLimit, whatever the file claims;
// maxStepLimit <= 0 selects StepLimit.
func ReadPlan(path string, maxStepLimit float64) (*PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}

	if isCompressed(path) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("decompress plan file: %w", err)
		}
	}

	var plan PlanFile
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}

	if plan.Version != PlanFileVersion {
		return nil, fmt.Errorf("unsupported plan version %q", plan.Version)
	}
	if plan.StepLimit == 0 {
		plan.StepLimit = StepLimit
	}
	if !positiveFinite(plan.StepLimit) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidStepLimit, plan.StepLimit)
	}
	if maxStepLimit <= 0 {
		maxStepLimit = StepLimit
	}
	if err := plan.Keyframes.Validate(min(plan.StepLimit, maxStepLimit)); err != nil {
		return nil, err
	}
	if plan.Keyframes.Clockwise() != plan.Clockwise {
		return nil, fmt.Errorf("%w: keyframes turn the wrong way for clockwise=%t", ErrInvalidSequence, plan.Clockwise)
	}
	if math.Abs(plan.Keyframes.Degrees()-plan.Degrees) > 1e-9 {
		return nil, fmt.Errorf("%w: keyframes cover %g°, header says %g°", ErrInvalidSequence, plan.Keyframes.Degrees(), plan.Degrees)
	}
	return &plan, nil
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}
