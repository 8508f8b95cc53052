package config

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v2"

	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/conv"
	"github.com/23skdu/longbow-axi/internal/eltwise"
	"github.com/23skdu/longbow-axi/internal/pool"
)

// Backends a job can run against.
const (
	BackendSim    = "sim"
	BackendDevMem = "devmem"
)

// Device names the core a job targets and how its register file is reached.
type Device struct {
	Family  string `yaml:"family"`
	Backend string `yaml:"backend"`
	// Path and Base locate the register window for the devmem backend.
	Path string `yaml:"path"`
	Base uint64 `yaml:"base"`
	Size int    `yaml:"size"`
}

// Job is one layer to compile and optionally run. Exactly the descriptor of
// Device.Family must be present.
type Job struct {
	Config `yaml:",inline"`

	Device Device `yaml:"device"`

	Conv    *conv.Descriptor    `yaml:"conv"`
	Pool    *pool.Descriptor    `yaml:"pool"`
	Eltwise *eltwise.Descriptor `yaml:"eltwise"`

	// Buffers are the elementwise stream buffers passed at start.
	Buffers accel.BufferConfig `yaml:"buffers"`

	// Perf enables the performance counters for the run.
	Perf bool `yaml:"perf"`
}

// LoadJob reads a YAML job file. Unknown keys are errors. Settings left out
// of the file take their Default values.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	return ParseJob(data)
}

func ParseJob(data []byte) (*Job, error) {
	job := &Job{Config: Default()}
	job.Device.Backend = BackendSim
	if err := yaml.UnmarshalStrict(data, job); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func (j *Job) Validate() error {
	if err := j.Config.Validate(); err != nil {
		return err
	}
	j.Device.Family = strings.ToLower(j.Device.Family)

	present := map[string]bool{
		conv.Family:    j.Conv != nil,
		pool.Family:    j.Pool != nil,
		eltwise.Family: j.Eltwise != nil,
	}
	if _, ok := present[j.Device.Family]; !ok {
		return fmt.Errorf("invalid device.family: %q (must be conv, pool or eltwise)", j.Device.Family)
	}
	for family, ok := range present {
		if ok && family != j.Device.Family {
			return fmt.Errorf("job for %s carries a %s descriptor", j.Device.Family, family)
		}
	}
	if !present[j.Device.Family] {
		return fmt.Errorf("job for %s has no %s descriptor", j.Device.Family, j.Device.Family)
	}

	switch j.Device.Backend {
	case BackendSim:
	case BackendDevMem:
		if j.Device.Path == "" {
			return fmt.Errorf("invalid device.path: empty (required for devmem)")
		}
		if j.Device.Size <= 0 {
			return fmt.Errorf("invalid device.size: %d (must be positive for devmem)", j.Device.Size)
		}
		if j.Device.Base%4096 != 0 {
			return fmt.Errorf("invalid device.base: 0x%x (must be page aligned)", j.Device.Base)
		}
	default:
		return fmt.Errorf("invalid device.backend: %q (must be sim or devmem)", j.Device.Backend)
	}
	return nil
}
