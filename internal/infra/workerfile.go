package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkerFile holds the optional file-based worker tuning. Environment
// configuration covers credentials and endpoints; this file covers local
// execution knobs that operators version alongside deploy manifests.
type WorkerFile struct {
	Concurrency int    `yaml:"concurrency"`
	WorkDir     string `yaml:"work_dir"`
	TaskNames   struct {
		Pipeline  bool `yaml:"pipeline"`
		Publish   bool `yaml:"publish"`
		Analytics bool `yaml:"analytics"`
	} `yaml:"tasks"`
}

// DefaultWorkerFile returns the tuning used when no file is present.
func DefaultWorkerFile() WorkerFile {
	wf := WorkerFile{
		Concurrency: 1,
		WorkDir:     os.TempDir(),
	}
	wf.TaskNames.Pipeline = true
	wf.TaskNames.Publish = true
	wf.TaskNames.Analytics = true
	return wf
}

// LoadWorkerFile reads tuning from a YAML file, falling back to defaults when
// the path is empty or the file does not exist.
func LoadWorkerFile(path string) (WorkerFile, error) {
	wf := DefaultWorkerFile()
	if path == "" {
		return wf, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return wf, nil
		}
		return wf, fmt.Errorf("read worker file: %w", err)
	}
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return wf, fmt.Errorf("parse worker file: %w", err)
	}
	if wf.Concurrency < 1 {
		wf.Concurrency = 1
	}
	if wf.WorkDir == "" {
		wf.WorkDir = os.TempDir()
	}
	return wf, nil
}
