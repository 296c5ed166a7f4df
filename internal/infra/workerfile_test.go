package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWorkerFileDefaults(t *testing.T) {
	wf, err := LoadWorkerFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Concurrency != 1 {
		t.Fatalf("concurrency = %d, want 1", wf.Concurrency)
	}
	if !wf.TaskNames.Pipeline || !wf.TaskNames.Publish || !wf.TaskNames.Analytics {
		t.Fatalf("tasks = %+v, want all enabled", wf.TaskNames)
	}
}

func TestLoadWorkerFileMissingFileFallsBack(t *testing.T) {
	wf, err := LoadWorkerFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Concurrency != 1 {
		t.Fatalf("concurrency = %d, want default", wf.Concurrency)
	}
}

func TestLoadWorkerFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	body := "concurrency: 4\nwork_dir: /var/tmp/autoshorts\ntasks:\n  pipeline: true\n  publish: false\n  analytics: false\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	wf, err := LoadWorkerFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Concurrency != 4 {
		t.Fatalf("concurrency = %d", wf.Concurrency)
	}
	if wf.WorkDir != "/var/tmp/autoshorts" {
		t.Fatalf("work dir = %q", wf.WorkDir)
	}
	if wf.TaskNames.Publish || wf.TaskNames.Analytics {
		t.Fatalf("tasks = %+v, want publish/analytics disabled", wf.TaskNames)
	}
}

func TestLoadWorkerFileClampsConcurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	if err := os.WriteFile(path, []byte("concurrency: 0\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	wf, err := LoadWorkerFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Concurrency != 1 {
		t.Fatalf("concurrency = %d, want clamped to 1", wf.Concurrency)
	}
}
