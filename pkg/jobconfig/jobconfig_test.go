package jobconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeJobFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "jobs.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidJobFile(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "msg.bin")
	if err := os.WriteFile(inputPath, []byte{0x01, 0x02}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	body := `
jobs:
  - name: sample
    mode: encode
    k: 3
    polys: [5, 7]
    do_tail: true
    input: ` + inputPath + `
    output: ` + filepath.Join(dir, "out.bin") + `
`
	path := writeJobFile(t, dir, body)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(cfg.Jobs))
	}
	j := cfg.Jobs[0]
	if j.Name != "sample" || j.Mode != "encode" || j.K != 3 {
		t.Errorf("unexpected job: %+v", j)
	}
	if len(j.Polys) != 2 || j.Polys[0] != 5 || j.Polys[1] != 7 {
		t.Errorf("unexpected polys: %v", j.Polys)
	}
	if !j.DoTail {
		t.Error("expected do_tail=true")
	}
}

func TestLoadRejectsEmptyJobList(t *testing.T) {
	dir := t.TempDir()
	path := writeJobFile(t, dir, "jobs: []\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty job list")
	}
}

func TestLoadRejectsBadMode(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "msg.bin")
	if err := os.WriteFile(inputPath, []byte{0x01}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	body := `
jobs:
  - name: bad
    mode: transcode
    k: 3
    polys: [5, 7]
    input: ` + inputPath + `
    output: out.bin
`
	path := writeJobFile(t, dir, body)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestLoadRejectsMissingInput(t *testing.T) {
	dir := t.TempDir()
	body := `
jobs:
  - name: missing
    mode: encode
    k: 3
    polys: [5, 7]
    input: ` + filepath.Join(dir, "does-not-exist.bin") + `
    output: out.bin
`
	path := writeJobFile(t, dir, body)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing input file")
	}
}
