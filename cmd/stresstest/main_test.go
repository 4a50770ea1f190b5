package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-arena/internal/stresstest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run")
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "overall: passed") {
		t.Errorf("output missing overall status:\n%s", out)
	}
}

func TestRunCommand_JSONAndWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	out, err := execute(t, "run", "--json", "--xlsx", path)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	var report stresstest.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not a JSON report: %v", err)
	}
	if !report.Passed() {
		t.Errorf("report failures: %+v", report.Failures())
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) < 3+len(report.Scenarios) {
		t.Errorf("Summary rows = %d", len(rows))
	}
}

const pricingYAML = `id: pricing-basics
name: Pricing Basics
questions:
  - id: q1
    text: What drives top-line growth?
    acceptable_answers: ["revenue; income"]
session:
  phases:
    - name: warmup
      duration_seconds: 30
self_tests:
  - label: reference
    answers: {q1: income}
    expected_accuracy: 1
`

func TestCertifyCommand(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		wantErr  bool
		wantLine string
	}{
		{
			name:     "allowed",
			files:    map[string]string{"pricing.yaml": pricingYAML},
			wantLine: "ALLOWED  pricing-basics",
		},
		{
			name: "failing self test",
			files: map[string]string{"pricing.yaml": strings.Replace(pricingYAML,
				"answers: {q1: income}", "answers: {q1: profit}", 1)},
			wantErr:  true,
			wantLine: "BLOCKED  pricing-basics",
		},
		{
			name:     "invalid file",
			files:    map[string]string{"broken.yaml": "id: Broken\n"},
			wantErr:  true,
			wantLine: "INVALID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			out, err := execute(t, "certify", dir)
			if (err != nil) != tt.wantErr {
				t.Fatalf("certify error = %v, wantErr %v\n%s", err, tt.wantErr, out)
			}
			if !strings.Contains(out, tt.wantLine) {
				t.Errorf("output missing %q:\n%s", tt.wantLine, out)
			}
		})
	}
}

func TestCertifyCommand_RequiresDir(t *testing.T) {
	if _, err := execute(t, "certify"); err == nil {
		t.Error("certify without a directory should fail")
	}
}

func TestCertifyBundledCompetencies(t *testing.T) {
	out, err := execute(t, "certify", "../../competencies")
	if err != nil {
		t.Fatalf("bundled competencies blocked: %v\n%s", err, out)
	}
}
