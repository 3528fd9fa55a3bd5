package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ceslavas/image-processing-tools/imagefile"
	"github.com/Ceslavas/image-processing-tools/infrastructure/logger"
)

func writeFixture(t *testing.T, step string, extra string) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	imgPath := filepath.Join(dir, "in.png")
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 100, 100))))
	require.NoError(t, f.Close())

	cfgPath = filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("numpy_basics:\n  image_path: %q\n  step: %s\n%s", imgPath, step, extra)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return dir, cfgPath
}

func runCLI(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(append([]string{"-logLevel", "error"}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunWritesComposite(t *testing.T) {
	dir, cfg := writeFixture(t, "2", "")
	out := filepath.Join(dir, "out.png")

	code, stdout, stderr := runCLI("-config", cfg, "-out", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "composite 100x300 written to")

	w, h, err := imagefile.Dimensions(out)
	require.NoError(t, err)
	assert.Equal(t, 100, w)
	assert.Equal(t, 300, h)
}

func TestRunOutputFromConfig(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "from-config.bmp")
	_, cfg := writeFixture(t, `"1"`, fmt.Sprintf("output:\n  path: %q\n", out))

	code, _, stderr := runCLI("-config", cfg)
	require.Equal(t, 0, code, stderr)
	_, h, err := imagefile.Dimensions(out)
	require.NoError(t, err)
	assert.Equal(t, 300, h)
}

func TestRunStepOutOfRange(t *testing.T) {
	_, cfg := writeFixture(t, "3", "")
	code, _, stderr := runCLI("-config", cfg, "-out", filepath.Join(t.TempDir(), "x.png"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "1 <= step <= 2")
	assert.Contains(t, stderr, "provided step: 3")
}

func TestRunInvalidStep(t *testing.T) {
	_, cfg := writeFixture(t, `"abc"`, "")
	code, _, stderr := runCLI("-config", cfg)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not a valid integer")
}

func TestRunMissingConfig(t *testing.T) {
	code, _, stderr := runCLI("-config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, 1, code)
	assert.Equal(t, 1, strings.Count(stderr, "configuration file not found"), stderr)
}

func TestFailLogsErrorOnlyInWatchMode(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	testCases := []struct {
		name      string
		watch     bool
		wantEvent bool
	}{
		{"单次运行只打印一次", false, false},
		{"watch 模式写日志", true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), "run.log")
			l, err := logger.New(logger.Config{Level: "info", Outputs: []string{"file"}, OutputFile: logPath})
			require.NoError(t, err)

			a := &app{opts: options{configPath: missing, watch: tc.watch}, log: l, stdout: io.Discard}
			require.Error(t, a.renderOnce())
			require.NoError(t, l.Close())

			raw, err := os.ReadFile(logPath)
			require.NoError(t, err)
			assert.Equal(t, tc.wantEvent, strings.Contains(string(raw), "error_event"), string(raw))
		})
	}
}

func TestRunUsageErrors(t *testing.T) {
	code, _, _ := runCLI("-bogus")
	assert.Equal(t, 2, code)

	code, _, stderr := runCLI("extra")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unexpected arguments")
}

func TestRunMetricsFile(t *testing.T) {
	dir, cfg := writeFixture(t, "2", "")
	prom := filepath.Join(dir, "stripes.prom")

	code, _, stderr := runCLI("-config", cfg, "-out", filepath.Join(dir, "o.png"), "-metricsFile", prom)
	require.Equal(t, 0, code, stderr)
	raw, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `stripes_runs_total{result="success"}`))
}

func TestRunShowUsesViewer(t *testing.T) {
	orig := viewerCommand
	defer func() { viewerCommand = orig }()
	var opened string
	viewerCommand = func(path string) *exec.Cmd {
		opened = path
		return exec.Command(os.Args[0], "-test.run=^$")
	}

	_, cfg := writeFixture(t, "2", "")
	code, _, stderr := runCLI("-config", cfg, "-show")
	require.Equal(t, 0, code, stderr)
	require.NotEmpty(t, opened)
	defer os.Remove(opened)
	assert.Equal(t, filepath.Clean(os.TempDir()), filepath.Dir(opened))
	assert.Equal(t, ".png", filepath.Ext(opened))
}
