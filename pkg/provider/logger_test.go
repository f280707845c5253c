package provider

import (
	"bytes"
	"fmt"
	"regexp"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerFormat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	log := NewLogger(&stdout, &stderr, zapcore.InfoLevel)

	log.Named(CategoryGameProvider).Info("Launch directory is /opt/warzone")
	log.Named(CategoryGamePatch).Debug("hidden")
	log.Named(CategoryKnot).Warn("careful")
	log.Named(CategoryEntrypoint).Error("boom")
	if err := log.Sync(); err != nil {
		t.Logf("sync: %v", err)
	}

	out := regexp.MustCompile(`^\d{2}:\d{2}:\d{2} INFO: \(GameProvider\) Launch directory is /opt/warzone\n` +
		`\d{2}:\d{2}:\d{2} WARN: \(Knot\) careful\n$`)
	if !out.MatchString(stdout.String()) {
		t.Errorf("stdout: got %q", stdout.String())
	}
	errOut := regexp.MustCompile(`^\d{2}:\d{2}:\d{2} ERROR: \(Entrypoint\) boom\n$`)
	if !errOut.MatchString(stderr.String()) {
		t.Errorf("stderr: got %q", stderr.String())
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		min        zapcore.Level
		stdoutLogs int
	}{
		{zapcore.DebugLevel, 3},
		{zapcore.InfoLevel, 2},
		{zapcore.WarnLevel, 1},
		{zapcore.ErrorLevel, 0},
	}
	for _, tt := range tests {
		t.Run(tt.min.String(), func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			log := NewLogger(&stdout, &stderr, tt.min).Named(CategoryKnot)
			log.Debug("d")
			log.Info("i")
			log.Warn("w")
			log.Error("e")

			if got := bytes.Count(stdout.Bytes(), []byte("\n")); got != tt.stdoutLogs {
				t.Errorf("stdout lines: got %d, want %d\n%s", got, tt.stdoutLogs, stdout.String())
			}
			if got := bytes.Count(stderr.Bytes(), []byte("\n")); got != 1 {
				t.Errorf("stderr lines: got %d, want 1", got)
			}
		})
	}
}

func ExampleNewLogger() {
	var buf bytes.Buffer
	NewLogger(&buf, &buf, zapcore.InfoLevel).Named(CategoryGameProvider).Info("Loading Warzone 1.0.0")
	fmt.Println(buf.String()[9:])
	// Output: INFO: (GameProvider) Loading Warzone 1.0.0
}
