package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhasePatch,
				Kind:   KindConfiguration,
				Path:   []string{"net/darktree/warzone/Main", "main"},
				Detail: "method not found",
			},
			contains: []string{"[patch]", "configuration", "net/darktree/warzone/Main.main", "method not found"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLocate,
				Kind:  KindNotFound,
			},
			contains: []string{"[locate]", "not_found"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLaunch,
				Kind:   KindInvocation,
				Detail: "The game has crashed!",
				Cause:  errors.New("java/lang/ArithmeticException"),
			},
			contains: []string{"[launch]", "invocation", "The game has crashed!", "caused by", "ArithmeticException"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Launch(cause)

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause in chain")
	}
}

func TestError_Is(t *testing.T) {
	err := New(PhasePatch, KindConfiguration).Path("Main").Detail("x").Build()

	tests := []struct {
		name   string
		target error
		want   bool
	}{
		{"same phase and kind", &Error{Phase: PhasePatch, Kind: KindConfiguration}, true},
		{"any phase", &Error{Kind: KindConfiguration}, true},
		{"other phase", &Error{Phase: PhaseLocate, Kind: KindConfiguration}, false},
		{"other kind", &Error{Phase: PhasePatch, Kind: KindLaunch}, false},
		{"plain error", errors.New("configuration"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(err, tt.target); got != tt.want {
				t.Errorf("errors.Is: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("zip: not a valid zip file")
	err := New(PhaseLocate, KindInvalidData).
		Path("game.jar").
		Detail("reading %s", "game.jar").
		Cause(cause).
		Build()

	if err.Phase != PhaseLocate {
		t.Errorf("Phase: got %q, want %q", err.Phase, PhaseLocate)
	}
	if err.Kind != KindInvalidData {
		t.Errorf("Kind: got %q, want %q", err.Kind, KindInvalidData)
	}
	if err.Detail != "reading game.jar" {
		t.Errorf("Detail: got %q, want %q", err.Detail, "reading game.jar")
	}
	if len(err.Path) != 1 || err.Path[0] != "game.jar" {
		t.Errorf("Path: got %v, want [game.jar]", err.Path)
	}
	if err.Cause != cause {
		t.Errorf("Cause: got %v, want %v", err.Cause, cause)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", Invocation(errors.New("boom")), KindInvocation},
		{"wrapped", fmt.Errorf("knot: %w", Launch(errors.New("no class"))), KindLaunch},
		{"plain", errors.New("plain"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasKind(t *testing.T) {
	err := fmt.Errorf("startup: %w", Configuration(PhaseLocate, "game jar missing"))
	if !HasKind(err, KindConfiguration) {
		t.Error("expected configuration kind in chain")
	}
	if HasKind(err, KindLaunch) {
		t.Error("unexpected launch kind in chain")
	}
}
