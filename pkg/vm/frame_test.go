package vm

import (
	"testing"
)

func TestFramePushPop(t *testing.T) {
	t.Run("LIFO order", func(t *testing.T) {
		frame := NewFrame(0, 10, nil, nil)

		frame.Push(IntValue(10))
		frame.Push(IntValue(20))
		frame.Push(RefValue("x"))

		if v := frame.Pop(); v.Ref != "x" {
			t.Errorf("first Pop: got %v, want x", v.Ref)
		}
		if v := frame.Pop(); v.Int != 20 {
			t.Errorf("second Pop: got %d, want 20", v.Int)
		}
		if v := frame.Peek(); v.Int != 10 {
			t.Errorf("Peek: got %d, want 10", v.Int)
		}
		if frame.SP != 1 {
			t.Errorf("SP after Peek: got %d, want 1", frame.SP)
		}
	})

	t.Run("push after pop reuses space", func(t *testing.T) {
		frame := NewFrame(0, 2, nil, nil)

		frame.Push(IntValue(1))
		frame.Push(IntValue(2))
		frame.Pop()
		frame.Push(IntValue(3))

		if v := frame.Pop(); v.Int != 3 {
			t.Errorf("got %d, want 3", v.Int)
		}
		if v := frame.Pop(); v.Int != 1 {
			t.Errorf("got %d, want 1", v.Int)
		}
	})

	t.Run("overflow panics", func(t *testing.T) {
		frame := NewFrame(0, 1, nil, nil)
		frame.Push(IntValue(1))
		defer func() {
			if recover() == nil {
				t.Error("expected panic on overflow")
			}
		}()
		frame.Push(IntValue(2))
	})

	t.Run("underflow panics", func(t *testing.T) {
		frame := NewFrame(0, 1, nil, nil)
		defer func() {
			if recover() == nil {
				t.Error("expected panic on underflow")
			}
		}()
		frame.Pop()
	})
}

func TestFrameLocalVars(t *testing.T) {
	frame := NewFrame(4, 10, nil, nil)

	frame.SetLocal(0, IntValue(100))
	frame.SetLocal(3, RefValue("args"))
	frame.Push(IntValue(99))

	if v := frame.GetLocal(0); v.Int != 100 {
		t.Errorf("GetLocal(0): got %d, want 100", v.Int)
	}
	if v := frame.GetLocal(3); v.Ref != "args" {
		t.Errorf("GetLocal(3): got %v, want args", v.Ref)
	}
	if v := frame.GetLocal(1); v.Type != TypeInt || v.Int != 0 {
		t.Errorf("GetLocal(1): got %+v, want zero int", v)
	}
	if v := frame.Pop(); v.Int != 99 {
		t.Errorf("Pop after SetLocal: got %d, want 99", v.Int)
	}
}

func TestFrameOperandReads(t *testing.T) {
	code := []byte{
		0xFF,       // u8 255 / i8 -1
		0xFF, 0xFE, // i16 -2
		0x00, 0x01, 0x00, 0x00, // i32 65536
		0xFF, 0xFF, 0xFF, 0xFD, // i32 -3
	}
	frame := NewFrame(0, 0, code, nil)

	if got := frame.ReadU8(); got != 255 {
		t.Errorf("ReadU8: got %d, want 255", got)
	}
	frame.PC = 0
	if got := frame.ReadI8(); got != -1 {
		t.Errorf("ReadI8: got %d, want -1", got)
	}
	if got := frame.ReadI16(); got != -2 {
		t.Errorf("ReadI16: got %d, want -2", got)
	}
	if got := frame.ReadI32(); got != 65536 {
		t.Errorf("ReadI32: got %d, want 65536", got)
	}
	if got := frame.ReadI32(); got != -3 {
		t.Errorf("ReadI32: got %d, want -3", got)
	}
	if frame.PC != len(code) {
		t.Errorf("PC: got %d, want %d", frame.PC, len(code))
	}
}

func TestValueIsNull(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", NullValue(), true},
		{"nil ref", RefValue(nil), true},
		{"ref", RefValue("s"), false},
		{"int zero", IntValue(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsNull(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
