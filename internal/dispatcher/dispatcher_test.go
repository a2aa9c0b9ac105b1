package dispatcher

import (
	"errors"
	"testing"
)

func TestRegisterAndExecute(t *testing.T) {
	d, err := New(" ")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var gotArgs []string
	handler := func(tok Tokens, ctx interface{}) error {
		gotArgs = tok.Args
		return nil
	}
	if err := d.Register(0, "gpio", "set", handler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := d.Execute("gpio set 4 1", nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "4" || gotArgs[1] != "1" {
		t.Fatalf("Execute() args = %v, want [4 1]", gotArgs)
	}
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	d, _ := New(" ")
	called := false
	d.Register(0, "gpio", "set", func(Tokens, interface{}) error { called = true; return nil })

	if err := d.Execute("GPIO SET 1", nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !called {
		t.Fatal("Execute() did not match case-insensitively")
	}
}

func TestFirstMatchWins(t *testing.T) {
	d, _ := New(" ")
	var which int
	d.Register(0, "sensor", "get", func(Tokens, interface{}) error { which = 1; return nil })
	d.Register(1, "sensor", "get", func(Tokens, interface{}) error { which = 2; return nil })

	if err := d.Execute("sensor get 0", nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if which != 1 {
		t.Fatalf("Execute() invoked handler %d, want the first-registered one", which)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	d, _ := New(" ")
	if err := d.Execute("nope nope", nil); !errors.Is(err, ErrCommandNotFound) {
		t.Fatalf("Execute() error = %v, want ErrCommandNotFound", err)
	}
}

func TestRegisterDuplicateID(t *testing.T) {
	d, _ := New(" ")
	noop := func(Tokens, interface{}) error { return nil }
	if err := d.Register(0, "a", "b", noop); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := d.Register(0, "c", "d", noop); !errors.Is(err, ErrIDAlreadyTaken) {
		t.Fatalf("Register() error = %v, want ErrIDAlreadyTaken", err)
	}
}

func TestDeregisterFreesSlot(t *testing.T) {
	d, _ := New(" ")
	noop := func(Tokens, interface{}) error { return nil }
	d.Register(3, "a", "b", noop)
	if err := d.Deregister(3); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}
	if err := d.Register(3, "c", "d", noop); err != nil {
		t.Fatalf("Register() after Deregister() error = %v", err)
	}
}

func TestDeregisterMissingIsNoOp(t *testing.T) {
	d, _ := New(" ")
	if err := d.Deregister(5); err != nil {
		t.Fatalf("Deregister() of unused slot error = %v, want nil", err)
	}
}

func TestRegisterInvalidID(t *testing.T) {
	d, _ := New(" ")
	noop := func(Tokens, interface{}) error { return nil }
	if err := d.Register(MaxCommands, "a", "b", noop); !errors.Is(err, ErrInvalidArg) {
		t.Fatalf("Register() error = %v, want ErrInvalidArg", err)
	}
}

func TestTokenizeEmptyBuffer(t *testing.T) {
	if _, err := tokenize("", " "); !errors.Is(err, ErrNullArg) {
		t.Fatalf("tokenize(\"\") error = %v, want ErrNullArg", err)
	}
}

func TestTokenizeOnlyDelimiters(t *testing.T) {
	if _, err := tokenize("   ", " "); !errors.Is(err, ErrBufEmpty) {
		t.Fatalf("tokenize(delims-only) error = %v, want ErrBufEmpty", err)
	}
}

func TestTokenizeMissingAction(t *testing.T) {
	if _, err := tokenize("gpio", " "); !errors.Is(err, ErrCmdIncomplete) {
		t.Fatalf("tokenize(target-only) error = %v, want ErrCmdIncomplete", err)
	}
}

func TestTokenizeTargetTooLong(t *testing.T) {
	long := make([]byte, MaxTargetLen+5)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := tokenize(string(long)+" set", " "); !errors.Is(err, ErrTokenTooLong) {
		t.Fatalf("tokenize(long target) error = %v, want ErrTokenTooLong", err)
	}
}

func TestTokenizeTooManyArgs(t *testing.T) {
	buf := "gpio set"
	for i := 0; i < MaxArgs+1; i++ {
		buf += " x"
	}
	if _, err := tokenize(buf, " "); !errors.Is(err, ErrTooManyArgs) {
		t.Fatalf("tokenize(too many args) error = %v, want ErrTooManyArgs", err)
	}
}

func TestExecuteNullBuffer(t *testing.T) {
	d, _ := New(" ")
	if err := d.Execute("", nil); !errors.Is(err, ErrNullArg) {
		t.Fatalf("Execute(\"\") error = %v, want ErrNullArg", err)
	}
}

func TestExecuteBufTooLong(t *testing.T) {
	d, _ := New(" ")
	buf := make([]byte, MaxBufSize)
	for i := range buf {
		buf[i] = 'a'
	}
	if err := d.Execute(string(buf), nil); !errors.Is(err, ErrBufTooLong) {
		t.Fatalf("Execute(buf of len MaxBufSize) error = %v, want ErrBufTooLong", err)
	}
}

func TestNewRejectsDelimTooLong(t *testing.T) {
	long := make([]byte, MaxDelimLen)
	for i := range long {
		long[i] = ','
	}
	if _, err := New(string(long)); !errors.Is(err, ErrDelimTooLong) {
		t.Fatalf("New(long delim) error = %v, want ErrDelimTooLong", err)
	}
}
