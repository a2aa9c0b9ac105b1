// Package dispatcher implements the Command Dispatcher (C4): tokenising a
// line-oriented command into target/action/args, matching it against a
// bounded table of registered commands by case-insensitive target+action,
// and invoking the matching handler with the dispatcher lock held across
// the call — mirroring original_source's dispatcher.c lock discipline (the
// handler runs inside the same critical section that found it) rather than
// releasing the lock before invocation.
package dispatcher

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Limits, carried over unchanged from original_source's dispatcher.h.
const (
	MaxCommands  = 16
	MaxTargetLen = 32
	MaxActionLen = 32
	MaxArgLen    = 32
	MaxArgs      = 10
	MaxDelimLen  = 8

	// MaxBufSize mirrors DISPATCHER_MAX_BUF_SIZE: target + 1 delimiter byte
	// + action + 1 delimiter byte + MaxArgs args each with their own
	// trailing delimiter byte.
	MaxBufSize = MaxTargetLen + 1 + MaxActionLen + 1 + (MaxArgLen+1)*MaxArgs
)

// Sentinel errors, one per original_source DispatcherError_t kind still
// reachable from Go code (PTHREAD_FAILURE has no equivalent: Go's sync
// primitives don't fail).
var (
	ErrNullArg        = errors.New("dispatcher: nil argument")
	ErrInvalidArg     = errors.New("dispatcher: invalid argument")
	ErrIDAlreadyTaken = errors.New("dispatcher: command id already registered")
	ErrCommandNotFound = errors.New("dispatcher: no command matches target/action")
	ErrBufEmpty       = errors.New("dispatcher: empty command buffer")
	ErrDelimTooLong   = errors.New("dispatcher: delimiter exceeds maximum length")
	ErrTokenTooLong   = errors.New("dispatcher: token exceeds maximum length")
	ErrBufTooLong     = errors.New("dispatcher: command buffer too long")
	ErrCmdIncomplete  = errors.New("dispatcher: command missing action token")
	ErrTooManyArgs    = errors.New("dispatcher: too many argument tokens")
)

// Tokens is one parsed command line: a target, an action, and up to MaxArgs
// argument tokens.
type Tokens struct {
	Target string
	Action string
	Args   []string
}

// Handler processes a matched command. ctx carries per-invocation state
// (e.g. the client that issued the command); it is opaque to the
// dispatcher.
type Handler func(tokens Tokens, ctx interface{}) error

// command is one registered slot in the table.
type command struct {
	valid   bool
	target  string
	action  string
	handler Handler
}

// Dispatcher holds a fixed-size table of registered commands and the lock
// serialising registration and execution against it.
type Dispatcher struct {
	delim string

	mu  sync.Mutex
	cmd [MaxCommands]command
}

// New returns a Dispatcher splitting command lines on delim. delim must be
// non-empty and shorter than MaxDelimLen, matching DispatcherConfig_t's
// fixed-size delim field.
func New(delim string) (*Dispatcher, error) {
	if delim == "" {
		return nil, ErrNullArg
	}
	if len(delim) >= MaxDelimLen {
		return nil, ErrDelimTooLong
	}
	return &Dispatcher{delim: delim}, nil
}

// Register adds a command definition at id. id must be free and within
// [0, MaxCommands).
func (d *Dispatcher) Register(id int, target, action string, handler Handler) error {
	if handler == nil || target == "" || action == "" {
		return ErrNullArg
	}
	if id < 0 || id >= MaxCommands {
		return ErrInvalidArg
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd[id].valid {
		return ErrIDAlreadyTaken
	}
	d.cmd[id] = command{valid: true, target: target, action: action, handler: handler}
	return nil
}

// Deregister removes the command at id, if any. Removing an already-free
// slot is a no-op.
func (d *Dispatcher) Deregister(id int) error {
	if id < 0 || id >= MaxCommands {
		return ErrInvalidArg
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmd[id] = command{}
	return nil
}

// Execute tokenizes buf, finds the first registered command whose target
// and action match case-insensitively, and invokes its handler with the
// dispatcher lock held — matching original_source's choice to run the
// callback inside the same critical section used to find it.
func (d *Dispatcher) Execute(buf string, ctx interface{}) error {
	if len(buf) >= MaxBufSize {
		return ErrBufTooLong
	}

	tokens, err := tokenize(buf, d.delim)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.cmd {
		c := &d.cmd[i]
		if !c.valid {
			continue
		}
		if !strings.EqualFold(c.target, tokens.Target) || !strings.EqualFold(c.action, tokens.Action) {
			continue
		}
		return c.handler(tokens, ctx)
	}
	return ErrCommandNotFound
}

// tokenize splits buf on delim into target, action and up to MaxArgs
// arguments, enforcing the same length and count limits as
// original_source's dispatcher_tokenize.
func tokenize(buf, delim string) (Tokens, error) {
	if buf == "" {
		return Tokens{}, ErrNullArg
	}

	fields := splitNonEmpty(buf, delim)
	if len(fields) == 0 {
		return Tokens{}, ErrBufEmpty
	}

	target := fields[0]
	if len(target) > MaxTargetLen-1 {
		return Tokens{}, ErrTokenTooLong
	}
	if len(fields) < 2 {
		return Tokens{}, ErrCmdIncomplete
	}

	action := fields[1]
	if len(action) > MaxActionLen-1 {
		return Tokens{}, ErrTokenTooLong
	}

	rest := fields[2:]
	if len(rest) > MaxArgs {
		return Tokens{}, ErrTooManyArgs
	}
	for _, a := range rest {
		if len(a) > MaxArgLen-1 {
			return Tokens{}, ErrTokenTooLong
		}
	}

	return Tokens{Target: target, Action: action, Args: rest}, nil
}

// splitNonEmpty splits s on any byte in delim, dropping empty fields — the
// equivalent of strtok_r treating runs of delimiters as one separator.
func splitNonEmpty(s, delim string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(delim, r)
	})
	return fields
}
