// Package engine evaluates scene scripts. It wraps zygomys in a sandboxed
// environment and produces a scene.Scene from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/notch/pkg/scene"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning is a validation finding that does not stop a scene loading.
type EvalWarning struct {
	Object  string
	Message string
}

// EvalResult bundles the full output of an evaluation.
type EvalResult struct {
	Scene    *scene.Scene
	Errors   []EvalError
	Warnings []EvalWarning
}

// OK reports whether the scene evaluated and validated without errors.
func (r EvalResult) OK() bool {
	return r.Scene != nil && len(r.Errors) == 0
}

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// Engine wraps the zygomys interpreter. It is safe for concurrent use; each
// call to Evaluate creates a fresh sandboxed environment for determinism.
// Every call bumps a generation counter, and a result that finishes after a
// newer call has started is dropped.
type Engine struct {
	timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{timeout: EvalTimeout}
}

// outcome carries one evaluation back from its goroutine.
type outcome struct {
	scene  *scene.Scene
	errors []EvalError
	err    error
}

// Evaluate takes scene script source and produces a new Scene whose Version
// is the generation of this call.
//
// Return semantics:
//   - On success: returns scene + nil errors + nil error
//   - On parse/eval failure: returns nil scene + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
//
// On timeout the interpreter goroutine may keep running; its result is
// discarded.
func (e *Engine) Evaluate(source string) (*scene.Scene, []EvalError, error) {
	gen := e.nextGeneration()
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		s, evalErrs, err := e.evaluate(source)
		if s != nil {
			s.Version = gen
		}
		ch <- outcome{scene: s, errors: evalErrs, err: err}
	}()

	return e.await(ch, gen)
}

func (e *Engine) nextGeneration() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	return e.generation
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation == gen
}

// await returns the outcome of generation gen, or an error once the
// timeout passes or a newer generation has started.
func (e *Engine) await(ch <-chan outcome, gen uint64) (*scene.Scene, []EvalError, error) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if !e.current(gen) {
			return nil, nil, fmt.Errorf("evaluation %d superseded by newer request", gen)
		}
		return res.scene, res.errors, res.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("evaluation timed out after %s", e.timeout)
	}
}

// EvaluateAll evaluates source and runs full scene validation. Validation
// errors are reported as EvalErrors and leave Scene nil; warnings are
// returned alongside a usable scene.
func (e *Engine) EvaluateAll(source string) (EvalResult, error) {
	s, evalErrs, err := e.Evaluate(source)
	if err != nil {
		return EvalResult{}, err
	}
	if len(evalErrs) > 0 {
		return EvalResult{Errors: evalErrs}, nil
	}

	var res EvalResult
	v := scene.ValidateAll(s)
	for _, f := range v.Errors {
		res.Errors = append(res.Errors, EvalError{Message: f.Error()})
	}
	for _, f := range v.Warnings {
		res.Warnings = append(res.Warnings, EvalWarning{Object: f.Object, Message: f.Message})
	}
	if len(res.Errors) == 0 {
		res.Scene = s
	}
	return res, nil
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*scene.Scene, []EvalError, error) {
	s := scene.New()

	// Empty source is a valid program that produces an empty scene.
	if strings.TrimSpace(source) == "" {
		return s, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	registerBuiltins(env, s)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return s, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
