package runner

import (
	"context"
	"sync"
)

// Fake records commands instead of running them. Responses are looked up by
// the command string; unmatched commands succeed with empty output.
type Fake struct {
	mu       sync.Mutex
	Commands []Command
	Outputs  map[string]string
	Errors   map[string]error
	OnRun    func(Command)
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{Outputs: make(map[string]string), Errors: make(map[string]error)}
}

func (f *Fake) Run(_ context.Context, cmd Command) error {
	_, err := f.record(cmd)
	return err
}

func (f *Fake) Output(_ context.Context, cmd Command) (string, error) {
	return f.record(cmd)
}

// Strings returns the recorded commands as strings.
func (f *Fake) Strings() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Commands))
	for i, c := range f.Commands {
		out[i] = c.String()
	}
	return out
}

func (f *Fake) record(cmd Command) (string, error) {
	f.mu.Lock()
	f.Commands = append(f.Commands, cmd)
	key := cmd.String()
	out, err := f.Outputs[key], f.Errors[key]
	hook := f.OnRun
	f.mu.Unlock()
	if hook != nil {
		hook(cmd)
	}
	return out, err
}
