package system

import (
	"context"
	"sync"
)

// FakeRunner records commands instead of running them.  Respond, when
// set, decides the outcome of each command.  It is used by tests of
// packages that drive external commands.
type FakeRunner struct {
	Respond func(cmd Command) (Output, error)

	mu       sync.Mutex
	commands []Command
}

// Run implements Runner.
func (f *FakeRunner) Run(_ context.Context, cmd Command) (Output, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if f.Respond == nil {
		return Output{}, nil
	}
	return f.Respond(cmd)
}

// Commands returns the commands run so far.
func (f *FakeRunner) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.commands...)
}
