package process

import (
	"context"
	"strings"
	"sync"
)

// FakeExecutor records commands and returns scripted results. Responses are
// matched by the longest registered prefix of the rendered command line.
type FakeExecutor struct {
	mu        sync.Mutex
	Commands  []Command
	responses map[string]fakeResponse
}

type fakeResponse struct {
	output []byte
	err    error
}

var _ Executor = (*FakeExecutor)(nil)

// NewFakeExecutor returns a FakeExecutor where every command succeeds.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{responses: make(map[string]fakeResponse)}
}

// On scripts the result for commands starting with prefix.
func (f *FakeExecutor) On(prefix string, output string, err error) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = fakeResponse{output: []byte(output), err: err}
	return f
}

func (f *FakeExecutor) Run(ctx context.Context, cmd Command) error {
	_, err := f.Output(ctx, cmd)
	return err
}

func (f *FakeExecutor) Output(ctx context.Context, cmd Command) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, cmd)

	line := cmd.String()
	best := ""
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, nil
	}
	r := f.responses[best]
	return r.output, r.err
}

// Lines returns the rendered command lines in call order.
func (f *FakeExecutor) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Commands))
	for _, c := range f.Commands {
		out = append(out, c.String())
	}
	return out
}
