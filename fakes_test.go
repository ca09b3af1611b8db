package tunnelctl

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
)

// fakeProcess is a Process whose exit is driven by the test
type fakeProcess struct {
	pid     int
	exit    chan ExitInfo
	waitErr error
	// exitOnSignal makes the process die from the first signal it receives
	exitOnSignal bool
	onExit       func()

	once    sync.Once
	mu      sync.Mutex
	signals []os.Signal
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	if p.exitOnSignal {
		s, _ := sig.(syscall.Signal)
		p.finish(ExitInfo{Code: -1, Signal: s, Signaled: true})
	}
	return nil
}

func (p *fakeProcess) Wait() (ExitInfo, error) {
	info := <-p.exit
	if p.onExit != nil {
		p.onExit()
	}
	return info, p.waitErr
}

// finish makes Wait return info; only the first call has an effect
func (p *fakeProcess) finish(info ExitInfo) {
	p.once.Do(func() {
		p.exit <- info
	})
}

func (p *fakeProcess) signalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.signals)
}

// fakeLauncher hands out fakeProcesses and records the order of spawns and
// exits so tests can check that no two processes overlap.
type fakeLauncher struct {
	mu        sync.Mutex
	nextPID   int
	launchErr error
	// ignoreSignals makes new processes survive Signal
	ignoreSignals bool
	procs         []*fakeProcess
	args          [][]string
	journal       []string
	live          int
	maxLive       int
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{nextPID: 1000}
}

func (l *fakeLauncher) Launch(ctx context.Context, binary string, args []string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.launchErr != nil {
		return nil, l.launchErr
	}
	l.nextPID++
	p := &fakeProcess{
		pid:          l.nextPID,
		exit:         make(chan ExitInfo, 1),
		exitOnSignal: !l.ignoreSignals,
	}
	pid := p.pid
	p.onExit = func() {
		l.mu.Lock()
		l.live--
		l.journal = append(l.journal, fmt.Sprintf("exit %d", pid))
		l.mu.Unlock()
	}
	l.procs = append(l.procs, p)
	l.args = append(l.args, append([]string{binary}, args...))
	l.live++
	if l.live > l.maxLive {
		l.maxLive = l.live
	}
	l.journal = append(l.journal, fmt.Sprintf("spawn %d", pid))
	return p, nil
}

func (l *fakeLauncher) proc(i int) *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[i]
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

func (l *fakeLauncher) snapshot() (journal []string, maxLive int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.journal...), l.maxLive
}

// fakeIndicator records every render
type fakeIndicator struct {
	mu       sync.Mutex
	labels   []string
	callback func()
}

func (f *fakeIndicator) Render(label, tooltip string) {
	f.mu.Lock()
	f.labels = append(f.labels, label)
	f.mu.Unlock()
}

func (f *fakeIndicator) OnActivate(callback func()) {
	f.mu.Lock()
	f.callback = callback
	f.mu.Unlock()
}

func (f *fakeIndicator) click() {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	cb()
}

func (f *fakeIndicator) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.labels) == 0 {
		return ""
	}
	return f.labels[len(f.labels)-1]
}

// fakeNotifier records error messages
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Error(message string) {
	f.mu.Lock()
	f.messages = append(f.messages, message)
	f.mu.Unlock()
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// fakePicker returns a canned answer
type fakePicker struct {
	path string
	ok   bool
	err  error
}

func (f *fakePicker) ChooseFile(ctx context.Context, filter FileFilter) (string, bool, error) {
	return f.path, f.ok, f.err
}
