package main

import (
	"path/filepath"
	"testing"
)

func newTestShell(t *testing.T) (*Shell, *KernelCtx, *Process) {
	t.Helper()
	fs, r := OpenFileSystem(filepath.Join(t.TempDir(), "disk.img"))
	if r.IsErr() {
		t.Fatalf("OpenFileSystem: %v", r)
	}
	kctx := NewKernelCtx()
	kctx.FS = fs
	proc := NewProcess(0, nil, nil, Privileged)
	proc.NewThread()
	term := NewTerminalMMIO(4, 8, nil)
	return NewShell(kctx, proc, term), kctx, proc
}

func TestTokenizeQuotedSpan(t *testing.T) {
	got := tokenize(`echo "hello world" there`)
	want := []string{"echo", "hello world", "there"}
	if len(got) != len(want) {
		t.Fatalf("tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokenize = %v, want %v", got, want)
		}
	}
}

func TestShellEchoRoundTrip(t *testing.T) {
	sh, _, _ := newTestShell(t)
	pc, r := sh.Parse("echo hello there")
	if r.IsErr() {
		t.Fatalf("Parse: %v", r)
	}
	out, r := sh.Run(pc)
	if r.IsErr() {
		t.Fatalf("Run: %v", r)
	}
	if out != "hello there" {
		t.Fatalf("Run output = %q, want %q", out, "hello there")
	}
}

func TestShellRedirection(t *testing.T) {
	sh, kctx, proc := newTestShell(t)
	pc, r := sh.Parse("echo redirected > out.txt")
	if r.IsErr() {
		t.Fatalf("Parse: %v", r)
	}
	if _, r := sh.Run(pc); r.IsErr() {
		t.Fatalf("Run: %v", r)
	}
	data, r := kctx.FS.ReadFile(resolvePath(proc, "out.txt"))
	if r.IsErr() {
		t.Fatalf("ReadFile: %v", r)
	}
	if string(data) != "redirected" {
		t.Fatalf("file contents = %q, want %q", data, "redirected")
	}
}

func TestShellEnvExpansion(t *testing.T) {
	sh, kctx, _ := newTestShell(t)
	env, _ := kctx.FS.Enviro()
	env["GREETING"] = "howdy"
	kctx.FS.SetEnviro(env)

	pc, r := sh.Parse("echo %GREETING%")
	if r.IsErr() {
		t.Fatalf("Parse: %v", r)
	}
	out, r := sh.Run(pc)
	if r.IsErr() {
		t.Fatalf("Run: %v", r)
	}
	if out != "howdy" {
		t.Fatalf("Run output = %q, want %q", out, "howdy")
	}
}

func TestShellUnknownCommandFallsThroughToBinaryLookup(t *testing.T) {
	sh, _, _ := newTestShell(t)
	pc, r := sh.Parse("nonexistent")
	if r.IsErr() {
		t.Fatalf("Parse: %v", r)
	}
	if _, r := sh.Run(pc); r.Code != IllegalCommand {
		t.Fatalf("unknown command: got %v, want IllegalCommand", r)
	}
}

func TestShellSecRequiresPassword(t *testing.T) {
	sh, kctx, _ := newTestShell(t)
	env, _ := kctx.FS.Enviro()
	env["root_password"] = "hunter2"
	kctx.FS.SetEnviro(env)

	pc, _ := sh.Parse("sec 0 wrong")
	if _, r := sh.Run(pc); r.Code != BadPassword {
		t.Fatalf("sec with wrong password: got %v, want BadPassword", r)
	}

	pc, _ = sh.Parse("sec 0 hunter2")
	if _, r := sh.Run(pc); r.IsErr() {
		t.Fatalf("sec with correct password: %v", r)
	}
	if sh.proc.SecurityLevel != Privileged {
		t.Fatalf("SecurityLevel = %v, want Privileged after sec 0", sh.proc.SecurityLevel)
	}
}

func TestShellEnvGetSetDel(t *testing.T) {
	sh, _, _ := newTestShell(t)
	pc, _ := sh.Parse("env set FOO bar")
	if _, r := sh.Run(pc); r.IsErr() {
		t.Fatalf("env set: %v", r)
	}
	pc, _ = sh.Parse("env get FOO")
	out, r := sh.Run(pc)
	if r.IsErr() || out != "bar" {
		t.Fatalf("env get = %q, %v, want %q", out, r, "bar")
	}
	pc, _ = sh.Parse("env del FOO")
	if _, r := sh.Run(pc); r.IsErr() {
		t.Fatalf("env del: %v", r)
	}
	pc, _ = sh.Parse("env get FOO")
	if _, r := sh.Run(pc); r.Code != EnvVarInvalid {
		t.Fatalf("env get after del: got %v, want EnvVarInvalid", r)
	}
}

// fakeTermHost is a TerminalOutput stub that replays a fixed keystroke
// queue and records the last rendered frame, for tests exercising the
// shell's terminal-driven builtins (edit) without a real host terminal.
type fakeTermHost struct {
	queue   []byte
	pos     int
	written []byte
}

func (f *fakeTermHost) Write(rows, cols int, buf []byte) { f.written = append([]byte(nil), buf...) }

func (f *fakeTermHost) ReadChar() (byte, bool) {
	if f.pos >= len(f.queue) {
		return 0, false
	}
	b := f.queue[f.pos]
	f.pos++
	return b, true
}

func (f *fakeTermHost) Inject(data []byte) { f.queue = append(f.queue, data...) }

func TestShellEditWritesUntilCtrlG(t *testing.T) {
	sh, kctx, proc := newTestShell(t)
	sh.term = NewTerminalMMIO(4, 8, &fakeTermHost{queue: []byte("hi\x07")})

	pc, r := sh.Parse("edit note.txt")
	if r.IsErr() {
		t.Fatalf("Parse: %v", r)
	}
	if _, r := sh.Run(pc); r.IsErr() {
		t.Fatalf("edit: %v", r)
	}
	data, r := kctx.FS.ReadFile(resolvePath(proc, "note.txt"))
	if r.IsErr() {
		t.Fatalf("ReadFile: %v", r)
	}
	if string(data) != "hi" {
		t.Fatalf("note.txt = %q, want %q", data, "hi")
	}
}

func TestShellCompileProducesLoadableImage(t *testing.T) {
	sh, kctx, proc := newTestShell(t)
	src := "MOV R[RAX], [5]\nHLT R[RAX]\n"
	if r := kctx.FS.WriteFile(resolvePath(proc, "prog.asm"), []byte(src)); r.IsErr() {
		t.Fatalf("WriteFile: %v", r)
	}

	pc, r := sh.Parse("compile prog.asm prog.cbf")
	if r.IsErr() {
		t.Fatalf("Parse: %v", r)
	}
	if _, r := sh.Run(pc); r.IsErr() {
		t.Fatalf("compile: %v", r)
	}

	image, r := kctx.FS.ReadFile(resolvePath(proc, "prog.cbf"))
	if r.IsErr() {
		t.Fatalf("ReadFile: %v", r)
	}
	child, lr := LoadBinary(kctx, image, Privileged)
	if lr.IsErr() {
		t.Fatalf("LoadBinary: %v", lr)
	}
	thread := child.Threads[0]
	ctx, outcome := executeNum(kctx, child, thread, 10)
	if outcome != StepTerminated {
		t.Fatalf("outcome = %v, want StepTerminated", outcome)
	}
	if ctx.exitCode != 5 {
		t.Fatalf("exitCode = %d, want 5", ctx.exitCode)
	}
}

func TestShellDeclareStealableGatesSetView(t *testing.T) {
	sh, _, proc := newTestShell(t)
	if r := sh.term.SetView(proc.PID); r.Code != UnstealableShell {
		t.Fatalf("SetView before declaring stealable: got %v, want UnstealableShell", r)
	}
	sh.DeclareStealable()
	if r := sh.term.SetView(proc.PID); r.IsErr() {
		t.Fatalf("SetView after declaring stealable: %v", r)
	}
}
