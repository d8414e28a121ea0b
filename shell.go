// shell.go - the CMDHandler collaborator
//
// Grounded on spec.md §6 and original_source/emos/parse.py's argument
// grammar for each builtin; none added or removed beyond what spec.md §6
// names (the shell is not in scope for Non-goals, so the full original
// builtin set is carried forward per SPEC_FULL.md §6).

package main

import (
	"fmt"
	"strings"
	"time"
)

// Shell is one interactive (or scripted) command session bound to a
// process acting on its behalf (for cwd, security level, and file I/O).
type Shell struct {
	kctx      *KernelCtx
	proc      *Process
	term      *TerminalMMIO
	stealable bool
}

func NewShell(kctx *KernelCtx, proc *Process, term *TerminalMMIO) *Shell {
	return &Shell{kctx: kctx, proc: proc, term: term}
}

// tokenize performs POSIX-ish tokenization: whitespace-separated words,
// double-quoted spans kept intact, per spec.md §6.
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// expandEnv replaces %VAR% references using the filesystem's __enviro map.
func (s *Shell) expandEnv(tok string) string {
	env, r := s.kctx.FS.Enviro()
	if r.IsErr() {
		return tok
	}
	for strings.Contains(tok, "%") {
		start := strings.Index(tok, "%")
		end := strings.Index(tok[start+1:], "%")
		if end < 0 {
			break
		}
		name := tok[start+1 : start+1+end]
		val := env[name]
		tok = tok[:start] + val + tok[start+1+end+1:]
	}
	return tok
}

// ParsedCommand is one tokenized, redirection-resolved command line.
type ParsedCommand struct {
	Name       string
	Args       []string
	RedirectTo string // ">" target file, empty if none
	ArgFile    string // "<" argument-file injection source, empty if none
	PipeArgs   bool   // "|" output-as-args, not stream piping
}

func (s *Shell) Parse(line string) (*ParsedCommand, Result) {
	tokens := tokenize(line)
	if len(tokens) == 0 {
		return nil, Err(ParseError, "empty command line")
	}
	for i, t := range tokens {
		tokens[i] = s.expandEnv(t)
	}

	pc := &ParsedCommand{Name: tokens[0]}
	rest := tokens[1:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case ">":
			if i+1 >= len(rest) {
				return nil, Err(ParseError, "missing redirection target after >")
			}
			pc.RedirectTo = rest[i+1]
			i++
		case "<":
			if i+1 >= len(rest) {
				return nil, Err(ParseError, "missing argument file after <")
			}
			pc.ArgFile = rest[i+1]
			i++
		case "|":
			pc.PipeArgs = true
		default:
			pc.Args = append(pc.Args, rest[i])
		}
	}
	return pc, Ok()
}

// Run dispatches a parsed command to a builtin, or resolves it against
// CWD then PATH (from __enviro) as a .cbf binary, per spec.md §6.
func (s *Shell) Run(pc *ParsedCommand) (string, Result) {
	if pc.ArgFile != "" {
		data, r := s.kctx.FS.ReadFile(resolvePath(s.proc, pc.ArgFile))
		if r.IsErr() {
			return "", r
		}
		pc.Args = append(pc.Args, tokenize(string(data))...)
	}

	out, r := s.dispatchBuiltin(pc)
	if r.Code != IllegalCommand {
		return s.finishOutput(pc, out, r)
	}

	binPath := pc.Name
	if !strings.HasSuffix(binPath, ".cbf") {
		binPath += ".cbf"
	}
	image, fr := s.kctx.FS.ReadFile(resolvePath(s.proc, binPath))
	if fr.IsErr() {
		env, _ := s.kctx.FS.Enviro()
		for _, dir := range strings.Split(env["PATH"], ";") {
			if dir == "" {
				continue
			}
			image, fr = s.kctx.FS.ReadFile(dir + "/" + binPath)
			if !fr.IsErr() {
				break
			}
		}
	}
	if fr.IsErr() {
		return "", Err(IllegalCommand, "unknown command %q", pc.Name)
	}
	child, lr := LoadBinary(s.kctx, image, s.proc.SecurityLevel)
	if lr.IsErr() {
		return "", lr
	}
	return fmt.Sprintf("started pid %d", child.PID), Ok()
}

func (s *Shell) finishOutput(pc *ParsedCommand, out string, r Result) (string, Result) {
	if r.IsErr() {
		return "", r
	}
	if pc.RedirectTo != "" {
		if wr := s.kctx.FS.WriteFile(resolvePath(s.proc, pc.RedirectTo), []byte(out)); wr.IsErr() {
			return "", wr
		}
		return "", Ok()
	}
	return out, Ok()
}

// dispatchBuiltin implements the table spec.md §6 names: cd, ldir, echo,
// del, rname, mkdir, compile, time, shutdown, clear, read, edit, help, run,
// sec, copy, env {get|set|del}, move. Unknown names return IllegalCommand
// so Run falls through to binary resolution.
func (s *Shell) dispatchBuiltin(pc *ParsedCommand) (string, Result) {
	switch pc.Name {
	case "cd":
		if len(pc.Args) < 1 {
			return "", Err(ParseError, "cd requires a path")
		}
		s.proc.mu.Lock()
		s.proc.CWD = resolvePath(s.proc, pc.Args[0])
		s.proc.mu.Unlock()
		return "", Ok()

	case "ldir":
		dir := s.proc.CWD
		if len(pc.Args) > 0 {
			dir = resolvePath(s.proc, pc.Args[0])
		}
		names, r := s.kctx.FS.ListDir(dir)
		if r.IsErr() {
			return "", r
		}
		return strings.Join(names, "\n"), Ok()

	case "echo":
		return strings.Join(pc.Args, " "), Ok()

	case "del":
		if len(pc.Args) < 1 {
			return "", Err(ParseError, "del requires a filename")
		}
		return "", s.kctx.FS.DeleteFile(resolvePath(s.proc, pc.Args[0]))

	case "rname":
		if len(pc.Args) < 2 {
			return "", Err(ParseError, "rname requires src and new name")
		}
		return "", s.kctx.FS.RenameFile(resolvePath(s.proc, pc.Args[0]), pc.Args[1])

	case "mkdir":
		if len(pc.Args) < 1 {
			return "", Err(ParseError, "mkdir requires a path")
		}
		return "", s.kctx.FS.CreateDir(resolvePath(s.proc, pc.Args[0]))

	case "copy":
		if len(pc.Args) < 2 {
			return "", Err(ParseError, "copy requires src and dst")
		}
		data, r := s.kctx.FS.ReadFile(resolvePath(s.proc, pc.Args[0]))
		if r.IsErr() {
			return "", r
		}
		return "", s.kctx.FS.WriteFile(resolvePath(s.proc, pc.Args[1]), data)

	case "move":
		if len(pc.Args) < 2 {
			return "", Err(ParseError, "move requires src and dst")
		}
		return "", s.kctx.FS.MoveFile(resolvePath(s.proc, pc.Args[0]), resolvePath(s.proc, pc.Args[1]))

	case "compile":
		if len(pc.Args) < 2 {
			return "", Err(ParseError, "compile requires a source path and an output path")
		}
		src, r := s.kctx.FS.ReadFile(resolvePath(s.proc, pc.Args[0]))
		if r.IsErr() {
			return "", r
		}
		image, err := assemble(string(src))
		if err != nil {
			return "", Err(ParseError, "%v", err)
		}
		return "", s.kctx.FS.WriteFile(resolvePath(s.proc, pc.Args[1]), image)

	case "time":
		return s.kctx.now().Format("15:04:05"), Ok()

	case "shutdown":
		if s.proc.SecurityLevel == User {
			return "", Err(SecurityViolation, "shutdown requires a privileged process")
		}
		s.kctx.ShutdownRequested = true
		return "", Ok()

	case "clear":
		return "\x1b[2J\x1b[H", Ok()

	case "read":
		if len(pc.Args) < 1 {
			return "", Err(ParseError, "read requires a filename")
		}
		data, r := s.kctx.FS.ReadFile(resolvePath(s.proc, pc.Args[0]))
		return string(data), r

	case "edit":
		if len(pc.Args) < 1 {
			return "", Err(ParseError, "edit requires a filename")
		}
		data, r := s.runEditor()
		if r.IsErr() {
			return "", r
		}
		return "", s.kctx.FS.WriteFile(resolvePath(s.proc, pc.Args[0]), data)

	case "help":
		return "cd ldir echo del rname mkdir compile time shutdown clear read edit help run sec copy env move", Ok()

	case "run":
		if len(pc.Args) < 1 {
			return "", Err(ParseError, "run requires a binary path")
		}
		image, r := s.kctx.FS.ReadFile(resolvePath(s.proc, pc.Args[0]))
		if r.IsErr() {
			return "", r
		}
		child, lr := LoadBinary(s.kctx, image, s.proc.SecurityLevel)
		if lr.IsErr() {
			return "", lr
		}
		return fmt.Sprintf("started pid %d", child.PID), Ok()

	case "sec":
		return "", s.runSec(pc.Args)

	case "env":
		return s.runEnv(pc.Args)

	default:
		return "", Err(IllegalCommand, "%q is not a builtin", pc.Name)
	}
}

// runSec implements the original's supplemented "sec" builtin: switches
// the shell's own process security level for the remainder of the
// session, gated by __enviro["root_password"] (falls back to empty,
// matching the original's permissive default), per SPEC_FULL.md §6.
func (s *Shell) runSec(args []string) Result {
	if len(args) < 1 {
		return Err(ParseError, "sec requires level (0 or 1) [password]")
	}
	env, _ := s.kctx.FS.Enviro()
	want := env["root_password"]
	given := ""
	if len(args) > 1 {
		given = args[1]
	}
	if args[0] == "0" && given != want {
		return Err(BadPassword, "incorrect root password")
	}
	s.proc.mu.Lock()
	if args[0] == "0" {
		s.proc.SecurityLevel = Privileged
	} else {
		s.proc.SecurityLevel = User
	}
	s.proc.mu.Unlock()
	return Ok()
}

func (s *Shell) runEnv(args []string) (string, Result) {
	if len(args) < 1 {
		return "", Err(ParseError, "env requires get|set|del")
	}
	env, r := s.kctx.FS.Enviro()
	if r.IsErr() {
		return "", r
	}
	switch args[0] {
	case "get":
		if len(args) < 2 {
			return "", Err(ParseError, "env get requires a name")
		}
		v, ok := env[args[1]]
		if !ok {
			return "", Err(EnvVarInvalid, "no such environment variable %q", args[1])
		}
		return v, Ok()
	case "set":
		if len(args) < 3 {
			return "", Err(ParseError, "env set requires name and value")
		}
		env[args[1]] = args[2]
		return "", s.kctx.FS.SetEnviro(env)
	case "del":
		if len(args) < 2 {
			return "", Err(ParseError, "env del requires a name")
		}
		delete(env, args[1])
		return "", s.kctx.FS.SetEnviro(env)
	default:
		return "", Err(ParseError, "env: unknown subcommand %q", args[0])
	}
}

// runEditor is the shell's line-buffered editor: reads host keystrokes,
// echoing each to the terminal, until Ctrl-G (0x07) — matching
// WriteLib's in-process variant and original_source/emos/operatingsystem.py's
// WRITELIB.editor, which this builtin shares the Ctrl-G convention with.
func (s *Shell) runEditor() ([]byte, Result) {
	var buf []byte
	for {
		b, ok := s.term.ReadChar()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if b == 0x07 {
			return buf, Ok()
		}
		buf = append(buf, b)
		s.term.EchoText([]byte{b})
	}
}

// DeclareStealable marks this shell's terminal as steal-able, the
// prerequisite spec.md §6 requires for TerminalMMIO.SetView.
func (s *Shell) DeclareStealable() {
	s.stealable = true
	s.term.SetStealable(true)
}
