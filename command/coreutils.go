package command

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/cageshell/cageshell/vfs"
)

// RegisterCoreutils adds the sandbox's small coreutils subset to r,
// mirroring the "batch A" command list
// `original_source/src/commands/registry.rs` registers (basename,
// dirname, cat, head, tail, wc, mkdir, touch, rm, cp, mv, ls, grep).
// Each command is reimplemented against vfs.FileSystem rather than the
// host's os package, since a sandboxed script never touches the real
// disk.
func RegisterCoreutils(r *Registry) {
	r.Register(basenameCmd{})
	r.Register(dirnameCmd{})
	r.Register(catCmd{})
	r.Register(headCmd{})
	r.Register(tailCmd{})
	r.Register(wcCmd{})
	r.Register(mkdirCmd{})
	r.Register(touchCmd{})
	r.Register(rmCmd{})
	r.Register(cpCmd{})
	r.Register(mvCmd{})
	r.Register(lsCmd{})
	r.Register(grepCmd{})
}

type basenameCmd struct{}

func (basenameCmd) Name() string { return "basename" }
func (basenameCmd) Execute(c Context) Result {
	if len(c.Args) == 0 {
		return Failure("basename: missing operand", 1)
	}
	base := path.Base(c.Args[0])
	if len(c.Args) > 1 {
		base = strings.TrimSuffix(base, c.Args[1])
	}
	return Success(base + "\n")
}

type dirnameCmd struct{}

func (dirnameCmd) Name() string { return "dirname" }
func (dirnameCmd) Execute(c Context) Result {
	if len(c.Args) == 0 {
		return Failure("dirname: missing operand", 1)
	}
	return Success(path.Dir(c.Args[0]) + "\n")
}

type catCmd struct{}

func (catCmd) Name() string { return "cat" }
func (catCmd) Execute(c Context) Result {
	if len(c.Args) == 0 {
		return Success(c.Stdin)
	}
	var sb strings.Builder
	for _, f := range c.Args {
		data, err := c.FS.ReadFile(resolve(c, f))
		if err != nil {
			return Failure(fmt.Sprintf("cat: %s: %s", f, fsErrMsg(err)), 1)
		}
		sb.Write(data)
	}
	return Success(sb.String())
}

type headCmd struct{}

func (headCmd) Name() string { return "head" }
func (headCmd) Execute(c Context) Result {
	n, files := parseLineCount(c.Args, 10)
	text, err := readOneOrStdin(c, files)
	if err != nil {
		return Failure(err.Error(), 1)
	}
	lines := splitKeepNewline(text)
	if n > len(lines) {
		n = len(lines)
	}
	return Success(strings.Join(lines[:n], ""))
}

type tailCmd struct{}

func (tailCmd) Name() string { return "tail" }
func (tailCmd) Execute(c Context) Result {
	n, files := parseLineCount(c.Args, 10)
	text, err := readOneOrStdin(c, files)
	if err != nil {
		return Failure(err.Error(), 1)
	}
	lines := splitKeepNewline(text)
	start := len(lines) - n
	if start < 0 {
		start = 0
	}
	return Success(strings.Join(lines[start:], ""))
}

func parseLineCount(args []string, def int) (int, []string) {
	n := def
	var files []string
	for i := 0; i < len(args); i++ {
		if args[i] == "-n" && i+1 < len(args) {
			if v, err := strconv.Atoi(args[i+1]); err == nil {
				n = v
			}
			i++
			continue
		}
		if strings.HasPrefix(args[i], "-") && len(args[i]) > 1 {
			if v, err := strconv.Atoi(args[i][1:]); err == nil {
				n = v
				continue
			}
		}
		files = append(files, args[i])
	}
	return n, files
}

func readOneOrStdin(c Context, files []string) (string, error) {
	if len(files) == 0 {
		return c.Stdin, nil
	}
	data, err := c.FS.ReadFile(resolve(c, files[0]))
	if err != nil {
		return "", fmt.Errorf("%s: %s", files[0], fsErrMsg(err))
	}
	return string(data), nil
}

func splitKeepNewline(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

type wcCmd struct{}

func (wcCmd) Name() string { return "wc" }
func (wcCmd) Execute(c Context) Result {
	onlyLines, onlyWords, onlyBytes := false, false, false
	args := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		switch a {
		case "-l":
			onlyLines = true
		case "-w":
			onlyWords = true
		case "-c":
			onlyBytes = true
		default:
			args = append(args, a)
		}
	}

	text := c.Stdin
	name := ""
	if len(args) > 0 {
		data, err := c.FS.ReadFile(resolve(c, args[0]))
		if err != nil {
			return Failure(fmt.Sprintf("wc: %s: %s", args[0], fsErrMsg(err)), 1)
		}
		text = string(data)
		name = " " + args[0]
	}
	lines := strings.Count(text, "\n")
	words := len(strings.Fields(text))
	bytesN := len(text)

	switch {
	case onlyLines:
		return Success(fmt.Sprintf("%7d%s\n", lines, name))
	case onlyWords:
		return Success(fmt.Sprintf("%7d%s\n", words, name))
	case onlyBytes:
		return Success(fmt.Sprintf("%7d%s\n", bytesN, name))
	default:
		return Success(fmt.Sprintf("%7d %7d %7d%s\n", lines, words, bytesN, name))
	}
}

type mkdirCmd struct{}

func (mkdirCmd) Name() string { return "mkdir" }
func (mkdirCmd) Execute(c Context) Result {
	all := false
	var dirs []string
	for _, a := range c.Args {
		if a == "-p" {
			all = true
			continue
		}
		dirs = append(dirs, a)
	}
	for _, d := range dirs {
		if err := c.FS.Mkdir(resolve(c, d), 0o755, all); err != nil {
			return Failure(fmt.Sprintf("mkdir: %s: %s", d, fsErrMsg(err)), 1)
		}
	}
	return Success("")
}

type touchCmd struct{}

func (touchCmd) Name() string { return "touch" }
func (touchCmd) Execute(c Context) Result {
	for _, f := range c.Args {
		p := resolve(c, f)
		if _, err := c.FS.Stat(p); err == nil {
			continue
		}
		if err := c.FS.WriteFile(p, nil, 0o644); err != nil {
			return Failure(fmt.Sprintf("touch: %s: %s", f, fsErrMsg(err)), 1)
		}
	}
	return Success("")
}

type rmCmd struct{}

func (rmCmd) Name() string { return "rm" }
func (rmCmd) Execute(c Context) Result {
	recursive := false
	var targets []string
	for _, a := range c.Args {
		switch a {
		case "-r", "-rf", "-fr", "-R":
			recursive = true
		case "-f":
		default:
			targets = append(targets, a)
		}
	}
	for _, t := range targets {
		if err := c.FS.Remove(resolve(c, t), recursive); err != nil {
			return Failure(fmt.Sprintf("rm: %s: %s", t, fsErrMsg(err)), 1)
		}
	}
	return Success("")
}

type cpCmd struct{}

func (cpCmd) Name() string { return "cp" }
func (cpCmd) Execute(c Context) Result {
	args := filterFlag(c.Args, "-r", "-R")
	if len(args) != 2 {
		return Failure("cp: usage: cp source dest", 1)
	}
	data, err := c.FS.ReadFile(resolve(c, args[0]))
	if err != nil {
		return Failure(fmt.Sprintf("cp: %s: %s", args[0], fsErrMsg(err)), 1)
	}
	if err := c.FS.WriteFile(resolve(c, args[1]), data, 0o644); err != nil {
		return Failure(fmt.Sprintf("cp: %s: %s", args[1], fsErrMsg(err)), 1)
	}
	return Success("")
}

type mvCmd struct{}

func (mvCmd) Name() string { return "mv" }
func (mvCmd) Execute(c Context) Result {
	if len(c.Args) != 2 {
		return Failure("mv: usage: mv source dest", 1)
	}
	if err := c.FS.Rename(resolve(c, c.Args[0]), resolve(c, c.Args[1])); err != nil {
		return Failure(fmt.Sprintf("mv: %s: %s", c.Args[0], fsErrMsg(err)), 1)
	}
	return Success("")
}

type lsCmd struct{}

func (lsCmd) Name() string { return "ls" }
func (lsCmd) Execute(c Context) Result {
	args := filterFlag(c.Args, "-l", "-a")
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	entries, err := c.FS.ReadDir(resolve(c, dir))
	if err != nil {
		return Failure(fmt.Sprintf("ls: %s: %s", dir, fsErrMsg(err)), 1)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	sort.Strings(names)
	if len(names) == 0 {
		return Success("")
	}
	return Success(strings.Join(names, "\n") + "\n")
}

type grepCmd struct{}

func (grepCmd) Name() string { return "grep" }
func (grepCmd) Execute(c Context) Result {
	args := c.Args
	if len(args) == 0 {
		return Failure("grep: usage: grep pattern [file]", 2)
	}
	pattern := args[0]
	var text string
	if len(args) > 1 {
		data, err := c.FS.ReadFile(resolve(c, args[1]))
		if err != nil {
			return Failure(fmt.Sprintf("grep: %s: %s", args[1], fsErrMsg(err)), 2)
		}
		text = string(data)
	} else {
		text = c.Stdin
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, pattern) {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return Result{ExitCode: 1}
	}
	return Success(strings.Join(out, "\n") + "\n")
}

func resolve(c Context, p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return path.Join(c.Cwd, p)
}

func filterFlag(args []string, flags ...string) []string {
	set := make(map[string]bool, len(flags))
	for _, f := range flags {
		set[f] = true
	}
	var out []string
	for _, a := range args {
		if set[a] {
			continue
		}
		out = append(out, a)
	}
	return out
}

func fsErrMsg(err error) string {
	switch err {
	case vfs.ErrNotExist:
		return "No such file or directory"
	case vfs.ErrIsDir:
		return "Is a directory"
	case vfs.ErrNotDir:
		return "Not a directory"
	case vfs.ErrExist:
		return "File exists"
	case vfs.ErrNotEmpty:
		return "Directory not empty"
	}
	return err.Error()
}
