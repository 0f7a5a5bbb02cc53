package interp

import (
	"bytes"
	"io"
	"strings"

	"github.com/cageshell/cageshell/expand"
	"github.com/cageshell/cageshell/syntax"
)

// redirTarget holds a pending write redirection: the buffer a statement's
// stdout/stderr is collected into, and where it should land once the
// statement finishes. There is no incremental file handle in vfs.FileSystem
// (ReadFile/WriteFile/AppendFile act on whole contents), so writes are
// buffered for the statement's duration and flushed on restore.
type redirTarget struct {
	path   string
	append bool
	buf    *bytes.Buffer
}

// applyRedirects opens/builds every redirect attached to one statement,
// swapping st.Stdin/Stdout/Stderr for the statement's duration, and
// returns a restore func that flushes buffered writes back to the
// filesystem and puts the streams back. Grounded on
// teacherref/interp/runner.go's redir/open, simplified to this
// interpreter's buffered (non-streaming) vfs.FileSystem.
func (st *State) applyRedirects(redirs []*syntax.Redirect, x *expand.Expander) (func(), error) {
	if len(redirs) == 0 {
		return func() {}, nil
	}

	savedIn, savedOut, savedErr := st.Stdin, st.Stdout, st.Stderr
	var pending []redirTarget

	restore := func() {
		for _, p := range pending {
			if st.FS == nil {
				continue
			}
			if p.append {
				_ = st.FS.AppendFile(p.path, p.buf.Bytes(), 0o644)
			} else {
				_ = st.FS.WriteFile(p.path, p.buf.Bytes(), 0o644)
			}
		}
		st.Stdin, st.Stdout, st.Stderr = savedIn, savedOut, savedErr
	}

	for _, r := range redirs {
		fd := defaultFd(r.Op)
		if r.Fd != nil {
			fd = *r.Fd
		}

		switch r.Op {
		case syntax.RedirLss:
			target, err := x.ExpandLiteral(r.Target)
			if err != nil {
				restore()
				return nil, err
			}
			data, err := st.readFileErr(target)
			if err != nil {
				restore()
				return nil, &RedirectionError{Op: "<", Target: target, Err: err}
			}
			st.Stdin = strings.NewReader(data)

		case syntax.RedirGtr, syntax.RedirDGtr:
			target, err := x.ExpandLiteral(r.Target)
			if err != nil {
				restore()
				return nil, err
			}
			buf := &bytes.Buffer{}
			pending = append(pending, redirTarget{path: target, append: r.Op == syntax.RedirDGtr, buf: buf})
			st.setStream(fd, buf)

		case syntax.RedirAndGtr:
			target, err := x.ExpandLiteral(r.Target)
			if err != nil {
				restore()
				return nil, err
			}
			buf := &bytes.Buffer{}
			pending = append(pending, redirTarget{path: target, buf: buf})
			st.Stdout = buf
			st.Stderr = buf

		case syntax.RedirDLss, syntax.RedirDLssDash:
			body, err := x.ExpandLiteral(r.Heredoc)
			if err != nil {
				restore()
				return nil, err
			}
			if r.Op == syntax.RedirDLssDash {
				body = stripLeadingTabs(body)
			}
			st.Stdin = strings.NewReader(body)

		case syntax.RedirTDLss:
			body, err := x.ExpandLiteral(r.Heredoc)
			if err != nil {
				restore()
				return nil, err
			}
			st.Stdin = strings.NewReader(body + "\n")

		case syntax.RedirGtrAmp, syntax.RedirLssAmp:
			lit, _ := r.Target.Lit()
			switch lit {
			case "1":
				st.setStream(fd, st.Stdout)
			case "2":
				st.setStream(fd, st.Stderr)
			default:
				// arbitrary numeric fd duplication has no target in this
				// sandbox's 0/1/2-only stream model; ignored.
			}

		case syntax.RedirLssGtr:
			target, err := x.ExpandLiteral(r.Target)
			if err != nil {
				restore()
				return nil, err
			}
			data, _ := st.readFileErr(target)
			st.Stdin = strings.NewReader(data)
			buf := &bytes.Buffer{}
			pending = append(pending, redirTarget{path: target, buf: buf})
			st.Stdout = buf
		}
	}

	return restore, nil
}

func defaultFd(op syntax.RedirOp) int {
	switch op {
	case syntax.RedirLss, syntax.RedirDLss, syntax.RedirDLssDash, syntax.RedirTDLss, syntax.RedirLssAmp:
		return 0
	default:
		return 1
	}
}

func (st *State) setStream(fd int, w io.Writer) {
	switch fd {
	case 2:
		st.Stderr = w
	default:
		st.Stdout = w
	}
}

func (st *State) readFileErr(path string) (string, error) {
	if st.FS == nil {
		return "", nil
	}
	b, err := st.FS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func stripLeadingTabs(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimLeft(l, "\t")
	}
	return strings.Join(lines, "\n")
}
