package clipboard

import (
	"errors"
	"os/exec"
	"strings"
)

var ErrUnavailable = errors.New("no clipboard tool available")

// candidates in probe order; first one present on PATH wins.
var candidates = [][]string{
	{"wl-copy"},
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--clipboard", "--input"},
	{"pbcopy"},
}

// System writes through the platform clipboard tool.
type System struct {
	cmd []string
}

func NewSystem() (*System, error) {
	for _, c := range candidates {
		if _, err := exec.LookPath(c[0]); err == nil {
			return &System{cmd: c}, nil
		}
	}
	return nil, ErrUnavailable
}

func (s *System) Write(text string) error {
	cmd := exec.Command(s.cmd[0], s.cmd[1:]...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// Unavailable stands in when no clipboard tool exists; every write fails
// so callers fall back to showing the link instead.
type Unavailable struct{}

func (Unavailable) Write(string) error { return ErrUnavailable }
