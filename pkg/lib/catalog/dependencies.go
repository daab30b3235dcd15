package catalog

import (
	"fmt"
	"os/exec"
	"sort"
)

// Dependency is the lookup result for one executable.
type Dependency struct {
	Command string `json:"command"`
	Path    string `json:"path,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (d Dependency) Found() bool {
	return d.Path != ""
}

// String renders the dependency the way a check report lists it.
func (d Dependency) String() string {
	if d.Found() {
		return fmt.Sprintf("%s: %s", d.Command, d.Path)
	}
	hint := d.Hint
	if hint == "" {
		hint = fmt.Sprintf("Please install '%s'.", d.Command)
	}
	return fmt.Sprintf("%s: NOT FOUND (%s)", d.Command, hint)
}

// CheckDependencies looks up the executable of every template, once per
// distinct command, sorted by command name.
func CheckDependencies(templates []Template) []Dependency {
	hints := map[string]string{}
	for _, t := range templates {
		if len(t.Command) == 0 {
			continue
		}
		if _, ok := hints[t.Command[0]]; !ok || hints[t.Command[0]] == "" {
			hints[t.Command[0]] = t.InstallHint
		}
	}

	deps := make([]Dependency, 0, len(hints))
	for command, hint := range hints {
		dep := Dependency{Command: command, Hint: hint}
		if path, err := exec.LookPath(command); err == nil {
			dep.Path = path
		} else {
			logger.WithField("command", command).Debug("executable not found")
		}
		deps = append(deps, dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Command < deps[j].Command })
	return deps
}

// Missing filters deps down to the ones that were not found.
func Missing(deps []Dependency) []Dependency {
	var out []Dependency
	for _, d := range deps {
		if !d.Found() {
			out = append(out, d)
		}
	}
	return out
}
