package jobs

import (
	"errors"

	"github.com/shirou/gopsutil/v4/process"
)

// killTree kills pid and every process below it. Descendants are collected
// before the root dies so that re-parenting cannot hide them.
func killTree(pid int) error {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return err
	}

	tree := append([]*process.Process{root}, descendants(root)...)
	var errs []error
	for _, p := range tree {
		if err := p.Kill(); err != nil {
			if running, _ := p.IsRunning(); running {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func descendants(p *process.Process) []*process.Process {
	children, err := p.Children()
	if err != nil {
		return nil
	}
	var out []*process.Process
	for _, c := range children {
		out = append(out, c)
		out = append(out, descendants(c)...)
	}
	return out
}

