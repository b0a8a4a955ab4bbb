//go:build unix

package execute

import (
	"os/exec"
	"syscall"
)

func shellCommand(commandLine string) *exec.Cmd {
	return exec.Command("/bin/sh", "-c", commandLine)
}

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// Negative pid addresses the whole process group.
func signalGroupTerm(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGTERM)
}

func signalGroupKill(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
