//go:build !unix

package execute

import (
	"os"
	"os/exec"
)

func shellCommand(commandLine string) *exec.Cmd {
	return exec.Command("cmd", "/C", commandLine)
}

func setProcessGroup(cmd *exec.Cmd) {}

func signalGroupTerm(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}

func signalGroupKill(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}
