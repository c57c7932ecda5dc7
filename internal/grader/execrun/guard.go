package execrun

// GuardConfig routes grading commands through the sandbox-init helper, which
// applies resource limits and an optional seccomp filter before exec'ing the
// command.
type GuardConfig struct {
	// HelperPath is the sandbox-init binary. Empty disables the guard.
	HelperPath string
	// SeccompProfile is a profile file path handed to the helper; empty
	// skips syscall filtering.
	SeccompProfile string

	// CPUTimeS bounds subprocess CPU time. Zero derives the bound from the
	// wall clock of each run.
	CPUTimeS int64
	// OutputMB bounds the size of any single file the command writes.
	OutputMB int64
	// PIDs bounds how many processes the command may spawn.
	PIDs int64
}

// GuardRequest is the wire contract with the sandbox-init helper, delivered
// as JSON on its stdin.
type GuardRequest struct {
	WorkDir        string      `json:"workDir"`
	Cmd            []string    `json:"cmd"`
	Env            []string    `json:"env"`
	SeccompProfile string      `json:"seccompProfile"`
	Limits         GuardLimits `json:"limits"`
}

// GuardLimits are the rlimits the helper installs before exec.
type GuardLimits struct {
	CPUTimeS int64 `json:"cpuTimeS"`
	OutputMB int64 `json:"outputMB"`
	PIDs     int64 `json:"pids"`
}

const (
	defaultGuardOutputMB int64 = 256
	defaultGuardPIDs     int64 = 512
)
