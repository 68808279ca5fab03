package game

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FormatCommand builds a console command line: the command token followed by the string form of
// every argument, separated by single spaces. A nil argument becomes an empty string.
func FormatCommand(command string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, command)
	for _, arg := range args {
		if arg == nil {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, fmt.Sprint(arg))
	}
	return strings.Join(parts, " ")
}

// Commander submits formatted command lines to a CommandExecutor with system authority. Executor
// failures are logged and never returned.
type Commander struct {
	exec CommandExecutor
	log  *zap.Logger
}

// NewCommander returns a Commander submitting to exec.
func NewCommander(exec CommandExecutor, log *zap.Logger) *Commander {
	if log == nil {
		log = zap.NewNop()
	}
	return &Commander{exec: exec, log: log}
}

// Run formats and submits a command.
func (c *Commander) Run(command string, args ...any) {
	c.RunLine(FormatCommand(command, args...))
}

// RunLine submits an already formatted command line.
func (c *Commander) RunLine(line string) {
	if err := c.exec.Execute(nil, line); err != nil {
		c.log.Warn("console command failed", zap.String("line", line), zap.Error(err))
	}
}
