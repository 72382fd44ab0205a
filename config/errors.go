package config

import "fmt"

// GPUUsage is the usage line reported when no GPU id is given.
const GPUUsage = "Usage: speechpipe run --gpu 0"

// ConfigError reports an invalid configuration. Usage, when set, is printed
// after the message.
type ConfigError struct {
	Message string
	Usage   string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	return "Error: " + e.Message + "."
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}
