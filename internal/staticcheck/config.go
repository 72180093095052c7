package staticcheck

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds static analyzer configuration.
type Config struct {
	MaxFileSize    int           // bytes; files larger than this are rejected
	ToolCommand    string        // external checker binary; empty disables the tool backend
	ToolArgs       []string      // extra args placed before the file path
	ToolTimeout    time.Duration // hard timeout per tool invocation
	TypedLanguages []string      // languages routed to the tool backend when available
	MaxLineLength  int
}

// DefaultConfig returns the default analyzer config, reading from viper
// when available.
func DefaultConfig() Config {
	maxSize := viper.GetInt("static.max_file_size")
	if maxSize <= 0 {
		maxSize = 1 << 20 // 1 MB
	}

	timeout := viper.GetInt("static.tool_timeout_seconds")
	if timeout <= 0 {
		timeout = 30
	}

	typed := viper.GetStringSlice("static.typed_languages")
	if len(typed) == 0 {
		typed = []string{"go", "typescript", "java"}
	}

	return Config{
		MaxFileSize:    maxSize,
		ToolCommand:    viper.GetString("static.tool_command"),
		ToolArgs:       viper.GetStringSlice("static.tool_args"),
		ToolTimeout:    time.Duration(timeout) * time.Second,
		TypedLanguages: typed,
		MaxLineLength:  120,
	}
}
