// Package logging 构造进程唯一的 Logger 和终端配色
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// 终端配色 (与 hash 进度行保持一致)
var (
	PathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	ArrowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	HashStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
	LabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))
	OKStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))
)

// New 创建写到 w 的 Logger，level 无法解析时退回 info
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: false,
		Prefix:          "dpms",
	})
}

// Discard 丢弃所有输出，测试用
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
