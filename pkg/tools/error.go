package tools

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ErrorWithPrintContext 关闭资源失败只记日志,不向上冒泡。
// 用于 defer session.Close 这类收尾动作
func ErrorWithPrintContext(closeFunc func() error, format string, args ...interface{}) {
	if err := closeFunc(); err != nil {
		log.Warnf("close failed: %s, error: %v", fmt.Sprintf(format, args...), err)
	}
}
