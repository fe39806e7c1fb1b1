package background

import (
	log "github.com/sirupsen/logrus"
)

// Go 启动一个受监督的后台协程:
// panic 被捕获并打日志,绝不带崩整个进程
func Go(name string, fn func() error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("background task %s panicked: %v", name, r)
			}
		}()

		if err := fn(); err != nil {
			log.Errorf("background task %s failed: %v", name, err)
		}
	}()
}
