package logger

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Init 初始化全局日志
// 级别取 LOG_LEVEL，无法解析时回落到 info；重复调用以最后一次为准。
// 归一化流水线里大量使用 Debugf，排查时把 LOG_LEVEL 调到 debug 即可
func Init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// L 返回全局 logger
func L() *log.Logger { return log.StandardLogger() }
