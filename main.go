package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"evolveai/config"
	"evolveai/pkg/background"
	"evolveai/pkg/clients/llm_model"
	"evolveai/pkg/projectlog"
	"evolveai/router"
	"evolveai/service/factory"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	defer func() {
		if serviceErr := recover(); serviceErr != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			log.Println("The service exits abnormally, error message:【", serviceErr, "】")
			log.Println("Stack info: ")
			fmt.Printf("==> %s\n", string(buf[:n]))

			os.Exit(1)
		}
	}()

	// .env 只在本地开发存在,生产环境直接用环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded:", err)
	}

	projectlog.Init()

	// 模型密钥缺失直接启动失败,不留到第一次请求才暴露
	llm_model.GetInstance()

	scheduler := startScheduler()
	defer scheduler.Stop()

	go startServer()
	waitStop()
}

func startScheduler() *background.Scheduler {
	serviceFactory := factory.GetServiceFactory()
	scheduler := background.NewScheduler()

	// 每天清理超出保留期的聊天历史
	scheduler.Register(background.Job{
		Name:     "retention_cleanup",
		Interval: time.Hour * 24,
		Run: func(ctx context.Context) error {
			return serviceFactory.NewMemoryService().CleanupRetention(ctx)
		},
	})

	// 每小时兜底降级到期订阅
	scheduler.Register(background.Job{
		Name:     "premium_sweep",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			return serviceFactory.NewGateService().ExpireSweep(ctx)
		},
	})

	scheduler.Start()
	return scheduler
}

func startServer() {
	addr := config.GetInstance().GetString(config.AppHost)
	if err := http.ListenAndServe(addr, router.GetInstance()); err != nil {
		logrus.Errorf("Failed to ListenAndServer at %v, err = %v", addr, err)
		os.Exit(1)
	}
}

func waitStop() {
	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	sig := <-sc
	log.Printf("exit: signal=<%d>.\n", sig)
	switch sig {
	case syscall.SIGTERM:
		log.Println("exit: bye :-).")
		os.Exit(0)
	default:
		log.Println("exit: bye :-(.")
		os.Exit(1)
	}
}
