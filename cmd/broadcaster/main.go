package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"randomness-oracle-sol/internal/config"
	"randomness-oracle-sol/internal/logic/progress"
	"randomness-oracle-sol/internal/logic/syncloop"
	"randomness-oracle-sol/internal/pkg/logger"
	"randomness-oracle-sol/internal/svc"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var configFile = flag.String("f", "etc/broadcaster.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
			logger.Sync()
			os.Exit(1)
		}
	}()

	flag.Parse()

	var c config.BroadcasterConfig
	conf.MustLoad(*configFile, &c)

	if err := logger.InitLogger(c.LogConf.ToLogOption()); err != nil {
		logx.Must(err)
	}
	defer logger.Sync()
	logx.MustSetup(logx.LogConf{
		ServiceName: "broadcaster",
		Mode:        "console",
		Encoding:    "plain",
		Level:       c.LogConf.Level,
	})

	serviceContext, err := svc.NewServiceContext(c)
	if err != nil {
		logx.Must(err)
	}
	defer serviceContext.Close()

	sg := zerosvc.NewServiceGroup()
	loopService := syncloop.NewService(serviceContext.NewLoop())
	if serviceContext.Progress != nil {
		// 同步循环停止后再做最后一次 flush
		sg.Add(progress.NewFlushService(serviceContext.Progress,
			time.Duration(c.Redis.FlushIntervalMs)*time.Millisecond, loopService))
	} else {
		sg.Add(loopService)
	}

	logx.Infof("Starting randomness broadcaster, feed=%s", c.Feed)
	go sg.Start()

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
}
