// Package main 提供独立的数据库迁移入口：migrate -conf configs/ [-force N] up|down|version|force。
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/database"
	loginfra "github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/logger"

	"github.com/go-kratos/kratos/v2/log"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	confPath := fs.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	forceVersion := fs.Int("force", 0, "version used by the force command")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	command := "up"
	if fs.NArg() > 0 {
		command = fs.Arg(0)
	}

	rc, err := configloader.Load(configloader.Params{ConfPath: *confPath, Name: "coursevideo-migrate"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := loginfra.NewLogger(configloader.ServiceMetadata{Name: "coursevideo-migrate"})
	if err != nil {
		logger = log.NewStdLogger(os.Stderr)
	}

	if err := database.RunMigrate(rc.Database.DSN, command, *forceVersion, logger); err != nil {
		log.NewHelper(logger).Errorf("migrate %s failed: %v", command, err)
		os.Exit(1)
	}
}
