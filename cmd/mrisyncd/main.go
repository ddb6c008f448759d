package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hubertat/servicemaker"

	"github.com/MRC-CBU/mrisync"
)

const defaultSyncInterval = "5ms"

var (
	Version string
	Build   string

	config       = flag.String("config", "config.json", "path of the configuration file")
	flagInstall  = flag.Bool("install", false, "Install service in os")
	syncInterval = flag.String("sync", defaultSyncInterval, "sync interval (time.Duration)")

	syncService = servicemaker.ServiceMaker{
		User:               "mrisync",
		UserGroups:         []string{"gpio", "i2c"},
		ServicePath:        "/etc/systemd/system/mrisyncd.service",
		ServiceDescription: "mrisync service: MRI scanner trigger and button-box sync daemon. github.com/MRC-CBU/mrisync",
		ExecDir:            "/srv/mrisync",
		ExecName:           "mrisyncd",
	}
)

func main() {
	log.Printf("mrisyncd %s started\n", Version)
	flag.Parse()

	if *flagInstall {
		err := syncService.InstallService()
		if err != nil {
			panic(err)
		} else {
			log.Println("service installed!")
			return
		}
	}

	syncDuration, err := time.ParseDuration(*syncInterval)
	if err != nil {
		panic(err)
	}

	sb, err := mrisync.LoadConfig(*config)
	if err != nil {
		log.Fatalf("config failed, will terminate. Reason:\n%v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)
	go func() {
		<-c
		signal.Stop(c)
		cancel()
	}()

	log.Println("will open sync sessions...")
	err = sb.OpenSessions(ctx)
	defer sb.Close()
	if err != nil {
		panic(err)
	}

	sb.PrintLineStatus(os.Stdout)

	log.Printf("sessions OK! running sync loop every %v\n", syncDuration)
	err = sb.Run(ctx, syncDuration)
	if err != nil {
		log.Fatalf("sync loop failed: %v\n", err)
	}
}
