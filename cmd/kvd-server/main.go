package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mshaverdo/assert"
	"github.com/mshaverdo/kvd/internal/session"
	"github.com/mshaverdo/kvd/internal/store"
	"github.com/mshaverdo/kvd/log"
)

var assertionEnabled = "1"

func init() {
	assert.Enabled = assertionEnabled == "1"
}

func main() {
	var (
		host                        string
		port                        int
		quiet, verbose, veryVerbose bool
	)

	flag.StringVar(&host, "h", "127.0.0.1", "The listening host.")
	flag.IntVar(&port, "p", 6379, "The listening port.")
	flag.BoolVar(&verbose, "v", false, "Enable verbose logging.")
	flag.BoolVar(&quiet, "q", false, "Quiet logging. Totally silent.")
	flag.BoolVar(&veryVerbose, "vv", false, "Enable very verbose logging.")
	flag.Parse()

	switch {
	case veryVerbose:
		log.SetLevel(log.DEBUG)
	case verbose:
		log.SetLevel(log.INFO)
	case quiet:
		log.SetLevel(-1)
	default:
		log.SetLevel(log.NOTICE)
	}

	s := store.New()
	srv := session.New(host, port, s)

	go handleSignals(srv)

	if err := srv.ListenAndServe(); err != nil {
		log.Criticalf(err.Error())
		os.Exit(1)
	}
}

func handleSignals(srv *session.Server) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		s := <-sigs
		switch s {
		case syscall.SIGINT, syscall.SIGTERM:
			log.Noticef("received signal %s, shutting down", s)
			srv.Stop()
			return
		}
	}
}
