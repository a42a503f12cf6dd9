// Package main: ledger gateway service.
//
// The gateway serves ledger queries of a Fabric network over a RESTful API and streams committed blocks and lab
// creations to websocket clients and, when configured, to a message broker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/byzantinelab/gateway/explorer"
	"github.com/byzantinelab/gateway/gateway"
	"github.com/byzantinelab/gateway/lib/config"
	"github.com/byzantinelab/gateway/lib/ledger/fabric"
	"github.com/byzantinelab/gateway/lib/log"
	"github.com/byzantinelab/gateway/lib/msg"
	"github.com/byzantinelab/gateway/lib/msg/broker"
	"github.com/byzantinelab/gateway/lib/notify"
)

var (
	app         = kingpin.New("gateway", "Ledger gateway: RESTful API and live events for a Fabric network")
	confPath    = app.Flag("config", "configuration file (json, yaml or toml)").Short('c').String()
	monitor     = app.Flag("monitor", "serve Prometheus metrics").Short('m').Bool()
	metricsAddr = app.Flag("metrics-addr", "address of the metrics server").Default(":9100").String()
	watch       = app.Flag("watch", "reload the log level when the configuration file changes").Bool()
)

func main() {
	app.Version("0.1.0")
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	if err = conf.Validate(); err != nil {
		panic(err)
	}

	if err = log.InitLogger(conf.LogLevel); err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Logger.Infof("Configuration:%+v", conf)

	if *watch && *confPath != "" {
		if err = config.Watch(*confPath, func(c config.ServiceConfig) {
			if errLvl := log.SetLevel(c.LogLevel); errLvl != nil {
				log.Logger.Warnf("Ignoring log level %q: %v", c.LogLevel, errLvl)

				return
			}

			log.Logger.Infof("Log level is now %s", log.Level())
		}); err != nil {
			log.Logger.Warnf("Cannot watch configuration %s: %v", *confPath, err)
		}
	}

	// connect to the ledger
	lg, err := fabric.New(conf.Fabric)
	if err != nil {
		panic(err)
	}
	defer lg.Close()

	// load message broker
	mb, err := broker.New(conf.MbType, conf.MbConn)
	if err != nil {
		time.Sleep(10 * time.Second) // wait 10s for the broker to be ready and try to reconnect

		if mb, err = broker.New(conf.MbType, conf.MbConn); err != nil {
			panic(err)
		}
	}

	if mb != nil {
		log.Logger.Infof("Forwarding events to %s broker", conf.MbType)

		defer func(mb msg.MsgBroker) {
			errClose := mb.Close()
			log.Logger.Infof("Closing message broker: %v", errClose)
		}(mb)
	}

	// notification bus
	hub := notify.New(mb)
	defer hub.Close()

	// explore committed blocks
	ctx, cancel := context.WithCancel(context.Background())
	done := explorer.New(lg, hub, conf.Fabric.Channels).Explore(ctx)

	// create gateway service
	g := gateway.New(lg, hub, conf.Fabric.LabChannel)

	if *monitor {
		g.Monitor(*metricsAddr)
	}

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Logger.Info("Program killed !")

		cancel()
		log.Logger.Infof("Explorer: %s", <-done)
		g.StopGateway()
	}()

	// init RESTful API, wait for its return and log response
	log.Logger.Infof("Gateway: %s", g.Init(conf.Host, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))
}
