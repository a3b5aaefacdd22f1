package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	juicer "github.com/jd3nn1s/forzajuicer"
	"github.com/jd3nn1s/forzajuicer/config"
	"github.com/jd3nn1s/forzajuicer/forwarder"
	"github.com/jd3nn1s/forzajuicer/lemoncan"
	"github.com/jd3nn1s/forzajuicer/replay"
	"github.com/jd3nn1s/forzajuicer/web"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var configFile = flag.String("config", "juicer.toml", "configuration file")
var testMode = flag.Bool("testmode", false, "generate test data")
var printTelemetry = flag.Bool("print-telemetry", false, "print telemetry to stdout")
var replayFile = flag.String("replay", "", "replay a pcap capture instead of listening")
var realtime = flag.Bool("realtime", false, "replay at capture speed")
var logLevel = flag.String("log-level", "", "override the configured log level")

type printForwarder struct{}

func (printForwarder) Forward(newTelemetry *juicer.Telemetry, prevTelemetry *juicer.Telemetry) error {
	fmt.Printf("%+v\n", *newTelemetry)
	return nil
}

type startable interface {
	Start(ctx context.Context) error
}

func loadConfig() *config.Config {
	cfg, err := config.Load(*configFile)
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			log.Fatal("unable to load configuration: ", err)
		}
		log.WithField("file", *configFile).Info("no configuration file, using defaults")
		cfg = config.Default()
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	return cfg
}

func main() {
	flag.Parse()
	cfg := loadConfig()

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal("invalid log level: ", err)
	}
	log.SetLevel(level)

	layout, err := juicer.LayoutByName(cfg.Listener.Layout)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jc := juicer.NewJuicer(
		juicer.WithLayout(layout),
		juicer.WithDropStale(cfg.Listener.DropStale),
	)
	jc.SetTestMode(*testMode)
	if *printTelemetry {
		jc.AddForwarder(printForwarder{})
	}

	var loops []startable
	if cfg.UDP.Server != "" {
		udp, err := forwarder.NewUDPForwarder(cfg.UDP, layout)
		if err != nil {
			log.Fatal("unable to load UDP forwarder: ", err)
		}
		defer udp.Close()
		jc.AddForwarder(udp)
		loops = append(loops, udp)
	}
	if cfg.Redis.Address != "" {
		r, err := forwarder.NewRedisForwarder(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("unable to load redis forwarder: ", err)
		}
		defer r.Close()
		jc.AddForwarder(r)
		loops = append(loops, r)
	}
	if cfg.MQTT.Broker != "" {
		m, err := forwarder.NewMQTTForwarder(cfg.MQTT)
		if err != nil {
			log.Fatal("unable to load mqtt forwarder: ", err)
		}
		defer m.Close()
		jc.AddForwarder(m)
		loops = append(loops, m)
	}
	if cfg.CAN.Interface != "" {
		c, err := lemoncan.Connect(cfg.CAN.Interface)
		if err != nil {
			log.Fatal("unable to open CAN bus: ", err)
		}
		defer c.Close()
		fwd := forwarder.NewCANForwarder(cfg.CAN, c)
		jc.AddForwarder(fwd)
		loops = append(loops, fwd)
	}
	for _, l := range loops {
		go func(l startable) {
			_ = l.Start(ctx)
		}(l)
	}

	if cfg.Web.Address != "" {
		srv := web.NewServer(jc.Holder(), config.Interval(cfg.Web.IntervalMS))
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Web.Address); err != nil && err != context.Canceled {
				log.WithError(err).Error("web server done")
			}
		}()
	}

	if *replayFile != "" {
		stats, err := replay.ReadFile(ctx, *replayFile, replay.Options{
			Port:     listenPort(cfg.Listener.Address),
			Realtime: *realtime,
		}, jc.HandlePacket)
		if err != nil {
			log.Fatal("replay failed: ", err)
		}
		log.WithField("handled", stats.Handled).
			WithField("rejected", stats.Rejected).
			Info("replay finished")
		return
	}

	listener := juicer.NewListener(cfg.Listener.Address, jc.HandlePacket)
	listener.ReadBuffer = cfg.Listener.ReadBuffer
	jc.Start(ctx, listener)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.WithField("stats", fmt.Sprintf("%+v", jc.Stats())).Info("shutting down")
}

// listenPort picks the replay filter port from the listen address, 0 when
// it cannot be parsed.
func listenPort(address string) int {
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		return 0
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return p
}
