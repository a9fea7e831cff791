package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/d2r2/go-shell"
	"github.com/prometheus/common/log"
	"golang.org/x/sync/errgroup"

	"github.com/blesswinsamuel/dht11_exporter/config"
	"github.com/blesswinsamuel/dht11_exporter/dht"
	"github.com/blesswinsamuel/dht11_exporter/dht/dhtsim"
)

// openSensor builds the reader for the configured backend. The returned
// close function releases the pin and is never nil.
func openSensor(cfg *config.Config) (*dht.DHT, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.BackendPeriph:
		if err := dht.HostInit(); err != nil {
			return nil, nil, err
		}
		pin, err := dht.PeriphPinByName(cfg.Pin)
		if err != nil {
			return nil, nil, err
		}
		return dht.NewDHT(pin, dht.SystemClock{}), noop, nil
	case config.BackendEmbd:
		var key interface{} = cfg.Pin
		if n, err := strconv.Atoi(cfg.Pin); err == nil {
			key = n
		}
		pin, err := dht.NewEmbdPin(key)
		if err != nil {
			return nil, nil, err
		}
		return dht.NewDHT(pin, dht.SystemClock{}), pin.Close, nil
	case config.BackendSim:
		sensor := dhtsim.New()
		for _, f := range cfg.Sim.Frames {
			sensor.Queue(f.Frame())
		}
		sensor.ResponseLatencyUs = cfg.Sim.ResponseLatencyUs
		sensor.Repeat = true
		return dht.NewDHT(sensor, sensor), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func main() {
	cfg, err := config.LoadFromFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal("config error: ", err)
	}
	if err := log.Base().SetLevel(cfg.LogLevel); err != nil {
		log.Fatal("log level error: ", err)
	}

	d, closePin, err := openSensor(cfg)
	if err != nil {
		log.Fatal("sensor error: ", err)
	}
	defer func() {
		if err := closePin(); err != nil {
			log.Errorf("close pin: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	signals := []os.Signal{os.Interrupt}
	if shell.IsLinuxMacOSFreeBSD() {
		signals = append(signals, syscall.SIGTERM)
	}
	shell.CloseContextOnSignals(cancel, done, signals...)

	s := newServer(d, cfg)
	srv := &http.Server{Addr: cfg.Listen, Handler: s.routes()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infoln("Listening on", cfg.Listen)
		log.Infoln("Serving metrics under", cfg.MetricsPath)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Errorf("server error: %v", err)
	}
}
