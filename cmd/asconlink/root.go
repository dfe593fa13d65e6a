package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-asconlink/accelerator"
	"github.com/moffa90/go-asconlink/channel"
	"github.com/moffa90/go-asconlink/config"
	"github.com/moffa90/go-asconlink/logging"
	"github.com/moffa90/go-asconlink/metrics"
	"github.com/moffa90/go-asconlink/register"
	"github.com/moffa90/go-asconlink/simulator"
)

type buildInfo struct {
	Version   string
	GitCommit string
	BuildTime string
}

// app holds the state shared by all commands of one invocation.
type app struct {
	info buildInfo

	// global flags
	configPath  string
	port        string
	baud        int
	parity      string
	stopBits    int
	logLevel    string
	logFile     string
	debug       bool
	simulate    bool
	metricsAddr string

	cfg       *config.Config
	log       *logging.Logger
	registry  *prometheus.Registry
	collector *metrics.Collector
	server    *http.Server

	// device is the simulator when --simulate is set
	device  *simulator.Device
	simOpts []simulator.Option
}

func newRootCmd(info buildInfo) *cobra.Command {
	return (&app{info: info}).command()
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:   "asconlink",
		Short: "Drive an ASCON accelerator board over a serial link",
		Long: `asconlink talks to an FPGA running an ASCON-128 core through its UART.

It can:
- Encrypt block files, one accelerator session per block
- Read and write the board registers and show values on the LEDs
- Run the register bring-up test cycles

Use --simulate to run against an in-memory board.
`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultPath, "configuration file")
	flags.StringVarP(&a.port, "port", "p", "", "serial port, e.g. /dev/ttyUSB0 or COM3")
	flags.IntVarP(&a.baud, "baud", "b", 0, "baud rate (default 115200)")
	flags.StringVar(&a.parity, "parity", "", "parity: none, odd or even")
	flags.IntVar(&a.stopBits, "stop-bits", 0, "stop bits: 1 or 2")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&a.logFile, "log-file", "", "also write logs to this file")
	flags.BoolVarP(&a.debug, "debug", "d", false, "shorthand for --log-level debug")
	flags.BoolVar(&a.simulate, "simulate", false, "use an in-memory accelerator instead of the serial port")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(newEncryptCmd(a))
	root.AddCommand(newRegCmd(a))
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newVersionCmd(a))
	return root
}

// setup loads .env and the configuration, applies flag overrides and
// starts logging and metrics.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = a.port
	}
	if flags.Changed("baud") {
		cfg.Serial.BaudRate = a.baud
	}
	if flags.Changed("parity") {
		cfg.Serial.Parity = a.parity
	}
	if flags.Changed("stop-bits") {
		cfg.Serial.StopBits = a.stopBits
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if a.debug {
		cfg.LogLevel = "debug"
	}
	if flags.Changed("log-file") {
		cfg.LogFile = a.logFile
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	var outputs []string
	if cfg.LogFile != "" {
		outputs = append(outputs, cfg.LogFile)
	}
	if a.log, err = logging.New(cfg.LogLevel, outputs...); err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.collector = metrics.NewCollector(a.registry)
	if cfg.MetricsAddr != "" {
		if err := a.serveMetrics(cfg.MetricsAddr); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server stopped", logging.FieldError, err)
		}
	}()
	a.log.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.server.Shutdown(ctx)
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return nil
}

// transport returns the channel selected by the flags.
func (a *app) transport() channel.Channel {
	if a.simulate {
		a.device = simulator.New(a.simOpts...)
		return a.device
	}
	return channel.NewSerial(a.cfg.Serial)
}

// openAccelerator opens the board for encryption.
func (a *app) openAccelerator(opts ...accelerator.Option) (*accelerator.Accelerator, error) {
	opts = append([]accelerator.Option{
		accelerator.WithLogger(a.log),
		accelerator.WithObserver(a.collector),
		accelerator.WithLoadTimeout(a.cfg.Timeouts.Load),
		accelerator.WithTriggerTimeout(a.cfg.Timeouts.Trigger),
		accelerator.WithFetchTimeout(a.cfg.Timeouts.Fetch),
	}, opts...)

	acc := accelerator.New(a.transport(), opts...)
	if err := acc.Open(); err != nil {
		return nil, err
	}
	return acc, nil
}

// openRegisters opens the board for register commands. The caller closes
// the returned link.
func (a *app) openRegisters() (*register.Client, *channel.Link, error) {
	link := channel.NewLink(a.transport(),
		channel.WithLinkLogger(a.log),
		channel.WithLinkObserver(a.collector),
	)
	if err := link.Open(); err != nil {
		return nil, nil, err
	}
	client := register.New(link,
		register.WithLogger(a.log),
		register.WithTimeout(a.cfg.Timeouts.Register),
	)
	return client, link, nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "asconlink Version: %s\n", a.info.Version)
			fmt.Fprintf(out, "Git Commit: %s\n", a.info.GitCommit)
			fmt.Fprintf(out, "Build Time: %s\n", a.info.BuildTime)
		},
	}
}
