package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hydroponics_controller/internal/control"
	"hydroponics_controller/internal/handlers"
	"hydroponics_controller/internal/hardware"
	"hydroponics_controller/internal/logger"
	"hydroponics_controller/internal/notify"
	"hydroponics_controller/internal/repository"
	"hydroponics_controller/internal/repository/db"
	"hydroponics_controller/internal/sensors"
	"hydroponics_controller/internal/server"
	"hydroponics_controller/internal/service"

	"github.com/spf13/viper"
)

const (
	shutdownTimeout = 10 * time.Second
	hardwareGPIO    = "gpio"
	hardwareSim     = "sim"
)

// plant is the physical side of the controller: relays, water switches and
// climate units, either on GPIO or simulated.
type plant struct {
	relays hardware.Relays
	water  hardware.WaterInputs
	units  []sensors.Hygrometer
}

func (p *plant) Close() error {
	var firstErr error
	if p.water != nil {
		if err := p.water.Close(); err != nil {
			firstErr = err
		}
	}
	if p.relays != nil {
		if err := p.relays.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func main() {
	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}

	// init logger
	log := logger.Get(viper.GetString("log.level"), viper.GetString("log.format"))
	defer func() { _ = log.Sync() }()

	// open DB
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	if influx := openInflux(log); influx != nil {
		defer influx.Close()
		repos.Readings = &repository.MirroredReadings{
			Primary: repos.Readings,
			Mirrors: []repository.ReadingWriter{influx},
		}
	}

	store := control.NewStateStore()
	services := service.NewService(repos, store, log)

	startCtx, startCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	if err := services.Config.Load(startCtx); err != nil {
		startCancel()
		log.Fatalw("failed to load settings", "err", err)
	}

	hw, err := openPlant(log)
	if err != nil {
		startCancel()
		log.Fatalw("failed to open hardware", "err", err, "mode", viper.GetString("hardware.mode"))
	}
	defer func() {
		if cerr := hw.Close(); cerr != nil {
			log.Errorw("failed to release hardware", "err", cerr)
		}
	}()

	notifier := newNotifier(log)
	notifyCtx, notifyCancel := context.WithCancel(context.Background())
	notifyDone := make(chan struct{})
	go func() {
		defer close(notifyDone)
		notifier.Run(notifyCtx)
	}()

	reader := sensors.NewReader(hw.units, hw.water, viper.GetDuration("loop.sensor_timeout"), log.With("component", "sensors"))
	loop := control.New(reader, services.Config, hw.relays, store, control.Options{
		Tick:            viper.GetDuration("loop.tick"),
		HistoryInterval: viper.GetDuration("history.interval"),
		Events:          repos.Events,
		Readings:        repos.Readings,
		FillStore:       repos.FillState,
		Notifier:        notifier,
		Log:             log.With("component", "control"),
	})
	if err := loop.Start(startCtx); err != nil {
		// Relays that could not be switched off are reported per tick as
		// actuation failures; keep running so the operator can see them.
		log.Errorw("initial safe state incomplete", "err", err)
	}
	startCancel()

	loopCtx, loopCancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(loopCtx)
	}()
	notifier.System(notify.SystemStartup, "")
	log.Infow("controller started", "hardware", viper.GetString("hardware.mode"), "tick", viper.GetDuration("loop.tick"))

	// start HTTP server
	apiHandler := handlers.NewHandler(services, log.With("component", "http"))
	srv := server.New(viper.GetString("port"), apiHandler.InitRoutes())
	if err := srv.Start(); err != nil {
		loopCancel()
		<-loopDone
		log.Fatalw("error starting server", "err", err)
	}
	log.Infow("http listening", "addr", srv.Addr())

	// graceful shutdown
	reason := waitForShutdown(srv)
	log.Infow("shutting down...", "reason", reason)

	// stop the loop first; it leaves every relay off
	loopCancel()
	<-loopDone

	notifier.System(notify.SystemShutdown, reason)
	notifyCancel()
	<-notifyDone

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}

func loadConfig() error {
	setDefaults()
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	viper.SetEnvPrefix("HYDRO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// defaults plus HYDRO_* environment
			return nil
		}
		return err
	}
	return nil
}

func setDefaults() {
	pins := hardware.DefaultPins()
	viper.SetDefault("port", "8080")
	viper.SetDefault("db.path", "hydroponics.db")
	viper.SetDefault("log.level", logger.InfoLevel)
	viper.SetDefault("log.format", logger.FormatConsole)
	viper.SetDefault("loop.tick", control.DefaultTick)
	viper.SetDefault("loop.sensor_timeout", sensors.DefaultReadTimeout)
	viper.SetDefault("history.interval", control.DefaultHistoryInterval)
	viper.SetDefault("hardware.mode", hardwareSim)
	viper.SetDefault("hardware.chip", "gpiochip0")
	viper.SetDefault("hardware.pins.lights", pins.Lights)
	viper.SetDefault("hardware.pins.pumps", pins.Pumps)
	viper.SetDefault("hardware.pins.exhaust_fans", pins.ExhaustFans)
	viper.SetDefault("hardware.pins.circulation_fans", pins.CirculationFans)
	viper.SetDefault("hardware.pins.solenoid", pins.Solenoid)
	viper.SetDefault("hardware.pins.floats", pins.Floats[:])
	viper.SetDefault("hardware.pins.overflow", pins.Overflow)
	viper.SetDefault("hardware.reservoir_pin", pins.ReservoirLow)
	viper.SetDefault("hardware.hygrometers", map[string]string{
		"dht1": "/sys/bus/iio/devices/iio:device0",
		"dht2": "/sys/bus/iio/devices/iio:device1",
	})
	viper.SetDefault("sim.reservoir_switch", false)
	viper.SetDefault("mqtt.client_id", "hydroponics-controller")
	viper.SetDefault("mqtt.topic_prefix", notify.DefaultTopicPrefix)
	viper.SetDefault("mqtt.max_retries", 5)
	viper.SetDefault("influx.site", "growbox")
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	log.Infow("opening sqlite", "path", dbPath)
	return db.InitDB(dbPath)
}

// openInflux returns the optional Influx mirror, or nil when not configured.
func openInflux(log *logger.Logger) *repository.InfluxReadings {
	url := viper.GetString("influx.url")
	if url == "" {
		return nil
	}
	log.Infow("mirroring readings to influx", "url", url, "bucket", viper.GetString("influx.bucket"))
	return repository.NewInfluxReadings(
		url,
		viper.GetString("influx.token"),
		viper.GetString("influx.org"),
		viper.GetString("influx.bucket"),
		viper.GetString("influx.site"),
	)
}

// pinsFromConfig reads the BCM wiring from viper.
func pinsFromConfig() (hardware.Pins, error) {
	floats := viper.GetIntSlice("hardware.pins.floats")
	if len(floats) != 3 {
		return hardware.Pins{}, fmt.Errorf("hardware.pins.floats: want 3 offsets (low, mid, high), got %d", len(floats))
	}
	return hardware.Pins{
		Lights:          viper.GetIntSlice("hardware.pins.lights"),
		Pumps:           viper.GetIntSlice("hardware.pins.pumps"),
		ExhaustFans:     viper.GetIntSlice("hardware.pins.exhaust_fans"),
		CirculationFans: viper.GetIntSlice("hardware.pins.circulation_fans"),
		Solenoid:        viper.GetInt("hardware.pins.solenoid"),
		Floats:          [3]int{floats[0], floats[1], floats[2]},
		Overflow:        viper.GetInt("hardware.pins.overflow"),
		ReservoirLow:    viper.GetInt("hardware.reservoir_pin"),
	}, nil
}

func openPlant(log *logger.Logger) (*plant, error) {
	switch mode := viper.GetString("hardware.mode"); mode {
	case hardwareGPIO:
		return openGPIOPlant(log)
	case hardwareSim:
		env := sensors.NewEnvironment(nil)
		env.HasReservoir = viper.GetBool("sim.reservoir_switch")
		log.Infow("running against the simulated grow box")
		return &plant{
			relays: env,
			water:  env,
			units:  []sensors.Hygrometer{env.Unit("dht1", 0, 0), env.Unit("dht2", 0.3, -1.5)},
		}, nil
	default:
		return nil, fmt.Errorf("hardware.mode must be %q or %q, got %q", hardwareGPIO, hardwareSim, mode)
	}
}

func openGPIOPlant(log *logger.Logger) (*plant, error) {
	chip := viper.GetString("hardware.chip")
	pins, err := pinsFromConfig()
	if err != nil {
		return nil, err
	}
	offsets, err := pins.RelayOffsets()
	if err != nil {
		return nil, err
	}
	relays, err := hardware.NewGPIORelays(chip, offsets)
	if err != nil {
		return nil, fmt.Errorf("relays: %w", err)
	}
	water, err := hardware.NewGPIOWaterInputs(chip, pins)
	if err != nil {
		_ = relays.Close()
		return nil, fmt.Errorf("water switches: %w", err)
	}

	p := &plant{relays: relays, water: water}
	for name, dir := range viper.GetStringMapString("hardware.hygrometers") {
		p.units = append(p.units, sensors.NewIIOHygrometer(name, dir))
	}
	log.Infow("gpio hardware ready", "chip", chip, "relays", len(offsets), "hygrometers", len(p.units))
	return p, nil
}

func newNotifier(log *logger.Logger) *notify.Notifier {
	prefix := viper.GetString("mqtt.topic_prefix")
	cfg := notify.NotifierConfig{TopicPrefix: prefix}
	nlog := log.With("component", "mqtt")

	broker := viper.GetString("mqtt.broker")
	if broker == "" {
		return notify.NewNotifier(notify.Noop{}, cfg, nlog)
	}
	pub, err := notify.NewRealPublisher(notify.BrokerConfig{
		Broker:      broker,
		ClientID:    viper.GetString("mqtt.client_id"),
		Username:    viper.GetString("mqtt.username"),
		Password:    viper.GetString("mqtt.password"),
		TopicPrefix: prefix,
		MaxRetries:  viper.GetUint64("mqtt.max_retries"),
	}, nlog)
	if err != nil {
		// Notifications are best effort; the controller runs without them.
		log.Errorw("mqtt unavailable, notifications disabled", "err", err, "broker", broker)
		return notify.NewNotifier(notify.Noop{}, cfg, nlog)
	}
	return notify.NewNotifier(pub, cfg, nlog)
}

// waitForShutdown blocks until a termination signal or a server failure.
func waitForShutdown(srv *server.Server) string {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		return sig.String()
	case err := <-srv.Err():
		if err != nil {
			return "http server failed: " + err.Error()
		}
		return "http server stopped"
	}
}
