// Package main provides the call-audio simulator entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/app/callstate"
	"github.com/osa030/callaudio/internal/app/coordinator"
	"github.com/osa030/callaudio/internal/app/scenario"
	"github.com/osa030/callaudio/internal/domain/audio"
	"github.com/osa030/callaudio/internal/domain/call"
	"github.com/osa030/callaudio/internal/infra/config"
	"github.com/osa030/callaudio/internal/infra/logger"
	"github.com/osa030/callaudio/internal/infra/simhw"
	"github.com/osa030/callaudio/internal/infra/sound"
)

var (
	app        = kingpin.New("callaudiosim", "Drive the call-audio coordinator through a scripted call against simulated hardware")
	configPath = app.Flag("config", "Path to config file (built-in defaults when empty)").Short('c').String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()
	engineName = app.Flag("engine", "Override the sound engine (tone, log)").Enum("tone", "log")

	runCmd       = app.Command("run", "Run a scenario file (default)").Default()
	scenarioPath = runCmd.Arg("scenario", "Path to scenario YAML").Required().ExistingFile()

	listStatesCmd  = app.Command("list-states", "List call states and exit")
	listEffectsCmd = app.Command("list-effects", "List sound effects and exit")
	listDevicesCmd = app.Command("list-devices", "List simulated device kinds and exit")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case listStatesCmd.FullCommand():
		printStates()
		return
	case listEffectsCmd.FullCommand():
		printEffects()
		return
	case listDevicesCmd.FullCommand():
		printDevices()
		return
	}

	loggerConfig := logger.Config{
		Output:  "stderr",
		Level:   "info",
		NoColor: true,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	cfg, err := loadConfig()
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if *engineName != "" {
		cfg.Sound.Engine = *engineName
	}

	sc, err := scenario.Load(*scenarioPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load scenario: %v", err)
	}

	if err := run(cfg, sc); err != nil {
		zlog.Error().Msgf("Simulation error: %v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if *configPath == "" {
		zlog.Info().Msg("Using built-in config")
		return config.Default()
	}
	zlog.Info().Msgf("Loading config from %s", *configPath)
	return config.Load(*configPath)
}

// run wires the simulator. Using a separate function ensures deferred cleanup
// runs even when returning with an error.
func run(cfg *config.Config, sc *scenario.Scenario) error {
	out := newTranscript(os.Stdout)

	device, err := simhw.New(simhw.Config{
		InitialDevices: cfg.Hardware.InitialDevices,
		Silenced:       cfg.Hardware.Silenced,
		SpeakerLatency: cfg.Hardware.SpeakerLatency(),
		OnEvent:        out.hardware,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create simulated hardware")
	}
	defer device.Close()

	engine, err := sound.New(cfg.Sound, sound.Options{OnEvent: out.sound})
	if err != nil {
		return errors.Wrap(err, "failed to create sound engine")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			zlog.Warn().Err(err).Msg("Failed to close sound engine")
		}
	}()

	calls := callstate.New()
	coord, err := coordinator.New(coordinator.Config{
		HandleRinging:     cfg.Coordinator.HandlesRinging(),
		DialingDelay:      cfg.Coordinator.DialingDelay(),
		BusyTeardownDelay: cfg.Coordinator.BusyTeardown(),
		VibrateRepeat:     cfg.Ringing.VibrateRepeat(),
		Pulse:             cfg.Ringing.Pulse(),
		Strict:            cfg.Coordinator.Strict,
	}, coordinator.Deps{
		Hardware: device,
		Engine:   engine,
		Ringer:   device,
		Vibrator: device,
		Calls:    calls,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create coordinator")
	}
	defer coord.Close()

	if err := coord.SetDelegate(&delegate{out: out, device: device}); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := scenario.NewRunner(calls, device, coord, nil)
	runner.OnStep = out.step

	out.printf("scenario %q: %d steps\n", sc.Name, len(sc.Steps))
	if err := runner.Run(ctx, sc); err != nil {
		if errors.Is(err, context.Canceled) {
			zlog.Info().Msg("Interrupted")
			return nil
		}
		return err
	}

	snap := coord.Snapshot()
	out.printf("final: state=%s session=%s ringing=%t vibrations=%d\n",
		stateName(snap.Status), snap.SessionConfig, snap.Ringing, device.Vibrations())
	return nil
}

func stateName(s *call.Status) string {
	if s == nil {
		return "none"
	}
	return s.State.String()
}

func printStates() {
	fmt.Println("Call States:")
	for _, s := range call.AllStates() {
		terminal := ""
		if s.IsTerminal() {
			terminal = " (terminal)"
		}
		fmt.Printf("  %s%s\n", s, terminal)
	}
}

func printEffects() {
	fmt.Println("Sound Effects:")
	for _, e := range audio.AllEffects() {
		behavior := "once"
		if e.Loops() {
			behavior = "loop"
		}
		fmt.Printf("  %-20s %s\n", e, behavior)
	}
}

func printDevices() {
	fmt.Println("Device Kinds:")
	for _, k := range simhw.Kinds() {
		fmt.Printf("  %s\n", k)
	}
}
