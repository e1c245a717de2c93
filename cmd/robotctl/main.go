// cmd/robotctl/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"robot-kit/internal/board"
	"robot-kit/internal/config"
	"robot-kit/internal/discovery"
	"robot-kit/internal/transport"
	"robot-kit/internal/utils"
	"robot-kit/pkg/robot"
)

// Application represents the robotctl tool
type Application struct {
	config *config.Config
	logger *zap.Logger
}

func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer app.logger.Sync()

	if err := app.Run(os.Args[1:]); err != nil {
		app.logger.Fatal("Command failed", zap.Error(err))
	}
}

// NewApplication loads configuration and builds the logger
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &Application{config: cfg, logger: logger}, nil
}

// Run dispatches the subcommand
func (app *Application) Run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: robotctl <scan|ident|query|reset|run> [flags]")
	}

	switch args[0] {
	case "scan":
		return app.runScan()
	case "ident":
		return app.runIdent(args[1:])
	case "query":
		return app.runQuery(args[1:])
	case "reset":
		return app.runReset(args[1:])
	case "run":
		return app.runRobot()
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// families lists every discoverable board family.
func families() []board.Family {
	return []board.Family{
		board.PowerBoard(),
		board.MotorBoard(),
		board.ServoBoard(),
		board.Arduino(),
	}
}

// runScan discovers every board family and prints the results
func (app *Application) runScan() error {
	disc := discovery.New(app.logger)

	for _, family := range families() {
		boards, err := disc.GetSupportedBoards(
			family,
			app.config.Discovery.ManualBoards[family.Name],
			app.config.Discovery.IgnoredSerials,
		)
		if err != nil {
			return fmt.Errorf("scanning for %s: %w", family.Name, err)
		}

		fmt.Printf("%s: %d found\n", family.Name, len(boards))
		for assetTag, b := range boards {
			identity := b.Identity()
			fmt.Printf("  %s  type=%s fw=%s\n", assetTag, identity.BoardType, identity.SWVersion)
			b.Close()
		}
	}
	return nil
}

// runIdent runs the identify handshake against one port and prints the
// confirmed identity
func (app *Application) runIdent(args []string) error {
	flags := flag.NewFlagSet("ident", flag.ExitOnError)
	familyName := flags.String("family", "", "board family to identify as")
	port := flags.String("port", "", "serial port path")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *port == "" {
		return fmt.Errorf("-port is required")
	}

	for _, family := range families() {
		if family.Name != *familyName {
			continue
		}

		b, err := board.Connect(family, *port, board.BoardIdentity{AssetTag: *port}, app.logger)
		if err != nil {
			return err
		}
		defer b.Close()

		identity := b.Identity()
		fmt.Printf("%s %s %s fw=%s\n",
			identity.Manufacturer, identity.BoardType, identity.AssetTag, identity.SWVersion)
		return nil
	}
	return fmt.Errorf("unknown board family %q", *familyName)
}

// runQuery issues a single raw transaction against a port
func (app *Application) runQuery(args []string) error {
	flags := flag.NewFlagSet("query", flag.ExitOnError)
	port := flags.String("port", "", "serial port path")
	baud := flags.Int("baud", app.config.Serial.BaudRate, "baud rate")
	cmd := flags.String("cmd", "*IDN?", "command to send")
	endl := flags.String("endl", "\n", "command terminator")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *port == "" {
		return fmt.Errorf("-port is required")
	}

	conn := transport.NewSerialConnection(*port, *baud, app.config.Serial.Timeout, app.logger)
	tp := transport.New(conn, app.logger)
	if err := tp.Start(); err != nil {
		return err
	}
	defer tp.Stop()

	response, err := tp.Query(*cmd, *endl)
	if err != nil {
		return err
	}
	fmt.Println(response)
	return nil
}

// runReset issues a USB reset to every attached board of a family
func (app *Application) runReset(args []string) error {
	flags := flag.NewFlagSet("reset", flag.ExitOnError)
	familyName := flags.String("family", "", "board family to reset")
	if err := flags.Parse(args); err != nil {
		return err
	}

	for _, family := range families() {
		if family.Name == *familyName {
			return discovery.ResetUSBDevices(family, app.logger)
		}
	}
	return fmt.Errorf("unknown board family %q", *familyName)
}

// runRobot brings up the full robot and waits for the start button
func (app *Application) runRobot() error {
	lock, err := utils.ObtainLock()
	if err != nil {
		return err
	}

	r, err := robot.New(app.config, lock, app.logger)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.WaitStart(ctx); err != nil {
		return err
	}

	meta, err := r.Metadata()
	if err != nil {
		app.logger.Warn("No metadata available", zap.Error(err))
		return nil
	}
	app.logger.Info("Match started",
		zap.String("arena", meta.Arena),
		zap.Int("zone", meta.Zone),
		zap.String("mode", string(meta.Mode)),
	)
	return nil
}
