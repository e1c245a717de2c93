// pkg/robot/robot.go
package robot

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"robot-kit/internal/board"
	"robot-kit/internal/config"
	"robot-kit/internal/discovery"
	"robot-kit/internal/metadata"
)

// powerOutputs is the number of switchable outputs on the power board.
const powerOutputs = 7

// Robot assembles the discovered boards behind one handle. Exactly one power
// board is required; motor boards, servo boards, Arduinos and raw devices are
// collected into asset-tag keyed maps.
type Robot struct {
	cfg    *config.Config
	logger *zap.Logger
	lock   net.Listener
	meta   *metadata.Client

	powerBoard  *board.Board
	motorBoards map[string]*board.Board
	servoBoards map[string]*board.Board
	arduinos    map[string]*board.Board
	rawDevices  map[string]*board.Board
}

// boardDiscoverer is the slice of the discovery surface the assembly needs.
type boardDiscoverer interface {
	GetSupportedBoards(family board.Family, manual []string, ignored []string) (map[string]*board.Board, error)
	GetRawDevices(devices []discovery.RawDevice) (map[string]*board.Board, error)
}

// New discovers the connected boards and connects to the metadata daemon.
// The instance lock is acquired by the caller (one robot per host); New takes
// ownership of it, releasing it on failure and otherwise holding it until
// Close.
func New(cfg *config.Config, lock net.Listener, logger *zap.Logger) (*Robot, error) {
	return assemble(cfg, lock, logger, discovery.New(logger))
}

func assemble(cfg *config.Config, lock net.Listener, logger *zap.Logger, disc boardDiscoverer) (*Robot, error) {
	r := &Robot{
		cfg:  cfg,
		lock: lock,
		logger: logger.With(
			zap.String("component", "robot"),
			zap.String("session", uuid.NewString()[:8]),
		),
	}

	if err := r.initPowerBoard(disc); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.initAuxBoards(disc); err != nil {
		r.Close()
		return nil, err
	}
	r.initMetadata()
	r.logConnectedBoards()

	return r, nil
}

// initPowerBoard locates the single power board and enables its outputs so
// the boards it powers can enumerate.
func (r *Robot) initPowerBoard(disc boardDiscoverer) error {
	family := board.PowerBoard()
	boards, err := disc.GetSupportedBoards(
		family, r.cfg.Discovery.ManualBoards[family.Name], r.cfg.Discovery.IgnoredSerials)
	if err != nil {
		return err
	}

	powerBoard, err := discovery.Singular(boards)
	if err != nil {
		for _, b := range boards {
			b.Close()
		}
		return fmt.Errorf("locating power board: %w", err)
	}
	r.powerBoard = powerBoard

	for i := 0; i < powerOutputs; i++ {
		if err := r.powerBoard.Write(fmt.Sprintf("OUT:%d:SET:1", i)); err != nil {
			return fmt.Errorf("enabling power output %d: %w", i, err)
		}
	}
	return nil
}

// initAuxBoards locates the boards that depend on power board outputs.
func (r *Robot) initAuxBoards(disc boardDiscoverer) error {
	manual := r.cfg.Discovery.ManualBoards
	ignored := r.cfg.Discovery.IgnoredSerials

	var err error
	for _, scan := range []struct {
		family board.Family
		dest   *map[string]*board.Board
	}{
		{board.MotorBoard(), &r.motorBoards},
		{board.ServoBoard(), &r.servoBoards},
		{board.Arduino(), &r.arduinos},
	} {
		*scan.dest, err = disc.GetSupportedBoards(scan.family, manual[scan.family.Name], ignored)
		if err != nil {
			return err
		}
	}

	rawDevices := make([]discovery.RawDevice, 0, len(r.cfg.Discovery.RawDevices))
	for _, device := range r.cfg.Discovery.RawDevices {
		rawDevices = append(rawDevices, discovery.RawDevice{
			SerialNumber: device.SerialNumber,
			Baud:         device.BaudRate,
		})
	}
	r.rawDevices, err = disc.GetRawDevices(rawDevices)
	return err
}

// initMetadata connects to the metadata daemon. An unreachable broker only
// disables metadata; development setups often run without one.
func (r *Robot) initMetadata() {
	client, err := metadata.Connect(r.cfg.GetBrokerURL(), r.cfg.Broker.TopicPrefix, r.logger)
	if err != nil {
		r.logger.Warn("Metadata daemon unreachable, metadata disabled", zap.Error(err))
		return
	}
	r.meta = client
}

func (r *Robot) logConnectedBoards() {
	boards := []*board.Board{r.powerBoard}
	for _, group := range []map[string]*board.Board{
		r.motorBoards, r.servoBoards, r.arduinos, r.rawDevices,
	} {
		for _, b := range group {
			boards = append(boards, b)
		}
	}

	for _, b := range boards {
		if b == nil {
			continue
		}
		identity := b.Identity()
		r.logger.Info("Found board",
			zap.String("board_family", b.Family().Name),
			zap.String("board_type", identity.BoardType),
			zap.String("asset_tag", identity.AssetTag),
			zap.String("sw_version", identity.SWVersion),
		)
	}
}

// PowerBoard returns the robot's power board.
func (r *Robot) PowerBoard() *board.Board {
	return r.powerBoard
}

// MotorBoard returns the sole motor board, erroring unless exactly one is
// connected.
func (r *Robot) MotorBoard() (*board.Board, error) {
	return discovery.Singular(r.motorBoards)
}

// MotorBoards returns all connected motor boards keyed by asset tag.
func (r *Robot) MotorBoards() map[string]*board.Board {
	return r.motorBoards
}

// ServoBoard returns the sole servo board, erroring unless exactly one is
// connected.
func (r *Robot) ServoBoard() (*board.Board, error) {
	return discovery.Singular(r.servoBoards)
}

// ServoBoards returns all connected servo boards keyed by asset tag.
func (r *Robot) ServoBoards() map[string]*board.Board {
	return r.servoBoards
}

// Arduino returns the sole Arduino, erroring unless exactly one is connected.
func (r *Robot) Arduino() (*board.Board, error) {
	return discovery.Singular(r.arduinos)
}

// Arduinos returns all connected Arduinos keyed by asset tag.
func (r *Robot) Arduinos() map[string]*board.Board {
	return r.arduinos
}

// RawDevices returns the raw passthrough devices keyed by asset tag.
func (r *Robot) RawDevices() map[string]*board.Board {
	return r.rawDevices
}

// Metadata returns the current match metadata.
func (r *Robot) Metadata() (metadata.Metadata, error) {
	if r.meta == nil {
		return metadata.Metadata{}, metadata.ErrMetadataNotReady
	}
	return r.meta.Metadata()
}

// Zone returns the robot's starting zone in the arena.
func (r *Robot) Zone() (int, error) {
	meta, err := r.Metadata()
	if err != nil {
		return 0, err
	}
	return meta.Zone, nil
}

// IsCompetition reports whether the robot is running a competition match.
func (r *Robot) IsCompetition() (bool, error) {
	meta, err := r.Metadata()
	if err != nil {
		return false, err
	}
	return meta.Mode == metadata.ModeComp, nil
}

// WaitStart blocks until the start button is pressed, as broadcast by the
// metadata daemon.
func (r *Robot) WaitStart(ctx context.Context) error {
	if r.meta == nil {
		return fmt.Errorf("metadata daemon unavailable, cannot wait for start")
	}
	r.logger.Info("Waiting for start button")
	if err := r.meta.WaitStart(ctx); err != nil {
		return err
	}
	r.logger.Info("Start button pressed")
	return nil
}

// Close releases every board handle, the metadata connection and the
// instance lock. Safe to call more than once.
func (r *Robot) Close() {
	groups := []map[string]*board.Board{
		r.motorBoards, r.servoBoards, r.arduinos, r.rawDevices,
	}
	for _, group := range groups {
		for _, b := range group {
			b.Close()
		}
	}
	r.motorBoards, r.servoBoards, r.arduinos, r.rawDevices = nil, nil, nil, nil

	if r.powerBoard != nil {
		r.powerBoard.Close()
		r.powerBoard = nil
	}
	if r.meta != nil {
		r.meta.Close()
		r.meta = nil
	}
	if r.lock != nil {
		r.lock.Close()
		r.lock = nil
	}
}
