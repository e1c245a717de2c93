package discovery

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"robot-kit/internal/board"
	"robot-kit/internal/transport"
)

// fixedEnumerator returns a canned port list.
type fixedEnumerator struct {
	ports []PortInfo
}

func (e fixedEnumerator) Ports() ([]PortInfo, error) {
	return e.ports, nil
}

// fakePort answers commands from a table, like a board firmware would.
type fakePort struct {
	responses map[string]string
	open      bool
	opened    bool
	lastCmd   string
}

func (p *fakePort) Open() error  { p.open = true; p.opened = true; return nil }
func (p *fakePort) Close() error { p.open = false; return nil }
func (p *fakePort) IsOpen() bool { return p.open }

func (p *fakePort) WriteBytes(data []byte) error {
	p.lastCmd = strings.TrimRight(string(data), "\n")
	return nil
}

func (p *fakePort) ReadLine() ([]byte, error) {
	response, ok := p.responses[p.lastCmd]
	if !ok {
		return nil, transport.ErrReadTimeout
	}
	return []byte(response + "\n"), nil
}

// testDiscoverer wires a Discoverer to canned ports and fake connections.
func testDiscoverer(ports []PortInfo, conns map[string]*fakePort) *Discoverer {
	return &Discoverer{
		enum: fixedEnumerator{ports: ports},
		connect: func(_ board.Family, port string) transport.Conn {
			conn, ok := conns[port]
			if !ok {
				conn = &fakePort{}
				conns[port] = conn
			}
			return conn
		},
		sleep:  func(time.Duration) {},
		logger: zap.NewNop(),
	}
}

func powerPort(device, serial string) PortInfo {
	return PortInfo{
		Device:       device,
		IsUSB:        true,
		VID:          0x1BDA,
		PID:          0x0010,
		SerialNumber: serial,
		Product:      "Power Board v4",
	}
}

func TestGetSupportedBoardsMatchesAllowList(t *testing.T) {
	ports := []PortInfo{
		powerPort("/dev/ttyACM0", "SRO-AAD-DBS"),
		{Device: "/dev/ttyUSB0", IsUSB: true, VID: 0x0403, PID: 0x6001, SerialNumber: "A5002Lkk"},
	}
	conns := map[string]*fakePort{
		"/dev/ttyACM0": {responses: map[string]string{
			"*IDN?": "Student Robotics:PBv4B:SRO-AAD-DBS:4.4.1",
		}},
		"/dev/ttyUSB0": {responses: map[string]string{}},
	}

	boards, err := testDiscoverer(ports, conns).GetSupportedBoards(board.PowerBoard(), nil, nil)
	require.NoError(t, err)

	require.Len(t, boards, 1)
	require.Contains(t, boards, "SRO-AAD-DBS")
	assert.False(t, conns["/dev/ttyUSB0"].opened, "non-matching candidates are never opened")
}

func TestGetSupportedBoardsExcludesWrongBoardType(t *testing.T) {
	ports := []PortInfo{powerPort("/dev/ttyACM0", "SRO-XYZ-123")}
	conns := map[string]*fakePort{
		"/dev/ttyACM0": {responses: map[string]string{
			"*IDN?": "Student Robotics:MCv4B:SRO-XYZ-123:4.4",
		}},
	}

	boards, err := testDiscoverer(ports, conns).GetSupportedBoards(board.PowerBoard(), nil, nil)
	require.NoError(t, err, "an incorrect board must not abort the scan")
	assert.Empty(t, boards)
	assert.False(t, conns["/dev/ttyACM0"].IsOpen(), "rejected candidates leave no open handle")
}

func TestGetSupportedBoardsExcludesUnidentifiable(t *testing.T) {
	ports := []PortInfo{powerPort("/dev/ttyACM0", "SRO-XYZ-123")}
	conns := map[string]*fakePort{
		"/dev/ttyACM0": {responses: map[string]string{}}, // every query times out
	}

	boards, err := testDiscoverer(ports, conns).GetSupportedBoards(board.PowerBoard(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, boards)
	assert.False(t, conns["/dev/ttyACM0"].IsOpen())
}

func TestGetSupportedBoardsSkipsIgnoredSerials(t *testing.T) {
	ports := []PortInfo{powerPort("/dev/ttyACM0", "SRO-AAD-DBS")}
	conns := map[string]*fakePort{
		"/dev/ttyACM0": {responses: map[string]string{
			"*IDN?": "Student Robotics:PBv4B:SRO-AAD-DBS:4.4.1",
		}},
	}

	boards, err := testDiscoverer(ports, conns).
		GetSupportedBoards(board.PowerBoard(), nil, []string{"SRO-AAD-DBS"})
	require.NoError(t, err)
	assert.Empty(t, boards)
	assert.False(t, conns["/dev/ttyACM0"].opened, "ignored boards are never opened")
}

func TestGetSupportedBoardsManualKeyedByPortPath(t *testing.T) {
	conns := map[string]*fakePort{
		"/dev/ttyS5": {responses: map[string]string{
			"*IDN?": "Student Robotics:PBv4B:SRO-MAN-UAL:4.4.1",
		}},
	}

	boards, err := testDiscoverer(nil, conns).
		GetSupportedBoards(board.PowerBoard(), []string{"/dev/ttyS5"}, nil)
	require.NoError(t, err)
	require.Contains(t, boards, "/dev/ttyS5", "manual boards are keyed by the literal port path")
}

func TestGetSupportedBoardsManualFailureIsSkipped(t *testing.T) {
	conns := map[string]*fakePort{}

	boards, err := testDiscoverer(nil, conns).
		GetSupportedBoards(board.PowerBoard(), []string{"/dev/ttyS5"}, nil)
	require.NoError(t, err)
	assert.Empty(t, boards)
}

func TestGetSupportedBoardsDuplicateAssetTag(t *testing.T) {
	idn := map[string]string{"*IDN?": "Student Robotics:PBv4B:SRO-AAD-DBS:4.4.1"}
	ports := []PortInfo{
		powerPort("/dev/ttyACM0", "SRO-AAD-DBS"),
		powerPort("/dev/ttyACM1", "SRO-AAD-DBS"),
	}
	conns := map[string]*fakePort{
		"/dev/ttyACM0": {responses: idn},
		"/dev/ttyACM1": {responses: idn},
	}

	_, err := testDiscoverer(ports, conns).GetSupportedBoards(board.PowerBoard(), nil, nil)
	require.Error(t, err, "a duplicate asset tag must never silently overwrite")
	assert.False(t, conns["/dev/ttyACM0"].IsOpen())
	assert.False(t, conns["/dev/ttyACM1"].IsOpen())
}

func TestGetSupportedBoardsDuplicateClosesCollectedBoards(t *testing.T) {
	dup := map[string]string{"*IDN?": "Student Robotics:PBv4B:SRO-AAD-DBS:4.4.1"}
	ports := []PortInfo{
		powerPort("/dev/ttyACM0", "SRO-BBB-111"),
		powerPort("/dev/ttyACM1", "SRO-AAD-DBS"),
		powerPort("/dev/ttyACM2", "SRO-AAD-DBS"),
	}
	conns := map[string]*fakePort{
		"/dev/ttyACM0": {responses: map[string]string{
			"*IDN?": "Student Robotics:PBv4B:SRO-BBB-111:4.4.1",
		}},
		"/dev/ttyACM1": {responses: dup},
		"/dev/ttyACM2": {responses: dup},
	}

	_, err := testDiscoverer(ports, conns).GetSupportedBoards(board.PowerBoard(), nil, nil)
	require.Error(t, err)
	for port, conn := range conns {
		assert.False(t, conn.IsOpen(), "%s must be closed when the scan aborts", port)
	}
}

func TestGetRawDevices(t *testing.T) {
	ports := []PortInfo{
		{
			Device:       "/dev/ttyUSB0",
			IsUSB:        true,
			VID:          0x0403,
			PID:          0x6001,
			SerialNumber: "A5002Lkk",
			Product:      "FT232R USB UART",
		},
		powerPort("/dev/ttyACM0", "SRO-AAD-DBS"),
	}
	conns := map[string]*fakePort{
		"/dev/ttyUSB0": {responses: map[string]string{}},
	}

	boards, err := testDiscoverer(ports, conns).
		GetRawDevices([]RawDevice{{SerialNumber: "A5002Lkk", Baud: 9600}})
	require.NoError(t, err)

	require.Len(t, boards, 1)
	b, ok := boards["A5002Lkk"]
	require.True(t, ok)
	assert.Equal(t, "0403:6001", b.Identity().SWVersion)
	assert.Equal(t, 9600, b.Family().Baud)
}

func TestSingular(t *testing.T) {
	one := map[string]int{"a": 1}
	value, err := Singular(one)
	require.NoError(t, err)
	assert.Equal(t, 1, value)

	_, err = Singular(map[string]int{})
	var multiplicity *MultiplicityError
	require.ErrorAs(t, err, &multiplicity)
	assert.Equal(t, 0, multiplicity.Count)
	assert.Equal(t, "no boards of this type found", err.Error())

	_, err = Singular(map[string]int{"a": 1, "b": 2})
	require.ErrorAs(t, err, &multiplicity)
	assert.Equal(t, 2, multiplicity.Count)
	assert.Contains(t, err.Error(), "found 2")
}
