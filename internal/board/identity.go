// internal/board/identity.go
package board

import (
	"fmt"
	"strings"
)

// BoardIdentity identifies a single physical board. The asset tag is the
// stable discovery key: the USB serial number for enumerated boards, or the
// port path for manually specified ones.
//
// An identity is populated in two phases: a provisional one from the USB
// descriptor, then a confirmed one from the board's own identify response.
// Board-reported type and version override the descriptor-derived fields; the
// asset tag survives from enumeration.
type BoardIdentity struct {
	Manufacturer string
	BoardType    string
	AssetTag     string
	SWVersion    string
}

func (id BoardIdentity) String() string {
	return fmt.Sprintf("%s asset=%s fw=%s", id.BoardType, id.AssetTag, id.SWVersion)
}

// IncorrectBoardError indicates a candidate port answered the identify
// handshake but is not a board of the expected family. Discovery treats this
// differently from a connection failure.
type IncorrectBoardError struct {
	Returned string
	Expected string
}

func (e *IncorrectBoardError) Error() string {
	return fmt.Sprintf("board returned type %q, expected %q", e.Returned, e.Expected)
}

// parseIDNResponse parses the four colon-delimited fields of an *IDN?
// response: manufacturer, board type, asset tag, firmware version.
func parseIDNResponse(response string, initial BoardIdentity) (BoardIdentity, error) {
	fields := strings.Split(response, ":")
	if len(fields) != 4 {
		return BoardIdentity{}, fmt.Errorf(
			"malformed identity response: expected 4 fields, got %d in %q", len(fields), response)
	}

	return BoardIdentity{
		Manufacturer: fields[0],
		BoardType:    fields[1],
		AssetTag:     fields[2],
		SWVersion:    fields[3],
	}, nil
}

// parseVersionResponse parses the two-field type:version response of the
// Arduino firmware's version query. The firmware cannot read the USB serial
// number, so the asset tag is carried over from the provisional identity.
func parseVersionResponse(response string, initial BoardIdentity) (BoardIdentity, error) {
	fields := strings.Split(response, ":")
	if len(fields) != 2 {
		return BoardIdentity{}, fmt.Errorf(
			"malformed version response: expected 2 fields, got %d in %q", len(fields), response)
	}

	manufacturer := "Arduino"
	if strings.HasPrefix(fields[0], "SR") {
		manufacturer = "Student Robotics"
	}
	return BoardIdentity{
		Manufacturer: manufacturer,
		BoardType:    fields[0],
		AssetTag:     initial.AssetTag,
		SWVersion:    fields[1],
	}, nil
}
