// serialcomm/utils.go
package serialcomm

import (
	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum returns the CRC16/MODBUS of a frame. It is only used to tag log
// lines so both ends of a link can be matched up; it never goes on the wire.
func Checksum(frame string) uint16 {
	return crc16.Checksum([]byte(frame), crcTable)
}
