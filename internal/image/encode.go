// internal/image/encode.go
package image

import "time"

// EncodeHeader returns the identification block with the device id in its last word.
// No IO. No side effects.
func EncodeHeader(deviceID uint8) []uint16 {
	regs := make([]uint16, HeaderWords)
	copy(regs, headerTemplate[:])
	regs[HeaderDeviceIDSlot] = uint16(deviceID)
	return regs
}

// EncodeClock converts t into the six clock registers, unscaled.
func EncodeClock(t time.Time) []uint16 {
	regs := make([]uint16, ClockWords)

	regs[ClockSecond] = uint16(t.Second())
	regs[ClockMinute] = uint16(t.Minute())
	regs[ClockHour] = uint16(t.Hour())
	regs[ClockDay] = uint16(t.Day())
	regs[ClockMonth] = uint16(t.Month())
	regs[ClockYear] = uint16(t.Year())

	return regs
}
