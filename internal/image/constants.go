// internal/image/constants.go
package image

// Virtual device layout constants.
// These values mirror the physical DTSU666 and MUST NOT be configurable.

// ---- IMAGE GEOMETRY ----

// Size is the number of 16-bit words in the image.
// Covers the highest catalog register (0x4028+2) with room to spare.
const Size = 0x4052

// ---- HEADER BLOCK ----

// HeaderAddress is the first register of the identification block.
const HeaderAddress = 0x0000

// HeaderWords is the length of the identification block.
const HeaderWords = 47

// HeaderDeviceIDSlot is the header word overwritten with the device identifier.
const HeaderDeviceIDSlot = HeaderWords - 1

// headerTemplate is the identification block reported by a real meter.
// Slot 0 = software version (207), slot 1 = programming code (701).
var headerTemplate = [HeaderWords]uint16{
	207, 701, 0, 0, 0, 0, 1, 10, 0, 0, 0, 1, 167, 0, 0,
	1000, 0, 0, 1000, 0, 0, 1000, 0, 0, 1000, 1, 10, 0, 0, 0,
	1000, 0, 0, 1000, 0, 0, 1000, 0, 0, 1000, 0, 0, 0, 0, 3, 3, 4,
}

// ---- CLOCK FIELD ----

// ClockAddress is the first register of the live clock.
const ClockAddress = 0x002F

// Clock slot indices relative to ClockAddress.
const (
	ClockSecond = 0
	ClockMinute = 1
	ClockHour   = 2
	ClockDay    = 3
	ClockMonth  = 4
	ClockYear   = 5
)

// ClockWords is the number of registers in the clock field.
const ClockWords = 6
