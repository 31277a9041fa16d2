// internal/catalog/dtsu666.go
package catalog

// Measurement names as published on telemetry topics.
const (
	VoltagePhaseAB = "Voltage_Phase_AB"
	VoltagePhaseBC = "Voltage_Phase_BC"
	VoltagePhaseCA = "Voltage_Phase_CA"
	VoltagePhaseA  = "Voltage_Phase_A"
	VoltagePhaseB  = "Voltage_Phase_B"
	VoltagePhaseC  = "Voltage_Phase_C"

	CurrentPhaseA = "Current_Phase_A"
	CurrentPhaseB = "Current_Phase_B"
	CurrentPhaseC = "Current_Phase_C"

	TotalActivePower   = "Total_Active_Power"
	ActivePowerPhaseA  = "Active_Power_Phase_A"
	ActivePowerPhaseB  = "Active_Power_Phase_B"
	ActivePowerPhaseC  = "Active_Power_Phase_C"
	TotalReactivePower = "Total_Reactive_Power"

	ReactivePowerPhaseA = "Reactive_Power_Phase_A"
	ReactivePowerPhaseB = "Reactive_Power_Phase_B"
	ReactivePowerPhaseC = "Reactive_Power_Phase_C"

	TotalPowerFactor  = "Total_Power_Factor"
	PowerFactorPhaseA = "Power_Factor_Phase_A"
	PowerFactorPhaseB = "Power_Factor_Phase_B"
	PowerFactorPhaseC = "Power_Factor_Phase_C"

	Frequency = "Frequency"

	TotalImportEnergy = "Total_Import_Energy"
	TotalExportEnergy = "Total_Export_Energy"
)

// ---- scales (physical = raw * scale) ----

const (
	scaleVoltage = 0.1
	scaleCurrent = 0.001
	scalePower   = 0.1
	scalePF      = 0.001
	scaleFreq    = 0.01
	scaleEnergy  = 1
)

func spec(name string, addr uint16, scale float64) MeasurementSpec {
	return MeasurementSpec{Name: name, Address: addr, Words: WordsPerValue, Scale: scale}
}

var dtsu666Table = []MeasurementSpec{
	spec(VoltagePhaseAB, 0x2000, scaleVoltage),
	spec(VoltagePhaseBC, 0x2002, scaleVoltage),
	spec(VoltagePhaseCA, 0x2004, scaleVoltage),
	spec(VoltagePhaseA, 0x2006, scaleVoltage),
	spec(VoltagePhaseB, 0x2008, scaleVoltage),
	spec(VoltagePhaseC, 0x200A, scaleVoltage),

	spec(CurrentPhaseA, 0x200C, scaleCurrent),
	spec(CurrentPhaseB, 0x200E, scaleCurrent),
	spec(CurrentPhaseC, 0x2010, scaleCurrent),

	spec(TotalActivePower, 0x2012, scalePower),
	spec(ActivePowerPhaseA, 0x2014, scalePower),
	spec(ActivePowerPhaseB, 0x2016, scalePower),
	spec(ActivePowerPhaseC, 0x2018, scalePower),

	spec(TotalReactivePower, 0x201A, scalePower),
	spec(ReactivePowerPhaseA, 0x201C, scalePower),
	spec(ReactivePowerPhaseB, 0x201E, scalePower),
	spec(ReactivePowerPhaseC, 0x2020, scalePower),

	spec(TotalPowerFactor, 0x202A, scalePF),
	spec(PowerFactorPhaseA, 0x202C, scalePF),
	spec(PowerFactorPhaseB, 0x202E, scalePF),
	spec(PowerFactorPhaseC, 0x2030, scalePF),

	spec(Frequency, 0x2044, scaleFreq),

	spec(TotalImportEnergy, 0x401E, scaleEnergy),
	spec(TotalExportEnergy, 0x4028, scaleEnergy),
}

// fourWireNames is the poll order used in three-phase four-wire topology.
// Line-to-line voltages are not part of it.
var fourWireNames = []string{
	VoltagePhaseA, VoltagePhaseB, VoltagePhaseC,
	CurrentPhaseA, CurrentPhaseB, CurrentPhaseC,
	ActivePowerPhaseA, ActivePowerPhaseB, ActivePowerPhaseC,
	ReactivePowerPhaseA, ReactivePowerPhaseB, ReactivePowerPhaseC,
	PowerFactorPhaseA, PowerFactorPhaseB, PowerFactorPhaseC,
	TotalActivePower, TotalReactivePower, TotalPowerFactor,
	Frequency,
	TotalImportEnergy, TotalExportEnergy,
}
