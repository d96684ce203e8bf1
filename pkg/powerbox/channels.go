// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

import "github.com/google/uuid"

// Channel identifies one logical GATT stream of the powerbox service. The
// numeric values double as the stream ids on the development bridge, so
// they are part of the wire contract and must not be renumbered.
type Channel uint8

// Channels
const (
	ChannelUnknown  Channel = 0x00
	ChannelBMS      Channel = 0x01 // state, read|notify
	ChannelPSU      Channel = 0x02 // state, read|notify
	ChannelInverter Channel = 0x03 // state, read|notify
	ChannelMCU      Channel = 0x04 // state, read|notify
	ChannelATS      Channel = 0x05 // state, read|notify
	ChannelHistory  Channel = 0x06 // notify only
	ChannelLog      Channel = 0x07 // notify only
	ChannelCommand  Channel = 0x08 // write only

	// Device Information service (Bluetooth SIG, read only)
	ChannelManufacturerName Channel = 0x10
	ChannelModelNumber      Channel = 0x11
	ChannelFirmwareRevision Channel = 0x12
)

// Powerbox service and characteristic UUIDs
var (
	ServiceUUID       = uuid.MustParse("c7a90000-5b9d-4a8e-81f6-ec721e8c4a2d")
	BMSStateUUID      = uuid.MustParse("c7a90001-5b9d-4a8e-81f6-ec721e8c4a2d")
	PSUStateUUID      = uuid.MustParse("c7a90002-5b9d-4a8e-81f6-ec721e8c4a2d")
	InverterStateUUID = uuid.MustParse("c7a90003-5b9d-4a8e-81f6-ec721e8c4a2d")
	MCUStateUUID      = uuid.MustParse("c7a90004-5b9d-4a8e-81f6-ec721e8c4a2d")
	ATSStateUUID      = uuid.MustParse("c7a90005-5b9d-4a8e-81f6-ec721e8c4a2d")
	HistoryUUID       = uuid.MustParse("c7a90006-5b9d-4a8e-81f6-ec721e8c4a2d")
	LogUUID           = uuid.MustParse("c7a90007-5b9d-4a8e-81f6-ec721e8c4a2d")
	CommandUUID       = uuid.MustParse("c7a90008-5b9d-4a8e-81f6-ec721e8c4a2d")
)

// Device Information service UUIDs (Bluetooth SIG assigned numbers)
var (
	DeviceInfoServiceUUID = uuid.MustParse("0000180a-0000-1000-8000-00805f9b34fb")
	ManufacturerNameUUID  = uuid.MustParse("00002a29-0000-1000-8000-00805f9b34fb")
	ModelNumberUUID       = uuid.MustParse("00002a24-0000-1000-8000-00805f9b34fb")
	FirmwareRevisionUUID  = uuid.MustParse("00002a26-0000-1000-8000-00805f9b34fb")
)

// ChannelByUUID maps a characteristic UUID to its Channel. Unrecognized
// UUIDs report ok=false.
func ChannelByUUID(u uuid.UUID) (Channel, bool) {
	switch u {
	case BMSStateUUID:
		return ChannelBMS, true
	case PSUStateUUID:
		return ChannelPSU, true
	case InverterStateUUID:
		return ChannelInverter, true
	case MCUStateUUID:
		return ChannelMCU, true
	case ATSStateUUID:
		return ChannelATS, true
	case HistoryUUID:
		return ChannelHistory, true
	case LogUUID:
		return ChannelLog, true
	case CommandUUID:
		return ChannelCommand, true
	case ManufacturerNameUUID:
		return ChannelManufacturerName, true
	case ModelNumberUUID:
		return ChannelModelNumber, true
	case FirmwareRevisionUUID:
		return ChannelFirmwareRevision, true
	default:
		return ChannelUnknown, false
	}
}

// UUID returns the characteristic UUID for c, or the zero UUID when c has
// none.
func (c Channel) UUID() uuid.UUID {
	switch c {
	case ChannelBMS:
		return BMSStateUUID
	case ChannelPSU:
		return PSUStateUUID
	case ChannelInverter:
		return InverterStateUUID
	case ChannelMCU:
		return MCUStateUUID
	case ChannelATS:
		return ATSStateUUID
	case ChannelHistory:
		return HistoryUUID
	case ChannelLog:
		return LogUUID
	case ChannelCommand:
		return CommandUUID
	case ChannelManufacturerName:
		return ManufacturerNameUUID
	case ChannelModelNumber:
		return ModelNumberUUID
	case ChannelFirmwareRevision:
		return FirmwareRevisionUUID
	default:
		return uuid.UUID{}
	}
}

// String returns the wire-log name of the channel.
func (c Channel) String() string {
	switch c {
	case ChannelBMS:
		return "BMS_STATE"
	case ChannelPSU:
		return "PSU_STATE"
	case ChannelInverter:
		return "INVERTER_STATE"
	case ChannelMCU:
		return "MCU_STATE"
	case ChannelATS:
		return "ATS_STATE"
	case ChannelHistory:
		return "HISTORY"
	case ChannelLog:
		return "LOG"
	case ChannelCommand:
		return "COMMAND"
	case ChannelManufacturerName:
		return "MANUFACTURER_NAME"
	case ChannelModelNumber:
		return "MODEL_NUMBER"
	case ChannelFirmwareRevision:
		return "FIRMWARE_REVISION"
	default:
		return "UNKNOWN"
	}
}

// StateChannels lists the subsystem state channels in wire order.
func StateChannels() []Channel {
	return []Channel{ChannelBMS, ChannelPSU, ChannelInverter, ChannelMCU, ChannelATS}
}

// StateFrameLength returns the fixed frame length for a state channel, or
// ok=false for channels without a fixed layout.
func StateFrameLength(c Channel) (int, bool) {
	switch c {
	case ChannelBMS:
		return BMSFrameLength, true
	case ChannelPSU:
		return PSUFrameLength, true
	case ChannelInverter:
		return InverterFrameLength, true
	case ChannelMCU:
		return MCUFrameLength, true
	case ChannelATS:
		return ATSFrameLength, true
	default:
		return 0, false
	}
}
