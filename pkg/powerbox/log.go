// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

// Debug log notifications carry a one-byte header: severity in bits 0-2,
// continuation marker in bits 3-5. The remaining bytes are a UTF-8 chunk;
// chunks may split multi-byte runes, so reassembly must concatenate bytes
// before decoding text.

// LogChunkSize is the UTF-8 byte budget per notification after the header,
// sized for a 20-byte BLE MTU.
const LogChunkSize = 19

// MakeLogHeader packs a log chunk header byte.
func MakeLogHeader(sev LogSeverity, marker LogMarker) byte {
	return byte(sev)&0x07 | byte(marker)&0x07<<3
}

// SplitLogHeader unpacks a log chunk header byte.
func SplitLogHeader(b byte) (LogSeverity, LogMarker) {
	return LogSeverity(b & 0x07), LogMarker(b >> 3 & 0x07)
}

// EncodeLogMessage chunks one message into log notifications; the
// station-side encoder. Single-chunk messages carry only a start marker,
// matching deployed firmware; multi-chunk messages end with an end-marker
// chunk.
func EncodeLogMessage(sev LogSeverity, msg string) [][]byte {
	raw := []byte(msg)
	if len(raw) <= LogChunkSize {
		chunk := append([]byte{MakeLogHeader(sev, LogMarkerStart)}, raw...)
		return [][]byte{chunk}
	}
	var frames [][]byte
	for off := 0; off < len(raw); off += LogChunkSize {
		end := off + LogChunkSize
		if end > len(raw) {
			end = len(raw)
		}
		marker := LogMarkerMore
		switch {
		case off == 0:
			marker = LogMarkerStart
		case end == len(raw):
			marker = LogMarkerEnd
		}
		frames = append(frames, append([]byte{MakeLogHeader(sev, marker)}, raw[off:end]...))
	}
	return frames
}
