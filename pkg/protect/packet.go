/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package protect

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Update packets are two frames, action then payload. Each frame is an
// 8 byte header followed by the frame body:
//
//	byte 0    frame type (1 action, 2 payload)
//	byte 1    payload format (1 JSON, 2 UTF-8 text, 3 raw buffer)
//	byte 2    1 when the body is zlib deflated
//	byte 3    reserved
//	byte 4-7  body size, big endian
const (
	packetHeaderSize = 8

	frameTypeAction  = 1
	frameTypePayload = 2
)

var (
	ErrPacketTruncated = errors.New("update packet truncated")
	ErrPacketFrameType = errors.New("unexpected update packet frame type")
	ErrPacketFormat    = errors.New("unsupported update packet payload format")

	errTrailingBytes = errors.New("update packet has trailing data")
)

// PayloadFormat is the encoding of an update packet frame body.
type PayloadFormat uint8

const (
	PayloadJSON   PayloadFormat = 1
	PayloadText   PayloadFormat = 2
	PayloadBuffer PayloadFormat = 3
)

func (f PayloadFormat) String() string {
	switch f {
	case PayloadJSON:
		return "json"
	case PayloadText:
		return "text"
	case PayloadBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// PacketAction is the action frame of an update packet.
type PacketAction struct {
	Action      string `json:"action"`
	NewUpdateID string `json:"newUpdateId"`
	ModelKey    string `json:"modelKey"`
	ID          string `json:"id"`
}

// UpdatePacket is a decoded binary realtime update.
type UpdatePacket struct {
	Action  PacketAction
	Format  PayloadFormat
	Payload []byte
}

// JSON returns the payload as raw JSON when the payload frame carried JSON.
func (p *UpdatePacket) JSON() (json.RawMessage, bool) {
	if p.Format != PayloadJSON {
		return nil, false
	}

	return json.RawMessage(p.Payload), true
}

// UpdatePacketDecoder is the default PacketDecoder.
type UpdatePacketDecoder struct{}

type packetFrame struct {
	frameType uint8
	format    PayloadFormat
	body      []byte
}

// Decode parses both frames of an update packet.
func (UpdatePacketDecoder) Decode(data []byte) (*UpdatePacket, error) {
	action, rest, err := readFrame(data)
	if err != nil {
		return nil, fmt.Errorf("action frame: %w", err)
	}

	if action.frameType != frameTypeAction {
		return nil, fmt.Errorf("%w: %d in action position", ErrPacketFrameType, action.frameType)
	}

	if action.format != PayloadJSON {
		return nil, fmt.Errorf("%w: action frame is %s", ErrPacketFormat, action.format)
	}

	payload, rest, err := readFrame(rest)
	if err != nil {
		return nil, fmt.Errorf("payload frame: %w", err)
	}

	if payload.frameType != frameTypePayload {
		return nil, fmt.Errorf("%w: %d in payload position", ErrPacketFrameType, payload.frameType)
	}

	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", errTrailingBytes, len(rest))
	}

	pkt := &UpdatePacket{Format: payload.format, Payload: payload.body}

	if err := json.Unmarshal(action.body, &pkt.Action); err != nil {
		return nil, fmt.Errorf("action frame: %w", err)
	}

	if payload.format == PayloadJSON && !json.Valid(payload.body) {
		return nil, fmt.Errorf("payload frame: %w", errInvalidJSON)
	}

	return pkt, nil
}

func readFrame(data []byte) (packetFrame, []byte, error) {
	if len(data) < packetHeaderSize {
		return packetFrame{}, nil, fmt.Errorf("%w: %d header bytes", ErrPacketTruncated, len(data))
	}

	size := binary.BigEndian.Uint32(data[4:packetHeaderSize])
	end := uint64(packetHeaderSize) + uint64(size)

	if uint64(len(data)) < end {
		return packetFrame{}, nil, fmt.Errorf("%w: need %d bytes, have %d", ErrPacketTruncated, end, len(data))
	}

	f := packetFrame{
		frameType: data[0],
		format:    PayloadFormat(data[1]),
		body:      data[packetHeaderSize:end],
	}

	switch f.format {
	case PayloadJSON, PayloadText, PayloadBuffer:
	default:
		return packetFrame{}, nil, fmt.Errorf("%w: %s", ErrPacketFormat, f.format)
	}

	if data[2] == 1 {
		body, err := inflate(f.body)
		if err != nil {
			return packetFrame{}, nil, err
		}

		f.body = body
	} else {
		f.body = append([]byte(nil), f.body...)
	}

	return f, data[end:], nil
}

func inflate(body []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to inflate frame: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to inflate frame: %w", err)
	}

	return out, nil
}

// EncodeUpdatePacket builds the wire form of an update packet, deflating both
// frames when deflate is set. It is the inverse of UpdatePacketDecoder.Decode.
func EncodeUpdatePacket(action PacketAction, format PayloadFormat, payload []byte, deflate bool) ([]byte, error) {
	actionBody, err := json.Marshal(action)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	if err := writeFrame(&buf, frameTypeAction, PayloadJSON, actionBody, deflate); err != nil {
		return nil, err
	}

	if err := writeFrame(&buf, frameTypePayload, format, payload, deflate); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeFrame(buf *bytes.Buffer, frameType uint8, format PayloadFormat, body []byte, deflate bool) error {
	var flag byte

	if deflate {
		var z bytes.Buffer

		w := zlib.NewWriter(&z)
		if _, err := w.Write(body); err != nil {
			return err
		}

		if err := w.Close(); err != nil {
			return err
		}

		body = z.Bytes()
		flag = 1
	}

	header := [packetHeaderSize]byte{frameType, byte(format), flag, 0}
	binary.BigEndian.PutUint32(header[4:], uint32(len(body))) //nolint:gosec // frames are far below 4GiB

	buf.Write(header[:])
	buf.Write(body)

	return nil
}
