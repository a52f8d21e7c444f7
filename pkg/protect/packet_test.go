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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAction() PacketAction {
	return PacketAction{
		Action:      "update",
		NewUpdateID: "2f6c7a4e-0c1f-4d8c-9a55-7f3b4c1e9d20",
		ModelKey:    "camera",
		ID:          "61b3f5c7033ea703e7000424",
	}
}

func TestUpdatePacketDecoder_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		format  PayloadFormat
		payload []byte
		deflate bool
	}{
		{name: "json", format: PayloadJSON, payload: []byte(`{"isMotionDetected":true}`)},
		{name: "json deflated", format: PayloadJSON, payload: []byte(`{"lastRing":1700000000000}`), deflate: true},
		{name: "text", format: PayloadText, payload: []byte("snapshot ready")},
		{name: "buffer deflated", format: PayloadBuffer, payload: []byte{0x00, 0xff, 0x10, 0x20}, deflate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeUpdatePacket(testAction(), tt.format, tt.payload, tt.deflate)
			require.NoError(t, err)

			pkt, err := UpdatePacketDecoder{}.Decode(data)
			require.NoError(t, err)

			assert.Equal(t, testAction(), pkt.Action)
			assert.Equal(t, tt.format, pkt.Format)
			assert.Equal(t, tt.payload, pkt.Payload)

			raw, ok := pkt.JSON()
			assert.Equal(t, tt.format == PayloadJSON, ok)

			if ok {
				assert.JSONEq(t, string(tt.payload), string(raw))
			}
		})
	}
}

func TestUpdatePacketDecoder_Errors(t *testing.T) {
	valid, err := EncodeUpdatePacket(testAction(), PayloadJSON, []byte(`{"a":1}`), false)
	require.NoError(t, err)

	actionLen := packetHeaderSize + int(binary.BigEndian.Uint32(valid[4:8]))

	withByte := func(i int, b byte) []byte {
		out := append([]byte(nil), valid...)
		out[i] = b

		return out
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrPacketTruncated},
		{name: "short header", data: valid[:5], want: ErrPacketTruncated},
		{name: "short action body", data: valid[:packetHeaderSize+2], want: ErrPacketTruncated},
		{name: "missing payload frame", data: valid[:actionLen], want: ErrPacketTruncated},
		{name: "short payload body", data: valid[:len(valid)-1], want: ErrPacketTruncated},
		{name: "payload frame first", data: withByte(0, frameTypePayload), want: ErrPacketFrameType},
		{name: "action in payload slot", data: withByte(actionLen, frameTypeAction), want: ErrPacketFrameType},
		{name: "unknown format", data: withByte(actionLen+1, 9), want: ErrPacketFormat},
		{name: "text action frame", data: withByte(1, byte(PayloadText)), want: ErrPacketFormat},
		{name: "trailing data", data: append(append([]byte(nil), valid...), 0x01), want: errTrailingBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UpdatePacketDecoder{}.Decode(tt.data)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdatePacketDecoder_BadBodies(t *testing.T) {
	t.Run("invalid json payload", func(t *testing.T) {
		data, err := EncodeUpdatePacket(testAction(), PayloadJSON, []byte(`{"a":`), false)
		require.NoError(t, err)

		_, err = UpdatePacketDecoder{}.Decode(data)
		require.ErrorIs(t, err, errInvalidJSON)
	})

	t.Run("corrupt deflate stream", func(t *testing.T) {
		data, err := EncodeUpdatePacket(testAction(), PayloadText, []byte("hello"), false)
		require.NoError(t, err)

		data[2] = 1

		_, err = UpdatePacketDecoder{}.Decode(data)
		require.Error(t, err)
	})
}

func TestPayloadFormatString(t *testing.T) {
	assert.Equal(t, "json", PayloadJSON.String())
	assert.Equal(t, "text", PayloadText.String())
	assert.Equal(t, "buffer", PayloadBuffer.String())
	assert.Equal(t, "format(7)", PayloadFormat(7).String())
}
