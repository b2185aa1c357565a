// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package eventbus

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
)

// watermillUUIDHeader and watermillMetadataPrefix mirror the header
// names watermill's own NATS marshalers use, so a message round-trips
// its UUID and metadata through the wire format unchanged.
const watermillUUIDHeader = "_watermill_message_uuid"

// binaryMarshaler implements watermill-nats's Marshaler/Unmarshaler
// pair for *message.Message, carrying the UUID in a NATS header and
// the payload as the raw message body (already JSON from Bus.Publish).
type binaryMarshaler struct{}

// Marshal implements the watermill-nats Marshaler interface.
func (binaryMarshaler) Marshal(topic string, msg *message.Message) (*nats.Msg, error) {
	natsMsg := nats.NewMsg(topic)
	natsMsg.Header = nats.Header{}
	natsMsg.Header.Set(watermillUUIDHeader, msg.UUID)
	for k, v := range msg.Metadata {
		natsMsg.Header.Set(k, v)
	}
	natsMsg.Data = msg.Payload
	return natsMsg, nil
}

// Unmarshal implements the watermill-nats Unmarshaler interface.
func (binaryMarshaler) Unmarshal(natsMsg *nats.Msg) (*message.Message, error) {
	uuid := natsMsg.Header.Get(watermillUUIDHeader)
	msg := message.NewMessage(uuid, natsMsg.Data)
	for k := range natsMsg.Header {
		if k == watermillUUIDHeader {
			continue
		}
		msg.Metadata.Set(k, natsMsg.Header.Get(k))
	}
	return msg, nil
}
