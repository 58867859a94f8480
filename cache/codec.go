package cache

import "github.com/vmihailenco/msgpack/v5"

// Codec serializes items for key derivation and outputs for persistence.
// Ext identifies the format and becomes the cache entry file extension.
type Codec interface {
	Ext() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Msgpack returns the default codec. MessagePack keeps entries compact and
// handles arbitrary Go values without a compile-time schema.
func Msgpack() Codec {
	return msgpackCodec{}
}

type msgpackCodec struct{}

func (msgpackCodec) Ext() string { return "msgpack" }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
