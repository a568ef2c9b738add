// Package codec turns messages into wire frames and back.
//
// The debugging protocol is textual JSON, so JSON is the only wire codec. The
// interface stays so the client and server can be handed a different encoder in tests.
package codec

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// Default returns the codec used when none is configured.
func Default() Codec {
	return &JSONCodec{}
}
