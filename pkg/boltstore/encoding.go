package boltstore

import (
	"bytes"
	"encoding/gob"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

func init() {
	gob.Register(gamedb.Object{})
	gob.Register(gamedb.Channel{})
	gob.Register(gamedb.ChanAlias{})
}

// encodeObject serializes an Object to bytes using gob.
func encodeObject(obj *gamedb.Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeObject deserializes bytes back into an Object.
func decodeObject(data []byte) (*gamedb.Object, error) {
	var obj gamedb.Object
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// encodeChannel serializes a Channel to bytes using gob.
func encodeChannel(ch *gamedb.Channel) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeChannel deserializes bytes back into a Channel.
func decodeChannel(data []byte) (*gamedb.Channel, error) {
	var ch gamedb.Channel
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// encodeChanAlias serializes a ChanAlias to bytes using gob.
func encodeChanAlias(ca *gamedb.ChanAlias) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ca); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeChanAlias deserializes bytes back into a ChanAlias.
func decodeChanAlias(data []byte) (*gamedb.ChanAlias, error) {
	var ca gamedb.ChanAlias
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ca); err != nil {
		return nil, err
	}
	return &ca, nil
}

// encodeStateStack serializes a state path list using gob.
func encodeStateStack(paths []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(paths); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeStateStack deserializes bytes back into a state path list.
func decodeStateStack(data []byte) ([]string, error) {
	var paths []string
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&paths); err != nil {
		return nil, err
	}
	return paths, nil
}
