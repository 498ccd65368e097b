// Package decoder contains the default [domain.Decoder] implementation.
package decoder

import (
	"fmt"
	"reflect"

	goreflect "github.com/goccy/go-reflect"
	"github.com/mitchellh/mapstructure"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

var (
	objectIDType = reflect.TypeOf(value.ObjectID{})
	stringType   = reflect.TypeOf("")
)

// Decoder implements domain.Decoder.
type Decoder struct{}

// NewDecoder returns a new implementation of domain.Decoder.
func NewDecoder() domain.Decoder {
	return &Decoder{}
}

// Decode implements domain.Decoder. Documents and values are copied as they
// are, any other target is filled by mapstructure from the plain Go form of
// source using the docengine struct tag.
func (d *Decoder) Decode(source *value.Document, target any) error {
	if target == nil {
		return domain.ErrTargetNil
	}

	if goreflect.ValueNoEscapeOf(target).Kind() != goreflect.Ptr {
		return domain.ErrNonPointer
	}

	switch t := target.(type) {
	case *value.Document:
		*t = *source.Clone()
		return nil
	case **value.Document:
		*t = source.Clone()
		return nil
	case *value.Value:
		*t = source.Clone()
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    value.TagName,
		Result:     target,
		DecodeHook: objectIDToString,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(value.ToGo(source)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDecode{Target: target}, err)
	}
	return nil
}

// objectIDToString lets string fields receive ObjectIDs in hex.
func objectIDToString(from, to reflect.Type, data any) (any, error) {
	if from == objectIDType && to == stringType {
		return data.(value.ObjectID).Hex(), nil
	}
	return data, nil
}
