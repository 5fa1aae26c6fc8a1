package storage

import (
	"fmt"
	"reflect"

	sdkmath "cosmossdk.io/math"
	"github.com/vmihailenco/msgpack/v5"
)

// sdkmath.Int has no msgpack support of its own; store it as a decimal string.
func init() {
	msgpack.Register(sdkmath.Int{},
		func(e *msgpack.Encoder, v reflect.Value) error {
			i := v.Interface().(sdkmath.Int)
			if i.IsNil() {
				return e.EncodeString("")
			}
			return e.EncodeString(i.String())
		},
		func(d *msgpack.Decoder, v reflect.Value) error {
			s, err := d.DecodeString()
			if err != nil {
				return err
			}
			if s == "" {
				v.Set(reflect.ValueOf(sdkmath.Int{}))
				return nil
			}
			i, ok := sdkmath.NewIntFromString(s)
			if !ok {
				return fmt.Errorf("decode int %q", s)
			}
			v.Set(reflect.ValueOf(i))
			return nil
		})
}
