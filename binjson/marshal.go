package binjson

// Marshal converts a Go value to a Value and encodes it to binary form.
func Marshal(x any) ([]byte, error) {
	v, err := ToValue(x)
	if err != nil {
		return nil, err
	}
	return Encode(v), nil
}

// Unmarshal decodes binary data and converts the resulting Value into out,
// which must be a non-nil pointer.
func Unmarshal(data []byte, out any) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}
	return FromValue(v, out)
}
