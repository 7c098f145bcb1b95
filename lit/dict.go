// Package lit has the ordered literal container projected output is
// assembled from. JSON objects carry no key order of their own; Dict keeps
// insertion order so responses render fields the way they were requested.
package lit

import (
	"bytes"
	"encoding/json"
)

// Keyed is one key value pair of a Dict.
type Keyed struct {
	Key string
	Val interface{}
}

// Dict is a string keyed container preserving insertion order.
type Dict struct {
	List []Keyed
}

// Key returns the value stored under key and whether it is present.
func (d *Dict) Key(key string) (interface{}, bool) {
	if d != nil {
		for _, kv := range d.List {
			if kv.Key == key {
				return kv.Val, true
			}
		}
	}
	return nil, false
}

// SetKey stores v under key. New keys append at the end.
func (d *Dict) SetKey(key string, v interface{}) {
	for i, kv := range d.List {
		if kv.Key == key {
			d.List[i].Val = v
			return
		}
	}
	d.List = append(d.List, Keyed{Key: key, Val: v})
}

// Keys lists all keys in insertion order.
func (d *Dict) Keys() []string {
	if d == nil {
		return nil
	}
	res := make([]string, 0, len(d.List))
	for _, kv := range d.List {
		res = append(res, kv.Key)
	}
	return res
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.List)
}

// MarshalJSON writes the dict as a JSON object in insertion order.
func (d *Dict) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	if d != nil {
		for i, kv := range d.List {
			if i > 0 {
				b.WriteByte(',')
			}
			key, err := json.Marshal(kv.Key)
			if err != nil {
				return nil, err
			}
			b.Write(key)
			b.WriteByte(':')
			val, err := json.Marshal(kv.Val)
			if err != nil {
				return nil, err
			}
			b.Write(val)
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
