package dns

import (
	"github.com/tinylib/msgp/msgp"
)

const cacheFileVersion = 1

// cacheFile is the on-disk form of a CachingResolver.
type cacheFile struct {
	Version int
	Entries map[string]cacheEntry
}

var (
	_ msgp.Marshaler   = (*cacheFile)(nil)
	_ msgp.Unmarshaler = (*cacheFile)(nil)
	_ msgp.Sizer       = (*cacheFile)(nil)
)

// MarshalMsg implements msgp.Marshaler.
func (f *cacheFile) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, f.Msgsize())
	o = msgp.AppendMapHeader(o, 2)
	o = msgp.AppendString(o, "v")
	o = msgp.AppendInt(o, f.Version)
	o = msgp.AppendString(o, "entries")
	o = msgp.AppendMapHeader(o, uint32(len(f.Entries)))
	for name, e := range f.Entries {
		o = msgp.AppendString(o, name)
		o = e.appendMsg(o)
	}
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (f *cacheFile) UnmarshalMsg(b []byte) ([]byte, error) {
	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, msgp.WrapError(err)
	}
	for ; n > 0; n-- {
		var field []byte
		field, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return b, msgp.WrapError(err)
		}
		switch string(field) {
		case "v":
			f.Version, b, err = msgp.ReadIntBytes(b)
			if err != nil {
				return b, msgp.WrapError(err, "Version")
			}
		case "entries":
			var count uint32
			count, b, err = msgp.ReadMapHeaderBytes(b)
			if err != nil {
				return b, msgp.WrapError(err, "Entries")
			}
			// Each entry takes at least a name and a map header.
			if uint64(count)*2 > uint64(len(b)) {
				return b, msgp.WrapError(msgp.ErrShortBytes, "Entries")
			}
			f.Entries = make(map[string]cacheEntry, count)
			for ; count > 0; count-- {
				var name string
				name, b, err = msgp.ReadStringBytes(b)
				if err != nil {
					return b, msgp.WrapError(err, "Entries")
				}
				var e cacheEntry
				b, err = e.unmarshalMsg(b)
				if err != nil {
					return b, msgp.WrapError(err, "Entries", name)
				}
				f.Entries[name] = e
			}
		default:
			b, err = msgp.Skip(b)
			if err != nil {
				return b, msgp.WrapError(err)
			}
		}
	}
	return b, nil
}

// Msgsize implements msgp.Sizer. It is an upper bound.
func (f *cacheFile) Msgsize() int {
	s := msgp.MapHeaderSize + msgp.StringPrefixSize + 1 + msgp.IntSize +
		msgp.StringPrefixSize + 7 + msgp.MapHeaderSize
	for name, e := range f.Entries {
		s += msgp.StringPrefixSize + len(name) + e.msgsize()
	}
	return s
}

func (e *cacheEntry) appendMsg(o []byte) []byte {
	o = msgp.AppendMapHeader(o, 4)
	o = msgp.AppendString(o, "records")
	o = msgp.AppendArrayHeader(o, uint32(len(e.Records)))
	for _, r := range e.Records {
		o = msgp.AppendString(o, r)
	}
	o = msgp.AppendString(o, "nx")
	o = msgp.AppendBool(o, e.NotFound)
	o = msgp.AppendString(o, "ad")
	o = msgp.AppendBool(o, e.Authentic)
	o = msgp.AppendString(o, "t")
	o = msgp.AppendInt64(o, e.Fetched)
	return o
}

func (e *cacheEntry) unmarshalMsg(b []byte) ([]byte, error) {
	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, err
	}
	for ; n > 0; n-- {
		var field []byte
		field, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return b, err
		}
		switch string(field) {
		case "records":
			var count uint32
			count, b, err = msgp.ReadArrayHeaderBytes(b)
			if err != nil {
				return b, msgp.WrapError(err, "Records")
			}
			if uint64(count) > uint64(len(b)) {
				return b, msgp.WrapError(msgp.ErrShortBytes, "Records")
			}
			e.Records = make([]string, count)
			for i := range e.Records {
				e.Records[i], b, err = msgp.ReadStringBytes(b)
				if err != nil {
					return b, msgp.WrapError(err, "Records", i)
				}
			}
		case "nx":
			e.NotFound, b, err = msgp.ReadBoolBytes(b)
			if err != nil {
				return b, msgp.WrapError(err, "NotFound")
			}
		case "ad":
			e.Authentic, b, err = msgp.ReadBoolBytes(b)
			if err != nil {
				return b, msgp.WrapError(err, "Authentic")
			}
		case "t":
			e.Fetched, b, err = msgp.ReadInt64Bytes(b)
			if err != nil {
				return b, msgp.WrapError(err, "Fetched")
			}
		default:
			b, err = msgp.Skip(b)
			if err != nil {
				return b, err
			}
		}
	}
	return b, nil
}

func (e *cacheEntry) msgsize() int {
	s := msgp.MapHeaderSize +
		msgp.StringPrefixSize + 7 + msgp.ArrayHeaderSize +
		msgp.StringPrefixSize + 2 + msgp.BoolSize +
		msgp.StringPrefixSize + 2 + msgp.BoolSize +
		msgp.StringPrefixSize + 1 + msgp.Int64Size
	for _, r := range e.Records {
		s += msgp.StringPrefixSize + len(r)
	}
	return s
}
