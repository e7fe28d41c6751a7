// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opcuadrv

import (
	"context"
	"fmt"
	"time"

	"github.com/gopcua/opcua/ua"

	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
)

// dateLayout is the wire format for type id 13 (DateTime).
const dateLayout = "2006-01-02 15:04:05"

// writer returns a tagstore.Writer that resolves path to its node id and
// coerces the incoming value per the builtin type id discovered at
// Connect time, then issues a single OPC-UA Write service call.
func (p *PLC) writer(path string) tagstore.Writer {
	return func(v tagstore.Value) error {
		p.mu.Lock()
		client := p.client
		p.mu.Unlock()
		if client == nil {
			return fmt.Errorf("opcua %s: %w", p.cfg.Key, scadaerr.ErrTransport)
		}

		p.idxMu.RLock()
		nid, ok := p.nodeByPath[path]
		var tid ua.TypeID
		if ok {
			tid = p.typeID[nid.String()]
		}
		p.idxMu.RUnlock()
		if !ok {
			return fmt.Errorf("opcua %s: %q: %w", p.cfg.Key, path, scadaerr.ErrUnknownTag)
		}

		variant, err := coerce(tid, v)
		if err != nil {
			return err
		}

		req := &ua.WriteRequest{
			NodesToWrite: []*ua.WriteValue{
				{
					NodeID:      nid,
					AttributeID: ua.AttributeIDValue,
					Value: &ua.DataValue{
						EncodingMask: ua.DataValueValue,
						Value:        variant,
					},
				},
			},
		}
		resp, err := client.Write(context.Background(), req)
		if err != nil {
			return fmt.Errorf("opcua %s: write %q: %w", p.cfg.Key, path, scadaerr.ErrTransport)
		}
		if len(resp.Results) == 0 || resp.Results[0] != ua.StatusOK {
			return fmt.Errorf("opcua %s: write %q rejected: %w", p.cfg.Key, path, scadaerr.ErrProtocol)
		}

		p.idxMu.RLock()
		tag := p.byNodeID[nid.String()]
		p.idxMu.RUnlock()
		if tag != nil {
			tag.Update(variant.Value())
		}
		return nil
	}
}

// coerce converts v to the OPC-UA builtin type tid. Unknown type ids are
// rejected rather than guessed at.
func coerce(tid ua.TypeID, v tagstore.Value) (*ua.Variant, error) {
	switch tid {
	case ua.TypeIDBoolean:
		b, err := asBool(v)
		if err != nil {
			return nil, err
		}
		return ua.MustVariant(b), nil
	case ua.TypeIDSByte, ua.TypeIDByte, ua.TypeIDInt16, ua.TypeIDUint16,
		ua.TypeIDInt32, ua.TypeIDUint32, ua.TypeIDInt64, ua.TypeIDUint64:
		n, err := asInt(v)
		if err != nil {
			return nil, err
		}
		return ua.MustVariant(castInt(tid, n)), nil
	case ua.TypeIDFloat:
		f, err := asFloat(v)
		if err != nil {
			return nil, err
		}
		return ua.MustVariant(float32(f)), nil
	case ua.TypeIDDouble:
		f, err := asFloat(v)
		if err != nil {
			return nil, err
		}
		return ua.MustVariant(f), nil
	case ua.TypeIDString:
		s, err := asString(v)
		if err != nil {
			return nil, err
		}
		return ua.MustVariant(s), nil
	case ua.TypeIDDateTime:
		t, err := asTime(v)
		if err != nil {
			return nil, err
		}
		return ua.MustVariant(t), nil
	default:
		return nil, fmt.Errorf("opcua: write type id %d: %w", tid, scadaerr.ErrUnsupportedType)
	}
}

func castInt(tid ua.TypeID, n int64) any {
	switch tid {
	case ua.TypeIDSByte:
		return int8(n)
	case ua.TypeIDByte:
		return uint8(n)
	case ua.TypeIDInt16:
		return int16(n)
	case ua.TypeIDUint16:
		return uint16(n)
	case ua.TypeIDInt32:
		return int32(n)
	case ua.TypeIDUint32:
		return uint32(n)
	case ua.TypeIDUint64:
		return uint64(n)
	default:
		return n
	}
}

func asBool(v tagstore.Value) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	}
	return false, fmt.Errorf("opcua: %v: %w", v, scadaerr.ErrUnsupportedType)
}

func asInt(v tagstore.Value) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("opcua: %v: %w", v, scadaerr.ErrUnsupportedType)
}

func asFloat(v tagstore.Value) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	}
	return 0, fmt.Errorf("opcua: %v: %w", v, scadaerr.ErrUnsupportedType)
}

func asString(v tagstore.Value) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("opcua: %v: %w", v, scadaerr.ErrUnsupportedType)
	}
	return s, nil
}

func asTime(v tagstore.Value) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(dateLayout, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("opcua: %q: %w", t, scadaerr.ErrUnsupportedType)
		}
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("opcua: %v: %w", v, scadaerr.ErrUnsupportedType)
}
