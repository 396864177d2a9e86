package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const recordFormatVersion = 1

// validityOffset is the byte position of the validity flag within an
// encoded record. The invalidation Lua script patches this byte in place;
// moving it requires a format version bump and a script change.
const validityOffset = 1

func encodeRecord(r *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersion)

	valid := byte(0)
	if r.Valid {
		valid = 1
	}
	buf.WriteByte(valid)

	if err := binary.Write(&buf, binary.BigEndian, r.IdentityID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt.Unix()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt.Unix()); err != nil {
		return nil, err
	}

	for _, s := range []string{r.RefreshToken, r.IP, r.UserAgent, r.DeviceClass} {
		if len(s) > 65535 {
			return nil, errors.New("record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(s))); err != nil {
			return nil, err
		}
		buf.WriteString(s)
	}

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersion {
		return nil, errors.New("invalid record version")
	}

	valid, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	r := &Record{Valid: valid == 1}

	if err := binary.Read(reader, binary.BigEndian, &r.IdentityID); err != nil {
		return nil, err
	}

	var created, expires int64
	if err := binary.Read(reader, binary.BigEndian, &created); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expires); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(created, 0)
	r.ExpiresAt = time.Unix(expires, 0)

	fields := []*string{&r.RefreshToken, &r.IP, &r.UserAgent, &r.DeviceClass}
	for _, field := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	return r, nil
}
