// Package artifact is the versioned binary form of a template.
//
// Layout:
//
//	magic       4 bytes "EXFT"
//	version     uint16, big-endian
//	fingerprint 32 bytes, SHA-256 of the uncompressed template encoding
//	payload     versions 1 and 2: the template encoding
//	            version 3: mode byte, uvarint raw length, LZ4 block or raw bytes
//
// Version 2 added imports and template flags. Version 3 added payload
// compression. Readers accept [MinVersion]..[CurrentVersion].
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/safeconv"
)

// Schema versions.
const (
	MinVersion     uint16 = 1
	CurrentVersion uint16 = 3
)

// Extension is the file extension of artifact files.
const Extension = ".exft"

const (
	magic          = "EXFT"
	versionSize    = 2
	headerSize     = len(magic) + versionSize + sha256.Size
	payloadStored  = 0
	payloadLZ4     = 1
	maxPayloadSize = 64 << 20
)

// Fingerprint identifies the structural content of a template.
type Fingerprint [sha256.Size]byte

// String returns the hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 12 hex digits.
func (f Fingerprint) Short() string {
	return f.String()[:12]
}

// Artifact is a decoded artifact.
type Artifact struct {
	Version     uint16
	Fingerprint Fingerprint
	Template    *pattern.Template
}

// Marshal encodes t at [CurrentVersion]. The output is deterministic.
func Marshal(t *pattern.Template) []byte {
	data, _ := MarshalVersion(t, CurrentVersion)

	return data
}

// MarshalVersion encodes t at a supported schema version, for consumers that
// still read older artifacts. Version 1 cannot carry imports or flags and
// drops them.
func MarshalVersion(t *pattern.Template, version uint16) ([]byte, error) {
	if version < MinVersion || version > CurrentVersion {
		return nil, &VersionSkewError{Version: version, Min: MinVersion, Max: CurrentVersion}
	}

	enc := &encoder{version: version}
	enc.template(t)

	raw := enc.buf.Bytes()
	sum := sha256.Sum256(raw)

	var out bytes.Buffer

	out.Grow(headerSize + len(raw))
	out.WriteString(magic)

	var versionBytes [versionSize]byte

	binary.BigEndian.PutUint16(versionBytes[:], version)
	out.Write(versionBytes[:])
	out.Write(sum[:])

	if version < 3 {
		out.Write(raw)

		return out.Bytes(), nil
	}

	writePayload(&out, raw)

	return out.Bytes(), nil
}

// writePayload stores raw compressed when LZ4 shrinks it, verbatim otherwise.
func writePayload(out *bytes.Buffer, raw []byte) {
	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, compressed, nil)

	mode := byte(payloadLZ4)
	body := compressed[:written]

	if err != nil || written == 0 || written >= len(raw) {
		mode = payloadStored
		body = raw
	}

	out.WriteByte(mode)

	var lenBytes [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(lenBytes[:], safeconv.MustIntToUint64(len(raw)))
	out.Write(lenBytes[:n])
	out.Write(body)
}

// Version reads only the schema version tag of data.
func Version(data []byte) (uint16, error) {
	if len(data) < len(magic)+versionSize {
		return 0, malformed("truncated header")
	}

	if string(data[:len(magic)]) != magic {
		return 0, malformed("bad magic")
	}

	return binary.BigEndian.Uint16(data[len(magic):]), nil
}

// Unmarshal decodes an artifact. An unsupported version fails with
// [VersionSkewError] before anything else is read; corruption fails with
// [MalformedArtifactError].
func Unmarshal(data []byte) (*Artifact, error) {
	version, err := Version(data)
	if err != nil {
		return nil, err
	}

	if version < MinVersion || version > CurrentVersion {
		return nil, &VersionSkewError{Version: version, Min: MinVersion, Max: CurrentVersion}
	}

	if len(data) < headerSize {
		return nil, malformed("truncated header")
	}

	var sum Fingerprint

	copy(sum[:], data[len(magic)+versionSize:headerSize])

	raw := data[headerSize:]

	if version >= 3 {
		raw, err = readPayload(raw)
		if err != nil {
			return nil, err
		}
	}

	if sha256.Sum256(raw) != sum {
		return nil, malformed("fingerprint mismatch")
	}

	dec := &decoder{data: raw, version: version}

	tmpl, err := dec.template()
	if err != nil {
		return nil, err
	}

	if dec.pos != len(dec.data) {
		return nil, malformed(fmt.Sprintf("%d trailing bytes", len(dec.data)-dec.pos))
	}

	return &Artifact{Version: version, Fingerprint: sum, Template: tmpl}, nil
}

func readPayload(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, malformed("missing payload mode")
	}

	mode := data[0]

	rawLen, n := binary.Uvarint(data[1:])
	if n <= 0 {
		return nil, malformed("bad payload length")
	}

	size, ok := safeconv.Uint64ToInt(rawLen)
	if !ok || size > maxPayloadSize {
		return nil, malformed("payload too large")
	}

	body := data[1+n:]

	switch mode {
	case payloadStored:
		if len(body) != size {
			return nil, malformed("stored payload length mismatch")
		}

		return body, nil
	case payloadLZ4:
		raw := make([]byte, size)

		written, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return nil, &MalformedArtifactError{Reason: "lz4 payload", Err: err}
		}

		if written != size {
			return nil, malformed("lz4 payload length mismatch")
		}

		return raw, nil
	default:
		return nil, malformed(fmt.Sprintf("unknown payload mode %d", mode))
	}
}

// FingerprintOf returns the fingerprint t has at [CurrentVersion].
func FingerprintOf(t *pattern.Template) Fingerprint {
	enc := &encoder{version: CurrentVersion}
	enc.template(t)

	return sha256.Sum256(enc.buf.Bytes())
}
