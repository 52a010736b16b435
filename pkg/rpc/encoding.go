package rpc

import (
	"encoding/base64"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/mr-tron/base58"
)

// EncodeAccountData encodes account data according to the specified encoding.
func EncodeAccountData(data []byte, encoding Encoding) (interface{}, error) {
	switch encoding {
	case EncodingBase58:
		return []string{base58.Encode(data), string(EncodingBase58)}, nil

	case EncodingBase64Zstd:
		compressed, err := compressZstd(data)
		if err != nil {
			return nil, fmt.Errorf("zstd compression failed: %w", err)
		}
		return []string{base64.StdEncoding.EncodeToString(compressed), string(EncodingBase64Zstd)}, nil

	default:
		return []string{base64.StdEncoding.EncodeToString(data), string(EncodingBase64)}, nil
	}
}

// DecodeData decodes data from the specified encoding.
func DecodeData(encoded string, encoding Encoding) ([]byte, error) {
	switch encoding {
	case EncodingBase58:
		return base58.Decode(encoded)

	case EncodingBase64Zstd:
		compressed, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("base64 decode failed: %w", err)
		}
		return decompressZstd(compressed)

	default:
		return base64.StdEncoding.DecodeString(encoded)
	}
}

// compressZstd compresses data using zstd.
func compressZstd(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}

// decompressZstd decompresses zstd-compressed data.
func decompressZstd(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}

// ApplyDataSlice applies a data slice to account data.
func ApplyDataSlice(data []byte, slice *DataSlice) []byte {
	if slice == nil {
		return data
	}

	start := slice.Offset
	if start >= uint64(len(data)) {
		return []byte{}
	}

	end := start + slice.Length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}

	return data[start:end]
}
