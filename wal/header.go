package wal

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/barracuda156/mailindex/internal/fs"
)

var (
	walMagic         = [4]byte{'M', 'I', 'W', '1'}
	walHeaderVersion = uint16(1)
)

const walHeaderLen = 16

type headerInfo struct {
	Compressed       bool
	CompressionLevel int
}

func writeHeader(w io.Writer, info headerInfo) error {
	var buf [walHeaderLen]byte
	copy(buf[0:4], walMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], walHeaderVersion)
	var flags uint16
	if info.Compressed {
		flags |= 1
	}
	binary.LittleEndian.PutUint16(buf[6:8], flags)
	buf[8] = uint8(info.CompressionLevel)
	// buf[9:16] reserved

	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("wal: write header: %w", err)
	}
	return nil
}

func readHeader(f fs.File) (headerInfo, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return headerInfo{}, fmt.Errorf("wal: seek header: %w", err)
	}

	var buf [walHeaderLen]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return headerInfo{}, fmt.Errorf("wal: read header: %w", err)
	}
	if [4]byte(buf[0:4]) != walMagic {
		return headerInfo{}, fmt.Errorf("wal: invalid header magic")
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != walHeaderVersion {
		return headerInfo{}, fmt.Errorf("wal: unsupported header version %d", v)
	}
	flags := binary.LittleEndian.Uint16(buf[6:8])

	return headerInfo{
		Compressed:       flags&1 != 0,
		CompressionLevel: int(buf[8]),
	}, nil
}
