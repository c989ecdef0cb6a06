// Package xlstest writes small BIFF8 .xls workbooks for tests of the
// legacy spreadsheet reader.
package xlstest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"unicode/utf16"
)

const (
	sectorSize   = 512
	streamCutoff = 4096
	fatEntries   = sectorSize / 4

	endOfChain uint32 = 0xFFFFFFFE
	freeSect   uint32 = 0xFFFFFFFF
	fatSect    uint32 = 0xFFFFFFFD
	noStream   uint32 = 0xFFFFFFFF
)

// Write stores rows as the only sheet of a BIFF8 workbook at path. Cells may
// be strings (LABEL records), float64 or int (NUMBER records); nil and ""
// leave the cell empty.
func Write(path string, rows [][]any) error {
	data, err := Build(rows)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Build returns the bytes of a BIFF8 workbook holding rows.
func Build(rows [][]any) ([]byte, error) {
	stream, err := workbookStream(rows)
	if err != nil {
		return nil, err
	}
	return compoundFile(stream)
}

func workbookStream(rows [][]any) ([]byte, error) {
	var sheet bytes.Buffer
	writeRecord(&sheet, 0x0809, bofBody(0x0010))
	for r, row := range rows {
		for c, v := range row {
			body, id, err := cellRecord(r, c, v)
			if err != nil {
				return nil, err
			}
			if body != nil {
				writeRecord(&sheet, id, body)
			}
		}
	}
	writeRecord(&sheet, 0x000A, nil)

	name := "Hoja1"
	var globals bytes.Buffer
	writeRecord(&globals, 0x0809, bofBody(0x0005))
	// BOUNDSHEET: stream offset of the sheet, type, visibility, name
	boundSize := 4 + 6 + 1 + 1 + len(name)
	sheetPos := uint32(globals.Len() + boundSize + 4)
	bound := make([]byte, 0, 6+2+len(name))
	bound = binary.LittleEndian.AppendUint32(bound, sheetPos)
	bound = append(bound, 0, 0, byte(len(name)), 0)
	bound = append(bound, name...)
	writeRecord(&globals, 0x0085, bound)
	writeRecord(&globals, 0x000A, nil)

	stream := append(globals.Bytes(), sheet.Bytes()...)
	size := len(stream)
	if size < streamCutoff {
		size = streamCutoff
	}
	if rem := size % sectorSize; rem != 0 {
		size += sectorSize - rem
	}
	return append(stream, make([]byte, size-len(stream))...), nil
}

func bofBody(kind uint16) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint16(b[0:], 0x0600)
	binary.LittleEndian.PutUint16(b[2:], kind)
	binary.LittleEndian.PutUint32(b[12:], 0x0600)
	return b
}

func cellRecord(row, col int, v any) ([]byte, uint16, error) {
	head := make([]byte, 6)
	binary.LittleEndian.PutUint16(head[0:], uint16(row))
	binary.LittleEndian.PutUint16(head[2:], uint16(col))
	switch val := v.(type) {
	case nil:
		return nil, 0, nil
	case string:
		if val == "" {
			return nil, 0, nil
		}
		units := utf16.Encode([]rune(val))
		body := binary.LittleEndian.AppendUint16(head, uint16(len(units)))
		body = append(body, 0x01)
		for _, u := range units {
			body = binary.LittleEndian.AppendUint16(body, u)
		}
		return body, 0x0204, nil
	case int:
		return binary.LittleEndian.AppendUint64(head, math.Float64bits(float64(val))), 0x0203, nil
	case float64:
		return binary.LittleEndian.AppendUint64(head, math.Float64bits(val)), 0x0203, nil
	default:
		return nil, 0, fmt.Errorf("xlstest: unsupported cell %T at row %d col %d", v, row, col)
	}
}

func writeRecord(buf *bytes.Buffer, id uint16, body []byte) {
	var head [4]byte
	binary.LittleEndian.PutUint16(head[0:], id)
	binary.LittleEndian.PutUint16(head[2:], uint16(len(body)))
	buf.Write(head[:])
	buf.Write(body)
}

// compoundFile wraps stream as the "Workbook" stream of an OLE2 file laid
// out as: FAT sector, directory sector, stream sectors.
func compoundFile(stream []byte) ([]byte, error) {
	n := len(stream) / sectorSize
	if 2+n > fatEntries {
		return nil, fmt.Errorf("xlstest: workbook stream of %d bytes does not fit one FAT sector", len(stream))
	}

	header := make([]byte, sectorSize)
	copy(header, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	le := binary.LittleEndian
	le.PutUint16(header[24:], 0x003E)
	le.PutUint16(header[26:], 0x0003)
	le.PutUint16(header[28:], 0xFFFE)
	le.PutUint16(header[30:], 9)
	le.PutUint16(header[32:], 6)
	le.PutUint32(header[44:], 1)
	le.PutUint32(header[48:], 1)
	le.PutUint32(header[56:], streamCutoff)
	le.PutUint32(header[60:], endOfChain)
	le.PutUint32(header[68:], endOfChain)
	le.PutUint32(header[76:], 0)
	for off := 80; off < sectorSize; off += 4 {
		le.PutUint32(header[off:], freeSect)
	}

	fat := make([]byte, sectorSize)
	for i := 0; i < fatEntries; i++ {
		le.PutUint32(fat[i*4:], freeSect)
	}
	le.PutUint32(fat[0:], fatSect)
	le.PutUint32(fat[4:], endOfChain)
	for i := 0; i < n; i++ {
		next := uint32(2 + i + 1)
		if i == n-1 {
			next = endOfChain
		}
		le.PutUint32(fat[(2+i)*4:], next)
	}

	dir := make([]byte, sectorSize)
	dirEntry(dir[0:128], "Root Entry", 5, 1, endOfChain, 0)
	dirEntry(dir[128:256], "Workbook", 2, noStream, 2, uint32(len(stream)))

	out := make([]byte, 0, sectorSize*(3+n))
	out = append(out, header...)
	out = append(out, fat...)
	out = append(out, dir...)
	out = append(out, stream...)
	return out, nil
}

func dirEntry(b []byte, name string, kind byte, child, start, size uint32) {
	le := binary.LittleEndian
	units := utf16.Encode([]rune(name))
	for i, u := range units {
		le.PutUint16(b[i*2:], u)
	}
	le.PutUint16(b[64:], uint16((len(units)+1)*2))
	b[66] = kind
	b[67] = 1
	le.PutUint32(b[68:], noStream)
	le.PutUint32(b[72:], noStream)
	le.PutUint32(b[76:], child)
	le.PutUint32(b[116:], start)
	le.PutUint32(b[120:], size)
}
