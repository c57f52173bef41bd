package pickleops

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Scanner decodes a pickle byte stream one opcode at a time, in the style
// of bufio.Scanner: call Scan in a loop, read Record after each true
// return, and check Err once Scan returns false.
type Scanner struct {
	r   *bufio.Reader
	pos int64

	record Record
	err    error
}

// NewScanner wraps r for opcode-at-a-time decoding.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

// Err returns the first decoding error encountered, if any. Only
// meaningful after Scan has returned false.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

// Record returns the opcode decoded by the most recent successful Scan.
func (s *Scanner) Record() Record { return s.record }

// Scan decodes the next opcode. It returns false at end of stream or on
// the first decode error (distinguishable via Err).
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}

	opByte, err := s.r.ReadByte()
	if err != nil {
		s.err = err
		return false
	}
	s.pos++
	startPos := s.pos - 1
	op := Opcode(opByte)

	arg, err := s.decodeArg(op)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = s.fail("truncated argument for opcode %s", op)
		}
		s.err = err
		return false
	}

	s.record = Record{Op: op, Arg: arg, Pos: startPos}
	return true
}

// All adapts the Scan/Record/Err loop to a Go 1.23 iterator. The caller
// should check Err after the sequence is exhausted to distinguish a clean
// EOF from a decode failure.
func (s *Scanner) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for s.Scan() {
			if !yield(s.Record()) {
				return
			}
		}
	}
}

// Scan is a convenience wrapper: it decodes every opcode in r and returns
// them, or the first DecodeError encountered.
func Scan(r io.Reader) ([]Record, error) {
	s := NewScanner(r)
	var records []Record
	for s.Scan() {
		records = append(records, s.Record())
	}
	return records, s.Err()
}

func (s *Scanner) fail(format string, args ...any) error {
	return &DecodeError{Pos: s.pos, Message: fmt.Sprintf(format, args...)}
}

func (s *Scanner) readByte() (byte, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, err
	}
	s.pos++
	return b, nil
}

func (s *Scanner) readN(n int64) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(s.r, buf)
	s.pos += int64(read)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Scanner) readUint(n int64) (uint64, error) {
	buf, err := s.readN(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v, nil
}

// readLine reads up to and including a trailing '\n', returning the line
// without the terminator.
func (s *Scanner) readLine() (string, error) {
	line, err := s.r.ReadString('\n')
	s.pos += int64(len(line))
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

func (s *Scanner) decodeArg(op Opcode) (any, error) {
	switch op {
	case NewTrue:
		return true, nil
	case NewFalse:
		return false, nil

	case Mark, Stop, Pop, PopMark, Dup, None_,
		Reduce, Build, Dict, EmptyDict, Appends, List, EmptyList,
		SetItem, Tuple, EmptyTuple, SetItems, NewObj, Tuple1, Tuple2,
		Tuple3, EmptySet, FrozenSet, StackGlobal, Memoize, Append,
		AddItems, Obj, NewObjEx, BinPersId:
		return nil, nil

	case Int:
		return s.decodeTextInt()
	case BinInt:
		v, err := s.readUint(4)
		if err != nil {
			return nil, err
		}
		return int64(int32(v)), nil
	case BinInt1:
		v, err := s.readByte()
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case BinInt2:
		v, err := s.readUint(2)
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case Long:
		return s.decodeTextLong()
	case Long1:
		return s.decodeLong(1)
	case Long4:
		return s.decodeLong(4)

	case Float:
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		f, perr := strconv.ParseFloat(line, 64)
		if perr != nil {
			return nil, s.fail("malformed FLOAT literal %q", line)
		}
		return f, nil
	case BinFloat:
		buf, err := s.readN(8)
		if err != nil {
			return nil, err
		}
		bits := binary.BigEndian.Uint64(buf)
		return math.Float64frombits(bits), nil

	case String:
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		return unquotePickleString(line), nil
	case BinString:
		return s.decodeLatin1String(4)
	case ShortBinString:
		return s.decodeLatin1String(1)
	case Unicode:
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		return line, nil
	case BinUnicode:
		return s.decodeUTF8String(4)
	case ShortBinUnicode:
		return s.decodeUTF8String(1)
	case BinUnicode8:
		return s.decodeUTF8String(8)

	case BinBytes:
		return s.decodeBytes(4)
	case ShortBinBytes:
		return s.decodeBytes(1)
	case BinBytes8:
		return s.decodeBytes(8)
	case ByteArray8:
		return s.decodeBytes(8)

	case Get:
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		n, perr := strconv.ParseInt(line, 10, 64)
		if perr != nil {
			return nil, s.fail("malformed GET index %q", line)
		}
		return n, nil
	case BinGet:
		v, err := s.readByte()
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case LongBinGet:
		v, err := s.readUint(4)
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case Put:
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		n, perr := strconv.ParseInt(line, 10, 64)
		if perr != nil {
			return nil, s.fail("malformed PUT index %q", line)
		}
		return n, nil
	case BinPut:
		v, err := s.readByte()
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case LongBinPut:
		v, err := s.readUint(4)
		if err != nil {
			return nil, err
		}
		return int64(v), nil

	case Global, Inst:
		module, err := s.readLine()
		if err != nil {
			return nil, err
		}
		name, err := s.readLine()
		if err != nil {
			return nil, err
		}
		return module + " " + name, nil

	case PersId:
		return s.readLine()

	case Proto:
		v, err := s.readByte()
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case Frame:
		v, err := s.readUint(8)
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case Ext1:
		v, err := s.readByte()
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case Ext2:
		v, err := s.readUint(2)
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case Ext4:
		v, err := s.readUint(4)
		if err != nil {
			return nil, err
		}
		return int64(v), nil

	default:
		return nil, s.fail("unknown or unimplemented opcode %s", op)
	}
}

func (s *Scanner) decodeTextInt() (any, error) {
	line, err := s.readLine()
	if err != nil {
		return nil, err
	}
	switch line {
	case "01":
		return true, nil
	case "00":
		return false, nil
	}
	if n, perr := strconv.ParseInt(line, 10, 64); perr == nil {
		return n, nil
	}
	v, ok := new(big.Int).SetString(line, 10)
	if !ok {
		return nil, s.fail("malformed INT literal %q", line)
	}
	return v, nil
}

func (s *Scanner) decodeTextLong() (any, error) {
	line, err := s.readLine()
	if err != nil {
		return nil, err
	}
	line = strings.TrimSuffix(line, "L")
	v, ok := new(big.Int).SetString(line, 10)
	if !ok {
		return nil, s.fail("malformed LONG literal %q", line)
	}
	return v, nil
}

func (s *Scanner) decodeLong(lengthBytes int64) (any, error) {
	n, err := s.readUint(lengthBytes)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return big.NewInt(0), nil
	}
	raw, err := s.readN(int64(n))
	if err != nil {
		return nil, err
	}
	return decodeTwosComplementLE(raw), nil
}

// decodeTwosComplementLE interprets raw as a little-endian, arbitrary-width
// two's-complement integer (pickle's LONG1/LONG4 encoding).
func decodeTwosComplementLE(raw []byte) *big.Int {
	be := make([]byte, len(raw))
	for i, b := range raw {
		be[len(raw)-1-i] = b
	}
	v := new(big.Int).SetBytes(be)
	if be[0]&0x80 != 0 {
		full := new(big.Int).Lsh(big.NewInt(1), uint(len(be)*8))
		v.Sub(v, full)
	}
	return v
}

func (s *Scanner) decodeLatin1String(lengthBytes int64) (any, error) {
	n, err := s.readUint(lengthBytes)
	if err != nil {
		return nil, err
	}
	raw, err := s.readN(int64(n))
	if err != nil {
		return nil, err
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

func (s *Scanner) decodeUTF8String(lengthBytes int64) (any, error) {
	n, err := s.readUint(lengthBytes)
	if err != nil {
		return nil, err
	}
	raw, err := s.readN(int64(n))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (s *Scanner) decodeBytes(lengthBytes int64) (any, error) {
	n, err := s.readUint(lengthBytes)
	if err != nil {
		return nil, err
	}
	return s.readN(int64(n))
}

// unquotePickleString strips the repr-style quoting STRING uses (protocol
// 0 text strings) without attempting a fully general Python repr parse.
func unquotePickleString(line string) string {
	if len(line) >= 2 {
		quote := line[0]
		if (quote == '\'' || quote == '"') && line[len(line)-1] == quote {
			return strings.ReplaceAll(line[1:len(line)-1], "\\"+string(quote), string(quote))
		}
	}
	return line
}
