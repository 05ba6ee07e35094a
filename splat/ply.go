package splat

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/arloliu/sog4d/endian"
	"github.com/arloliu/sog4d/errs"
)

type plyFormat uint8

const (
	plyASCII plyFormat = iota + 1
	plyBinary
)

type plyType uint8

const (
	plyInt8 plyType = iota + 1
	plyUint8
	plyInt16
	plyUint16
	plyInt32
	plyUint32
	plyFloat32
	plyFloat64
)

var plyTypes = map[string]plyType{
	"char": plyInt8, "int8": plyInt8,
	"uchar": plyUint8, "uint8": plyUint8,
	"short": plyInt16, "int16": plyInt16,
	"ushort": plyUint16, "uint16": plyUint16,
	"int": plyInt32, "int32": plyInt32,
	"uint": plyUint32, "uint32": plyUint32,
	"float": plyFloat32, "float32": plyFloat32,
	"double": plyFloat64, "float64": plyFloat64,
}

func (t plyType) size() int {
	switch t {
	case plyInt8, plyUint8:
		return 1
	case plyInt16, plyUint16:
		return 2
	case plyInt32, plyUint32, plyFloat32:
		return 4
	default:
		return 8
	}
}

type plyProperty struct {
	name   string
	typ    plyType
	offset int
}

type plyHeader struct {
	format plyFormat
	order  endian.EndianEngine
	count  int
	props  []plyProperty
	stride int
}

const restPrefix = "f_rest_"

// MaxVertexCount is the largest vertex count ReadPLY accepts. Point ids are
// stored as u32 in delta streams.
const MaxVertexCount = math.MaxInt32

// vertexChunk is how many vertices readVertices reserves room for at a time,
// so a header that overstates the count fails on the missing body instead of
// allocating for it up front.
const vertexChunk = 1 << 16

// requiredFields are the vertex properties every frame must carry.
var requiredFields = []string{
	"x", "y", "z",
	"f_dc_0", "f_dc_1", "f_dc_2",
	"opacity",
	"scale_0", "scale_1", "scale_2",
	"rot_0", "rot_1", "rot_2", "rot_3",
}

// ReadPLYFile reads the frame stored in the PLY file at path.
func ReadPLYFile(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	frame, err := ReadPLY(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return frame, nil
}

// ReadPLY reads a Gaussian splat frame from a PLY stream.
//
// Supported are the ascii, binary_little_endian and binary_big_endian
// formats with scalar vertex properties of any PLY numeric type; list
// properties are rejected. The vertex element must be the first element
// with data. Every field of requiredFields must be present. f_rest_<n>
// properties are collected in numeric order of n and grouped into RGB
// triplets in that order.
//
// Parameters:
//   - r: PLY data, positioned at the "ply" magic line
//
// Returns:
//   - *Frame: The decoded raw attributes
//   - error: ErrInvalidPly for malformed or unsupported files, ErrMissingField
//     for absent attributes
func ReadPLY(r io.Reader) (*Frame, error) {
	br := bufio.NewReaderSize(r, 1<<16)

	hdr, err := readPLYHeader(br)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(hdr.props))
	for i, p := range hdr.props {
		index[p.name] = i
	}

	var missing []string
	for _, name := range requiredFields {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", errs.ErrMissingField, strings.Join(missing, ", "))
	}

	rest := restFields(hdr.props)
	if len(rest)%3 != 0 {
		return nil, fmt.Errorf("%w: %d f_rest_* properties is not a multiple of 3", errs.ErrInvalidPly, len(rest))
	}

	values, err := readVertices(br, hdr)
	if err != nil {
		return nil, err
	}

	nprops := len(hdr.props)
	frame := NewFrame(hdr.count, len(rest)/3)

	gather := func(dst []float32, names ...string) {
		cols := make([]int, len(names))
		for i, name := range names {
			cols[i] = index[name]
		}
		per := len(cols)
		for v := range hdr.count {
			row := values[v*nprops : (v+1)*nprops]
			for j, c := range cols {
				dst[v*per+j] = float32(row[c])
			}
		}
	}

	gather(frame.Positions, "x", "y", "z")
	gather(frame.DC, "f_dc_0", "f_dc_1", "f_dc_2")
	gather(frame.Opacity, "opacity")
	gather(frame.Scale, "scale_0", "scale_1", "scale_2")
	gather(frame.Rotation, "rot_0", "rot_1", "rot_2", "rot_3")
	if len(rest) > 0 {
		gather(frame.Rest, rest...)
	}

	return frame, nil
}

func readPLYHeader(br *bufio.Reader) (*plyHeader, error) {
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("%w: empty file", errs.ErrInvalidPly)
	}
	if strings.TrimSpace(line) != "ply" {
		return nil, fmt.Errorf("%w: invalid magic %q", errs.ErrInvalidPly, strings.TrimSpace(line))
	}

	hdr := &plyHeader{count: -1}
	inVertex := false
	dataBefore := false

	for {
		line, err := br.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			return nil, fmt.Errorf("%w: unexpected end of file before end_header", errs.ErrInvalidPly)
		}
		line = strings.TrimSpace(line)
		if line == "end_header" {
			break
		}
		if err == io.EOF {
			return nil, fmt.Errorf("%w: unexpected end of file before end_header", errs.ErrInvalidPly)
		}

		parts := strings.Fields(line)
		if len(parts) == 0 || parts[0] == "comment" || parts[0] == "obj_info" {
			continue
		}

		switch parts[0] {
		case "format":
			if len(parts) < 3 {
				return nil, fmt.Errorf("%w: invalid format line %q", errs.ErrInvalidPly, line)
			}
			if parts[1] == "ascii" {
				hdr.format = plyASCII
				break
			}
			order, ok := endian.ForPLYFormat(parts[1])
			if !ok {
				return nil, fmt.Errorf("%w: unsupported format %q", errs.ErrInvalidPly, parts[1])
			}
			hdr.format = plyBinary
			hdr.order = order

		case "element":
			if len(parts) != 3 {
				return nil, fmt.Errorf("%w: invalid element line %q", errs.ErrInvalidPly, line)
			}
			count, err := strconv.Atoi(parts[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: invalid element count in %q", errs.ErrInvalidPly, line)
			}
			if parts[1] == "vertex" && count > MaxVertexCount {
				return nil, fmt.Errorf("%w: vertex count %d exceeds %d", errs.ErrInvalidPly, count, MaxVertexCount)
			}
			inVertex = parts[1] == "vertex"
			if inVertex {
				if dataBefore {
					return nil, fmt.Errorf("%w: vertex must be the first element with data", errs.ErrInvalidPly)
				}
				hdr.count = count
				hdr.props = hdr.props[:0]
			} else if hdr.count < 0 && count > 0 {
				dataBefore = true
			}

		case "property":
			if !inVertex {
				continue
			}
			if len(parts) < 3 {
				return nil, fmt.Errorf("%w: invalid property line %q", errs.ErrInvalidPly, line)
			}
			if parts[1] == "list" {
				return nil, fmt.Errorf("%w: list property %q is not supported", errs.ErrInvalidPly, parts[len(parts)-1])
			}
			typ, ok := plyTypes[parts[1]]
			if !ok {
				return nil, fmt.Errorf("%w: unsupported property type %q", errs.ErrInvalidPly, parts[1])
			}
			hdr.props = append(hdr.props, plyProperty{name: parts[2], typ: typ, offset: hdr.stride})
			hdr.stride += typ.size()
		}
	}

	switch {
	case hdr.format == 0:
		return nil, fmt.Errorf("%w: missing format line", errs.ErrInvalidPly)
	case hdr.count < 0:
		return nil, fmt.Errorf("%w: missing vertex element", errs.ErrInvalidPly)
	case len(hdr.props) == 0:
		return nil, fmt.Errorf("%w: vertex element has no properties", errs.ErrInvalidPly)
	}

	return hdr, nil
}

// restFields returns the f_rest_<n> property names ordered by n.
func restFields(props []plyProperty) []string {
	type numbered struct {
		n    int
		name string
	}

	var found []numbered
	for _, p := range props {
		suffix, ok := strings.CutPrefix(p.name, restPrefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		found = append(found, numbered{n: n, name: p.name})
	}
	slices.SortStableFunc(found, func(a, b numbered) int { return a.n - b.n })

	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}

	return names
}

// readVertices decodes every vertex property as float64, vertex-major.
func readVertices(br *bufio.Reader, hdr *plyHeader) ([]float64, error) {
	nprops := len(hdr.props)
	values := make([]float64, 0, min(hdr.count, vertexChunk)*nprops)
	reserve := func() {
		if len(values)+nprops > cap(values) {
			values = slices.Grow(values, min(hdr.count-len(values)/nprops, vertexChunk)*nprops)
		}
	}

	if hdr.format == plyASCII {
		for v := range hdr.count {
			line, err := br.ReadString('\n')
			if err != nil && line == "" {
				return nil, fmt.Errorf("%w: unexpected end of file at vertex %d", errs.ErrInvalidPly, v)
			}
			items := strings.Fields(line)
			if len(items) < nprops {
				return nil, fmt.Errorf("%w: vertex %d has %d columns, expected %d", errs.ErrInvalidPly, v, len(items), nprops)
			}
			if len(items) > nprops {
				return nil, fmt.Errorf("%w: vertex %d has unexpected extra columns", errs.ErrInvalidPly, v)
			}
			reserve()
			for j, tok := range items {
				val, err := parseASCII(tok, hdr.props[j].typ)
				if err != nil {
					return nil, fmt.Errorf("%w: vertex %d property %s: %v", errs.ErrInvalidPly, v, hdr.props[j].name, err)
				}
				values = append(values, val)
			}
		}

		return values, nil
	}

	row := make([]byte, hdr.stride)
	for v := range hdr.count {
		if _, err := io.ReadFull(br, row); err != nil {
			return nil, fmt.Errorf("%w: unexpected end of file at vertex %d of %d", errs.ErrInvalidPly, v, hdr.count)
		}
		reserve()
		for _, p := range hdr.props {
			values = append(values, decodeBinary(row[p.offset:], p.typ, hdr.order))
		}
	}

	return values, nil
}

func parseASCII(tok string, typ plyType) (float64, error) {
	switch typ {
	case plyFloat32, plyFloat64:
		return strconv.ParseFloat(tok, 64)
	case plyUint8, plyUint16, plyUint32:
		v, err := strconv.ParseUint(tok, 10, typ.size()*8)
		return float64(v), err
	default:
		v, err := strconv.ParseInt(tok, 10, typ.size()*8)
		return float64(v), err
	}
}

func decodeBinary(b []byte, typ plyType, order endian.EndianEngine) float64 {
	switch typ {
	case plyInt8:
		return float64(int8(b[0]))
	case plyUint8:
		return float64(b[0])
	case plyInt16:
		return float64(int16(order.Uint16(b)))
	case plyUint16:
		return float64(order.Uint16(b))
	case plyInt32:
		return float64(int32(order.Uint32(b)))
	case plyUint32:
		return float64(order.Uint32(b))
	case plyFloat32:
		return float64(math.Float32frombits(order.Uint32(b)))
	default:
		return math.Float64frombits(order.Uint64(b))
	}
}

// WritePLY writes f as a binary little-endian PLY file with float
// properties. It is the inverse of ReadPLY and is used to produce test
// sequences and exports.
func WritePLY(w io.Writer, f *Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat %s 1.0\nelement vertex %d\n", endian.PLYBinaryLittleEndian, f.Count)
	for _, name := range requiredFields {
		fmt.Fprintf(bw, "property float %s\n", name)
	}
	for i := range f.RestCoeffs * 3 {
		fmt.Fprintf(bw, "property float %s%d\n", restPrefix, i)
	}
	bw.WriteString("end_header\n")

	row := make([]byte, 0, (len(requiredFields)+f.RestCoeffs*3)*4)
	put := func(vs ...float32) {
		for _, v := range vs {
			row = engine.AppendUint32(row, math.Float32bits(v))
		}
	}
	for i := range f.Count {
		row = row[:0]
		put(f.Positions[i*3 : i*3+3]...)
		put(f.DC[i*3 : i*3+3]...)
		put(f.Opacity[i])
		put(f.Scale[i*3 : i*3+3]...)
		put(f.Rotation[i*4 : i*4+4]...)
		put(f.RestAt(i)...)
		if _, err := bw.Write(row); err != nil {
			return fmt.Errorf("write ply: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write ply: %w", err)
	}

	return nil
}

// WritePLYFile writes f to path with WritePLY.
func WritePLYFile(path string, f *Frame) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ply: %w", err)
	}
	if err := WritePLY(out, f); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
