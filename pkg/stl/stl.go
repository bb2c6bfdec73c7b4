package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/models"
)

// Triangle represents a single triangle in an STL file
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// ErrTruncated is returned when a binary file holds fewer facets than its
// header announces.
var ErrTruncated = errors.New("stl: truncated binary data")

// weldTolerance is the grid size used to merge coincident vertices.
const weldTolerance = 1e-6

// Parse reads an ASCII or binary STL file and returns an indexed mesh with
// coincident vertices welded.
func Parse(filename string) (*models.TriangleMesh, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read STL file: %w", err)
	}
	tris, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(filename), err)
	}
	return ToMesh(tris), nil
}

// Decode parses raw STL bytes. A file that starts with "solid" but whose size
// matches the binary layout is treated as binary, since many exporters write
// that word into the binary header.
func Decode(data []byte) ([]Triangle, error) {
	if isASCII(data) {
		return decodeASCII(bytes.NewReader(data))
	}
	return decodeBinary(data)
}

func isASCII(data []byte) bool {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return false
	}
	if len(data) >= 84 {
		n := binary.LittleEndian.Uint32(data[80:84])
		if int64(84)+int64(n)*50 == int64(len(data)) {
			return false
		}
	}
	return true
}

func decodeASCII(r io.Reader) ([]Triangle, error) {
	scanner := bufio.NewScanner(r)
	var (
		out    []Triangle
		cur    Triangle
		nverts int
	)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "facet":
			if len(fields) < 5 || fields[1] != "normal" {
				return nil, fmt.Errorf("line %d: malformed facet", line)
			}
			n, err := parseVec(fields[2:5])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			cur = Triangle{Normal: n}
			nverts = 0
		case "vertex":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: malformed vertex", line)
			}
			v, err := parseVec(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			switch nverts {
			case 0:
				cur.Vertex1 = v
			case 1:
				cur.Vertex2 = v
			case 2:
				cur.Vertex3 = v
			default:
				return nil, fmt.Errorf("line %d: facet has more than three vertices", line)
			}
			nverts++
		case "endfacet":
			if nverts != 3 {
				return nil, fmt.Errorf("line %d: facet has %d vertices", line, nverts)
			}
			out = append(out, cur)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASCII STL: %w", err)
	}
	return out, nil
}

func parseVec(fields []string) ([3]float32, error) {
	var v [3]float32
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(x)
	}
	return v, nil
}

func decodeBinary(data []byte) ([]Triangle, error) {
	if len(data) < 84 {
		return nil, ErrTruncated
	}
	n := int(binary.LittleEndian.Uint32(data[80:84]))
	if len(data) < 84+n*50 {
		return nil, fmt.Errorf("%w: header announces %d facets", ErrTruncated, n)
	}
	out := make([]Triangle, n)
	for i := range out {
		rec := data[84+i*50 : 84+(i+1)*50]
		out[i] = Triangle{
			Normal:  readVec(rec[0:12]),
			Vertex1: readVec(rec[12:24]),
			Vertex2: readVec(rec[24:36]),
			Vertex3: readVec(rec[36:48]),
		}
	}
	return out, nil
}

func readVec(b []byte) [3]float32 {
	return [3]float32{
		math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[8:12])),
	}
}

// ToMesh welds the facets of an STL soup into an indexed mesh.
func ToMesh(tris []Triangle) *models.TriangleMesh {
	type key [3]int64
	mesh := &models.TriangleMesh{Triangles: make([][3]int, 0, len(tris))}
	seen := make(map[key]int)
	index := func(v [3]float32) int {
		p := r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
		k := key{
			int64(math.Round(p.X / weldTolerance)),
			int64(math.Round(p.Y / weldTolerance)),
			int64(math.Round(p.Z / weldTolerance)),
		}
		if i, ok := seen[k]; ok {
			return i
		}
		seen[k] = len(mesh.Points)
		mesh.Points = append(mesh.Points, p)
		return seen[k]
	}
	for _, t := range tris {
		a, b, c := index(t.Vertex1), index(t.Vertex2), index(t.Vertex3)
		if a == b || b == c || a == c {
			continue
		}
		mesh.Triangles = append(mesh.Triangles, [3]int{a, b, c})
	}
	return mesh
}

// FromMesh expands an indexed mesh into STL facets with face normals.
func FromMesh(mesh *models.TriangleMesh) []Triangle {
	out := make([]Triangle, 0, mesh.NumTriangles())
	for _, t := range mesh.Triangles {
		a, b, c := mesh.Points[t[0]], mesh.Points[t[1]], mesh.Points[t[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		if l := r3.Norm(n); l > 0 {
			n = r3.Scale(1/l, n)
		}
		out = append(out, Triangle{
			Normal:  vec32(n),
			Vertex1: vec32(a),
			Vertex2: vec32(b),
			Vertex3: vec32(c),
		})
	}
	return out
}

func vec32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

// WriteMesh saves mesh as a binary STL file.
func WriteMesh(filename string, mesh *models.TriangleMesh) error {
	return SaveToSTL(filename, FromMesh(mesh))
}

// SaveToSTL saves triangles to a binary STL file
func SaveToSTL(filename string, triangles []Triangle) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	// 80-byte header
	header := make([]byte, 80)
	copy(header, "resectionplan binary STL")
	if _, err := w.Write(header); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return err
	}
	for _, t := range triangles {
		if err := binary.Write(w, binary.LittleEndian, t); err != nil {
			return err
		}
		// attribute byte count
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return file.Close()
}
