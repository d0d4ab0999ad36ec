package viewer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"

	"tour-engine/internal/tour/models"
)

// ============================================================
// Model loading
// ============================================================

var ErrUnsupportedFormat = errors.New("unsupported model format")

const maxNodeDepth = 64

// Progress reports load progress. Byte counts are used when the total is
// known; otherwise the item counts are.
type Progress struct {
	Loaded     int64 `json:"loaded"`
	Total      int64 `json:"total"`
	Items      int   `json:"items"`
	ItemsTotal int   `json:"itemsTotal"`
}

// Percent returns progress in 0..100.
func (p Progress) Percent() float64 {
	var r float64
	switch {
	case p.Total > 0:
		r = float64(p.Loaded) / float64(p.Total)
	case p.ItemsTotal > 0:
		r = float64(p.Items) / float64(p.ItemsTotal)
	default:
		return 0
	}
	if r > 1 {
		r = 1
	}
	return r * 100
}

// FetchFunc returns the bytes behind an asset reference, reporting byte progress.
type FetchFunc func(ctx context.Context, ref string, progress func(loaded, total int64)) ([]byte, error)

// ModelLoader turns a model descriptor into a detached scene-graph subtree.
// Load runs off the loop thread and must not touch viewer state.
type ModelLoader interface {
	Load(ctx context.Context, model models.Model3D, progress func(Progress)) (*Node, error)
}

// AssetLoader fetches model bytes and decodes them by format.
type AssetLoader struct {
	fetch FetchFunc
}

func NewAssetLoader(fetch FetchFunc) *AssetLoader {
	return &AssetLoader{fetch: fetch}
}

func (l *AssetLoader) Load(ctx context.Context, model models.Model3D, progress func(Progress)) (*Node, error) {
	format := model.ResolvedFormat()
	switch format {
	case models.FormatGLTF, models.FormatGLB, models.FormatOBJ:
	default:
		return nil, fmt.Errorf("%s (%q): %w", model.ModelURL, format, ErrUnsupportedFormat)
	}

	report := func(p Progress) {
		if progress != nil {
			progress(p)
		}
	}
	data, err := l.fetch(ctx, model.ModelURL, func(loaded, total int64) {
		report(Progress{Loaded: loaded, Total: total})
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var root *Node
	if format == models.FormatOBJ {
		root, err = DecodeOBJ(bytes.NewReader(data))
	} else {
		root, err = DecodeGLTF(data, func(done, total int) {
			report(Progress{Loaded: int64(len(data)), Total: int64(len(data)), Items: done, ItemsTotal: total})
		})
	}
	if err != nil {
		return nil, err
	}
	root.Name = model.ID
	return root, nil
}

// ============================================================
// glTF / GLB
// ============================================================

// DecodeGLTF reads a .gltf (with embedded buffers) or .glb document. Mesh
// bounds come from the POSITION accessor min/max; images embedded in buffer
// views or data URIs are decoded, external ones are recorded by size 0.
func DecodeGLTF(data []byte, items func(done, total int)) (*Node, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf: %w", err)
	}

	d := &gltfDecoder{doc: doc, textures: make(map[int]*Texture), items: items}
	root := NewNode("gltf")
	for _, idx := range d.rootNodes() {
		child, err := d.node(idx, 0)
		if err != nil {
			return nil, err
		}
		root.Add(child)
	}
	return root, nil
}

type gltfDecoder struct {
	doc      *gltf.Document
	textures map[int]*Texture
	items    func(done, total int)
	done     int
}

func (d *gltfDecoder) rootNodes() []int {
	doc := d.doc
	if len(doc.Scenes) > 0 {
		scene := 0
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			scene = int(*doc.Scene)
		}
		out := make([]int, 0, len(doc.Scenes[scene].Nodes))
		for _, n := range doc.Scenes[scene].Nodes {
			out = append(out, int(n))
		}
		return out
	}

	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[int(c)] = true
		}
	}
	var out []int
	for i := range doc.Nodes {
		if !child[i] {
			out = append(out, i)
		}
	}
	return out
}

func (d *gltfDecoder) node(idx, depth int) (*Node, error) {
	if depth > maxNodeDepth {
		return nil, fmt.Errorf("gltf: node hierarchy deeper than %d", maxNodeDepth)
	}
	if idx < 0 || idx >= len(d.doc.Nodes) {
		return nil, fmt.Errorf("gltf: node %d out of range", idx)
	}
	src := d.doc.Nodes[idx]

	n := NewNode(src.Name)
	n.Base = nodeMatrix(src)
	if src.Mesh != nil {
		mesh, err := d.mesh(int(*src.Mesh))
		if err != nil {
			return nil, err
		}
		n.Mesh = mesh
	}
	for _, c := range src.Children {
		child, err := d.node(int(c), depth+1)
		if err != nil {
			return nil, err
		}
		n.Add(child)
	}

	d.done++
	if d.items != nil {
		d.items(d.done, len(d.doc.Nodes))
	}
	return n, nil
}

// nodeMatrix prefers an explicit matrix and falls back to TRS.
func nodeMatrix(src *gltf.Node) mgl64.Mat4 {
	var m mgl64.Mat4
	for i, v := range src.Matrix {
		m[i] = float64(v)
	}
	if m != (mgl64.Mat4{}) && m != mgl64.Ident4() {
		return m
	}

	t := vec3(src.Translation)
	s := vec3(src.Scale)
	if s == (mgl64.Vec3{}) {
		s = mgl64.Vec3{1, 1, 1}
	}
	rot := mgl64.Ident4()
	if r := src.Rotation; r != [4]float32{} {
		q := mgl64.Quat{W: float64(r[3]), V: mgl64.Vec3{float64(r[0]), float64(r[1]), float64(r[2])}}
		rot = q.Normalize().Mat4()
	}
	return mgl64.Translate3D(t[0], t[1], t[2]).Mul4(rot).Mul4(mgl64.Scale3D(s[0], s[1], s[2]))
}

func vec3(v [3]float32) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

func (d *gltfDecoder) mesh(idx int) (*Mesh, error) {
	if idx < 0 || idx >= len(d.doc.Meshes) {
		return nil, fmt.Errorf("gltf: mesh %d out of range", idx)
	}
	src := d.doc.Meshes[idx]
	mesh := &Mesh{Name: src.Name, Bounds: EmptyAABB()}

	for _, prim := range src.Primitives {
		pos, ok := prim.Attributes[gltf.POSITION]
		if !ok || int(pos) >= len(d.doc.Accessors) {
			continue
		}
		acc := d.doc.Accessors[pos]
		if len(acc.Min) >= 3 && len(acc.Max) >= 3 {
			mesh.Bounds = mesh.Bounds.
				Extend(vec3([3]float32{acc.Min[0], acc.Min[1], acc.Min[2]})).
				Extend(vec3([3]float32{acc.Max[0], acc.Max[1], acc.Max[2]}))
		}

		count := int(acc.Count)
		if prim.Indices != nil && int(*prim.Indices) < len(d.doc.Accessors) {
			count = int(d.doc.Accessors[*prim.Indices].Count)
		}
		mesh.Triangles += count / 3

		if prim.Material != nil && mesh.Material == nil {
			mat, err := d.material(int(*prim.Material))
			if err != nil {
				return nil, err
			}
			mesh.Material = mat
		}
	}
	if mesh.Material == nil {
		mesh.Material = &Material{Name: "default", Roughness: 1, Metalness: 1}
	}
	return mesh, nil
}

func (d *gltfDecoder) material(idx int) (*Material, error) {
	if idx < 0 || idx >= len(d.doc.Materials) {
		return nil, fmt.Errorf("gltf: material %d out of range", idx)
	}
	src := d.doc.Materials[idx]
	mat := &Material{Name: src.Name, Roughness: 1, Metalness: 1}

	pbr := src.PBRMetallicRoughness
	if pbr == nil {
		return mat, nil
	}
	if pbr.RoughnessFactor != nil {
		mat.Roughness = float64(*pbr.RoughnessFactor)
	}
	if pbr.MetallicFactor != nil {
		mat.Metalness = float64(*pbr.MetallicFactor)
	}
	for _, info := range []*gltf.TextureInfo{pbr.BaseColorTexture, pbr.MetallicRoughnessTexture} {
		if info == nil {
			continue
		}
		tex, err := d.texture(int(info.Index))
		if err != nil {
			return nil, err
		}
		if tex != nil {
			mat.Textures = append(mat.Textures, tex)
		}
	}
	return mat, nil
}

func (d *gltfDecoder) texture(idx int) (*Texture, error) {
	if tex, ok := d.textures[idx]; ok {
		return tex, nil
	}
	if idx < 0 || idx >= len(d.doc.Textures) {
		return nil, fmt.Errorf("gltf: texture %d out of range", idx)
	}
	src := d.doc.Textures[idx]
	if src.Source == nil || int(*src.Source) >= len(d.doc.Images) {
		d.textures[idx] = nil
		return nil, nil
	}
	img := d.doc.Images[*src.Source]

	tex := &Texture{Name: img.Name}
	raw, err := d.imageBytes(img)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		decoded, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gltf: image %q: %w", img.Name, err)
		}
		b := decoded.Bounds()
		tex.Image = decoded
		tex.Width, tex.Height = b.Dx(), b.Dy()
		tex.Embedded = true
	}
	d.textures[idx] = tex
	return tex, nil
}

func (d *gltfDecoder) imageBytes(img *gltf.Image) ([]byte, error) {
	if img.BufferView != nil {
		bvIdx := int(*img.BufferView)
		if bvIdx >= len(d.doc.BufferViews) {
			return nil, fmt.Errorf("gltf: buffer view %d out of range", bvIdx)
		}
		bv := d.doc.BufferViews[bvIdx]
		if int(bv.Buffer) >= len(d.doc.Buffers) {
			return nil, fmt.Errorf("gltf: buffer %d out of range", bv.Buffer)
		}
		data := d.doc.Buffers[bv.Buffer].Data
		start, end := int(bv.ByteOffset), int(bv.ByteOffset)+int(bv.ByteLength)
		if end > len(data) {
			return nil, fmt.Errorf("gltf: buffer view %d exceeds buffer", bvIdx)
		}
		return data[start:end], nil
	}
	if strings.HasPrefix(img.URI, "data:") {
		return decodeDataURI(img.URI)
	}
	return nil, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 || !strings.HasSuffix(uri[:comma], ";base64") {
		return nil, fmt.Errorf("gltf: unsupported data uri")
	}
	out, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("gltf: data uri: %w", err)
	}
	return out, nil
}

// ============================================================
// Wavefront OBJ
// ============================================================

// DecodeOBJ reads vertex positions and faces into a single mesh. Materials
// are recorded by name only; MTL libraries are not followed.
func DecodeOBJ(r io.Reader) (*Node, error) {
	mesh := &Mesh{Name: "obj", Bounds: EmptyAABB()}
	mat := &Material{Name: "default", Roughness: 1}
	vertices := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: vertex needs 3 coordinates", line)
			}
			var p mgl64.Vec3
			for i := 0; i < 3; i++ {
				f, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", line, err)
				}
				p[i] = f
			}
			mesh.Bounds = mesh.Bounds.Extend(p)
			vertices++
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face needs 3 vertices", line)
			}
			mesh.Triangles += len(fields) - 3
		case "usemtl":
			if len(fields) > 1 && mat.Name == "default" {
				mat.Name = fields[1]
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read obj: %w", err)
	}
	if vertices == 0 {
		return nil, fmt.Errorf("obj: no vertices")
	}

	mesh.Material = mat
	root := NewNode("obj")
	child := NewNode("mesh")
	child.Mesh = mesh
	root.Add(child)
	return root, nil
}
