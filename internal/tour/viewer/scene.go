package viewer

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ============================================================
// Scene graph
// ============================================================

// Node is a scene-graph node. Its local matrix is T * R * S * Base, where Base
// carries the transform baked into the imported asset and TRS is what the
// viewer manipulates.
type Node struct {
	Name     string
	Position mgl64.Vec3
	Rotation mgl64.Vec3 // Euler XYZ, radians
	Scale    mgl64.Vec3
	Base     mgl64.Mat4
	Mesh     *Mesh
	Children []*Node

	parent *Node
}

func NewNode(name string) *Node {
	return &Node{
		Name:  name,
		Scale: mgl64.Vec3{1, 1, 1},
		Base:  mgl64.Ident4(),
	}
}

type Mesh struct {
	Name          string
	Bounds        AABB
	Triangles     int
	Material      *Material
	CastShadow    bool
	ReceiveShadow bool
}

type Material struct {
	Name      string
	Roughness float64
	Metalness float64
	Textures  []*Texture
}

type Texture struct {
	Name     string
	Width    int
	Height   int
	Embedded bool
	Image    image.Image
}

// Add attaches child, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.Children = append(n.Children, child)
}

func (n *Node) Remove(child *Node) {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

func (n *Node) Parent() *Node { return n.parent }

// Traverse visits n and every descendant depth-first.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Traverse(fn)
	}
}

func (n *Node) LocalMatrix() mgl64.Mat4 {
	t := mgl64.Translate3D(n.Position[0], n.Position[1], n.Position[2])
	r := EulerMatrix(n.Rotation)
	s := mgl64.Scale3D(n.Scale[0], n.Scale[1], n.Scale[2])
	return t.Mul4(r).Mul4(s).Mul4(n.Base)
}

func (n *Node) WorldMatrix() mgl64.Mat4 {
	m := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.LocalMatrix().Mul4(m)
	}
	return m
}

// WorldPosition transforms a point in this node's local space to world space.
func (n *Node) WorldPosition(local mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(local, n.WorldMatrix())
}

// Bounds returns the world-space box around every mesh below n.
func (n *Node) Bounds() AABB {
	box := EmptyAABB()
	n.walk(n.parentMatrix(), func(node *Node, world mgl64.Mat4) {
		if node.Mesh != nil && !node.Mesh.Bounds.IsEmpty() {
			box = box.Union(node.Mesh.Bounds.Transform(world))
		}
	})
	return box
}

// Stats counts meshes, triangles and textures below n.
func (n *Node) Stats() (meshes, triangles, textures int) {
	n.Traverse(func(node *Node) {
		if node.Mesh == nil {
			return
		}
		meshes++
		triangles += node.Mesh.Triangles
		if node.Mesh.Material != nil {
			textures += len(node.Mesh.Material.Textures)
		}
	})
	return meshes, triangles, textures
}

func (n *Node) parentMatrix() mgl64.Mat4 {
	if n.parent == nil {
		return mgl64.Ident4()
	}
	return n.parent.WorldMatrix()
}

func (n *Node) walk(parent mgl64.Mat4, fn func(*Node, mgl64.Mat4)) {
	world := parent.Mul4(n.LocalMatrix())
	fn(n, world)
	for _, c := range n.Children {
		c.walk(world, fn)
	}
}

// EulerMatrix builds a rotation matrix from XYZ Euler angles (radians).
func EulerMatrix(r mgl64.Vec3) mgl64.Mat4 {
	return mgl64.HomogRotate3DX(r[0]).Mul4(mgl64.HomogRotate3DY(r[1])).Mul4(mgl64.HomogRotate3DZ(r[2]))
}

// ============================================================
// Bounding boxes
// ============================================================

type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

func (b AABB) Extend(p mgl64.Vec3) AABB {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
	return b
}

func (b AABB) Union(o AABB) AABB {
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

func (b AABB) Size() mgl64.Vec3 {
	if b.IsEmpty() {
		return mgl64.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

func (b AABB) Center() mgl64.Vec3 {
	if b.IsEmpty() {
		return mgl64.Vec3{}
	}
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) MaxDimension() float64 {
	s := b.Size()
	return math.Max(s[0], math.Max(s[1], s[2]))
}

// Transform returns the box around the eight transformed corners.
func (b AABB) Transform(m mgl64.Mat4) AABB {
	if b.IsEmpty() {
		return b
	}
	out := EmptyAABB()
	for i := 0; i < 8; i++ {
		corner := mgl64.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out = out.Extend(mgl64.TransformCoordinate(corner, m))
	}
	return out
}
