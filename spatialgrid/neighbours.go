package spatialgrid

// Shell groups the 26 neighbours of a voxel by how many axes they are offset along.
type Shell int

// The neighbour shells in order of increasing distance.
const (
	FaceShell   Shell = iota // 6 voxels sharing a face
	EdgeShell                // 12 voxels sharing an edge
	CornerShell              // 8 voxels sharing a corner
)

var neighbourShells = buildNeighbourShells()

func buildNeighbourShells() [3][]Key {
	var shells [3][]Key
	for z := -1; z <= 1; z++ {
		for y := -1; y <= 1; y++ {
			for x := -1; x <= 1; x++ {
				n := abs(x) + abs(y) + abs(z)
				if n == 0 {
					continue
				}
				shells[n-1] = append(shells[n-1], Key{x, y, z})
			}
		}
	}
	return shells
}

// NeighbourShells returns the face, edge and corner neighbour offsets. The
// returned slices must not be modified.
func NeighbourShells() [3][]Key {
	return neighbourShells
}

// Neighbours returns the 26 offsets of the Moore neighbourhood, nearest shells first.
func Neighbours() []Key {
	all := make([]Key, 0, 26)
	for _, shell := range neighbourShells {
		all = append(all, shell...)
	}
	return all
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
