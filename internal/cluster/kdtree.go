package cluster

// kdTree is a static 2d index over the points of one zoom level. Nodes are
// implicit: the ids slice is ordered so that the median of every range splits
// it along alternating axes, ranges of at most NodeSize ids are leaves.
type kdTree struct {
	NodeSize int
	ids      []int
	coords   []float64
}

func newKDTree(points []point, nodeSize int) *kdTree {
	t := &kdTree{
		NodeSize: nodeSize,
		ids:      make([]int, len(points)),
		coords:   make([]float64, 2*len(points)),
	}
	for i, p := range points {
		t.ids[i] = i
		t.coords[2*i] = p.x
		t.coords[2*i+1] = p.y
	}
	if len(points) > 0 {
		t.sortKD(0, len(points)-1, 0)
	}
	return t
}

func (t *kdTree) sortKD(left, right, axis int) {
	if right-left <= t.NodeSize {
		return
	}
	m := (left + right) >> 1
	t.selectKD(m, left, right, axis)
	t.sortKD(left, m-1, 1-axis)
	t.sortKD(m+1, right, 1-axis)
}

// selectKD rearranges ids[left:right+1] so that the k-th element is in its
// sorted position along axis, smaller values before it and larger after.
func (t *kdTree) selectKD(k, left, right, axis int) {
	for right > left {
		v := t.coords[2*k+axis]
		i, j := left, right

		t.swap(left, k)
		if t.coords[2*right+axis] > v {
			t.swap(left, right)
		}
		for i < j {
			t.swap(i, j)
			i++
			j--
			for t.coords[2*i+axis] < v {
				i++
			}
			for t.coords[2*j+axis] > v {
				j--
			}
		}

		if t.coords[2*left+axis] == v {
			t.swap(left, j)
		} else {
			j++
			t.swap(j, right)
		}

		if j <= k {
			left = j + 1
		}
		if k <= j {
			right = j - 1
		}
	}
}

func (t *kdTree) swap(i, j int) {
	t.ids[i], t.ids[j] = t.ids[j], t.ids[i]
	t.coords[2*i], t.coords[2*j] = t.coords[2*j], t.coords[2*i]
	t.coords[2*i+1], t.coords[2*j+1] = t.coords[2*j+1], t.coords[2*i+1]
}

// Range returns the indexes of all points inside the box, edges included.
func (t *kdTree) Range(minX, minY, maxX, maxY float64) []int {
	var result []int
	if len(t.ids) == 0 {
		return result
	}

	stack := []int{0, len(t.ids) - 1, 0}
	for len(stack) > 0 {
		axis := stack[len(stack)-1]
		right := stack[len(stack)-2]
		left := stack[len(stack)-3]
		stack = stack[:len(stack)-3]

		if right-left <= t.NodeSize {
			for i := left; i <= right; i++ {
				x, y := t.coords[2*i], t.coords[2*i+1]
				if x >= minX && x <= maxX && y >= minY && y <= maxY {
					result = append(result, t.ids[i])
				}
			}
			continue
		}

		m := (left + right) >> 1
		x, y := t.coords[2*m], t.coords[2*m+1]
		if x >= minX && x <= maxX && y >= minY && y <= maxY {
			result = append(result, t.ids[m])
		}

		if (axis == 0 && minX <= x) || (axis == 1 && minY <= y) {
			stack = append(stack, left, m-1, 1-axis)
		}
		if (axis == 0 && maxX >= x) || (axis == 1 && maxY >= y) {
			stack = append(stack, m+1, right, 1-axis)
		}
	}
	return result
}

// Within returns the indexes of all points at most r away from (qx, qy).
func (t *kdTree) Within(qx, qy, r float64) []int {
	var result []int
	if len(t.ids) == 0 {
		return result
	}

	r2 := r * r
	stack := []int{0, len(t.ids) - 1, 0}
	for len(stack) > 0 {
		axis := stack[len(stack)-1]
		right := stack[len(stack)-2]
		left := stack[len(stack)-3]
		stack = stack[:len(stack)-3]

		if right-left <= t.NodeSize {
			for i := left; i <= right; i++ {
				if sqDist(t.coords[2*i], t.coords[2*i+1], qx, qy) <= r2 {
					result = append(result, t.ids[i])
				}
			}
			continue
		}

		m := (left + right) >> 1
		x, y := t.coords[2*m], t.coords[2*m+1]
		if sqDist(x, y, qx, qy) <= r2 {
			result = append(result, t.ids[m])
		}

		if (axis == 0 && qx-r <= x) || (axis == 1 && qy-r <= y) {
			stack = append(stack, left, m-1, 1-axis)
		}
		if (axis == 0 && qx+r >= x) || (axis == 1 && qy+r >= y) {
			stack = append(stack, m+1, right, 1-axis)
		}
	}
	return result
}

func sqDist(ax, ay, bx, by float64) float64 {
	dx := ax - bx
	dy := ay - by
	return dx*dx + dy*dy
}
