package utils

type Index []int

func NewIndex(N int) (I Index) {
	return make(Index, N)
}

func (I Index) Copy() (r Index) {
	r = make(Index, len(I))
	copy(r, I)
	return
}

func (I Index) Add(val int) (r Index) {
	r = make(Index, len(I))
	for i, ival := range I {
		r[i] = val + ival
	}
	return r
}

// IsZero reports whether every entry is zero, the sentinel for "no rows selected".
func (I Index) IsZero() bool {
	for _, val := range I {
		if val != 0 {
			return false
		}
	}
	return true
}
