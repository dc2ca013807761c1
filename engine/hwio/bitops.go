package hwio

// Bitmap is a plain uint32-word bitset, laid out the way ARM interrupt
// controllers expose pending/mask words.
type Bitmap []uint32

func NewBitmap(nbits int) Bitmap {
	return make(Bitmap, (nbits+31)/32)
}

func (b Bitmap) Test(n uint) bool {
	return b[n/32]&(1<<(n%32)) != 0
}

func (b Bitmap) Set(n uint) {
	b[n/32] |= 1 << (n % 32)
}

func (b Bitmap) Clear(n uint) {
	b[n/32] &^= 1 << (n % 32)
}

func (b Bitmap) Assign(n uint, val bool) {
	if val {
		b.Set(n)
	} else {
		b.Clear(n)
	}
}

func GetBit32(v uint32, n uint) bool {
	return v>>(n)&0x01 != 0
}

func SetBit32(v *uint32, n uint) {
	*v |= (1 << n)
}

func ClearBit32(v *uint32, n uint) {
	*v &= ^(uint32(1) << n)
}
