package genotype

// conv2DOutput is floor((in + 2p - k) / s) + 1, the output size of a
// convolution or max pool over a square input.
func conv2DOutput(in, kernel, stride, padding int) int {
	return floorDiv(in+2*padding-kernel, stride) + 1
}

// avgPool2DOutput matches conv2DOutput with ceil_mode off; kept separate so
// the avg pool rule can diverge without touching convolutions.
func avgPool2DOutput(in, kernel, stride, padding int) int {
	return floorDiv(in+2*padding-kernel, stride) + 1
}

func sameOutput(in, stride int) int {
	return (in + stride - 1) / stride
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
