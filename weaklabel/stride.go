package weaklabel

// Strides lists the spatial stride of every pooling stage of the network, in
// order. It is fixed when the network is built.
type Strides []int

// DeepLabStrides is the VGG-16 DeepLab layout: pool1 to pool3 halve the
// resolution, pool4 and pool5 keep it and the atrous layers take over.
var DeepLabStrides = Strides{2, 2, 2, 1, 1}

// Total returns the overall stride of the network.
func (s Strides) Total() (t int) {
	t = 1
	for _, v := range s {
		t *= v
	}
	return
}

// OutputSize returns the output resolution for an input of height x width
// with SAME padding: every stage rounds up.
func (s Strides) OutputSize(height, width int) (int, int) {
	for _, v := range s {
		height = (height + v - 1) / v
		width = (width + v - 1) / v
	}
	return height, width
}
