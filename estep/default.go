//go:build !noasm

package estep

func init() {
	Default = Optimized
}
