// Package main runs the E-step on synthetic mini-batches shaped like DeepLab
// training on PASCAL VOC. It prints a fingerprint of every pseudo-label batch,
// optionally checks that all backends agree, measures how runtime scales with
// H*W*C*num_iter, and records or replays conformance corpora.
package main
