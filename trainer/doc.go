// Package trainer drives weakly supervised training steps. Each step runs the
// network forward, blocks on the E-step for the whole mini-batch, scores the
// logits against the resulting pseudo-labels and hands the gradient back to
// the network. The network itself is an external collaborator.
package trainer
