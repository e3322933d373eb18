// Package nn implements the glyph generator/discriminator pair: a pair of
// mirrored convolutional networks that translate fixed-length message vectors
// into square images and back.
//
// The generator maps a length-V message vector to a (2^R, 2^R, C) image in
// [0,1] through R residual upsampling stages. The discriminator maps such an
// image back to V+1 raw scores (V message channels plus a no-signal flag)
// through R residual downsampling stages. Built from mirrored settings, the
// two trunks traverse the same filter-count sequence in opposite directions.
//
// All tensors are flat []float32 in NCHW order; layer weights live directly on
// LayerConfig values. Both CPU and WebGPU execution paths are provided, with
// the GPU path covering the convolution layers.
//
// Example usage:
//
//	gen, _ := nn.NewGenerator(nn.DefaultGeneratorConfig())
//	disc, _ := nn.NewDiscriminator(nn.DefaultDiscriminatorConfig())
//
//	// Forward pass on CPU
//	images, _ := gen.Forward(messages, batchSize)
//	scores, _ := disc.Forward(images, batchSize)
//
//	// Cooperative training
//	trainer, _ := nn.NewTrainer(gen, disc, nn.DefaultTrainerConfig())
//	result, _ := trainer.Train()
package nn
