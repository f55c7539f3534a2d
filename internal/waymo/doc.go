// Package waymo reads Waymo Open Dataset segments: the TFRecord container,
// the Frame protobuf message and its zlib-compressed range images.
//
// Frames are decoded straight from the protobuf wire format so that no
// generated code is needed; only the fields the converter consumes are
// modelled and everything else is skipped.
package waymo
