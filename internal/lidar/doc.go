// Package lidar converts native range images into per-sensor point clouds.
//
// Responsibilities: beam inclination resolution, validity masking,
// spherical → Cartesian projection, extrinsic and per-pixel pose
// composition, and assembly of first/second returns into N×4
// (x, y, z, intensity) arrays.
// Key types: Transform, RangeImage, PixelPoseGrid, Scan, ReturnCloud, Cloud.
//
// Everything here is a pure function of its inputs; no I/O and no shared
// mutable state.
package lidar
