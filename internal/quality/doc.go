// Package quality judges raw fingerprint frames.
//
// A frame is a grayscale buffer, one byte per pixel, 0 black and 255 white.
// Presence detection counts dark pixels (value below 128). When enough are
// found the frame is scored 0-100 from two heuristics:
//
//   - darkness coverage, up to 40 points, full at 15% dark pixels
//   - local contrast between scanline-adjacent pixels, up to 60 points,
//     full at 30% of the maximum possible contrast
//
// Frames that are almost entirely dark with no contrast are reported as
// Suspect rather than scored; they usually mean something other than skin
// is covering the sensor.
//
// Everything here is pure and safe for concurrent use.
package quality
