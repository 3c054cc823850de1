// Package snapshot turns captured frames into 8-bit grayscale PNGs and
// writes them to the captures directory as digital_YYYYMMDD_HHMMSS.png.
package snapshot
