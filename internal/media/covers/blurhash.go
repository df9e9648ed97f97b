package covers

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	// blurHashSize is the thumbnail edge for BlurHash computation. BlurHash is
	// a low-resolution placeholder; 64px keeps encoding in the millisecond
	// range.
	blurHashSize = 64

	// maxCoverEdge caps stored cover dimensions. Embedded art in audiobook
	// files is occasionally print resolution.
	maxCoverEdge = 1024
)

// ComputeBlurHash generates a BlurHash placeholder string for cover data.
// 4x3 components give ~30 characters with enough detail for book covers.
func ComputeBlurHash(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	hash, err := blurhash.Encode(4, 3, thumbnail(img))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// thumbnail scales the image down to blurHashSize on its longer edge,
// keeping aspect ratio.
func thumbnail(img image.Image) image.Image {
	return scaleToFit(img, blurHashSize)
}

// NormalizeCover re-encodes oversized cover images down to maxCoverEdge on
// the longer side, keeping aspect ratio. Images within bounds, and images
// that fail to decode or re-encode, are returned unchanged.
func NormalizeCover(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	bounds := img.Bounds()
	if bounds.Dx() <= maxCoverEdge && bounds.Dy() <= maxCoverEdge {
		return data
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaleToFit(img, maxCoverEdge), &jpeg.Options{Quality: 85}); err != nil {
		return data
	}
	return buf.Bytes()
}

// scaleToFit scales the image so its longer edge is at most edge pixels,
// keeping aspect ratio.
func scaleToFit(img image.Image, edge int) image.Image {
	bounds := img.Bounds()
	srcWidth, srcHeight := bounds.Dx(), bounds.Dy()
	if srcWidth <= edge && srcHeight <= edge {
		return img
	}

	var dstWidth, dstHeight int
	if srcWidth > srcHeight {
		dstWidth = edge
		dstHeight = max(1, srcHeight*edge/srcWidth)
	} else {
		dstHeight = edge
		dstWidth = max(1, srcWidth*edge/srcHeight)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
