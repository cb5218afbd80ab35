package capture

import "fmt"

const (
	tpacketAlignment = 16
	tpacketHdrLen    = 52
	maxBlockSize     = 4 << 20
)

// ringGeometry is the TPACKET ring layout: frames are aligned to
// TPACKET_ALIGNMENT, blocks are whole pages holding whole frames, and
// blocks*blockSize stays close to the requested ring size.
type ringGeometry struct {
	frameSize int
	blockSize int
	numBlocks int
}

func computeRing(ringSizeMB, snapLen, pageSize int) (ringGeometry, error) {
	if ringSizeMB <= 0 {
		return ringGeometry{}, fmt.Errorf("ring size must be positive, got %d MB", ringSizeMB)
	}
	if snapLen <= 0 {
		return ringGeometry{}, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return ringGeometry{}, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	var g ringGeometry
	g.frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	g.blockSize = lcm(pageSize, g.frameSize)
	if g.blockSize > maxBlockSize {
		// Fit as many frames as a 4 MB block allows, then round up to a page.
		frames := maxBlockSize / g.frameSize
		if frames < 1 {
			frames = 1
		}
		g.blockSize = alignUp(frames*g.frameSize, pageSize)
	}

	g.numBlocks = (ringSizeMB << 20) / g.blockSize
	if g.numBlocks < 1 {
		g.numBlocks = 1
	}
	return g, nil
}

func alignUp(n, to int) int { return (n + to - 1) / to * to }

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
